package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// adminStats is the JSON body served at GET /stats.
type adminStats struct {
	Network       string `json:"network"`
	Addr          string `json:"addr"`
	SessionCount  int    `json:"session_count"`
	BytesSent     uint64 `json:"bytes_sent"`
	BytesReceived uint64 `json:"bytes_received"`
}

// adminServer is the optional, separate HTTP surface a Server exposes for
// operational visibility — entirely outside the data-plane protocol codecs.
type adminServer struct {
	addr string
	http *http.Server
}

func newAdminServer(addr string) *adminServer {
	return &adminServer{addr: addr}
}

func (a *adminServer) start(s *Server) error {
	r := mux.NewRouter()
	r.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		sessions := s.Sessions()
		var sent, recv uint64
		for _, sess := range sessions {
			sent += sess.BytesSent()
			recv += sess.BytesReceived()
		}
		stats := adminStats{
			Network:       s.network,
			Addr:          s.addr,
			SessionCount:  len(sessions),
			BytesSent:     sent,
			BytesReceived: recv,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(stats)
	}).Methods(http.MethodGet)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	ln, err := net.Listen("tcp", a.addr)
	if err != nil {
		return err
	}

	a.http = &http.Server{Handler: r}
	go func() {
		_ = a.http.Serve(ln)
	}()
	return nil
}

func (a *adminServer) stop() error {
	if a.http == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.http.Shutdown(ctx)
}
