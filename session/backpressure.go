package session

import "golang.org/x/time/rate"

// PendingLimiter is a ready-made OnSending veto policy: it rejects a write
// once accepting it would push the pending-byte count above MaxPending, and
// additionally shapes the accepted rate of writes through a token bucket.
// Hold one in a Handler and call Allow from OnSending, e.g.:
//
//	type EchoHandler struct {
//		session.BaseHandler
//		Gate *session.PendingLimiter
//	}
//
//	func (h *EchoHandler) OnSending(s *session.Session, size int) bool {
//		return h.Gate.Allow(size)
//	}
type PendingLimiter struct {
	MaxPending int
	limiter    *rate.Limiter
}

// NewPendingLimiter returns a PendingLimiter that rejects writes once
// pending bytes would exceed maxPending, and paces accepted writes to at
// most burst immediately followed by r writes per second.
func NewPendingLimiter(maxPending int, r rate.Limit, burst int) *PendingLimiter {
	return &PendingLimiter{
		MaxPending: maxPending,
		limiter:    rate.NewLimiter(r, burst),
	}
}

// Allow reports whether a write that would bring pending bytes to
// pendingAfter should proceed.
func (p *PendingLimiter) Allow(pendingAfter int) bool {
	if p.MaxPending > 0 && pendingAfter > p.MaxPending {
		return false
	}
	if p.limiter != nil {
		return p.limiter.Allow()
	}
	return true
}
