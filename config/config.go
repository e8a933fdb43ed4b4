// Package config loads the tuning profile for the demo binaries in cmd/
// from a YAML file via Viper, with environment variable overrides. The
// library packages themselves (session, server, client, ...) take plain Go
// structs and never import this package — it exists only to configure the
// worked-example binaries.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/nvremote/netflux/session"
)

// DefaultConfigPath is where the demo binaries look for a config file when
// none is given on the command line.
const DefaultConfigPath = "netflux.yaml"

// Config holds everything a demo binary needs to stand up a server or
// client: the listen/dial address, TLS material, socket tuning, and the
// optional admin endpoint.
type Config struct {
	Network string `mapstructure:"network" yaml:"network"`
	Addr    string `mapstructure:"addr" yaml:"addr"`

	// HTTPAddr and WSAddr are used by the HTTP+WebSocket demo binary, which
	// runs both a plain-HTTP CRUD listener and a WebSocket echo listener
	// side by side.
	HTTPAddr string `mapstructure:"http_addr" yaml:"http_addr"`
	WSAddr   string `mapstructure:"ws_addr" yaml:"ws_addr"`

	TLSCertFile string `mapstructure:"tls_cert_file" yaml:"tls_cert_file"`
	TLSKeyFile  string `mapstructure:"tls_key_file" yaml:"tls_key_file"`

	AdminAddr string `mapstructure:"admin_addr" yaml:"admin_addr"`

	Keepalive         bool `mapstructure:"keepalive" yaml:"keepalive"`
	NoDelay           bool `mapstructure:"no_delay" yaml:"no_delay"`
	ReuseAddress      bool `mapstructure:"reuse_address" yaml:"reuse_address"`
	ReceiveBufferSize int  `mapstructure:"receive_buffer_size" yaml:"receive_buffer_size"`
	SendBufferSize    int  `mapstructure:"send_buffer_size" yaml:"send_buffer_size"`
	AcceptorBacklog   int  `mapstructure:"acceptor_backlog" yaml:"acceptor_backlog"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// Load reads configuration from path, falling back to DefaultConfigPath
// when path is empty. A missing file is not an error: defaults and
// NETFLUX_-prefixed environment variables still apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("network", "tcp")
	v.SetDefault("addr", "127.0.0.1:1111")
	v.SetDefault("http_addr", "127.0.0.1:8080")
	v.SetDefault("ws_addr", "127.0.0.1:8081")
	v.SetDefault("no_delay", true)
	v.SetDefault("receive_buffer_size", 8192)
	v.SetDefault("send_buffer_size", 8192)
	v.SetDefault("acceptor_backlog", 1024)
	v.SetDefault("log_level", "info")

	if path == "" {
		path = DefaultConfigPath
	}
	v.SetConfigFile(path)

	v.SetEnvPrefix("NETFLUX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); !ok {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return &cfg, nil
}

// SessionOptions translates the flat tuning fields into session.Options.
func (c *Config) SessionOptions() session.Options {
	opts := session.DefaultOptions()
	opts.Keepalive = c.Keepalive
	opts.NoDelay = c.NoDelay
	opts.ReuseAddress = c.ReuseAddress
	if c.ReceiveBufferSize > 0 {
		opts.ReceiveBufferSize = c.ReceiveBufferSize
	}
	if c.SendBufferSize > 0 {
		opts.SendBufferSize = c.SendBufferSize
	}
	if c.AcceptorBacklog > 0 {
		opts.AcceptorBacklog = c.AcceptorBacklog
	}
	return opts
}

// HasTLS reports whether both halves of a TLS keypair were configured.
func (c *Config) HasTLS() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}
