// Package natsconn dials the NATS cluster the comment event stream lives on.
// Connections are named so they can be told apart in server monitoring, and
// the reconnect policy is tunable through the environment.
package natsconn

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// Options configures the connection. Zero values fall back to env vars and
// then to the defaults in withDefaults.
type Options struct {
	URL           string
	Name          string        // connection name, default "commentsvc"
	MaxReconnects int           // NATS_MAX_RECONNECTS, default 10
	ReconnectWait time.Duration // NATS_RECONNECT_WAIT, default 2s
}

func (o Options) withDefaults() Options {
	if o.URL == "" {
		o.URL = strings.TrimSpace(os.Getenv("NATS_URL"))
	}
	if o.URL == "" {
		o.URL = nats.DefaultURL
	}
	if strings.TrimSpace(o.Name) == "" {
		o.Name = "commentsvc"
	}
	if o.MaxReconnects == 0 {
		o.MaxReconnects = envInt("NATS_MAX_RECONNECTS", 10)
	}
	if o.ReconnectWait <= 0 {
		o.ReconnectWait = envDuration("NATS_RECONNECT_WAIT", 2*time.Second)
	}
	return o
}

// Connect dials NATS with the configured retry policy. The initial dial is
// not retried: a broker that is down at startup is the caller's decision
// (fail fast in production, degrade to no-op publishing in development).
func Connect(opts Options) (*nats.Conn, error) {
	opts = opts.withDefaults()

	nc, err := nats.Connect(opts.URL,
		nats.Name(opts.Name),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.RetryOnFailedConnect(false),
	)
	if err != nil {
		return nil, fmt.Errorf("natsconn: dial %s as %s: %w", opts.URL, opts.Name, err)
	}
	return nc, nil
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
