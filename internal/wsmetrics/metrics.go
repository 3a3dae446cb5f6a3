// Package wsmetrics defines the Prometheus instrumentation shared by
// wsserver and wsclient.
package wsmetrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Server holds the counters and histograms emitted by ServerCore.
type Server struct {
	SocketsAccepted  prometheus.Counter
	Upgrades         prometheus.Counter
	AuthSuccess      prometheus.Counter
	AuthFailure      *prometheus.CounterVec // labeled by reason
	Replacements     prometheus.Counter
	IdleEvictions    prometheus.Counter
	AuthTimeouts     prometheus.Counter
	HandshakeLatency prometheus.Histogram
}

var newServerOnce sync.Once
var serverInstance *Server

// NewServer builds (and registers, once per process) the server metrics.
// Repeated calls return the same instance so multiple ServerCore values
// in one process share a metric family instead of panicking on
// duplicate registration.
func NewServer() *Server {
	newServerOnce.Do(func() {
		serverInstance = &Server{
			SocketsAccepted: promauto.NewCounter(prometheus.CounterOpts{
				Name: "wsauth_server_sockets_accepted_total",
				Help: "Total raw sockets accepted by the server.",
			}),
			Upgrades: promauto.NewCounter(prometheus.CounterOpts{
				Name: "wsauth_server_upgrades_total",
				Help: "Total sockets successfully upgraded to WebSocket.",
			}),
			AuthSuccess: promauto.NewCounter(prometheus.CounterOpts{
				Name: "wsauth_server_auth_success_total",
				Help: "Total successful client authentications.",
			}),
			AuthFailure: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "wsauth_server_auth_failure_total",
				Help: "Total rejected authentication attempts, labeled by reason.",
			}, []string{"reason"}),
			Replacements: promauto.NewCounter(prometheus.CounterOpts{
				Name: "wsauth_server_replacements_total",
				Help: "Total existing peers evicted by a newer authentication for the same address.",
			}),
			IdleEvictions: promauto.NewCounter(prometheus.CounterOpts{
				Name: "wsauth_server_idle_evictions_total",
				Help: "Total authenticated peers closed for exceeding the idle timeout.",
			}),
			AuthTimeouts: promauto.NewCounter(prometheus.CounterOpts{
				Name: "wsauth_server_auth_timeouts_total",
				Help: "Total pending sockets or pending-auth connections closed for exceeding authTimeout.",
			}),
			HandshakeLatency: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "wsauth_server_handshake_latency_seconds",
				Help:    "Latency from upgrade to authentication success.",
				Buckets: prometheus.DefBuckets,
			}),
		}
	})
	return serverInstance
}

// Client holds the counters emitted by ClientCore.
type Client struct {
	ReconnectAttempts prometheus.Counter
	AuthFailures      prometheus.Counter
	HandshakeLatency  prometheus.Histogram
}

var newClientOnce sync.Once
var clientInstance *Client

// NewClient builds (and registers, once per process) the client metrics.
func NewClient() *Client {
	newClientOnce.Do(func() {
		clientInstance = &Client{
			ReconnectAttempts: promauto.NewCounter(prometheus.CounterOpts{
				Name: "wsauth_client_reconnect_attempts_total",
				Help: "Total reconnect attempts made by the client.",
			}),
			AuthFailures: promauto.NewCounter(prometheus.CounterOpts{
				Name: "wsauth_client_auth_failures_total",
				Help: "Total server responses that failed client-side signature verification.",
			}),
			HandshakeLatency: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "wsauth_client_handshake_latency_seconds",
				Help:    "Latency from connect to server authentication being verified.",
				Buckets: prometheus.DefBuckets,
			}),
		}
	})
	return clientInstance
}
