package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for auth operations.
type Metrics struct {
	UsersCreated    prometheus.Counter
	LoginSuccesses  prometheus.Counter
	LoginFailures   prometheus.Counter
	TokenRefreshes  prometheus.Counter
	SessionsRevoked prometheus.Counter
}

// New registers and returns auth metrics collectors.
func New() *Metrics {
	return &Metrics{
		UsersCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "perrymill_users_created_total",
			Help: "Total number of users created",
		}),
		LoginSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "perrymill_login_success_total",
			Help: "Total number of successful logins",
		}),
		LoginFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "perrymill_login_failure_total",
			Help: "Total number of failed login attempts",
		}),
		TokenRefreshes: promauto.NewCounter(prometheus.CounterOpts{
			Name: "perrymill_token_refresh_total",
			Help: "Total number of refresh-token rotations",
		}),
		SessionsRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "perrymill_sessions_revoked_total",
			Help: "Total number of sessions revoked by logout",
		}),
	}
}

func (m *Metrics) IncrementUsersCreated() {
	if m != nil {
		m.UsersCreated.Inc()
	}
}

func (m *Metrics) IncrementLoginSuccesses() {
	if m != nil {
		m.LoginSuccesses.Inc()
	}
}

func (m *Metrics) IncrementLoginFailures() {
	if m != nil {
		m.LoginFailures.Inc()
	}
}

func (m *Metrics) IncrementTokenRefreshes() {
	if m != nil {
		m.TokenRefreshes.Inc()
	}
}

func (m *Metrics) IncrementSessionsRevoked() {
	if m != nil {
		m.SessionsRevoked.Inc()
	}
}
