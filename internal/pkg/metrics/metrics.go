// Package metrics defines and registers the Prometheus metrics of the auth
// service. It is the single source of truth for metric names, labels, and
// help strings.
//
// Metrics register with the default registry on package init via promauto,
// and are served by the /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "auth"

// Result label values.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultExists  = "exists"
	ResultError   = "error"
)

// ── Credential metrics ───────────────────────────────────────────────────────

// RegistrationsTotal counts registration attempts.
// Label:
//   - result: "success", "exists", or "error"
var RegistrationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registrations_total",
		Help:      "Total number of registration attempts, by result.",
	},
	[]string{"result"},
)

// LoginsTotal counts credential checks (login form, Basic header).
// Label:
//   - result: "success" or "failure"
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of credential validations, by result.",
	},
	[]string{"result"},
)

// ── Session metrics ──────────────────────────────────────────────────────────

// SessionsTotal counts session lifecycle actions.
// Label:
//   - action: "created" or "destroyed"
var SessionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_total",
		Help:      "Total number of sessions created or destroyed.",
	},
	[]string{"action"},
)

// PasswordResetsTotal counts the two stages of the reset flow.
// Label:
//   - stage: "requested" or "completed"
var PasswordResetsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "password_resets_total",
		Help:      "Total number of password reset tokens issued and redeemed.",
	},
	[]string{"stage"},
)

// ── Audit metrics ────────────────────────────────────────────────────────────

// AuditQueueDepth tracks the number of events waiting in each audit worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var AuditQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "audit_queue_depth",
		Help:      "Current number of auth events pending in each audit worker channel.",
	},
	[]string{"worker_id"},
)

// AuditErrorsTotal counts audit events a sink failed to record.
var AuditErrorsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_errors_total",
		Help:      "Total number of auth events that could not be recorded.",
	},
)
