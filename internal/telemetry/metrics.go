package telemetry

import (
	stderrors "errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc/codes"

	"event-quiz-service/internal/domain"
	"event-quiz-service/internal/errors"
)

// Metrics implements app.Metrics with Prometheus counters.
type Metrics struct {
	started   *prometheus.CounterVec
	submitted *prometheus.CounterVec
	abandoned *prometheus.CounterVec
	conflicts *prometheus.CounterVec
}

// NewMetrics registers the quiz counters on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		started: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quiz",
			Name:      "sessions_started_total",
			Help:      "Quiz sessions handed to participants, split by whether an existing session was resumed.",
		}, []string{"event", "resumed"}),
		submitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quiz",
			Name:      "sessions_submitted_total",
			Help:      "Quiz sessions completed, split by whether the submit arrived after the deadline.",
		}, []string{"event", "overtime"}),
		abandoned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quiz",
			Name:      "sessions_abandoned_total",
			Help:      "Quiz sessions moved to abandoned.",
		}, []string{"event"}),
		conflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quiz",
			Name:      "conflicts_total",
			Help:      "Rejected operations due to single-attempt or concurrent-write guards.",
		}, []string{"op", "code", "reason"}),
	}

	for _, c := range []prometheus.Collector{m.started, m.submitted, m.abandoned, m.conflicts} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) SessionStarted(event domain.Event, resumed bool) {
	m.started.WithLabelValues(string(event), strconv.FormatBool(resumed)).Inc()
}

func (m *Metrics) SessionSubmitted(event domain.Event, overtime bool) {
	m.submitted.WithLabelValues(string(event), strconv.FormatBool(overtime)).Inc()
}

func (m *Metrics) SessionAbandoned(event domain.Event) {
	m.abandoned.WithLabelValues(string(event)).Inc()
}

// conflictReasons bounds the reason label to known guards.
var conflictReasons = []struct {
	err    error
	reason string
}{
	{domain.ErrAlreadyAttempted, "already_attempted"},
	{domain.ErrAlreadySubmitted, "already_submitted"},
	{domain.ErrAlreadyFinalized, "already_finalized"},
	{domain.ErrSessionCollision, "session_collision"},
	{domain.ErrSessionInProgress, "session_in_progress"},
	{domain.ErrSessionAbandoned, "session_abandoned"},
	{domain.ErrStaleTransition, "stale_transition"},
}

func conflictReason(err error) string {
	for _, r := range conflictReasons {
		if stderrors.Is(err, r.err) {
			return r.reason
		}
	}
	return "other"
}

func (m *Metrics) Conflict(op string, err error) {
	code := codes.Code(errors.CodeOf(err)).String()
	m.conflicts.WithLabelValues(op, code, conflictReason(err)).Inc()
}
