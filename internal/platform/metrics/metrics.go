package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics shared across the workflow services.
type Metrics struct {
	HTTPDuration *prometheus.HistogramVec

	InvitesCreated   prometheus.Counter
	InvitesAccepted  prometheus.Counter
	InvitesDeclined  prometheus.Counter
	CountersProposed prometheus.Counter
	StaleProposals   prometheus.Counter

	EscrowAuthorized        prometheus.Counter
	EscrowAuthorizeFailures prometheus.Counter
	EscrowCaptured          prometheus.Counter
	EscrowCancelled         prometheus.Counter

	VerificationsStarted   prometheus.Counter
	VerificationsSubmitted prometheus.Counter
	ModerationApproved     prometheus.Counter
	ModerationRejected     prometheus.Counter
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "parley_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),

		InvitesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "parley_invites_created_total",
			Help: "Invitation proposals encoded into share tokens.",
		}),
		InvitesAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "parley_invites_accepted_total",
			Help: "Proposals accepted by recipients.",
		}),
		InvitesDeclined: promauto.NewCounter(prometheus.CounterOpts{
			Name: "parley_invites_declined_total",
			Help: "Proposals declined by recipients.",
		}),
		CountersProposed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "parley_counter_proposals_total",
			Help: "Counter-proposals produced during negotiation.",
		}),
		StaleProposals: promauto.NewCounter(prometheus.CounterOpts{
			Name: "parley_stale_proposals_total",
			Help: "Operations rejected because the token's turn was behind the thread.",
		}),

		EscrowAuthorized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "parley_escrow_authorized_total",
			Help: "Escrow holds successfully authorized.",
		}),
		EscrowAuthorizeFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "parley_escrow_authorize_failures_total",
			Help: "Escrow authorizations refused by the payment gateway.",
		}),
		EscrowCaptured: promauto.NewCounter(prometheus.CounterOpts{
			Name: "parley_escrow_captured_total",
			Help: "Escrow holds captured after event completion.",
		}),
		EscrowCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "parley_escrow_cancelled_total",
			Help: "Escrow holds voided or abandoned.",
		}),

		VerificationsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "parley_verifications_started_total",
			Help: "Verification codes issued.",
		}),
		VerificationsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "parley_verifications_submitted_total",
			Help: "Profile URLs submitted into the moderation queue.",
		}),
		ModerationApproved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "parley_moderation_approved_total",
			Help: "Verification requests approved by moderators.",
		}),
		ModerationRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "parley_moderation_rejected_total",
			Help: "Verification requests rejected by moderators.",
		}),
	}
}
