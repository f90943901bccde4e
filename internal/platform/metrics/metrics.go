package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the credential lifecycle and the
// disclosure funnel. Rejection reasons are labeled so operators can tell a
// replayed token from an expired one without log digging.
type Metrics struct {
	CredentialsIssued  prometheus.Counter
	MintsConfirmed     prometheus.Counter
	CredentialsRevoked prometheus.Counter

	ShareTokensCreated prometheus.Counter
	DisclosuresPaid    prometheus.Counter
	ReportsViewed      prometheus.Counter
	ReportsUnavailable prometheus.Counter
	TokenRejections    *prometheus.CounterVec

	DecryptFailures prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		CredentialsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credvault_credentials_issued_total",
			Help: "Total number of credentials issued",
		}),
		MintsConfirmed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credvault_mints_confirmed_total",
			Help: "Total number of on-chain mint confirmations applied",
		}),
		CredentialsRevoked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credvault_credentials_revoked_total",
			Help: "Total number of credentials revoked",
		}),
		ShareTokensCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credvault_share_tokens_created_total",
			Help: "Total number of share tokens minted",
		}),
		DisclosuresPaid: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credvault_disclosures_paid_total",
			Help: "Total number of successful pay exchanges (view tokens minted)",
		}),
		ReportsViewed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credvault_reports_viewed_total",
			Help: "Total number of full-report disclosures",
		}),
		ReportsUnavailable: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credvault_reports_unavailable_total",
			Help: "Total number of degraded views returning summary only",
		}),
		TokenRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "credvault_token_rejections_total",
			Help: "Disclosure attempts rejected, by reason",
		}, []string{"reason"}),
		DecryptFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "credvault_decrypt_failures_total",
			Help: "Report decryptions that failed authentication",
		}),
	}
}

// IncTokenRejection records a rejected disclosure attempt.
// Reason is one of: invalid_token, token_used, token_expired,
// credential_revoked, credential_expired.
func (m *Metrics) IncTokenRejection(reason string) {
	if m == nil {
		return
	}
	m.TokenRejections.WithLabelValues(reason).Inc()
}
