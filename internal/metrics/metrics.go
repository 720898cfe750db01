package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "creator_xp_build_info",
			Help: "Build information of the creator-xp service",
		},
		[]string{"version", "commit", "date"},
	)

	// result: awarded, no_email, unmapped, malformed, unauthorized, error
	WebhooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creator_xp_webhooks_total",
			Help: "Total number of purchase events handled, by outcome",
		},
		[]string{"source", "result"},
	)

	XPAwardedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "creator_xp_xp_awarded_total",
			Help: "Total XP awarded across all members",
		},
	)

	MappingsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "creator_xp_mappings_total",
			Help: "Total number of email to member mappings written",
		},
	)

	// action: created, edited, recreated
	LeaderboardPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creator_xp_leaderboard_publish_total",
			Help: "Total number of leaderboard publishes, by action",
		},
		[]string{"action"},
	)

	// status: sent, skipped, failed
	WelcomeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creator_xp_welcome_total",
			Help: "Total number of welcome attempts, by status",
		},
		[]string{"status"},
	)

	GatewayErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creator_xp_gateway_errors_total",
			Help: "Total number of failed gateway calls",
		},
		[]string{"operation"},
	)
)
