package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentdesk_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentdesk_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "route"},
	)

	HandoffActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentdesk_handoff_actions_total",
			Help: "Take and release actions",
		},
		[]string{"action"},
	)

	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentdesk_whatsapp_messages_sent_total",
			Help: "Outbound WhatsApp messages by result",
		},
		[]string{"type", "result"},
	)

	MessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "agentdesk_whatsapp_messages_received_total",
			Help: "Inbound WhatsApp messages",
		},
	)

	LeadsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentdesk_leads_processed_total",
			Help: "Leads by final pipeline status",
		},
		[]string{"status"},
	)

	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "agentdesk_websocket_clients",
			Help: "Connected realtime clients",
		},
	)

	PollRounds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentdesk_inbox_poll_rounds_total",
			Help: "Inbox polling rounds by outcome",
		},
		[]string{"outcome"},
	)
)
