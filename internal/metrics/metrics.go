package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RemindersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rmgw_reminders_total",
			Help: "Reminder recipient outcomes by event type",
		},
		[]string{"event", "outcome"}, // menu_created|menu_closing|initial_contact , sent|pending|failed|skipped
	)

	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rmgw_messages_total",
			Help: "Conversation messages by direction and status",
		},
		[]string{"direction", "status"}, // inbound|outbound , received|sent|failed
	)

	PendingSweptTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rmgw_pending_swept_total",
			Help: "Pending notification sweep results",
		},
		[]string{"result"}, // sent|expired|unchanged
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		RemindersTotal,
		MessagesTotal,
		PendingSweptTotal,
	)
}
