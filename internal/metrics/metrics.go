package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RegistrationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campauth_registrations_total",
		Help: "Completed user registrations.",
	})

	LoginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campauth_logins_total",
		Help: "Login attempts by method and result.",
	}, []string{"method", "result"})

	EmailsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campauth_emails_sent_total",
		Help: "Outbound emails by kind and result.",
	}, []string{"kind", "result"})
)
