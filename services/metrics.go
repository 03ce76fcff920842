package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	blueprintRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medspa_blueprint_requests_total",
			Help: "Blueprint generation requests by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)
	rateLimitRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medspa_rate_limit_rejections_total",
			Help: "Requests rejected by the hourly rate limiter",
		},
		[]string{"feature"},
	)
	rateLimitErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medspa_rate_limit_errors_total",
			Help: "Counter backend failures that were allowed through",
		},
		[]string{"feature"},
	)
	smsSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medspa_sms_sent_total",
			Help: "SMS send attempts by outcome",
		},
		[]string{"outcome"},
	)
	emailSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medspa_email_sent_total",
			Help: "Email send attempts by outcome",
		},
		[]string{"outcome"},
	)
	leadsCapturedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medspa_leads_captured_total",
			Help: "Leads captured by source",
		},
		[]string{"source"},
	)
)

func init() {
	prometheus.MustRegister(blueprintRequestsTotal)
	prometheus.MustRegister(rateLimitRejectionsTotal)
	prometheus.MustRegister(rateLimitErrorsTotal)
	prometheus.MustRegister(smsSentTotal)
	prometheus.MustRegister(emailSentTotal)
	prometheus.MustRegister(leadsCapturedTotal)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
