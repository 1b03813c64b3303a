package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersCreated counts orders successfully assembled during checkout.
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "studio",
		Subsystem: "checkout",
		Name:      "orders_created_total",
		Help:      "Number of orders created through checkout.",
	})

	// PaymentVerifications counts verification attempts by outcome.
	PaymentVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "studio",
		Subsystem: "checkout",
		Name:      "payment_verifications_total",
		Help:      "Payment verification attempts partitioned by result.",
	}, []string{"result"})

	// CheckoutFailures counts checkout requests that ended in an error response.
	CheckoutFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "studio",
		Subsystem: "checkout",
		Name:      "checkout_failures_total",
		Help:      "Number of checkout requests that failed.",
	})
)

// Verification result label values.
const (
	ResultVerified  = "verified"
	ResultRejected  = "rejected"
	ResultDuplicate = "duplicate"
	ResultError     = "error"
)
