// Package metrics holds the domain level prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	orderOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_operations_total",
			Help: "Total number of order operations",
		},
		[]string{"operation", "status"},
	)

	ordersExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_expired_total",
			Help: "Orders cancelled by the expiry reconciler",
		},
	)

	paymentVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verifications_total",
			Help: "Payment callbacks by verification result",
		},
		[]string{"result"},
	)

	notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Customer notifications by delivery result",
		},
		[]string{"result"},
	)
)

func RecordOrderOperation(operation string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	orderOperations.WithLabelValues(operation, status).Inc()
}

func AddOrdersExpired(n int) {
	ordersExpired.Add(float64(n))
}

func RecordPaymentVerification(result string) {
	paymentVerifications.WithLabelValues(result).Inc()
}

func RecordNotification(result string) {
	notifications.WithLabelValues(result).Inc()
}
