package domain

// NotificationTemplate keys the customer message catalog.
type NotificationTemplate string

const (
	NotifyWelcome           NotificationTemplate = "welcome"
	NotifyOrderPaid         NotificationTemplate = "order_paid"
	NotifyOrderRefunded     NotificationTemplate = "order_refunded"
	NotifyOrderExpired      NotificationTemplate = "order_expired"
	NotifyOrderCancelled    NotificationTemplate = "order_cancelled"
	NotifyPasswordResetCode NotificationTemplate = "password_reset_code"
)
