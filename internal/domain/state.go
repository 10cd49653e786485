package domain

var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled, StatusRefunded},
	StatusProcessing: {StatusShipped},
	StatusShipped:    {StatusDelivered},
}

// IsPaidState reports whether the status can only be reached after payment.
func (s OrderStatus) IsPaidState() bool {
	switch s {
	case StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered:
		return true
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusCancelled, StatusRefunded, StatusPartiallyRefunded:
		return true
	}
	return false
}

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusProcessing, StatusShipped,
		StatusDelivered, StatusCancelled, StatusRefunded, StatusPartiallyRefunded:
		return true
	}
	return false
}

// CanTransitionTo checks the order state machine. Refund targets are
// reachable from every paid state.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if next == StatusRefunded || next == StatusPartiallyRefunded {
		return s.IsPaidState()
	}
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CheckRefundable guards the admin refund path.
func (o *Order) CheckRefundable() error {
	switch o.PaymentStatus {
	case PaymentRefunded, PaymentPartiallyRefunded:
		return ErrAlreadyRefunded
	case PaymentPaid:
	default:
		return ErrNotPaid
	}
	if !o.Status.CanTransitionTo(StatusRefunded) {
		return ErrInvalidTransition
	}
	return nil
}

// CheckCancellable guards customer and admin cancellation. A paid order
// must go through the refund path.
func (o *Order) CheckCancellable() error {
	if o.PaymentStatus == PaymentPaid {
		return ErrRefundRequired
	}
	if !o.Status.CanTransitionTo(StatusCancelled) {
		return ErrInvalidTransition
	}
	return nil
}
