package auditlog

import "time"

// OrderStatusAudit records a privileged change of an order's status or payment id.
type OrderStatusAudit struct {
	ID            int64     `json:"id"`
	OrderID       int64     `json:"order_id"`
	ActorID       int64     `json:"actor_id"`
	FromStatus    string    `json:"from_status"`
	ToStatus      string    `json:"to_status"`
	FromPaymentID string    `json:"from_payment_id"`
	ToPaymentID   string    `json:"to_payment_id"`
	CreatedAt     time.Time `json:"created_at"`
}
