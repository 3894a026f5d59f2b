package order

import "errors"

// Status is the payment state of an order.
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusFailed  Status = "failed"
)

var ErrInvalidStatus = errors.New("invalid order status")

func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is allowed from s.
func (s Status) IsTerminal() bool {
	return s == StatusPaid || s == StatusFailed
}

// CanTransitionTo reports whether the state machine allows s -> next.
// Only pending moves, and only to a terminal state.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusPending && next.IsTerminal()
}

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusPaid, StatusFailed:
		return st, nil
	default:
		return "", ErrInvalidStatus
	}
}
