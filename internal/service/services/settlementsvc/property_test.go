package settlementsvc

import (
	"context"
	"testing"

	"github.com/corray333/backend-labs/checkout/internal/service/models/order"
	"github.com/corray333/backend-labs/checkout/internal/service/models/orderitem"
	"github.com/corray333/backend-labs/checkout/internal/service/payment"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Whatever sequence of notifications arrives, the first terminal outcome
// decides the order and stock moves at most once.
func TestSettle_FirstTerminalOutcomeWins(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 60
	properties := gopter.NewProperties(parameters)

	vocabulary := []payment.Outcome{payment.OutcomePending, payment.OutcomeSucceeded, payment.OutcomeFailed}
	outcomes := gen.SliceOf(gen.IntRange(0, len(vocabulary)-1))

	properties.Property("status follows the first terminal outcome", prop.ForAll(
		func(picks []int) bool {
			seq := make([]payment.Outcome, len(picks))
			for i, p := range picks {
				seq[i] = vocabulary[p]
			}

			f := newFixture(t, map[string]int{"A": 3})
			o := f.pendingOrder(t, nil, orderitem.OrderItem{ProductID: "A", Quantity: 2})
			svc := f.service()

			want := order.StatusPending
			for _, out := range seq {
				if out.IsTerminal() {
					want = out.OrderStatus()

					break
				}
			}

			for _, out := range seq {
				if _, err := svc.Settle(context.Background(), payment.Notification{OrderID: o.ID, Outcome: out}); err != nil {
					return false
				}
			}

			wantStock := 3
			if want == order.StatusPaid {
				wantStock = 1
			}
			wantEvents := 0
			if want.IsTerminal() {
				wantEvents = 1
			}

			return f.order(t, o.ID).Status == want &&
				f.stock(t, "A") == wantStock &&
				len(f.publisher.events) == wantEvents
		},
		outcomes,
	))

	properties.TestingRun(t)
}
