package order

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("paid")
	assert.NoError(t, err)
	assert.Equal(t, StatusPaid, s)

	_, err = ParseStatus("PAID")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestStatus_NoTransitionOutOfTerminal(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())
	all := []Status{StatusPending, StatusPaid, StatusFailed}
	status := gen.IntRange(0, len(all)-1)

	properties.Property("terminal states are final", prop.ForAll(
		func(i, j int) bool {
			from, to := all[i], all[j]
			if from.IsTerminal() {
				return !from.CanTransitionTo(to)
			}

			return from.CanTransitionTo(to) == to.IsTerminal()
		},
		status, status,
	))

	properties.TestingRun(t)
}
