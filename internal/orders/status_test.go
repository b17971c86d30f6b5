package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	all := []Status{StatusPending, StatusPaid, StatusPacked, StatusCollected}
	allowed := map[[2]Status]bool{
		{StatusPending, StatusPaid}:      true,
		{StatusPaid, StatusPacked}:      true,
		{StatusPacked, StatusCollected}: true,
	}
	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]Status{from, to}]
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
	assert.False(t, CanTransition(StatusPending, "cancelled"))
	assert.False(t, CanTransition("", StatusPaid))
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusPacked.Valid())
	assert.False(t, Status("shipped").Valid())
}
