package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrder(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 7, time.Local)
	o, err := NewOrder("  alice  ", []Item{{RecipeID: "grape_juice", Quantity: 2}}, now)
	require.NoError(t, err)

	assert.NotEmpty(t, o.ID)
	assert.Equal(t, "alice", o.CustomerName)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, now.UTC(), o.SubmittedAt)
	assert.Nil(t, o.StartedAt)
	assert.Nil(t, o.EstimatedCompletion)
}

func TestNewOrderValidation(t *testing.T) {
	cases := []struct {
		name  string
		items []Item
	}{
		{"no items", nil},
		{"blank recipe", []Item{{RecipeID: "  ", Quantity: 1}}},
		{"zero quantity", []Item{{RecipeID: "grape_juice", Quantity: 0}}},
		{"negative quantity", []Item{{RecipeID: "grape_juice", Quantity: -1}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewOrder("alice", tc.items, time.Now())
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestNewOrderUniqueIDs(t *testing.T) {
	items := []Item{{RecipeID: "grape_juice", Quantity: 1}}
	a, err := NewOrder("alice", items, time.Now())
	require.NoError(t, err)
	b, err := NewOrder("alice", items, time.Now())
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusInProgress.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.True(t, StatusFailed.Terminal())
}
