package payment_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/bakongpay/internal/payment"
)

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	settings := configuredSettings()
	gw := newOrchestrator(settings, &fakeQR{}, newMemStore())

	reg := payment.NewRegistry()
	require.NoError(t, reg.Register(ctx, gw))
	assert.Error(t, reg.Register(ctx, gw), "duplicate id must be rejected")

	got, ok := reg.Get(payment.GatewayID)
	require.True(t, ok)
	assert.Same(t, gw, got)

	_, ok = reg.Get("cash_on_delivery")
	assert.False(t, ok)

	list := reg.List(ctx, false)
	require.Len(t, list, 1)
	assert.Equal(t, payment.GatewayID, list[0].ID)

	settings.settings.Enabled = false
	assert.Empty(t, reg.List(ctx, false))
	assert.Len(t, reg.List(ctx, true), 1)
}
