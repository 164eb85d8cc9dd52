package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cczslater/sellbuydeal-sub000/internal/store"
	"github.com/cczslater/sellbuydeal-sub000/internal/store/memory"
	"github.com/cczslater/sellbuydeal-sub000/internal/store/storetest"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return memory.New() })
}

func TestCancelledContextCommitsNothing(t *testing.T) {
	st := memory.New()
	ctx, cancel := context.WithCancel(context.Background())

	err := st.WithTx(ctx, func(tx store.Tx) error {
		settings, err := tx.GetGatewaySettings(ctx)
		if err != nil {
			return err
		}
		settings.GatewayEnabled = false
		if err := tx.SaveGatewaySettings(ctx, settings); err != nil {
			return err
		}
		cancel()
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)

	require.NoError(t, st.WithTx(context.Background(), func(tx store.Tx) error {
		settings, err := tx.GetGatewaySettings(context.Background())
		require.NoError(t, err)
		assert.True(t, settings.GatewayEnabled)
		return nil
	}))
}

func TestWithClockStampsSeededRows(t *testing.T) {
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	st := memory.New(memory.WithClock(func() time.Time { return at }))

	require.NoError(t, st.WithTx(context.Background(), func(tx store.Tx) error {
		settings, err := tx.GetGatewaySettings(context.Background())
		require.NoError(t, err)
		assert.Equal(t, at, settings.UpdatedAt)
		return nil
	}))
}
