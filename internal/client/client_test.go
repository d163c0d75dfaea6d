package client

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/iurnickita/fuelcredit/internal/apperr"
	"github.com/iurnickita/fuelcredit/internal/store"
)

func TestCode(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, "TT25123", Code("TT", now, "024 400-0123"))
	require.Equal(t, "TT25007", Code("TT", now, "7"))
}

func TestRegisterAndResolve(t *testing.T) {
	ctx := context.Background()
	reg := &registry{
		store:  store.NewMemStore(),
		prefix: "TT",
		now:    func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) },
	}

	first, err := reg.Register(ctx, "Kwame Mensah", "0244000123")
	require.NoError(t, err)
	require.Equal(t, "TT25123", first.Code)

	// тот же хвост номера - код с суффиксом
	second, err := reg.Register(ctx, "Abena Owusu", "0555111123")
	require.NoError(t, err)
	require.Equal(t, "TT251231", second.Code)

	got, err := reg.Resolve(ctx, "tt25123")
	require.NoError(t, err)
	require.Equal(t, first.ID, got.ID)

	got, err = reg.Resolve(ctx, second.ID.String())
	require.NoError(t, err)
	require.Equal(t, second.Code, got.Code)

	_, err = reg.Resolve(ctx, "TT99999")
	require.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = reg.Resolve(ctx, uuid.NewString())
	require.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = reg.Resolve(ctx, " ")
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = reg.Register(ctx, "", "0244")
	require.ErrorIs(t, err, apperr.ErrValidation)

	n, err := reg.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}
