package token

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/iurnickita/fuelcredit/internal/model"
)

const secret = "test-secret"

func TestTokenRoundTrip(t *testing.T) {
	clientID := uuid.New()
	tok, err := BuildJWTString(secret, time.Hour, model.Caller{Role: model.RoleClient, ClientID: clientID})
	require.NoError(t, err)

	caller, err := GetCaller(secret, tok)
	require.NoError(t, err)
	require.Equal(t, model.RoleClient, caller.Role)
	require.Equal(t, clientID, caller.ClientID)

	tok, err = BuildJWTString(secret, time.Hour, model.Caller{Role: model.RoleAdmin})
	require.NoError(t, err)
	caller, err = GetCaller(secret, tok)
	require.NoError(t, err)
	require.True(t, caller.Staff())
}

func TestTokenRejected(t *testing.T) {
	tok, err := BuildJWTString(secret, time.Hour, model.Caller{Role: model.RoleAssistant})
	require.NoError(t, err)
	_, err = GetCaller("other-secret", tok)
	require.ErrorIs(t, err, ErrInvalidToken)

	expired, err := BuildJWTString(secret, -time.Minute, model.Caller{Role: model.RoleAdmin})
	require.NoError(t, err)
	_, err = GetCaller(secret, expired)
	require.ErrorIs(t, err, ErrInvalidToken)

	// клиент без идентификатора
	noClient, err := BuildJWTString(secret, time.Hour, model.Caller{Role: model.RoleClient})
	require.NoError(t, err)
	_, err = GetCaller(secret, noClient)
	require.ErrorIs(t, err, ErrInvalidToken)

	unknown, err := BuildJWTString(secret, time.Hour, model.Caller{Role: "driver"})
	require.NoError(t, err)
	_, err = GetCaller(secret, unknown)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = GetCaller(secret, "not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}
