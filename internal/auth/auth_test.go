package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/iurnickita/fuelcredit/internal/auth/config"
	"github.com/iurnickita/fuelcredit/internal/model"
)

func TestMiddleware(t *testing.T) {
	a := NewAuth(config.Config{SecretKey: "secret", TokenTTL: time.Hour})

	var got model.Caller
	h := a.Middleware(func(w http.ResponseWriter, r *http.Request) {
		got, _ = CallerFrom(r.Context())
	}, model.RoleAdmin, model.RoleAssistant)

	// без токена
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// роль не подходит
	clientTok, err := a.IssueToken(model.Caller{Role: model.RoleClient, ClientID: uuid.New()})
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+clientTok)
	w = httptest.NewRecorder()
	h(w, r)
	require.Equal(t, http.StatusForbidden, w.Code)

	// кука
	staffTok, err := a.IssueToken(model.Caller{Role: model.RoleAssistant})
	require.NoError(t, err)
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: CookieUserToken, Value: staffTok})
	w = httptest.NewRecorder()
	h(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, model.RoleAssistant, got.Role)
}
