package auth

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/iurnickita/fuelcredit/internal/auth/config"
	"github.com/iurnickita/fuelcredit/internal/model"
	"github.com/iurnickita/fuelcredit/internal/token"
)

type Auth interface {
	Middleware(h http.HandlerFunc, roles ...model.Role) http.HandlerFunc
	IssueToken(caller model.Caller) (string, error)
}

const (
	CookieUserToken = "fuelcreditToken"
	headerAuth      = "Authorization"
)

var ErrNoToken = errors.New("no token")

type callerKey struct{}

type auth struct {
	cfg config.Config
}

func NewAuth(cfg config.Config) Auth {
	return &auth{cfg: cfg}
}

// Middleware пропускает запрос, если токен валиден и роль входит в roles
// (пустой список - любая роль). Вызывающая сторона кладется в контекст запроса.
func (a *auth) Middleware(h http.HandlerFunc, roles ...model.Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// получение вызывающей стороны
		caller, err := a.getCaller(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		if len(roles) > 0 && !slices.Contains(roles, caller.Role) {
			http.Error(w, "access denied", http.StatusForbidden)
			return
		}

		// передаём управление хендлеру
		h.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
	}
}

func (a *auth) IssueToken(caller model.Caller) (string, error) {
	return token.BuildJWTString(a.cfg.SecretKey, a.cfg.TokenTTL, caller)
}

func (a *auth) getCaller(r *http.Request) (model.Caller, error) {
	// заголовок Authorization: Bearer <token>, иначе кука
	var tokenString string
	if h := r.Header.Get(headerAuth); strings.HasPrefix(h, "Bearer ") {
		tokenString = strings.TrimPrefix(h, "Bearer ")
	} else {
		tokenCookie, err := r.Cookie(CookieUserToken)
		if err != nil {
			return model.Caller{}, ErrNoToken
		}
		tokenString = tokenCookie.Value
	}
	return token.GetCaller(a.cfg.SecretKey, tokenString)
}

func WithCaller(ctx context.Context, caller model.Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// CallerFrom возвращает вызывающую сторону, записанную middleware.
func CallerFrom(ctx context.Context) (model.Caller, bool) {
	caller, ok := ctx.Value(callerKey{}).(model.Caller)
	return caller, ok
}
