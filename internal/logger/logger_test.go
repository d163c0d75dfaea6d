package logger

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iurnickita/fuelcredit/internal/logger/config"
)

func TestNewZapLog(t *testing.T) {
	zl, err := NewZapLog(config.Config{LogLevel: "debug"})
	require.NoError(t, err)
	require.True(t, zl.Core().Enabled(zapcore.DebugLevel))

	_, err = NewZapLog(config.Config{LogLevel: "loud"})
	require.Error(t, err)
}

func TestRequestLogMdlw(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	zl := zap.New(core)

	h := RequestLogMdlw(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusTeapot)
		w.Write(body)
	}, zl)

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader("hello")))

	require.Equal(t, http.StatusTeapot, w.Code)
	require.Equal(t, "hello", w.Body.String())

	served := logs.FilterMessage("HTTP request served").All()
	require.Len(t, served, 1)
	ctx := served[0].ContextMap()
	require.Equal(t, int64(http.StatusTeapot), ctx["status"])
	require.Equal(t, int64(5), ctx["length"])
	require.Equal(t, "/api/orders", ctx["path"])
}
