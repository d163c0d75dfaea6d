package apiclient

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/iurnickita/fuelcredit/internal/auth"
	authConfig "github.com/iurnickita/fuelcredit/internal/auth/config"
	"github.com/iurnickita/fuelcredit/internal/handler"
	"github.com/iurnickita/fuelcredit/internal/model"
	"github.com/iurnickita/fuelcredit/internal/service"
	serviceConfig "github.com/iurnickita/fuelcredit/internal/service/config"
	"github.com/iurnickita/fuelcredit/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, auth.Auth) {
	t.Helper()
	zaplog := zaptest.NewLogger(t)
	a := auth.NewAuth(authConfig.Config{SecretKey: "test-secret", TokenTTL: time.Hour})
	svc := service.NewService(serviceConfig.Config{ClientCodePrefix: "TT"}, store.NewMemStore(), zaplog)
	srv := httptest.NewServer(handler.NewRouter(a, svc, zaplog))
	t.Cleanup(srv.Close)
	return srv, a
}

func TestClient(t *testing.T) {
	srv, a := newTestServer(t)
	tok, err := a.IssueToken(model.Caller{Role: model.RoleAdmin})
	require.NoError(t, err)
	c := NewClient(srv.URL, tok)

	registered, err := c.RegisterClient(handler.PostClientJSONRequest{Name: "Kwame Mensah", Phone: "0244000123"})
	require.NoError(t, err)

	created, err := c.SubmitOrder(handler.PostOrderJSONRequest{
		ClientID:      registered.Code,
		Product:       "PMS",
		VehicleNumber: "AS-221-19",
		DriverName:    "Ama",
		DriverPhone:   "0277000000",
		Quantity:      "2000",
		Region:        "Ashanti",
	})
	require.NoError(t, err)

	approved, err := c.Approve(created.OrderID, handler.PostApproveJSONRequest{
		OMC:       "Star Oil",
		BDC:       "Juwel",
		Depot:     "Kumasi",
		PBdcOmc:   "10.50",
		SBdcOmc:   "11.00",
		Margin:    "0.50",
		Tax:       "0.10",
		TotalDebt: "5000",
		DueDate:   "2026-12-31",
	})
	require.NoError(t, err)
	require.True(t, approved)

	paid, err := c.RecordPayment(handler.PostPaymentJSONRequest{
		ClientID: registered.ID,
		Amount:   "6000",
		BankName: "Ecobank",
		ProofURL: "https://proofs.example/eco.jpg",
	})
	require.NoError(t, err)
	require.NoError(t, c.ConfirmPayment(paid.PaymentID, "ok"))

	// переплата: остаток не уходит в минус
	debt, err := c.DebtForClient(registered.Code)
	require.NoError(t, err)
	require.Equal(t, "0.00", debt.AmountLeft)
	require.Equal(t, "1000.00", debt.Overpaid)

	debt, err = c.DebtForOrder(created.OrderID)
	require.NoError(t, err)
	require.Equal(t, "6000.00", debt.AmountPaid)

	lines, err := c.Statement(registered.Code)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, "1000.00", lines[0].Returns)

	require.NoError(t, c.UpdateSettings(handler.SettingsJSON{ViewDashboard: true, ApproveOrders: true}))
	views, err := c.ApprovedOrders()
	require.NoError(t, err)
	require.Len(t, views, 1)

	dash, err := c.Dashboard()
	require.NoError(t, err)
	require.Equal(t, "100.0", dash.ApprovalRate)
	require.Equal(t, "6000.00", dash.TotalPaid)

	details, err := c.DashboardDetails()
	require.NoError(t, err)
	require.Len(t, details.TopClients, 1)
	require.Equal(t, registered.Code, details.TopClients[0].ClientCode)
	require.NotEmpty(t, details.RecentActivities)
	require.Equal(t, "6000.00", details.TotalPaid)
}

func TestClientBDC(t *testing.T) {
	srv, a := newTestServer(t)
	tok, err := a.IssueToken(model.Caller{Role: model.RoleAssistant})
	require.NoError(t, err)
	c := NewClient(srv.URL, tok)

	id, err := c.CreateBDC(handler.PostBDCJSONRequest{Name: "Juwel", Phone: "0302000000", Location: "Tema"})
	require.NoError(t, err)

	balance, err := c.BDCTransaction(id, handler.PostBDCTransactionJSONRequest{Amount: "250.75", Type: "add"})
	require.NoError(t, err)
	require.Equal(t, "250.75", balance)

	history, err := c.BDCHistory(id, "2000-01-01", "")
	require.NoError(t, err)
	require.Len(t, history, 1)

	// несуществующий тип операции
	_, err = c.BDCTransaction(id, handler.PostBDCTransactionJSONRequest{Amount: "1", Type: "transfer"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusBadRequest, apiErr.Status)
	require.Equal(t, "invalid", apiErr.Details["type"])

	// ассистенту настройки недоступны
	_, err = c.Settings()
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusForbidden, apiErr.Status)
}
