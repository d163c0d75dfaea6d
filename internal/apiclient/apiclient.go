// Package apiclient - HTTP-клиент сервиса для утилиты creditctl.
package apiclient

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-resty/resty/v2"

	"github.com/iurnickita/fuelcredit/internal/handler"
)

// APIError - ответ сервиса с кодом ошибки.
type APIError struct {
	Status  int
	Message string
	Details map[string]string
}

func (e *APIError) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("fuelcredit: %d %s", e.Status, e.Message)
	}
	return fmt.Sprintf("fuelcredit: %d %s %v", e.Status, e.Message, e.Details)
}

type Client interface {
	RegisterClient(req handler.PostClientJSONRequest) (handler.ClientJSONResponse, error)
	Statement(clientRef string) ([]handler.StatementLineJSONResponse, error)

	SubmitOrder(req handler.PostOrderJSONRequest) (handler.PostOrderJSONResponse, error)
	Approve(orderID string, req handler.PostApproveJSONRequest) (bool, error)
	GetOrder(orderID string) (handler.OrderViewJSONResponse, error)
	ApprovedOrders() ([]handler.OrderViewJSONResponse, error)

	RecordPayment(req handler.PostPaymentJSONRequest) (handler.PostPaymentJSONResponse, error)
	ConfirmPayment(paymentID, feedback string) error

	DebtForOrder(orderID string) (handler.DebtJSONResponse, error)
	DebtForClient(clientRef string) (handler.DebtJSONResponse, error)
	Debtors() ([]handler.DebtorJSONResponse, error)

	CreateBDC(req handler.PostBDCJSONRequest) (string, error)
	BDCTransaction(accountID string, req handler.PostBDCTransactionJSONRequest) (string, error)
	BDCHistory(accountID, start, end string) ([]handler.BDCTransactionJSONResponse, error)

	Dashboard() (handler.DashboardJSONResponse, error)
	DashboardDetails() (handler.DashboardDetailsJSONResponse, error)
	Settings() (handler.SettingsJSON, error)
	UpdateSettings(settings handler.SettingsJSON) error
}

type client struct {
	rc *resty.Client
}

// NewClient создает клиента сервиса по адресу serviceAddr ("http://host:port").
func NewClient(serviceAddr, token string) Client {
	rc := resty.New().
		SetBaseURL(serviceAddr).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json")
	return client{rc: rc}
}

// send выполняет запрос и раскладывает успешный ответ в result.
func (c client) send(method, path string, body, result any) error {
	var errResp handler.ErrorJSONResponse

	req := c.rc.R().SetError(&errResp)
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return err
	}

	if resp.IsError() {
		apiErr := &APIError{Status: resp.StatusCode(), Message: errResp.Error, Details: errResp.Details}
		if apiErr.Message == "" {
			apiErr.Message = resp.String()
		}
		return apiErr
	}
	return nil
}

func (c client) RegisterClient(req handler.PostClientJSONRequest) (handler.ClientJSONResponse, error) {
	var resp handler.ClientJSONResponse
	err := c.send(http.MethodPost, "/api/clients", req, &resp)
	return resp, err
}

func (c client) Statement(clientRef string) ([]handler.StatementLineJSONResponse, error) {
	var resp []handler.StatementLineJSONResponse
	err := c.send(http.MethodGet, "/api/clients/"+url.PathEscape(clientRef)+"/statement", nil, &resp)
	return resp, err
}

func (c client) SubmitOrder(req handler.PostOrderJSONRequest) (handler.PostOrderJSONResponse, error) {
	var resp handler.PostOrderJSONResponse
	err := c.send(http.MethodPost, "/api/orders", req, &resp)
	return resp, err
}

func (c client) Approve(orderID string, req handler.PostApproveJSONRequest) (bool, error) {
	var resp handler.PostApproveJSONResponse
	err := c.send(http.MethodPost, "/api/orders/"+orderID+"/approve", req, &resp)
	return resp.Approved, err
}

func (c client) GetOrder(orderID string) (handler.OrderViewJSONResponse, error) {
	var resp handler.OrderViewJSONResponse
	err := c.send(http.MethodGet, "/api/orders/"+orderID, nil, &resp)
	return resp, err
}

func (c client) ApprovedOrders() ([]handler.OrderViewJSONResponse, error) {
	var resp []handler.OrderViewJSONResponse
	err := c.send(http.MethodGet, "/api/orders/approved", nil, &resp)
	return resp, err
}

func (c client) RecordPayment(req handler.PostPaymentJSONRequest) (handler.PostPaymentJSONResponse, error) {
	var resp handler.PostPaymentJSONResponse
	err := c.send(http.MethodPost, "/api/payments", req, &resp)
	return resp, err
}

func (c client) ConfirmPayment(paymentID, feedback string) error {
	return c.send(http.MethodPost, "/api/payments/"+paymentID+"/confirm",
		handler.PostConfirmJSONRequest{Feedback: feedback}, nil)
}

func (c client) DebtForOrder(orderID string) (handler.DebtJSONResponse, error) {
	var resp handler.DebtJSONResponse
	err := c.send(http.MethodGet, "/api/debt?"+url.Values{"orderId": {orderID}}.Encode(), nil, &resp)
	return resp, err
}

func (c client) DebtForClient(clientRef string) (handler.DebtJSONResponse, error) {
	var resp handler.DebtJSONResponse
	err := c.send(http.MethodGet, "/api/debt?"+url.Values{"clientId": {clientRef}}.Encode(), nil, &resp)
	return resp, err
}

func (c client) Debtors() ([]handler.DebtorJSONResponse, error) {
	var resp []handler.DebtorJSONResponse
	err := c.send(http.MethodGet, "/api/debtors", nil, &resp)
	return resp, err
}

func (c client) CreateBDC(req handler.PostBDCJSONRequest) (string, error) {
	var resp handler.PostBDCJSONResponse
	err := c.send(http.MethodPost, "/api/bdc", req, &resp)
	return resp.AccountID, err
}

func (c client) BDCTransaction(accountID string, req handler.PostBDCTransactionJSONRequest) (string, error) {
	var resp handler.PostBDCTransactionJSONResponse
	err := c.send(http.MethodPost, "/api/bdc/"+accountID+"/transactions", req, &resp)
	return resp.NewBalance, err
}

func (c client) BDCHistory(accountID, start, end string) ([]handler.BDCTransactionJSONResponse, error) {
	var resp []handler.BDCTransactionJSONResponse
	err := c.send(http.MethodGet, "/api/bdc/"+url.PathEscape(accountID)+"/transactions?"+url.Values{"start": {start}, "end": {end}}.Encode(), nil, &resp)
	return resp, err
}

func (c client) Dashboard() (handler.DashboardJSONResponse, error) {
	var resp handler.DashboardJSONResponse
	err := c.send(http.MethodGet, "/api/dashboard", nil, &resp)
	return resp, err
}

func (c client) DashboardDetails() (handler.DashboardDetailsJSONResponse, error) {
	var resp handler.DashboardDetailsJSONResponse
	err := c.send(http.MethodGet, "/api/dashboard/details", nil, &resp)
	return resp, err
}

func (c client) Settings() (handler.SettingsJSON, error) {
	var resp handler.SettingsJSON
	err := c.send(http.MethodGet, "/api/settings", nil, &resp)
	return resp, err
}

func (c client) UpdateSettings(settings handler.SettingsJSON) error {
	return c.send(http.MethodPut, "/api/settings", settings, nil)
}
