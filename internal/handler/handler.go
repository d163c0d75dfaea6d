package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iurnickita/fuelcredit/internal/apperr"
	"github.com/iurnickita/fuelcredit/internal/auth"
	"github.com/iurnickita/fuelcredit/internal/gzip"
	"github.com/iurnickita/fuelcredit/internal/handler/config"
	"github.com/iurnickita/fuelcredit/internal/logger"
	"github.com/iurnickita/fuelcredit/internal/model"
	"github.com/iurnickita/fuelcredit/internal/order"
	"github.com/iurnickita/fuelcredit/internal/service"
)

func Serve(cfg config.Config, auth auth.Auth, service service.Service, zaplog *zap.Logger) error {
	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: NewRouter(auth, service, zaplog),
	}

	zaplog.Info("server started", zap.String("addr", cfg.ServerAddr))
	return srv.ListenAndServe()
}

// NewRouter возвращает маршрутизатор API со всеми middleware.
func NewRouter(auth auth.Auth, service service.Service, zaplog *zap.Logger) http.Handler {
	return newHandler(auth, service, zaplog).newRouter()
}

type handler struct {
	auth    auth.Auth
	service service.Service
	zaplog  *zap.Logger
}

func newHandler(auth auth.Auth, service service.Service, zaplog *zap.Logger) *handler {
	return &handler{
		auth:    auth,
		service: service,
		zaplog:  zaplog,
	}
}

var (
	anyRole = []model.Role{}
	staff   = []model.Role{model.RoleAdmin, model.RoleAssistant}
	admin   = []model.Role{model.RoleAdmin}
)

func (h *handler) newRouter() *http.ServeMux {
	mux := http.NewServeMux()
	h.handle(mux, "POST /api/clients", h.PostClient, staff)
	h.handle(mux, "GET /api/clients/{id}/statement", h.GetStatement, anyRole)

	h.handle(mux, "POST /api/orders", h.PostOrder, anyRole)
	h.handle(mux, "GET /api/orders/approved", h.GetApprovedOrders, staff)
	h.handle(mux, "GET /api/orders/{id}", h.GetOrder, anyRole)
	h.handle(mux, "POST /api/orders/{id}/approve", h.PostApprove, staff)

	h.handle(mux, "POST /api/payments", h.PostPayment, anyRole)
	h.handle(mux, "POST /api/payments/{id}/confirm", h.PostConfirm, staff)

	h.handle(mux, "GET /api/debt", h.GetDebt, anyRole)
	h.handle(mux, "GET /api/debtors", h.GetDebtors, staff)

	h.handle(mux, "POST /api/bdc", h.PostBDC, staff)
	h.handle(mux, "GET /api/bdc", h.GetBDCAccounts, staff)
	h.handle(mux, "GET /api/bdc/{id}/verify", h.GetBDCVerify, staff)
	h.handle(mux, "POST /api/bdc/{id}/transactions", h.PostBDCTransaction, staff)
	h.handle(mux, "GET /api/bdc/{id}/transactions", h.GetBDCTransactions, staff)

	h.handle(mux, "GET /api/dashboard", h.GetDashboard, staff)
	h.handle(mux, "GET /api/dashboard/details", h.GetDashboardDetails, staff)
	h.handle(mux, "GET /api/settings", h.GetSettings, admin)
	h.handle(mux, "PUT /api/settings", h.PutSettings, admin)

	return mux
}

// handle: gzip -> лог запроса -> проверка токена и роли -> хендлер
func (h *handler) handle(mux *http.ServeMux, pattern string, hf http.HandlerFunc, roles []model.Role) {
	mux.HandleFunc(pattern, gzip.GzipMiddleware(logger.RequestLogMdlw(h.auth.Middleware(hf, roles...), h.zaplog)))
}

// Клиенты

type PostClientJSONRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type ClientJSONResponse struct {
	ID             string    `json:"id"`
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	Phone          string    `json:"phone"`
	Status         string    `json:"status"`
	DateRegistered time.Time `json:"dateRegistered"`
}

func (h *handler) PostClient(w http.ResponseWriter, r *http.Request) {
	var req PostClientJSONRequest
	if !h.decode(w, r, &req) {
		return
	}
	client, err := h.service.RegisterClient(r.Context(), req.Name, req.Phone)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, clientResponse(client))
}

type StatementLineJSONResponse struct {
	Order   OrderJSONResponse `json:"order"`
	Returns string            `json:"returns"`
	Debt    DebtJSONResponse  `json:"debt"`
}

func (h *handler) GetStatement(w http.ResponseWriter, r *http.Request) {
	lines, err := h.service.ClientStatement(r.Context(), caller(r), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	resp := make([]StatementLineJSONResponse, 0, len(lines))
	for _, line := range lines {
		resp = append(resp, StatementLineJSONResponse{
			Order:   orderResponse(line.Order),
			Returns: line.Returns.StringFixed(2),
			Debt:    debtResponse(line.Debt),
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Заказы

type PostOrderJSONRequest struct {
	ClientID      string   `json:"clientId"`
	Product       string   `json:"product"`
	VehicleNumber string   `json:"vehicleNumber"`
	DriverName    string   `json:"driverName"`
	DriverPhone   string   `json:"driverPhone"`
	Quantity      RawValue `json:"quantity"`
	Region        string   `json:"region"`
}

type PostOrderJSONResponse struct {
	OrderID string `json:"orderId"`
	Number  string `json:"number"`
}

func (h *handler) PostOrder(w http.ResponseWriter, r *http.Request) {
	var req PostOrderJSONRequest
	if !h.decode(w, r, &req) {
		return
	}
	o, err := h.service.SubmitOrder(r.Context(), caller(r), service.SubmitOrderRequest{
		Client:        req.ClientID,
		Product:       req.Product,
		VehicleNumber: req.VehicleNumber,
		DriverName:    req.DriverName,
		DriverPhone:   req.DriverPhone,
		Quantity:      string(req.Quantity),
		Region:        req.Region,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, PostOrderJSONResponse{OrderID: o.ID.String(), Number: o.Number})
}

type PostApproveJSONRequest struct {
	OMC       string   `json:"omc"`
	BDC       string   `json:"bdc"`
	Depot     string   `json:"depot"`
	PBdcOmc   RawValue `json:"pBdcOmc"`
	SBdcOmc   RawValue `json:"sBdcOmc"`
	Margin    RawValue `json:"margin"`
	Tax       RawValue `json:"tax"`
	TotalDebt RawValue `json:"totalDebt"`
	DueDate   string   `json:"dueDate"`
}

type PostApproveJSONResponse struct {
	Approved bool `json:"approved"`
}

func (h *handler) PostApprove(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "order")
	if !ok {
		return
	}
	var req PostApproveJSONRequest
	if !h.decode(w, r, &req) {
		return
	}
	approved, err := h.service.UpdateAndApprove(r.Context(), id, order.PricingRequest{
		OMC:       req.OMC,
		BDC:       req.BDC,
		Depot:     req.Depot,
		PBdcOmc:   string(req.PBdcOmc),
		SBdcOmc:   string(req.SBdcOmc),
		Margin:    string(req.Margin),
		Tax:       string(req.Tax),
		TotalDebt: string(req.TotalDebt),
		DueDate:   req.DueDate,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, PostApproveJSONResponse{Approved: approved})
}

type OrderJSONResponse struct {
	ID            string    `json:"id"`
	Number        string    `json:"number"`
	ClientID      string    `json:"clientId"`
	ClientCode    string    `json:"clientCode,omitempty"`
	ClientName    string    `json:"clientName,omitempty"`
	Product       string    `json:"product"`
	VehicleNumber string    `json:"vehicleNumber"`
	DriverName    string    `json:"driverName"`
	DriverPhone   string    `json:"driverPhone"`
	Quantity      int64     `json:"quantity"`
	Region        string    `json:"region"`
	Status        string    `json:"status"`
	Date          time.Time `json:"date"`
	OMC           string    `json:"omc,omitempty"`
	BDC           string    `json:"bdc,omitempty"`
	Depot         string    `json:"depot,omitempty"`
	PBdcOmc       *string   `json:"pBdcOmc"`
	SBdcOmc       *string   `json:"sBdcOmc"`
	Margin        *string   `json:"margin"`
	Tax           *string   `json:"tax"`
	TotalDebt     *string   `json:"totalDebt"`
	DueDate       *string   `json:"dueDate"`
}

type OrderViewJSONResponse struct {
	OrderJSONResponse
	Returns string           `json:"returns"`
	Debt    DebtJSONResponse `json:"debt"`
}

func (h *handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "order")
	if !ok {
		return
	}
	view, err := h.service.GetOrder(r.Context(), caller(r), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, orderViewResponse(view))
}

func (h *handler) GetApprovedOrders(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.Settings(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	views, err := h.service.ApprovedOrders(r.Context(), settings)
	if err != nil {
		h.writeError(w, err)
		return
	}
	resp := make([]OrderViewJSONResponse, 0, len(views))
	for _, view := range views {
		resp = append(resp, orderViewResponse(view))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Платежи

type PostPaymentJSONRequest struct {
	ClientID    string   `json:"clientId"`
	OrderID     string   `json:"orderId"`
	OrderNumber string   `json:"orderNumber"`
	Amount      RawValue `json:"amount"`
	BankName    string   `json:"bankName"`
	ProofURL    string   `json:"proofUrl"`
}

type PostPaymentJSONResponse struct {
	PaymentID string `json:"paymentId"`
	OrderID   string `json:"orderId"`
}

func (h *handler) PostPayment(w http.ResponseWriter, r *http.Request) {
	var req PostPaymentJSONRequest
	if !h.decode(w, r, &req) {
		return
	}
	var orderID uuid.UUID
	if req.OrderID != "" {
		id, err := uuid.Parse(req.OrderID)
		if err != nil {
			h.writeError(w, apperr.Violations{"orderId": "invalid"}.Err("invalid order reference"))
			return
		}
		orderID = id
	}
	p, err := h.service.RecordPayment(r.Context(), caller(r), service.RecordPaymentRequest{
		Client:      req.ClientID,
		OrderID:     orderID,
		OrderNumber: req.OrderNumber,
		Amount:      string(req.Amount),
		BankName:    req.BankName,
		ProofURL:    req.ProofURL,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, PostPaymentJSONResponse{PaymentID: p.ID.String(), OrderID: p.OrderID.String()})
}

type PostConfirmJSONRequest struct {
	Feedback string `json:"feedback"`
}

type OKJSONResponse struct {
	OK bool `json:"ok"`
}

func (h *handler) PostConfirm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "payment")
	if !ok {
		return
	}
	var req PostConfirmJSONRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}
	if _, err := h.service.ConfirmPayment(r.Context(), id, req.Feedback); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, OKJSONResponse{OK: true})
}

// Задолженность

type DebtJSONResponse struct {
	OrderID    string `json:"orderId"`
	TotalDebt  string `json:"totalDebt"`
	AmountPaid string `json:"amountPaid"`
	AmountLeft string `json:"amountLeft"`
	Overpaid   string `json:"overpaid"`
}

func (h *handler) GetDebt(w http.ResponseWriter, r *http.Request) {
	var (
		snap model.DebtSnapshot
		err  error
	)
	query := r.URL.Query()
	switch {
	case query.Get("orderId") != "":
		id, perr := uuid.Parse(query.Get("orderId"))
		if perr != nil {
			h.writeError(w, apperr.NotFound("order", query.Get("orderId")))
			return
		}
		snap, err = h.service.ReconcileOrder(r.Context(), caller(r), id)
	case query.Get("clientId") != "" || caller(r).Role == model.RoleClient:
		snap, err = h.service.ReconcileClient(r.Context(), caller(r), query.Get("clientId"))
	default:
		h.writeError(w, apperr.Invalid("orderId or clientId is required"))
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, debtResponse(snap))
}

type DebtorPaymentJSONResponse struct {
	Date   time.Time `json:"date"`
	Amount string    `json:"amount"`
}

type DebtorJSONResponse struct {
	Client   ClientJSONResponse          `json:"client"`
	Order    OrderJSONResponse           `json:"order"`
	Debt     DebtJSONResponse            `json:"debt"`
	Payments []DebtorPaymentJSONResponse `json:"payments"`
}

func (h *handler) GetDebtors(w http.ResponseWriter, r *http.Request) {
	debtors, err := h.service.Debtors(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	resp := make([]DebtorJSONResponse, 0, len(debtors))
	for _, d := range debtors {
		payments := make([]DebtorPaymentJSONResponse, 0, len(d.Payments))
		for _, p := range d.Payments {
			payments = append(payments, DebtorPaymentJSONResponse{Date: p.Date, Amount: p.Amount.StringFixed(2)})
		}
		resp = append(resp, DebtorJSONResponse{
			Client:   clientResponse(d.Client),
			Order:    orderResponse(d.Order),
			Debt:     debtResponse(d.Debt),
			Payments: payments,
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Счета BDC

type PostBDCJSONRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
}

type PostBDCJSONResponse struct {
	AccountID string `json:"accountId"`
}

func (h *handler) PostBDC(w http.ResponseWriter, r *http.Request) {
	var req PostBDCJSONRequest
	if !h.decode(w, r, &req) {
		return
	}
	account, err := h.service.CreateBDC(r.Context(), req.Name, req.Phone, req.Location)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, PostBDCJSONResponse{AccountID: account.ID.String()})
}

type BDCAccountJSONResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone"`
	Location    string    `json:"location"`
	Balance     string    `json:"balance"`
	DateCreated time.Time `json:"dateCreated"`
}

func (h *handler) GetBDCAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.BDCAccounts(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	resp := make([]BDCAccountJSONResponse, 0, len(accounts))
	for _, a := range accounts {
		resp = append(resp, BDCAccountJSONResponse{
			ID:          a.ID.String(),
			Name:        a.Name,
			Phone:       a.Phone,
			Location:    a.Location,
			Balance:     a.Balance.StringFixed(2),
			DateCreated: a.DateCreated,
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type BDCVerifyJSONResponse struct {
	Stored     string `json:"stored"`
	Derived    string `json:"derived"`
	Consistent bool   `json:"consistent"`
}

func (h *handler) GetBDCVerify(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "bdc")
	if !ok {
		return
	}
	rec, err := h.service.BDCVerify(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, BDCVerifyJSONResponse{
		Stored:     rec.Stored.StringFixed(2),
		Derived:    rec.Derived.StringFixed(2),
		Consistent: rec.Consistent(),
	})
}

type PostBDCTransactionJSONRequest struct {
	Amount RawValue `json:"amount"`
	Type   string   `json:"type"`
	Note   string   `json:"note"`
}

type PostBDCTransactionJSONResponse struct {
	NewBalance string `json:"newBalance"`
}

func (h *handler) PostBDCTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "bdc")
	if !ok {
		return
	}
	var req PostBDCTransactionJSONRequest
	if !h.decode(w, r, &req) {
		return
	}
	balance, err := h.service.ApplyBDCTransaction(r.Context(), id, string(req.Amount), req.Type, req.Note)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, PostBDCTransactionJSONResponse{NewBalance: balance.StringFixed(2)})
}

type BDCTransactionJSONResponse struct {
	ID        string    `json:"id"`
	Amount    string    `json:"amount"`
	Type      string    `json:"type"`
	Note      string    `json:"note"`
	Timestamp time.Time `json:"timestamp"`
}

func (h *handler) GetBDCTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "bdc")
	if !ok {
		return
	}
	query := r.URL.Query()
	txns, err := h.service.BDCHistory(r.Context(), id, query.Get("start"), query.Get("end"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	resp := make([]BDCTransactionJSONResponse, 0, len(txns))
	for _, t := range txns {
		resp = append(resp, BDCTransactionJSONResponse{
			ID:        t.ID.String(),
			Amount:    t.Amount.StringFixed(2),
			Type:      t.Type,
			Note:      t.Note,
			Timestamp: t.Timestamp,
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// Панель администратора

type DashboardJSONResponse struct {
	TotalClients   int    `json:"totalClients"`
	TotalOrders    int    `json:"totalOrders"`
	ApprovedOrders int    `json:"approvedOrders"`
	ApprovalRate   string `json:"approvalRate"`
	TotalDebt      string `json:"totalDebt"`
	TotalPaid      string `json:"totalPaid"`
}

func (h *handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.Settings(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	dash, err := h.service.Dashboard(r.Context(), settings)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, DashboardJSONResponse{
		TotalClients:   dash.TotalClients,
		TotalOrders:    dash.TotalOrders,
		ApprovedOrders: dash.ApprovedOrders,
		ApprovalRate:   dash.ApprovalRate.StringFixed(1),
		TotalDebt:      dash.TotalDebt.StringFixed(2),
		TotalPaid:      dash.TotalPaid.StringFixed(2),
	})
}

type TopClientJSON struct {
	ClientCode string `json:"clientCode"`
	Name       string `json:"name"`
	Orders     int    `json:"orders"`
}

type ActivityJSON struct {
	Type       string `json:"type"`
	Time       string `json:"time"`
	ClientCode string `json:"clientCode,omitempty"`
	ClientName string `json:"clientName,omitempty"`
	OrderID    string `json:"orderId"`
	Product    string `json:"product,omitempty"`
	Amount     string `json:"amount"`
}

type DashboardDetailsJSONResponse struct {
	Year             int             `json:"year"`
	Months           []string        `json:"months"`
	OrderCounts      []int           `json:"orderCounts"`
	TopClients       []TopClientJSON `json:"topClients"`
	RecentActivities []ActivityJSON  `json:"recentActivities"`
	TotalDebt        string          `json:"totalDebt"`
	TotalPaid        string          `json:"totalPaid"`
}

func (h *handler) GetDashboardDetails(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.Settings(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	details, err := h.service.DashboardDetails(r.Context(), settings)
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := DashboardDetailsJSONResponse{
		Year:             details.Year,
		Months:           make([]string, 0, 12),
		OrderCounts:      details.MonthlyOrders[:],
		TopClients:       make([]TopClientJSON, 0, len(details.TopClients)),
		RecentActivities: make([]ActivityJSON, 0, len(details.Activities)),
		TotalDebt:        details.TotalDebt.StringFixed(2),
		TotalPaid:        details.TotalPaid.StringFixed(2),
	}
	for m := time.January; m <= time.December; m++ {
		resp.Months = append(resp.Months, m.String())
	}
	for _, c := range details.TopClients {
		resp.TopClients = append(resp.TopClients, TopClientJSON{
			ClientCode: c.Client.Code,
			Name:       c.Client.Name,
			Orders:     c.Orders,
		})
	}
	for _, a := range details.Activities {
		resp.RecentActivities = append(resp.RecentActivities, ActivityJSON{
			Type:       a.Kind,
			Time:       a.Time.Format(time.RFC3339),
			ClientCode: a.Client.Code,
			ClientName: a.Client.Name,
			OrderID:    a.OrderID.String(),
			Product:    a.Product,
			Amount:     a.Amount.StringFixed(2),
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type SettingsJSON struct {
	ViewDashboard bool `json:"viewDashboard"`
	ApproveOrders bool `json:"approveOrders"`
}

func (h *handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.service.Settings(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, SettingsJSON(settings))
}

func (h *handler) PutSettings(w http.ResponseWriter, r *http.Request) {
	var req SettingsJSON
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.UpdateSettings(r.Context(), model.Settings(req)); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, OKJSONResponse{OK: true})
}

// Общее

// RawValue принимает число или строку: значения формы приходят как есть
// и приводятся к типам на стороне движков.
type RawValue string

func (v *RawValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = RawValue(s)
		return nil
	}
	*v = RawValue(data)
	return nil
}

func caller(r *http.Request) model.Caller {
	c, _ := auth.CallerFrom(r.Context())
	return c
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	return h.decodeBody(w, r, dst, false)
}

// decodeOptional допускает пустое тело, в том числе при chunked-передаче.
func (h *handler) decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	return h.decodeBody(w, r, dst, true)
}

func (h *handler) decodeBody(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) bool {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r.Body); err != nil {
		h.writeError(w, apperr.Invalid("unreadable request body"))
		return false
	}
	if allowEmpty && len(bytes.TrimSpace(buf.Bytes())) == 0 {
		return true
	}
	if err := json.Unmarshal(buf.Bytes(), dst); err != nil {
		h.writeError(w, apperr.Invalid("malformed JSON body"))
		return false
	}
	return true
}

func (h *handler) pathID(w http.ResponseWriter, r *http.Request, entity string) (uuid.UUID, bool) {
	raw := r.PathValue("id")
	id, err := uuid.Parse(raw)
	if err != nil {
		h.writeError(w, apperr.NotFound(entity, raw))
		return uuid.Nil, false
	}
	return id, true
}

type ErrorJSONResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

func (h *handler) writeError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case errors.Is(err, apperr.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrDuplicateName), errors.Is(err, apperr.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, apperr.ErrNoApprovedOrder):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, apperr.ErrFeatureDisabled):
		status = http.StatusForbidden
	default:
		h.zaplog.Error("request failed", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	resp := ErrorJSONResponse{Error: err.Error()}
	var verr *apperr.ValidationError
	if errors.As(err, &verr) {
		resp.Error = verr.Msg
		resp.Details = verr.Fields
	}
	h.writeJSON(w, status, resp)
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, v any) {
	responseJSON, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(responseJSON)
}

func clientResponse(c model.Client) ClientJSONResponse {
	return ClientJSONResponse{
		ID:             c.ID.String(),
		Code:           c.Code,
		Name:           c.Name,
		Phone:          c.Phone,
		Status:         c.Status,
		DateRegistered: c.DateRegistered,
	}
}

func orderResponse(o model.Order) OrderJSONResponse {
	resp := OrderJSONResponse{
		ID:            o.ID.String(),
		Number:        o.Number,
		ClientID:      o.ClientID.String(),
		Product:       o.Product,
		VehicleNumber: o.VehicleNumber,
		DriverName:    o.DriverName,
		DriverPhone:   o.DriverPhone,
		Quantity:      o.Quantity,
		Region:        o.Region,
		Status:        o.Status,
		Date:          o.Date,
		OMC:           o.Pricing.OMC,
		BDC:           o.Pricing.BDC,
		Depot:         o.Pricing.Depot,
		PBdcOmc:       nullString(o.Pricing.PBdcOmc.Valid, o.Pricing.PBdcOmc.Decimal.String()),
		SBdcOmc:       nullString(o.Pricing.SBdcOmc.Valid, o.Pricing.SBdcOmc.Decimal.String()),
		Margin:        nullString(o.Pricing.Margin.Valid, o.Pricing.Margin.Decimal.String()),
		Tax:           nullString(o.Pricing.Tax.Valid, o.Pricing.Tax.Decimal.String()),
		TotalDebt:     nullString(o.Pricing.TotalDebt.Valid, o.Pricing.TotalDebt.Decimal.StringFixed(2)),
	}
	if o.Pricing.DueDate != nil {
		resp.DueDate = nullString(true, o.Pricing.DueDate.Format(time.DateOnly))
	}
	return resp
}

func orderViewResponse(view service.OrderView) OrderViewJSONResponse {
	resp := OrderViewJSONResponse{
		OrderJSONResponse: orderResponse(view.Order),
		Returns:           view.Returns.StringFixed(2),
		Debt:              debtResponse(view.Debt),
	}
	resp.ClientCode = view.Client.Code
	resp.ClientName = strings.TrimSpace(view.Client.Name)
	return resp
}

func debtResponse(s model.DebtSnapshot) DebtJSONResponse {
	return DebtJSONResponse{
		OrderID:    s.OrderID.String(),
		TotalDebt:  s.TotalDebt.StringFixed(2),
		AmountPaid: s.AmountPaid.StringFixed(2),
		AmountLeft: s.AmountLeft.StringFixed(2),
		Overpaid:   s.Overpaid.StringFixed(2),
	}
}

func nullString(valid bool, s string) *string {
	if !valid {
		return nil
	}
	return &s
}
