package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iurnickita/fuelcredit/internal/apperr"
	"github.com/iurnickita/fuelcredit/internal/bdc"
	"github.com/iurnickita/fuelcredit/internal/client"
	"github.com/iurnickita/fuelcredit/internal/coerce"
	"github.com/iurnickita/fuelcredit/internal/debt"
	"github.com/iurnickita/fuelcredit/internal/model"
	"github.com/iurnickita/fuelcredit/internal/order"
	"github.com/iurnickita/fuelcredit/internal/payment"
	"github.com/iurnickita/fuelcredit/internal/service/config"
	"github.com/iurnickita/fuelcredit/internal/store"
)

type Service interface {
	RegisterClient(ctx context.Context, name, phone string) (model.Client, error)

	SubmitOrder(ctx context.Context, caller model.Caller, req SubmitOrderRequest) (model.Order, error)
	UpdateAndApprove(ctx context.Context, orderID uuid.UUID, req order.PricingRequest) (bool, error)
	GetOrder(ctx context.Context, caller model.Caller, orderID uuid.UUID) (OrderView, error)
	ApprovedOrders(ctx context.Context, settings model.Settings) ([]OrderView, error)

	RecordPayment(ctx context.Context, caller model.Caller, req RecordPaymentRequest) (model.Payment, error)
	ConfirmPayment(ctx context.Context, paymentID uuid.UUID, feedback string) (model.Payment, error)

	ReconcileOrder(ctx context.Context, caller model.Caller, orderID uuid.UUID) (model.DebtSnapshot, error)
	ReconcileClient(ctx context.Context, caller model.Caller, clientRef string) (model.DebtSnapshot, error)
	ClientStatement(ctx context.Context, caller model.Caller, clientRef string) ([]debt.StatementLine, error)
	Debtors(ctx context.Context) ([]debt.Debtor, error)

	CreateBDC(ctx context.Context, name, phone, location string) (model.BDCAccount, error)
	ApplyBDCTransaction(ctx context.Context, accountID uuid.UUID, amount, txnType, note string) (decimal.Decimal, error)
	BDCHistory(ctx context.Context, accountID uuid.UUID, start, end string) ([]model.BDCTransaction, error)
	BDCAccounts(ctx context.Context) ([]model.BDCAccount, error)
	BDCVerify(ctx context.Context, accountID uuid.UUID) (bdc.Reconciliation, error)

	Dashboard(ctx context.Context, settings model.Settings) (Dashboard, error)
	DashboardDetails(ctx context.Context, settings model.Settings) (DashboardDetails, error)
	Settings(ctx context.Context) (model.Settings, error)
	UpdateSettings(ctx context.Context, settings model.Settings) error
}

// SubmitOrderRequest - заявка на заказ. Client - UUID или код клиента;
// для роли client берется из токена.
type SubmitOrderRequest struct {
	Client        string
	Product       string
	VehicleNumber string
	DriverName    string
	DriverPhone   string
	Quantity      string
	Region        string
}

type RecordPaymentRequest struct {
	Client      string
	OrderID     uuid.UUID
	OrderNumber string
	Amount      string
	BankName    string
	ProofURL    string
}

// OrderView - заказ с доходом и задолженностью для отображения.
type OrderView struct {
	Order   model.Order
	Client  model.Client
	Returns decimal.Decimal
	Debt    model.DebtSnapshot
}

type Dashboard struct {
	TotalClients   int
	TotalOrders    int
	ApprovedOrders int
	ApprovalRate   decimal.Decimal
	TotalDebt      decimal.Decimal
	TotalPaid      decimal.Decimal
}

type service struct {
	cfg      config.Config
	store    store.Store
	clients  client.Registry
	orders   order.Lifecycle
	payments payment.Ledger
	debt     debt.Reconciler
	bdc      bdc.Ledger
	zaplog   *zap.Logger
	now      func() time.Time
}

func NewService(cfg config.Config, store store.Store, zaplog *zap.Logger) Service {
	orders := order.NewLifecycle(store)
	payments := payment.NewLedger(store, orders)

	return &service{
		cfg:      cfg,
		store:    store,
		clients:  client.NewRegistry(store, cfg.ClientCodePrefix),
		orders:   orders,
		payments: payments,
		debt:     debt.NewReconciler(store, orders, payments),
		bdc:      bdc.NewLedger(store),
		zaplog:   zaplog,
		now:      time.Now,
	}
}

func (s *service) RegisterClient(ctx context.Context, name, phone string) (model.Client, error) {
	c, err := s.clients.Register(ctx, name, phone)
	if err != nil {
		return model.Client{}, err
	}
	s.zaplog.Info("client registered", zap.String("client", c.Code), zap.Stringer("id", c.ID))
	return c, nil
}

// clientFor разрешает ссылку на клиента. Клиент может ссылаться только на себя.
func (s *service) clientFor(ctx context.Context, caller model.Caller, ref string) (model.Client, error) {
	if caller.Role == model.RoleClient {
		c, err := s.clients.Get(ctx, caller.ClientID)
		if err != nil {
			return model.Client{}, err
		}
		if ref != "" && ref != c.Code && ref != c.ID.String() {
			return model.Client{}, apperr.NotFound("client", ref)
		}
		return c, nil
	}
	return s.clients.Resolve(ctx, ref)
}

func (s *service) SubmitOrder(ctx context.Context, caller model.Caller, req SubmitOrderRequest) (model.Order, error) {
	c, err := s.clientFor(ctx, caller, req.Client)
	if err != nil {
		return model.Order{}, err
	}
	o, err := s.orders.Submit(ctx, order.SubmitRequest{
		ClientID:      c.ID,
		Product:       req.Product,
		VehicleNumber: req.VehicleNumber,
		DriverName:    req.DriverName,
		DriverPhone:   req.DriverPhone,
		Quantity:      req.Quantity,
		Region:        req.Region,
	})
	if err != nil {
		return model.Order{}, err
	}
	s.zaplog.Info("order submitted",
		zap.String("order", o.Number),
		zap.String("client", c.Code),
		zap.Int64("quantity", o.Quantity))
	return o, nil
}

func (s *service) UpdateAndApprove(ctx context.Context, orderID uuid.UUID, req order.PricingRequest) (bool, error) {
	approved, err := s.orders.UpdateAndApprove(ctx, orderID, req)
	if err != nil {
		return false, err
	}
	if approved {
		s.zaplog.Info("order approved", zap.Stringer("order_id", orderID))
	} else {
		s.zaplog.Info("order updated, still pending", zap.Stringer("order_id", orderID))
	}
	return approved, nil
}

func (s *service) GetOrder(ctx context.Context, caller model.Caller, orderID uuid.UUID) (OrderView, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return OrderView{}, err
	}
	if caller.Role == model.RoleClient && o.ClientID != caller.ClientID {
		return OrderView{}, apperr.NotFound("order", orderID)
	}
	views, err := s.views(ctx, []model.Order{o})
	if err != nil {
		return OrderView{}, err
	}
	return views[0], nil
}

func (s *service) ApprovedOrders(ctx context.Context, settings model.Settings) ([]OrderView, error) {
	if !settings.ApproveOrders {
		return nil, fmt.Errorf("approved orders view: %w", apperr.ErrFeatureDisabled)
	}
	orders, err := s.orders.List(ctx, store.OrderFilter{Status: model.OrderStatusApproved})
	if err != nil {
		return nil, err
	}
	return s.views(ctx, orders)
}

// views собирает представления заказов: задолженность считается одним запросом на весь набор.
func (s *service) views(ctx context.Context, orders []model.Order) ([]OrderView, error) {
	snapshots, err := s.debt.ReconcileMany(ctx, orders)
	if err != nil {
		return nil, err
	}
	lookup := s.clientLookup()
	views := make([]OrderView, 0, len(orders))
	for i, o := range orders {
		c, err := lookup(ctx, o.ClientID)
		if err != nil {
			return nil, err
		}
		views = append(views, OrderView{
			Order:   o,
			Client:  c,
			Returns: order.ComputeReturns(o),
			Debt:    snapshots[i],
		})
	}
	return views, nil
}

func (s *service) RecordPayment(ctx context.Context, caller model.Caller, req RecordPaymentRequest) (model.Payment, error) {
	c, err := s.clientFor(ctx, caller, req.Client)
	if err != nil {
		return model.Payment{}, err
	}
	p, err := s.payments.Record(ctx, payment.RecordRequest{
		ClientID:    c.ID,
		OrderID:     req.OrderID,
		OrderNumber: req.OrderNumber,
		Amount:      req.Amount,
		BankName:    req.BankName,
		ProofURL:    req.ProofURL,
	})
	if err != nil {
		return model.Payment{}, err
	}
	s.zaplog.Info("payment recorded",
		zap.Stringer("payment_id", p.ID),
		zap.Stringer("order_id", p.OrderID),
		zap.String("client", c.Code),
		zap.String("amount", p.Amount.StringFixed(2)))
	return p, nil
}

func (s *service) ConfirmPayment(ctx context.Context, paymentID uuid.UUID, feedback string) (model.Payment, error) {
	p, err := s.payments.Confirm(ctx, paymentID, feedback)
	if err != nil {
		return model.Payment{}, err
	}
	s.zaplog.Info("payment confirmed",
		zap.Stringer("payment_id", p.ID),
		zap.Stringer("order_id", p.OrderID),
		zap.String("amount", p.Amount.StringFixed(2)))
	return p, nil
}

func (s *service) ReconcileOrder(ctx context.Context, caller model.Caller, orderID uuid.UUID) (model.DebtSnapshot, error) {
	view, err := s.GetOrder(ctx, caller, orderID)
	if err != nil {
		return model.DebtSnapshot{}, err
	}
	return view.Debt, nil
}

func (s *service) ReconcileClient(ctx context.Context, caller model.Caller, clientRef string) (model.DebtSnapshot, error) {
	c, err := s.clientFor(ctx, caller, clientRef)
	if err != nil {
		return model.DebtSnapshot{}, err
	}
	return s.debt.ForClient(ctx, c.ID)
}

func (s *service) ClientStatement(ctx context.Context, caller model.Caller, clientRef string) ([]debt.StatementLine, error) {
	c, err := s.clientFor(ctx, caller, clientRef)
	if err != nil {
		return nil, err
	}
	return s.debt.Statement(ctx, c.ID)
}

func (s *service) Debtors(ctx context.Context) ([]debt.Debtor, error) {
	return s.debt.Debtors(ctx)
}

func (s *service) CreateBDC(ctx context.Context, name, phone, location string) (model.BDCAccount, error) {
	account, err := s.bdc.CreateAccount(ctx, name, phone, location)
	if err != nil {
		return model.BDCAccount{}, err
	}
	s.zaplog.Info("bdc account created", zap.String("name", account.Name), zap.Stringer("id", account.ID))
	return account, nil
}

func (s *service) ApplyBDCTransaction(ctx context.Context, accountID uuid.UUID, amount, txnType, note string) (decimal.Decimal, error) {
	value, ferr := coerce.Money("amount", amount)
	if ferr != nil {
		if txnType != bdc.TypeAdd && txnType != bdc.TypeSubtract {
			ferr.Fields["type"] = coerce.ReasonInvalid
		}
		return decimal.Zero, ferr.Validation("invalid amount or transaction type")
	}
	balance, err := s.bdc.ApplyTransaction(ctx, accountID, value, txnType, note)
	if err != nil {
		return decimal.Zero, err
	}
	s.zaplog.Info("bdc transaction applied",
		zap.Stringer("bdc_id", accountID),
		zap.String("type", txnType),
		zap.String("amount", value.StringFixed(2)),
		zap.String("balance", balance.StringFixed(2)))
	return balance, nil
}

func (s *service) BDCHistory(ctx context.Context, accountID uuid.UUID, start, end string) ([]model.BDCTransaction, error) {
	return s.bdc.History(ctx, accountID, start, end)
}

func (s *service) BDCAccounts(ctx context.Context) ([]model.BDCAccount, error) {
	return s.bdc.List(ctx)
}

// BDCVerify сверяет сохраненный баланс с суммой журнала операций.
func (s *service) BDCVerify(ctx context.Context, accountID uuid.UUID) (bdc.Reconciliation, error) {
	rec, err := s.bdc.Verify(ctx, accountID)
	if err != nil {
		return bdc.Reconciliation{}, err
	}
	if !rec.Consistent() {
		s.zaplog.Error("bdc balance drift",
			zap.Stringer("bdc_id", accountID),
			zap.String("stored", rec.Stored.StringFixed(2)),
			zap.String("derived", rec.Derived.StringFixed(2)))
	}
	return rec, nil
}

func (s *service) Dashboard(ctx context.Context, settings model.Settings) (Dashboard, error) {
	if !settings.ViewDashboard {
		return Dashboard{}, fmt.Errorf("dashboard: %w", apperr.ErrFeatureDisabled)
	}
	clients, err := s.clients.Count(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	stats, err := s.store.OrderStats(ctx)
	if err != nil {
		return Dashboard{}, err
	}
	paid, err := s.store.PaymentConfirmedSum(ctx)
	if err != nil {
		return Dashboard{}, err
	}

	rate := decimal.Zero
	if stats.Total > 0 {
		rate = decimal.NewFromInt(int64(stats.Approved)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(stats.Total))).
			Round(1)
	}
	return Dashboard{
		TotalClients:   clients,
		TotalOrders:    stats.Total,
		ApprovedOrders: stats.Approved,
		ApprovalRate:   rate,
		TotalDebt:      stats.TotalDebt.Round(2),
		TotalPaid:      paid.Round(2),
	}, nil
}

func (s *service) Settings(ctx context.Context) (model.Settings, error) {
	return s.store.SettingsGet(ctx)
}

func (s *service) UpdateSettings(ctx context.Context, settings model.Settings) error {
	if err := s.store.SettingsPut(ctx, settings); err != nil {
		return err
	}
	s.zaplog.Info("settings updated",
		zap.Bool("view_dashboard", settings.ViewDashboard),
		zap.Bool("approve_orders", settings.ApproveOrders))
	return nil
}
