package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iurnickita/fuelcredit/internal/model"
	"github.com/iurnickita/fuelcredit/internal/store/config"
)

type Store interface {
	ClientCreate(ctx context.Context, client model.Client) error
	ClientGet(ctx context.Context, id uuid.UUID) (model.Client, error)
	ClientGetByCode(ctx context.Context, code string) (model.Client, error)
	ClientList(ctx context.Context, status string) ([]model.Client, error)
	ClientCount(ctx context.Context) (int, error)

	OrderNextSeq(ctx context.Context) (int64, error)
	OrderCreate(ctx context.Context, order model.Order) error
	OrderGet(ctx context.Context, id uuid.UUID) (model.Order, error)
	OrderGetByNumber(ctx context.Context, number string) (model.Order, error)
	OrderUpdatePricing(ctx context.Context, id uuid.UUID, pricing model.OrderPricing, status string) error
	OrderList(ctx context.Context, filter OrderFilter) ([]model.Order, error)
	OrderStats(ctx context.Context) (OrderStats, error)
	OrderMonthlyCounts(ctx context.Context, year int) ([12]int, error)
	OrderTopClients(ctx context.Context, limit int) ([]ClientOrderCount, error)
	OrderOverdue(ctx context.Context, today time.Time, limit int) ([]model.Order, error)
	OrderRecentApproved(ctx context.Context, since time.Time, limit int) ([]model.Order, error)

	PaymentCreate(ctx context.Context, payment model.Payment) error
	PaymentGet(ctx context.Context, id uuid.UUID) (model.Payment, error)
	PaymentConfirm(ctx context.Context, id uuid.UUID, feedback string, at time.Time) (model.Payment, error)
	PaymentList(ctx context.Context, filter PaymentFilter) ([]model.Payment, error)
	PaymentConfirmedTotals(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)
	PaymentConfirmedSum(ctx context.Context) (decimal.Decimal, error)
	PaymentRecentConfirmed(ctx context.Context, since time.Time, limit int) ([]model.Payment, error)

	BDCCreate(ctx context.Context, account model.BDCAccount) error
	BDCGet(ctx context.Context, id uuid.UUID) (model.BDCAccount, error)
	BDCList(ctx context.Context) ([]model.BDCAccount, error)
	BDCApply(ctx context.Context, txn model.BDCTransaction) (decimal.Decimal, error)
	BDCHistory(ctx context.Context, accountID uuid.UUID, from, to *time.Time) ([]model.BDCTransaction, error)

	SettingsGet(ctx context.Context) (model.Settings, error)
	SettingsPut(ctx context.Context, settings model.Settings) error

	Close() error
}

var (
	ErrNoRows        = errors.New("no rows")
	ErrAlreadyExists = errors.New("already exists")
)

// OrderFilter - нулевые поля не фильтруют.
// Результат отсортирован по дате заказа, новые первыми.
type OrderFilter struct {
	ClientID uuid.UUID
	Status   string
}

// PaymentFilter - нулевые поля не фильтруют.
// Результат отсортирован по дате платежа, старые первыми.
type PaymentFilter struct {
	ClientID uuid.UUID
	OrderID  uuid.UUID
	Status   string
}

// ClientOrderCount - число заказов клиента (рейтинг клиентов панели).
type ClientOrderCount struct {
	ClientID uuid.UUID
	Orders   int
}

type OrderStats struct {
	Total     int
	Approved  int
	TotalDebt decimal.Decimal
}

// NewStore открывает хранилище: PostgreSQL при заданном DSN, иначе в памяти.
func NewStore(cfg config.Config) (Store, error) {
	if cfg.DBDsn == "" {
		return NewMemStore(), nil
	}
	return newPGStore(cfg)
}
