// Package payment - платежи клиентов по согласованным заказам.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iurnickita/fuelcredit/internal/apperr"
	"github.com/iurnickita/fuelcredit/internal/coerce"
	"github.com/iurnickita/fuelcredit/internal/model"
	"github.com/iurnickita/fuelcredit/internal/order"
	"github.com/iurnickita/fuelcredit/internal/store"
)

type Ledger interface {
	Record(ctx context.Context, req RecordRequest) (model.Payment, error)
	Confirm(ctx context.Context, id uuid.UUID, feedback string) (model.Payment, error)
	ConfirmedTotalForOrder(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error)
	ConfirmedTotals(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)
	List(ctx context.Context, filter store.PaymentFilter) ([]model.Payment, error)
}

// RecordRequest - платеж клиента. Если OrderID и OrderNumber пусты,
// платеж относится к последнему согласованному заказу клиента.
type RecordRequest struct {
	ClientID    uuid.UUID
	OrderID     uuid.UUID
	OrderNumber string
	Amount      string
	BankName    string
	ProofURL    string
}

type ledger struct {
	store  store.Store
	orders order.Lifecycle
	now    func() time.Time
}

func NewLedger(store store.Store, orders order.Lifecycle) Ledger {
	return &ledger{store: store, orders: orders, now: time.Now}
}

func (l *ledger) Record(ctx context.Context, req RecordRequest) (model.Payment, error) {
	v := apperr.Violations{}
	if req.ClientID == uuid.Nil {
		v.Add("client_id", "required")
	}
	v.Required("amount", req.Amount)
	v.Required("bank_name", req.BankName)
	v.Required("proof_url", req.ProofURL)
	amount, ferr := coerce.Money("amount", req.Amount)
	if ferr != nil {
		v.Add("amount", ferr.Fields["amount"])
	} else if !amount.IsPositive() {
		v.Add("amount", "must_be_positive")
	}
	if err := v.Err("all fields are required"); err != nil {
		return model.Payment{}, err
	}

	target, err := l.targetOrder(ctx, req)
	if err != nil {
		return model.Payment{}, err
	}

	payment := model.Payment{
		ID:       uuid.New(),
		ClientID: req.ClientID,
		OrderID:  target.ID,
		Amount:   amount,
		BankName: strings.TrimSpace(req.BankName),
		ProofURL: strings.TrimSpace(req.ProofURL),
		Status:   model.PaymentStatusPending,
		Date:     l.now().UTC(),
	}
	if err := l.store.PaymentCreate(ctx, payment); err != nil {
		return model.Payment{}, fmt.Errorf("create payment: %w", err)
	}
	return payment, nil
}

// targetOrder выбирает заказ для платежа. Заказ должен принадлежать клиенту
// и быть согласованным.
func (l *ledger) targetOrder(ctx context.Context, req RecordRequest) (model.Order, error) {
	var target model.Order
	var err error
	switch {
	case req.OrderID != uuid.Nil:
		target, err = l.orders.Get(ctx, req.OrderID)
	case strings.TrimSpace(req.OrderNumber) != "":
		target, err = l.orders.GetByNumber(ctx, req.OrderNumber)
	default:
		return l.latestApproved(ctx, req.ClientID)
	}
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return model.Order{}, fmt.Errorf("order for client %s: %w", req.ClientID, apperr.ErrNoApprovedOrder)
		}
		return model.Order{}, err
	}
	if target.ClientID != req.ClientID || target.Status != model.OrderStatusApproved {
		return model.Order{}, fmt.Errorf("order %s: %w", target.Number, apperr.ErrNoApprovedOrder)
	}
	return target, nil
}

func (l *ledger) latestApproved(ctx context.Context, clientID uuid.UUID) (model.Order, error) {
	orders, err := l.orders.List(ctx, store.OrderFilter{ClientID: clientID, Status: model.OrderStatusApproved})
	if err != nil {
		return model.Order{}, err
	}
	if len(orders) == 0 {
		return model.Order{}, fmt.Errorf("client %s: %w", clientID, apperr.ErrNoApprovedOrder)
	}
	// список отсортирован по дате, новые первыми
	return orders[0], nil
}

// Confirm подтверждает платеж. Повторное подтверждение ничего не меняет
// и возвращает платеж в том виде, в каком он был подтвержден впервые.
func (l *ledger) Confirm(ctx context.Context, id uuid.UUID, feedback string) (model.Payment, error) {
	payment, err := l.store.PaymentConfirm(ctx, id, strings.TrimSpace(feedback), l.now().UTC())
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return model.Payment{}, apperr.NotFound("payment", id)
		}
		return model.Payment{}, err
	}
	return payment, nil
}

func (l *ledger) ConfirmedTotalForOrder(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error) {
	totals, err := l.store.PaymentConfirmedTotals(ctx, []uuid.UUID{orderID})
	if err != nil {
		return decimal.Zero, err
	}
	if total, ok := totals[orderID]; ok {
		return total, nil
	}
	return decimal.Zero, nil
}

func (l *ledger) ConfirmedTotals(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	return l.store.PaymentConfirmedTotals(ctx, orderIDs)
}

func (l *ledger) List(ctx context.Context, filter store.PaymentFilter) ([]model.Payment, error) {
	return l.store.PaymentList(ctx, filter)
}
