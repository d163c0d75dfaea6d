// Package debt сводит заказы и подтвержденные платежи в остаток задолженности.
//
// Остаток (AmountLeft) никогда не бывает отрицательным: переплата показывается
// отдельно в Overpaid. Это правило одинаково для всех представлений.
package debt

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iurnickita/fuelcredit/internal/apperr"
	"github.com/iurnickita/fuelcredit/internal/model"
	"github.com/iurnickita/fuelcredit/internal/order"
	"github.com/iurnickita/fuelcredit/internal/payment"
	"github.com/iurnickita/fuelcredit/internal/store"
)

type Reconciler interface {
	Reconcile(ctx context.Context, o model.Order) (model.DebtSnapshot, error)
	ReconcileMany(ctx context.Context, orders []model.Order) ([]model.DebtSnapshot, error)
	ForOrder(ctx context.Context, orderID uuid.UUID) (model.DebtSnapshot, error)
	ForClient(ctx context.Context, clientID uuid.UUID) (model.DebtSnapshot, error)
	Statement(ctx context.Context, clientID uuid.UUID) ([]StatementLine, error)
	Debtors(ctx context.Context) ([]Debtor, error)
}

// StatementLine - заказ клиента с доходом и задолженностью.
type StatementLine struct {
	Order   model.Order
	Returns decimal.Decimal
	Debt    model.DebtSnapshot
}

// Debtor - клиент с последним согласованным заказом и платежами по нему.
type Debtor struct {
	Client   model.Client
	Order    model.Order
	Debt     model.DebtSnapshot
	Payments []DebtorPayment
}

type DebtorPayment struct {
	Date   time.Time
	Amount decimal.Decimal
}

type reconciler struct {
	store    store.Store
	orders   order.Lifecycle
	payments payment.Ledger
}

func NewReconciler(store store.Store, orders order.Lifecycle, payments payment.Ledger) Reconciler {
	return &reconciler{store: store, orders: orders, payments: payments}
}

// Snapshot считает задолженность по заказу из суммы подтвержденных платежей.
// Нечисловая сумма долга считается нулем.
func Snapshot(o model.Order, paid decimal.Decimal) model.DebtSnapshot {
	totalDebt := decimal.Zero
	if o.Pricing.TotalDebt.Valid {
		totalDebt = o.Pricing.TotalDebt.Decimal
	}
	totalDebt = totalDebt.Round(2)
	paid = paid.Round(2)

	left := totalDebt.Sub(paid)
	overpaid := decimal.Zero
	if left.IsNegative() {
		overpaid = left.Neg()
		left = decimal.Zero
	}
	return model.DebtSnapshot{
		OrderID:    o.ID,
		TotalDebt:  totalDebt,
		AmountPaid: paid,
		AmountLeft: left,
		Overpaid:   overpaid,
	}
}

func (r *reconciler) Reconcile(ctx context.Context, o model.Order) (model.DebtSnapshot, error) {
	paid, err := r.payments.ConfirmedTotalForOrder(ctx, o.ID)
	if err != nil {
		return model.DebtSnapshot{}, fmt.Errorf("confirmed total for order %s: %w", o.ID, err)
	}
	return Snapshot(o, paid), nil
}

// ReconcileMany считает задолженность по набору заказов одним запросом к платежам.
// Порядок результата совпадает с порядком заказов.
func (r *reconciler) ReconcileMany(ctx context.Context, orders []model.Order) ([]model.DebtSnapshot, error) {
	ids := make([]uuid.UUID, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	totals, err := r.payments.ConfirmedTotals(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("confirmed totals: %w", err)
	}
	snapshots := make([]model.DebtSnapshot, 0, len(orders))
	for _, o := range orders {
		snapshots = append(snapshots, Snapshot(o, totals[o.ID]))
	}
	return snapshots, nil
}

func (r *reconciler) ForOrder(ctx context.Context, orderID uuid.UUID) (model.DebtSnapshot, error) {
	o, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return model.DebtSnapshot{}, err
	}
	return r.Reconcile(ctx, o)
}

// ForClient - задолженность клиента по последнему согласованному заказу.
func (r *reconciler) ForClient(ctx context.Context, clientID uuid.UUID) (model.DebtSnapshot, error) {
	orders, err := r.orders.List(ctx, store.OrderFilter{ClientID: clientID, Status: model.OrderStatusApproved})
	if err != nil {
		return model.DebtSnapshot{}, err
	}
	if len(orders) == 0 {
		return model.DebtSnapshot{}, fmt.Errorf("client %s: %w", clientID, apperr.ErrNoApprovedOrder)
	}
	return r.Reconcile(ctx, orders[0])
}

func (r *reconciler) Statement(ctx context.Context, clientID uuid.UUID) ([]StatementLine, error) {
	orders, err := r.orders.List(ctx, store.OrderFilter{ClientID: clientID})
	if err != nil {
		return nil, err
	}
	snapshots, err := r.ReconcileMany(ctx, orders)
	if err != nil {
		return nil, err
	}
	lines := make([]StatementLine, 0, len(orders))
	for i, o := range orders {
		lines = append(lines, StatementLine{
			Order:   o,
			Returns: order.ComputeReturns(o),
			Debt:    snapshots[i],
		})
	}
	return lines, nil
}

// Debtors - активные клиенты, у которых есть согласованный заказ.
func (r *reconciler) Debtors(ctx context.Context) ([]Debtor, error) {
	clients, err := r.store.ClientList(ctx, model.ClientStatusActive)
	if err != nil {
		return nil, err
	}
	var debtors []Debtor
	for _, client := range clients {
		orders, err := r.orders.List(ctx, store.OrderFilter{ClientID: client.ID, Status: model.OrderStatusApproved})
		if err != nil {
			return nil, err
		}
		if len(orders) == 0 {
			continue
		}
		latest := orders[0]

		confirmed, err := r.payments.List(ctx, store.PaymentFilter{
			ClientID: client.ID,
			OrderID:  latest.ID,
			Status:   model.PaymentStatusConfirmed,
		})
		if err != nil {
			return nil, err
		}
		paid := decimal.Zero
		lines := make([]DebtorPayment, 0, len(confirmed))
		for _, p := range confirmed {
			paid = paid.Add(p.Amount)
			lines = append(lines, DebtorPayment{Date: p.Date, Amount: p.Amount})
		}

		debtors = append(debtors, Debtor{
			Client:   client,
			Order:    latest,
			Debt:     Snapshot(latest, paid),
			Payments: lines,
		})
	}
	return debtors, nil
}
