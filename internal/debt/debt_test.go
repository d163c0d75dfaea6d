package debt

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iurnickita/fuelcredit/internal/apperr"
	"github.com/iurnickita/fuelcredit/internal/model"
	"github.com/iurnickita/fuelcredit/internal/order"
	"github.com/iurnickita/fuelcredit/internal/payment"
	"github.com/iurnickita/fuelcredit/internal/store"
)

type fixture struct {
	store    store.Store
	orders   order.Lifecycle
	payments payment.Ledger
	debt     Reconciler
}

func newFixture() fixture {
	st := store.NewMemStore()
	orders := order.NewLifecycle(st)
	payments := payment.NewLedger(st, orders)
	return fixture{store: st, orders: orders, payments: payments, debt: NewReconciler(st, orders, payments)}
}

func (f fixture) client(t *testing.T, code, status string) model.Client {
	t.Helper()
	c := model.Client{ID: uuid.New(), Code: code, Name: code, Phone: "0240000000", Status: status, DateRegistered: time.Now()}
	require.NoError(t, f.store.ClientCreate(context.Background(), c))
	return c
}

func (f fixture) order(t *testing.T, clientID uuid.UUID, totalDebt string, approve bool) model.Order {
	t.Helper()
	ctx := context.Background()
	o, err := f.orders.Submit(ctx, order.SubmitRequest{
		ClientID: clientID, Product: "AGO", VehicleNumber: "GW-100-22", DriverName: "Esi",
		DriverPhone: "0500000000", Quantity: "500", Region: "Volta",
	})
	require.NoError(t, err)
	if approve {
		_, err = f.orders.UpdateAndApprove(ctx, o.ID, order.PricingRequest{
			OMC: "Puma", BDC: "Blue Ocean", Depot: "Akosombo",
			PBdcOmc: "10", SBdcOmc: "12", Margin: "2", Tax: "0",
			TotalDebt: totalDebt, DueDate: "2025-01-01",
		})
		require.NoError(t, err)
	}
	o, err = f.orders.Get(ctx, o.ID)
	require.NoError(t, err)
	return o
}

func (f fixture) pay(t *testing.T, clientID, orderID uuid.UUID, amount string, confirm bool) {
	t.Helper()
	ctx := context.Background()
	p, err := f.payments.Record(ctx, payment.RecordRequest{
		ClientID: clientID, OrderID: orderID, Amount: amount, BankName: "GCB", ProofURL: "https://x/y.png",
	})
	require.NoError(t, err)
	if confirm {
		_, err = f.payments.Confirm(ctx, p.ID, "")
		require.NoError(t, err)
	}
}

func requireSameSnapshot(t *testing.T, want, got model.DebtSnapshot) {
	t.Helper()
	require.Equal(t, want.OrderID, got.OrderID)
	require.True(t, want.TotalDebt.Equal(got.TotalDebt), "total debt %s != %s", want.TotalDebt, got.TotalDebt)
	require.True(t, want.AmountPaid.Equal(got.AmountPaid), "amount paid %s != %s", want.AmountPaid, got.AmountPaid)
	require.True(t, want.AmountLeft.Equal(got.AmountLeft), "amount left %s != %s", want.AmountLeft, got.AmountLeft)
	require.True(t, want.Overpaid.Equal(got.Overpaid), "overpaid %s != %s", want.Overpaid, got.Overpaid)
}

func TestSnapshot(t *testing.T) {
	o := model.Order{ID: uuid.New()}
	o.Pricing.TotalDebt = decimal.NewNullDecimal(decimal.NewFromInt(1000))

	s := Snapshot(o, decimal.NewFromInt(300))
	require.Equal(t, "300.00", s.AmountPaid.StringFixed(2))
	require.Equal(t, "700.00", s.AmountLeft.StringFixed(2))
	require.True(t, s.Overpaid.IsZero())

	s = Snapshot(o, decimal.NewFromInt(1250))
	require.True(t, s.AmountLeft.IsZero())
	require.Equal(t, "250.00", s.Overpaid.StringFixed(2))

	// долг не задан - считается нулем
	s = Snapshot(model.Order{}, decimal.Zero)
	require.True(t, s.TotalDebt.IsZero())
	require.True(t, s.AmountLeft.IsZero())
}

func TestReconcileScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c := f.client(t, "TT25123", model.ClientStatusActive)
	o := f.order(t, c.ID, "1000", true)

	f.pay(t, c.ID, o.ID, "300", true)
	f.pay(t, c.ID, o.ID, "450", false) // не подтвержден

	s, err := f.debt.Reconcile(ctx, o)
	require.NoError(t, err)
	require.Equal(t, "300.00", s.AmountPaid.StringFixed(2))
	require.Equal(t, "700.00", s.AmountLeft.StringFixed(2))
	require.Equal(t, "1000.00", s.TotalDebt.StringFixed(2))

	// повторный вызов без новых подтверждений дает тот же результат
	again, err := f.debt.Reconcile(ctx, o)
	require.NoError(t, err)
	requireSameSnapshot(t, s, again)

	byOrder, err := f.debt.ForOrder(ctx, o.ID)
	require.NoError(t, err)
	requireSameSnapshot(t, s, byOrder)

	byClient, err := f.debt.ForClient(ctx, c.ID)
	require.NoError(t, err)
	requireSameSnapshot(t, s, byClient)

	_, err = f.debt.ForOrder(ctx, uuid.New())
	require.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.debt.ForClient(ctx, uuid.New())
	require.ErrorIs(t, err, apperr.ErrNoApprovedOrder)
}

func TestReconcileManyMatchesSingle(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c := f.client(t, "TT25200", model.ClientStatusActive)

	var orders []model.Order
	for i, debt := range []string{"1000", "500", "250"} {
		o := f.order(t, c.ID, debt, true)
		if i < 2 {
			f.pay(t, c.ID, o.ID, "100", true)
		}
		orders = append(orders, o)
	}
	f.pay(t, c.ID, orders[1].ID, "600", true)

	many, err := f.debt.ReconcileMany(ctx, orders)
	require.NoError(t, err)
	require.Len(t, many, len(orders))
	for i, o := range orders {
		single, err := f.debt.Reconcile(ctx, o)
		require.NoError(t, err)
		requireSameSnapshot(t, single, many[i])
	}
	require.Equal(t, "200.00", many[1].Overpaid.StringFixed(2))
	require.True(t, many[2].AmountPaid.IsZero())
}

func TestStatement(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c := f.client(t, "TT25300", model.ClientStatusActive)
	approved := f.order(t, c.ID, "1000", true)
	f.order(t, c.ID, "", false)
	f.pay(t, c.ID, approved.ID, "250", true)

	lines, err := f.debt.Statement(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	var found bool
	for _, line := range lines {
		if line.Order.ID == approved.ID {
			found = true
			require.Equal(t, "1000.00", line.Returns.StringFixed(2))
			require.Equal(t, "750.00", line.Debt.AmountLeft.StringFixed(2))
		} else {
			require.True(t, line.Returns.IsZero())
			require.True(t, line.Debt.TotalDebt.IsZero())
		}
	}
	require.True(t, found)
}

func TestDebtors(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	active := f.client(t, "TT25001", model.ClientStatusActive)
	f.order(t, active.ID, "800", true)
	latest := f.order(t, active.ID, "1200", true)
	f.pay(t, active.ID, latest.ID, "200", true)
	f.pay(t, active.ID, latest.ID, "100", true)
	f.pay(t, active.ID, latest.ID, "999", false)

	noApproved := f.client(t, "TT25002", model.ClientStatusActive)
	f.order(t, noApproved.ID, "", false)

	locked := f.client(t, "TT25003", model.ClientStatusLocked)
	f.order(t, locked.ID, "500", true)

	debtors, err := f.debt.Debtors(ctx)
	require.NoError(t, err)
	require.Len(t, debtors, 1)

	d := debtors[0]
	require.Equal(t, active.ID, d.Client.ID)
	require.Equal(t, latest.ID, d.Order.ID)
	require.Equal(t, "300.00", d.Debt.AmountPaid.StringFixed(2))
	require.Equal(t, "900.00", d.Debt.AmountLeft.StringFixed(2))
	require.Len(t, d.Payments, 2)
	require.False(t, d.Payments[1].Date.Before(d.Payments[0].Date))
}
