package store

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iurnickita/fuelcredit/internal/model"
	"github.com/iurnickita/fuelcredit/internal/store/config"
)

// testStores возвращает хранилища для прогона: память всегда,
// PostgreSQL - если задан DATABASE_URI.
func testStores(t *testing.T) map[string]Store {
	t.Helper()
	stores := map[string]Store{"memory": NewMemStore()}
	if dsn := os.Getenv("DATABASE_URI"); dsn != "" {
		pg, err := NewStore(config.Config{DBDsn: dsn})
		require.NoError(t, err)
		t.Cleanup(func() { pg.Close() })
		stores["postgres"] = pg
	}
	return stores
}

func newClient(t *testing.T, ctx context.Context, store Store) model.Client {
	t.Helper()
	id := uuid.New()
	client := model.Client{
		ID:             id,
		Code:           "TT" + id.String()[:8],
		Name:           "Kwame Mensah",
		Phone:          "0244000123",
		Status:         model.ClientStatusActive,
		DateRegistered: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, store.ClientCreate(ctx, client))
	return client
}

func newOrder(t *testing.T, ctx context.Context, store Store, clientID uuid.UUID, date time.Time) model.Order {
	t.Helper()
	seq, err := store.OrderNextSeq(ctx)
	require.NoError(t, err)
	order := model.Order{
		ID:            uuid.New(),
		Number:        uuid.NewString()[:8] + decimal.NewFromInt(seq).String(),
		ClientID:      clientID,
		Product:       "AGO",
		VehicleNumber: "GR-1234-20",
		DriverName:    "Yaw",
		DriverPhone:   "0200000000",
		Quantity:      500,
		Region:        "Ashanti",
		Status:        model.OrderStatusPending,
		Date:          date.UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, store.OrderCreate(ctx, order))
	return order
}

func TestStoreClient(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			client := newClient(t, ctx, store)

			got, err := store.ClientGet(ctx, client.ID)
			require.NoError(t, err)
			require.Equal(t, client.Code, got.Code)

			got, err = store.ClientGetByCode(ctx, client.Code)
			require.NoError(t, err)
			require.Equal(t, client.ID, got.ID)

			dup := client
			dup.ID = uuid.New()
			require.ErrorIs(t, store.ClientCreate(ctx, dup), ErrAlreadyExists)

			_, err = store.ClientGet(ctx, uuid.New())
			require.ErrorIs(t, err, ErrNoRows)
		})
	}
}

func TestStoreOrder(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			client := newClient(t, ctx, store)
			older := newOrder(t, ctx, store, client.ID, time.Now().Add(-time.Hour))
			newer := newOrder(t, ctx, store, client.ID, time.Now())

			orders, err := store.OrderList(ctx, OrderFilter{ClientID: client.ID})
			require.NoError(t, err)
			require.Len(t, orders, 2)
			require.Equal(t, newer.ID, orders[0].ID)
			require.Equal(t, older.ID, orders[1].ID)

			due := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
			pricing := model.OrderPricing{
				OMC:       "Star Oil",
				BDC:       "Juwel",
				Depot:     "Kumasi",
				PBdcOmc:   decimal.NewNullDecimal(decimal.NewFromInt(10)),
				SBdcOmc:   decimal.NewNullDecimal(decimal.NewFromInt(12)),
				Margin:    decimal.NewNullDecimal(decimal.NewFromInt(2)),
				Tax:       decimal.NewNullDecimal(decimal.NewFromInt(50)),
				TotalDebt: decimal.NewNullDecimal(decimal.NewFromInt(1000)),
				DueDate:   &due,
			}
			require.NoError(t, store.OrderUpdatePricing(ctx, older.ID, pricing, model.OrderStatusApproved))

			got, err := store.OrderGet(ctx, older.ID)
			require.NoError(t, err)
			require.Equal(t, model.OrderStatusApproved, got.Status)
			require.True(t, got.Pricing.Complete())
			require.True(t, got.Pricing.TotalDebt.Decimal.Equal(decimal.NewFromInt(1000)))
			require.True(t, due.Equal(*got.Pricing.DueDate))

			got, err = store.OrderGetByNumber(ctx, newer.Number)
			require.NoError(t, err)
			require.Equal(t, newer.ID, got.ID)
			require.False(t, got.Pricing.TotalDebt.Valid)
			require.Nil(t, got.Pricing.DueDate)

			approved, err := store.OrderList(ctx, OrderFilter{ClientID: client.ID, Status: model.OrderStatusApproved})
			require.NoError(t, err)
			require.Len(t, approved, 1)

			require.ErrorIs(t, store.OrderUpdatePricing(ctx, uuid.New(), pricing, model.OrderStatusApproved), ErrNoRows)
		})
	}
}

func TestStorePayment(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			client := newClient(t, ctx, store)
			order := newOrder(t, ctx, store, client.ID, time.Now())
			other := newOrder(t, ctx, store, client.ID, time.Now())

			amounts := []int64{300, 200, 50}
			var ids []uuid.UUID
			for i, amount := range amounts {
				payment := model.Payment{
					ID:       uuid.New(),
					ClientID: client.ID,
					OrderID:  order.ID,
					Amount:   decimal.NewFromInt(amount),
					BankName: "GCB",
					ProofURL: "https://example.com/proof.png",
					Status:   model.PaymentStatusPending,
					Date:     time.Now().UTC().Add(time.Duration(i) * time.Second).Truncate(time.Microsecond),
				}
				require.NoError(t, store.PaymentCreate(ctx, payment))
				ids = append(ids, payment.ID)
			}

			at := time.Now().UTC().Truncate(time.Microsecond)
			confirmed, err := store.PaymentConfirm(ctx, ids[0], "ok", at)
			require.NoError(t, err)
			require.Equal(t, model.PaymentStatusConfirmed, confirmed.Status)
			require.Equal(t, "ok", confirmed.Feedback)
			_, err = store.PaymentConfirm(ctx, ids[1], "", at)
			require.NoError(t, err)

			// повторное подтверждение ничего не меняет
			again, err := store.PaymentConfirm(ctx, ids[0], "second", at.Add(time.Hour))
			require.NoError(t, err)
			require.Equal(t, "ok", again.Feedback)
			require.True(t, at.Equal(*again.ConfirmedAt))

			_, err = store.PaymentConfirm(ctx, uuid.New(), "", at)
			require.ErrorIs(t, err, ErrNoRows)

			totals, err := store.PaymentConfirmedTotals(ctx, []uuid.UUID{order.ID, other.ID})
			require.NoError(t, err)
			require.True(t, totals[order.ID].Equal(decimal.NewFromInt(500)))
			_, ok := totals[other.ID]
			require.False(t, ok)

			payments, err := store.PaymentList(ctx, PaymentFilter{OrderID: order.ID, Status: model.PaymentStatusConfirmed})
			require.NoError(t, err)
			require.Len(t, payments, 2)
			require.Equal(t, ids[0], payments[0].ID)
		})
	}
}

func TestStoreBDC(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			account := model.BDCAccount{
				ID:          uuid.New(),
				Name:        "Juwel " + uuid.NewString()[:8],
				Phone:       "0302000000",
				Location:    "Tema",
				Balance:     decimal.Zero,
				DateCreated: time.Now().UTC(),
			}
			require.NoError(t, store.BDCCreate(ctx, account))

			dup := account
			dup.ID = uuid.New()
			require.ErrorIs(t, store.BDCCreate(ctx, dup), ErrAlreadyExists)

			base := time.Now().UTC().Truncate(time.Second)
			ops := []model.BDCTransaction{
				{Amount: decimal.NewFromInt(20), Type: model.BDCTransactionDeposit, Timestamp: base.Add(-2 * time.Hour)},
				{Amount: decimal.NewFromInt(50), Type: model.BDCTransactionWithdrawal, Timestamp: base.Add(-time.Hour)},
			}
			var balance decimal.Decimal
			var err error
			for _, op := range ops {
				op.ID = uuid.New()
				op.AccountID = account.ID
				balance, err = store.BDCApply(ctx, op)
				require.NoError(t, err)
			}
			require.True(t, balance.Equal(decimal.NewFromInt(-30)), balance.String())

			_, err = store.BDCApply(ctx, model.BDCTransaction{ID: uuid.New(), AccountID: uuid.New(),
				Amount: decimal.NewFromInt(1), Type: model.BDCTransactionDeposit, Timestamp: base})
			require.ErrorIs(t, err, ErrNoRows)

			history, err := store.BDCHistory(ctx, account.ID, nil, nil)
			require.NoError(t, err)
			require.Len(t, history, 2)
			require.Equal(t, model.BDCTransactionWithdrawal, history[0].Type)

			from := base.Add(-90 * time.Minute)
			history, err = store.BDCHistory(ctx, account.ID, &from, nil)
			require.NoError(t, err)
			require.Len(t, history, 1)
		})
	}
}

func TestStoreBDCConcurrent(t *testing.T) {
	const (
		workers = 50
		amount  = 10
	)
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			account := model.BDCAccount{
				ID:          uuid.New(),
				Name:        "Concurrent " + uuid.NewString()[:8],
				Balance:     decimal.Zero,
				DateCreated: time.Now().UTC(),
			}
			require.NoError(t, store.BDCCreate(ctx, account))

			var wg sync.WaitGroup
			errs := make(chan error, workers)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := store.BDCApply(ctx, model.BDCTransaction{
						ID:        uuid.New(),
						AccountID: account.ID,
						Amount:    decimal.NewFromInt(amount),
						Type:      model.BDCTransactionDeposit,
						Timestamp: time.Now().UTC(),
					})
					errs <- err
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			got, err := store.BDCGet(ctx, account.ID)
			require.NoError(t, err)
			require.True(t, got.Balance.Equal(decimal.NewFromInt(workers*amount)), got.Balance.String())

			history, err := store.BDCHistory(ctx, account.ID, nil, nil)
			require.NoError(t, err)
			require.Len(t, history, workers)
		})
	}
}

func TestStoreSettings(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	settings, err := store.SettingsGet(ctx)
	require.NoError(t, err)
	require.Equal(t, model.Settings{}, settings)

	require.NoError(t, store.SettingsPut(ctx, model.Settings{ViewDashboard: true}))
	settings, err = store.SettingsGet(ctx)
	require.NoError(t, err)
	require.True(t, settings.ViewDashboard)
	require.False(t, settings.ApproveOrders)
}

// Агрегаты панели считаются по всей базе, поэтому проверяются на чистом хранилище.
func TestStoreDashboard(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()
	day := func(month time.Month, d int) time.Time { return time.Date(2001, month, d, 10, 0, 0, 0, time.UTC) }
	priced := func(id uuid.UUID, due time.Time, status string) {
		t.Helper()
		pricing := model.OrderPricing{
			OMC:       "Star Oil",
			BDC:       "Juwel",
			Depot:     "Kumasi",
			PBdcOmc:   decimal.NewNullDecimal(decimal.NewFromInt(10)),
			SBdcOmc:   decimal.NewNullDecimal(decimal.NewFromInt(12)),
			Margin:    decimal.NewNullDecimal(decimal.NewFromInt(2)),
			Tax:       decimal.NewNullDecimal(decimal.NewFromInt(50)),
			TotalDebt: decimal.NewNullDecimal(decimal.NewFromInt(1000)),
			DueDate:   &due,
		}
		require.NoError(t, store.OrderUpdatePricing(ctx, id, pricing, status))
	}

	busy := newClient(t, ctx, store)
	quiet := newClient(t, ctx, store)

	overdue := newOrder(t, ctx, store, busy.ID, day(time.January, 5))
	completed := newOrder(t, ctx, store, busy.ID, day(time.January, 20))
	newOrder(t, ctx, store, busy.ID, day(time.March, 2))
	recent := newOrder(t, ctx, store, quiet.ID, day(time.March, 10))
	newOrder(t, ctx, store, quiet.ID, time.Date(2002, time.March, 1, 0, 0, 0, 0, time.UTC))

	priced(overdue.ID, day(time.May, 1), model.OrderStatusApproved)
	priced(completed.ID, day(time.May, 20), model.OrderStatusCompleted)
	priced(recent.ID, day(time.July, 1), model.OrderStatusApproved)

	counts, err := store.OrderMonthlyCounts(ctx, 2001)
	require.NoError(t, err)
	require.Equal(t, [12]int{2, 0, 2}, counts)

	top, err := store.OrderTopClients(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, []ClientOrderCount{{ClientID: busy.ID, Orders: 3}}, top)

	today := time.Date(2001, time.June, 1, 0, 0, 0, 0, time.UTC)
	late, err := store.OrderOverdue(ctx, today, 5)
	require.NoError(t, err)
	require.Len(t, late, 1)
	require.Equal(t, overdue.ID, late[0].ID)

	since := day(time.March, 1)
	approved, err := store.OrderRecentApproved(ctx, since, 5)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	require.Equal(t, recent.ID, approved[0].ID)

	var confirmedID uuid.UUID
	for i, date := range []time.Time{day(time.January, 10), day(time.March, 15), day(time.March, 16)} {
		payment := model.Payment{
			ID:       uuid.New(),
			ClientID: quiet.ID,
			OrderID:  recent.ID,
			Amount:   decimal.NewFromInt(100),
			BankName: "GCB",
			ProofURL: "https://example.com/proof.png",
			Status:   model.PaymentStatusPending,
			Date:     date,
		}
		require.NoError(t, store.PaymentCreate(ctx, payment))
		if i < 2 {
			_, err := store.PaymentConfirm(ctx, payment.ID, "", date)
			require.NoError(t, err)
			confirmedID = payment.ID
		}
	}
	payments, err := store.PaymentRecentConfirmed(ctx, since, 5)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	require.Equal(t, confirmedID, payments[0].ID)
}
