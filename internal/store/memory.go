package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iurnickita/fuelcredit/internal/model"
)

// memStore - хранилище в памяти. Один мьютекс на все коллекции:
// операция по счету BDC (баланс + журнал) видна целиком или не видна вовсе.
type memStore struct {
	mu           sync.RWMutex
	clients      map[uuid.UUID]model.Client
	orders       map[uuid.UUID]model.Order
	orderSeq     int64
	payments     map[uuid.UUID]model.Payment
	bdc          map[uuid.UUID]model.BDCAccount
	transactions []model.BDCTransaction
	settings     model.Settings
}

// NewMemStore создает пустое хранилище в памяти.
func NewMemStore() Store {
	return &memStore{
		clients:  make(map[uuid.UUID]model.Client),
		orders:   make(map[uuid.UUID]model.Order),
		orderSeq: 100000,
		payments: make(map[uuid.UUID]model.Payment),
		bdc:      make(map[uuid.UUID]model.BDCAccount),
	}
}

func (store *memStore) Close() error { return nil }

// Клиенты

func (store *memStore) ClientCreate(_ context.Context, client model.Client) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	for _, c := range store.clients {
		if c.ID == client.ID || c.Code == client.Code {
			return ErrAlreadyExists
		}
	}
	store.clients[client.ID] = client
	return nil
}

func (store *memStore) ClientGet(_ context.Context, id uuid.UUID) (model.Client, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	client, ok := store.clients[id]
	if !ok {
		return model.Client{}, ErrNoRows
	}
	return client, nil
}

func (store *memStore) ClientGetByCode(_ context.Context, code string) (model.Client, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	for _, client := range store.clients {
		if client.Code == code {
			return client, nil
		}
	}
	return model.Client{}, ErrNoRows
}

func (store *memStore) ClientList(_ context.Context, status string) ([]model.Client, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	var clients []model.Client
	for _, client := range store.clients {
		if status == "" || client.Status == status {
			clients = append(clients, client)
		}
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].Code < clients[j].Code })
	return clients, nil
}

func (store *memStore) ClientCount(_ context.Context) (int, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	return len(store.clients), nil
}

// Заказы

func (store *memStore) OrderNextSeq(_ context.Context) (int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.orderSeq++
	return store.orderSeq, nil
}

func (store *memStore) OrderCreate(_ context.Context, order model.Order) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	for _, o := range store.orders {
		if o.ID == order.ID || o.Number == order.Number {
			return ErrAlreadyExists
		}
	}
	store.orders[order.ID] = copyOrder(order)
	return nil
}

func (store *memStore) OrderGet(_ context.Context, id uuid.UUID) (model.Order, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	order, ok := store.orders[id]
	if !ok {
		return model.Order{}, ErrNoRows
	}
	return copyOrder(order), nil
}

func (store *memStore) OrderGetByNumber(_ context.Context, number string) (model.Order, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	for _, order := range store.orders {
		if order.Number == number {
			return copyOrder(order), nil
		}
	}
	return model.Order{}, ErrNoRows
}

func (store *memStore) OrderUpdatePricing(_ context.Context, id uuid.UUID, pricing model.OrderPricing, status string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	order, ok := store.orders[id]
	if !ok {
		return ErrNoRows
	}
	order.Pricing = pricing
	order.Status = status
	store.orders[id] = copyOrder(order)
	return nil
}

func (store *memStore) OrderList(_ context.Context, filter OrderFilter) ([]model.Order, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	var orders []model.Order
	for _, order := range store.orders {
		if filter.ClientID != uuid.Nil && order.ClientID != filter.ClientID {
			continue
		}
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		orders = append(orders, copyOrder(order))
	}
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].Date.Equal(orders[j].Date) {
			return orders[i].Date.After(orders[j].Date)
		}
		return orders[i].Number > orders[j].Number
	})
	return orders, nil
}

func (store *memStore) OrderStats(_ context.Context) (OrderStats, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	stats := OrderStats{TotalDebt: decimal.Zero}
	for _, order := range store.orders {
		stats.Total++
		if order.Status == model.OrderStatusApproved {
			stats.Approved++
			if order.Pricing.TotalDebt.Valid {
				stats.TotalDebt = stats.TotalDebt.Add(order.Pricing.TotalDebt.Decimal)
			}
		}
	}
	return stats, nil
}

func copyOrder(order model.Order) model.Order {
	if order.Pricing.DueDate != nil {
		d := *order.Pricing.DueDate
		order.Pricing.DueDate = &d
	}
	return order
}

// Платежи

func (store *memStore) PaymentCreate(_ context.Context, payment model.Payment) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	if _, ok := store.payments[payment.ID]; ok {
		return ErrAlreadyExists
	}
	store.payments[payment.ID] = copyPayment(payment)
	return nil
}

func (store *memStore) PaymentGet(_ context.Context, id uuid.UUID) (model.Payment, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	payment, ok := store.payments[id]
	if !ok {
		return model.Payment{}, ErrNoRows
	}
	return copyPayment(payment), nil
}

func (store *memStore) PaymentConfirm(_ context.Context, id uuid.UUID, feedback string, at time.Time) (model.Payment, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	payment, ok := store.payments[id]
	if !ok {
		return model.Payment{}, ErrNoRows
	}
	if payment.Status == model.PaymentStatusPending {
		payment.Status = model.PaymentStatusConfirmed
		payment.ConfirmedAt = &at
		if feedback != "" {
			payment.Feedback = feedback
		}
		store.payments[id] = payment
	}
	return copyPayment(payment), nil
}

func (store *memStore) PaymentList(_ context.Context, filter PaymentFilter) ([]model.Payment, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	var payments []model.Payment
	for _, payment := range store.payments {
		if filter.ClientID != uuid.Nil && payment.ClientID != filter.ClientID {
			continue
		}
		if filter.OrderID != uuid.Nil && payment.OrderID != filter.OrderID {
			continue
		}
		if filter.Status != "" && payment.Status != filter.Status {
			continue
		}
		payments = append(payments, copyPayment(payment))
	}
	sort.Slice(payments, func(i, j int) bool { return payments[i].Date.Before(payments[j].Date) })
	return payments, nil
}

func (store *memStore) PaymentConfirmedTotals(_ context.Context, orderIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	wanted := make(map[uuid.UUID]struct{}, len(orderIDs))
	for _, id := range orderIDs {
		wanted[id] = struct{}{}
	}
	totals := make(map[uuid.UUID]decimal.Decimal, len(orderIDs))
	for _, payment := range store.payments {
		if payment.Status != model.PaymentStatusConfirmed {
			continue
		}
		if _, ok := wanted[payment.OrderID]; !ok {
			continue
		}
		totals[payment.OrderID] = totals[payment.OrderID].Add(payment.Amount)
	}
	return totals, nil
}

func (store *memStore) PaymentConfirmedSum(_ context.Context) (decimal.Decimal, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	sum := decimal.Zero
	for _, payment := range store.payments {
		if payment.Status == model.PaymentStatusConfirmed {
			sum = sum.Add(payment.Amount)
		}
	}
	return sum, nil
}

func copyPayment(payment model.Payment) model.Payment {
	if payment.ConfirmedAt != nil {
		at := *payment.ConfirmedAt
		payment.ConfirmedAt = &at
	}
	return payment
}

// Счета BDC

func (store *memStore) BDCCreate(_ context.Context, account model.BDCAccount) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	for _, a := range store.bdc {
		if a.ID == account.ID || a.Name == account.Name {
			return ErrAlreadyExists
		}
	}
	store.bdc[account.ID] = account
	return nil
}

func (store *memStore) BDCGet(_ context.Context, id uuid.UUID) (model.BDCAccount, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	account, ok := store.bdc[id]
	if !ok {
		return model.BDCAccount{}, ErrNoRows
	}
	return account, nil
}

func (store *memStore) BDCList(_ context.Context) ([]model.BDCAccount, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	accounts := make([]model.BDCAccount, 0, len(store.bdc))
	for _, account := range store.bdc {
		accounts = append(accounts, account)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Name < accounts[j].Name })
	return accounts, nil
}

func (store *memStore) BDCApply(_ context.Context, txn model.BDCTransaction) (decimal.Decimal, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	account, ok := store.bdc[txn.AccountID]
	if !ok {
		return decimal.Zero, ErrNoRows
	}
	account.Balance = account.Balance.Add(txn.Signed())
	store.bdc[account.ID] = account
	store.transactions = append(store.transactions, txn)
	return account.Balance, nil
}

func (store *memStore) BDCHistory(_ context.Context, accountID uuid.UUID, from, to *time.Time) ([]model.BDCTransaction, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	var history []model.BDCTransaction
	for _, txn := range store.transactions {
		if txn.AccountID != accountID {
			continue
		}
		if from != nil && txn.Timestamp.Before(*from) {
			continue
		}
		if to != nil && txn.Timestamp.After(*to) {
			continue
		}
		history = append(history, txn)
	}
	sort.SliceStable(history, func(i, j int) bool { return history[i].Timestamp.After(history[j].Timestamp) })
	return history, nil
}

// Настройки

func (store *memStore) SettingsGet(_ context.Context) (model.Settings, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	return store.settings, nil
}

func (store *memStore) SettingsPut(_ context.Context, settings model.Settings) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.settings = settings
	return nil
}

// Панель администратора

func (store *memStore) OrderMonthlyCounts(_ context.Context, year int) ([12]int, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	var counts [12]int
	for _, order := range store.orders {
		date := order.Date.UTC()
		if date.Year() == year {
			counts[date.Month()-1]++
		}
	}
	return counts, nil
}

func (store *memStore) OrderTopClients(_ context.Context, limit int) ([]ClientOrderCount, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	counts := make(map[uuid.UUID]int)
	for _, order := range store.orders {
		counts[order.ClientID]++
	}
	top := make([]ClientOrderCount, 0, len(counts))
	for id, n := range counts {
		top = append(top, ClientOrderCount{ClientID: id, Orders: n})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Orders != top[j].Orders {
			return top[i].Orders > top[j].Orders
		}
		return top[i].ClientID.String() < top[j].ClientID.String()
	})
	if len(top) > limit {
		top = top[:limit]
	}
	return top, nil
}

func (store *memStore) OrderOverdue(_ context.Context, today time.Time, limit int) ([]model.Order, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	var orders []model.Order
	for _, order := range store.orders {
		if order.Status == model.OrderStatusCompleted || order.Pricing.DueDate == nil {
			continue
		}
		if order.Pricing.DueDate.Before(today) {
			orders = append(orders, copyOrder(order))
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		di, dj := *orders[i].Pricing.DueDate, *orders[j].Pricing.DueDate
		if !di.Equal(dj) {
			return di.After(dj)
		}
		return orders[i].Number > orders[j].Number
	})
	if len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (store *memStore) OrderRecentApproved(ctx context.Context, since time.Time, limit int) ([]model.Order, error) {
	approved, err := store.OrderList(ctx, OrderFilter{Status: model.OrderStatusApproved})
	if err != nil {
		return nil, err
	}
	var orders []model.Order
	for _, order := range approved {
		if order.Date.Before(since) || len(orders) == limit {
			break
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (store *memStore) PaymentRecentConfirmed(ctx context.Context, since time.Time, limit int) ([]model.Payment, error) {
	confirmed, err := store.PaymentList(ctx, PaymentFilter{Status: model.PaymentStatusConfirmed})
	if err != nil {
		return nil, err
	}
	var payments []model.Payment
	for i := len(confirmed) - 1; i >= 0 && len(payments) < limit; i-- {
		if confirmed[i].Date.Before(since) {
			break
		}
		payments = append(payments, confirmed[i])
	}
	return payments, nil
}
