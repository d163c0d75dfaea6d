package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"github.com/iurnickita/fuelcredit/internal/model"
	"github.com/iurnickita/fuelcredit/internal/store/config"
)

type pgStore struct {
	database *sql.DB
}

func newPGStore(cfg config.Config) (Store, error) {
	if err := runMigrations(cfg.DBDsn); err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", cfg.DBDsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	// Строка настроек одна на всю систему
	_, err = db.Exec("INSERT INTO settings (id) VALUES (1) ON CONFLICT (id) DO NOTHING")
	if err != nil {
		db.Close()
		return nil, err
	}

	return &pgStore{database: db}, nil
}

func (store *pgStore) Close() error {
	return store.database.Close()
}

// Проверка: нарушение уникальности
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func noRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoRows
	}
	return err
}

// Клиенты

func (store *pgStore) ClientCreate(ctx context.Context, client model.Client) error {
	_, err := store.database.ExecContext(ctx,
		"INSERT INTO clients (id, code, name, phone, status, date_registered)"+
			" VALUES ($1, $2, $3, $4, $5, $6)",
		client.ID,
		client.Code,
		client.Name,
		client.Phone,
		client.Status,
		client.DateRegistered)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

const clientColumns = "id, code, name, phone, status, date_registered"

type scanner interface {
	Scan(dest ...any) error
}

func scanClient(row scanner) (model.Client, error) {
	var client model.Client
	err := row.Scan(&client.ID,
		&client.Code,
		&client.Name,
		&client.Phone,
		&client.Status,
		&client.DateRegistered)
	return client, err
}

func (store *pgStore) ClientGet(ctx context.Context, id uuid.UUID) (model.Client, error) {
	row := store.database.QueryRowContext(ctx,
		"SELECT "+clientColumns+" FROM clients WHERE id = $1", id)
	client, err := scanClient(row)
	return client, noRows(err)
}

func (store *pgStore) ClientGetByCode(ctx context.Context, code string) (model.Client, error) {
	row := store.database.QueryRowContext(ctx,
		"SELECT "+clientColumns+" FROM clients WHERE code = $1", code)
	client, err := scanClient(row)
	return client, noRows(err)
}

func (store *pgStore) ClientList(ctx context.Context, status string) ([]model.Client, error) {
	query := "SELECT " + clientColumns + " FROM clients"
	var args []any
	if status != "" {
		query += " WHERE status = $1"
		args = append(args, status)
	}
	rows, err := store.database.QueryContext(ctx, query+" ORDER BY code", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var clients []model.Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, client)
	}
	return clients, rows.Err()
}

func (store *pgStore) ClientCount(ctx context.Context) (int, error) {
	var n int
	err := store.database.QueryRowContext(ctx, "SELECT count(*) FROM clients").Scan(&n)
	return n, err
}

// Заказы

func (store *pgStore) OrderNextSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := store.database.QueryRowContext(ctx, "SELECT nextval('order_number_seq')").Scan(&seq)
	return seq, err
}

func (store *pgStore) OrderCreate(ctx context.Context, order model.Order) error {
	_, err := store.database.ExecContext(ctx,
		"INSERT INTO orders (id, number, client_id, product, vehicle_number, driver_name, driver_phone,"+
			" quantity, region, status, date)"+
			" VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)",
		order.ID,
		order.Number,
		order.ClientID,
		order.Product,
		order.VehicleNumber,
		order.DriverName,
		order.DriverPhone,
		order.Quantity,
		order.Region,
		order.Status,
		order.Date)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

const orderColumns = "id, number, client_id, product, vehicle_number, driver_name, driver_phone," +
	" quantity, region, status, date," +
	" omc, bdc, depot, p_bdc_omc, s_bdc_omc, margin, tax, total_debt, due_date"

func scanOrder(row scanner) (model.Order, error) {
	var order model.Order
	var dueDate sql.NullTime
	err := row.Scan(&order.ID,
		&order.Number,
		&order.ClientID,
		&order.Product,
		&order.VehicleNumber,
		&order.DriverName,
		&order.DriverPhone,
		&order.Quantity,
		&order.Region,
		&order.Status,
		&order.Date,
		&order.Pricing.OMC,
		&order.Pricing.BDC,
		&order.Pricing.Depot,
		&order.Pricing.PBdcOmc,
		&order.Pricing.SBdcOmc,
		&order.Pricing.Margin,
		&order.Pricing.Tax,
		&order.Pricing.TotalDebt,
		&dueDate)
	if err != nil {
		return model.Order{}, err
	}
	if dueDate.Valid {
		d := dueDate.Time.UTC()
		order.Pricing.DueDate = &d
	}
	return order, nil
}

func (store *pgStore) OrderGet(ctx context.Context, id uuid.UUID) (model.Order, error) {
	row := store.database.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	order, err := scanOrder(row)
	return order, noRows(err)
}

func (store *pgStore) OrderGetByNumber(ctx context.Context, number string) (model.Order, error) {
	row := store.database.QueryRowContext(ctx,
		"SELECT "+orderColumns+" FROM orders WHERE number = $1", number)
	order, err := scanOrder(row)
	return order, noRows(err)
}

// OrderUpdatePricing перезаписывает все поля цены: неразобранные поля становятся NULL,
// так сохраненный заказ всегда соответствует своему статусу.
func (store *pgStore) OrderUpdatePricing(ctx context.Context, id uuid.UUID, pricing model.OrderPricing, status string) error {
	var dueDate sql.NullTime
	if pricing.DueDate != nil {
		dueDate = sql.NullTime{Time: *pricing.DueDate, Valid: true}
	}
	res, err := store.database.ExecContext(ctx,
		"UPDATE orders"+
			" SET omc = $1, bdc = $2, depot = $3,"+
			"     p_bdc_omc = $4, s_bdc_omc = $5, margin = $6, tax = $7, total_debt = $8, due_date = $9,"+
			"     status = $10"+
			" WHERE id = $11",
		pricing.OMC,
		pricing.BDC,
		pricing.Depot,
		pricing.PBdcOmc,
		pricing.SBdcOmc,
		pricing.Margin,
		pricing.Tax,
		pricing.TotalDebt,
		dueDate,
		status,
		id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoRows
	}
	return nil
}

func (store *pgStore) OrderList(ctx context.Context, filter OrderFilter) ([]model.Order, error) {
	var where []string
	var args []any
	if filter.ClientID != uuid.Nil {
		args = append(args, filter.ClientID)
		where = append(where, "client_id = $"+strconv.Itoa(len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, "status = $"+strconv.Itoa(len(args)))
	}
	query := "SELECT " + orderColumns + " FROM orders"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date DESC, number DESC"
	return store.queryOrders(ctx, query, args...)
}

func (store *pgStore) queryOrders(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := store.database.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var orders []model.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func (store *pgStore) OrderStats(ctx context.Context) (OrderStats, error) {
	var stats OrderStats
	row := store.database.QueryRowContext(ctx,
		"SELECT count(*),"+
			" count(*) FILTER (WHERE status = $1),"+
			" COALESCE(sum(total_debt) FILTER (WHERE status = $1), 0)"+
			" FROM orders",
		model.OrderStatusApproved)
	err := row.Scan(&stats.Total, &stats.Approved, &stats.TotalDebt)
	return stats, err
}

// Платежи

func (store *pgStore) PaymentCreate(ctx context.Context, payment model.Payment) error {
	_, err := store.database.ExecContext(ctx,
		"INSERT INTO payments (id, client_id, order_id, amount, bank_name, proof_url, status, date)"+
			" VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
		payment.ID,
		payment.ClientID,
		payment.OrderID,
		payment.Amount,
		payment.BankName,
		payment.ProofURL,
		payment.Status,
		payment.Date)
	return err
}

const paymentColumns = "id, client_id, order_id, amount, bank_name, proof_url, status, date, confirmed_at, feedback"

func scanPayment(row scanner) (model.Payment, error) {
	var payment model.Payment
	var confirmedAt sql.NullTime
	err := row.Scan(&payment.ID,
		&payment.ClientID,
		&payment.OrderID,
		&payment.Amount,
		&payment.BankName,
		&payment.ProofURL,
		&payment.Status,
		&payment.Date,
		&confirmedAt,
		&payment.Feedback)
	if err != nil {
		return model.Payment{}, err
	}
	if confirmedAt.Valid {
		payment.ConfirmedAt = &confirmedAt.Time
	}
	return payment, nil
}

func (store *pgStore) PaymentGet(ctx context.Context, id uuid.UUID) (model.Payment, error) {
	row := store.database.QueryRowContext(ctx,
		"SELECT "+paymentColumns+" FROM payments WHERE id = $1", id)
	payment, err := scanPayment(row)
	return payment, noRows(err)
}

// PaymentConfirm переводит платеж в confirmed только из pending.
// Для уже подтвержденного платежа возвращает его без изменений.
func (store *pgStore) PaymentConfirm(ctx context.Context, id uuid.UUID, feedback string, at time.Time) (model.Payment, error) {
	row := store.database.QueryRowContext(ctx,
		"UPDATE payments"+
			" SET status = $1, confirmed_at = $2, feedback = CASE WHEN $3 = '' THEN feedback ELSE $3 END"+
			" WHERE id = $4 AND status = $5"+
			" RETURNING "+paymentColumns,
		model.PaymentStatusConfirmed,
		at,
		feedback,
		id,
		model.PaymentStatusPending)
	payment, err := scanPayment(row)
	if errors.Is(err, sql.ErrNoRows) {
		// не найден или уже подтвержден
		return store.PaymentGet(ctx, id)
	}
	return payment, err
}

func (store *pgStore) PaymentList(ctx context.Context, filter PaymentFilter) ([]model.Payment, error) {
	var where []string
	var args []any
	if filter.ClientID != uuid.Nil {
		args = append(args, filter.ClientID)
		where = append(where, "client_id = $"+strconv.Itoa(len(args)))
	}
	if filter.OrderID != uuid.Nil {
		args = append(args, filter.OrderID)
		where = append(where, "order_id = $"+strconv.Itoa(len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, "status = $"+strconv.Itoa(len(args)))
	}
	query := "SELECT " + paymentColumns + " FROM payments"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date"
	return store.queryPayments(ctx, query, args...)
}

func (store *pgStore) queryPayments(ctx context.Context, query string, args ...any) ([]model.Payment, error) {
	rows, err := store.database.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []model.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}

// PaymentConfirmedTotals - суммы подтвержденных платежей одним запросом на набор заказов.
// Заказы без подтвержденных платежей в результат не попадают.
func (store *pgStore) PaymentConfirmedTotals(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	totals := make(map[uuid.UUID]decimal.Decimal, len(orderIDs))
	if len(orderIDs) == 0 {
		return totals, nil
	}
	ids := make([]string, 0, len(orderIDs))
	for _, id := range orderIDs {
		ids = append(ids, id.String())
	}
	rows, err := store.database.QueryContext(ctx,
		"SELECT order_id, sum(amount) FROM payments"+
			" WHERE order_id = ANY($1::uuid[])"+
			"   AND status = $2"+
			" GROUP BY order_id",
		ids,
		model.PaymentStatusConfirmed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		var sum decimal.Decimal
		if err := rows.Scan(&id, &sum); err != nil {
			return nil, err
		}
		totals[id] = sum
	}
	return totals, rows.Err()
}

func (store *pgStore) PaymentConfirmedSum(ctx context.Context) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := store.database.QueryRowContext(ctx,
		"SELECT COALESCE(sum(amount), 0) FROM payments WHERE status = $1",
		model.PaymentStatusConfirmed).Scan(&sum)
	return sum, err
}

// Счета BDC

func (store *pgStore) BDCCreate(ctx context.Context, account model.BDCAccount) error {
	_, err := store.database.ExecContext(ctx,
		"INSERT INTO bdc (id, name, phone, location, balance, date_created)"+
			" VALUES ($1, $2, $3, $4, $5, $6)",
		account.ID,
		account.Name,
		account.Phone,
		account.Location,
		account.Balance,
		account.DateCreated)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

const bdcColumns = "id, name, phone, location, balance, date_created"

func scanBDC(row scanner) (model.BDCAccount, error) {
	var account model.BDCAccount
	err := row.Scan(&account.ID,
		&account.Name,
		&account.Phone,
		&account.Location,
		&account.Balance,
		&account.DateCreated)
	return account, err
}

func (store *pgStore) BDCGet(ctx context.Context, id uuid.UUID) (model.BDCAccount, error) {
	row := store.database.QueryRowContext(ctx,
		"SELECT "+bdcColumns+" FROM bdc WHERE id = $1", id)
	account, err := scanBDC(row)
	return account, noRows(err)
}

func (store *pgStore) BDCList(ctx context.Context) ([]model.BDCAccount, error) {
	rows, err := store.database.QueryContext(ctx,
		"SELECT "+bdcColumns+" FROM bdc ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []model.BDCAccount
	for rows.Next() {
		account, err := scanBDC(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// BDCApply меняет баланс и пишет операцию в журнал в одной транзакции.
// UPDATE блокирует строку счета, поэтому параллельные операции по одному счету
// выполняются последовательно.
func (store *pgStore) BDCApply(ctx context.Context, txn model.BDCTransaction) (decimal.Decimal, error) {
	tx, err := store.database.BeginTx(ctx, nil)
	if err != nil {
		return decimal.Zero, err
	}
	defer tx.Rollback()

	var balance decimal.Decimal
	err = tx.QueryRowContext(ctx,
		"UPDATE bdc SET balance = balance + $1 WHERE id = $2 RETURNING balance",
		txn.Signed(),
		txn.AccountID).Scan(&balance)
	if err != nil {
		return decimal.Zero, noRows(err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO bdc_transactions (id, bdc_id, amount, type, note, timestamp)"+
			" VALUES ($1, $2, $3, $4, $5, $6)",
		txn.ID,
		txn.AccountID,
		txn.Amount,
		txn.Type,
		txn.Note,
		txn.Timestamp)
	if err != nil {
		return decimal.Zero, err
	}

	if err := tx.Commit(); err != nil {
		return decimal.Zero, fmt.Errorf("commit bdc transaction: %w", err)
	}
	return balance, nil
}

func (store *pgStore) BDCHistory(ctx context.Context, accountID uuid.UUID, from, to *time.Time) ([]model.BDCTransaction, error) {
	query := "SELECT id, bdc_id, amount, type, note, timestamp FROM bdc_transactions WHERE bdc_id = $1"
	args := []any{accountID}
	if from != nil {
		args = append(args, *from)
		query += " AND timestamp >= $" + strconv.Itoa(len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += " AND timestamp <= $" + strconv.Itoa(len(args))
	}
	query += " ORDER BY timestamp DESC"

	rows, err := store.database.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var history []model.BDCTransaction
	for rows.Next() {
		var txn model.BDCTransaction
		err := rows.Scan(&txn.ID,
			&txn.AccountID,
			&txn.Amount,
			&txn.Type,
			&txn.Note,
			&txn.Timestamp)
		if err != nil {
			return nil, err
		}
		history = append(history, txn)
	}
	return history, rows.Err()
}

// Настройки

func (store *pgStore) SettingsGet(ctx context.Context) (model.Settings, error) {
	var settings model.Settings
	err := store.database.QueryRowContext(ctx,
		"SELECT view_dashboard, approve_orders FROM settings WHERE id = 1").
		Scan(&settings.ViewDashboard, &settings.ApproveOrders)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Settings{}, nil
	}
	return settings, err
}

func (store *pgStore) SettingsPut(ctx context.Context, settings model.Settings) error {
	_, err := store.database.ExecContext(ctx,
		"INSERT INTO settings (id, view_dashboard, approve_orders) VALUES (1, $1, $2)"+
			" ON CONFLICT (id) DO UPDATE SET view_dashboard = $1, approve_orders = $2",
		settings.ViewDashboard,
		settings.ApproveOrders)
	return err
}

// Панель администратора

func (store *pgStore) OrderMonthlyCounts(ctx context.Context, year int) ([12]int, error) {
	var counts [12]int
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	rows, err := store.database.QueryContext(ctx,
		"SELECT EXTRACT(MONTH FROM date AT TIME ZONE 'UTC')::int, count(*) FROM orders"+
			" WHERE date >= $1 AND date < $2"+
			" GROUP BY 1",
		from, from.AddDate(1, 0, 0))
	if err != nil {
		return counts, err
	}
	defer rows.Close()
	for rows.Next() {
		var month, n int
		if err := rows.Scan(&month, &n); err != nil {
			return counts, err
		}
		if month >= 1 && month <= 12 {
			counts[month-1] = n
		}
	}
	return counts, rows.Err()
}

func (store *pgStore) OrderTopClients(ctx context.Context, limit int) ([]ClientOrderCount, error) {
	rows, err := store.database.QueryContext(ctx,
		"SELECT client_id, count(*) AS orders FROM orders"+
			" GROUP BY client_id"+
			" ORDER BY orders DESC, client_id::text"+
			" LIMIT $1",
		limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var top []ClientOrderCount
	for rows.Next() {
		var c ClientOrderCount
		if err := rows.Scan(&c.ClientID, &c.Orders); err != nil {
			return nil, err
		}
		top = append(top, c)
	}
	return top, rows.Err()
}

// OrderOverdue - заказы со сроком оплаты раньше today, кроме завершенных.
func (store *pgStore) OrderOverdue(ctx context.Context, today time.Time, limit int) ([]model.Order, error) {
	return store.queryOrders(ctx,
		"SELECT "+orderColumns+" FROM orders"+
			" WHERE due_date < $1::date AND status <> $2"+
			" ORDER BY due_date DESC, number DESC"+
			" LIMIT $3",
		today.Format("2006-01-02"), model.OrderStatusCompleted, limit)
}

func (store *pgStore) OrderRecentApproved(ctx context.Context, since time.Time, limit int) ([]model.Order, error) {
	return store.queryOrders(ctx,
		"SELECT "+orderColumns+" FROM orders"+
			" WHERE status = $1 AND date >= $2"+
			" ORDER BY date DESC, number DESC"+
			" LIMIT $3",
		model.OrderStatusApproved, since, limit)
}

func (store *pgStore) PaymentRecentConfirmed(ctx context.Context, since time.Time, limit int) ([]model.Payment, error) {
	return store.queryPayments(ctx,
		"SELECT "+paymentColumns+" FROM payments"+
			" WHERE status = $1 AND date >= $2"+
			" ORDER BY date DESC"+
			" LIMIT $3",
		model.PaymentStatusConfirmed, since, limit)
}
