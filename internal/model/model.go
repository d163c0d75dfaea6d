package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Клиенты

type Client struct {
	ID             uuid.UUID
	Code           string
	Name           string
	Phone          string
	Status         string
	DateRegistered time.Time
}

const (
	ClientStatusActive  = "active"
	ClientStatusOverdue = "overdue"
	ClientStatusLocked  = "locked"
)

// Заказы топлива

type Order struct {
	ID            uuid.UUID
	Number        string
	ClientID      uuid.UUID
	Product       string
	VehicleNumber string
	DriverName    string
	DriverPhone   string
	Quantity      int64
	Region        string
	Status        string
	Date          time.Time
	Pricing       OrderPricing
}

// OrderPricing заполняется при согласовании заказа.
// Числовые поля могут отсутствовать, пока заказ в статусе pending.
type OrderPricing struct {
	OMC       string
	BDC       string
	Depot     string
	PBdcOmc   decimal.NullDecimal
	SBdcOmc   decimal.NullDecimal
	Margin    decimal.NullDecimal
	Tax       decimal.NullDecimal
	TotalDebt decimal.NullDecimal
	DueDate   *time.Time
}

// Complete - все девять полей заполнены.
func (p OrderPricing) Complete() bool {
	return p.OMC != "" && p.BDC != "" && p.Depot != "" &&
		p.PBdcOmc.Valid && p.SBdcOmc.Valid && p.Margin.Valid &&
		p.Tax.Valid && p.TotalDebt.Valid && p.DueDate != nil
}

const (
	OrderStatusPending   = "pending"
	OrderStatusApproved  = "approved"
	OrderStatusCompleted = "completed"
)

// Платежи клиентов

type Payment struct {
	ID          uuid.UUID
	ClientID    uuid.UUID
	OrderID     uuid.UUID
	Amount      decimal.Decimal
	BankName    string
	ProofURL    string
	Status      string
	Date        time.Time
	ConfirmedAt *time.Time
	Feedback    string
}

const (
	PaymentStatusPending   = "pending"
	PaymentStatusConfirmed = "confirmed"
)

// Задолженность по заказу

type DebtSnapshot struct {
	OrderID    uuid.UUID
	TotalDebt  decimal.Decimal
	AmountPaid decimal.Decimal
	AmountLeft decimal.Decimal
	Overpaid   decimal.Decimal
}

// Счета BDC и журнал операций

type BDCAccount struct {
	ID          uuid.UUID
	Name        string
	Phone       string
	Location    string
	Balance     decimal.Decimal
	DateCreated time.Time
}

type BDCTransaction struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	Amount    decimal.Decimal
	Type      string
	Note      string
	Timestamp time.Time
}

const (
	BDCTransactionDeposit    = "deposit"
	BDCTransactionWithdrawal = "withdrawal"
)

// Signed - сумма операции со знаком (списание отрицательное).
func (t BDCTransaction) Signed() decimal.Decimal {
	if t.Type == BDCTransactionWithdrawal {
		return t.Amount.Neg()
	}
	return t.Amount
}

// Настройки панели администратора

type Settings struct {
	ViewDashboard bool
	ApproveOrders bool
}

// Роли вызывающей стороны

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleAssistant Role = "assistant"
	RoleClient    Role = "client"
)

// Caller - кто выполняет запрос. ClientID заполнен только для роли client.
type Caller struct {
	Role     Role
	ClientID uuid.UUID
}

// Staff - администратор или ассистент.
func (c Caller) Staff() bool {
	return c.Role == RoleAdmin || c.Role == RoleAssistant
}
