// Package order - жизненный цикл заказа топлива: создание в pending и
// согласование цены с переходом в approved.
package order

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/theplant/luhn"

	"github.com/iurnickita/fuelcredit/internal/apperr"
	"github.com/iurnickita/fuelcredit/internal/coerce"
	"github.com/iurnickita/fuelcredit/internal/model"
	"github.com/iurnickita/fuelcredit/internal/store"
)

type Lifecycle interface {
	Submit(ctx context.Context, req SubmitRequest) (model.Order, error)
	UpdateAndApprove(ctx context.Context, id uuid.UUID, req PricingRequest) (bool, error)
	Get(ctx context.Context, id uuid.UUID) (model.Order, error)
	GetByNumber(ctx context.Context, number string) (model.Order, error)
	List(ctx context.Context, filter store.OrderFilter) ([]model.Order, error)
}

// SubmitRequest - заявка клиента. Quantity приходит строкой из формы.
type SubmitRequest struct {
	ClientID      uuid.UUID
	Product       string
	VehicleNumber string
	DriverName    string
	DriverPhone   string
	Quantity      string
	Region        string
}

// PricingRequest - поля согласования заказа в сыром виде.
type PricingRequest struct {
	OMC       string
	BDC       string
	Depot     string
	PBdcOmc   string
	SBdcOmc   string
	Margin    string
	Tax       string
	TotalDebt string
	DueDate   string
}

// Имена полей цены
const (
	FieldPBdcOmc   = "p_bdc_omc"
	FieldSBdcOmc   = "s_bdc_omc"
	FieldMargin    = "margin"
	FieldTax       = "tax"
	FieldTotalDebt = "total_debt"
	FieldDueDate   = "due_date"
)

var pricingSchema = coerce.Schema{
	FieldPBdcOmc:   coerce.KindDecimal,
	FieldSBdcOmc:   coerce.KindDecimal,
	FieldMargin:    coerce.KindDecimal,
	FieldTax:       coerce.KindMoney,
	FieldTotalDebt: coerce.KindMoney,
	FieldDueDate:   coerce.KindDate,
}

type lifecycle struct {
	store store.Store
	now   func() time.Time
}

func NewLifecycle(store store.Store) Lifecycle {
	return &lifecycle{store: store, now: time.Now}
}

func (l *lifecycle) Submit(ctx context.Context, req SubmitRequest) (model.Order, error) {
	v := apperr.Violations{}
	if req.ClientID == uuid.Nil {
		v.Add("client_id", "required")
	}
	v.Required("product", req.Product)
	v.Required("vehicle_number", req.VehicleNumber)
	v.Required("driver_name", req.DriverName)
	v.Required("driver_phone", req.DriverPhone)
	v.Required("quantity", req.Quantity)
	v.Required("region", req.Region)

	quantity, ferr := coerce.Int("quantity", req.Quantity)
	if ferr != nil {
		v.Add("quantity", ferr.Fields["quantity"])
	} else if quantity <= 0 {
		v.Add("quantity", "must_be_positive")
	}
	if err := v.Err("all fields are required"); err != nil {
		return model.Order{}, err
	}

	number, err := l.nextNumber(ctx)
	if err != nil {
		return model.Order{}, err
	}

	order := model.Order{
		ID:            uuid.New(),
		Number:        number,
		ClientID:      req.ClientID,
		Product:       strings.TrimSpace(req.Product),
		VehicleNumber: strings.TrimSpace(req.VehicleNumber),
		DriverName:    strings.TrimSpace(req.DriverName),
		DriverPhone:   strings.TrimSpace(req.DriverPhone),
		Quantity:      quantity,
		Region:        strings.TrimSpace(req.Region),
		Status:        model.OrderStatusPending,
		Date:          l.now().UTC(),
	}
	if err := l.store.OrderCreate(ctx, order); err != nil {
		return model.Order{}, fmt.Errorf("create order: %w", err)
	}
	return order, nil
}

// nextNumber - номер заказа для клиента: порядковый номер и контрольная цифра Луна.
func (l *lifecycle) nextNumber(ctx context.Context) (string, error) {
	seq, err := l.store.OrderNextSeq(ctx)
	if err != nil {
		return "", fmt.Errorf("order number: %w", err)
	}
	return strconv.FormatInt(seq*10+int64(luhn.CalculateLuhn(int(seq))), 10), nil
}

// ValidNumber проверяет контрольную цифру номера заказа.
func ValidNumber(number string) bool {
	n, err := strconv.Atoi(strings.TrimSpace(number))
	if err != nil || n <= 0 {
		return false
	}
	return luhn.Valid(n)
}

// UpdateAndApprove сохраняет поля цены и согласует заказ, если разобраны все шесть
// числовых полей. Неразобранные поля сохраняются пустыми, заказ остается pending.
func (l *lifecycle) UpdateAndApprove(ctx context.Context, id uuid.UUID, req PricingRequest) (bool, error) {
	v := apperr.Violations{}
	v.Required("omc", req.OMC)
	v.Required("bdc", req.BDC)
	v.Required("depot", req.Depot)
	if err := v.Err("omc, bdc and depot are required"); err != nil {
		return false, err
	}

	order, err := l.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if order.Status != model.OrderStatusPending {
		return false, &apperr.ValidationError{
			Msg:    "only pending orders can be updated",
			Fields: map[string]string{"status": order.Status},
		}
	}

	rec, ferr := pricingSchema.Apply(map[string]string{
		FieldPBdcOmc:   req.PBdcOmc,
		FieldSBdcOmc:   req.SBdcOmc,
		FieldMargin:    req.Margin,
		FieldTax:       req.Tax,
		FieldTotalDebt: req.TotalDebt,
		FieldDueDate:   req.DueDate,
	})

	pricing := model.OrderPricing{
		OMC:       strings.TrimSpace(req.OMC),
		BDC:       strings.TrimSpace(req.BDC),
		Depot:     strings.TrimSpace(req.Depot),
		PBdcOmc:   rec.NullDecimal(FieldPBdcOmc),
		SBdcOmc:   rec.NullDecimal(FieldSBdcOmc),
		Margin:    rec.NullDecimal(FieldMargin),
		Tax:       rec.NullDecimal(FieldTax),
		TotalDebt: rec.NullDecimal(FieldTotalDebt),
	}
	if due, ok := rec.Date(FieldDueDate); ok {
		pricing.DueDate = &due
	}

	approved := ferr == nil
	status := model.OrderStatusPending
	if approved {
		status = model.OrderStatusApproved
	}

	err = l.store.OrderUpdatePricing(ctx, id, pricing, status)
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return false, apperr.NotFound("order", id)
		}
		return false, fmt.Errorf("update order: %w", err)
	}
	return approved, nil
}

func (l *lifecycle) Get(ctx context.Context, id uuid.UUID) (model.Order, error) {
	order, err := l.store.OrderGet(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return model.Order{}, apperr.NotFound("order", id)
		}
		return model.Order{}, err
	}
	return order, nil
}

func (l *lifecycle) GetByNumber(ctx context.Context, number string) (model.Order, error) {
	if !ValidNumber(number) {
		return model.Order{}, &apperr.ValidationError{
			Msg:    "invalid order number",
			Fields: map[string]string{"order_number": coerce.ReasonInvalid},
		}
	}
	order, err := l.store.OrderGetByNumber(ctx, strings.TrimSpace(number))
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return model.Order{}, apperr.NotFound("order", number)
		}
		return model.Order{}, err
	}
	return order, nil
}

func (l *lifecycle) List(ctx context.Context, filter store.OrderFilter) ([]model.Order, error) {
	return l.store.OrderList(ctx, filter)
}

// ComputeReturns - доход по заказу: margin * quantity, округление до 2 знаков.
// Без маржи или количества возвращает 0.
func ComputeReturns(order model.Order) decimal.Decimal {
	if !order.Pricing.Margin.Valid || order.Quantity <= 0 {
		return decimal.Zero
	}
	return order.Pricing.Margin.Decimal.Mul(decimal.NewFromInt(order.Quantity)).Round(2)
}
