package order

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/iurnickita/fuelcredit/internal/apperr"
	"github.com/iurnickita/fuelcredit/internal/model"
	"github.com/iurnickita/fuelcredit/internal/store"
)

func submitRequest(clientID uuid.UUID) SubmitRequest {
	return SubmitRequest{
		ClientID:      clientID,
		Product:       "AGO",
		VehicleNumber: "GT-4411-21",
		DriverName:    "Kofi Boateng",
		DriverPhone:   "0244111222",
		Quantity:      "1,000",
		Region:        "Greater Accra",
	}
}

func validPricing() PricingRequest {
	return PricingRequest{
		OMC:       "Star Oil",
		BDC:       "Juwel Energy",
		Depot:     "Tema",
		PBdcOmc:   "10",
		SBdcOmc:   "12",
		Margin:    "2",
		Tax:       "35.5",
		TotalDebt: "1000",
		DueDate:   "2025-01-01",
	}
}

func TestSubmit(t *testing.T) {
	ctx := context.Background()
	lc := NewLifecycle(store.NewMemStore())

	order, err := lc.Submit(ctx, submitRequest(uuid.New()))
	require.NoError(t, err)
	require.Equal(t, int64(1000), order.Quantity)
	require.Equal(t, model.OrderStatusPending, order.Status)
	require.False(t, order.Pricing.Margin.Valid)
	require.True(t, ValidNumber(order.Number), order.Number)

	stored, err := lc.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, order.Number, stored.Number)

	byNumber, err := lc.GetByNumber(ctx, order.Number)
	require.NoError(t, err)
	require.Equal(t, order.ID, byNumber.ID)
}

func TestSubmitValidation(t *testing.T) {
	ctx := context.Background()
	lc := NewLifecycle(store.NewMemStore())

	tests := []struct {
		name   string
		modify func(*SubmitRequest)
		field  string
		reason string
	}{
		{"blank product", func(r *SubmitRequest) { r.Product = " " }, "product", "required"},
		{"blank region", func(r *SubmitRequest) { r.Region = "" }, "region", "required"},
		{"blank quantity", func(r *SubmitRequest) { r.Quantity = "" }, "quantity", "required"},
		{"text quantity", func(r *SubmitRequest) { r.Quantity = "lots" }, "quantity", "invalid"},
		{"zero quantity", func(r *SubmitRequest) { r.Quantity = "0" }, "quantity", "must_be_positive"},
		{"negative quantity", func(r *SubmitRequest) { r.Quantity = "-1,000" }, "quantity", "must_be_positive"},
		{"no client", func(r *SubmitRequest) { r.ClientID = uuid.Nil }, "client_id", "required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := submitRequest(uuid.New())
			tt.modify(&req)
			_, err := lc.Submit(ctx, req)
			require.ErrorIs(t, err, apperr.ErrValidation)
			require.Equal(t, tt.reason, apperr.FieldsOf(err)[tt.field])
		})
	}
}

func TestUpdateAndApprove(t *testing.T) {
	ctx := context.Background()
	lc := NewLifecycle(store.NewMemStore())

	req := submitRequest(uuid.New())
	req.Quantity = "500"
	order, err := lc.Submit(ctx, req)
	require.NoError(t, err)

	approved, err := lc.UpdateAndApprove(ctx, order.ID, validPricing())
	require.NoError(t, err)
	require.True(t, approved)

	order, err = lc.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, model.OrderStatusApproved, order.Status)
	require.True(t, order.Pricing.Complete())
	require.Equal(t, "1000", ComputeReturns(order).StringFixed(0))
	require.True(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Equal(*order.Pricing.DueDate))

	// согласованный заказ больше не редактируется
	_, err = lc.UpdateAndApprove(ctx, order.ID, validPricing())
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestUpdateAndApprovePartial(t *testing.T) {
	ctx := context.Background()
	lc := NewLifecycle(store.NewMemStore())

	for _, field := range []string{FieldPBdcOmc, FieldSBdcOmc, FieldMargin, FieldTax, FieldTotalDebt, FieldDueDate} {
		t.Run(field, func(t *testing.T) {
			order, err := lc.Submit(ctx, submitRequest(uuid.New()))
			require.NoError(t, err)

			pricing := validPricing()
			switch field {
			case FieldPBdcOmc:
				pricing.PBdcOmc = ""
			case FieldSBdcOmc:
				pricing.SBdcOmc = "twelve"
			case FieldMargin:
				pricing.Margin = ""
			case FieldTax:
				pricing.Tax = "n/a"
			case FieldTotalDebt:
				pricing.TotalDebt = ""
			case FieldDueDate:
				pricing.DueDate = "tomorrow"
			}

			approved, err := lc.UpdateAndApprove(ctx, order.ID, pricing)
			require.NoError(t, err)
			require.False(t, approved)

			order, err = lc.Get(ctx, order.ID)
			require.NoError(t, err)
			require.Equal(t, model.OrderStatusPending, order.Status)
			require.False(t, order.Pricing.Complete())
			// разобранные поля сохранены
			require.Equal(t, "Tema", order.Pricing.Depot)
			if field != FieldTotalDebt {
				require.True(t, order.Pricing.TotalDebt.Valid)
			}
		})
	}
}

func TestUpdateAndApproveRequiresNames(t *testing.T) {
	ctx := context.Background()
	lc := NewLifecycle(store.NewMemStore())

	order, err := lc.Submit(ctx, submitRequest(uuid.New()))
	require.NoError(t, err)

	pricing := validPricing()
	pricing.Depot = ""
	_, err = lc.UpdateAndApprove(ctx, order.ID, pricing)
	require.ErrorIs(t, err, apperr.ErrValidation)
	require.Equal(t, "required", apperr.FieldsOf(err)["depot"])

	order, err = lc.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, "", order.Pricing.OMC)

	_, err = lc.UpdateAndApprove(ctx, uuid.New(), validPricing())
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestComputeReturns(t *testing.T) {
	order := model.Order{Quantity: 333}
	require.True(t, ComputeReturns(order).IsZero())

	order.Pricing.Margin = decimal.NewNullDecimal(decimal.RequireFromString("0.125"))
	require.Equal(t, "41.63", ComputeReturns(order).StringFixed(2))
	// детерминированность
	require.True(t, ComputeReturns(order).Equal(ComputeReturns(order)))

}

func TestValidNumber(t *testing.T) {
	require.True(t, ValidNumber("79927398713"))
	require.False(t, ValidNumber("79927398710"))
	require.False(t, ValidNumber("ORD-1"))
	require.False(t, ValidNumber(""))
}
