package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iurnickita/fuelcredit/internal/apperr"
	"github.com/iurnickita/fuelcredit/internal/model"
)

const (
	topClientsLimit     = 5
	recentLimit         = 5
	activitiesLimit     = 8
	recentActivityRange = 72 * time.Hour
)

// Виды событий ленты активности.
const (
	ActivityOrderApproved    = "order_approved"
	ActivityPaymentConfirmed = "payment_confirmed"
	ActivityOrderOverdue     = "order_overdue"
)

type TopClient struct {
	Client model.Client
	Orders int
}

type Activity struct {
	Kind    string
	Time    time.Time
	Client  model.Client
	OrderID uuid.UUID
	Product string
	Amount  decimal.Decimal
}

// DashboardDetails - расширенная панель: помесячная статистика, лучшие клиенты, лента событий.
type DashboardDetails struct {
	Dashboard
	Year          int
	MonthlyOrders [12]int
	TopClients    []TopClient
	Activities    []Activity
}

func (s *service) DashboardDetails(ctx context.Context, settings model.Settings) (DashboardDetails, error) {
	if !settings.ViewDashboard {
		return DashboardDetails{}, fmt.Errorf("dashboard details: %w", apperr.ErrFeatureDisabled)
	}
	summary, err := s.Dashboard(ctx, settings)
	if err != nil {
		return DashboardDetails{}, err
	}

	now := s.now().UTC()
	today := now.Truncate(24 * time.Hour)
	since := now.Add(-recentActivityRange)

	monthly, err := s.store.OrderMonthlyCounts(ctx, now.Year())
	if err != nil {
		return DashboardDetails{}, err
	}
	top, err := s.store.OrderTopClients(ctx, topClientsLimit)
	if err != nil {
		return DashboardDetails{}, err
	}
	approved, err := s.store.OrderRecentApproved(ctx, since, recentLimit)
	if err != nil {
		return DashboardDetails{}, err
	}
	confirmed, err := s.store.PaymentRecentConfirmed(ctx, since, recentLimit)
	if err != nil {
		return DashboardDetails{}, err
	}
	overdue, err := s.store.OrderOverdue(ctx, today, recentLimit)
	if err != nil {
		return DashboardDetails{}, err
	}

	lookup := s.clientLookup()
	details := DashboardDetails{
		Dashboard:     summary,
		Year:          now.Year(),
		MonthlyOrders: monthly,
	}
	for _, t := range top {
		c, err := lookup(ctx, t.ClientID)
		if err != nil {
			return DashboardDetails{}, err
		}
		details.TopClients = append(details.TopClients, TopClient{Client: c, Orders: t.Orders})
	}

	var activities []Activity
	for _, o := range approved {
		c, err := lookup(ctx, o.ClientID)
		if err != nil {
			return DashboardDetails{}, err
		}
		activities = append(activities, Activity{
			Kind:    ActivityOrderApproved,
			Time:    o.Date,
			Client:  c,
			OrderID: o.ID,
			Product: o.Product,
			Amount:  o.Pricing.TotalDebt.Decimal,
		})
	}
	for _, p := range confirmed {
		c, err := lookup(ctx, p.ClientID)
		if err != nil {
			return DashboardDetails{}, err
		}
		activities = append(activities, Activity{
			Kind:    ActivityPaymentConfirmed,
			Time:    p.Date,
			Client:  c,
			OrderID: p.OrderID,
			Amount:  p.Amount,
		})
	}
	for _, o := range overdue {
		c, err := lookup(ctx, o.ClientID)
		if err != nil {
			return DashboardDetails{}, err
		}
		activities = append(activities, Activity{
			Kind:    ActivityOrderOverdue,
			Time:    *o.Pricing.DueDate,
			Client:  c,
			OrderID: o.ID,
			Product: o.Product,
			Amount:  o.Pricing.TotalDebt.Decimal,
		})
	}
	sort.SliceStable(activities, func(i, j int) bool {
		return activities[i].Time.After(activities[j].Time)
	})
	if len(activities) > activitiesLimit {
		activities = activities[:activitiesLimit]
	}
	details.Activities = activities
	return details, nil
}

// clientLookup кэширует клиентов в пределах одного запроса. Удаленный клиент дает пустую запись.
func (s *service) clientLookup() func(ctx context.Context, id uuid.UUID) (model.Client, error) {
	cache := make(map[uuid.UUID]model.Client)
	return func(ctx context.Context, id uuid.UUID) (model.Client, error) {
		if c, ok := cache[id]; ok {
			return c, nil
		}
		c, err := s.clients.Get(ctx, id)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return model.Client{}, err
		}
		cache[id] = c
		return c, nil
	}
}
