// Package client - реестр клиентов: регистрация и разрешение ссылки на клиента
// (UUID или код вида TT25123) в типизированный идентификатор.
package client

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iurnickita/fuelcredit/internal/apperr"
	"github.com/iurnickita/fuelcredit/internal/model"
	"github.com/iurnickita/fuelcredit/internal/store"
)

const maxCodeAttempts = 10

type Registry interface {
	Register(ctx context.Context, name, phone string) (model.Client, error)
	Resolve(ctx context.Context, ref string) (model.Client, error)
	Get(ctx context.Context, id uuid.UUID) (model.Client, error)
	Count(ctx context.Context) (int, error)
}

type registry struct {
	store  store.Store
	prefix string
	now    func() time.Time
}

func NewRegistry(store store.Store, codePrefix string) Registry {
	return &registry{store: store, prefix: codePrefix, now: time.Now}
}

// Code - код клиента: префикс, две цифры года и три последние цифры телефона.
func Code(prefix string, now time.Time, phone string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	if len(digits) > 3 {
		digits = digits[len(digits)-3:]
	}
	digits = strings.Repeat("0", 3-len(digits)) + digits
	return fmt.Sprintf("%s%02d%s", prefix, now.Year()%100, digits)
}

func (r *registry) Register(ctx context.Context, name, phone string) (model.Client, error) {
	v := apperr.Violations{}
	v.Required("name", name)
	v.Required("phone", phone)
	if err := v.Err("name and phone are required"); err != nil {
		return model.Client{}, err
	}

	now := r.now().UTC()
	base := Code(r.prefix, now, phone)
	client := model.Client{
		ID:             uuid.New(),
		Name:           strings.TrimSpace(name),
		Phone:          strings.TrimSpace(phone),
		Status:         model.ClientStatusActive,
		DateRegistered: now,
	}
	// при совпадении кода добавляем порядковый суффикс
	for i := 0; i < maxCodeAttempts; i++ {
		client.Code = base
		if i > 0 {
			client.Code = base + strconv.Itoa(i)
		}
		err := r.store.ClientCreate(ctx, client)
		if err == nil {
			return client, nil
		}
		if !errors.Is(err, store.ErrAlreadyExists) {
			return model.Client{}, fmt.Errorf("create client: %w", err)
		}
	}
	return model.Client{}, fmt.Errorf("client code %s: %w", base, apperr.ErrAlreadyExists)
}

// Resolve принимает UUID клиента или его код.
func (r *registry) Resolve(ctx context.Context, ref string) (model.Client, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return model.Client{}, &apperr.ValidationError{
			Msg:    "client is required",
			Fields: map[string]string{"client_id": "required"},
		}
	}
	if id, err := uuid.Parse(ref); err == nil {
		return r.Get(ctx, id)
	}
	client, err := r.store.ClientGetByCode(ctx, strings.ToUpper(ref))
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return model.Client{}, apperr.NotFound("client", ref)
		}
		return model.Client{}, err
	}
	return client, nil
}

func (r *registry) Get(ctx context.Context, id uuid.UUID) (model.Client, error) {
	client, err := r.store.ClientGet(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return model.Client{}, apperr.NotFound("client", id)
		}
		return model.Client{}, err
	}
	return client, nil
}

func (r *registry) Count(ctx context.Context) (int, error) {
	return r.store.ClientCount(ctx)
}
