// Package bdc - денежные счета BDC и журнал операций по ним.
package bdc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iurnickita/fuelcredit/internal/apperr"
	"github.com/iurnickita/fuelcredit/internal/coerce"
	"github.com/iurnickita/fuelcredit/internal/model"
	"github.com/iurnickita/fuelcredit/internal/store"
)

// Виды операций в запросе
const (
	TypeAdd      = "add"
	TypeSubtract = "subtract"
)

type Ledger interface {
	CreateAccount(ctx context.Context, name, phone, location string) (model.BDCAccount, error)
	ApplyTransaction(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, txnType, note string) (decimal.Decimal, error)
	History(ctx context.Context, accountID uuid.UUID, start, end string) ([]model.BDCTransaction, error)
	Get(ctx context.Context, id uuid.UUID) (model.BDCAccount, error)
	List(ctx context.Context) ([]model.BDCAccount, error)
	Verify(ctx context.Context, id uuid.UUID) (Reconciliation, error)
}

// Reconciliation - сверка сохраненного баланса с журналом.
type Reconciliation struct {
	Stored  decimal.Decimal
	Derived decimal.Decimal
}

func (r Reconciliation) Consistent() bool {
	return r.Stored.Equal(r.Derived)
}

type ledger struct {
	store store.Store
	now   func() time.Time
}

func NewLedger(store store.Store) Ledger {
	return &ledger{store: store, now: time.Now}
}

func (l *ledger) CreateAccount(ctx context.Context, name, phone, location string) (model.BDCAccount, error) {
	v := apperr.Violations{}
	v.Required("name", name)
	v.Required("phone", phone)
	v.Required("location", location)
	if err := v.Err("all fields are required (name, phone, location)"); err != nil {
		return model.BDCAccount{}, err
	}

	account := model.BDCAccount{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(name),
		Phone:       strings.TrimSpace(phone),
		Location:    strings.TrimSpace(location),
		Balance:     decimal.Zero,
		DateCreated: l.now().UTC(),
	}
	err := l.store.BDCCreate(ctx, account)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return model.BDCAccount{}, fmt.Errorf("bdc %q: %w", account.Name, apperr.ErrDuplicateName)
		}
		return model.BDCAccount{}, err
	}
	return account, nil
}

// ApplyTransaction пополняет (add) или списывает (subtract) средства.
// Баланс может уйти в минус. Новый баланс и запись журнала сохраняются вместе.
func (l *ledger) ApplyTransaction(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, txnType, note string) (decimal.Decimal, error) {
	v := apperr.Violations{}
	if !coerce.Fits(amount, coerce.MoneyScale) {
		v.Add("amount", coerce.ReasonInvalid)
	} else if !amount.IsPositive() {
		v.Add("amount", "must_be_positive")
	}
	var label string
	switch txnType {
	case TypeAdd:
		label = model.BDCTransactionDeposit
	case TypeSubtract:
		label = model.BDCTransactionWithdrawal
	default:
		v.Add("type", "invalid")
	}
	if err := v.Err("invalid amount or transaction type"); err != nil {
		return decimal.Zero, err
	}

	balance, err := l.store.BDCApply(ctx, model.BDCTransaction{
		ID:        uuid.New(),
		AccountID: accountID,
		Amount:    amount,
		Type:      label,
		Note:      strings.TrimSpace(note),
		Timestamp: l.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return decimal.Zero, apperr.NotFound("bdc", accountID)
		}
		return decimal.Zero, fmt.Errorf("apply bdc transaction: %w", err)
	}
	return balance, nil
}

// History - операции по счету, новые первыми. Границы start/end включительные
// (формат 2006-01-02, end покрывает весь день). Неразборчивая граница игнорируется.
func (l *ledger) History(ctx context.Context, accountID uuid.UUID, start, end string) ([]model.BDCTransaction, error) {
	if _, err := l.Get(ctx, accountID); err != nil {
		return nil, err
	}

	var from, to *time.Time
	if d, ferr := coerce.Date("start", start); ferr == nil {
		from = &d
	}
	if d, ferr := coerce.Date("end", end); ferr == nil {
		d = d.Add(24*time.Hour - time.Nanosecond)
		to = &d
	}
	return l.store.BDCHistory(ctx, accountID, from, to)
}

func (l *ledger) Get(ctx context.Context, id uuid.UUID) (model.BDCAccount, error) {
	account, err := l.store.BDCGet(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNoRows) {
			return model.BDCAccount{}, apperr.NotFound("bdc", id)
		}
		return model.BDCAccount{}, err
	}
	return account, nil
}

func (l *ledger) List(ctx context.Context) ([]model.BDCAccount, error) {
	return l.store.BDCList(ctx)
}

// Verify пересчитывает баланс по журналу.
func (l *ledger) Verify(ctx context.Context, id uuid.UUID) (Reconciliation, error) {
	account, err := l.Get(ctx, id)
	if err != nil {
		return Reconciliation{}, err
	}
	history, err := l.store.BDCHistory(ctx, id, nil, nil)
	if err != nil {
		return Reconciliation{}, err
	}
	derived := decimal.Zero
	for _, txn := range history {
		derived = derived.Add(txn.Signed())
	}
	return Reconciliation{Stored: account.Balance, Derived: derived}, nil
}
