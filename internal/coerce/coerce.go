// Package coerce переводит недоверенные строковые значения полей в типизированные.
//
// Пустая строка всегда означает "поле не заполнено", а не ноль. Функции пакета
// не паникуют: неудача разбора возвращается как FieldError.
package coerce

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iurnickita/fuelcredit/internal/apperr"
)

// DateLayout - формат дат в формах (due_date, фильтры истории).
const DateLayout = "2006-01-02"

// Причины отказа по полю
const (
	ReasonMissing = "missing"
	ReasonInvalid = "invalid"
)

// Kind - ожидаемый тип поля схемы.
type Kind int

const (
	KindDecimal Kind = iota
	KindMoney
	KindInteger
	KindDate
)

// Границы десятичных значений: колонки NUMERIC(18,4) для цен и NUMERIC(18,2) для денег.
const (
	maxDecimalLen = 32
	PriceScale    = 4
	MoneyScale    = 2
)

// maxDecimal - значения по модулю не меньше 10^14 не помещаются в колонки.
var maxDecimal = decimal.New(1, 14)

// FieldError перечисляет поля, которые не удалось разобрать.
type FieldError struct {
	Fields map[string]string
}

func (e *FieldError) Error() string {
	names := e.Names()
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+" "+e.Fields[name])
	}
	return "fields failed to parse: " + strings.Join(parts, ", ")
}

// Names возвращает имена полей в алфавитном порядке.
func (e *FieldError) Names() []string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validation переводит FieldError в ошибку валидации для вызывающей стороны.
func (e *FieldError) Validation(msg string) error {
	v := apperr.Violations{}
	for name, reason := range e.Fields {
		v.Add(name, reason)
	}
	return v.Err(msg)
}

func fieldErr(name, reason string) *FieldError {
	return &FieldError{Fields: map[string]string{name: reason}}
}

// Decimal разбирает цену/маржу: не больше PriceScale знаков после точки.
func Decimal(name, raw string) (decimal.Decimal, *FieldError) {
	return parseDecimal(name, raw, PriceScale)
}

// Money разбирает денежную сумму: не больше MoneyScale знаков после точки.
func Money(name, raw string) (decimal.Decimal, *FieldError) {
	return parseDecimal(name, raw, MoneyScale)
}

// parseDecimal принимает только обычную запись ("-12.50"). Экспоненциальная форма,
// слишком длинная строка, лишние знаки после точки или выход за 10^14 - invalid.
func parseDecimal(name, raw string, scale int32) (decimal.Decimal, *FieldError) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, fieldErr(name, ReasonMissing)
	}
	if len(s) > maxDecimalLen || strings.ContainsAny(s, "eE") {
		return decimal.Zero, fieldErr(name, ReasonInvalid)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fieldErr(name, ReasonInvalid)
	}
	if !Fits(d, scale) {
		return decimal.Zero, fieldErr(name, ReasonInvalid)
	}
	return d, nil
}

// Fits - значение по модулю меньше 10^14 и имеет не больше scale значащих знаков
// после точки ("1.500" подходит для 2). Сначала проверяется показатель степени,
// чтобы не разворачивать огромные значения.
func Fits(d decimal.Decimal, scale int32) bool {
	exp := d.Exponent()
	if exp < -maxDecimalLen || exp > 14 {
		return false
	}
	if exp < -scale && !d.Equal(d.Truncate(scale)) {
		return false
	}
	return d.Abs().LessThan(maxDecimal)
}

// Int разбирает целое, допускает разделители тысяч ("1,000" -> 1000).
func Int(name, raw string) (int64, *FieldError) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if s == "" {
		return 0, fieldErr(name, ReasonMissing)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fieldErr(name, ReasonInvalid)
	}
	return n, nil
}

// Date разбирает дату в формате DateLayout (UTC).
func Date(name, raw string) (time.Time, *FieldError) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fieldErr(name, ReasonMissing)
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fieldErr(name, ReasonInvalid)
	}
	return t, nil
}

// Schema описывает ожидаемые поля записи.
type Schema map[string]Kind

// Record - результат применения схемы. Содержит только успешно разобранные поля.
type Record struct {
	decimals map[string]decimal.Decimal
	ints     map[string]int64
	dates    map[string]time.Time
}

// Apply разбирает все поля схемы. Возвращает запись с тем, что удалось разобрать,
// и FieldError со всеми неудачными полями (nil, если разобраны все).
func (s Schema) Apply(raw map[string]string) (Record, *FieldError) {
	rec := Record{
		decimals: make(map[string]decimal.Decimal),
		ints:     make(map[string]int64),
		dates:    make(map[string]time.Time),
	}
	failed := map[string]string{}
	for name, kind := range s {
		var ferr *FieldError
		switch kind {
		case KindDecimal, KindMoney:
			scale := int32(PriceScale)
			if kind == KindMoney {
				scale = MoneyScale
			}
			var d decimal.Decimal
			if d, ferr = parseDecimal(name, raw[name], scale); ferr == nil {
				rec.decimals[name] = d
			}
		case KindInteger:
			var n int64
			if n, ferr = Int(name, raw[name]); ferr == nil {
				rec.ints[name] = n
			}
		case KindDate:
			var t time.Time
			if t, ferr = Date(name, raw[name]); ferr == nil {
				rec.dates[name] = t
			}
		default:
			ferr = fieldErr(name, fmt.Sprintf("unknown kind %d", kind))
		}
		if ferr != nil {
			failed[name] = ferr.Fields[name]
		}
	}
	if len(failed) > 0 {
		return rec, &FieldError{Fields: failed}
	}
	return rec, nil
}

func (r Record) Decimal(name string) (decimal.Decimal, bool) {
	d, ok := r.decimals[name]
	return d, ok
}

// NullDecimal удобен для записи в nullable колонку.
func (r Record) NullDecimal(name string) decimal.NullDecimal {
	d, ok := r.decimals[name]
	return decimal.NullDecimal{Decimal: d, Valid: ok}
}

func (r Record) Int(name string) (int64, bool) {
	n, ok := r.ints[name]
	return n, ok
}

func (r Record) Date(name string) (time.Time, bool) {
	t, ok := r.dates[name]
	return t, ok
}
