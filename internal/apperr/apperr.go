// Package apperr содержит виды ошибок, которые видит вызывающая сторона.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrDuplicateName   = errors.New("duplicate name")
	ErrAlreadyExists   = errors.New("already exists")
	ErrNoApprovedOrder = errors.New("no approved order")
	ErrFeatureDisabled = errors.New("feature disabled")
)

// ValidationError перечисляет поля запроса, которые не прошли проверку.
// Fields: имя поля -> причина ("required", "invalid", "must_be_positive" ...).
type ValidationError struct {
	Msg    string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Msg
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return fmt.Sprintf("%s (%s)", e.Msg, strings.Join(parts, ", "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Violations собирает нарушения по полям. Пустой набор - ошибки нет.
type Violations map[string]string

func (v Violations) Required(field, value string) {
	if strings.TrimSpace(value) == "" {
		v[field] = "required"
	}
}

func (v Violations) Add(field, reason string) {
	if _, ok := v[field]; !ok {
		v[field] = reason
	}
}

func (v Violations) Empty() bool { return len(v) == 0 }

// Err возвращает *ValidationError или nil.
func (v Violations) Err(msg string) error {
	if v.Empty() {
		return nil
	}
	fields := make(map[string]string, len(v))
	for k, r := range v {
		fields[k] = r
	}
	return &ValidationError{Msg: msg, Fields: fields}
}

// Invalid - ошибка валидации без привязки к полям.
func Invalid(msg string) error {
	return &ValidationError{Msg: msg}
}

// NotFound оборачивает ErrNotFound именем сущности.
func NotFound(entity string, id any) error {
	return fmt.Errorf("%s %v: %w", entity, id, ErrNotFound)
}

// FieldsOf достает поля из ошибки валидации в цепочке.
func FieldsOf(err error) map[string]string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Fields
	}
	return nil
}
