// Package types contains small generic helper types shared across the module.
package types

//go:generate go tool errtrace -w .

import (
	"braces.dev/errtrace"
	"github.com/google/go-cmp/cmp"

	"github.com/relaypay/switchcore/internal/errorutil"
)

type ContextKey string

type ValidFlag interface {
	IsValid() bool
}

// IsValid returns true if the value has method `IsValid() bool` and it returns true.
func IsValid(v any) bool {
	vv, ok := v.(ValidFlag)
	return ok && vv.IsValid()
}

type Validatable interface {
	Validate() error
}

// Validate validates the value if it has method `Validate() error`,
// otherwise returns an [errorutil.ErrInvalidArgument] error.
func Validate(v any) error {
	vv, ok := v.(Validatable)
	if !ok {
		return errtrace.Wrap(errorutil.NewInvalidArgumentError("%T does not implement types.Validatable", v))
	}
	return errtrace.Wrap(vv.Validate())
}

type Equalable interface {
	Equal(val any) bool
}

// IsEqual returns true if the values are equal.
func IsEqual(v1, v2 any) bool {
	return cmp.Equal(v1, v2)
}

type Cloneable[T any] interface {
	Clone() T
}

// Clone clones the value if it has method `Clone() T`, otherwise returns a zero value.
func Clone[T any](v any) T {
	if v1, ok := v.(Cloneable[T]); ok {
		return v1.Clone()
	}
	if v == nil {
		var zero T
		return zero
	}
	v1, _ := v.(T)
	return v1
}
