package eventbus

import (
	"errors"
	"fmt"
)

var (
	ErrUnexpectedTypeParam = errors.New("unexpected parameter type")
	ErrNotEnoughParams     = errors.New("not enough parameters")
)

// Param is a single argument passed along with an emitted event.
type Param = any

// Paramf creates a string [Param] using [fmt.Sprintf].
func Paramf(format string, args ...any) Param {
	return Param(fmt.Sprintf(format, args...))
}

// AssertParam is the most basic way to assert [Param] type, and is most useful when a [Listener] only takes 1 or 2 parameters.
// [ParamSpec] with multiple [ParamAssertion] is likely a more convenient way to destructure longer parameter lists.
func AssertParam[T any](param Param) (T, bool) {
	if param == nil {
		var mt T
		return mt, false
	}
	val, ok := param.(T)
	return val, ok
}

// ParamAssertion is a function that asserts constraints of a [Param].
// The pos parameter is informational and usually should not be the subject of an assertion.
type ParamAssertion func(pos int, p Param) error

// And is used to chain assertions into one [ParamAssertion].
// If an assertion returns an error, then execution will stop and the error will be returned.
func (a ParamAssertion) And(other ParamAssertion, more ...ParamAssertion) ParamAssertion {
	chain := append([]ParamAssertion{a, other}, more...)
	return func(pos int, p Param) error {
		for _, next := range chain {
			if next == nil {
				continue
			}
			if err := next(pos, p); err != nil {
				return err
			}
		}
		return nil
	}
}

// AnyPass will run a set of [ParamAssertion], and if any return a nil error, then execution will stop and return nil.
// This only returns an error if all [ParamAssertion] fail, and all errors will be returned.
// This is most useful if a [Param] can have one of multiple types.
func AnyPass(assertions ...ParamAssertion) ParamAssertion {
	return func(pos int, p Param) error {
		var errs []error
		for _, assertion := range assertions {
			err := assertion(pos, p)
			if err == nil {
				return nil
			}
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	}
}

// IsType asserts that a [Param] is of the expected type.
func IsType[T any]() ParamAssertion {
	return func(pos int, p Param) error {
		if _, ok := p.(T); !ok {
			return fmt.Errorf("%w: parameter %d expected %T, but got %T", ErrUnexpectedTypeParam, pos, *new(T), p)
		}
		return nil
	}
}

func notNil() ParamAssertion {
	return func(pos int, p Param) error {
		if p == nil {
			return fmt.Errorf("%w: parameter %d is nil", ErrUnexpectedTypeParam, pos)
		}
		return nil
	}
}

// AssertAndStore will return a [ParamAssertion] that will first assert that the [Param] is of the expected type, and then store its value in the target pointer.
// The target parameter cannot be a nil pointer.
func AssertAndStore[T any](target *T) ParamAssertion {
	if target == nil {
		return func(pos int, _ Param) error {
			return fmt.Errorf("target for param %d is nil pointer", pos)
		}
	}
	return notNil().And(IsType[T](), func(_ int, p Param) error {
		*target = p.(T)
		return nil
	})
}

// Optional can be used if a [Param] at this position is not required in all cases.
// If a non-nil [Param] is given, then the ifNotNil [ParamAssertion] will be applied.
// Optional will return a nil error otherwise.
func Optional(ifNotNil ParamAssertion) ParamAssertion {
	return func(pos int, p Param) error {
		if p == nil {
			return nil
		}
		return ifNotNil(pos, p)
	}
}

// ParamSpec uses all given [ParamAssertion] to create a function that can make assertions about all params.
// The assertion at position 0 will be applied to the [Param] at position 0, and so on for all parameters.
// If a [ParamAssertion] at a position is nil, then that [Param] will have no assertions applied to it.
// Extra parameters or extra assertions are ignored.
// If the number of parameters is less than minParams, then an error will be immediately returned without running any [ParamAssertion].
func ParamSpec(minParams int, assertions ...ParamAssertion) func(params []Param) []error {
	return func(params []Param) []error {
		if len(params) < minParams {
			return []error{fmt.Errorf("%w: expected at least %d parameters, got %d", ErrNotEnoughParams, minParams, len(params))}
		}
		var errs []error
		for i := 0; i < len(assertions) && i < len(params); i++ {
			if assertions[i] == nil {
				continue
			}
			if err := assertions[i](i, params[i]); err != nil {
				errs = append(errs, err)
			}
		}
		return errs
	}
}

// CheckParams applies a [ParamSpec] and joins any failures into a single error.
func CheckParams(params []Param, minParams int, assertions ...ParamAssertion) error {
	return errors.Join(ParamSpec(minParams, assertions...)(params)...)
}

// MapParam maps the first [Param] to a target variable, which is the common case for a [Listener].
func MapParam[T any](target *T, params []Param) error {
	return CheckParams(params, 1, AssertAndStore(target))
}
