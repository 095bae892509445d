// Package esys holds the declarative description of an energy system:
// leaf descriptors, flows, node variants and global constraints, and lowers
// it onto a solver-level network.
package esys

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ohowland/cgc_planner/internal/pkg/network"
)

var (
	// ErrValidation is returned for descriptors that are missing required
	// fields or carry out-of-range values.
	ErrValidation = errors.New("invalid energy system")

	// ErrUnknownType is returned by Add for a value outside the closed set
	// of element variants.
	ErrUnknownType = errors.New("unknown type")

	// ErrUnknownKind is returned for a constraint kind without a handler.
	ErrUnknownKind = errors.New("unknown constraint kind")
)

// Registry resolves labels of already lowered nodes. *network.Network
// satisfies it.
type Registry interface {
	Lookup(label string) (network.Node, error)
}

// Element is anything Add accepts. The unexported method closes the set to
// the variants of this package.
type Element interface {
	element()
}

// Node is a lowerable node descriptor.
type Node interface {
	Element
	Name() string
	Validate() error
	Lower(reg Registry) (network.Node, error)
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateStruct(owner string, v interface{}) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrValidation, owner, formatValidationError(err))
	}
	return nil
}

// formatValidationError reports the first failed rule by field name.
func formatValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	for _, e := range verrs {
		field := e.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		switch e.Tag() {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "min", "gte":
			return fmt.Errorf("%s: must be at least %s", field, e.Param())
		case "max", "lte":
			return fmt.Errorf("%s: must not exceed %s", field, e.Param())
		case "oneof":
			return fmt.Errorf("%s: must be one of [%s]", field, e.Param())
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
		}
	}
	return err
}
