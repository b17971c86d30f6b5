package orders

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// maxItemQty matches the lte bound on ItemInput.Qty. It also caps the
// combined quantity of repeated lines for one product.
const maxItemQty = 1000

// validateCreate checks the request shape before any row is touched.
func validateCreate(v *validator.Validate, in CreateOrderInput) error {
	err := v.Struct(in)
	if err == nil {
		return validateMergedQty(in.Items)
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "validate order")
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldPath(fe.Namespace())] = rule(fe)
	}
	return &ValidationError{Fields: fields}
}

// validateMergedQty rejects requests whose repeated lines add up to more
// than maxItemQty for one product, reported on the line that crosses it.
func validateMergedQty(items []ItemInput) error {
	total := make(map[uuid.UUID]int, len(items))
	for i, it := range items {
		total[it.ProductID] += it.Qty
		if total[it.ProductID] > maxItemQty {
			return &ValidationError{Fields: map[string]string{
				fmt.Sprintf("items[%d].qty", i): fmt.Sprintf("combined qty for product must be at most %d", maxItemQty),
			}}
		}
	}
	return nil
}

// fieldPath drops the root struct name: "CreateOrderInput.items[0].qty" -> "items[0].qty".
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func rule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte", "max":
		return "must be at most " + fe.Param()
	case "min":
		return "must have at least " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "email":
		return "must be a valid email"
	default:
		return "failed " + fe.Tag()
	}
}
