package validation

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type defaultValidator struct{ v *validator.Validate }

func (d *defaultValidator) Validate(i any) error {
	return d.v.Struct(i)
}

// New returns an echo.Validator implementation. Field errors are reported
// under their JSON names.
func New() echo.Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return &defaultValidator{v: v}
}
