package validation

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// ErrorBody is the 400 payload for rejected forms. Fields maps a JSON field
// name to the failed rules, with their parameter when the rule has one
// ("max=255", "len=3").
type ErrorBody struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields"`
}

// ErrorResponse converts a validator error into an ErrorBody. Any other
// error is reported as-is with no fields.
func ErrorResponse(err error) ErrorBody {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return ErrorBody{Error: err.Error(), Fields: map[string][]string{}}
	}
	fields := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if p := fe.Param(); p != "" {
			rule += "=" + p
		}
		fields[fe.Field()] = append(fields[fe.Field()], rule)
	}
	return ErrorBody{Error: "validation_failed", Fields: fields}
}
