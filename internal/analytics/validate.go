package analytics

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"airq-service/internal/models"
)

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON names so they line up with catalog keys.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks every input range and returns one message per offending
// field, in field order. An empty result means the inputs are usable.
func (e *Engine) Validate(in models.RawInputs) []string {
	err := e.validate.Struct(in)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{err.Error()}
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if msg, ok := e.text.Validation[fe.Field()]; ok {
			msgs = append(msgs, msg)
			continue
		}
		msgs = append(msgs, fe.Error())
	}
	return msgs
}
