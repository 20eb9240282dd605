package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report config keys rather than Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the decoded configuration.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	key := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return key + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s (got %v)", key, fe.Param(), fe.Value())
	case "max":
		return fmt.Sprintf("%s must be at most %s (got %v)", key, fe.Param(), fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s (got %q)", key, strings.ReplaceAll(fe.Param(), " ", ", "), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s", key, fe.Tag())
	}
}
