// Package config is the raw, user-facing configuration surface: flat
// structs decoded from flags/env/toml via viper, validated with
// go-playground/validator tags, then transformed into the strongly-typed
// app config the Fleet Controller is built from.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Validatable is any raw config section that can check its own tags.
type Validatable interface {
	Validate() error
}

// Load unmarshals the current viper state into T and validates it.
func Load[T Validatable]() (T, error) {
	var out T
	if err := viper.Unmarshal(&out); err != nil {
		return out, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := out.Validate(); err != nil {
		return out, err
	}
	return out, nil
}

var validate = validator.New()

// validateConfig runs struct-tag validation and collapses the result into
// a single readable error naming every failing field.
func validateConfig(v any) error {
	if err := validate.Struct(v); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			msg := "invalid configuration:"
			for _, fe := range verrs {
				msg += fmt.Sprintf(" %s failed %s;", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("%s", msg)
		}
		return err
	}
	return nil
}
