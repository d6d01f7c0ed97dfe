package repoconfig

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks struct tags on Config via go-playground/validator
// (required fields, oneof enums, URL shape for remotes) after defaults
// have been applied, following a "decode, default, validate"
// pipeline order.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
