// Package validation validates configuration structs with struct tags using
// go-playground/validator. Failures are reported as an INVALID_CONFIG
// *errors.AppError listing every offending field by its mapstructure key.
//
//	type Config struct {
//	    Name string `mapstructure:"name" validate:"required,identifier"`
//	}
//	err := validation.Validate(cfg)
package validation
