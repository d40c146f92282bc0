// Package validation validates configuration and definition structs.
//
// Struct tag validation (go-playground/validator) reports fields by their
// config key:
//
//	type StreamConfig struct {
//	    HighWaterMark int `mapstructure:"high_water_mark" validate:"gte=1"`
//	}
//	err := validation.Validate(cfg)
//
// Programmatic validation collects errors:
//
//	v := validation.New()
//	v.Required("name", def.Name)
//	if err := v.Validate(); err != nil { ... }
package validation
