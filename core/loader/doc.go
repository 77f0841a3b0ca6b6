// Package loader registers and mounts the HTTP features.
//
// Each feature implements Feature:
//
//	type Feature interface {
//	    Name() string
//	    IsEnabled() bool
//	    Load(app fiber.Router) error
//	}
//
// The Manager loads enabled features in registration order. A feature whose
// dependencies are missing (the history feature without a database, for example)
// reports itself disabled and is skipped.
package loader
