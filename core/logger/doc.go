// Package logger builds the zap logger shared by every component.
//
// A debug level selects zap's development preset, anything else the production one.
// The encoding is json unless the format is console, which also colours levels and
// drops stack traces.
//
// HTTP handlers use WithRayID so that every line written while serving a request
// carries the RayID assigned by the rayid middleware.
//
//	log, _ := logger.New(&cfg.Log)
//	l := logger.WithRayID(log, c)
//	l.Error("Handler failed", zap.Error(err))
package logger
