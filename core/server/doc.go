// Package server holds the HTTP server configuration.
//
// The serve command owns the fiber application; this package only describes where it
// listens and whether the API key middleware is active.
package server
