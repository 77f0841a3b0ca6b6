// Package utils provides common utility functions for gamedata-sync.
// It includes helpers for converting JSON-decoded values (json.Number and friends)
// into Go numeric types, shared by the decoder and the synchronizer.
package utils
