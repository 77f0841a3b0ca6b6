// Package retry classifies failures and decides, mechanically, whether and how they
// are retried.
//
// # Policy Table
//
// Every failure belongs to exactly one Category. The package keeps a static table
// with one Classification row per category (retry eligibility, maximum retries,
// initial delay and backoff multiplier). The table is never mutated at runtime.
//
//   - network, timeout, rate_limit, server: transient, retried with exponential backoff.
//   - integrity: corrupted payload, re-fetched once without surfacing to the caller.
//   - structure, template, not_found, validation, config, unknown: never retried.
//
// # Errors
//
// Error wraps an underlying error with its category, the failing operation and
// free-form metadata (table name, paths, confidence) so that surfaced errors carry
// enough context to reproduce the failure.
//
// # Usage
//
//	r := retry.NewRetrier(retry.WithLogger(logger))
//	body, err := retry.Do(ctx, r, "fetch tables/Weapon.json", func() ([]byte, error) {
//	    return fetch(ctx)
//	})
package retry
