// Package upstream talks to the remote repository that publishes the game data.
//
// Two requests exist: the revision query, which returns a JSON list whose first
// element identifies the current commit, and the file fetch, which streams one file
// of a given revision. Non-2xx responses become retry.Error values categorised by
// status code so callers can hand them straight to retry.Do.
package upstream
