package synchronizer

import (
	"context"
	"errors"
	"io/fs"

	"gamedata-sync/core/persist"
	"gamedata-sync/core/upstream"
)

const stateKey = "state.json"

// fileEntry records the revision a cache file was fetched at. Digest identifies the
// hash set a filtered text map was built for.
type fileEntry struct {
	Revision string `json:"revision"`
	Digest   string `json:"digest,omitempty"`
}

type state struct {
	Fingerprint upstream.Fingerprint `json:"fingerprint"`
	Published   string               `json:"published,omitempty"`
	Files       map[string]fileEntry `json:"files,omitempty"`
}

func (st *state) entry(key string) (fileEntry, bool) {
	e, ok := st.Files[key]
	return e, ok
}

func (st *state) setEntry(key string, e fileEntry) {
	if st.Files == nil {
		st.Files = make(map[string]fileEntry)
	}
	st.Files[key] = e
}

// prune drops ledger entries fetched at another revision.
func (st *state) prune(revision string) {
	for k, e := range st.Files {
		if e.Revision != revision {
			delete(st.Files, k)
		}
	}
}

func readState(ctx context.Context, store persist.Store) (state, error) {
	var st state
	if err := persist.ReadJSON(ctx, store, stateKey, &st); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return state{}, nil
		}
		return state{}, err
	}
	return st, nil
}
