package textmap

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"gamedata-sync/core/retry"
)

// Entry is a single text map entry.
type Entry struct {
	Hash uint64
	Text string
}

// HashSet is the set of required text hashes.
type HashSet map[uint64]struct{}

// NewHashSet builds a set from the given hashes.
func NewHashSet(hashes ...uint64) HashSet {
	s := make(HashSet, len(hashes))
	for _, h := range hashes {
		s[h] = struct{}{}
	}
	return s
}

// Add inserts a hash.
func (s HashSet) Add(h uint64) {
	s[h] = struct{}{}
}

// Has reports whether the set contains h.
func (s HashSet) Has(h uint64) bool {
	_, ok := s[h]
	return ok
}

// StructureError reports a text map entry that does not parse as (numeric-hash, string).
type StructureError struct {
	// Offset is the input offset at which the problem was detected.
	Offset int64
	// Key is the offending key, if one was read.
	Key string
	// Reason describes the violation.
	Reason string
}

func (e *StructureError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("text map malformed at offset %d (key %q): %s", e.Offset, e.Key, e.Reason)
	}
	return fmt.Sprintf("text map malformed at offset %d: %s", e.Offset, e.Reason)
}

// IsStructureError reports whether err is (or wraps) a *StructureError.
func IsStructureError(err error) bool {
	var se *StructureError
	return errors.As(err, &se)
}

// Filter streams the text map in r and calls emit for every entry whose hash is in
// required. Errors from the reader are returned as-is, even when they cut a value
// short; format violations within a cleanly read body are returned as a
// *StructureError wrapped in a retry.CategoryStructure error.
func Filter(r io.Reader, required HashSet, emit func(Entry) error) error {
	src := &sourceReader{r: r}
	dec := json.NewDecoder(bufio.NewReaderSize(src, 64*1024))
	tokenError := func(key string, err error) error {
		return classify(dec, src, key, err)
	}

	tok, err := dec.Token()
	if err != nil {
		return tokenError("", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return structural(&StructureError{Offset: dec.InputOffset(), Reason: "document is not an object"})
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return tokenError("", err)
		}
		key, ok := tok.(string)
		if !ok {
			return structural(&StructureError{Offset: dec.InputOffset(), Reason: "expected string key"})
		}

		hash, perr := strconv.ParseUint(key, 10, 64)
		if perr != nil {
			// signed hashes appear in some upstream dumps
			signed, serr := strconv.ParseInt(key, 10, 64)
			if serr != nil {
				return structural(&StructureError{Offset: dec.InputOffset(), Key: key, Reason: "key is not a numeric hash"})
			}
			hash = uint64(signed)
		}

		tok, err = dec.Token()
		if err != nil {
			return tokenError(key, err)
		}
		text, ok := tok.(string)
		if !ok {
			return structural(&StructureError{Offset: dec.InputOffset(), Key: key, Reason: fmt.Sprintf("value is %T, not a string", tok)})
		}

		if !required.Has(hash) {
			continue
		}
		if err := emit(Entry{Hash: hash, Text: text}); err != nil {
			return err
		}
	}

	tok, err = dec.Token()
	if err != nil {
		return tokenError("", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '}' {
		return structural(&StructureError{Offset: dec.InputOffset(), Reason: "unterminated object"})
	}
	return nil
}

// Collect runs Filter and gathers the emitted entries into a map.
func Collect(r io.Reader, required HashSet) (map[uint64]string, error) {
	out := make(map[uint64]string, len(required))
	err := Filter(r, required, func(e Entry) error {
		out[e.Hash] = e.Text
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Write serialises entries in the upstream text map format with keys in ascending
// hash order.
func Write(w io.Writer, entries map[uint64]string) error {
	hashes := make([]uint64, 0, len(entries))
	for h := range entries {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("{"); err != nil {
		return err
	}
	for i, h := range hashes {
		if i > 0 {
			if err := bw.WriteByte(','); err != nil {
				return err
			}
		}
		text, err := json.Marshal(entries[h])
		if err != nil {
			return fmt.Errorf("failed to encode text for hash %d: %w", h, err)
		}
		if _, err := fmt.Fprintf(bw, "\n%q:%s", strconv.FormatUint(h, 10), text); err != nil {
			return err
		}
	}
	if _, err := bw.WriteString("\n}\n"); err != nil {
		return err
	}
	return bw.Flush()
}

func structural(se *StructureError) error {
	return retry.New(retry.CategoryStructure, "filter text map", se)
}

// sourceReader remembers the first failure of the underlying reader so that a
// dropped body is not mistaken for a truncated document.
type sourceReader struct {
	r   io.Reader
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF && s.err == nil {
		s.err = err
	}
	return n, err
}

// classify separates reader failures (transport) from syntax problems and
// truncation of a body that ended cleanly (structural).
func classify(dec *json.Decoder, src *sourceReader, key string, err error) error {
	if src.err != nil {
		return src.err
	}
	var syntax *json.SyntaxError
	if errors.As(err, &syntax) {
		return structural(&StructureError{Offset: syntax.Offset, Key: key, Reason: syntax.Error()})
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return structural(&StructureError{Offset: dec.InputOffset(), Key: key, Reason: "unexpected end of document"})
	}
	return err
}
