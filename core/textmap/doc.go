// Package textmap filters upstream hash→string translation maps down to the entries
// that loaded tables actually reference.
//
// Upstream text maps are single JSON objects of the form {"<hash>": "<text>", ...}
// that routinely exceed a hundred megabytes. Filter scans the document token by token,
// so the unfiltered payload is never materialised; only required entries are emitted.
//
// A malformed entry (non-numeric key, non-string value, non-object document) aborts
// the scan with a *StructureError. Callers must discard whatever was emitted so far and
// re-fetch the whole file: a partially filtered map cannot be proven consistent.
//
// Filtered maps are persisted with Write in the upstream format, so a local re-read
// goes through exactly the same Filter as a network stream.
package textmap
