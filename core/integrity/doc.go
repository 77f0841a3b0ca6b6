// Package integrity validates cached binary and text payloads before a cache hit is
// trusted.
//
// Each supported format is recognised by its container signature at the head of the
// payload and by an expected trailer (or a size field that pins where the payload must
// end). A payload that fails these checks is reported with a *CorruptionError, which
// carries the retry.CategoryIntegrity category: callers treat it as a cache miss and
// re-fetch instead of surfacing it.
//
// # Formats
//
//   - PNG: 8-byte signature, IEND chunk as the last 12 bytes.
//   - JPEG: SOI marker (FF D8 FF), EOI marker (FF D9) at the end.
//   - GIF: GIF87a/GIF89a header, 0x3B trailer.
//   - WebP / WAV: RIFF header with the declared chunk size matching the payload length.
//   - OGG: OggS capture pattern, last page flagged end-of-stream.
//   - JSON: first and last significant bytes form a matching {} or [] pair.
package integrity
