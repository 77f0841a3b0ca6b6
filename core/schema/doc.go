// Package schema recovers canonical field names of obfuscated JSON records.
//
// Upstream releases rename every JSON key of the game tables, so a list of literal
// key names is useless after each release. Instead, the decoder aligns records against
// a curated CanonicalTemplate (a reference record whose keys are already the real
// names) using the values as anchors, and learns which obfuscated key path corresponds
// to which canonical key.
//
// # Patterns
//
// A Template is compiled once into a tree of Patterns. Pattern is a sealed sum type with
// exactly three variants:
//
//   - *Primitive: a literal leaf value; matches only equal values (case/epsilon
//     tolerant under StrategyFuzzy).
//   - *Array: positional element patterns; confidence is the aligned share of the
//     template's elements.
//   - *Object: canonical property patterns; each property greedily claims the unused
//     record key whose subtree matches it best.
//
// # Decoding
//
// Decoder.Decode evaluates every record of a batch against the primary pattern (stopping
// early above 0.95), retries structurally diverse alternates when the best confidence is
// below 0.8, and then rewrites every record of the batch by key path. Paths, not values,
// drive the rewrite, so sibling records with different optional fields decode the same
// way. Results are memoised by a structural signature of the batch and the options.
//
// # Templates
//
// Templates are externally curated. GenerateTemplate only drafts one from raw records:
// its keys are still obfuscated and must be renamed by hand before use.
package schema
