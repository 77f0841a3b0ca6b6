// Package persist stores the synchronized cache and the curated templates.
//
// A Store is a flat key space with slash-separated keys ("tables/Avatar.json").
// Writes are atomic: readers observe either the previous or the new content of a key,
// never a partial file. Missing keys are reported with errors wrapping fs.ErrNotExist.
//
// Two backends exist:
//
//   - DiskStore keeps files under a local directory and replaces them with a
//     temp-file-and-rename.
//   - ObjectStore keeps objects under a prefix of an S3/MinIO bucket through
//     core/storage.
package persist
