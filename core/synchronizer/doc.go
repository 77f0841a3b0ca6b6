// Package synchronizer keeps the local cache in step with the upstream revision and
// publishes decoded snapshots.
//
// # Flow
//
// A sync resolves the fingerprint (the persisted one, or a fresh revision query when
// none is known), then:
//
//  1. downloads the requested tables concurrently, reusing cached copies fetched at
//     the same revision;
//  2. decodes obfuscated tables against their templates;
//  3. collects the text-map hashes referenced by the decoded tables and streams each
//     active language's text map through the text filter;
//  4. verifies binary assets;
//  5. publishes everything as one snapshot.
//
// Nothing becomes visible to readers before step 5. Any unrecoverable failure keeps
// the previous snapshot.
//
// # Fencing
//
// Concurrent calls for the same request share one in-flight run; different requests
// run one after another. A fingerprint change observed by CheckForUpdate while a run
// is in flight makes the run repeat after it publishes.
//
// # Ledger
//
// state.json records the latest fingerprint, the published revision and, per cache
// file, the revision it was fetched at. A retried sync of the same revision reads
// files it already downloaded from the cache.
package synchronizer
