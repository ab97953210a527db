// Package goLedger provides a rate-gated, optimistically-concurrent
// transaction ledger: per-identity token-bucket admission in front of
// versioned, idempotent balance mutations backed by Redis.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// goLedger is the public surface. It exposes [Engine], [Builder], [Config],
// value types (SubmitRequest, Result, AccountView), and the outcome
// sentinels. Admission state lives in the admission package; row storage
// and the conditional-write commit live in the ledger package; duplicate
// suppression lives in the idempotency package.
//
// # What this package must NOT do
//
//   - Expose Redis clients, store internals, or blob encodings in its
//     public API.
//   - Parse or serialize network requests; the request-handling layer owns
//     that boundary and maps the typed outcomes to its own status codes.
//   - Hold any cross-account lock: serialization is per identity (admission),
//     per account (ledger commit), and per idempotency key, never global.
//
// # Concurrency contract
//
// Submit is optimistic: when operations race on one account exactly one
// observes each version, the rest get a version conflict carrying the
// current version and retry with fresh state. Duplicate suppression holds
// across concurrent and sequential retries of the same idempotency key:
// at-least-once delivery, at-most-once effect.
package goLedger
