// Package admission implements per-identity token-bucket throttling for the
// ledger engine.
//
// # Bucket semantics
//
// Each identity owns one bucket with a class-resolved capacity and refill
// rate. A call to Allow refills from elapsed wall time and spends one token
// in a single step under the identity's shard lock. Rejection never touches
// ledger or idempotency state.
//
// # What this package must NOT do
//
//   - Hold one global lock across identities (state is sharded).
//   - Perform I/O: bucket state is in-process only.
//   - Treat rejection as an error; mapping to a caller-visible outcome is
//     the engine's job.
package admission
