// Package idempotency provides duplicate suppression for ledger mutations.
//
// # Reservation protocol
//
// The first request for an (account, key) pair claims the key with SET NX
// and a pending TTL; concurrent bearers of the same key see the reservation
// and are told to retry rather than race into the mutation path. Completion
// turns the reservation into a finalized snapshot: successful commits do so
// atomically inside the ledger commit script, deterministic failures through
// [Store.Finalize], and everything else releases the claim so a retry can
// proceed.
//
// # What this package must NOT do
//
//   - Decide which failures are deterministic; the engine owns that taxonomy.
//   - Mutate a finalized row. Finalized outcomes are read-only until the
//     retention window evicts them.
package idempotency
