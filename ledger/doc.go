// Package ledger persists versioned account balance rows in Redis and owns
// the conditional-write primitive the engine commits through.
//
// # Commit semantics
//
// A commit is one Lua script execution: compare the stored version against
// the expected version, verify the caller's idempotency reservation still
// holds, then swap the balance blob and finalize the reservation. Redis
// executes scripts atomically, so a concurrent commit on the same account
// observes either the old row or the new one, never an intermediate state,
// and commits on different accounts never block each other.
//
// # What this package must NOT do
//
//   - Decide business rules (balance sufficiency, amount validation); it
//     only enforces version equality and the non-negative invariant.
//   - Repair a corrupt row. Corruption surfaces as [ErrEntryCorrupt].
package ledger
