// Package storage provides the execution record store implementations.
//
// MemoryStore is the default in-memory backend; BoltStore persists the
// audit trail to a bbolt database file so execution history survives
// restarts. Both implement execution.Store and enforce its contract:
// at-most-once completion, idempotent message attachment, and
// close-on-next-start action timing.
package storage
