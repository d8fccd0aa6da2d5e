// Package session holds the thin, external-facing conversation state: one
// Conversation per turn, owning the ordered event log and the final
// aggregated message. Persistence, threading and history retrieval are
// external responsibilities behind the Store interface; the in-memory
// implementation suits tests and ephemeral demo setups.
package session
