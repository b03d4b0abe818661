// Package session provides ConversationStore implementations for
// persisting agent conversation history.
//
// Available stores:
//   - [MemoryStore] keeps snapshots in memory (useful for testing).
//   - [FileStore] persists snapshots as JSON files on disk.
package session
