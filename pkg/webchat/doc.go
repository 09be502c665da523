// Package webchat implements the Lumina tutoring backend: an in-memory
// conversation cache with periodic idle eviction, an optional SQLite-backed
// conversation/profile store, a completion client, and the chat lifecycle
// that ties them together.
//
// Ownership model:
//   - ConvManager owns live conversation state for the process lifetime.
//   - ConversationStore is authoritative across restarts; it is synchronized
//     best-effort after each successful exchange and never gates a response.
//   - HTTP handlers live in pkg/webchat/http and depend only on ChatService.
package webchat
