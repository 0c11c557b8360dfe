// Package session houses concrete implementations of core.ConversationStore.
// The interface and the Conversation type live in core so the engine never
// depends on a concrete storage backend; only the wiring layer decides which
// implementation to instantiate.
package session
