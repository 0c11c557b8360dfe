// Package core provides the foundational domain types and contracts used by
// emotibot. It defines:
//
//   - MoodVector and ImpactVector (the numeric emotional state and the per-message signal)
//   - Conversation and Turn (the sliding-window chat history owned by a store)
//   - ConversationStore, ImpactClassifier and ResponseComposer contracts
//   - Assessment and Reply result values carrying explicit fallbacks
//
// The package keeps implementation concerns (storage, model providers,
// rendering) out of scope, exposing small interfaces so the engine can be
// assembled from interchangeable parts.
package core
