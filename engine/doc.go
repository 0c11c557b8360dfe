// Package engine implements the turn orchestration layer of EmotiBot.
//
// The Engine is the single entry point callers (HTTP server, CLI, facade)
// use to run a chat turn. It connects the conversation store, the impact
// classifier, the mood model, the response composer and the face renderer.
//
// # Turn Flow
//
//  1. The conversation is fetched or created through the store's keyed
//     update, which serializes turns per conversation id
//  2. The user message is appended to the working copy
//  3. The impact classifier assesses the message against the prior mood;
//     any failure yields the zero impact
//  4. The mood is updated with a damped half-step toward the impact target;
//     a non-finite result resets it to neutral
//  5. The response composer writes the reply from the mood and the history
//     (including the new message); any failure yields a fixed fallback text
//  6. The reply is appended, the history trimmed to the configured limit and
//     the working copy committed
//  7. The face is rendered from the committed mood
//
// # Failure Semantics
//
// Model problems are never errors for the caller: the turn completes with
// fallback values and Result.Degraded set. Errors are reserved for an empty
// message, a context that ends before commit, and callbacks that reject the
// turn. A failed turn commits nothing.
//
// # Resource Management
//
//   - Each external call runs under its own timeout (Config.ClassifyTimeout,
//     Config.ReplyTimeout) derived from the caller's context
//   - A weighted semaphore bounds concurrent external calls
//     (Config.MaxConcurrentCalls); failing to get a slot takes the fallback
//   - No retries
//
// # Observability
//
// Turns and calls are recorded as OpenTelemetry spans (emotibot.turn,
// emotibot.classify, emotibot.compose), Prometheus metrics through
// metrics.Metrics, and structured logs through logging.Logger.
//
// # Callbacks
//
// A CallbackManager can hook into BeforeTurn, AfterClassify, AfterReply and
// OnError. Callbacks see the working copy of the conversation and can abort
// the turn by returning an error.
package engine
