// Package model defines the provider-agnostic abstraction EmotiBot uses to
// talk to language models, plus a MockModel for tests and offline runs.
//
// Providers (model/openai, model/anthropic) implement Model so the
// classifier and composer stay decoupled from vendor SDKs. A call produces
// exactly one reply; there is no streaming or tool calling.
package model
