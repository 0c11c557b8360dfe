// Package logging provides the minimal logging interface used throughout
// EmotiBot, plus slog-backed adapters.
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping *slog.Logger
//   - BotLogger with component and conversation context and helpers for
//     model calls and chat turns
//   - NoOpLogger for silent operation (tests, minimal setups)
//
// Usage:
//
//	logger := logging.NewSlogLogger(logging.LogLevelInfo, "json", false)
//	bot, err := emotibot.New(func(o *emotibot.Options) { o.Logger = logger })
package logging
