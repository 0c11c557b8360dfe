// Package emotibot provides a high-level façade over the turn engine and its
// collaborators (conversation store, impact classifier, response composer,
// face renderer, metrics and logging). Most applications interact with this
// package by:
//  1. Creating a Bot via New(), optionally with a language model
//  2. Calling Chat for each user message, passing back the conversation id
//  3. Reading the reply, the mood and the rendered face from the Result
//
// All defaults are safe for local development: without a model the bot runs
// in degraded mode (neutral mood, fallback replies) and everything lives in
// memory for the lifetime of the process.
package emotibot

import (
	"context"
	"fmt"

	"github.com/hupe1980/emotibot/classifier"
	"github.com/hupe1980/emotibot/composer"
	"github.com/hupe1980/emotibot/core"
	"github.com/hupe1980/emotibot/engine"
	"github.com/hupe1980/emotibot/face"
	"github.com/hupe1980/emotibot/logging"
	"github.com/hupe1980/emotibot/metrics"
	"github.com/hupe1980/emotibot/model"
	"github.com/hupe1980/emotibot/session"
)

// Options configures the Bot instance.
type Options struct {
	// Model backs both the impact classifier and the response composer.
	// Nil runs the bot in degraded mode.
	Model model.Model

	// EngineConfig holds history limit, call timeouts and the call limit.
	EngineConfig engine.Config

	// Store defaults to an in-memory store using EngineConfig.HistoryLimit.
	Store core.ConversationStore

	// RepairJSON enables lenient repair of malformed classifier replies.
	RepairJSON bool

	// MaxTokens and Temperature are passed to both model calls.
	MaxTokens   int64
	Temperature float64

	// FaceCacheSize is the capacity of the rendered face LRU cache.
	FaceCacheSize int

	// Metrics records Prometheus metrics (nil disables them).
	Metrics *metrics.Metrics

	// Callbacks hook into the turn lifecycle.
	Callbacks *engine.CallbackManager

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Result is the outcome of a chat turn.
type Result = engine.Result

// Bot is the high-level façade aggregating the engine and its services.
type Bot struct {
	opts   Options
	engine *engine.Engine
}

// New creates a new Bot. Any unset collaborator gets a default.
func New(optFns ...func(o *Options)) (*Bot, error) {
	opts := Options{
		EngineConfig:  engine.DefaultConfig,
		MaxTokens:     150,
		Temperature:   0.7,
		FaceCacheSize: face.DefaultCacheSize,
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	if opts.Store == nil {
		limit := opts.EngineConfig.HistoryLimit
		opts.Store = session.NewInMemoryStore(func(o *session.Options) { o.HistoryLimit = limit })
	}

	renderer, err := face.NewCachedRenderer(func(o *face.CachedRendererOptions) {
		o.Size = opts.FaceCacheSize
		o.OnLookup = opts.Metrics.ObserveFaceCache
	})
	if err != nil {
		return nil, fmt.Errorf("face cache: %w", err)
	}

	var modelName string
	if opts.Model != nil {
		modelName = opts.Model.Info().Name
	} else {
		opts.Logger.Warn("no language model configured, running in degraded mode")
	}

	cl := classifier.New(opts.Model, func(o *classifier.Options) {
		o.MaxTokens = opts.MaxTokens
		o.Temperature = opts.Temperature
		o.RepairJSON = opts.RepairJSON
		o.Logger = opts.Logger
	})
	co := composer.New(opts.Model, func(o *composer.Options) {
		o.MaxTokens = opts.MaxTokens
		o.Temperature = opts.Temperature
		o.Logger = opts.Logger
	})

	e := engine.New(func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.Store = opts.Store
		o.Classifier = cl
		o.Composer = co
		o.Renderer = renderer
		o.Metrics = opts.Metrics
		o.Callbacks = opts.Callbacks
		o.ModelName = modelName
		o.Logger = opts.Logger
	})

	return &Bot{opts: opts, engine: e}, nil
}

// Chat runs one turn. Pass an empty conversationID to start a conversation.
func (b *Bot) Chat(ctx context.Context, message, conversationID string) (*Result, error) {
	return b.engine.Chat(ctx, message, conversationID)
}

// Conversation returns a snapshot of a conversation.
func (b *Bot) Conversation(ctx context.Context, id string) (*core.Conversation, error) {
	return b.engine.Conversation(ctx, id)
}

// Render draws the face for an arbitrary mood.
func (b *Bot) Render(m core.MoodVector) face.Image { return b.engine.Render(m) }

// Engine exposes the underlying engine, e.g. to mount it on the HTTP server.
func (b *Bot) Engine() *engine.Engine { return b.engine }
