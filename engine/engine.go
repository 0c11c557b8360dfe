package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/emotibot/classifier"
	"github.com/hupe1980/emotibot/composer"
	"github.com/hupe1980/emotibot/core"
	"github.com/hupe1980/emotibot/face"
	"github.com/hupe1980/emotibot/logging"
	"github.com/hupe1980/emotibot/metrics"
	"github.com/hupe1980/emotibot/mood"
	"github.com/hupe1980/emotibot/session"
)

// TracerName is the instrumentation scope of the engine's spans.
const TracerName = "github.com/hupe1980/emotibot/engine"

// Config defines tuning parameters for a chat turn.
//
// Example:
//
//	cfg := Config{
//	    HistoryLimit:       10,
//	    ClassifyTimeout:    5 * time.Second,
//	    ReplyTimeout:       20 * time.Second,
//	    MaxConcurrentCalls: 4,
//	}
type Config struct {
	// HistoryLimit is the number of most recent turns a conversation keeps.
	HistoryLimit int

	// ClassifyTimeout bounds a single impact classification call. Zero
	// disables the timeout.
	ClassifyTimeout time.Duration

	// ReplyTimeout bounds a single reply composition call. Zero disables the
	// timeout.
	ReplyTimeout time.Duration

	// MaxConcurrentCalls caps the external model calls in flight across all
	// conversations. Zero or less means unlimited.
	MaxConcurrentCalls int64
}

// DefaultConfig provides the production defaults:
//   - HistoryLimit: 10 turns
//   - ClassifyTimeout: 15s
//   - ReplyTimeout: 30s
//   - MaxConcurrentCalls: 8
var DefaultConfig = Config{
	HistoryLimit:       core.DefaultHistoryLimit,
	ClassifyTimeout:    15 * time.Second,
	ReplyTimeout:       30 * time.Second,
	MaxConcurrentCalls: 8,
}

// Options configures an Engine using the functional options pattern. Every
// collaborator has a default so New() alone yields a working engine that runs
// in degraded mode (no model: zero impact and the "unavailable" reply).
type Options struct {
	// Config contains operational parameters. Defaults to DefaultConfig.
	Config Config

	// Store owns the conversations. Defaults to session.InMemoryStore with
	// Config.HistoryLimit.
	Store core.ConversationStore

	// Classifier assesses user messages. Defaults to a classifier without a
	// model.
	Classifier core.ImpactClassifier

	// Composer writes replies. Defaults to a composer without a model.
	Composer core.ResponseComposer

	// Renderer draws the face. Defaults to face.Default.
	Renderer face.Renderer

	// Metrics records Prometheus metrics. Nil records nothing.
	Metrics *metrics.Metrics

	// Callbacks are run at turn lifecycle points. Nil runs nothing.
	Callbacks *CallbackManager

	// Tracer creates spans. Defaults to the global OpenTelemetry provider.
	Tracer trace.Tracer

	// ModelName labels model call logs.
	ModelName string

	// Logger provides structured logging. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Engine runs chat turns: it owns the control flow from fetching the
// conversation through classification, mood update and reply composition to
// rendering the face.
//
// Concurrency Model:
//   - Each turn runs inside the store's per-conversation update, so turns of
//     the same conversation never interleave and a failed turn commits nothing
//   - Turns of different conversations run in parallel
//   - External model calls share a weighted semaphore and each has its own
//     timeout
//
// The Engine is safe for concurrent use.
type Engine struct {
	store      core.ConversationStore
	classifier core.ImpactClassifier
	composer   core.ResponseComposer
	renderer   face.Renderer
	metrics    *metrics.Metrics
	callbacks  *CallbackManager
	tracer     trace.Tracer
	logger     logging.Logger
	modelName  string

	config Config
	calls  *semaphore.Weighted // nil means unlimited
}

// Result is the outcome of a chat turn.
type Result struct {
	ConversationID string
	Response       string
	Mood           core.MoodVector
	Classification mood.Classification
	Impact         core.ImpactVector
	Face           face.Image
	// Degraded is true when any fallback value was used during the turn.
	Degraded bool
}

// New creates an Engine with defaults for every unset option.
//
// Examples:
//
//	// Degraded mode, everything in memory
//	eng := New()
//
//	// Production wiring
//	eng := New(func(o *Options) {
//	    o.Classifier = classifier.New(m)
//	    o.Composer = composer.New(m)
//	    o.Metrics = metrics.Default()
//	    o.Logger = logger
//	})
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Config.HistoryLimit <= 0 {
		opts.Config.HistoryLimit = core.DefaultHistoryLimit
	}
	if opts.Store == nil {
		limit := opts.Config.HistoryLimit
		opts.Store = session.NewInMemoryStore(func(o *session.Options) { o.HistoryLimit = limit })
	}
	if opts.Classifier == nil {
		opts.Classifier = classifier.New(nil)
	}
	if opts.Composer == nil {
		opts.Composer = composer.New(nil)
	}
	if opts.Renderer == nil {
		opts.Renderer = face.Default
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(TracerName)
	}

	e := &Engine{
		store:      opts.Store,
		classifier: opts.Classifier,
		composer:   opts.Composer,
		renderer:   opts.Renderer,
		metrics:    opts.Metrics,
		callbacks:  opts.Callbacks,
		tracer:     opts.Tracer,
		logger:     logging.OrNoOp(opts.Logger),
		modelName:  opts.ModelName,
		config:     opts.Config,
	}
	if opts.Config.MaxConcurrentCalls > 0 {
		e.calls = semaphore.NewWeighted(opts.Config.MaxConcurrentCalls)
	}

	return e
}

// Chat runs one turn for message in the conversation identified by
// conversationID. An empty or unknown id starts a new conversation; the id
// actually used is returned in the Result.
//
// Model failures never fail the turn: they degrade to zero impact and a
// fallback reply. Chat returns an error only when the message is empty, the
// context ends before the turn commits, or a callback rejects the turn. In
// those cases the conversation is left unchanged.
func (e *Engine) Chat(ctx context.Context, message, conversationID string) (*Result, error) {
	if strings.TrimSpace(message) == "" {
		return nil, core.ErrEmptyMessage
	}

	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "emotibot.turn")
	defer span.End()

	res := &Result{}
	conv, err := e.store.Update(ctx, conversationID, func(c *core.Conversation) error {
		return e.turn(ctx, c, message, res)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.metrics.ObserveTurn(err)
		logging.LogTurn(logging.ForConversation(e.logger, conversationID), "", time.Since(start), err)
		_ = e.callbacks.ExecuteCallbacks(ctx, CallbackOnError, &CallbackContext{
			ConversationID: conversationID,
			Message:        message,
			Err:            err,
		})
		return nil, fmt.Errorf("chat turn: %w", err)
	}

	res.ConversationID = conv.ID
	res.Mood = conv.Mood
	res.Classification = mood.Classify(conv.Mood)
	res.Face = e.renderer.Render(conv.Mood)

	span.SetAttributes(
		attribute.String("conversation.id", conv.ID),
		attribute.String("mood.dominant", string(res.Classification.Dominant)),
		attribute.Bool("turn.degraded", res.Degraded),
	)
	e.metrics.ObserveTurn(nil)
	e.metrics.ObserveMood(conv.Mood)
	e.metrics.SetConversations(e.store.Len())
	logging.LogTurn(logging.ForConversation(e.logger, conv.ID), string(res.Classification.Dominant), time.Since(start), nil)

	return res, nil
}

// turn mutates the working copy c. Returning an error discards it.
func (e *Engine) turn(ctx context.Context, c *core.Conversation, message string, res *Result) error {
	cc := &CallbackContext{ConversationID: c.ID, Message: message, Conversation: c, Metadata: map[string]any{}}
	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackBeforeTurn, cc); err != nil {
		return err
	}

	c.AppendTurn(core.RoleUser, message)

	assessment := e.classify(ctx, c.ID, message, c.Mood)
	next, err := mood.Update(c.Mood, assessment.Impact)
	if err != nil {
		logging.ForConversation(e.logger, c.ID).Error("mood update failed, resetting to neutral", "error", err.Error())
		res.Degraded = true
	}
	c.Mood = next
	res.Impact = assessment.Impact
	res.Degraded = res.Degraded || !assessment.OK()

	cc.Assessment = &assessment
	if err := e.callbacks.ExecuteCallbacks(ctx, CallbackAfterClassify, cc); err != nil {
		return err
	}

	reply := e.compose(ctx, c.ID, c.History(), c.Mood)
	if err := ctx.Err(); err != nil {
		return err
	}

	c.AppendTurn(core.RoleAssistant, reply.Text)
	c.TrimTo(e.config.HistoryLimit)
	res.Response = reply.Text
	res.Degraded = res.Degraded || reply.Fallback

	cc.Reply = &reply
	return e.callbacks.ExecuteCallbacks(ctx, CallbackAfterReply, cc)
}

// classify runs the impact classifier under the call limit and timeout.
// Every failure resolves to the zero impact.
func (e *Engine) classify(ctx context.Context, conversationID, message string, prior core.MoodVector) core.Assessment {
	ctx, span := e.tracer.Start(ctx, "emotibot.classify",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)))
	defer span.End()

	start := time.Now()
	var a core.Assessment

	ctx, cancel := withTimeout(ctx, e.config.ClassifyTimeout)
	defer cancel()

	if err := e.acquire(ctx); err != nil {
		a = core.Assessment{Err: err}
	} else {
		a = e.classifier.Assess(ctx, message, prior)
		e.release()
	}
	if a.Err != nil || a.Impact == nil {
		a.Impact = core.ZeroImpact()
	}

	dur := time.Since(start)
	e.metrics.ObserveCall(metrics.CallClassify, !a.OK(), dur)
	logging.LogLLMCall(logging.ForConversation(e.logger, conversationID), metrics.CallClassify, e.modelName, dur, a.Err)
	if a.Err != nil {
		span.RecordError(a.Err)
		span.SetStatus(codes.Error, a.Err.Error())
	}

	return a
}

// compose runs the response composer under the call limit and timeout.
// The returned text is never empty.
func (e *Engine) compose(ctx context.Context, conversationID string, history []core.Turn, m core.MoodVector) core.Reply {
	ctx, span := e.tracer.Start(ctx, "emotibot.compose",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)))
	defer span.End()

	start := time.Now()
	var r core.Reply

	ctx, cancel := withTimeout(ctx, e.config.ReplyTimeout)
	defer cancel()

	if err := e.acquire(ctx); err != nil {
		r = core.Reply{Text: composer.ErrorText, Fallback: true, Err: err}
	} else {
		r = e.composer.Compose(ctx, history, m)
		e.release()
	}
	if strings.TrimSpace(r.Text) == "" {
		r = core.Reply{Text: composer.ErrorText, Fallback: true, Err: errors.Join(r.Err, composer.ErrEmptyReply)}
	}

	dur := time.Since(start)
	e.metrics.ObserveCall(metrics.CallReply, r.Fallback, dur)
	logging.LogLLMCall(logging.ForConversation(e.logger, conversationID), metrics.CallReply, e.modelName, dur, r.Err)
	if r.Err != nil {
		span.RecordError(r.Err)
		span.SetStatus(codes.Error, r.Err.Error())
	}

	return r
}

func (e *Engine) acquire(ctx context.Context) error {
	if e.calls == nil {
		return nil
	}
	if err := e.calls.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire call slot: %w", err)
	}
	return nil
}

func (e *Engine) release() {
	if e.calls != nil {
		e.calls.Release(1)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// Conversation returns a snapshot of a conversation, or an error wrapping
// core.ErrConversationNotFound.
func (e *Engine) Conversation(ctx context.Context, id string) (*core.Conversation, error) {
	return e.store.Get(ctx, id)
}

// Conversations returns the number of live conversations.
func (e *Engine) Conversations() int { return e.store.Len() }

// Render draws the face for an arbitrary mood.
func (e *Engine) Render(m core.MoodVector) face.Image {
	return e.renderer.Render(m)
}
