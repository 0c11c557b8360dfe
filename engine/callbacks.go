package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/emotibot/core"
	"github.com/hupe1980/emotibot/logging"
)

// CallbackType defines the points of a chat turn where callbacks run.
//
// Available callback types:
//   - BeforeTurn: before the user message is recorded; an error rejects the turn
//   - AfterClassify: after the mood update, with the assessment attached
//   - AfterReply: after the assistant reply is recorded, before commit
//   - OnError: when a turn fails
//
// Callbacks run synchronously inside the conversation's update cycle, so
// they see (and may adjust) the working copy of the conversation.
type CallbackType string

const (
	// CallbackBeforeTurn is triggered before a turn mutates the conversation.
	// Use for validation or moderation.
	CallbackBeforeTurn CallbackType = "before_turn"

	// CallbackAfterClassify is triggered once the impact is applied to the mood.
	CallbackAfterClassify CallbackType = "after_classify"

	// CallbackAfterReply is triggered once the reply is appended to the history.
	CallbackAfterReply CallbackType = "after_reply"

	// CallbackOnError is triggered when a turn fails. Its return value is ignored.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext carries the turn state handed to callbacks.
type CallbackContext struct {
	// ConversationID identifies the conversation the turn belongs to.
	ConversationID string

	// Message is the user text of the turn.
	Message string

	// Conversation is the working copy being updated. It is nil for OnError.
	Conversation *core.Conversation

	// Assessment is set from AfterClassify onwards.
	Assessment *core.Assessment

	// Reply is set for AfterReply.
	Reply *core.Reply

	// Err is set for OnError.
	Err error

	// CallbackType indicates which lifecycle point triggered the execution.
	CallbackType CallbackType

	// Metadata provides extensible storage shared by the callbacks of a turn.
	Metadata map[string]any
}

// Callback is a turn lifecycle hook. Returning an error from any callback
// except OnError aborts the turn without committing it.
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic with the provided context.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	reject := NewFunctionCallback(
//	    CallbackBeforeTurn,
//	    func(ctx context.Context, cc *CallbackContext) error {
//	        if len(cc.Message) > 4000 {
//	            return errors.New("message too long")
//	        }
//	        return nil
//	    },
//	)
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager holds registered callbacks by type and runs them in
// registration order. It is safe for concurrent use, and a nil manager runs
// nothing.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty callback manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds a callback for its type.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks runs all callbacks registered for callbackType. It stops at
// the first error and returns it.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	if cm == nil {
		return nil
	}

	cm.mu.RLock()
	callbacks := append([]Callback(nil), cm.callbacks[callbackType]...)
	cm.mu.RUnlock()

	callbackCtx.CallbackType = callbackType
	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return fmt.Errorf("%s callback: %w", callbackType, err)
		}
	}

	return nil
}

// LoggingCallback logs turn lifecycle events at debug level.
type LoggingCallback struct {
	callbackType CallbackType
	logger       logging.Logger
}

// NewLoggingCallback creates a logging callback for the given type.
func NewLoggingCallback(callbackType CallbackType, logger logging.Logger) *LoggingCallback {
	return &LoggingCallback{callbackType: callbackType, logger: logging.OrNoOp(logger)}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute logs the event. It never fails.
func (c *LoggingCallback) Execute(_ context.Context, cc *CallbackContext) error {
	args := []any{"callback", string(cc.CallbackType), "conversation_id", cc.ConversationID}
	if cc.Assessment != nil {
		args = append(args, "impact", cc.Assessment.Impact, "assessed", cc.Assessment.OK())
	}
	if cc.Reply != nil {
		args = append(args, "fallback", cc.Reply.Fallback)
	}
	if cc.Err != nil {
		args = append(args, "error", cc.Err.Error())
	}
	c.logger.Debug("turn lifecycle event", args...)
	return nil
}
