package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/emotibot/classifier"
	"github.com/hupe1980/emotibot/composer"
	"github.com/hupe1980/emotibot/core"
	"github.com/hupe1980/emotibot/face"
	"github.com/hupe1980/emotibot/logging"
	"github.com/hupe1980/emotibot/metrics"
	"github.com/hupe1980/emotibot/model"
	"github.com/hupe1980/emotibot/session"
)

type mockClassifier struct{ mock.Mock }

func (m *mockClassifier) Assess(ctx context.Context, message string, prior core.MoodVector) core.Assessment {
	args := m.Called(ctx, message, prior)
	return args.Get(0).(core.Assessment)
}

type mockComposer struct{ mock.Mock }

func (m *mockComposer) Compose(ctx context.Context, history []core.Turn, mood core.MoodVector) core.Reply {
	args := m.Called(ctx, history, mood)
	return args.Get(0).(core.Reply)
}

func impact(hs, et, ca, cn float64) core.ImpactVector {
	return core.ImpactVector{core.HappySad: hs, core.EnergyTired: et, core.CalmAngry: ca, core.ConfidentNervous: cn}
}

func TestChat_HappyPath(t *testing.T) {
	cl := &mockClassifier{}
	cl.On("Assess", mock.Anything, "I love you!", core.NeutralMood()).
		Return(core.Assessment{Impact: impact(2, 1, -1, 0)})

	co := &mockComposer{}
	co.On("Compose", mock.Anything, []core.Turn{{Role: core.RoleUser, Content: "I love you!"}}, mock.Anything).
		Return(core.Reply{Text: "Aww, that makes me so happy!"})

	e := New(func(o *Options) { o.Classifier = cl; o.Composer = co })

	res, err := e.Chat(context.Background(), "I love you!", "")
	require.NoError(t, err)

	assert.NotEmpty(t, res.ConversationID)
	assert.Equal(t, "Aww, that makes me so happy!", res.Response)
	assert.Equal(t, core.MoodVector{Happiness: 75, Energy: 62.5, Calmness: 62.5, Confidence: 50}, res.Mood)
	assert.Equal(t, core.Happiness, res.Classification.Dominant)
	assert.False(t, res.Degraded)
	assert.Equal(t, face.Render(res.Mood), res.Face)

	conv, err := e.Conversation(context.Background(), res.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, []core.Turn{
		{Role: core.RoleUser, Content: "I love you!"},
		{Role: core.RoleAssistant, Content: "Aww, that makes me so happy!"},
	}, conv.Turns)
	assert.Equal(t, res.Mood, conv.Mood)

	cl.AssertExpectations(t)
	co.AssertExpectations(t)
}

func TestChat_ComposerSeesUpdatedMood(t *testing.T) {
	cl := &mockClassifier{}
	cl.On("Assess", mock.Anything, mock.Anything, mock.Anything).
		Return(core.Assessment{Impact: impact(0, 0, 2, 0)})

	var seen core.MoodVector
	co := &mockComposer{}
	co.On("Compose", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { seen = args.Get(2).(core.MoodVector) }).
		Return(core.Reply{Text: "grr"})

	_, err := New(func(o *Options) { o.Classifier = cl; o.Composer = co }).Chat(context.Background(), "idiot", "")
	require.NoError(t, err)
	assert.Equal(t, 25.0, seen.Calmness)
}

func TestChat_ClassifierFailureLeavesMoodUnchanged(t *testing.T) {
	cl := &mockClassifier{}
	cl.On("Assess", mock.Anything, mock.Anything, mock.Anything).
		Return(core.Assessment{Impact: impact(2, 2, 2, 2), Err: errors.New("bad json")})

	co := &mockComposer{}
	co.On("Compose", mock.Anything, mock.Anything, mock.Anything).Return(core.Reply{Text: "ok"})

	store := session.NewInMemoryStore()
	prior, err := store.Update(context.Background(), "", func(c *core.Conversation) error {
		c.Mood = core.MoodVector{Happiness: 80, Energy: 20, Calmness: 35, Confidence: 65}
		return nil
	})
	require.NoError(t, err)

	e := New(func(o *Options) { o.Classifier = cl; o.Composer = co; o.Store = store })
	res, err := e.Chat(context.Background(), "hello", prior.ID)
	require.NoError(t, err)

	assert.Equal(t, prior.ID, res.ConversationID)
	assert.Equal(t, prior.Mood, res.Mood)
	assert.True(t, res.Impact.IsZero())
	assert.True(t, res.Degraded)
}

func TestChat_DegradedWithoutModel(t *testing.T) {
	e := New()

	res, err := e.Chat(context.Background(), "hi", "")
	require.NoError(t, err)
	assert.Equal(t, composer.UnavailableText, res.Response)
	assert.Equal(t, core.NeutralMood(), res.Mood)
	assert.True(t, res.Degraded)
}

func TestChat_WithMockModel(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	m.SetResponder(func(req model.Request) (string, error) {
		if req.Instructions == classifier.SystemPrompt {
			return "```json\n{\"happy_sad\": -2, \"energy_tired\": -2, \"calm_angry\": 0, \"confident_nervous\": 0}\n```", nil
		}
		return "I'm feeling a bit down...", nil
	})

	e := New(func(o *Options) {
		o.Classifier = classifier.New(m)
		o.Composer = composer.New(m)
	})

	res, err := e.Chat(context.Background(), "you're boring", "")
	require.NoError(t, err)
	assert.Equal(t, "I'm feeling a bit down...", res.Response)
	assert.Equal(t, 25.0, res.Mood.Happiness)
	assert.Equal(t, 25.0, res.Mood.Energy)
	assert.False(t, res.Degraded)
	assert.Equal(t, 2, m.Calls())
}

func TestChat_EmptyMessage(t *testing.T) {
	e := New()
	_, err := e.Chat(context.Background(), "   ", "")
	assert.ErrorIs(t, err, core.ErrEmptyMessage)
	assert.Equal(t, 0, e.Conversations())
}

func TestChat_UnknownIDStartsNewConversation(t *testing.T) {
	e := New()
	res, err := e.Chat(context.Background(), "hi", "does-not-exist")
	require.NoError(t, err)
	assert.NotEqual(t, "does-not-exist", res.ConversationID)
}

func TestChat_HistoryIsTrimmed(t *testing.T) {
	var lastHistory []core.Turn
	co := &mockComposer{}
	co.On("Compose", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { lastHistory = args.Get(1).([]core.Turn) }).
		Return(core.Reply{Text: "reply"})

	e := New(func(o *Options) { o.Composer = co })
	id := ""
	for i := 0; i < 8; i++ {
		res, err := e.Chat(context.Background(), fmt.Sprintf("m%d", i), id)
		require.NoError(t, err)
		id = res.ConversationID
	}

	conv, err := e.Conversation(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, conv.Turns, 10)
	assert.Equal(t, "m3", conv.Turns[0].Content)
	assert.Equal(t, "reply", conv.Turns[9].Content)

	// The composer saw the ten kept turns plus the new message.
	require.Len(t, lastHistory, 11)
	assert.Equal(t, "m7", lastHistory[10].Content)
}

func TestChat_CancelledContextCommitsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	co := &mockComposer{}
	co.On("Compose", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return(core.Reply{Text: "too late"})

	store := session.NewInMemoryStore()
	conv, err := store.GetOrCreate(context.Background(), "")
	require.NoError(t, err)

	e := New(func(o *Options) { o.Composer = co; o.Store = store })
	_, err = e.Chat(ctx, "hello", conv.ID)
	assert.ErrorIs(t, err, context.Canceled)

	stored, err := store.Get(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Turns)
}

func TestChat_TimeoutFallsBack(t *testing.T) {
	slow := &blockingComposer{}
	e := New(func(o *Options) {
		o.Config.ReplyTimeout = 10 * time.Millisecond
		o.Composer = slow
	})

	res, err := e.Chat(context.Background(), "hi", "")
	require.NoError(t, err)
	assert.Equal(t, composer.ErrorText, res.Response)
	assert.True(t, res.Degraded)
}

// blockingComposer waits for its context and then fails like a timed out call.
type blockingComposer struct{}

func (blockingComposer) Compose(ctx context.Context, _ []core.Turn, _ core.MoodVector) core.Reply {
	<-ctx.Done()
	return core.Reply{Text: composer.ErrorText, Fallback: true, Err: ctx.Err()}
}

func TestChat_EmptyComposerTextIsReplaced(t *testing.T) {
	co := &mockComposer{}
	co.On("Compose", mock.Anything, mock.Anything, mock.Anything).Return(core.Reply{})

	res, err := New(func(o *Options) { o.Composer = co }).Chat(context.Background(), "hi", "")
	require.NoError(t, err)
	assert.Equal(t, composer.ErrorText, res.Response)
}

func TestChat_SerializesSameConversation(t *testing.T) {
	var mu sync.Mutex
	active, maxActive := 0, 0

	co := &mockComposer{}
	co.On("Compose", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()
			time.Sleep(2 * time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
		}).
		Return(core.Reply{Text: "ok"})

	e := New(func(o *Options) {
		o.Composer = co
		o.Config.HistoryLimit = 100
	})
	first, err := e.Chat(context.Background(), "start", "")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.Chat(context.Background(), fmt.Sprint(i), first.ConversationID)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive)
	conv, err := e.Conversation(context.Background(), first.ConversationID)
	require.NoError(t, err)
	assert.Len(t, conv.Turns, 22)
}

func TestChat_Callbacks(t *testing.T) {
	cbs := NewCallbackManager()
	var order []CallbackType
	record := func(ctx context.Context, cc *CallbackContext) error {
		order = append(order, cc.CallbackType)
		return nil
	}
	cbs.RegisterCallback(NewFunctionCallback(CallbackBeforeTurn, record))
	cbs.RegisterCallback(NewFunctionCallback(CallbackAfterClassify, record))
	cbs.RegisterCallback(NewFunctionCallback(CallbackAfterReply, record))
	cbs.RegisterCallback(NewLoggingCallback(CallbackAfterReply, nil))

	e := New(func(o *Options) { o.Callbacks = cbs })
	_, err := e.Chat(context.Background(), "hi", "")
	require.NoError(t, err)
	assert.Equal(t, []CallbackType{CallbackBeforeTurn, CallbackAfterClassify, CallbackAfterReply}, order)
}

func TestChat_CallbackRejectsTurn(t *testing.T) {
	rejected := errors.New("blocked word")
	var onErr error

	cbs := NewCallbackManager()
	cbs.RegisterCallback(NewFunctionCallback(CallbackBeforeTurn, func(_ context.Context, cc *CallbackContext) error {
		return rejected
	}))
	cbs.RegisterCallback(NewFunctionCallback(CallbackOnError, func(_ context.Context, cc *CallbackContext) error {
		onErr = cc.Err
		return nil
	}))

	e := New(func(o *Options) { o.Callbacks = cbs })
	_, err := e.Chat(context.Background(), "bad", "")
	assert.ErrorIs(t, err, rejected)
	assert.ErrorIs(t, onErr, rejected)
	assert.Equal(t, 0, e.Conversations())
}

func TestChat_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.MustNewMetrics(reg)
	e := New(func(o *Options) { o.Metrics = m })

	_, err := e.Chat(context.Background(), "hi", "")
	require.NoError(t, err)
	_, err = e.Chat(context.Background(), "hi", "")
	require.NoError(t, err)
	_, err = e.Chat(context.Background(), "", "")
	require.Error(t, err)

	err = testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP emotibot_conversations Conversations currently held in memory.
# TYPE emotibot_conversations gauge
emotibot_conversations 2
# HELP emotibot_turns_total Chat turns handled, by outcome.
# TYPE emotibot_turns_total counter
emotibot_turns_total{outcome="completed"} 2
# HELP emotibot_external_calls_total Language model calls, by call and whether the fallback was used.
# TYPE emotibot_external_calls_total counter
emotibot_external_calls_total{call="classify",status="fallback"} 2
emotibot_external_calls_total{call="reply",status="fallback"} 2
`), "emotibot_conversations", "emotibot_turns_total", "emotibot_external_calls_total")
	require.NoError(t, err)
	n, err := testutil.GatherAndCount(reg, "emotibot_mood_value")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestChat_CallLimitFallsBack(t *testing.T) {
	co := &mockComposer{}
	e := New(func(o *Options) {
		o.Composer = co
		o.Config.MaxConcurrentCalls = 1
		o.Config.ClassifyTimeout = 20 * time.Millisecond
		o.Config.ReplyTimeout = 20 * time.Millisecond
	})
	// Hold the only slot.
	require.NoError(t, e.calls.Acquire(context.Background(), 1))
	defer e.calls.Release(1)

	res, err := e.Chat(context.Background(), "hi", "")
	require.NoError(t, err)
	assert.Equal(t, composer.ErrorText, res.Response)
	co.AssertNotCalled(t, "Compose", mock.Anything, mock.Anything, mock.Anything)
}

func TestChat_LogsCarryConversationID(t *testing.T) {
	var buf bytes.Buffer
	cfg := logging.DefaultLoggerConfig()
	cfg.Level = logging.LogLevelDebug
	cfg.Output = &buf

	e := New(func(o *Options) { o.Logger = logging.NewLogger(cfg) })

	res, err := e.Chat(context.Background(), "hello", "")
	require.NoError(t, err)

	var msgs []string
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		assert.Equal(t, res.ConversationID, entry["conversation_id"], "entry %q", entry["msg"])
		msgs = append(msgs, fmt.Sprint(entry["msg"]))
	}
	assert.Contains(t, msgs, "chat turn completed")
	assert.Contains(t, msgs, "llm call failed")
}

func TestRender(t *testing.T) {
	e := New()
	m := core.MoodVector{Happiness: 10, Energy: 90, Calmness: 40, Confidence: 70}
	assert.Equal(t, face.Render(m), e.Render(m))
}
