package model

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/emotibot/core"
)

func userReq(text string) Request {
	return Request{Messages: []core.Turn{{Role: core.RoleUser, Content: text}}}
}

func TestMockModel_DefaultAndCanned(t *testing.T) {
	m := NewMockModel("mock-1", "mock")
	m.AddResponse("hi", "hello!")

	resp, err := m.Generate(context.Background(), userReq("hi"))
	require.NoError(t, err)
	assert.Equal(t, "hello!", resp.Text)
	assert.Equal(t, "stop", resp.FinishReason)

	resp, err = m.Generate(context.Background(), userReq("other"))
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: other", resp.Text)

	assert.Equal(t, 2, m.Calls())
	assert.Equal(t, Info{Name: "mock-1", Provider: "mock"}, m.Info())
}

func TestMockModel_ResponderAndError(t *testing.T) {
	m := NewMockModel("mock", "mock")
	m.SetResponder(func(req Request) (string, error) { return req.Instructions, nil })

	resp, err := m.Generate(context.Background(), Request{Instructions: "sys", Messages: userReq("x").Messages})
	require.NoError(t, err)
	assert.Equal(t, "sys", resp.Text)

	boom := errors.New("boom")
	m.SetError(boom)
	_, err = m.Generate(context.Background(), userReq("x"))
	assert.ErrorIs(t, err, boom)

	m.SetError(nil)
	_, err = m.Generate(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNoMessages)
}

func TestMockModel_RecordsRequests(t *testing.T) {
	m := NewMockModel("mock", "mock")
	_, ok := m.LastRequest()
	assert.False(t, ok)

	req := Request{
		Instructions: "be nice",
		Messages: []core.Turn{
			{Role: core.RoleUser, Content: "a"},
			{Role: core.RoleAssistant, Content: "b"},
			{Role: core.RoleUser, Content: "c"},
		},
		MaxTokens:   150,
		Temperature: Float(0.7),
	}
	_, err := m.Generate(context.Background(), req)
	require.NoError(t, err)

	last, ok := m.LastRequest()
	require.True(t, ok)
	assert.Equal(t, "be nice", last.Instructions)
	assert.Equal(t, "c", last.LastUserText())
	assert.Equal(t, int64(150), last.MaxTokens)
	assert.Equal(t, 0.7, *last.Temperature)

	req.Messages[0].Content = "mutated"
	assert.Equal(t, "a", m.Requests()[0].Messages[0].Content)
}

func TestMockModel_CancelledContext(t *testing.T) {
	m := NewMockModel("mock", "mock")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.Generate(ctx, userReq("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMockModel_Concurrent(t *testing.T) {
	m := NewMockModel("mock", "mock")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Generate(context.Background(), userReq("x"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, m.Calls())
}

func TestRequest_LastUserText(t *testing.T) {
	assert.Equal(t, "", Request{}.LastUserText())
	req := Request{Messages: []core.Turn{
		{Role: core.RoleUser, Content: "first"},
		{Role: core.RoleAssistant, Content: "reply"},
	}}
	assert.Equal(t, "first", req.LastUserText())
}
