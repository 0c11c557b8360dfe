package classifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/emotibot/core"
	"github.com/hupe1980/emotibot/model"
)

func replying(text string) *model.MockModel {
	m := model.NewMockModel("mock", "mock")
	m.SetResponder(func(model.Request) (string, error) { return text, nil })
	return m
}

func TestAssess_ValidPayload(t *testing.T) {
	m := replying(`{"happy_sad": 1.5, "energy_tired": -0.5, "calm_angry": 2, "confident_nervous": 0}`)
	a := New(m).Assess(context.Background(), "hello", core.NeutralMood())

	require.True(t, a.OK())
	assert.Equal(t, core.ImpactVector{
		core.HappySad:         1.5,
		core.EnergyTired:      -0.5,
		core.CalmAngry:        2,
		core.ConfidentNervous: 0,
	}, a.Impact)
}

func TestAssess_StripsFences(t *testing.T) {
	const body = `{"happy_sad": -1, "energy_tired": 0, "calm_angry": 0, "confident_nervous": 1, "note": "extra"}`
	replies := []string{
		"```json\n" + body + "\n```",
		"```\n" + body + "\n```",
		body + "\n```",
		"```json" + body,
		"  " + body + "  ",
	}
	for _, reply := range replies {
		a := New(replying(reply)).Assess(context.Background(), "hi", core.NeutralMood())

		require.NoError(t, a.Err, "reply %q", reply)
		assert.Equal(t, -1.0, a.Impact[core.HappySad], "reply %q", reply)
		assert.Equal(t, 1.0, a.Impact[core.ConfidentNervous], "reply %q", reply)
	}
}

func TestAssess_MalformedYieldsZeroImpact(t *testing.T) {
	replies := []string{
		`I feel happy`,
		`{"happy_sad": 1, "energy_tired": 0, "calm_angry": 0}`,
		`{"happy_sad": "very", "energy_tired": 0, "calm_angry": 0, "confident_nervous": 0}`,
		`[1, 2, 3, 4]`,
		``,
	}
	for _, reply := range replies {
		a := New(replying(reply)).Assess(context.Background(), "x", core.NeutralMood())
		assert.False(t, a.OK(), "reply %q", reply)
		assert.ErrorIs(t, a.Err, ErrMalformedPayload, "reply %q", reply)
		assert.True(t, a.Impact.IsZero(), "reply %q", reply)
	}
}

func TestAssess_ModelFailure(t *testing.T) {
	m := model.NewMockModel("mock", "mock")
	boom := errors.New("rate limited")
	m.SetError(boom)

	a := New(m).Assess(context.Background(), "x", core.NeutralMood())
	assert.ErrorIs(t, a.Err, boom)
	assert.True(t, a.Impact.IsZero())
}

func TestAssess_NoModel(t *testing.T) {
	a := New(nil).Assess(context.Background(), "x", core.NeutralMood())
	assert.ErrorIs(t, a.Err, core.ErrModelUnavailable)
	assert.True(t, a.Impact.IsZero())
}

func TestAssess_RepairJSON(t *testing.T) {
	reply := `{"happy_sad": 1, "energy_tired": 0, "calm_angry": -1, "confident_nervous": 0.5,}`

	strict := New(replying(reply)).Assess(context.Background(), "x", core.NeutralMood())
	assert.ErrorIs(t, strict.Err, ErrMalformedPayload)

	lenient := New(replying(reply), func(o *Options) { o.RepairJSON = true }).Assess(context.Background(), "x", core.NeutralMood())
	require.NoError(t, lenient.Err)
	assert.Equal(t, -1.0, lenient.Impact[core.CalmAngry])
	assert.Equal(t, 0.5, lenient.Impact[core.ConfidentNervous])
}

func TestAssess_RequestShape(t *testing.T) {
	m := replying(`{"happy_sad": 0, "energy_tired": 0, "calm_angry": 0, "confident_nervous": 0}`)
	prior := core.MoodVector{Happiness: 80, Energy: 50, Calmness: 10, Confidence: 50}

	New(m).Assess(context.Background(), "you're great", prior)

	req, ok := m.LastRequest()
	require.True(t, ok)
	assert.Equal(t, SystemPrompt, req.Instructions)
	assert.Equal(t, int64(150), req.MaxTokens)
	assert.Equal(t, 0.7, *req.Temperature)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, core.RoleUser, req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "happiness is very high")
	assert.Contains(t, req.Messages[0].Content, "calmness is very low")
	assert.Contains(t, req.Messages[0].Content, "Analyze: 'you're great'")
}

func TestParse(t *testing.T) {
	p, err := Parse(`{"happy_sad": 3, "energy_tired": -3, "calm_angry": 0.25, "confident_nervous": -0.25}`)
	require.NoError(t, err)
	assert.Equal(t, Payload{HappySad: 3, EnergyTired: -3, CalmAngry: 0.25, ConfidentNervous: -0.25}, p)

	_, err = Parse(`{}`)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}
