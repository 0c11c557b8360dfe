package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/emotibot/config"
	"github.com/hupe1980/emotibot/core"
	"github.com/hupe1980/emotibot/face"
	"github.com/hupe1980/emotibot/logging"
	"github.com/hupe1980/emotibot/mood"
)

func TestRenderCmd_SVG(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"render"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, face.Render(core.NeutralMood()).SVG()+"\n", out.String())
}

func TestRenderCmd_JSON(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"render", "--calmness", "0", "--json"})

	require.NoError(t, cmd.Execute())

	var img face.Image
	require.NoError(t, json.Unmarshal(out.Bytes(), &img))
	assert.True(t, img.Params.Flushed)
	assert.Len(t, img.Blush, 2)
}

func TestNewModel(t *testing.T) {
	l := logging.NoOpLogger{}

	m, err := newModel(config.LLMConfig{Provider: config.ProviderOpenAI}, l)
	require.NoError(t, err)
	assert.Nil(t, m, "no key means degraded mode")

	m, err = newModel(config.LLMConfig{Provider: config.ProviderOpenAI, APIKey: "sk", Model: "gpt-4o"}, l)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", m.Info().Name)

	m, err = newModel(config.LLMConfig{Provider: config.ProviderAnthropic, APIKey: "sk"}, l)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", m.Info().Provider)

	m, err = newModel(config.LLMConfig{Provider: config.ProviderMock}, l)
	require.NoError(t, err)
	assert.Equal(t, config.ProviderMock, m.Info().Provider)

	_, err = newModel(config.LLMConfig{Provider: "gemini"}, l)
	assert.Error(t, err)
}

func TestNewBot_Offline(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("EMOTIBOT_LLM_PROVIDER", "mock")

	cfg, err := config.Load("")
	require.NoError(t, err)

	bot, err := newBot(cfg, logging.NoOpLogger{}, nil)
	require.NoError(t, err)

	res, err := bot.Chat(context.Background(), "hello there", "")
	require.NoError(t, err)
	assert.Equal(t, "You said: hello there", res.Response)
	assert.Equal(t, core.NeutralMood(), res.Mood)
}

func TestDescribe(t *testing.T) {
	m := core.MoodVector{Happiness: 80, Energy: 50, Calmness: 50, Confidence: 50}
	s := describe(m, mood.Classify(m))
	assert.True(t, strings.HasPrefix(s, "[happiness 80 (very high), energy 50 (moderate)"))
	assert.True(t, strings.HasSuffix(s, "dominant: happiness"))
}
