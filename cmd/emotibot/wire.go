package main

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/emotibot"
	"github.com/hupe1980/emotibot/classifier"
	"github.com/hupe1980/emotibot/config"
	"github.com/hupe1980/emotibot/core"
	"github.com/hupe1980/emotibot/logging"
	"github.com/hupe1980/emotibot/metrics"
	"github.com/hupe1980/emotibot/model"
	anthropicmodel "github.com/hupe1980/emotibot/model/anthropic"
	openaimodel "github.com/hupe1980/emotibot/model/openai"
)

func newLogger(cfg *config.Config) *logging.BotLogger {
	return logging.NewSlogLogger(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format, false)
}

// newModel builds the configured provider. A missing API key is not fatal:
// the bot then runs in degraded mode.
func newModel(cfg config.LLMConfig, logger logging.Logger) (model.Model, error) {
	switch cfg.Provider {
	case config.ProviderMock:
		return offlineModel{}, nil
	case config.ProviderOpenAI:
		if cfg.APIKey == "" {
			logger.Warn("no OpenAI API key configured", "provider", cfg.Provider)
			return nil, nil
		}
		return openaimodel.NewModel(func(o *openaimodel.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
			o.Temperature = cfg.Temperature
			o.MaxCompletionTokens = cfg.MaxTokens
		}), nil
	case config.ProviderAnthropic:
		if cfg.APIKey == "" {
			logger.Warn("no Anthropic API key configured", "provider", cfg.Provider)
			return nil, nil
		}
		return anthropicmodel.NewModel(func(o *anthropicmodel.Options) {
			if cfg.Model != "" {
				o.Model = anthropic.Model(cfg.Model)
			}
			o.APIKey = cfg.APIKey
			o.BaseURL = cfg.BaseURL
			o.Temperature = cfg.Temperature
			o.MaxTokens = cfg.MaxTokens
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

// offlineModel answers without a network: a neutral assessment and an echo
// reply. Unlike model.MockModel it keeps no request log, so it is safe to
// serve with.
type offlineModel struct{}

func (offlineModel) Generate(ctx context.Context, req model.Request) (*model.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Messages) == 0 {
		return nil, model.ErrNoMessages
	}

	text := fmt.Sprintf("You said: %s", req.LastUserText())
	if req.Instructions == classifier.SystemPrompt {
		text = `{"happy_sad": 0, "energy_tired": 0, "calm_angry": 0, "confident_nervous": 0}`
	}
	return &model.Response{ID: core.NewID(), Text: text, FinishReason: "stop"}, nil
}

func (offlineModel) Info() model.Info {
	return model.Info{Name: "offline", Provider: config.ProviderMock}
}

func newBot(cfg *config.Config, logger logging.Logger, m *metrics.Metrics) (*emotibot.Bot, error) {
	llm, err := newModel(cfg.LLM, logger)
	if err != nil {
		return nil, err
	}

	return emotibot.New(func(o *emotibot.Options) {
		o.Model = llm
		o.EngineConfig = cfg.Engine.Engine()
		o.RepairJSON = cfg.Classifier.RepairJSON
		o.MaxTokens = cfg.LLM.MaxTokens
		o.Temperature = cfg.LLM.Temperature
		o.FaceCacheSize = cfg.Face.CacheSize
		o.Metrics = m
		o.Logger = logger
	})
}
