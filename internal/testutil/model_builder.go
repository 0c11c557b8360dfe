package testutil

import (
	"encoding/json"
	"sync"

	"github.com/hupe1980/emotibot/classifier"
	"github.com/hupe1980/emotibot/core"
	"github.com/hupe1980/emotibot/model"
)

// ModelBuilder scripts a model.MockModel that answers classifier prompts with
// impacts and every other prompt with replies.
// Example:
//
//	m := NewModelBuilder().Impact(core.ImpactVector{core.HappySad: 2}).Reply("yay").Build()
//
// Scripted impacts and replies are consumed in order; the last one repeats.
type ModelBuilder struct {
	impacts []string
	replies []string
}

// NewModelBuilder creates a builder answering with zero impact and "ok".
func NewModelBuilder() *ModelBuilder { return &ModelBuilder{} }

// Impact appends a classifier answer encoding v (chainable).
func (b *ModelBuilder) Impact(v core.ImpactVector) *ModelBuilder {
	p := classifier.Payload{
		HappySad:         v[core.HappySad],
		EnergyTired:      v[core.EnergyTired],
		CalmAngry:        v[core.CalmAngry],
		ConfidentNervous: v[core.ConfidentNervous],
	}
	raw, _ := json.Marshal(p)
	b.impacts = append(b.impacts, string(raw))
	return b
}

// RawImpact appends a verbatim classifier answer, e.g. malformed JSON (chainable).
func (b *ModelBuilder) RawImpact(text string) *ModelBuilder {
	b.impacts = append(b.impacts, text)
	return b
}

// Reply appends a composer answer (chainable).
func (b *ModelBuilder) Reply(text string) *ModelBuilder {
	b.replies = append(b.replies, text)
	return b
}

// Build returns the scripted mock model.
func (b *ModelBuilder) Build() *model.MockModel {
	impacts := next(b.impacts, `{"happy_sad": 0, "energy_tired": 0, "calm_angry": 0, "confident_nervous": 0}`)
	replies := next(b.replies, "ok")

	m := model.NewMockModel("scripted", "mock")
	m.SetResponder(func(req model.Request) (string, error) {
		if req.Instructions == classifier.SystemPrompt {
			return impacts(), nil
		}
		return replies(), nil
	})
	return m
}

func next(script []string, fallback string) func() string {
	var (
		mu sync.Mutex
		i  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		if len(script) == 0 {
			return fallback
		}
		s := script[min(i, len(script)-1)]
		i++
		return s
	}
}
