// Package classifier turns a user message into an ImpactVector by asking a
// language model for a four-axis emotional assessment.
//
// The model's raw text never leaves this package: code fences are stripped,
// the payload is checked against a JSON Schema and decoded into a typed
// result. Every failure yields the zero impact together with an error.
package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/hupe1980/emotibot/core"
	"github.com/hupe1980/emotibot/internal/util"
	"github.com/hupe1980/emotibot/logging"
	"github.com/hupe1980/emotibot/model"
	"github.com/hupe1980/emotibot/mood"
)

// ErrMalformedPayload is returned when the model reply is not a valid
// assessment object.
var ErrMalformedPayload = errors.New("classifier: malformed assessment payload")

// SystemPrompt instructs the model to answer with the assessment object only.
const SystemPrompt = `You are an emotional analysis system. Analyze the emotional content of the message and respond with ONLY a JSON object in this exact format:
{
    "happy_sad": <number between -2 and 2>,
    "energy_tired": <number between -2 and 2>,
    "calm_angry": <number between -2 and 2>,
    "confident_nervous": <number between -2 and 2>
}
Where:
- happy_sad: -2 (very sad) to +2 (very happy)
- energy_tired: -2 (very tired) to +2 (very energetic)
- calm_angry: -2 (very calm) to +2 (very angry)
- confident_nervous: -2 (very nervous) to +2 (very confident)

Respond with ONLY the JSON object, no other text.`

// Payload is the JSON object the model must return.
type Payload struct {
	HappySad         float64 `json:"happy_sad" description:"-2 (very sad) to +2 (very happy)"`
	EnergyTired      float64 `json:"energy_tired" description:"-2 (very tired) to +2 (very energetic)"`
	CalmAngry        float64 `json:"calm_angry" description:"-2 (very calm) to +2 (very angry)"`
	ConfidentNervous float64 `json:"confident_nervous" description:"-2 (very nervous) to +2 (very confident)"`
}

// Impact converts the payload to an ImpactVector with all four axes set.
func (p Payload) Impact() core.ImpactVector {
	return core.ImpactVector{
		core.HappySad:         p.HappySad,
		core.EnergyTired:      p.EnergyTired,
		core.CalmAngry:        p.CalmAngry,
		core.ConfidentNervous: p.ConfidentNervous,
	}
}

var payloadSchema = util.CreateSchema(Payload{})

// Options configures a ModelClassifier.
type Options struct {
	MaxTokens   int64
	Temperature float64
	// RepairJSON runs a lenient JSON repair pass over replies that fail to
	// parse before giving up.
	RepairJSON bool
	Logger     logging.Logger
}

// ModelClassifier implements core.ImpactClassifier on top of a model.Model.
type ModelClassifier struct {
	model model.Model
	opts  Options
}

// New creates a classifier. A nil model is allowed: every assessment then
// fails with core.ErrModelUnavailable.
func New(m model.Model, optFns ...func(o *Options)) *ModelClassifier {
	opts := Options{
		MaxTokens:   150,
		Temperature: 0.7,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	return &ModelClassifier{model: m, opts: opts}
}

// Assess implements core.ImpactClassifier.
func (c *ModelClassifier) Assess(ctx context.Context, message string, prior core.MoodVector) core.Assessment {
	if c.model == nil {
		return core.Assessment{Impact: core.ZeroImpact(), Err: core.ErrModelUnavailable}
	}

	resp, err := c.model.Generate(ctx, model.Request{
		Instructions: SystemPrompt,
		Messages:     []core.Turn{{Role: core.RoleUser, Content: Prompt(message, prior)}},
		MaxTokens:    c.opts.MaxTokens,
		Temperature:  model.Float(c.opts.Temperature),
	})
	if err != nil {
		return core.Assessment{Impact: core.ZeroImpact(), Err: fmt.Errorf("classify: %w", err)}
	}

	payload, err := c.parse(resp.Text)
	if err != nil {
		c.opts.Logger.Warn("discarding impact assessment", "reply", resp.Text, "error", err.Error())
		return core.Assessment{Impact: core.ZeroImpact(), Err: err}
	}

	return core.Assessment{Impact: payload.Impact()}
}

// Prompt builds the user message: the prior mood in words, then the text.
func Prompt(message string, prior core.MoodVector) string {
	c := mood.Classify(prior)

	parts := make([]string, 0, len(core.Fields))
	for _, f := range core.Fields {
		parts = append(parts, fmt.Sprintf("%s is %s", f, c.Level(f)))
	}

	return fmt.Sprintf("Current emotional state: %s.\nAnalyze: '%s'", strings.Join(parts, ", "), message)
}

func (c *ModelClassifier) parse(reply string) (Payload, error) {
	text := util.StripJSONFences(reply)

	p, err := Parse(text)
	if err == nil || !c.opts.RepairJSON {
		return p, err
	}

	repaired, rerr := jsonrepair.JSONRepair(text)
	if rerr != nil {
		return Payload{}, err
	}
	c.opts.Logger.Debug("repaired assessment payload", "original", text, "repaired", repaired)

	return Parse(repaired)
}

// Parse validates a raw JSON assessment and decodes it. All four axes must
// be present and numeric.
func Parse(text string) (Payload, error) {
	if err := util.ValidateJSON(payloadSchema, []byte(text)); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	var p Payload
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	return p, nil
}
