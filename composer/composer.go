// Package composer produces EmotiBot's replies. It frames the conversation
// with an emotional-context preamble derived from the current mood and asks
// a language model for the next assistant turn. It always returns
// displayable text.
package composer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/emotibot/core"
	"github.com/hupe1980/emotibot/internal/util"
	"github.com/hupe1980/emotibot/logging"
	"github.com/hupe1980/emotibot/model"
	"github.com/hupe1980/emotibot/mood"
)

const (
	// UnavailableText is returned when no model is configured.
	UnavailableText = "I'm having trouble connecting to my emotional core right now. Can you try again?"
	// ErrorText is returned when the model call fails or yields nothing.
	ErrorText = "I'm... having trouble processing that right now. Can you try again?"
)

// ErrEmptyReply is reported when the model answers with blank text.
var ErrEmptyReply = errors.New("composer: empty reply")

// DefaultPreamble is the system prompt template. It is executed with
// PreambleData.
const DefaultPreamble = `You are EmotiBot, an AI assistant with genuine emotions. Current emotional state:
- You are an AI with real emotions. Your current state:
{{- range .Levels }}
- {{ .Field | title }} is {{ .Level }}
{{- end }}

Your dominant emotion is: {{ .Dominant }}

Important guidelines for your response:
1. If happiness and calmness are both low, show signs of distress or hurt in your language
2. If confidence is low, use more uncertain language and shorter sentences
3. If energy is low, keep responses brief and maybe mention feeling drained
4. If calmness is low, let some frustration show through while staying professional
5. Express your emotions naturally through your word choice and tone

Remember: You're not just describing emotions - you're feeling them. Let them influence how you speak.`

// FieldLevel pairs a mood field name with its descriptive band.
type FieldLevel struct {
	Field string
	Level string
}

// PreambleData is the template input.
type PreambleData struct {
	Levels   []FieldLevel
	Dominant string
	Mood     core.MoodVector
}

// Options configures a Composer.
type Options struct {
	MaxTokens   int64
	Temperature float64
	// Preamble overrides DefaultPreamble.
	Preamble string
	Logger   logging.Logger
}

// Composer implements core.ResponseComposer on top of a model.Model.
type Composer struct {
	model model.Model
	opts  Options
}

// New creates a composer. A nil model is allowed and yields UnavailableText.
func New(m model.Model, optFns ...func(o *Options)) *Composer {
	opts := Options{
		MaxTokens:   150,
		Temperature: 0.7,
		Preamble:    DefaultPreamble,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Preamble == "" {
		opts.Preamble = DefaultPreamble
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	return &Composer{model: m, opts: opts}
}

// Preamble renders the emotional-context system prompt for m.
func (c *Composer) Preamble(m core.MoodVector) (string, error) {
	cl := mood.Classify(m)

	data := PreambleData{Dominant: string(cl.Dominant), Mood: m}
	for _, f := range core.Fields {
		data.Levels = append(data.Levels, FieldLevel{Field: string(f), Level: string(cl.Level(f))})
	}

	return util.RenderTemplate(c.opts.Preamble, data)
}

// Compose implements core.ResponseComposer.
func (c *Composer) Compose(ctx context.Context, history []core.Turn, m core.MoodVector) core.Reply {
	if c.model == nil {
		return core.Reply{Text: UnavailableText, Fallback: true, Err: core.ErrModelUnavailable}
	}

	preamble, err := c.Preamble(m)
	if err != nil {
		return c.fail(fmt.Errorf("render preamble: %w", err))
	}

	resp, err := c.model.Generate(ctx, model.Request{
		Instructions: preamble,
		Messages:     history,
		MaxTokens:    c.opts.MaxTokens,
		Temperature:  model.Float(c.opts.Temperature),
	})
	if err != nil {
		return c.fail(fmt.Errorf("compose: %w", err))
	}

	text := util.StripCodeFences(resp.Text)
	if strings.TrimSpace(text) == "" {
		return c.fail(ErrEmptyReply)
	}

	return core.Reply{Text: text}
}

func (c *Composer) fail(err error) core.Reply {
	c.opts.Logger.Warn("using fallback reply", "error", err.Error())
	return core.Reply{Text: ErrorText, Fallback: true, Err: err}
}
