package mood

import (
	"math"

	"github.com/hupe1980/emotibot/core"
)

// Level is a descriptive band for a single mood field.
type Level string

const (
	// VeryHigh covers [75,100].
	VeryHigh Level = "very high"
	// High covers [60,75).
	High Level = "high"
	// Moderate covers [40,60).
	Moderate Level = "moderate"
	// Low covers [25,40).
	Low Level = "low"
	// VeryLow covers [0,25).
	VeryLow Level = "very low"
)

// Describe maps a field value to its band.
func Describe(v float64) Level {
	switch {
	case v >= 75:
		return VeryHigh
	case v >= 60:
		return High
	case v >= 40:
		return Moderate
	case v >= 25:
		return Low
	default:
		return VeryLow
	}
}

// IsLow reports whether the level is Low or VeryLow.
func (l Level) IsLow() bool { return l == Low || l == VeryLow }

// Classification describes a mood vector in words.
type Classification struct {
	Levels   map[core.Field]Level `json:"levels"`
	Dominant core.Field           `json:"dominant"`
}

// Level returns the band of a field.
func (c Classification) Level(f core.Field) Level { return c.Levels[f] }

// Classify bands every field and picks the dominant one: the field furthest
// from neutral, ties resolved by core.Fields order.
func Classify(m core.MoodVector) Classification {
	c := Classification{
		Levels:   make(map[core.Field]Level, len(core.Fields)),
		Dominant: core.Fields[0],
	}

	best := -1.0
	for _, f := range core.Fields {
		v := m.Get(f)
		c.Levels[f] = Describe(v)
		if d := math.Abs(v - core.MoodNeutral); d > best {
			best = d
			c.Dominant = f
		}
	}

	return c
}
