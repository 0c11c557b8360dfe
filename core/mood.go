package core

import "math"

// Field names one dimension of the mood vector.
type Field string

const (
	// Happiness is fed by the happy_sad axis.
	Happiness Field = "happiness"
	// Energy is fed by the energy_tired axis.
	Energy Field = "energy"
	// Calmness is fed (inverted) by the calm_angry axis.
	Calmness Field = "calmness"
	// Confidence is fed by the confident_nervous axis.
	Confidence Field = "confidence"
)

// Fields lists all mood fields in canonical order. The order is used to
// break ties when selecting a dominant field.
var Fields = []Field{Happiness, Energy, Calmness, Confidence}

const (
	// MoodMin is the lower bound of every mood field.
	MoodMin = 0.0
	// MoodMax is the upper bound of every mood field.
	MoodMax = 100.0
	// MoodNeutral is the resting value of every mood field.
	MoodNeutral = 50.0
)

// MoodVector is the persistent emotional state of a conversation. Every field
// lies in [MoodMin, MoodMax].
type MoodVector struct {
	Happiness  float64 `json:"happiness"`
	Energy     float64 `json:"energy"`
	Calmness   float64 `json:"calmness"`
	Confidence float64 `json:"confidence"`
}

// NeutralMood returns the default vector with every field at MoodNeutral.
func NeutralMood() MoodVector {
	return MoodVector{
		Happiness:  MoodNeutral,
		Energy:     MoodNeutral,
		Calmness:   MoodNeutral,
		Confidence: MoodNeutral,
	}
}

// Get returns the value of a single field. Unknown fields report MoodNeutral.
func (m MoodVector) Get(f Field) float64 {
	switch f {
	case Happiness:
		return m.Happiness
	case Energy:
		return m.Energy
	case Calmness:
		return m.Calmness
	case Confidence:
		return m.Confidence
	default:
		return MoodNeutral
	}
}

// With returns a copy of m with field f set to v. Unknown fields are ignored.
func (m MoodVector) With(f Field, v float64) MoodVector {
	switch f {
	case Happiness:
		m.Happiness = v
	case Energy:
		m.Energy = v
	case Calmness:
		m.Calmness = v
	case Confidence:
		m.Confidence = v
	}
	return m
}

// Clamped returns a copy with every field forced into range. Non-finite
// values collapse to MoodNeutral.
func (m MoodVector) Clamped() MoodVector {
	for _, f := range Fields {
		m = m.With(f, ClampMood(m.Get(f)))
	}
	return m
}

// IsFinite reports whether no field is NaN or infinite.
func (m MoodVector) IsFinite() bool {
	for _, f := range Fields {
		v := m.Get(f)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// ClampMood forces v into [MoodMin, MoodMax]; NaN becomes MoodNeutral.
func ClampMood(v float64) float64 {
	if math.IsNaN(v) {
		return MoodNeutral
	}
	return math.Max(MoodMin, math.Min(MoodMax, v))
}

// Axis names one dimension of an impact assessment.
type Axis string

const (
	// HappySad ranges from -2 (very sad) to +2 (very happy).
	HappySad Axis = "happy_sad"
	// EnergyTired ranges from -2 (very tired) to +2 (very energetic).
	EnergyTired Axis = "energy_tired"
	// CalmAngry ranges from -2 (very calm) to +2 (very angry).
	CalmAngry Axis = "calm_angry"
	// ConfidentNervous ranges from -2 (very nervous) to +2 (very confident).
	ConfidentNervous Axis = "confident_nervous"
)

// Axes lists all impact axes in canonical order.
var Axes = []Axis{HappySad, EnergyTired, CalmAngry, ConfidentNervous}

const (
	// ImpactMin is the designed lower bound of an impact score. Not enforced.
	ImpactMin = -2.0
	// ImpactMax is the designed upper bound of an impact score. Not enforced.
	ImpactMax = 2.0
)

// ImpactVector holds the emotional impact of a single message. A missing axis
// means the message has no effect on the matching mood field. It serializes to
// the same JSON object shape the classifier produces.
type ImpactVector map[Axis]float64

// ZeroImpact returns an impact with every axis explicitly set to zero.
func ZeroImpact() ImpactVector {
	v := make(ImpactVector, len(Axes))
	for _, a := range Axes {
		v[a] = 0
	}
	return v
}

// IsZero reports whether every present axis is zero.
func (v ImpactVector) IsZero() bool {
	for _, s := range v {
		if s != 0 {
			return false
		}
	}
	return true
}
