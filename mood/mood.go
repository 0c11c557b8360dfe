// Package mood implements the numeric emotion model: damped updates of a
// MoodVector from an ImpactVector and descriptive classification of the
// result. Everything here is pure and deterministic.
package mood

import (
	"errors"
	"fmt"
	"math"

	"github.com/hupe1980/emotibot/core"
)

const (
	// PointsPerUnit converts one impact unit into mood points.
	PointsPerUnit = 25.0
	// Damping is the fraction of the distance to the target covered per update.
	Damping = 0.5
)

// ErrNonFinite is returned by Update when the input or a computed value is NaN or infinite.
var ErrNonFinite = errors.New("mood: non-finite value")

type binding struct {
	axis  core.Axis
	field core.Field
	sign  float64
}

// bindings maps impact axes to mood fields. Anger lowers calmness.
var bindings = []binding{
	{axis: core.HappySad, field: core.Happiness, sign: 1},
	{axis: core.EnergyTired, field: core.Energy, sign: 1},
	{axis: core.CalmAngry, field: core.Calmness, sign: -1},
	{axis: core.ConfidentNervous, field: core.Confidence, sign: 1},
}

// FieldFor returns the mood field driven by an impact axis.
func FieldFor(a core.Axis) (core.Field, bool) {
	for _, b := range bindings {
		if b.axis == a {
			return b.field, true
		}
	}
	return "", false
}

// Update moves current half-way toward the clamped target implied by impact.
// Axes missing from impact leave their field unchanged. On failure it returns
// the neutral vector together with an error wrapping ErrNonFinite.
func Update(current core.MoodVector, impact core.ImpactVector) (core.MoodVector, error) {
	if !current.IsFinite() {
		return core.NeutralMood(), fmt.Errorf("current mood %+v: %w", current, ErrNonFinite)
	}

	next := current.Clamped()
	for _, b := range bindings {
		score, ok := impact[b.axis]
		if !ok {
			continue
		}
		if math.IsNaN(score) || math.IsInf(score, 0) {
			return core.NeutralMood(), fmt.Errorf("impact %s=%v: %w", b.axis, score, ErrNonFinite)
		}

		value := next.Get(b.field)
		target := core.ClampMood(value + b.sign*score*PointsPerUnit)
		value += (target - value) * Damping
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return core.NeutralMood(), fmt.Errorf("%s update: %w", b.field, ErrNonFinite)
		}
		next = next.With(b.field, value)
	}

	return next, nil
}

// ApplyImpact is Update without the error: failures resolve to the neutral vector.
func ApplyImpact(current core.MoodVector, impact core.ImpactVector) core.MoodVector {
	next, _ := Update(current, impact)
	return next
}
