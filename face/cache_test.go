package face

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/emotibot/core"
)

func TestCachedRenderer_HitsAndMisses(t *testing.T) {
	var hits, misses int
	renders := 0

	r, err := NewCachedRenderer(func(o *CachedRendererOptions) {
		o.Size = 2
		o.Renderer = RenderFunc(func(m core.MoodVector) Image {
			renders++
			return Render(m)
		})
		o.OnLookup = func(hit bool) {
			if hit {
				hits++
			} else {
				misses++
			}
		}
	})
	require.NoError(t, err)

	neutral := core.NeutralMood()
	assert.Equal(t, Render(neutral), r.Render(neutral))
	assert.Equal(t, Render(neutral), r.Render(neutral))
	assert.Equal(t, 1, renders)
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)

	// NaN and out-of-range inputs share the key of their sanitized value.
	r.Render(core.MoodVector{Happiness: math.NaN(), Energy: 50, Calmness: 50, Confidence: 50})
	assert.Equal(t, 2, hits)
	assert.Equal(t, 1, renders)

	r.Render(core.MoodVector{Happiness: 10})
	r.Render(core.MoodVector{Happiness: 20})
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 3, renders)
}

func TestCachedRenderer_ReturnsIndependentCopies(t *testing.T) {
	r, err := NewCachedRenderer()
	require.NoError(t, err)

	m := core.MoodVector{Happiness: 50, Energy: 50, Calmness: 0, Confidence: 50}
	first := r.Render(m)
	first.Blush[0].R = 99

	second := r.Render(m)
	assert.Equal(t, 10.0, second.Blush[0].R)
}

func TestCachedRenderer_Concurrent(t *testing.T) {
	r, err := NewCachedRenderer(func(o *CachedRendererOptions) { o.Size = 8 })
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m := core.MoodVector{Happiness: float64(i % 4 * 25), Energy: 50, Calmness: 50, Confidence: 50}
			assert.Equal(t, Render(m), r.Render(m))
		}(i)
	}
	wg.Wait()
}
