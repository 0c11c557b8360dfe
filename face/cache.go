package face

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hupe1980/emotibot/core"
)

// DefaultCacheSize is the number of rendered faces kept by NewCachedRenderer
// when no size is configured.
const DefaultCacheSize = 256

// CachedRendererOptions configures a CachedRenderer.
type CachedRendererOptions struct {
	// Size is the LRU capacity. Values <= 0 use DefaultCacheSize.
	Size int
	// Renderer produces images on a cache miss. Defaults to Default.
	Renderer Renderer
	// OnLookup, when set, is called after every lookup with the hit result.
	OnLookup func(hit bool)
}

// CachedRenderer memoizes rendered faces keyed by the sanitized mood vector.
// It is safe for concurrent use.
type CachedRenderer struct {
	cache    *lru.Cache[core.MoodVector, Image]
	next     Renderer
	onLookup func(hit bool)
}

// NewCachedRenderer creates an LRU-backed renderer.
func NewCachedRenderer(optFns ...func(o *CachedRendererOptions)) (*CachedRenderer, error) {
	opts := CachedRendererOptions{
		Size:     DefaultCacheSize,
		Renderer: Default,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Size <= 0 {
		opts.Size = DefaultCacheSize
	}
	if opts.Renderer == nil {
		opts.Renderer = Default
	}

	cache, err := lru.New[core.MoodVector, Image](opts.Size)
	if err != nil {
		return nil, err
	}

	return &CachedRenderer{cache: cache, next: opts.Renderer, onLookup: opts.OnLookup}, nil
}

// Render returns the cached image for m, rendering it on a miss.
func (r *CachedRenderer) Render(m core.MoodVector) Image {
	// NaN never equals itself, so keys must be sanitized first.
	key := m.Clamped()

	img, ok := r.cache.Get(key)
	if r.onLookup != nil {
		r.onLookup(ok)
	}
	if ok {
		return cloneImage(img)
	}

	img = r.next.Render(key)
	r.cache.Add(key, img)
	return cloneImage(img)
}

// Len returns the number of cached faces.
func (r *CachedRenderer) Len() int { return r.cache.Len() }

func cloneImage(img Image) Image {
	if img.Blush != nil {
		img.Blush = append([]Circle(nil), img.Blush...)
	}
	if img.Sweat != nil {
		img.Sweat = append([]Circle(nil), img.Sweat...)
	}
	return img
}
