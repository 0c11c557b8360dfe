// Package face renders a mood vector as a small vector-image face.
//
// Render is pure and deterministic: the same mood always produces the same
// Image. The Image is a structured description (shapes with positions, sizes
// and colors) that serializes to JSON and encodes to a self-contained SVG.
package face

import (
	"fmt"
	"math"

	"github.com/hupe1980/emotibot/core"
)

// Canvas dimensions of every rendered face.
const (
	CanvasWidth  = 200
	CanvasHeight = 200
)

const (
	blushFill  = "rgba(255,182,193,0.3)"
	sweatFill  = "#87CEEB"
	inkColor   = "#000"
	browBaseY  = 75.0
	mouthBaseY = 120.0
)

var baseSkin = Color{R: 255, G: 224, B: 178}

// Color is an opaque RGB color.
type Color struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// Hex returns the color as #rrggbb.
func (c Color) Hex() string { return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B) }

// Point is a canvas coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Circle is a filled circle.
type Circle struct {
	Center      Point   `json:"center"`
	R           float64 `json:"r"`
	Fill        string  `json:"fill"`
	Stroke      string  `json:"stroke,omitempty"`
	StrokeWidth float64 `json:"stroke_width,omitempty"`
	Opacity     float64 `json:"opacity,omitempty"`
}

// Ellipse is a filled ellipse.
type Ellipse struct {
	Center Point   `json:"center"`
	RX     float64 `json:"rx"`
	RY     float64 `json:"ry"`
	Fill   string  `json:"fill"`
}

// Line is a stroked straight segment.
type Line struct {
	From        Point   `json:"from"`
	To          Point   `json:"to"`
	Stroke      string  `json:"stroke"`
	StrokeWidth float64 `json:"stroke_width"`
}

// Curve is a stroked quadratic Bézier curve.
type Curve struct {
	From        Point   `json:"from"`
	Control     Point   `json:"control"`
	To          Point   `json:"to"`
	Stroke      string  `json:"stroke"`
	StrokeWidth float64 `json:"stroke_width"`
}

// Params are the derived quantities that drive the geometry.
type Params struct {
	SkinColor    Color   `json:"skin_color"`
	Flushed      bool    `json:"flushed"`
	MouthCurve   float64 `json:"mouth_curve"`
	EyebrowAngle float64 `json:"eyebrow_angle"`
	EyeHeight    float64 `json:"eye_height"`
	EyeWidth     float64 `json:"eye_width"`
	StrokeWidth  float64 `json:"stroke_width"`
	Blush        bool    `json:"blush"`
	Sweat        bool    `json:"sweat"`
}

// Image is a complete renderable face description.
type Image struct {
	Width    int        `json:"width"`
	Height   int        `json:"height"`
	Face     Circle     `json:"face"`
	Eyes     [2]Ellipse `json:"eyes"`
	Eyebrows [2]Line    `json:"eyebrows"`
	Mouth    Curve      `json:"mouth"`
	Blush    []Circle   `json:"blush,omitempty"`
	Sweat    []Circle   `json:"sweat,omitempty"`
	Params   Params     `json:"params"`
}

// Normalized is a mood rescaled to the [-2,2] impact range. CalmAngry is
// positive when calmness is low.
type Normalized struct {
	HappySad         float64 `json:"happy_sad"`
	EnergyTired      float64 `json:"energy_tired"`
	CalmAngry        float64 `json:"calm_angry"`
	ConfidentNervous float64 `json:"confident_nervous"`
}

// Normalize rescales a mood vector to [-2,2]. Out-of-range values are clamped
// and NaN is read as neutral.
func Normalize(m core.MoodVector) Normalized {
	return Normalized{
		HappySad:         normalize(m.Happiness),
		EnergyTired:      normalize(m.Energy),
		CalmAngry:        -normalize(m.Calmness),
		ConfidentNervous: normalize(m.Confidence),
	}
}

func normalize(v float64) float64 {
	return (core.ClampMood(v) - core.MoodNeutral) / 25
}

// Derive computes the rendering parameters for a normalized emotion.
func Derive(n Normalized) Params {
	anger := math.Abs(n.CalmAngry)
	flushed := anger > 1 || n.ConfidentNervous < -1

	return Params{
		SkinColor:    skinColor(n.EnergyTired, flushed),
		Flushed:      flushed,
		MouthCurve:   clamp(n.HappySad*15-anger*5, -20, 15),
		EyebrowAngle: n.CalmAngry*15 - n.HappySad*5 + n.ConfidentNervous*5,
		EyeHeight:    5 + anger + math.Max(0, -n.ConfidentNervous),
		EyeWidth:     10 + math.Abs(n.ConfidentNervous)*2,
		StrokeWidth:  1 + math.Abs(n.ConfidentNervous)*0.5,
		Blush:        anger > 1 || math.Abs(n.ConfidentNervous) > 1,
		Sweat:        n.ConfidentNervous < -1,
	}
}

// skinColor applies the emotional flush then darkens the skin as energy drops.
func skinColor(energy float64, flushed bool) Color {
	r, g, b := float64(baseSkin.R), float64(baseSkin.G), float64(baseSkin.B)
	if flushed {
		r = math.Min(255, r+20)
		g = math.Max(180, g-10)
	}

	dullness := 1 - (energy+2)/4
	return Color{
		R: channel(r - dullness*20),
		G: channel(g - dullness*10),
		B: channel(b - dullness*5),
	}
}

func channel(v float64) uint8 { return uint8(clamp(math.RoundToEven(v), 0, 255)) }

func clamp(v, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, v)) }

// Render maps a mood vector to a face on a fixed 200x200 canvas.
func Render(m core.MoodVector) Image {
	p := Derive(Normalize(m))

	img := Image{
		Width:  CanvasWidth,
		Height: CanvasHeight,
		Face: Circle{
			Center:      Point{X: 100, Y: 100},
			R:           60,
			Fill:        p.SkinColor.Hex(),
			Stroke:      inkColor,
			StrokeWidth: p.StrokeWidth,
		},
		Eyes: [2]Ellipse{
			{Center: Point{X: 80, Y: 90}, RX: p.EyeWidth, RY: p.EyeHeight, Fill: inkColor},
			{Center: Point{X: 120, Y: 90}, RX: p.EyeWidth, RY: p.EyeHeight, Fill: inkColor},
		},
		Eyebrows: [2]Line{
			{From: Point{X: 70, Y: browBaseY + p.EyebrowAngle}, To: Point{X: 90, Y: browBaseY}, Stroke: inkColor, StrokeWidth: 2},
			{From: Point{X: 110, Y: browBaseY}, To: Point{X: 130, Y: browBaseY + p.EyebrowAngle}, Stroke: inkColor, StrokeWidth: 2},
		},
		Mouth: Curve{
			From:        Point{X: 70, Y: mouthBaseY},
			Control:     Point{X: 100, Y: mouthBaseY + p.MouthCurve},
			To:          Point{X: 130, Y: mouthBaseY},
			Stroke:      inkColor,
			StrokeWidth: 2,
		},
		Params: p,
	}

	if p.Blush {
		img.Blush = []Circle{
			{Center: Point{X: 75, Y: 105}, R: 10, Fill: blushFill},
			{Center: Point{X: 125, Y: 105}, R: 10, Fill: blushFill},
		}
	}
	if p.Sweat {
		img.Sweat = []Circle{
			{Center: Point{X: 70, Y: 75}, R: 3, Fill: sweatFill, Opacity: 0.6},
			{Center: Point{X: 130, Y: 75}, R: 3, Fill: sweatFill, Opacity: 0.6},
		}
	}

	return img
}

// Renderer produces face images for moods.
type Renderer interface {
	Render(m core.MoodVector) Image
}

// RenderFunc adapts a plain function to the Renderer interface.
type RenderFunc func(m core.MoodVector) Image

// Render implements Renderer.
func (f RenderFunc) Render(m core.MoodVector) Image { return f(m) }

// Default is the uncached renderer.
var Default Renderer = RenderFunc(Render)
