package face

import (
	"strconv"
	"strings"
)

// SVG encodes the image as a standalone SVG document.
func (img Image) SVG() string {
	var b strings.Builder

	b.WriteString(`<svg width="`)
	b.WriteString(strconv.Itoa(img.Width))
	b.WriteString(`" height="`)
	b.WriteString(strconv.Itoa(img.Height))
	b.WriteString(`" xmlns="http://www.w3.org/2000/svg">`)

	writeCircle(&b, img.Face)
	for _, e := range img.Eyes {
		b.WriteString(`<ellipse cx="` + num(e.Center.X) + `" cy="` + num(e.Center.Y) +
			`" rx="` + num(e.RX) + `" ry="` + num(e.RY) + `" fill="` + e.Fill + `"/>`)
	}
	for _, l := range img.Eyebrows {
		b.WriteString(`<line x1="` + num(l.From.X) + `" y1="` + num(l.From.Y) +
			`" x2="` + num(l.To.X) + `" y2="` + num(l.To.Y) +
			`" stroke="` + l.Stroke + `" stroke-width="` + num(l.StrokeWidth) + `"/>`)
	}

	m := img.Mouth
	b.WriteString(`<path d="M` + num(m.From.X) + `,` + num(m.From.Y) +
		` Q` + num(m.Control.X) + `,` + num(m.Control.Y) +
		` ` + num(m.To.X) + `,` + num(m.To.Y) +
		`" fill="none" stroke="` + m.Stroke + `" stroke-width="` + num(m.StrokeWidth) + `"/>`)

	for _, c := range img.Blush {
		writeCircle(&b, c)
	}
	for _, c := range img.Sweat {
		writeCircle(&b, c)
	}

	b.WriteString(`</svg>`)
	return b.String()
}

func writeCircle(b *strings.Builder, c Circle) {
	b.WriteString(`<circle cx="` + num(c.Center.X) + `" cy="` + num(c.Center.Y) +
		`" r="` + num(c.R) + `" fill="` + c.Fill + `"`)
	if c.Stroke != "" {
		b.WriteString(` stroke="` + c.Stroke + `" stroke-width="` + num(c.StrokeWidth) + `"`)
	}
	if c.Opacity > 0 {
		b.WriteString(` opacity="` + num(c.Opacity) + `"`)
	}
	b.WriteString(`/>`)
}

// num formats a coordinate with at most three decimals and no trailing zeros.
func num(v float64) string {
	s := strconv.FormatFloat(v, 'f', 3, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" {
		return "0"
	}
	return s
}
