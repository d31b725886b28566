package layout

import (
	"strconv"
	"strings"

	"finitefield.org/seed-web/internal/hierarchy"
)

// Diagonal returns an SVG path for a horizontal cubic curve from s to d. The
// two control points share the midpoint of the depth axis, which keeps the
// curve monotonic and free of self-intersections.
func Diagonal(s, d hierarchy.Point) string {
	mid := (s.X + d.X) / 2
	var b strings.Builder
	b.WriteString("M ")
	writePair(&b, s.X, s.Y)
	b.WriteString(" C ")
	writePair(&b, mid, s.Y)
	b.WriteString(", ")
	writePair(&b, mid, d.Y)
	b.WriteString(", ")
	writePair(&b, d.X, d.Y)
	return b.String()
}

func writePair(b *strings.Builder, x, y float64) {
	b.WriteString(formatCoord(x))
	b.WriteByte(' ')
	b.WriteString(formatCoord(y))
}

// formatCoord renders a coordinate with at most two decimals.
func formatCoord(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" || s == "" {
		return "0"
	}
	return s
}

// Translate renders an SVG transform placing an element at p.
func Translate(p hierarchy.Point) string {
	return "translate(" + formatCoord(p.X) + "," + formatCoord(p.Y) + ")"
}
