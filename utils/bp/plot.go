/*
	bp – Braille Patterns

	Simple way to represent numeric lines like a plot in text.
	Every character holds two samples, one per dot column, four dots high.
*/

package bp

import (
	"fmt"
	"math"
	"strings"

	"github.com/egregors/meep/log"
)

// ⣿⣶⣤⣀ – ok
// ⣾⣷⣴⣦⣠⣄ - ok
// ⣼⣧⣸⣇⣰⣆ - ok
// ⢸⢰⢠⢀⡇⡆⡄⡀ – ok
const (
	m44 = "⣿"
	m33 = "⣶"
	m22 = "⣤"
	m11 = "⣀"

	m34 = "⣾"
	m43 = "⣷"
	m23 = "⣴"
	m32 = "⣦"
	m12 = "⣠"
	m21 = "⣄"

	m24 = "⣼"
	m42 = "⣧"
	m14 = "⣸"
	m41 = "⣇"
	m13 = "⣰"
	m31 = "⣆"

	m40 = "⡇"
	m30 = "⡆"
	m20 = "⡄"
	m10 = "⡀"

	m04 = "⢸"
	m03 = "⢰"
	m02 = "⢠"
	m01 = "⢀"
	m00 = "⠀"
)

// bps[left][right] is the cell with that many dots lit from the bottom.
var bps = [5][]rune{
	[]rune(m00 + m01 + m02 + m03 + m04),
	[]rune(m10 + m11 + m12 + m13 + m14),
	[]rune(m20 + m21 + m22 + m23 + m24),
	[]rune(m30 + m31 + m32 + m33 + m34),
	[]rune(m40 + m41 + m42 + m43 + m44),
}

// SimplePlot draws data size characters high, framed by its max and min
// values. The lowest value has no dots lit. Flat data is drawn at half height.
func SimplePlot(size int, data []float64) string {
	if len(data) == 0 || size <= 0 {
		return ""
	}
	lo, hi := minMax(data)
	height := size * 4
	log.Debg.Printf("hi: %.2f lo: %.2f height: %d", hi, lo, height)

	levels := make([]int, len(data))
	for i, v := range data {
		if hi == lo {
			levels[i] = height / 2
			continue
		}
		levels[i] = int(math.Round((v - lo) / (hi - lo) * float64(height)))
	}
	if len(levels)%2 != 0 {
		levels = append(levels, 0)
	}
	log.Debg.Println("levels:", levels)

	return fmt.Sprintf("%.2f\n%s%.2f", hi, render(size, levels), lo)
}

func render(size int, levels []int) string {
	sb := strings.Builder{}
	for r := 0; r < size; r++ {
		base := (size - 1 - r) * 4
		for c := 0; c < len(levels); c += 2 {
			sb.WriteRune(bps[dots(levels[c], base)][dots(levels[c+1], base)])
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// dots lit in the row starting at base for a column of the given level.
func dots(level, base int) int {
	return min(4, max(0, level-base))
}

func minMax(xs []float64) (float64, float64) {
	minimum, maximum := math.Inf(1), math.Inf(-1)
	for _, x := range xs {
		minimum = min(minimum, x)
		maximum = max(maximum, x)
	}

	return minimum, maximum
}
