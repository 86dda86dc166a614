package engine

import (
	"image"
	"sort"
)

// Line is one recognised text region.
type Line struct {
	Text       string          `json:"text"`
	Box        image.Rectangle `json:"box"`
	Confidence float64         `json:"confidence"`
}

// rowTolerance is the vertical distance, in pixels, under which two boxes count
// as the same row.
const rowTolerance = 10

// SortLines orders lines top-to-bottom, then left-to-right within a row.
func SortLines(lines []Line) {
	sort.SliceStable(lines, func(i, j int) bool {
		a, b := lines[i].Box.Min, lines[j].Box.Min
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})

	for i := 0; i < len(lines)-1; i++ {
		for j := i; j >= 0; j-- {
			a, b := lines[j].Box.Min, lines[j+1].Box.Min
			if abs(b.Y-a.Y) < rowTolerance && b.X < a.X {
				lines[j], lines[j+1] = lines[j+1], lines[j]
				continue
			}
			break
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
