package music

import "math"

// Scale identifies a pitch-class set used for quantization.
type Scale string

const (
	ScaleMajor      Scale = "major"
	ScaleMinor      Scale = "minor"
	ScalePentatonic Scale = "pentatonic"
	ScaleBlues      Scale = "blues"
	ScaleChromatic  Scale = "chromatic"
)

const (
	DefaultScale Scale = ScalePentatonic
	DefaultRoot        = 60
)

var scaleIntervals = map[Scale][]int{
	ScaleMajor:      {0, 2, 4, 5, 7, 9, 11},
	ScaleMinor:      {0, 2, 3, 5, 7, 8, 10},
	ScalePentatonic: {0, 2, 4, 7, 9},
	ScaleBlues:      {0, 3, 5, 6, 7, 10},
	ScaleChromatic:  {0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
}

// Scales lists the known scale types in no particular order.
func Scales() []Scale {
	out := make([]Scale, 0, len(scaleIntervals))
	for s := range scaleIntervals {
		out = append(out, s)
	}
	return out
}

// Valid reports whether s names a known scale.
func (s Scale) Valid() bool {
	_, ok := scaleIntervals[s]
	return ok
}

// Intervals returns the ascending interval list for s, falling back to
// pentatonic for unknown scales.
func (s Scale) Intervals() []int {
	if iv, ok := scaleIntervals[s]; ok {
		return iv
	}
	return scaleIntervals[ScalePentatonic]
}

// QuantizeToScale snaps a chromatic pitch to the nearest degree of the
// scale, preserving the octave offset from root. Ties between equally
// close degrees resolve to the one appearing first in the interval list.
// Idempotent: quantizing an already-quantized note returns it unchanged.
func QuantizeToScale(note int, scale Scale, root int) int {
	iv := scale.Intervals()
	diff := note - root
	relative := floorMod(diff, 12)
	octave := floorDiv(diff, 12)
	closest := iv[0]
	best := abs(iv[0] - relative)
	for _, s := range iv[1:] {
		if d := abs(s - relative); d < best {
			best = d
			closest = s
		}
	}
	return root + octave*12 + closest
}

// Grid is a time quantization resolution relative to one beat.
type Grid string

const (
	GridQuarter   Grid = "1/4"
	GridEighth    Grid = "1/8"
	GridSixteenth Grid = "1/16"
)

// GridSeconds returns the grid unit in seconds at the given tempo.
// Unknown grids default to eighths.
func GridSeconds(bpm int, grid Grid) float64 {
	beat := 60.0 / float64(bpm)
	switch grid {
	case GridQuarter:
		return beat
	case GridEighth:
		return beat / 2
	case GridSixteenth:
		return beat / 4
	default:
		return beat / 2
	}
}

// QuantizeTime snaps t to the nearest multiple of the grid unit.
func QuantizeTime(t float64, bpm int, grid Grid) float64 {
	unit := GridSeconds(bpm, grid)
	return math.Round(t/unit) * unit
}

func floorMod(a, n int) int {
	m := a % n
	if m < 0 {
		m += n
	}
	return m
}

func floorDiv(a, n int) int {
	q := a / n
	if (a%n != 0) && ((a < 0) != (n < 0)) {
		q--
	}
	return q
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
