package analyzer

// Snapshot is one frame of frequency magnitudes in [0,255], lowest bin first.
type Snapshot []uint8

// Index maps slot i of slots evenly onto the snapshot: floor(i*len/slots).
// The result is always a valid index for a non-empty snapshot.
func (s Snapshot) Index(i, slots int) int {
	if len(s) == 0 || slots <= 0 {
		return 0
	}
	idx := i * len(s) / slots
	if idx < 0 {
		return 0
	}
	if idx >= len(s) {
		return len(s) - 1
	}
	return idx
}

// Level returns bin i normalized to [0,1].
func (s Snapshot) Level(i int) float64 {
	if i < 0 || i >= len(s) {
		return 0
	}
	return float64(s[i]) / 255
}

// Average returns the mean bin value in [0,255].
func (s Snapshot) Average() float64 {
	if len(s) == 0 {
		return 0
	}
	sum := 0
	for _, v := range s {
		sum += int(v)
	}
	return float64(sum) / float64(len(s))
}

// Intensity is Average normalized to [0,1].
func (s Snapshot) Intensity() float64 {
	return s.Average() / 255
}

// Silent reports whether every bin is zero.
func (s Snapshot) Silent() bool {
	for _, v := range s {
		if v != 0 {
			return false
		}
	}
	return true
}
