package omestack

// dimensions is a snapshot of one series' 5D layout. SizeC counts effective
// channels (per-plane sample packing already folded in), so
// SizeZ*SizeC*SizeT always equals ImageCount.
type dimensions struct {
	SizeX, SizeY int
	SizeZ        int
	SizeC        int
	SizeT        int
	ImageCount   int
}

// applyInterleaving reinterprets a stack's physical planes as n interleaved
// channels: consecutive planes cycle through channels, so plane p holds
// channel p%n of focal slice p/n. The time axis collapses to a single point.
//
// n values below 1 restore the raw interpretation unchanged. n must divide
// the physical plane count exactly; a remainder would leave orphan planes
// with no (z, c) home.
func applyInterleaving(raw dimensions, n int) (dimensions, error) {
	if n <= 1 {
		return raw, nil
	}
	if raw.ImageCount%n != 0 {
		return dimensions{}, invalidArgumentf(
			"interleaved channel count %d does not divide the %d planes in the file",
			n, raw.ImageCount)
	}
	d := raw
	d.SizeC = n
	d.SizeZ = raw.ImageCount / n
	d.SizeT = 1
	return d, nil
}

// planeIndex maps (z, c, t) to a physical plane number under the interleaved
// interpretation: channels vary fastest along the file's plane sequence.
func (d dimensions) interleavedIndex(z, c int) int {
	return z*d.SizeC + c
}

func (d dimensions) checkCoords(z, c, t int) error {
	if z < 0 || z >= d.SizeZ {
		return invalidArgumentf("z index %d out of range [0,%d)", z, d.SizeZ)
	}
	if c < 0 || c >= d.SizeC {
		return invalidArgumentf("c index %d out of range [0,%d)", c, d.SizeC)
	}
	if t < 0 || t >= d.SizeT {
		return invalidArgumentf("t index %d out of range [0,%d)", t, d.SizeT)
	}
	return nil
}
