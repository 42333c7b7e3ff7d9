package audio

// Smoothstep returns the smoothstep interpolation for t in [0,1].
// Formula: 3t^2 - 2t^3.
func Smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

// CrossfadeFrames blends an outgoing buffer with an incoming buffer at a single
// progress value (0.0 = all outgoing, 1.0 = all incoming). Uses smoothstep curve.
// Both buffers must have the same length. Returns the blended buffer.
func CrossfadeFrames(outgoing, incoming []int16, progress float64) []int16 {
	gain := Smoothstep(progress)
	result := make([]int16, len(outgoing))
	for i := range outgoing {
		result[i] = mix(outgoing[i], incoming[i], gain)
	}
	return result
}

// CrossfadeRamp blends outgoing into incoming with progress advancing once per
// frame, so the first frame is all outgoing and the curve approaches incoming
// at the end. Both buffers hold interleaved samples with the given channel count.
func CrossfadeRamp(outgoing, incoming []int16, channels int) []int16 {
	result := make([]int16, len(incoming))
	if channels <= 0 {
		copy(result, incoming)
		return result
	}
	frames := min(len(outgoing), len(incoming)) / channels
	for f := 0; f < frames; f++ {
		lo, hi := f*channels, (f+1)*channels
		copy(result[lo:hi], CrossfadeFrames(outgoing[lo:hi], incoming[lo:hi], float64(f)/float64(frames)))
	}
	copy(result[frames*channels:], incoming[frames*channels:])
	return result
}

func mix(out, in int16, gain float64) int16 {
	mixed := float64(out)*(1-gain) + float64(in)*gain

	// Clip to int16 range
	if mixed > 32767 {
		mixed = 32767
	} else if mixed < -32768 {
		mixed = -32768
	}
	return int16(mixed)
}
