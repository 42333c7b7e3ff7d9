package audio

import "math"

// cubicInterpolate performs Catmull-Rom interpolation between y1 and y2.
// x is the fractional position (0 <= x <= 1).
func cubicInterpolate(y0, y1, y2, y3, x float64) float64 {
	a0 := -0.5*y0 + 1.5*y1 - 1.5*y2 + 0.5*y3
	a1 := y0 - 2.5*y1 + 2*y2 - 0.5*y3
	a2 := -0.5*y0 + 0.5*y2
	a3 := y1

	return a0*x*x*x + a1*x*x + a2*x + a3
}

func clampInt16(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(math.Round(v))
}

// Float32ToInt16 converts a [-1,1] float sample to 16-bit PCM.
func Float32ToInt16(x float32) int16 {
	if x > 1 {
		x = 1
	} else if x < -1 {
		x = -1
	}
	return int16(x * 32767.0)
}

// Resample converts interleaved samples from one rate to another with cubic
// interpolation. The output has round(frames*to/from) frames.
func Resample(samples []int16, channels, from, to int) []int16 {
	if from == to || channels <= 0 || from <= 0 || to <= 0 {
		out := make([]int16, len(samples))
		copy(out, samples)
		return out
	}

	inFrames := len(samples) / channels
	outFrames := int(math.Round(float64(inFrames) * float64(to) / float64(from)))
	out := make([]int16, outFrames*channels)
	if inFrames == 0 {
		return out
	}

	at := func(frame, ch int) float64 {
		frame = max(0, min(frame, inFrames-1))
		return float64(samples[frame*channels+ch])
	}

	ratio := float64(from) / float64(to)
	for f := 0; f < outFrames; f++ {
		pos := float64(f) * ratio
		i := int(pos)
		x := pos - float64(i)
		for c := 0; c < channels; c++ {
			v := cubicInterpolate(at(i-1, c), at(i, c), at(i+1, c), at(i+2, c), x)
			out[f*channels+c] = clampInt16(v)
		}
	}
	return out
}

// ToStereo converts interleaved samples with any channel count to stereo.
// Mono is duplicated; extra channels beyond the first two are dropped.
func ToStereo(samples []int16, channels int) []int16 {
	if channels == 2 {
		return samples
	}
	if channels <= 0 {
		return nil
	}
	frames := len(samples) / channels
	out := make([]int16, frames*2)
	for f := 0; f < frames; f++ {
		l := samples[f*channels]
		r := l
		if channels > 1 {
			r = samples[f*channels+1]
		}
		out[f*2] = l
		out[f*2+1] = r
	}
	return out
}

// Normalize converts decoded PCM into the canonical 48kHz stereo Recording.
func Normalize(samples []int16, rate, channels int) Recording {
	stereo := ToStereo(samples, channels)
	if rate != SampleRate {
		stereo = Resample(stereo, Channels, rate, SampleRate)
	}
	return NewRecording(stereo)
}

// Mono mixes a recording down to mono float64 samples in [-1,1].
func Mono(r Recording) []float64 {
	frames := r.Frames()
	out := make([]float64, frames)
	if frames == 0 {
		return out
	}
	for f := 0; f < frames; f++ {
		sum := 0.0
		for c := 0; c < r.Channels; c++ {
			sum += float64(r.Samples[f*r.Channels+c])
		}
		out[f] = sum / float64(r.Channels) / 32768.0
	}
	return out
}
