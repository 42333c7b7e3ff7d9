package audio

import (
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	SampleRate     = 48000
	Channels       = 2
	BitDepth       = 16
	PacketDuration = 20 * time.Millisecond
	PacketSize     = 960                   // frames per 20ms packet
	PacketSamples  = PacketSize * Channels // total interleaved samples per packet
)

var (
	ErrFormatMismatch  = errors.New("recordings differ in sample rate or channel count")
	ErrEmptyRecording  = errors.New("recording has no samples")
	ErrUnsupportedFile = errors.New("unsupported audio format")
)

// Recording is interleaved signed 16-bit PCM. A frame is one sample per
// channel; all cut points are frame indices. Treat as immutable once built.
type Recording struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// NewRecording wraps samples in the canonical 48kHz stereo format.
func NewRecording(samples []int16) Recording {
	return Recording{Samples: samples, SampleRate: SampleRate, Channels: Channels}
}

// Frames returns the number of frames in the recording.
func (r Recording) Frames() int {
	if r.Channels <= 0 {
		return 0
	}
	return len(r.Samples) / r.Channels
}

// Seconds returns the length of the recording in seconds.
func (r Recording) Seconds() float64 {
	if r.SampleRate <= 0 {
		return 0
	}
	return float64(r.Frames()) / float64(r.SampleRate)
}

// FrameAt converts a time offset in seconds to the nearest frame index,
// clamped to [0, Frames()].
func (r Recording) FrameAt(seconds float64) int {
	f := int(math.Round(seconds * float64(r.SampleRate)))
	if f < 0 {
		return 0
	}
	if n := r.Frames(); f > n {
		return n
	}
	return f
}

// Slice returns frames [from, to). The result shares memory with r.
func (r Recording) Slice(from, to int) Recording {
	n := r.Frames()
	from = max(0, min(from, n))
	to = max(from, min(to, n))
	return Recording{
		Samples:    r.Samples[from*r.Channels : to*r.Channels],
		SampleRate: r.SampleRate,
		Channels:   r.Channels,
	}
}

// SameFormat reports whether two recordings can be joined without conversion.
func (r Recording) SameFormat(o Recording) bool {
	return r.SampleRate == o.SampleRate && r.Channels == o.Channels
}

// Concat joins recordings end to end into a freshly allocated recording.
func Concat(parts ...Recording) (Recording, error) {
	if len(parts) == 0 {
		return Recording{}, ErrEmptyRecording
	}
	total := 0
	for i, p := range parts {
		if !p.SameFormat(parts[0]) {
			return Recording{}, fmt.Errorf("concat part %d (%dHz/%dch vs %dHz/%dch): %w",
				i, p.SampleRate, p.Channels, parts[0].SampleRate, parts[0].Channels, ErrFormatMismatch)
		}
		total += len(p.Samples)
	}

	out := make([]int16, 0, total)
	for _, p := range parts {
		out = append(out, p.Samples...)
	}
	return Recording{Samples: out, SampleRate: parts[0].SampleRate, Channels: parts[0].Channels}, nil
}
