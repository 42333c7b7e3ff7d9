package extend

import (
	"math"

	"github.com/satindergrewal/loopstretch/internal/audio"
)

// TargetFrames converts a target length in seconds to a frame count at rate.
func TargetFrames(target float64, rate int) int {
	return int(math.Round(target * float64(rate)))
}

// LoopFit repeats unit end to end until exactly frames frames are filled,
// cutting the last copy short at the frame. An empty unit yields silence.
func LoopFit(unit audio.Recording, frames int) audio.Recording {
	out := audio.Recording{
		Samples:    make([]int16, max(0, frames)*unit.Channels),
		SampleRate: unit.SampleRate,
		Channels:   unit.Channels,
	}
	if len(unit.Samples) == 0 {
		return out
	}
	for off := 0; off < len(out.Samples); off += len(unit.Samples) {
		copy(out.Samples[off:], unit.Samples)
	}
	return out
}

// Truncate returns the first frames frames of r. A recording already at (or
// under) that length is returned unchanged, so Truncate is idempotent.
func Truncate(r audio.Recording, frames int) audio.Recording {
	if frames >= r.Frames() {
		return r
	}
	return r.Slice(0, frames)
}

// SmoothSeams blends the head of every repeat after the first from the
// continuation (the audio that originally followed the section) into the
// loop, over at most seamFrames frames. looped is modified in place; its
// length never changes.
func SmoothSeams(looped audio.Recording, unitFrames int, continuation audio.Recording, seamFrames int) {
	ch := looped.Channels
	if unitFrames <= 0 || seamFrames <= 0 || ch <= 0 || !looped.SameFormat(continuation) {
		return
	}
	n := min(seamFrames, unitFrames, continuation.Frames())
	if n <= 0 {
		return
	}

	total := looped.Frames()
	for seam := unitFrames; seam < total; seam += unitFrames {
		span := min(n, total-seam)
		head := looped.Samples[seam*ch : (seam+span)*ch]
		blended := audio.CrossfadeRamp(continuation.Samples[:span*ch], head, ch)
		copy(head, blended)
	}
}

// FitToTarget makes rec exactly frames long: longer audio is cut, shorter
// audio is looped.
func FitToTarget(rec audio.Recording, frames int) audio.Recording {
	if rec.Frames() >= frames {
		return Truncate(rec, frames)
	}
	return LoopFit(rec, frames)
}
