package extend

import (
	"fmt"

	"github.com/satindergrewal/loopstretch/internal/audio"
)

// ConcatFunc joins recordings end to end.
type ConcatFunc func(parts ...audio.Recording) (audio.Recording, error)

// Split cuts rec at the section boundaries, rounded to the nearest frame.
// The three parts share memory with rec.
func Split(rec audio.Recording, sec Section) (before, middle, after audio.Recording) {
	start := rec.FrameAt(sec.Start)
	end := rec.FrameAt(sec.End)
	n := rec.Frames()
	return rec.Slice(0, start), rec.Slice(start, end), rec.Slice(end, n)
}

// Assemble joins before, middle and after in that order.
func Assemble(concat ConcatFunc, before, middle, after audio.Recording) (audio.Recording, error) {
	if concat == nil {
		concat = audio.Concat
	}
	out, err := concat(before, middle, after)
	if err != nil {
		return audio.Recording{}, fmt.Errorf("%w: concat: %w", ErrEncodeDecode, err)
	}
	if want := before.Frames() + middle.Frames() + after.Frames(); out.Frames() != want {
		return audio.Recording{}, fmt.Errorf("%w: concat produced %d frames, want %d", ErrEncodeDecode, out.Frames(), want)
	}
	return out, nil
}
