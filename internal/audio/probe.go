package audio

import (
	"fmt"
	"io"
	"time"

	tcmp3 "github.com/tcolgate/mp3"
)

// ProbeMP3 sums MP3 frame durations from the frame headers without decoding
// any audio. It is cheap enough to validate time marks before a full decode.
func ProbeMP3(r io.Reader) (time.Duration, error) {
	var (
		dur     time.Duration
		dec     = tcmp3.NewDecoder(r)
		frame   tcmp3.Frame
		skipped int
		frames  int
	)

	for {
		if err := dec.Decode(&frame, &skipped); err != nil {
			// A truncated final frame is common in uploads.
			if err == io.EOF || (err == io.ErrUnexpectedEOF && frames > 0) {
				break
			}
			return 0, fmt.Errorf("mp3 probe: %w", err)
		}
		dur += frame.Duration()
		frames++
	}
	if frames == 0 {
		return 0, fmt.Errorf("mp3 probe: %w", ErrEmptyRecording)
	}
	return dur, nil
}
