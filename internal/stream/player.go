package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/satindergrewal/loopstretch/internal/audio"
)

// Packets splits rec into 20ms packets of audio.PacketSamples samples. The
// last packet is padded with silence. rec must be 48kHz stereo.
func Packets(rec audio.Recording) ([][]int16, error) {
	if rec.SampleRate != audio.SampleRate || rec.Channels != audio.Channels {
		return nil, fmt.Errorf("packetize %dHz/%dch: %w", rec.SampleRate, rec.Channels, audio.ErrFormatMismatch)
	}
	n := (len(rec.Samples) + audio.PacketSamples - 1) / audio.PacketSamples
	packets := make([][]int16, 0, n)
	for off := 0; off < len(rec.Samples); off += audio.PacketSamples {
		end := off + audio.PacketSamples
		if end <= len(rec.Samples) {
			packets = append(packets, rec.Samples[off:end])
			continue
		}
		last := make([]int16, audio.PacketSamples)
		copy(last, rec.Samples[off:])
		packets = append(packets, last)
	}
	return packets, nil
}

// Pace hands packets to send one per interval, in real time. It returns the
// number of packets sent and stops early on a send error or cancellation.
func Pace(ctx context.Context, packets [][]int16, interval time.Duration, send func([]int16) error) (int, error) {
	if interval <= 0 {
		interval = audio.PacketDuration
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for i, p := range packets {
		select {
		case <-ctx.Done():
			return i, ctx.Err()
		case <-ticker.C:
		}
		if err := send(p); err != nil {
			return i, err
		}
	}
	return len(packets), nil
}
