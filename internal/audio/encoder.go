package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Encoder turns a Recording into an encoded byte stream.
type Encoder interface {
	Encode(ctx context.Context, rec Recording) ([]byte, error)
}

// MP3Encoder pipes PCM through FFmpeg's libmp3lame encoder.
type MP3Encoder struct {
	Path    string
	Bitrate string // e.g. "192k"
}

// Encode returns the MP3 bytes for rec. The output carries no ID3 tag.
func (e *MP3Encoder) Encode(ctx context.Context, rec Recording) ([]byte, error) {
	if rec.Frames() == 0 {
		return nil, ErrEmptyRecording
	}
	path := e.Path
	if path == "" {
		path = "ffmpeg"
	}
	bitrate := e.Bitrate
	if bitrate == "" {
		bitrate = "192k"
	}

	// FFmpeg: PCM stdin -> MP3 stdout
	cmd := exec.CommandContext(ctx, path,
		"-f", "s16le",
		"-ar", strconv.Itoa(rec.SampleRate),
		"-ac", strconv.Itoa(rec.Channels),
		"-i", "pipe:0",
		"-codec:a", "libmp3lame",
		"-b:a", bitrate,
		"-id3v2_version", "0",
		"-f", "mp3",
		"-loglevel", "error",
		"pipe:1",
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(SamplesToBytes(rec.Samples))
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg encode: %w: %s", err, bytes.TrimSpace(stderr.Bytes()))
	}
	return stdout.Bytes(), nil
}

// WriteWAV writes rec as 16-bit PCM WAV. go-audio/wav needs to seek back to
// patch the header, so w is usually an *os.File.
func WriteWAV(w io.WriteSeeker, rec Recording) error {
	enc := wav.NewEncoder(w, rec.SampleRate, BitDepth, rec.Channels, 1)

	data := make([]int, len(rec.Samples))
	for i, s := range rec.Samples {
		data[i] = int(s)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: rec.Channels, SampleRate: rec.SampleRate},
		Data:           data,
		SourceBitDepth: BitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("wav write: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("wav close: %w", err)
	}
	return nil
}

// WriteWAVFile writes rec to path as a WAV file.
func WriteWAVFile(path string, rec Recording) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteWAV(f, rec); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
