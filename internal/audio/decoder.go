package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
)

const (
	FormatMP3  = "mp3"
	FormatWAV  = "wav"
	FormatOgg  = "ogg"
	FormatFLAC = "flac"
)

// Decoder turns an audio file into a canonical 48kHz stereo Recording.
type Decoder interface {
	Decode(ctx context.Context, path string) (Recording, error)
}

// DetectFormat sniffs the container format from the first bytes of a file.
// Returns "" when the format is not recognised.
func DetectFormat(header []byte) string {
	switch {
	case len(header) >= 12 && string(header[0:4]) == "RIFF" && string(header[8:12]) == "WAVE":
		return FormatWAV
	case len(header) >= 4 && string(header[0:4]) == "OggS":
		return FormatOgg
	case len(header) >= 4 && string(header[0:4]) == "fLaC":
		return FormatFLAC
	case len(header) >= 3 && string(header[0:3]) == "ID3":
		return FormatMP3
	case len(header) >= 2 && header[0] == 0xFF && header[1]&0xE0 == 0xE0 && (header[1]>>1)&0x3 != 0:
		// Frame sync with a non-reserved layer; layer 00 is ADTS AAC.
		return FormatMP3
	}
	return ""
}

// SniffFile reads the first bytes of path and returns its detected format.
func SniffFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	header := make([]byte, 12)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	return DetectFormat(header[:n]), nil
}

// Registry picks a decoder by sniffed format, falling back to a catch-all
// decoder (normally FFmpeg) for anything else.
type Registry struct {
	mu       sync.RWMutex
	codecs   map[string]Decoder
	fallback Decoder
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[string]Decoder)}
}

// NewDefaultRegistry registers the native MP3, WAV and Ogg Vorbis decoders
// with FFmpeg as the fallback. With preferFFmpeg set, every format goes
// through FFmpeg.
func NewDefaultRegistry(ffmpegPath string, preferFFmpeg bool) *Registry {
	r := NewRegistry()
	ff := &FFmpegDecoder{Path: ffmpegPath}
	r.SetFallback(ff)
	if preferFFmpeg {
		return r
	}
	r.Register(FormatMP3, MP3Decoder{})
	r.Register(FormatWAV, WAVDecoder{})
	r.Register(FormatOgg, VorbisDecoder{})
	return r
}

// Register associates a decoder with a format key.
func (r *Registry) Register(format string, d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[format] = d
}

// SetFallback sets the decoder used for formats with no registered decoder.
func (r *Registry) SetFallback(d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = d
}

// Get returns the decoder for format, or the fallback.
func (r *Registry) Get(format string) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.codecs[format]; ok {
		return d, true
	}
	if r.fallback != nil {
		return r.fallback, true
	}
	return nil, false
}

// Decode sniffs path and decodes it with the matching decoder.
func (r *Registry) Decode(ctx context.Context, path string) (Recording, error) {
	format, err := SniffFile(path)
	if err != nil {
		return Recording{}, fmt.Errorf("sniff %s: %w", path, err)
	}
	d, ok := r.Get(format)
	if !ok {
		return Recording{}, fmt.Errorf("%s (%q): %w", path, format, ErrUnsupportedFile)
	}
	rec, err := d.Decode(ctx, path)
	if err != nil {
		return Recording{}, err
	}
	if rec.Frames() == 0 {
		return Recording{}, fmt.Errorf("decode %s: %w", path, ErrEmptyRecording)
	}
	return rec, nil
}

// FFmpegDecoder runs FFmpeg to decode any supported file to raw PCM int16 samples.
type FFmpegDecoder struct {
	Path string
}

func (d *FFmpegDecoder) binary() string {
	if d.Path == "" {
		return "ffmpeg"
	}
	return d.Path
}

// Decode returns interleaved stereo samples at 48kHz.
func (d *FFmpegDecoder) Decode(ctx context.Context, path string) (Recording, error) {
	cmd := exec.CommandContext(ctx, d.binary(),
		"-i", path,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(SampleRate),
		"-ac", strconv.Itoa(Channels),
		"-loglevel", "error",
		"pipe:1",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return Recording{}, fmt.Errorf("ffmpeg decode %s: %w: %s", path, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return NewRecording(BytesToSamples(out)), nil
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// BytesToSamples converts little-endian bytes to int16 samples. A trailing
// odd byte is dropped.
func BytesToSamples(buf []byte) []int16 {
	samples := make([]int16, len(buf)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(buf[i*2 : i*2+2]))
	}
	return samples
}
