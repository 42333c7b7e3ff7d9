package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

var (
	ErrNotWavFile     = errors.New("not a WAV file")
	ErrUnsupportedWav = errors.New("unsupported WAV bit depth")
)

// mp3Reader is the subset of gomp3.Decoder used here, so tests can fake it.
type mp3Reader interface {
	io.Reader
	SampleRate() int
}

// MP3Decoder decodes MP3 in-process with go-mp3. go-mp3 always yields
// 16-bit little-endian stereo.
type MP3Decoder struct{}

func (MP3Decoder) Decode(ctx context.Context, path string) (Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return Recording{}, err
	}
	defer f.Close()

	dec, err := gomp3.NewDecoder(f)
	if err != nil {
		return Recording{}, fmt.Errorf("mp3 decode %s: %w", path, err)
	}
	return decodeMP3Stream(ctx, dec)
}

// DecodeMP3Bytes decodes an in-memory MP3 file.
func DecodeMP3Bytes(ctx context.Context, data []byte) (Recording, error) {
	dec, err := gomp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return Recording{}, fmt.Errorf("mp3 decode: %w", err)
	}
	return decodeMP3Stream(ctx, dec)
}

func decodeMP3Stream(ctx context.Context, dec mp3Reader) (Recording, error) {
	var pcm []byte
	buf := make([]byte, 64*1024)
	for {
		if err := ctx.Err(); err != nil {
			return Recording{}, err
		}
		n, err := dec.Read(buf)
		pcm = append(pcm, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			return Recording{}, fmt.Errorf("mp3 read: %w", err)
		}
	}
	return Normalize(BytesToSamples(pcm), dec.SampleRate(), 2), nil
}

// WAVDecoder decodes PCM WAV files with go-audio/wav.
type WAVDecoder struct{}

func (WAVDecoder) Decode(_ context.Context, path string) (Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return Recording{}, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return Recording{}, fmt.Errorf("%s: %w", path, ErrNotWavFile)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return Recording{}, fmt.Errorf("wav decode %s: %w", path, err)
	}

	samples, err := intBufferToInt16(buf, int(d.BitDepth))
	if err != nil {
		return Recording{}, fmt.Errorf("%s: %w", path, err)
	}
	return Normalize(samples, int(d.SampleRate), int(d.NumChans)), nil
}

func intBufferToInt16(buf *goaudio.IntBuffer, bitDepth int) ([]int16, error) {
	out := make([]int16, len(buf.Data))
	switch bitDepth {
	case 8:
		for i, v := range buf.Data {
			out[i] = int16((v - 128) << 8)
		}
	case 16:
		for i, v := range buf.Data {
			out[i] = int16(v)
		}
	case 24:
		for i, v := range buf.Data {
			out[i] = int16(v >> 8)
		}
	case 32:
		for i, v := range buf.Data {
			out[i] = int16(v >> 16)
		}
	default:
		return nil, fmt.Errorf("%d-bit: %w", bitDepth, ErrUnsupportedWav)
	}
	return out, nil
}

// VorbisDecoder decodes Ogg Vorbis files with oggvorbis.
type VorbisDecoder struct{}

func (VorbisDecoder) Decode(ctx context.Context, path string) (Recording, error) {
	f, err := os.Open(path)
	if err != nil {
		return Recording{}, err
	}
	defer f.Close()

	dec, err := oggvorbis.NewReader(f)
	if err != nil {
		return Recording{}, fmt.Errorf("vorbis decode %s: %w", path, err)
	}

	channels := dec.Channels()
	var samples []int16
	frameBuf := make([]float32, 4096*channels)
	for {
		if err := ctx.Err(); err != nil {
			return Recording{}, err
		}
		n, err := dec.Read(frameBuf)
		for _, v := range frameBuf[:n] {
			samples = append(samples, Float32ToInt16(v))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return Recording{}, fmt.Errorf("vorbis read %s: %w", path, err)
		}
	}
	return Normalize(samples, dec.SampleRate(), channels), nil
}
