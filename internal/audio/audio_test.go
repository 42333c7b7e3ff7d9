package audio

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// --- Constants ---

func TestConstants(t *testing.T) {
	// 48kHz * 20ms = 960 frames per packet
	if got := SampleRate * int(PacketDuration/time.Millisecond) / 1000; got != PacketSize {
		t.Errorf("PacketSize mismatch: want %d, got %d", got, PacketSize)
	}
	if PacketSamples != PacketSize*Channels {
		t.Errorf("PacketSamples = %d, want %d", PacketSamples, PacketSize*Channels)
	}
}

// --- Recording ---

func TestRecordingFramesAndSeconds(t *testing.T) {
	r := Recording{Samples: make([]int16, 2000), SampleRate: 1000, Channels: 2}
	if r.Frames() != 1000 {
		t.Errorf("Frames() = %d, want 1000", r.Frames())
	}
	if r.Seconds() != 1 {
		t.Errorf("Seconds() = %v, want 1", r.Seconds())
	}
}

func TestFrameAtClamps(t *testing.T) {
	r := Recording{Samples: make([]int16, 100), SampleRate: 10, Channels: 1}
	tests := []struct {
		seconds float64
		want    int
	}{
		{-1, 0},
		{0, 0},
		{2.5, 25},
		{2.54, 25},
		{2.56, 26},
		{10, 100},
		{20, 100},
	}
	for _, tt := range tests {
		if got := r.FrameAt(tt.seconds); got != tt.want {
			t.Errorf("FrameAt(%v) = %d, want %d", tt.seconds, got, tt.want)
		}
	}
}

func TestSliceSharesAndClamps(t *testing.T) {
	r := Recording{Samples: []int16{1, 2, 3, 4, 5, 6, 7, 8}, SampleRate: 4, Channels: 2}
	s := r.Slice(1, 3)
	want := []int16{3, 4, 5, 6}
	if len(s.Samples) != len(want) {
		t.Fatalf("Slice(1,3) len = %d, want %d", len(s.Samples), len(want))
	}
	for i, v := range want {
		if s.Samples[i] != v {
			t.Errorf("Slice(1,3)[%d] = %d, want %d", i, s.Samples[i], v)
		}
	}
	if got := r.Slice(3, 99).Frames(); got != 1 {
		t.Errorf("Slice(3,99).Frames() = %d, want 1", got)
	}
	if got := r.Slice(3, 1).Frames(); got != 0 {
		t.Errorf("Slice(3,1).Frames() = %d, want 0", got)
	}
}

func TestConcat(t *testing.T) {
	a := Recording{Samples: []int16{1, 2}, SampleRate: 10, Channels: 1}
	b := Recording{Samples: []int16{3}, SampleRate: 10, Channels: 1}
	c := Recording{Samples: []int16{}, SampleRate: 10, Channels: 1}

	got, err := Concat(a, c, b)
	if err != nil {
		t.Fatalf("Concat: %v", err)
	}
	want := []int16{1, 2, 3}
	if len(got.Samples) != len(want) {
		t.Fatalf("Concat len = %d, want %d", len(got.Samples), len(want))
	}
	for i, v := range want {
		if got.Samples[i] != v {
			t.Errorf("Concat[%d] = %d, want %d", i, got.Samples[i], v)
		}
	}

	// Result must not alias the inputs
	got.Samples[0] = 99
	if a.Samples[0] != 1 {
		t.Error("Concat result aliases its first input")
	}
}

func TestConcatFormatMismatch(t *testing.T) {
	a := Recording{Samples: []int16{1}, SampleRate: 10, Channels: 1}
	b := Recording{Samples: []int16{1, 2}, SampleRate: 10, Channels: 2}
	if _, err := Concat(a, b); !errors.Is(err, ErrFormatMismatch) {
		t.Errorf("Concat mismatched formats: err = %v, want ErrFormatMismatch", err)
	}
	if _, err := Concat(); !errors.Is(err, ErrEmptyRecording) {
		t.Errorf("Concat(): err = %v, want ErrEmptyRecording", err)
	}
}

// --- Smoothstep ---

func TestSmoothstepBoundaries(t *testing.T) {
	tests := []struct {
		input float64
		want  float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.5, 0.5},
		{1, 1},
		{1.5, 1},
	}
	for _, tt := range tests {
		got := Smoothstep(tt.input)
		if got != tt.want {
			t.Errorf("Smoothstep(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestSmoothstepMonotonic(t *testing.T) {
	prev := 0.0
	for i := 1; i <= 100; i++ {
		x := float64(i) / 100.0
		val := Smoothstep(x)
		if val < prev {
			t.Errorf("Smoothstep not monotonic: f(%v)=%v < f(%v)=%v", x, val, float64(i-1)/100.0, prev)
		}
		prev = val
	}
}

// --- Crossfade ---

func TestCrossfadeAllOutgoing(t *testing.T) {
	out := []int16{1000, -1000, 500, -500}
	in := []int16{2000, -2000, 1500, -1500}
	result := CrossfadeFrames(out, in, 0)
	for i, v := range result {
		if v != out[i] {
			t.Errorf("At progress=0 sample[%d] = %d, want %d (all outgoing)", i, v, out[i])
		}
	}
}

func TestCrossfadeAllIncoming(t *testing.T) {
	out := []int16{1000, -1000, 500, -500}
	in := []int16{2000, -2000, 1500, -1500}
	result := CrossfadeFrames(out, in, 1)
	for i, v := range result {
		if v != in[i] {
			t.Errorf("At progress=1 sample[%d] = %d, want %d (all incoming)", i, v, in[i])
		}
	}
}

func TestCrossfadeClipping(t *testing.T) {
	out := []int16{32767, -32768}
	in := []int16{32767, -32768}
	result := CrossfadeFrames(out, in, 0.5)
	if result[0] != 32767 {
		t.Errorf("Max values at midpoint: got %d, want 32767", result[0])
	}
	if result[1] != -32768 {
		t.Errorf("Min values at midpoint: got %d, want -32768", result[1])
	}
}

func TestCrossfadeRamp(t *testing.T) {
	// 4 stereo frames
	out := []int16{1000, 1000, 1000, 1000, 1000, 1000, 1000, 1000}
	in := []int16{0, 0, 0, 0, 0, 0, 0, 0, 7, 7}
	result := CrossfadeRamp(out, in, 2)
	if len(result) != len(in) {
		t.Fatalf("CrossfadeRamp len = %d, want %d", len(result), len(in))
	}
	if result[0] != 1000 || result[1] != 1000 {
		t.Errorf("First frame = %v, want all outgoing", result[:2])
	}
	for f := 1; f < 4; f++ {
		if result[f*2] >= result[(f-1)*2] {
			t.Errorf("Ramp not decreasing toward incoming at frame %d: %d >= %d", f, result[f*2], result[(f-1)*2])
		}
	}
	// Samples past the outgoing buffer come straight from incoming
	if result[8] != 7 || result[9] != 7 {
		t.Errorf("Tail = %v, want incoming [7 7]", result[8:])
	}
}

// --- SamplesToBytes / BytesToSamples ---

func TestSamplesToBytes(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 256}
	buf := SamplesToBytes(samples)
	if len(buf) != len(samples)*2 {
		t.Fatalf("SamplesToBytes length = %d, want %d", len(buf), len(samples)*2)
	}

	// 256 = 0x0100 -> bytes [0x00, 0x01]
	idx := 5 * 2
	if buf[idx] != 0x00 || buf[idx+1] != 0x01 {
		t.Errorf("Sample 256 encoded as [%02x, %02x], want [00, 01]", buf[idx], buf[idx+1])
	}
}

func TestBytesToSamplesDropsOddByte(t *testing.T) {
	got := BytesToSamples([]byte{0x00, 0x01, 0xFF})
	if len(got) != 1 || got[0] != 256 {
		t.Errorf("BytesToSamples = %v, want [256]", got)
	}
}

// --- Resample / channel mapping ---

func TestResampleLength(t *testing.T) {
	tests := []struct {
		frames, from, to, want int
	}{
		{44100, 44100, 48000, 48000},
		{48000, 48000, 24000, 24000},
		{100, 8000, 16000, 200},
		{0, 44100, 48000, 0},
	}
	for _, tt := range tests {
		got := Resample(make([]int16, tt.frames*2), 2, tt.from, tt.to)
		if len(got)/2 != tt.want {
			t.Errorf("Resample(%d frames, %d->%d) = %d frames, want %d", tt.frames, tt.from, tt.to, len(got)/2, tt.want)
		}
	}
}

func TestResampleConstantSignal(t *testing.T) {
	in := make([]int16, 200)
	for i := range in {
		in[i] = 1234
	}
	out := Resample(in, 1, 100, 300)
	for i, v := range out {
		if v != 1234 {
			t.Fatalf("Resample constant: sample[%d] = %d, want 1234", i, v)
		}
	}
}

func TestToStereo(t *testing.T) {
	mono := ToStereo([]int16{1, 2}, 1)
	if want := []int16{1, 1, 2, 2}; !equalSamples(mono, want) {
		t.Errorf("ToStereo(mono) = %v, want %v", mono, want)
	}
	quad := ToStereo([]int16{1, 2, 3, 4, 5, 6, 7, 8}, 4)
	if want := []int16{1, 2, 5, 6}; !equalSamples(quad, want) {
		t.Errorf("ToStereo(4ch) = %v, want %v", quad, want)
	}
}

func TestNormalizeProducesCanonicalFormat(t *testing.T) {
	rec := Normalize(make([]int16, 22050), 22050, 1)
	if rec.SampleRate != SampleRate || rec.Channels != Channels {
		t.Errorf("Normalize format = %dHz/%dch, want %dHz/%dch", rec.SampleRate, rec.Channels, SampleRate, Channels)
	}
	if rec.Frames() != SampleRate {
		t.Errorf("Normalize 1s mono 22.05kHz -> %d frames, want %d", rec.Frames(), SampleRate)
	}
}

func TestMono(t *testing.T) {
	r := Recording{Samples: []int16{16384, 0, -32768, -32768}, SampleRate: 10, Channels: 2}
	m := Mono(r)
	if len(m) != 2 || m[0] != 0.25 || m[1] != -1 {
		t.Errorf("Mono = %v, want [0.25 -1]", m)
	}
}

// --- Format sniffing / decoders ---

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		header []byte
		want   string
	}{
		{[]byte("RIFF\x00\x00\x00\x00WAVE"), FormatWAV},
		{[]byte("OggS\x00\x02"), FormatOgg},
		{[]byte("fLaC\x00"), FormatFLAC},
		{[]byte("ID3\x04\x00"), FormatMP3},
		{[]byte{0xFF, 0xFB, 0x90, 0x00}, FormatMP3},
		{[]byte{0xFF, 0xF1, 0x50, 0x80}, ""}, // ADTS AAC
		{[]byte{0xFF, 0xF9, 0x50, 0x80}, ""},
		{[]byte("hello"), ""},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := DetectFormat(tt.header); got != tt.want {
			t.Errorf("DetectFormat(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestWAVWriteThenDecode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	src := NewRecording(make([]int16, PacketSamples*5))
	for i := range src.Samples {
		src.Samples[i] = int16(i%200 - 100)
	}
	if err := WriteWAVFile(path, src); err != nil {
		t.Fatalf("WriteWAVFile: %v", err)
	}

	format, err := SniffFile(path)
	if err != nil || format != FormatWAV {
		t.Fatalf("SniffFile = %q, %v; want wav", format, err)
	}

	got, err := WAVDecoder{}.Decode(context.Background(), path)
	if err != nil {
		t.Fatalf("WAVDecoder.Decode: %v", err)
	}
	if !equalSamples(got.Samples, src.Samples) {
		t.Errorf("decoded WAV differs from written samples (len %d vs %d)", len(got.Samples), len(src.Samples))
	}
}

type fakeMP3 struct {
	rate int
	data []byte
	off  int
}

func (f *fakeMP3) SampleRate() int { return f.rate }

func (f *fakeMP3) Read(p []byte) (int, error) {
	if f.off >= len(f.data) {
		return 0, io.EOF
	}
	n := copy(p, f.data[f.off:])
	f.off += n
	return n, nil
}

func TestDecodeMP3StreamNormalizes(t *testing.T) {
	pcm := SamplesToBytes(make([]int16, 44100*2)) // 1s stereo at 44.1kHz
	rec, err := decodeMP3Stream(context.Background(), &fakeMP3{rate: 44100, data: pcm})
	if err != nil {
		t.Fatalf("decodeMP3Stream: %v", err)
	}
	if rec.SampleRate != SampleRate || rec.Frames() != SampleRate {
		t.Errorf("decoded = %d frames at %dHz, want %d at %dHz", rec.Frames(), rec.SampleRate, SampleRate, SampleRate)
	}
}

type stubDecoder struct {
	rec   Recording
	calls int
}

func (s *stubDecoder) Decode(context.Context, string) (Recording, error) {
	s.calls++
	return s.rec, nil
}

func TestRegistryUsesFallbackForUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mystery.bin")
	if err := os.WriteFile(path, []byte("not audio at all"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry()
	if _, err := r.Decode(context.Background(), path); !errors.Is(err, ErrUnsupportedFile) {
		t.Errorf("Decode without fallback: err = %v, want ErrUnsupportedFile", err)
	}

	fb := &stubDecoder{rec: NewRecording(make([]int16, 4))}
	r.SetFallback(fb)
	if _, err := r.Decode(context.Background(), path); err != nil {
		t.Fatalf("Decode with fallback: %v", err)
	}
	if fb.calls != 1 {
		t.Errorf("fallback calls = %d, want 1", fb.calls)
	}
}

func TestRegistryRoutesAACToFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song.aac")
	if err := os.WriteFile(path, []byte{0xFF, 0xF1, 0x50, 0x80, 0x01, 0x7F, 0xFC}, 0o644); err != nil {
		t.Fatal(err)
	}
	mp3 := &stubDecoder{rec: NewRecording(make([]int16, 4))}
	fb := &stubDecoder{rec: NewRecording(make([]int16, 4))}
	r := NewRegistry()
	r.Register(FormatMP3, mp3)
	r.SetFallback(fb)

	if _, err := r.Decode(context.Background(), path); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if mp3.calls != 0 || fb.calls != 1 {
		t.Errorf("mp3/fallback calls = %d/%d, want 0/1", mp3.calls, fb.calls)
	}
}

func TestRegistryRejectsEmptyDecode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.wav")
	if err := os.WriteFile(path, []byte("RIFF\x00\x00\x00\x00WAVE"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := NewRegistry()
	r.Register(FormatWAV, &stubDecoder{rec: NewRecording(nil)})
	if _, err := r.Decode(context.Background(), path); !errors.Is(err, ErrEmptyRecording) {
		t.Errorf("Decode empty: err = %v, want ErrEmptyRecording", err)
	}
}

func TestDefaultRegistryPreferFFmpeg(t *testing.T) {
	r := NewDefaultRegistry("ffmpeg", true)
	d, ok := r.Get(FormatMP3)
	if !ok {
		t.Fatal("Get(mp3) found no decoder")
	}
	if _, isFF := d.(*FFmpegDecoder); !isFF {
		t.Errorf("Get(mp3) = %T, want *FFmpegDecoder", d)
	}

	r = NewDefaultRegistry("ffmpeg", false)
	d, _ = r.Get(FormatMP3)
	if _, isNative := d.(MP3Decoder); !isNative {
		t.Errorf("Get(mp3) = %T, want MP3Decoder", d)
	}
}

func equalSamples(a, b []int16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
