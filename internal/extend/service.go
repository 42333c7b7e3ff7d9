// Package extend stretches a section of a recording to a target length by
// looping it, or by replacing it with audio from a generation service, while
// keeping everything before and after the section intact.
package extend

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/satindergrewal/loopstretch/internal/audio"
	"github.com/satindergrewal/loopstretch/internal/beat"
	"github.com/satindergrewal/loopstretch/internal/generate"
	"github.com/satindergrewal/loopstretch/internal/metrics"
	"github.com/satindergrewal/loopstretch/internal/scratch"
	"github.com/satindergrewal/loopstretch/internal/tags"
)

// Decoder reads an audio file into a Recording.
type Decoder interface {
	Decode(ctx context.Context, path string) (audio.Recording, error)
}

// Encoder produces the output file bytes.
type Encoder interface {
	Encode(ctx context.Context, rec audio.Recording) ([]byte, error)
}

// Generator replaces a section with newly generated audio.
type Generator interface {
	Generate(ctx context.Context, req generate.Request) ([]byte, error)
}

// Prompter writes the text prompt sent along with a generation job.
type Prompter interface {
	Prompt(ctx context.Context, md tags.Metadata) string
}

// Mode selects how the middle section is extended.
type Mode string

const (
	ModeLoop     Mode = "loop"
	ModeGenerate Mode = "generate"
)

// ParseMode accepts "loop" (also the empty string) and "generate".
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeLoop:
		return ModeLoop, nil
	case ModeGenerate:
		return ModeGenerate, nil
	}
	return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, s)
}

// Request is one extension job.
type Request struct {
	Audio       []byte
	Filename    string
	Start       string  // "M:S"
	End         string  // "M:S"
	Target      float64 // seconds
	Mode        Mode
	SnapToBeats bool
	APIToken    string // generation only; overrides the configured token
	Prompt      string // generation only
}

// Result is a finished extension.
type Result struct {
	MP3       []byte
	Output    audio.Recording
	Mode      Mode
	Requested Section
	Section   Section
	Plan      Plan
	Beats     beat.Grid
	Metadata  tags.Metadata
}

// OutputSeconds is the length of the extended recording.
func (r *Result) OutputSeconds() float64 { return r.Output.Seconds() }

// Options configures an Extender.
type Options struct {
	MaxRepeatCount  int
	MaxTarget       float64       // seconds; 0 means unlimited
	SeamCrossfade   time.Duration // 0 disables seam smoothing
	ScratchDir      string
	DefaultAPIToken string
	Beat            beat.Options
}

// Extender runs extension requests. It holds no per-request state and is
// safe for concurrent use once configured.
type Extender struct {
	decoder  Decoder
	encoder  Encoder
	gen      Generator
	prompter Prompter
	concat   ConcatFunc
	detect   func(audio.Recording, beat.Options) beat.Grid
	opts     Options
}

// New creates an Extender. Generation is unavailable until SetGenerator is
// called.
func New(dec Decoder, enc Encoder, opts Options) *Extender {
	if opts.MaxRepeatCount <= 0 {
		opts.MaxRepeatCount = DefaultMaxRepeatCount
	}
	if opts.Beat.WindowSize == 0 {
		minGap := opts.Beat.MinGap
		opts.Beat = beat.DefaultOptions()
		if minGap > 0 {
			opts.Beat.MinGap = minGap
		}
	}
	return &Extender{
		decoder: dec,
		encoder: enc,
		concat:  audio.Concat,
		detect:  beat.Detect,
		opts:    opts,
	}
}

// SetGenerator enables generate mode.
func (e *Extender) SetGenerator(g Generator) { e.gen = g }

// SetPrompter sets the fallback prompt writer for generation jobs.
func (e *Extender) SetPrompter(p Prompter) { e.prompter = p }

// SetConcat replaces the concatenation step.
func (e *Extender) SetConcat(fn ConcatFunc) {
	if fn != nil {
		e.concat = fn
	}
}

// SetDetector replaces beat detection.
func (e *Extender) SetDetector(fn func(audio.Recording, beat.Options) beat.Grid) {
	if fn != nil {
		e.detect = fn
	}
}

// GenerationEnabled reports whether generate mode can be used.
func (e *Extender) GenerationEnabled() bool { return e.gen != nil }

// Options returns the effective configuration.
func (e *Extender) Options() Options { return e.opts }

// Extend runs one request. On any error nothing is returned but the error;
// scratch files are always removed.
func (e *Extender) Extend(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()
	res, err := e.extend(ctx, req)

	mode := "invalid"
	if m, perr := ParseMode(string(req.Mode)); perr == nil {
		mode = string(m)
	}
	if err != nil {
		metrics.ExtendRequests.WithLabelValues(mode, Kind(err)).Inc()
		return nil, err
	}
	metrics.ExtendRequests.WithLabelValues(mode, "ok").Inc()
	metrics.ExtendDuration.WithLabelValues(mode).Observe(time.Since(started).Seconds())
	return res, nil
}

func (e *Extender) extend(ctx context.Context, req Request) (*Result, error) {
	mode, err := e.validate(req)
	if err != nil {
		return nil, err
	}
	requested, err := ParseSection(req.Start, req.End)
	if err != nil {
		return nil, err
	}

	area, err := scratch.Acquire(e.opts.ScratchDir, "")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := area.Release(); err != nil {
			log.Printf("Scratch cleanup failed: %v", err)
		}
	}()

	md, err := tags.Read(bytes.NewReader(req.Audio))
	if err != nil {
		log.Printf("Tags unreadable, continuing without: %v", err)
	}

	if audio.DetectFormat(req.Audio) == audio.FormatMP3 {
		if probed, err := audio.ProbeMP3(bytes.NewReader(req.Audio)); err == nil && requested.Start >= probed.Seconds() {
			return nil, fmt.Errorf("%w: start %s is past the recording length %s",
				ErrDegenerateSection, FormatTimeMark(requested.Start), FormatTimeMark(probed.Seconds()))
		}
	}

	src, err := area.WriteFile("upload"+uploadExt(req.Filename), req.Audio)
	if err != nil {
		return nil, err
	}
	rec, err := e.decoder.Decode(ctx, src)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: decode upload: %w", ErrEncodeDecode, err)
	}
	if rec.Frames() == 0 {
		return nil, fmt.Errorf("%w: upload: %w", ErrEncodeDecode, audio.ErrEmptyRecording)
	}

	res := &Result{Mode: mode, Requested: requested, Section: requested, Metadata: md}
	if req.SnapToBeats {
		res.Beats = e.detect(rec, e.opts.Beat)
		if res.Section, err = SnapSection(res.Beats, requested); err != nil {
			return nil, err
		}
		log.Printf("Snapped %s to %s (%d beats)", requested, res.Section, len(res.Beats))
	}
	if err := res.Section.Validate(rec.Seconds()); err != nil {
		return nil, err
	}

	before, section, after := Split(rec, res.Section)
	if section.Frames() == 0 {
		return nil, fmt.Errorf("%w: section %s is shorter than one frame", ErrDegenerateSection, res.Section)
	}
	frames := TargetFrames(req.Target, rec.SampleRate)

	var middle audio.Recording
	switch mode {
	case ModeGenerate:
		middle, res.Plan, err = e.generateMiddle(ctx, area, req, res, section, frames)
	default:
		middle, res.Plan, err = e.loopMiddle(res.Section, req.Target, section, after, frames)
	}
	if err != nil {
		return nil, err
	}

	out, err := Assemble(e.concat, before, middle, after)
	if err != nil {
		return nil, err
	}
	mp3, err := e.encoder.Encode(ctx, out)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: encode output: %w", ErrEncodeDecode, err)
	}
	if mp3, err = tags.Apply(mp3, md); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodeDecode, err)
	}

	res.MP3 = mp3
	res.Output = out
	log.Printf("Extended %s: %s x%d -> %s total (%s)", displayName(req.Filename), res.Section,
		res.Plan.RepeatCount, FormatTimeMark(out.Seconds()), mode)
	return res, nil
}

func (e *Extender) validate(req Request) (Mode, error) {
	mode, err := ParseMode(string(req.Mode))
	if err != nil {
		return "", err
	}
	if len(req.Audio) == 0 {
		return "", fmt.Errorf("%w: no audio uploaded", ErrInvalidRequest)
	}
	if req.Target <= 0 || math.IsNaN(req.Target) || math.IsInf(req.Target, 0) {
		return "", fmt.Errorf("%w: target duration must be positive", ErrInvalidRequest)
	}
	if e.opts.MaxTarget > 0 && req.Target > e.opts.MaxTarget {
		return "", fmt.Errorf("%w: target %.0fs exceeds the %.0fs limit", ErrInvalidRequest, req.Target, e.opts.MaxTarget)
	}
	if mode == ModeGenerate {
		if e.gen == nil {
			return "", fmt.Errorf("%w: generation is not configured", ErrInvalidRequest)
		}
		if req.APIToken == "" && e.opts.DefaultAPIToken == "" {
			return "", fmt.Errorf("%w: generation needs an API token", ErrInvalidRequest)
		}
	}
	return mode, nil
}

func (e *Extender) loopMiddle(sec Section, target float64, section, after audio.Recording, frames int) (audio.Recording, Plan, error) {
	plan, err := PlanLoop(sec, target, e.opts.MaxRepeatCount)
	if err != nil {
		return audio.Recording{}, Plan{}, err
	}
	middle := LoopFit(section, frames)
	if e.opts.SeamCrossfade > 0 {
		seam := int(e.opts.SeamCrossfade.Seconds() * float64(section.SampleRate))
		SmoothSeams(middle, section.Frames(), after, seam)
	}
	return middle, plan, nil
}

func (e *Extender) generateMiddle(ctx context.Context, area *scratch.Area, req Request, res *Result, section audio.Recording, frames int) (audio.Recording, Plan, error) {
	wavPath := area.Path("section.wav")
	if err := audio.WriteWAVFile(wavPath, section); err != nil {
		return audio.Recording{}, Plan{}, fmt.Errorf("%w: %w", ErrEncodeDecode, err)
	}
	wav, err := os.ReadFile(wavPath)
	if err != nil {
		return audio.Recording{}, Plan{}, fmt.Errorf("read section wav: %w", err)
	}

	prompt := req.Prompt
	if prompt == "" && e.prompter != nil {
		prompt = e.prompter.Prompt(ctx, res.Metadata)
	}
	token := req.APIToken
	if token == "" {
		token = e.opts.DefaultAPIToken
	}

	generated, err := e.gen.Generate(ctx, generate.Request{
		Audio:    wav,
		Duration: int(math.Ceil(req.Target)),
		Prompt:   prompt,
		Token:    token,
	})
	if err != nil {
		return audio.Recording{}, Plan{}, err
	}

	genPath, err := area.WriteFile("generated", generated)
	if err != nil {
		return audio.Recording{}, Plan{}, err
	}
	rec, err := e.decoder.Decode(ctx, genPath)
	if err != nil {
		return audio.Recording{}, Plan{}, fmt.Errorf("%w: decode generated audio: %w", ErrEncodeDecode, err)
	}
	if rec.Frames() == 0 {
		return audio.Recording{}, Plan{}, fmt.Errorf("%w: generated audio: %w", ErrEncodeDecode, audio.ErrEmptyRecording)
	}

	plan := Plan{
		Before:      Section{Start: 0, End: res.Section.Start},
		LoopUnit:    Section{Start: 0, End: rec.Seconds()},
		RepeatCount: max(1, int(math.Ceil(float64(frames)/float64(rec.Frames())))),
		Target:      req.Target,
		TrimSeconds: math.Max(0, rec.Seconds()-req.Target),
	}
	return FitToTarget(rec, frames), plan, nil
}

// uploadExt keeps a short alphanumeric extension from the uploaded filename.
func uploadExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}

func displayName(name string) string {
	if name == "" {
		return "upload"
	}
	return filepath.Base(name)
}
