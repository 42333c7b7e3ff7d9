// Package prompt writes the text description sent with a generation job.
package prompt

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/satindergrewal/loopstretch/internal/tags"
)

// captions describe the usual texture of a genre. Keys are lowercase.
var captions = map[string]string{
	"ambient":       "slow evolving synth pads, soft reverb tails, no percussion, calm and spacious",
	"chillwave":     "hazy detuned synths, soft drum machine, warm tape wobble, relaxed tempo",
	"lofi hip hop":  "dusty boom bap drums, mellow jazz piano chords, vinyl crackle, warm bass",
	"hip hop":       "punchy drums, deep bass, sampled chords, steady head-nod groove",
	"jazz":          "walking upright bass, brushed drums, piano comping, medium swing",
	"bossa nova":    "nylon guitar, soft brushed percussion, upright bass, gentle Brazilian rhythm",
	"folk":          "fingerpicked acoustic guitar, light percussion, warm double bass, intimate",
	"classical":     "string ensemble with piano, flowing phrases, moderate tempo",
	"soundtrack":    "orchestral strings and brass, timpani swells, building intensity",
	"synthwave":     "analog synth arpeggios, gated drums, pulsing bass, 1980s energy",
	"electronic":    "four on the floor kick, crisp hats, layered synth pads, driving groove",
	"drum and bass": "fast breakbeats, rolling sub bass, atmospheric pads, 174 BPM",
	"funk":          "syncopated guitar scratches, slap bass, tight horn stabs, danceable groove",
	"disco":         "four on the floor drums, octave bass, string stabs, bright and danceable",
	"indie":         "jangly guitars, melodic bass, driving drums, bright reverb",
	"rock":          "distorted guitar riffs, solid drums, driving bass, energetic",
	"pop":           "polished drums, bright synths and guitars, catchy and upbeat",
	"metal":         "heavy palm-muted guitars, double kick drums, aggressive and tight",
	"reggae":        "offbeat guitar skank, deep bass, one drop drums, laid back",
	"blues":         "shuffle rhythm, bluesy electric guitar, walking bass, warm organ",
	"country":       "twangy guitar, steady shuffle drums, pedal steel, warm bass",
}

// Caption returns the stock description for genre. Matching ignores case and
// falls back to the longest known genre contained in the tag ("Alternative
// Rock" matches "rock"). An unknown genre gets a generic description built
// from its name; an empty genre returns "".
func Caption(genre string) string {
	g := strings.ToLower(strings.TrimSpace(genre))
	if g == "" {
		return ""
	}
	if c, ok := captions[g]; ok {
		return c
	}
	best := ""
	for key := range captions {
		if strings.Contains(g, key) && len(key) > len(best) {
			best = key
		}
	}
	if best != "" {
		return captions[best]
	}
	return g + " style, consistent instrumentation and tempo"
}

// LLM is the subset of the Ollama client the writer needs.
type LLM interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Writer produces generation prompts, preferring an LLM when one is
// configured and falling back to stock captions.
type Writer struct {
	llm LLM
}

// NewWriter creates a Writer. llm may be nil.
func NewWriter(llm LLM) *Writer {
	return &Writer{llm: llm}
}

const systemPrompt = `You write prompts for a music model that continues an existing recording.

Given what is known about the source track, output ONE sentence of 10-30 words describing how the continuation should sound: instruments, tempo, mood, production.

Rules:
- Describe sound only. No titles, artist names or lyrics.
- Keep the style of the source; do not suggest a change of genre.
- Output only the sentence. No quotes, no preamble.

/no_think`

// Prompt returns a prompt for md, or "" when nothing is known about the
// source.
func (w *Writer) Prompt(ctx context.Context, md tags.Metadata) string {
	if w.llm != nil && !md.Empty() {
		reply, err := w.llm.Generate(ctx, systemPrompt, describe(md))
		if err != nil {
			log.Printf("LLM prompt failed: %v", err)
		} else if p := Clean(reply); len(p) >= 15 && len(p) <= 400 {
			log.Printf("LLM prompt: %s", p)
			return p
		} else {
			log.Printf("LLM returned unusable prompt: %q", reply)
		}
	}
	return Caption(md.Genre)
}

func describe(md tags.Metadata) string {
	var b strings.Builder
	if md.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n", md.Title)
	}
	if md.Artist != "" {
		fmt.Fprintf(&b, "Artist: %s\n", md.Artist)
	}
	if md.Album != "" {
		fmt.Fprintf(&b, "Album: %s\n", md.Album)
	}
	if md.Genre != "" {
		fmt.Fprintf(&b, "Genre: %s\n", md.Genre)
	}
	if md.Year != 0 {
		fmt.Fprintf(&b, "Year: %d\n", md.Year)
	}
	return strings.TrimSpace(b.String())
}

// Clean strips common LLM artifacts: leaked thinking blocks, wrapping
// quotes and preambles.
func Clean(s string) string {
	s = strings.TrimSpace(s)

	// Qwen-style thinking leakage
	if idx := strings.Index(s, "</think>"); idx >= 0 {
		s = strings.TrimSpace(s[idx+len("</think>"):])
	}

	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	lower := strings.ToLower(s)
	for _, p := range []string{"here's a prompt:", "here is a prompt:", "prompt:"} {
		if strings.HasPrefix(lower, p) {
			s = strings.TrimSpace(s[len(p):])
			break
		}
	}
	return strings.TrimSpace(s)
}
