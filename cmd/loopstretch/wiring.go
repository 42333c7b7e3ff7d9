package main

import (
	"context"
	"log"
	"time"

	"github.com/satindergrewal/loopstretch/internal/audio"
	"github.com/satindergrewal/loopstretch/internal/beat"
	"github.com/satindergrewal/loopstretch/internal/config"
	"github.com/satindergrewal/loopstretch/internal/extend"
	"github.com/satindergrewal/loopstretch/internal/generate"
	"github.com/satindergrewal/loopstretch/internal/ollama"
	"github.com/satindergrewal/loopstretch/internal/prompt"
)

func newRegistry(cfg config.Config) *audio.Registry {
	return audio.NewDefaultRegistry(cfg.FFmpegPath, cfg.Decoder == "ffmpeg")
}

func beatOptions(cfg config.Config) beat.Options {
	opts := beat.DefaultOptions()
	if cfg.BeatMinGap > 0 {
		opts.MinGap = cfg.BeatMinGap
	}
	return opts
}

// buildExtender wires decoders, the encoder and the optional generation and
// prompt services from cfg.
func buildExtender(ctx context.Context, cfg config.Config) *extend.Extender {
	ext := extend.New(
		newRegistry(cfg),
		&audio.MP3Encoder{Path: cfg.FFmpegPath, Bitrate: cfg.MP3Bitrate},
		extend.Options{
			MaxRepeatCount:  cfg.MaxRepeatCount,
			MaxTarget:       cfg.MaxTarget,
			SeamCrossfade:   cfg.SeamCrossfade,
			ScratchDir:      cfg.ScratchDir,
			DefaultAPIToken: cfg.GenerationAPIToken,
			Beat:            beatOptions(cfg),
		},
	)

	if cfg.GenerationEnabled() {
		client := generate.NewClient(cfg.GenerationAPIURL, cfg.GenerationAPIToken, cfg.GenerationModelVersion)
		client.SetPolling(cfg.GenerationPollInterval, cfg.GenerationTimeout)
		client.SetMaxDownload(cfg.GenerationMaxBytes())
		ext.SetGenerator(client)
		log.Printf("Generation enabled: %s (model %s)", cfg.GenerationAPIURL, cfg.GenerationModelVersion)
	} else {
		log.Println("Generation not configured (set LOOPSTRETCH_GENERATION_MODEL_VERSION to enable)")
	}

	// Ollama LLM (optional -- writes generation prompts from the source tags)
	var llm prompt.LLM
	if cfg.OllamaURL != "" {
		client := ollama.NewClient(cfg.OllamaURL, cfg.OllamaModel)
		checkCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if client.Available(checkCtx) {
			llm = client
			log.Printf("Ollama connected: %s (LLM prompts enabled)", cfg.OllamaModel)
		} else {
			log.Printf("Ollama unreachable or %s not pulled, using static prompts", cfg.OllamaModel)
		}
		cancel()
	}
	ext.SetPrompter(prompt.NewWriter(llm))
	return ext
}
