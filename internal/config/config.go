package config

import (
	"os"
	"strconv"
	"time"
)

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Server
	Port        int
	MaxUploadMB int

	// Audio tools
	FFmpegPath string
	Decoder    string // native or ffmpeg
	MP3Bitrate string

	// Extension limits
	MaxRepeatCount int
	MaxTarget      float64       // seconds
	SeamCrossfade  time.Duration // 0 disables seam smoothing
	BeatMinGap     time.Duration
	ScratchDir     string        // "" uses the OS temp dir

	// Result store
	ResultTTL      time.Duration
	ResultCapacity int
	ResultMaxMB    int // total MP3 bytes held; 0 disables the bound

	// Generation service (Replicate-style predictions API)
	GenerationAPIURL       string
	GenerationModelVersion string
	GenerationAPIToken     string
	GenerationPollInterval time.Duration
	GenerationTimeout      time.Duration
	GenerationMaxMB        int // largest generated file accepted

	// Optional prompt writer
	OllamaURL   string
	OllamaModel string
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	return Config{
		Port:        envInt("LOOPSTRETCH_PORT", 8080),
		MaxUploadMB: envInt("LOOPSTRETCH_MAX_UPLOAD_MB", 64),

		FFmpegPath: envStr("LOOPSTRETCH_FFMPEG_PATH", "ffmpeg"),
		Decoder:    envStr("LOOPSTRETCH_DECODER", "native"),
		MP3Bitrate: envStr("LOOPSTRETCH_MP3_BITRATE", "192k"),

		MaxRepeatCount: envInt("LOOPSTRETCH_MAX_REPEAT_COUNT", 1000),
		MaxTarget:      envFloat("LOOPSTRETCH_MAX_TARGET_SECONDS", 600),
		SeamCrossfade:  time.Duration(envInt("LOOPSTRETCH_SEAM_CROSSFADE_MS", 0)) * time.Millisecond,
		BeatMinGap:     time.Duration(envInt("LOOPSTRETCH_BEAT_MIN_GAP_MS", 250)) * time.Millisecond,
		ScratchDir:     envStr("LOOPSTRETCH_SCRATCH_DIR", ""),

		ResultTTL:      time.Duration(envInt("LOOPSTRETCH_RESULT_TTL_MINUTES", 15)) * time.Minute,
		ResultCapacity: envInt("LOOPSTRETCH_RESULT_CAPACITY", 16),
		ResultMaxMB:    envInt("LOOPSTRETCH_RESULT_MAX_MB", 256),

		GenerationAPIURL:       envStr("LOOPSTRETCH_GENERATION_API_URL", "https://api.replicate.com/v1/predictions"),
		GenerationModelVersion: envStr("LOOPSTRETCH_GENERATION_MODEL_VERSION", ""),
		GenerationAPIToken:     envStr("REPLICATE_API_TOKEN", ""),
		GenerationPollInterval: envDuration("LOOPSTRETCH_GENERATION_POLL_SECONDS", 3*time.Second),
		GenerationTimeout:      envDuration("LOOPSTRETCH_GENERATION_TIMEOUT_SECONDS", 5*time.Minute),
		GenerationMaxMB:        envInt("LOOPSTRETCH_GENERATION_MAX_MB", 128),

		OllamaURL:   envStr("OLLAMA_URL", ""),
		OllamaModel: envStr("OLLAMA_MODEL", "qwen3:8b"),
	}
}

// GenerationEnabled reports whether a model version is configured.
func (c Config) GenerationEnabled() bool {
	return c.GenerationModelVersion != ""
}

// MaxUploadBytes is the upload limit in bytes.
func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// ResultMaxBytes bounds the MP3 bytes the result store holds.
func (c Config) ResultMaxBytes() int64 {
	return int64(c.ResultMaxMB) << 20
}

// GenerationMaxBytes bounds a downloaded generated file.
func (c Config) GenerationMaxBytes() int64 {
	return int64(c.GenerationMaxMB) << 20
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// envDuration reads a whole or fractional number of seconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	if s := envFloat(key, -1); s >= 0 {
		return time.Duration(s * float64(time.Second))
	}
	return fallback
}
