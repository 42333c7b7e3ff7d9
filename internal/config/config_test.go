package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// Clear any env vars that might interfere
	envVars := []string{
		"LOOPSTRETCH_PORT", "LOOPSTRETCH_MAX_UPLOAD_MB", "LOOPSTRETCH_FFMPEG_PATH",
		"LOOPSTRETCH_DECODER", "LOOPSTRETCH_MP3_BITRATE", "LOOPSTRETCH_MAX_REPEAT_COUNT",
		"LOOPSTRETCH_MAX_TARGET_SECONDS", "LOOPSTRETCH_SEAM_CROSSFADE_MS",
		"LOOPSTRETCH_BEAT_MIN_GAP_MS", "LOOPSTRETCH_SCRATCH_DIR",
		"LOOPSTRETCH_RESULT_TTL_MINUTES", "LOOPSTRETCH_RESULT_CAPACITY", "LOOPSTRETCH_RESULT_MAX_MB",
		"LOOPSTRETCH_GENERATION_MAX_MB",
		"LOOPSTRETCH_GENERATION_API_URL", "LOOPSTRETCH_GENERATION_MODEL_VERSION",
		"REPLICATE_API_TOKEN", "LOOPSTRETCH_GENERATION_POLL_SECONDS",
		"LOOPSTRETCH_GENERATION_TIMEOUT_SECONDS", "OLLAMA_URL", "OLLAMA_MODEL",
	}
	for _, k := range envVars {
		os.Unsetenv(k)
	}

	cfg := Load()

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.MaxUploadMB != 64 || cfg.MaxUploadBytes() != 64<<20 {
		t.Errorf("MaxUploadMB = %d (%d bytes), want 64", cfg.MaxUploadMB, cfg.MaxUploadBytes())
	}
	if cfg.FFmpegPath != "ffmpeg" {
		t.Errorf("FFmpegPath = %q, want ffmpeg", cfg.FFmpegPath)
	}
	if cfg.Decoder != "native" {
		t.Errorf("Decoder = %q, want native", cfg.Decoder)
	}
	if cfg.MP3Bitrate != "192k" {
		t.Errorf("MP3Bitrate = %q, want 192k", cfg.MP3Bitrate)
	}
	if cfg.MaxRepeatCount != 1000 {
		t.Errorf("MaxRepeatCount = %d, want 1000", cfg.MaxRepeatCount)
	}
	if cfg.MaxTarget != 600 {
		t.Errorf("MaxTarget = %v, want 600", cfg.MaxTarget)
	}
	if cfg.SeamCrossfade != 0 {
		t.Errorf("SeamCrossfade = %v, want 0", cfg.SeamCrossfade)
	}
	if cfg.BeatMinGap != 250*time.Millisecond {
		t.Errorf("BeatMinGap = %v, want 250ms", cfg.BeatMinGap)
	}
	if cfg.ScratchDir != "" {
		t.Errorf("ScratchDir = %q, want empty", cfg.ScratchDir)
	}
	if cfg.ResultTTL != 15*time.Minute || cfg.ResultCapacity != 16 {
		t.Errorf("ResultTTL/Capacity = %v/%d, want 15m/16", cfg.ResultTTL, cfg.ResultCapacity)
	}
	if cfg.ResultMaxBytes() != 256<<20 {
		t.Errorf("ResultMaxBytes = %d, want %d", cfg.ResultMaxBytes(), 256<<20)
	}
	if cfg.GenerationMaxBytes() != 128<<20 {
		t.Errorf("GenerationMaxBytes = %d, want %d", cfg.GenerationMaxBytes(), 128<<20)
	}
	if cfg.GenerationAPIURL != "https://api.replicate.com/v1/predictions" {
		t.Errorf("GenerationAPIURL = %q, want default", cfg.GenerationAPIURL)
	}
	if cfg.GenerationEnabled() {
		t.Error("GenerationEnabled = true without a model version")
	}
	if cfg.GenerationPollInterval != 3*time.Second {
		t.Errorf("GenerationPollInterval = %v, want 3s", cfg.GenerationPollInterval)
	}
	if cfg.GenerationTimeout != 5*time.Minute {
		t.Errorf("GenerationTimeout = %v, want 5m", cfg.GenerationTimeout)
	}
	if cfg.OllamaURL != "" || cfg.OllamaModel != "qwen3:8b" {
		t.Errorf("Ollama = %q/%q, want empty/qwen3:8b", cfg.OllamaURL, cfg.OllamaModel)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LOOPSTRETCH_PORT", "3000")
	t.Setenv("LOOPSTRETCH_MAX_UPLOAD_MB", "8")
	t.Setenv("LOOPSTRETCH_FFMPEG_PATH", "/opt/ffmpeg/bin/ffmpeg")
	t.Setenv("LOOPSTRETCH_DECODER", "ffmpeg")
	t.Setenv("LOOPSTRETCH_MP3_BITRATE", "320k")
	t.Setenv("LOOPSTRETCH_MAX_REPEAT_COUNT", "50")
	t.Setenv("LOOPSTRETCH_MAX_TARGET_SECONDS", "120.5")
	t.Setenv("LOOPSTRETCH_SEAM_CROSSFADE_MS", "30")
	t.Setenv("LOOPSTRETCH_BEAT_MIN_GAP_MS", "400")
	t.Setenv("LOOPSTRETCH_SCRATCH_DIR", "/var/tmp/ls")
	t.Setenv("LOOPSTRETCH_RESULT_TTL_MINUTES", "2")
	t.Setenv("LOOPSTRETCH_RESULT_CAPACITY", "4")
	t.Setenv("LOOPSTRETCH_RESULT_MAX_MB", "32")
	t.Setenv("LOOPSTRETCH_GENERATION_MAX_MB", "16")
	t.Setenv("LOOPSTRETCH_GENERATION_API_URL", "http://localhost:5000/predictions")
	t.Setenv("LOOPSTRETCH_GENERATION_MODEL_VERSION", "abc123")
	t.Setenv("REPLICATE_API_TOKEN", "r8_test")
	t.Setenv("LOOPSTRETCH_GENERATION_POLL_SECONDS", "0.5")
	t.Setenv("LOOPSTRETCH_GENERATION_TIMEOUT_SECONDS", "60")
	t.Setenv("OLLAMA_URL", "http://ollama:11434")
	t.Setenv("OLLAMA_MODEL", "llama3")

	cfg := Load()

	if cfg.Port != 3000 {
		t.Errorf("Port = %d, want 3000", cfg.Port)
	}
	if cfg.MaxUploadBytes() != 8<<20 {
		t.Errorf("MaxUploadBytes = %d, want %d", cfg.MaxUploadBytes(), 8<<20)
	}
	if cfg.FFmpegPath != "/opt/ffmpeg/bin/ffmpeg" || cfg.Decoder != "ffmpeg" || cfg.MP3Bitrate != "320k" {
		t.Errorf("audio tools = %q/%q/%q", cfg.FFmpegPath, cfg.Decoder, cfg.MP3Bitrate)
	}
	if cfg.MaxRepeatCount != 50 {
		t.Errorf("MaxRepeatCount = %d, want 50", cfg.MaxRepeatCount)
	}
	if cfg.MaxTarget != 120.5 {
		t.Errorf("MaxTarget = %v, want 120.5", cfg.MaxTarget)
	}
	if cfg.SeamCrossfade != 30*time.Millisecond {
		t.Errorf("SeamCrossfade = %v, want 30ms", cfg.SeamCrossfade)
	}
	if cfg.BeatMinGap != 400*time.Millisecond {
		t.Errorf("BeatMinGap = %v, want 400ms", cfg.BeatMinGap)
	}
	if cfg.ScratchDir != "/var/tmp/ls" {
		t.Errorf("ScratchDir = %q", cfg.ScratchDir)
	}
	if cfg.ResultTTL != 2*time.Minute || cfg.ResultCapacity != 4 {
		t.Errorf("ResultTTL/Capacity = %v/%d, want 2m/4", cfg.ResultTTL, cfg.ResultCapacity)
	}
	if cfg.ResultMaxMB != 32 || cfg.GenerationMaxMB != 16 {
		t.Errorf("ResultMaxMB/GenerationMaxMB = %d/%d, want 32/16", cfg.ResultMaxMB, cfg.GenerationMaxMB)
	}
	if cfg.GenerationAPIURL != "http://localhost:5000/predictions" {
		t.Errorf("GenerationAPIURL = %q", cfg.GenerationAPIURL)
	}
	if !cfg.GenerationEnabled() || cfg.GenerationAPIToken != "r8_test" {
		t.Errorf("generation = %q/%q, want enabled with token", cfg.GenerationModelVersion, cfg.GenerationAPIToken)
	}
	if cfg.GenerationPollInterval != 500*time.Millisecond {
		t.Errorf("GenerationPollInterval = %v, want 500ms", cfg.GenerationPollInterval)
	}
	if cfg.GenerationTimeout != time.Minute {
		t.Errorf("GenerationTimeout = %v, want 1m", cfg.GenerationTimeout)
	}
	if cfg.OllamaURL != "http://ollama:11434" || cfg.OllamaModel != "llama3" {
		t.Errorf("Ollama = %q/%q", cfg.OllamaURL, cfg.OllamaModel)
	}
}

func TestEnvIntInvalidFallsBack(t *testing.T) {
	t.Setenv("LOOPSTRETCH_PORT", "not-a-number")
	cfg := Load()
	if cfg.Port != 8080 {
		t.Errorf("Invalid int env should fallback to default: got %d, want 8080", cfg.Port)
	}
}

func TestEnvDurationInvalidFallsBack(t *testing.T) {
	t.Setenv("LOOPSTRETCH_GENERATION_POLL_SECONDS", "soon")
	t.Setenv("LOOPSTRETCH_GENERATION_TIMEOUT_SECONDS", "-4")
	cfg := Load()
	if cfg.GenerationPollInterval != 3*time.Second {
		t.Errorf("GenerationPollInterval = %v, want 3s fallback", cfg.GenerationPollInterval)
	}
	if cfg.GenerationTimeout != 5*time.Minute {
		t.Errorf("GenerationTimeout = %v, want 5m fallback", cfg.GenerationTimeout)
	}
}

func TestEnvStrEmpty(t *testing.T) {
	// Empty string should use fallback
	os.Unsetenv("LOOPSTRETCH_GENERATION_API_URL")
	cfg := Load()
	if cfg.GenerationAPIURL != "https://api.replicate.com/v1/predictions" {
		t.Errorf("Unset env should use fallback: got %q", cfg.GenerationAPIURL)
	}
}
