package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/satindergrewal/loopstretch/internal/audio"
	"github.com/satindergrewal/loopstretch/internal/extend"
	"github.com/satindergrewal/loopstretch/internal/metrics"
	"github.com/satindergrewal/loopstretch/internal/store"
	"github.com/satindergrewal/loopstretch/internal/stream"
)

// Server wires the extender and the result store to HTTP routes.
type Server struct {
	ext       *extend.Extender
	results   *store.Store
	preview   *stream.PreviewHandler
	decodeMP3 func(ctx context.Context, data []byte) (audio.Recording, error)
	maxUpload int64
	started   time.Time
}

// NewServer creates the HTTP adapter. maxUpload bounds the request body in
// bytes.
func NewServer(ext *extend.Extender, results *store.Store, maxUpload int64) *Server {
	s := &Server{
		ext:       ext,
		results:   results,
		decodeMP3: audio.DecodeMP3Bytes,
		maxUpload: maxUpload,
		started:   time.Now(),
	}
	s.preview = stream.NewPreviewHandler(s.previewRecording)
	return s
}

// previewRecording decodes a stored MP3 for playback. The store keeps only
// encoded bytes, so PCM lives for the length of one preview.
func (s *Server) previewRecording(ctx context.Context, id string) (audio.Recording, error) {
	e, ok := s.results.Get(id)
	if !ok {
		return audio.Recording{}, stream.ErrNotFound
	}
	return s.decodeMP3(ctx, e.MP3)
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(IndexHTML)
	})
	mux.HandleFunc("/api/extend", s.handleExtend)
	mux.HandleFunc("/api/results/{id}", s.handleResult)
	mux.Handle("/api/results/{id}/preview", s.preview)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

func (s *Server) handleExtend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	if s.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	}

	req, err := s.parseRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	res, err := s.ext.Extend(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	name := outputName(req.Filename)
	if entry, ok := s.results.Put(name, res); ok {
		w.Header().Set("X-Result-ID", entry.ID)
	} else {
		log.Printf("Result %s (%d bytes) too large to keep for preview", name, len(res.MP3))
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.MP3)))
	w.Header().Set("X-Repeat-Count", strconv.Itoa(res.Plan.RepeatCount))
	w.Header().Set("X-Output-Duration", strconv.FormatFloat(res.OutputSeconds(), 'f', 3, 64))
	w.Write(res.MP3)
}

func (s *Server) parseRequest(r *http.Request) (extend.Request, error) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return extend.Request{}, fmt.Errorf("%w: upload larger than %d bytes", extend.ErrInvalidRequest, tooBig.Limit)
		}
		return extend.Request{}, fmt.Errorf("%w: %v", extend.ErrInvalidRequest, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return extend.Request{}, fmt.Errorf("%w: missing file: %v", extend.ErrInvalidRequest, err)
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return extend.Request{}, fmt.Errorf("%w: read upload: %v", extend.ErrInvalidRequest, err)
	}

	target, err := strconv.Atoi(strings.TrimSpace(r.FormValue("duration")))
	if err != nil || target <= 0 {
		return extend.Request{}, fmt.Errorf("%w: duration must be a positive whole number of seconds", extend.ErrInvalidRequest)
	}
	mode, err := extend.ParseMode(r.FormValue("mode"))
	if err != nil {
		return extend.Request{}, err
	}

	return extend.Request{
		Audio:       data,
		Filename:    header.Filename,
		Start:       r.FormValue("start"),
		End:         r.FormValue("end"),
		Target:      float64(target),
		Mode:        mode,
		SnapToBeats: formBool(r.FormValue("snap")),
		APIToken:    strings.TrimSpace(r.FormValue("api_token")),
		Prompt:      strings.TrimSpace(r.FormValue("prompt")),
	}, nil
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "GET required", http.StatusMethodNotAllowed)
		return
	}
	e, ok := s.results.Get(r.PathValue("id"))
	if !ok {
		http.Error(w, "result not found or expired", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, e.Filename))
	w.Header().Set("X-Repeat-Count", strconv.Itoa(e.RepeatCount))
	w.Header().Set("X-Output-Duration", strconv.FormatFloat(e.Seconds, 'f', 3, 64))
	w.Header().Set("Content-Length", strconv.Itoa(len(e.MP3)))
	if r.Method == http.MethodHead {
		return
	}
	w.Write(e.MP3)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	opts := s.ext.Options()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"uptime":             time.Since(s.started).Round(time.Second).String(),
		"generation_enabled": s.ext.GenerationEnabled(),
		"stored_results":     s.results.Len(),
		"stored_bytes":       s.results.Bytes(),
		"preview_peers":      s.preview.PeerCount(),
		"config": map[string]any{
			"max_repeat_count":   opts.MaxRepeatCount,
			"max_target_seconds": opts.MaxTarget,
			"seam_crossfade_ms":  opts.SeamCrossfade.Milliseconds(),
			"max_upload_bytes":   s.maxUpload,
		},
	})
}

// statusFor maps an error kind to an HTTP status code.
func statusFor(kind string) int {
	switch kind {
	case "parse_error", "degenerate_section", "no_beats_detected", "loop_count_exceeded", "invalid_request":
		return http.StatusBadRequest
	case "encode_decode_error":
		return http.StatusUnprocessableEntity
	case "generation_failed", "remote_service_error":
		return http.StatusBadGateway
	case "generation_timeout":
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind := extend.Kind(err)
	code := statusFor(kind)
	if code >= 500 {
		log.Printf("Extend failed (%s): %v", kind, err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error(), "kind": kind})
}

// formBool accepts checkbox values ("on") as well as strconv booleans.
func formBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "on" || v == "yes" {
		return true
	}
	b, _ := strconv.ParseBool(v)
	return b
}

// outputName derives a safe download name from the uploaded filename.
func outputName(upload string) string {
	base := strings.TrimSuffix(filepath.Base(upload), filepath.Ext(upload))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ' || r == '.':
			return '_'
		}
		return -1
	}, base)
	if base == "" {
		base = "audio"
	}
	return base + "_extended.mp3"
}
