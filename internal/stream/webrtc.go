// Package stream plays stored results to browsers over WebRTC.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"gopkg.in/hraban/opus.v2"

	"github.com/satindergrewal/loopstretch/internal/audio"
	"github.com/satindergrewal/loopstretch/internal/metrics"
)

// ErrNotFound is returned by a Lookup for unknown or expired ids.
var ErrNotFound = errors.New("result not found or expired")

var errConnectTimeout = errors.New("peer did not connect")

// Lookup returns the recording stored under id.
type Lookup func(ctx context.Context, id string) (audio.Recording, error)

// PreviewHandler answers a WebRTC SDP offer and plays one stored result to
// the peer as Opus. The result id comes from the {id} path value. Playback
// starts once the peer is connected.
type PreviewHandler struct {
	lookup         Lookup
	connectTimeout time.Duration
	mu             sync.Mutex
	peers          []*webrtc.PeerConnection
}

// NewPreviewHandler creates a preview handler.
func NewPreviewHandler(lookup Lookup) *PreviewHandler {
	return &PreviewHandler{lookup: lookup, connectTimeout: 15 * time.Second}
}

// PeerCount returns the number of active preview peers.
func (h *PreviewHandler) PeerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.peers)
}

func (h *PreviewHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}

	id := r.PathValue("id")
	rec, err := h.lookup(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	packets, err := Packets(rec)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	var offer webrtc.SessionDescription
	if err := json.NewDecoder(r.Body).Decode(&offer); err != nil {
		http.Error(w, "invalid SDP offer", http.StatusBadRequest)
		return
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		http.Error(w, "create peer connection failed", http.StatusInternalServerError)
		return
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio",
		"loopstretch-"+id,
	)
	if err != nil {
		pc.Close()
		http.Error(w, "create audio track failed", http.StatusInternalServerError)
		return
	}
	if _, err := pc.AddTrack(track); err != nil {
		pc.Close()
		http.Error(w, "add track failed", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	connected := make(chan struct{})
	var once sync.Once
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		switch s {
		case webrtc.PeerConnectionStateConnected:
			once.Do(func() { close(connected) })
		case webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateClosed,
			webrtc.PeerConnectionStateDisconnected:
			cancel()
		}
	})

	if err := pc.SetRemoteDescription(offer); err != nil {
		cancel()
		pc.Close()
		http.Error(w, "set remote description failed", http.StatusBadRequest)
		return
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		cancel()
		pc.Close()
		http.Error(w, "create answer failed", http.StatusInternalServerError)
		return
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		cancel()
		pc.Close()
		http.Error(w, "set local description failed", http.StatusInternalServerError)
		return
	}

	// Wait for ICE gathering to complete
	<-webrtc.GatheringCompletePromise(pc)

	h.addPeer(pc)
	log.Printf("Preview peer negotiating for %s (total: %d)", id, h.PeerCount())

	go func() {
		defer func() {
			cancel()
			h.removePeer(pc)
			pc.Close()
			log.Printf("Preview peer finished (remaining: %d)", h.PeerCount())
		}()
		if err := waitConnected(ctx, connected, h.connectTimeout); err != nil {
			log.Printf("Preview for %s not started: %v", id, err)
			return
		}
		h.play(ctx, track, packets)
	}()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pc.LocalDescription())
}

// waitConnected blocks until connected is closed, ctx ends or timeout passes.
func waitConnected(ctx context.Context, connected <-chan struct{}, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-connected:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errConnectTimeout
	}
}

func (h *PreviewHandler) play(ctx context.Context, track *webrtc.TrackLocalStaticSample, packets [][]int16) {
	enc, err := opus.NewEncoder(audio.SampleRate, audio.Channels, opus.AppAudio)
	if err != nil {
		log.Printf("Preview: opus encoder error: %v", err)
		return
	}
	enc.SetBitrate(128000)

	opusBuf := make([]byte, 4000)
	sent, err := Pace(ctx, packets, audio.PacketDuration, func(pcm []int16) error {
		n, err := enc.Encode(pcm, opusBuf)
		if err != nil {
			log.Printf("Preview: opus encode error: %v", err)
			return nil
		}
		return track.WriteSample(media.Sample{Data: opusBuf[:n], Duration: audio.PacketDuration})
	})
	if err != nil && ctx.Err() == nil {
		log.Printf("Preview stopped after %d/%d packets: %v", sent, len(packets), err)
	}
}

func (h *PreviewHandler) addPeer(pc *webrtc.PeerConnection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.peers = append(h.peers, pc)
	metrics.PreviewPeers.Set(float64(len(h.peers)))
}

func (h *PreviewHandler) removePeer(pc *webrtc.PeerConnection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, p := range h.peers {
		if p == pc {
			h.peers = append(h.peers[:i], h.peers[i+1:]...)
			break
		}
	}
	metrics.PreviewPeers.Set(float64(len(h.peers)))
}
