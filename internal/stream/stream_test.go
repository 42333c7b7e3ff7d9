package stream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/satindergrewal/loopstretch/internal/audio"
)

func TestPacketsPadsLastPacket(t *testing.T) {
	samples := make([]int16, audio.PacketSamples*2+10)
	for i := range samples {
		samples[i] = 1
	}
	packets, err := Packets(audio.NewRecording(samples))
	if err != nil {
		t.Fatalf("Packets: %v", err)
	}
	if len(packets) != 3 {
		t.Fatalf("len(packets) = %d, want 3", len(packets))
	}
	for i, p := range packets {
		if len(p) != audio.PacketSamples {
			t.Errorf("packet %d len = %d, want %d", i, len(p), audio.PacketSamples)
		}
	}
	last := packets[2]
	if last[9] != 1 || last[10] != 0 || last[len(last)-1] != 0 {
		t.Errorf("last packet padding wrong: [9]=%d [10]=%d [end]=%d", last[9], last[10], last[len(last)-1])
	}
}

func TestPacketsRejectsOtherFormats(t *testing.T) {
	rec := audio.Recording{Samples: make([]int16, 100), SampleRate: 44100, Channels: 2}
	if _, err := Packets(rec); !errors.Is(err, audio.ErrFormatMismatch) {
		t.Errorf("err = %v, want ErrFormatMismatch", err)
	}
}

func TestPaceSendsInOrder(t *testing.T) {
	packets := [][]int16{{1}, {2}, {3}, {4}}
	var got []int16
	start := time.Now()

	n, err := Pace(context.Background(), packets, 2*time.Millisecond, func(p []int16) error {
		got = append(got, p[0])
		return nil
	})
	if err != nil || n != 4 {
		t.Fatalf("Pace = %d, %v; want 4, nil", n, err)
	}
	for i, v := range got {
		if v != int16(i+1) {
			t.Errorf("packet %d = %d, want %d", i, v, i+1)
		}
	}
	if elapsed := time.Since(start); elapsed < 8*time.Millisecond {
		t.Errorf("Pace finished in %v, want at least 8ms", elapsed)
	}
}

func TestPaceStops(t *testing.T) {
	packets := make([][]int16, 100)
	boom := errors.New("peer gone")
	n, err := Pace(context.Background(), packets, time.Millisecond, func([]int16) error {
		return boom
	})
	if !errors.Is(err, boom) || n != 0 {
		t.Errorf("Pace = %d, %v; want 0, %v", n, err, boom)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Pace(ctx, packets, time.Millisecond, func([]int16) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled Pace err = %v, want context.Canceled", err)
	}
}

func TestPreviewHandlerRejects(t *testing.T) {
	stored := audio.NewRecording(make([]int16, audio.PacketSamples))
	h := NewPreviewHandler(func(_ context.Context, id string) (audio.Recording, error) {
		switch id {
		case "known":
			return stored, nil
		case "corrupt":
			return audio.Recording{}, errors.New("mp3 decode: bad frame")
		}
		return audio.Recording{}, ErrNotFound
	})
	mux := http.NewServeMux()
	mux.Handle("/api/results/{id}/preview", h)

	tests := []struct {
		method, id, body string
		want             int
	}{
		{http.MethodGet, "known", "", http.StatusMethodNotAllowed},
		{http.MethodPost, "missing", "{}", http.StatusNotFound},
		{http.MethodPost, "corrupt", "{}", http.StatusUnprocessableEntity},
		{http.MethodPost, "known", "not json", http.StatusBadRequest},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, "/api/results/"+tt.id+"/preview", strings.NewReader(tt.body))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("%s %s: status = %d, want %d", tt.method, tt.id, rec.Code, tt.want)
		}
	}
	if h.PeerCount() != 0 {
		t.Errorf("PeerCount = %d, want 0", h.PeerCount())
	}
}

func TestWaitConnected(t *testing.T) {
	connected := make(chan struct{})
	close(connected)
	if err := waitConnected(context.Background(), connected, time.Second); err != nil {
		t.Errorf("connected peer: err = %v, want nil", err)
	}

	if err := waitConnected(context.Background(), make(chan struct{}), 10*time.Millisecond); !errors.Is(err, errConnectTimeout) {
		t.Errorf("silent peer: err = %v, want errConnectTimeout", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := waitConnected(ctx, make(chan struct{}), time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("failed peer: err = %v, want context.Canceled", err)
	}
}

func TestWaitConnectedHoldsUntilConnect(t *testing.T) {
	connected := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- waitConnected(context.Background(), connected, time.Second) }()

	select {
	case err := <-done:
		t.Fatalf("returned %v before the peer connected", err)
	case <-time.After(20 * time.Millisecond):
	}
	close(connected)
	if err := <-done; err != nil {
		t.Errorf("err = %v, want nil", err)
	}
}
