// Package beat detects rhythmic onsets in a recording and snaps times to them.
package beat

import (
	"errors"
	"math"
	"math/cmplx"
	"sort"
	"time"

	"github.com/mjibson/go-dsp/fft"

	"github.com/satindergrewal/loopstretch/internal/audio"
)

var ErrNoBeatsDetected = errors.New("no beats detected")

// Grid is a strictly increasing list of beat times in seconds.
type Grid []float64

// Options tunes onset detection.
type Options struct {
	WindowSize  int           // FFT window in frames, power of two
	HopSize     int           // frames between successive windows
	MinGap      time.Duration // minimum distance between accepted beats
	Sensitivity float64       // multiplier on the local mean flux
	AverageSpan int           // windows on each side of the local mean
}

// DefaultOptions returns settings that work for typical pop/rock material.
func DefaultOptions() Options {
	return Options{
		WindowSize:  1024,
		HopSize:     512,
		MinGap:      250 * time.Millisecond,
		Sensitivity: 1.5,
		AverageSpan: 10,
	}
}

// Detect finds onsets with half-wave-rectified spectral flux over Hann
// windowed FFT frames and an adaptive moving-average threshold. A silent or
// too-short recording yields an empty grid.
func Detect(rec audio.Recording, opts Options) Grid {
	if opts.WindowSize <= 0 || opts.HopSize <= 0 || rec.SampleRate <= 0 {
		opts = DefaultOptions()
	}
	flux := spectralFlux(audio.Mono(rec), opts.WindowSize, opts.HopSize)
	if len(flux) < 3 {
		return Grid{}
	}

	peak := 0.0
	for _, v := range flux {
		peak = math.Max(peak, v)
	}
	if peak == 0 {
		return Grid{}
	}
	floor := 0.05 * peak

	hopSeconds := float64(opts.HopSize) / float64(rec.SampleRate)
	minGap := opts.MinGap.Seconds()
	grid := Grid{}
	last := math.Inf(-1)

	for i := 1; i < len(flux)-1; i++ {
		v := flux[i]
		if v < flux[i-1] || v <= flux[i+1] {
			continue
		}
		if v <= floor || v <= opts.Sensitivity*localMean(flux, i, opts.AverageSpan) {
			continue
		}
		t := float64(i) * hopSeconds
		if t-last < minGap {
			continue
		}
		grid = append(grid, t)
		last = t
	}
	return grid
}

func spectralFlux(signal []float64, windowSize, hopSize int) []float64 {
	if len(signal) < windowSize {
		return nil
	}

	window := make([]float64, windowSize)
	for i := range window {
		window[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(windowSize-1))
	}

	var flux []float64
	var prev []float64
	frame := make([]float64, windowSize)
	for start := 0; start+windowSize <= len(signal); start += hopSize {
		for i := range frame {
			frame[i] = signal[start+i] * window[i]
		}
		spectrum := fft.FFTReal(frame)

		magnitude := make([]float64, windowSize/2)
		for k := range magnitude {
			magnitude[k] = cmplx.Abs(spectrum[k])
		}

		sum := 0.0
		if prev != nil {
			for k, m := range magnitude {
				if d := m - prev[k]; d > 0 {
					sum += d
				}
			}
		}
		flux = append(flux, sum)
		prev = magnitude
	}
	return flux
}

func localMean(values []float64, center, span int) float64 {
	lo := max(0, center-span)
	hi := min(len(values), center+span+1)
	sum := 0.0
	for _, v := range values[lo:hi] {
		sum += v
	}
	return sum / float64(hi-lo)
}

// Nearest returns the beat closest to t. Equidistant beats resolve to the
// earlier one; times outside the grid snap to the first or last beat.
func Nearest(grid Grid, t float64) (float64, error) {
	if len(grid) == 0 {
		return 0, ErrNoBeatsDetected
	}
	i := sort.SearchFloat64s(grid, t)
	switch {
	case i == 0:
		return grid[0], nil
	case i == len(grid):
		return grid[len(grid)-1], nil
	}
	before, after := grid[i-1], grid[i]
	if after-t < t-before {
		return after, nil
	}
	return before, nil
}
