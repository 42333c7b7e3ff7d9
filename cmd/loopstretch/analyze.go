package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/satindergrewal/loopstretch/internal/audio"
	"github.com/satindergrewal/loopstretch/internal/beat"
	"github.com/satindergrewal/loopstretch/internal/config"
	"github.com/satindergrewal/loopstretch/internal/extend"
	"github.com/satindergrewal/loopstretch/internal/tags"
)

var beatsCmd = &cobra.Command{
	Use:   "beats <file>",
	Short: "Print the detected beat grid",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		rec, err := newRegistry(cfg).Decode(context.Background(), args[0])
		if err != nil {
			return err
		}
		grid := beat.Detect(rec, beatOptions(cfg))
		if len(grid) == 0 {
			return beat.ErrNoBeatsDetected
		}
		for i, t := range grid {
			fmt.Printf("%4d  %s\n", i+1, extend.FormatTimeMark(t))
		}
		fmt.Printf("%s beats", yellow.Sprint(len(grid)))
		if bpm := estimateBPM(grid); bpm > 0 {
			fmt.Printf(", about %s BPM", yellow.Sprintf("%.0f", bpm))
		}
		fmt.Println()
		return nil
	},
}

var probeCmd = &cobra.Command{
	Use:   "probe <file>",
	Short: "Print duration, format and tags",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		format := audio.DetectFormat(data)
		if format == "" {
			format = "unknown"
		}
		fmt.Printf("Format:   %s\n", yellow.Sprint(format))

		if format == audio.FormatMP3 {
			dur, err := audio.ProbeMP3(bytes.NewReader(data))
			if err != nil {
				return err
			}
			fmt.Printf("Duration: %s\n", yellow.Sprint(extend.FormatTimeMark(dur.Seconds())))
		} else {
			rec, err := newRegistry(config.Load()).Decode(context.Background(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Duration: %s\n", yellow.Sprint(extend.FormatTimeMark(rec.Seconds())))
		}

		md, err := tags.Read(bytes.NewReader(data))
		if err != nil {
			return err
		}
		for _, kv := range [][2]string{{"Title", md.Title}, {"Artist", md.Artist}, {"Album", md.Album}, {"Genre", md.Genre}} {
			if kv[1] != "" {
				fmt.Printf("%-9s %s\n", kv[0]+":", kv[1])
			}
		}
		if md.Year != 0 {
			fmt.Printf("Year:     %d\n", md.Year)
		}
		return nil
	},
}

// estimateBPM uses the median gap between beats.
func estimateBPM(grid beat.Grid) float64 {
	if len(grid) < 2 {
		return 0
	}
	gaps := make([]float64, 0, len(grid)-1)
	for i := 1; i < len(grid); i++ {
		gaps = append(gaps, grid[i]-grid[i-1])
	}
	sort.Float64s(gaps)
	median := gaps[len(gaps)/2]
	if median <= 0 {
		return 0
	}
	return 60 / median
}
