package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/satindergrewal/loopstretch/internal/config"
	"github.com/satindergrewal/loopstretch/internal/extend"
)

var (
	extStart    string
	extEnd      string
	extDuration int
	extOutput   string
	extSnap     bool
	extGenerate bool
	extPrompt   string
	extToken    string
)

var extendCmd = &cobra.Command{
	Use:   "extend <file>",
	Short: "Extend a section of an audio file",
	Long: `Extend the section between --start and --end to --duration seconds and write
the result as MP3. The section is looped unless --generate is given.`,
	Example: "  loopstretch extend song.mp3 -s 2:30 -e 2:40 -d 20 -o longer.mp3 --snap",
	Args:    cobra.ExactArgs(1),
	RunE:    runExtend,
}

func init() {
	extendCmd.Flags().StringVarP(&extStart, "start", "s", "", "Section start (M:SS)")
	extendCmd.Flags().StringVarP(&extEnd, "end", "e", "", "Section end (M:SS)")
	extendCmd.Flags().IntVarP(&extDuration, "duration", "d", 0, "Target section length in seconds")
	extendCmd.Flags().StringVarP(&extOutput, "output", "o", "", "Output file (default <input>_extended.mp3)")
	extendCmd.Flags().BoolVar(&extSnap, "snap", false, "Snap start and end to the nearest beat")
	extendCmd.Flags().BoolVar(&extGenerate, "generate", false, "Replace the section with generated audio")
	extendCmd.Flags().StringVar(&extPrompt, "prompt", "", "Text prompt for --generate")
	extendCmd.Flags().StringVar(&extToken, "token", "", "API token for --generate (default REPLICATE_API_TOKEN)")
	extendCmd.MarkFlagRequired("start")
	extendCmd.MarkFlagRequired("end")
	extendCmd.MarkFlagRequired("duration")
}

func runExtend(cmd *cobra.Command, args []string) error {
	input := args[0]
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	mode := extend.ModeLoop
	if extGenerate {
		mode = extend.ModeGenerate
	}

	ext := buildExtender(ctx, config.Load())
	res, err := ext.Extend(ctx, extend.Request{
		Audio:       data,
		Filename:    filepath.Base(input),
		Start:       extStart,
		End:         extEnd,
		Target:      float64(extDuration),
		Mode:        mode,
		SnapToBeats: extSnap,
		APIToken:    extToken,
		Prompt:      extPrompt,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", extend.Kind(err), err)
	}

	out := extOutput
	if out == "" {
		out = strings.TrimSuffix(input, filepath.Ext(input)) + "_extended.mp3"
	}
	if err := os.WriteFile(out, res.MP3, 0o644); err != nil {
		return err
	}

	if res.Section != res.Requested {
		fmt.Printf("Snapped:  %s -> %s\n", res.Requested, yellow.Sprint(res.Section))
	}
	fmt.Printf("Section:  %s (%.3fs)\n", yellow.Sprint(res.Section), res.Section.Duration())
	if res.Mode == extend.ModeLoop {
		fmt.Printf("Repeats:  %s, last copy trimmed by %.3fs\n", yellow.Sprint(res.Plan.RepeatCount), res.Plan.TrimSeconds)
	} else {
		fmt.Printf("Generated: %.3fs of new material\n", res.Plan.Target)
	}
	fmt.Printf("Output:   %s (%s)\n", green.Sprint(out), extend.FormatTimeMark(res.OutputSeconds()))
	return nil
}
