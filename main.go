// Command touch-tracer detects touch contacts in capacitive heatmap dumps.
//
// Usage:
//
//	touch-tracer plot <dump> <out-dir>
//	touch-tracer perf <dump>
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"touch-tracer/internal/contact"
	"touch-tracer/internal/heatmap"
	"touch-tracer/internal/perf"
	"touch-tracer/internal/render"
)

const (
	plotWidth  = 900
	plotHeight = 600

	perfPasses = 50
)

func printUsageAndExit() {
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  %s plot <dump> <out-dir>\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s perf <dump>\n", os.Args[0])
	os.Exit(1)
}

func main() {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger()

	if len(os.Args) < 2 {
		printUsageAndExit()
	}

	var err error
	switch os.Args[1] {
	case "plot":
		if len(os.Args) != 4 {
			printUsageAndExit()
		}
		err = runPlot(log, os.Args[2], os.Args[3])

	case "perf":
		if len(os.Args) != 3 {
			printUsageAndExit()
		}
		err = runPerf(log, os.Args[2])

	default:
		printUsageAndExit()
	}

	if err != nil {
		log.Fatal().Err(err).Msg("failed")
	}
}

func runPlot(log zerolog.Logger, input, outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	frames, err := heatmap.ReadFile(input)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return fmt.Errorf("no heatmap frames in %s", input)
	}

	w, h := frames[0].W, frames[0].H
	log.Info().Int("frames", len(frames)).Int("width", w).Int("height", h).Msg("processing")

	pipeline := contact.NewPipeline(w, h, contact.DefaultConfig(), log, nil)
	plotter := render.NewPlotter(w, h, plotWidth, plotHeight)

	n := 0
	for i, frame := range frames {
		if frame.W != w || frame.H != h {
			log.Warn().Int("frame", i).Msg("frame shape mismatch, skipping")
			continue
		}

		pipeline.Process(frame)
		contacts := pipeline.Contacts(nil)

		canvas := plotter.Render(pipeline.Filtered(), contacts)
		if err := render.WriteFrame(outDir, n, canvas); err != nil {
			return err
		}
		n++
	}

	log.Info().Int("written", n).Str("dir", outDir).Msg("plotted")
	return nil
}

func runPerf(log zerolog.Logger, input string) error {
	frames, err := heatmap.ReadFile(input)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return fmt.Errorf("no heatmap frames in %s", input)
	}

	w, h := frames[0].W, frames[0].H
	log.Info().Int("frames", len(frames)).Int("passes", perfPasses).Msg("processing")

	reg := perf.NewRegistry()
	pipeline := contact.NewPipeline(w, h, contact.DefaultConfig(), log, reg)

	for pass := 0; pass < perfPasses; pass++ {
		for i, frame := range frames {
			if frame.W != w || frame.H != h {
				log.Warn().Int("frame", i).Msg("frame shape mismatch, skipping")
				continue
			}
			pipeline.Process(frame)
		}
	}

	fmt.Println("Performance Statistics:")
	for _, e := range reg.Entries() {
		fmt.Printf("  %s\n", e.Name())
		fmt.Printf("    N:      %8d\n", e.N())
		fmt.Printf("    full:   %8d\n", e.Total().Microseconds())
		fmt.Printf("    mean:   %8d\n", e.Mean().Microseconds())
		fmt.Printf("    stddev: %8d\n", e.Stddev().Microseconds())
		fmt.Printf("    min:    %8d\n", e.Min().Microseconds())
		fmt.Printf("    max:    %8d\n", e.Max().Microseconds())
		fmt.Println()
	}

	return nil
}
