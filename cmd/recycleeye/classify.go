package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/teslashibe/recycleeye/internal/log"
	"github.com/teslashibe/recycleeye/pkg/capture"
	"github.com/teslashibe/recycleeye/pkg/classify"
)

// fileResult is one row of classify output.
type fileResult struct {
	File      string        `json:"file"`
	Label     string        `json:"label,omitempty"`
	Kind      classify.Kind `json:"kind"`
	Error     string        `json:"error,omitempty"`
	LatencyMs int64         `json:"latency_ms"`
}

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify FILE...",
		Short: "Classify image files",
		Long: `Classify one or more image files, one request at a time, and print a
label per file.

Examples:
  recycleeye classify bottle.jpg
  recycleeye classify --quality 0.5 --json photos/*.jpg`,
		Args: cobra.MinimumNArgs(1),
		RunE: runClassify,
	}

	cmd.Flags().Float64("quality", capture.DefaultLibraryQuality, "JPEG quality in [0,1] before upload")
	cmd.Flags().Bool("json", false, "print results as JSON")

	return cmd
}

func runClassify(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	quality, _ := cmd.Flags().GetFloat64("quality")
	asJSON, _ := cmd.Flags().GetBool("json")

	if !capture.ValidQuality(quality) {
		return fmt.Errorf("%w: %v", capture.ErrInvalidQuality, quality)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s := &stack{cfg: cfg, logger: log.L()}
	classifier, err := s.buildClassifier(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	bar := progressbar.NewOptions(len(args),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Classifying"),
		progressbar.OptionClearOnFinish(),
	)

	results := make([]fileResult, 0, len(args))
	for _, path := range args {
		if ctx.Err() != nil {
			break
		}
		results = append(results, classifyFile(cmd, classifier, path, quality))
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	return printResults(cmd.OutOrStdout(), results)
}

func classifyFile(cmd *cobra.Command, classifier classify.Classifier, path string, quality float64) fileResult {
	out := fileResult{File: path}

	photo, err := capture.NewStaticCamera(path).CapturePhoto(cmd.Context(), quality)
	if err != nil {
		out.Kind = classify.KindRequestFailed
		out.Error = err.Error()
		return out
	}

	res := classifier.Classify(cmd.Context(), classify.NewRequest(photo.URI, photo.Data))
	out.Label = res.Label
	out.Kind = res.Kind
	out.LatencyMs = res.Latency().Milliseconds()
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}

func printResults(w io.Writer, results []fileResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tLABEL\tLATENCY")
	for _, r := range results {
		label := r.Label
		if r.Kind == classify.KindRequestFailed {
			label = "error: " + r.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%v\n", filepath.Base(r.File), label,
			(time.Duration(r.LatencyMs) * time.Millisecond).String())
	}
	return tw.Flush()
}
