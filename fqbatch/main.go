// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// fqbatch splits FASTQ files into chunks, runs quality control or
// trimming on the chunks in parallel and reports on the whole file.
//
// Configuration is read from an optional YAML file given by --config,
// from FQBATCH_ environment variables and from flags, in increasing
// order of precedence.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/biogo/fqbatch/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cobra.CheckErr(newRoot().ExecuteContext(ctx))
}

// flagKeys maps flag names to configuration keys. Only flags set on
// the command line override the configuration.
var flagKeys = map[string]string{
	"log-level":     "log.level",
	"log-format":    "log.format",
	"records":       "chunk.records",
	"bytes":         "chunk.bytes",
	"chunk-dir":     "chunk.dir",
	"compress":      "chunk.compress",
	"workers":       "batch.workers",
	"timeout":       "batch.timeout",
	"resume":        "batch.resume",
	"tool":          "qc.tool",
	"fastp":         "qc.fastp_path",
	"threads":       "qc.fastp_threads",
	"trim":          "trim.enabled",
	"adapter":       "trim.adapter",
	"min-length":    "trim.min_length",
	"compare-reads": "trim.compare_reads",
	"out":           "output.dir",
	"plots":         "output.plots",
	"format":        "output.format",
	"metrics-file":  "metrics.textfile",
	"window-qual":   "trim.window_quality",
	"leading-qual":  "trim.leading",
	"trailing-qual": "trim.trailing",
}

func newRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "fqbatch",
		Short:         "Chunked FASTQ quality control and trimming",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	f := root.PersistentFlags()
	f.String("config", "", "YAML configuration file")
	f.String("log-level", "info", "log level (debug, info, warn or error)")
	f.String("log-format", "text", "log format (text, json or logfmt)")
	f.String("out", "fqbatch_out", "output directory")

	root.AddCommand(
		newChunk(),
		newRun(),
		newReport(),
		newEstimate(),
	)
	return root
}

// addChunkFlags adds the flags controlling chunk size and location.
func addChunkFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int("records", 1000000, "records per chunk")
	f.Int64("bytes", 0, "maximum bytes per chunk")
	f.String("chunk-dir", "", "chunk directory (default <out>/chunks)")
	f.Bool("compress", false, "write BGZF compressed chunks")
}

// addProcessFlags adds the flags controlling chunk processing and output.
func addProcessFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int("workers", 0, "concurrent chunk operations (default GOMAXPROCS)")
	f.Duration("timeout", 0, "per-chunk time limit")
	f.Bool("resume", false, "reuse reports of unchanged chunks")
	f.String("tool", "native", "QC tool (native or fastp)")
	f.String("fastp", "", "fastp executable")
	f.Int("threads", 0, "fastp worker threads")
	f.Bool("trim", false, "trim reads before reporting")
	f.String("adapter", "", "adapter sequence to clip")
	f.Int("min-length", 36, "minimum trimmed read length")
	f.Int("compare-reads", 10, "reads compared one by one with their trimmed form")
	f.Float64("window-qual", 15, "sliding window mean quality threshold")
	f.Int("leading-qual", 3, "leading base quality threshold")
	f.Int("trailing-qual", 3, "trailing base quality threshold")
	f.Bool("plots", true, "render plots")
	f.String("format", "png", "plot format (png, svg or pdf)")
	f.String("metrics-file", "", "write Prometheus metrics to this textfile")
}

// load returns the configuration for cmd and a logger built from it.
func load(cmd *cobra.Command) (*config.Config, *log.Logger, error) {
	flags := make(map[string]any)
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil || !cmd.Flags().Changed(name) {
			continue
		}
		flags[key] = f.Value.String()
	}
	file, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(config.Source{File: file, Flags: flags})
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cmd.ErrOrStderr(), cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newLogger(w io.Writer, cfg config.Log) (*log.Logger, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	var formatter log.Formatter
	switch cfg.Format {
	case "text":
		formatter = log.TextFormatter
	case "json":
		formatter = log.JSONFormatter
	case "logfmt":
		formatter = log.LogfmtFormatter
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return log.NewWithOptions(w, log.Options{
		Level:           level,
		Formatter:       formatter,
		ReportTimestamp: true,
		Prefix:          "fqbatch",
	}), nil
}
