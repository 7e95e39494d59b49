// Copyright ©2026 The bíogo Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/biogo/fqbatch/chunk"
	"github.com/biogo/fqbatch/pipeline"
)

func newChunk() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chunk <in.fastq>",
		Short: "Split a FASTQ file into record-aligned chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load(cmd)
			if err != nil {
				return err
			}
			p, err := pipeline.New(cfg, logger)
			if err != nil {
				return err
			}
			m, err := p.Split(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, c := range m.Chunks {
				fmt.Fprintf(out, "%s\t%s reads\t%s\n", c.Path, humanize.Comma(c.Records), humanize.IBytes(uint64(c.Length)))
			}
			fmt.Fprintf(out, "%s reads in %d chunks\n", humanize.Comma(m.Records), len(m.Chunks))
			return nil
		},
	}
	addChunkFlags(cmd)
	return cmd
}

func newRun() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <in.fastq>...",
		Short: "Chunk, process and report on FASTQ files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load(cmd)
			if err != nil {
				return err
			}
			p, err := pipeline.New(cfg, logger)
			if err != nil {
				return err
			}
			var failed int
			for _, in := range args {
				o, err := p.Run(cmd.Context(), in)
				if o != nil && o.Status != "" {
					fmt.Fprintln(cmd.OutOrStdout(), o.Status)
				}
				if err != nil {
					logger.Error("run failed", "input", in, "err", err)
					failed++
					continue
				}
				printOutcome(cmd, o)
			}
			if failed != 0 {
				return fmt.Errorf("%d of %d inputs failed", failed, len(args))
			}
			return nil
		},
	}
	addChunkFlags(cmd)
	addProcessFlags(cmd)
	return cmd
}

func newReport() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <stem>",
		Short: "Rebuild summaries from the chunk reports of an earlier run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load(cmd)
			if err != nil {
				return err
			}
			p, err := pipeline.New(cfg, logger)
			if err != nil {
				return err
			}
			o, err := p.Report(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printOutcome(cmd, o)
			return nil
		},
	}
	f := cmd.Flags()
	f.String("chunk-dir", "", "chunk directory (default <out>/chunks)")
	f.Bool("trim", false, "report on trimming results")
	f.Bool("plots", true, "render plots")
	f.String("format", "png", "plot format (png, svg or pdf)")
	return cmd
}

func newEstimate() *cobra.Command {
	var target int
	cmd := &cobra.Command{
		Use:   "estimate <in.fastq>",
		Short: "Recommend a chunk size for a FASTQ file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if target <= 0 {
				return errors.New("memory target must be positive")
			}
			fi, err := os.Stat(args[0])
			if err != nil {
				return err
			}
			e := chunk.EstimateRecords(fi.Size(), target)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "file size:        %s\n", humanize.IBytes(uint64(fi.Size())))
			fmt.Fprintf(out, "estimated reads:  %s\n", humanize.Comma(e.Records))
			fmt.Fprintf(out, "records/chunk:    %s\n", humanize.Comma(int64(e.ChunkRecords)))
			fmt.Fprintf(out, "estimated chunks: %d\n", e.Chunks)
			return nil
		},
	}
	cmd.Flags().IntVar(&target, "memory", 500, "memory target per chunk in MB")
	return cmd
}

func printOutcome(cmd *cobra.Command, o *pipeline.Outcome) {
	out := cmd.OutOrStdout()
	s := o.Summary
	status := "complete"
	if o.Partial() {
		status = fmt.Sprintf("partial, missing chunks %v", s.Missing)
	}
	fmt.Fprintf(out, "%s: %s reads, %s bases (%s)\n", s.Source, humanize.Comma(s.Reads), humanize.Comma(s.Bases), status)
	if o.Comparison != nil {
		fmt.Fprintf(out, "trimmed: %s reads retained (%.1f%%)\n", humanize.Comma(o.Comparison.ReadsAfter), o.Comparison.ReadRetention)
	}
	for _, f := range o.Files {
		fmt.Fprintln(out, f)
	}
}
