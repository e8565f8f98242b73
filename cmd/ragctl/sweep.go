package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// sweepFile is the YAML shape operators maintain: a flat list of
// representative questions, optionally with per-question overrides.
type sweepFile struct {
	Queries []sweepQuery `yaml:"queries"`
}

type sweepQuery struct {
	Query        string  `yaml:"query"`
	MinRelevance float64 `yaml:"min_relevance"`
	MaxChunks    int     `yaml:"max_chunks"`
}

func newSweepCommand(opts *clientOptions) *cobra.Command {
	var failFast bool

	cmd := &cobra.Command{
		Use:   "sweep <queries.yaml>",
		Short: "Run a batch of queries and report retrieval quality",
		Args:  requireArgs(1, 1, "exactly one sweep file is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			queries, err := loadSweepFile(args[0])
			if err != nil {
				return err
			}

			var failed int
			for i, q := range queries {
				result, err := retrieve(opts, retrievePayload{
					Query:        q.Query,
					MaxChunks:    q.MaxChunks,
					MinRelevance: q.MinRelevance,
				})
				if err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "%3d. ERROR %s: %v\n", i+1, q.Query, err)
					if failFast {
						return fmt.Errorf("sweep aborted after %d queries", i+1)
					}
					continue
				}

				ctx := result.Context
				mark := "ok  "
				if !ctx.MeetsThreshold {
					failed++
					mark = "WEAK"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%3d. %s avg=%.3f chunks=%d hops=%d  %s\n",
					i+1, mark, ctx.AvgRelevance, len(ctx.Chunks), len(result.HopEvaluations), q.Query)
				if failFast && !ctx.MeetsThreshold {
					return fmt.Errorf("sweep aborted: %q fell below threshold", q.Query)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "sweep finished: %d/%d below threshold or failed\n",
				failed, len(queries))
			if failed > 0 {
				return fmt.Errorf("%d of %d queries did not meet the threshold", failed, len(queries))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop at the first weak or failed query")
	return cmd
}

func loadSweepFile(path string) ([]sweepQuery, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, usageError{msg: err.Error()}
	}

	var file sweepFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, usageError{msg: fmt.Sprintf("parse %s: %v", path, err)}
	}
	if len(file.Queries) == 0 {
		return nil, usageError{msg: "sweep file contains no queries"}
	}

	for _, q := range file.Queries {
		if q.Query == "" {
			return nil, usageError{msg: "sweep file contains an empty query"}
		}
	}
	return file.Queries, nil
}
