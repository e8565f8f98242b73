// ragctl is the operator CLI for a running rulehound API: corpus
// ingest, ad-hoc queries, quality sweeps, and replay inspection.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/skirmishlab/rulehound/internal/core/domain"
	"github.com/skirmishlab/rulehound/internal/infrastructure/replay"
)

const (
	exitOK          = 0
	exitRecoverable = 1
	exitUsage       = 2
)

// usageError marks operator mistakes so main can exit with a distinct code.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		var usage usageError
		if errors.As(err, &usage) {
			os.Exit(exitUsage)
		}
		os.Exit(exitRecoverable)
	}
	os.Exit(exitOK)
}

type clientOptions struct {
	apiURL  string
	timeout time.Duration
}

func newRootCommand() *cobra.Command {
	opts := &clientOptions{}

	root := &cobra.Command{
		Use:           "ragctl",
		Short:         "Operate a rulehound retrieval engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.apiURL, "api",
		envOr("RULEHOUND_API", "http://localhost:8080"), "base URL of the rulehound API")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute,
		"per-request timeout")

	root.AddCommand(newIngestCommand(opts))
	root.AddCommand(newQueryCommand(opts))
	root.AddCommand(newSweepCommand(opts))
	root.AddCommand(newReplayCommand())
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newIngestCommand(opts *clientOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file.md> [file.md...]",
		Short: "Upload markdown rule documents for indexing",
		Args:  requireArgs(1, -1, "at least one markdown file is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				doc, err := uploadDocument(opts, path)
				if err != nil {
					return fmt.Errorf("ingest %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "accepted %s as document %s (%s)\n",
					filepath.Base(path), doc.ID, doc.Status)
			}
			return nil
		},
	}
}

func newQueryCommand(opts *clientOptions) *cobra.Command {
	var (
		maxChunks    int
		minRelevance float64
		contextKey   string
		noHybrid     bool
		noMultiHop   bool
		asJSON       bool
		savePath     string
	)

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Run one retrieval and print the assembled context",
		Args:  requireArgs(1, 1, "exactly one question is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := args[0]
			result, err := retrieve(opts, retrievePayload{
				Query:        question,
				ContextKey:   contextKey,
				MaxChunks:    maxChunks,
				MinRelevance: minRelevance,
				UseHybrid:    boolPtr(!noHybrid),
				UseMultiHop:  boolPtr(!noMultiHop),
			})
			if err != nil {
				return err
			}

			if savePath != "" {
				record := replay.Record{Query: question, ContextKey: contextKey, Result: result}
				if err := replay.Save(savePath, record); err != nil {
					return fmt.Errorf("save replay: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "replay saved to %s\n", savePath)
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), result)
			}
			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxChunks, "max-chunks", 0, "override maximum context chunks")
	cmd.Flags().Float64Var(&minRelevance, "min-relevance", 0, "override relevance threshold")
	cmd.Flags().StringVar(&contextKey, "context-key", "", "cache isolation key")
	cmd.Flags().BoolVar(&noHybrid, "no-hybrid", false, "disable BM25 fusion and the keyword hop")
	cmd.Flags().BoolVar(&noMultiHop, "no-multi-hop", false, "disable judge-driven hops")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw retrieval result")
	cmd.Flags().StringVar(&savePath, "save", "", "write the result as a replay file")
	return cmd
}

func newReplayCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "replay <file>",
		Short: "Inspect a saved retrieval without touching the engine",
		Args:  requireArgs(1, 1, "exactly one replay file is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := replay.Load(args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), record)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "query: %s\n", record.Query)
			if record.ContextKey != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "context key: %s\n", record.ContextKey)
			}
			printResult(cmd.OutOrStdout(), record.Result)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw record")
	return cmd
}

// requireArgs wraps cobra arg validation so violations exit with the
// usage code instead of the generic failure code.
func requireArgs(minArgs, maxArgs int, msg string) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) < minArgs {
			return usageError{msg: msg}
		}
		if maxArgs >= 0 && len(args) > maxArgs {
			return usageError{msg: msg}
		}
		return nil
	}
}

type retrievePayload struct {
	Query        string  `json:"query"`
	ContextKey   string  `json:"context_key,omitempty"`
	MaxChunks    int     `json:"max_chunks,omitempty"`
	MinRelevance float64 `json:"min_relevance,omitempty"`
	UseHybrid    *bool   `json:"use_hybrid,omitempty"`
	UseMultiHop  *bool   `json:"use_multi_hop,omitempty"`
}

func boolPtr(v bool) *bool { return &v }

func retrieve(opts *clientOptions, payload retrievePayload) (*domain.RetrievalResult, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	resp, err := httpClient(opts).Post(opts.apiURL+"/v1/retrieve", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("call retrieve endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}

	var result domain.RetrievalResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode retrieval result: %w", err)
	}
	return &result, nil
}

func uploadDocument(opts *clientOptions, path string) (*domain.Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, usageError{msg: err.Error()}
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	resp, err := httpClient(opts).Post(opts.apiURL+"/v1/documents", writer.FormDataContentType(), &buf)
	if err != nil {
		return nil, fmt.Errorf("call ingest endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return nil, apiError(resp)
	}

	var doc domain.Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &doc, nil
}

func httpClient(opts *clientOptions) *http.Client {
	return &http.Client{Timeout: opts.timeout}
}

func apiError(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		return fmt.Errorf("api returned %d: %s", resp.StatusCode, payload.Error)
	}
	return fmt.Errorf("api returned %d", resp.StatusCode)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResult(w io.Writer, result *domain.RetrievalResult) {
	if result == nil {
		fmt.Fprintln(w, "no result")
		return
	}

	ctx := result.Context
	fmt.Fprintf(w, "chunks: %d  avg relevance: %.3f  meets threshold: %t\n",
		len(ctx.Chunks), ctx.AvgRelevance, ctx.MeetsThreshold)

	for i, chunk := range ctx.Chunks {
		hop := ctx.ChunkHops[chunk.ID]
		fmt.Fprintf(w, "%2d. [hop %s] %.3f  %s / %s\n", i+1, hop, chunk.Score, chunk.Source, chunk.Header)
	}

	for _, eval := range result.HopEvaluations {
		status := "ok"
		if eval.Failed {
			status = "failed: " + eval.FailureReason
		}
		fmt.Fprintf(w, "hop %d: can_answer=%t cost=$%.5f (%s)\n",
			eval.Hop, eval.CanAnswer, eval.CostUSD, status)
	}

	if trace := result.KeywordHop; trace != nil {
		fmt.Fprintf(w, "keyword hop: matched %d/%d keywords, added %d chunks\n",
			len(trace.Matched), len(trace.QueryKeywords), len(trace.AddedChunkIDs))
	}
}
