package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/xkhani/shipping-agent/pkg/llm"
)

// evalResult is one line of an eval run.
type evalResult struct {
	Question   string `json:"question"`
	Route      string `json:"route,omitempty"`
	SQL        string `json:"sql,omitempty"`
	Attempts   int    `json:"attempts,omitempty"`
	Response   string `json:"response,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// NewEvalCommand creates the eval command, which runs a batch of questions
// with bounded concurrency and reports the outcomes in input order.
func NewEvalCommand(build BuildFunc) *cobra.Command {
	var (
		concurrency  int
		generateOnly bool
		asJSON       bool
	)

	cmd := &cobra.Command{
		Use:   "eval [questions-file]",
		Short: "Run a file of questions through the agent",
		Long: `Read one question per line (blank lines and lines starting with # are
skipped) from a file, or from stdin when the file is "-" or omitted, and run
each through the agent. With --generate-only the statements are generated
and validated but never executed.`,
		Example: `  shipping-agent eval questions.txt
  shipping-agent eval --generate-only --concurrency 4 --json questions.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open questions: %w", err)
				}
				defer f.Close()
				in = f
			}

			questions, err := readQuestions(in)
			if err != nil {
				return err
			}
			if len(questions) == 0 {
				return fmt.Errorf("no questions to evaluate")
			}

			return withApp(cmd, build, func(app *App) error {
				pool := llm.NewWorkerPool(llm.WorkerPoolConfig{MaxConcurrent: concurrency}, app.Logger)
				results := runEval(cmd.Context(), app, pool, questions, generateOnly, func(done, total int) {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "\r%d/%d", done, total)
				})
				_, _ = fmt.Fprintln(cmd.ErrOrStderr())

				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(results)
				}
				writeEvalReport(out, results)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", llm.DefaultWorkerPoolConfig().MaxConcurrent, "questions in flight at once")
	cmd.Flags().BoolVar(&generateOnly, "generate-only", false, "generate and validate SQL without executing it")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

func readQuestions(r io.Reader) ([]string, error) {
	var questions []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		questions = append(questions, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}
	return questions, nil
}

func runEval(
	ctx context.Context,
	app *App,
	pool *llm.WorkerPool,
	questions []string,
	generateOnly bool,
	onProgress func(completed, total int),
) []evalResult {
	items := make([]llm.WorkItem[evalResult], len(questions))
	for i, q := range questions {
		items[i] = llm.WorkItem[evalResult]{
			ID: fmt.Sprintf("q%d", i+1),
			Execute: func(ctx context.Context) (evalResult, error) {
				ctx = llm.WithRequestID(ctx, "")
				if generateOnly {
					return generateOne(ctx, app, q), nil
				}
				return askOne(ctx, app, q), nil
			},
		}
	}

	work := llm.Process(ctx, pool, items, onProgress)
	results := make([]evalResult, len(work))
	for i, w := range work {
		results[i] = w.Result
		if w.Err != nil {
			results[i] = evalResult{Question: questions[i], Error: w.Err.Error()}
		}
		results[i].DurationMS = w.Duration.Milliseconds()
	}
	return results
}

func generateOne(ctx context.Context, app *App, question string) evalResult {
	res := evalResult{Question: question, Route: "data"}
	gen, err := app.Generator.Generate(ctx, question)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.SQL = gen.SQL
	res.Attempts = gen.Attempts
	return res
}

func askOne(ctx context.Context, app *App, question string) evalResult {
	res := evalResult{Question: question}
	answer, err := app.Agent.Ask(ctx, question)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Route = string(answer.Route)
	res.SQL = answer.SQL
	res.Attempts = answer.Attempts
	res.Response = answer.Response
	return res
}

func writeEvalReport(w io.Writer, results []evalResult) {
	var failed int
	var total time.Duration
	for i, r := range results {
		total += time.Duration(r.DurationMS) * time.Millisecond
		_, _ = fmt.Fprintf(w, "%d. %s\n", i+1, r.Question)
		if r.Route != "" {
			_, _ = fmt.Fprintf(w, "   route: %s", r.Route)
			if r.Attempts > 0 {
				_, _ = fmt.Fprintf(w, ", attempts: %d", r.Attempts)
			}
			_, _ = fmt.Fprintln(w)
		}
		if r.SQL != "" {
			_, _ = fmt.Fprintf(w, "   sql: %s\n", oneLine(r.SQL))
		}
		if r.Error != "" {
			failed++
			_, _ = fmt.Fprintf(w, "   error: %s\n", r.Error)
		}
	}
	_, _ = fmt.Fprintf(w, "\n%d questions, %d failed, %s model time\n",
		len(results), failed, total.Round(time.Millisecond))
}
