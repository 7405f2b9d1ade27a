package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/exposure/internal/llm"
	"github.com/ppiankov/exposure/internal/pipeline"
	"github.com/ppiankov/exposure/internal/worker"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Scan several subjects from a YAML file",
	Long: `Batch scans every subject listed in a YAML file and writes a JSON and a
Markdown report per subject into the output directory.

File format:
  subjects:
    - label: personal
      name: Jane Roe
      email: jane@example.com
    - label: work
      email: jroe@corp.example
      phone: "+1 415 555 0100"

Example:
  exposure batch subjects.yaml
  exposure batch subjects.yaml --output-dir ./reports --budget 2m`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 1, "number of subjects scanned at once")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./exposure-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	addScanFlags(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]

	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Exposure Batch Scan\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", concurrency)
	fmt.Fprintf(os.Stderr, "  Budget:       %v per subject\n", cfg.Scan.Budget)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return eris.Wrap(err, "create output directory")
	}

	summarizer, err := llm.NewSummarizer(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		return eris.Wrap(err, "configure summarizer")
	}

	p, err := pipeline.NewPipeline(cfg)
	if err != nil {
		return err
	}
	if probeProxies {
		runProbe(ctx, cfg, p.Proxies())
	}

	subjects, err := worker.ReadSubjectsFromFile(file)
	if err != nil {
		return eris.Wrap(err, "process file")
	}
	fmt.Fprintf(os.Stderr, "✓ Loaded %d subjects\n\n", len(subjects))

	results := worker.NewBatchProcessor(p, concurrency).ProcessSubjects(ctx, subjects)
	renderer := pipeline.NewRenderer(cfg.Output.ShowValues)

	successCount := 0
	failureCount := 0

	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Label, result.Error)
			continue
		}

		base := filepath.Join(outputDir, fmt.Sprintf("%02d-%s", result.Index+1, sanitizeFilename(result.Label)))
		summary := summarizer.GenerateSummary(ctx, *result.Report, subjects[result.Index].PersonalInfo)

		if err := renderer.RenderJSON(result.Report, base+".json"); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", result.Label, err)
			continue
		}
		if err := renderer.RenderMarkdown(result.Report, summary, base+".md"); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write Markdown: %v\n", result.Label, err)
			continue
		}

		successCount++
		partial := ""
		if result.Report.Coverage.Partial {
			partial = ", partial"
		}
		fmt.Fprintf(os.Stderr, "✓ %s (%d%%, %s%s)\n", result.Label, result.Report.Percentage, result.Report.Level, partial)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d subjects\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

// sanitizeFilename makes a label safe to use as a file name
func sanitizeFilename(s string) string {
	s = strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		"@", "_at_",
		" ", "-",
	).Replace(strings.TrimSpace(s))

	if s == "" || s == "." || s == ".." {
		return "subject"
	}
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}
