package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/exposure/internal/llm"
	"github.com/ppiankov/exposure/internal/model"
	"github.com/ppiankov/exposure/internal/pipeline"
	"github.com/ppiankov/exposure/internal/proxy"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	subject      model.PersonalInfo
	outJSON      string
	outMD        string
	budget       time.Duration
	proxies      []string
	probeProxies bool
	llmEnabled   bool
	llmProvider  string
	llmModel     string
	showValues   bool
	noCache      bool
	noRobots     bool
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the web for one person's information",
	Long: `Scan generates search queries from the fields you provide, searches the
enabled engines and platforms, extracts PII from the results and reports
how exposed those fields are.

At least one of --name, --email, --phone or --address is required.

Example:
  exposure scan --name "Jane Roe" --email jane@example.com
  exposure scan --email jane@example.com --json report.json --md report.md
  exposure scan --name "Jane Roe" --proxy http://10.0.0.1:3128 --proxy socks5://10.0.0.2:1080 --probe-proxies
  exposure scan --email jane@example.com --llm --llm-provider ollama --llm-model llama3`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	// Subject flags
	scanCmd.Flags().StringVar(&subject.Name, "name", "", "full name to search for")
	scanCmd.Flags().StringVar(&subject.Email, "email", "", "email address to search for")
	scanCmd.Flags().StringVar(&subject.Phone, "phone", "", "phone number to search for")
	scanCmd.Flags().StringVar(&subject.Address, "address", "", "postal address to search for")

	addScanFlags(scanCmd)
	scanCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (default from config)")
	scanCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
}

// addScanFlags registers the flags shared by scan and batch
func addScanFlags(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&budget, "budget", 0, "time budget per scan (default from config)")
	cmd.Flags().StringArrayVar(&proxies, "proxy", nil, "proxy endpoint, repeatable (http, https or socks5)")
	cmd.Flags().BoolVar(&probeProxies, "probe-proxies", false, "health-check proxies before scanning")
	cmd.Flags().BoolVar(&showValues, "show-values", false, "print unmasked values")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the page cache")
	cmd.Flags().BoolVar(&noRobots, "ignore-robots", false, "do not consult robots.txt (only for sites you operate)")

	// LLM flags
	cmd.Flags().BoolVar(&llmEnabled, "llm", false, "enable LLM summary generation")
	cmd.Flags().StringVar(&llmProvider, "llm-provider", "", "LLM provider (openai, ollama)")
	cmd.Flags().StringVar(&llmModel, "llm-model", "", "LLM model name")
}

// buildConfig loads configuration and applies command-line overrides
func buildConfig(cmd *cobra.Command) (*model.Config, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("budget") {
		cfg.Scan.Budget = budget
	}
	if len(proxies) > 0 {
		cfg.Proxy.Endpoints = proxies
	}
	if showValues {
		cfg.Output.ShowValues = true
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if noRobots {
		cfg.HTTP.RespectRobots = false
	}

	if llmEnabled {
		cfg.LLM.Enabled = true
	}
	if llmProvider != "" {
		cfg.LLM.Provider = llmProvider
	}
	if llmModel != "" {
		cfg.LLM.Model = llmModel
	}
	if cfg.LLM.Enabled && cfg.LLM.Provider == "openai" && cfg.LLM.APIKey == "" {
		return nil, eris.New("OPENAI_API_KEY environment variable not set")
	}

	return cfg, nil
}

func runScan(cmd *cobra.Command, args []string) error {
	if err := subject.Validate(); err != nil {
		return eris.Wrap(err, "provide at least one of --name, --email, --phone, --address")
	}

	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}
	if outJSON != "" {
		cfg.Output.JSONPath = outJSON
	}
	if outMD != "" {
		cfg.Output.MarkdownPath = outMD
	}

	summarizer, err := llm.NewSummarizer(llm.ConfigFromModel(cfg.LLM))
	if err != nil {
		return eris.Wrap(err, "configure summarizer")
	}

	p, err := pipeline.NewPipeline(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if probeProxies {
		runProbe(ctx, cfg, p.Proxies())
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Searching %d field(s) with a %v budget\n", len(subject.Present()), cfg.Scan.Budget)
	}

	report, err := p.Scan(ctx, subject)
	if err != nil {
		return eris.Wrap(err, "scan failed")
	}

	summary := summarizer.GenerateSummary(ctx, *report, subject)
	return writeReport(cmd, cfg, report, summary, cfg.Output.JSONPath, cfg.Output.MarkdownPath)
}

// runProbe health-checks proxies and reports the outcome on stderr
func runProbe(ctx context.Context, cfg *model.Config, manager *proxy.Manager) {
	if manager == nil || manager.Len() == 0 {
		return
	}

	results := proxy.NewProber(manager, cfg.Proxy.ProbeURL, cfg.Proxy.ProbeTimeout, 0).Probe(ctx)
	healthy := 0
	for _, r := range results {
		if r.OK {
			healthy++
			continue
		}
		if verbose && !r.Skipped {
			fmt.Fprintf(os.Stderr, "✗ proxy %s: %s\n", r.Address, r.Error)
		}
	}
	fmt.Fprintf(os.Stderr, "Proxies healthy: %d of %d\n", healthy, len(results))
	zap.L().Info("proxy probe complete", zap.Int("healthy", healthy), zap.Int("total", len(results)))
}

// writeReport renders the terminal summary and any requested files
func writeReport(cmd *cobra.Command, cfg *model.Config, report *model.RiskReport, summary *llm.Summary, jsonPath, mdPath string) error {
	renderer := pipeline.NewRenderer(cfg.Output.ShowValues)

	if err := renderer.RenderSummary(cmd.OutOrStdout(), report); err != nil {
		return err
	}
	if summary != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", summary.Text)
	}

	if jsonPath != "" {
		if err := renderer.RenderJSON(report, jsonPath); err != nil {
			return eris.Wrap(err, "render JSON")
		}
		fmt.Fprintf(os.Stderr, "✓ JSON report: %s\n", jsonPath)
	}
	if mdPath != "" {
		if err := renderer.RenderMarkdown(report, summary, mdPath); err != nil {
			return eris.Wrap(err, "render Markdown")
		}
		fmt.Fprintf(os.Stderr, "✓ Markdown report: %s\n", mdPath)
	}
	return nil
}
