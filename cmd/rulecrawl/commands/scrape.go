package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/rulecrawl/internal/config"
	"github.com/jmylchreest/rulecrawl/internal/crawler"
	"github.com/jmylchreest/rulecrawl/internal/logger"
	"github.com/jmylchreest/rulecrawl/internal/output"
	"github.com/jmylchreest/rulecrawl/pkg/rule"
	"github.com/jmylchreest/rulecrawl/pkg/rulecrawl"
	"github.com/jmylchreest/rulecrawl/pkg/scrape"
)

var scrapeFlags = withKeys(renderFlags, map[string]string{
	"max-pages": "max_pages",
})

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Extract data from a page or a crawl",
	Long: `Render a page, apply extraction rules and print the results.

Rules come from a YAML or JSON file (-r), from built-in templates (-t),
or both. With --crawl the links found on each page are followed breadth
first until --max-pages pages have been visited.

Examples:
  # Single page with a template
  rulecrawl scrape -u "https://example.com/contact" -t "social media"

  # Crawl with rules from a file, CSV output
  rulecrawl scrape -u "https://example.com" -r rules.yaml --crawl \
      --max-pages 25 --same-host --format csv -o out.csv

  # Static HTML only, no browser
  rulecrawl scrape -u "https://example.com" -t "contact information" --render static`,
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return bindFlags(cmd, scrapeFlags)
	},
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	flags := scrapeCmd.Flags()

	// Inputs
	flags.StringP("url", "u", "", "URL to scrape (required)")
	flags.StringSliceP("rules", "r", nil, "rule file(s), YAML or JSON (can be repeated)")
	flags.StringSliceP("template", "t", nil, "built-in template name(s) (see 'rulecrawl templates list')")
	flags.Bool("strict", false, "reject incomplete rules instead of reporting them per page")

	// Crawl
	flags.Bool("crawl", false, "follow links from the seed page")
	flags.Int("max-pages", crawler.DefaultMaxPages, "max pages to visit when crawling")

	// Output
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", "json", "output format: json, jsonl, yaml, csv")

	addRenderFlags(flags)

	_ = scrapeCmd.MarkFlagRequired("url")
}

func runScrape(cmd *cobra.Command, _ []string) error {
	initLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	seed, _ := cmd.Flags().GetString("url")
	rules, err := collectRules(cmd)
	if err != nil {
		return fmt.Errorf("failed to load rules: %w", err)
	}
	logger.Debug("rules loaded", "count", len(rules))

	formatStr, _ := cmd.Flags().GetString("format")
	format, err := output.ParseFormat(formatStr)
	if err != nil {
		return err
	}

	provider, err := cfg.NewProvider()
	if err != nil {
		return fmt.Errorf("failed to create render provider: %w", err)
	}

	engine, err := rulecrawl.New(provider, cfg.EngineOptions(nil)...)
	if err != nil {
		_ = provider.Close()
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer func() { _ = engine.Close() }()

	crawlMode, _ := cmd.Flags().GetBool("crawl")
	logger.Info("starting scrape",
		"url", seed,
		"rules", len(rules),
		"crawl", crawlMode,
		"max_pages", cfg.MaxPages,
		"render", provider.Name())

	results, runErr := engine.Run(ctx, seed, rules, crawlMode, cfg.MaxPages)
	if runErr != nil && len(results) == 0 {
		return fmt.Errorf("scrape failed: %w", runErr)
	}
	if runErr != nil {
		logger.Warn("scrape stopped early, writing partial results", "pages", len(results), "error", runErr)
	}

	if err := writeResults(cmd, format, results); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	failed := 0
	for _, r := range results {
		if !r.Succeeded() {
			failed++
		}
	}
	logger.Info("scrape complete", "pages", len(results), "failed", failed)

	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// collectRules loads rule files then templates, in flag order.
func collectRules(cmd *cobra.Command) ([]rule.Rule, error) {
	var rules []rule.Rule

	paths, _ := cmd.Flags().GetStringSlice("rules")
	for _, path := range paths {
		loaded, err := rule.LoadFile(path)
		if err != nil {
			return nil, err
		}
		rules = append(rules, loaded...)
	}

	names, _ := cmd.Flags().GetStringSlice("template")
	for _, name := range names {
		t, ok := rule.LookupTemplate(name)
		if !ok {
			return nil, fmt.Errorf("unknown template: %q", name)
		}
		rules = append(rules, t.Rules...)
	}

	if strict, _ := cmd.Flags().GetBool("strict"); strict {
		if err := rule.ValidateAll(rules); err != nil {
			return nil, err
		}
	}
	if len(rules) == 0 {
		return nil, fmt.Errorf("no rules provided (use --rules or --template)")
	}
	return rules, nil
}

func writeResults(cmd *cobra.Command, format output.Format, results []*scrape.PageResult) error {
	out := os.Stdout
	if outPath, _ := cmd.Flags().GetString("output"); outPath != "" {
		f, err := os.Create(outPath) //#nosec G304 -- CLI tool writes to user-specified output file
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		out = f
		logInfo("writing %d results to %s", len(results), outPath)
	}
	return output.WriteRecords(out, format, results)
}
