package commands

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jmylchreest/rulecrawl/internal/crawler"
	"github.com/jmylchreest/rulecrawl/pkg/render"
	"github.com/jmylchreest/rulecrawl/pkg/scrape"
)

// renderFlags maps rendering and crawling flags to config keys.
var renderFlags = map[string]string{
	"render":          "render",
	"timeout":         "timeout",
	"settle":          "settle",
	"wait-selector":   "wait_selector",
	"user-agent":      "user_agent",
	"chrome-path":     "chrome_path",
	"headless":        "headless",
	"no-sandbox":      "no_sandbox",
	"max-body-size":   "max_body_size",
	"acquire-retries": "acquire_retries",
	"concurrency":     "concurrency",
	"max-links":       "max_links_per_page",
	"same-host":       "same_host_only",
	"follow-pattern":  "follow_pattern",
}

func addRenderFlags(flags *pflag.FlagSet) {
	// Rendering
	flags.String("render", "browser", "render provider: browser (headless Chrome), static (plain HTTP)")
	flags.Duration("timeout", render.DefaultTimeout, "navigation timeout per page")
	flags.Duration("settle", scrape.DefaultSettle, "wait after load for client-side rendering (0 disables)")
	flags.String("wait-selector", "", "CSS selector to wait for after settling")
	flags.String("user-agent", render.DefaultUserAgent, "user agent presented by sessions")
	flags.String("chrome-path", "", "Chrome/Chromium binary (found automatically when empty)")
	flags.Bool("headless", true, "run Chrome without a window")
	flags.Bool("no-sandbox", true, "disable the Chrome sandbox (needed in most containers)")
	flags.String("max-body-size", "10MB", "max response size for the static provider (e.g., 512KB, 10MB, 0=unlimited)")
	flags.Int("acquire-retries", scrape.DefaultAcquireRetries, "retries when a render session cannot be opened")

	// Crawling
	flags.IntP("concurrency", "c", 1, "pages rendered at once")
	flags.Int("max-links", crawler.DefaultMaxLinksPerPage, "links followed from each page")
	flags.Bool("same-host", false, "only follow links on the seed's host")
	flags.String("follow-pattern", "", "regex pattern for URLs to follow")
}

// bindFlags binds the command's flags to viper keys. It runs in PreRunE so
// commands sharing a key do not overwrite each other's bindings.
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for flag, key := range keys {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			continue
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

// withKeys merges flag-to-key maps.
func withKeys(maps ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
