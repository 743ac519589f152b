// Command ai-smoketest sends a canned listing through the text analysis of
// each provider and prints what came back.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/realfinder/verifier/src/ai/core"
	_ "github.com/realfinder/verifier/src/ai/providers"
	"github.com/realfinder/verifier/src/analysis"
	"github.com/realfinder/verifier/src/config"
	"github.com/realfinder/verifier/src/webclient"
)

var (
	providersFlag string
	modelFlag     string
	timeoutFlag   time.Duration
	maxLenFlag    int
)

var rootCmd = &cobra.Command{
	Use:           "ai-smoketest",
	Short:         "Run a canned listing through analysis providers.",
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVar(&providersFlag, "providers", "gemini25", "comma-separated provider list or 'all'")
	rootCmd.Flags().StringVar(&modelFlag, "model", "", "override model name")
	rootCmd.Flags().DurationVar(&timeoutFlag, "timeout", 45*time.Second, "per-provider timeout")
	rootCmd.Flags().IntVar(&maxLenFlag, "max-bytes", 600, "maximum bytes of summary to print (0=unlimited)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	providers := resolveProviders(providersFlag, core.Registered())
	if len(providers) == 0 {
		return fmt.Errorf("no providers specified")
	}
	cfg, err := config.Load(config.New(""))
	if err != nil {
		return err
	}

	failed := 0
	for _, provider := range providers {
		if err := smokeTest(cmd.Context(), cfg, provider); err != nil {
			failed++
			fmt.Printf("%s %s: %v\n", color.RedString("FAIL"), provider, err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d providers failed", failed, len(providers))
	}
	return nil
}

func smokeTest(ctx context.Context, cfg config.Config, provider string) error {
	factory := cfg.AIFactory()
	factory.Provider = provider
	factory.Model = pickFirst(modelFlag, cfg.Model)
	factory.Timeout = timeoutFlag

	client, err := core.NewClient(factory)
	if err != nil {
		return fmt.Errorf("client init: %w", err)
	}

	acfg := cfg.Analysis()
	acfg.Timeout = timeoutFlag
	acfg.Model = factory.Model
	acfg.Retry = webclient.Policy{Attempts: 1, InitialDelay: time.Second, MaxDelay: time.Second}
	gate := analysis.NewGate(1)
	defer gate.Close()
	adapter := analysis.New(client, gate, acfg)

	start := time.Now()
	res, err := adapter.Analyze(ctx, analysis.KindText, analysis.Payload{
		Subject: "listing",
		Text:    sampleListing,
		Fields:  map[string]string{"city": "Pune", "price": "8500000", "area_sqft": "1150"},
	})
	if err != nil {
		return err
	}

	fmt.Printf("%s %s (%.1fs) score=%.2f issues=%d\n", color.GreenString("OK"), provider,
		time.Since(start).Seconds(), res.Score, len(res.Issues))
	for _, issue := range res.Issues {
		fmt.Printf("  [%s] %s: %s\n", issue.Severity, issue.Code, issue.Message)
	}
	if res.Summary != "" {
		fmt.Println("  " + truncate(res.Summary, maxLenFlag))
	}
	return nil
}

func resolveProviders(raw string, registered []string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if strings.EqualFold(raw, "all") {
		return append([]string{}, registered...)
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' ' || r == ';'
	})
	var out []string
	seen := map[string]struct{}{}
	for _, p := range parts {
		key := strings.ToLower(strings.TrimSpace(p))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	return out
}

func pickFirst(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func truncate(text string, limit int) string {
	if limit <= 0 || len(text) <= limit {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(text[:limit]) + "...(truncated)"
}

const sampleListing = `3 BHK apartment in Baner, Pune

Spacious east-facing flat on the 7th floor with two covered parking spots,
modular kitchen and a balcony overlooking the hills. Society has a gym,
pool and 24x7 security. URGENT SALE, call 98765 43210 now, token money accepted!`
