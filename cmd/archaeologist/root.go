package main

import (
	"github.com/spf13/cobra"

	"archaeologist/internal/gateway/config"
)

// version is set at build time via -ldflags.
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "archaeologist",
		Short: "Modernize and audit legacy code with a structured LLM analysis",
		Long: "archaeologist sends a codebase to the model, validates the structured\n" +
			"report it returns and prints vulnerabilities, refactored files and a\n" +
			"pull request draft.",
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		Version: version,
	}
	g := &globalOptions{}
	root.PersistentFlags().StringVar(&g.plansFile, "plans-file", ".archaeologist/plans.json",
		"JSON plan store used when neither PLAN_STORE_PG_DSN nor S3 is configured (default: $PLAN_STORE_FILE)")
	root.PersistentFlags().StringVar(&g.cacheDir, "cache-dir", ".archaeologist/cache",
		"Report cache directory; unchanged codebases skip the model (default: $ANALYSIS_CACHE_DIR)")
	root.PersistentFlags().BoolVar(&g.noCache, "no-cache", false, "Disable the report cache")
	root.AddCommand(newAnalyzeCmd(g))
	root.AddCommand(newPlansCmd(g))
	root.AddCommand(newServeCmd())
	return root
}

type globalOptions struct {
	plansFile string
	cacheDir  string
	noCache   bool
}

// loadConfig reads the environment-driven config and applies CLI defaults.
func (g *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.LoadArgs(nil)
	if err != nil {
		return nil, err
	}
	if cfg.PlanStore.File == "" {
		cfg.PlanStore.File = g.plansFile
	}
	if cfg.Analysis.CacheDir == "" {
		cfg.Analysis.CacheDir = g.cacheDir
	}
	if g.noCache {
		cfg.Analysis.CacheDir = ""
		cfg.Analysis.CacheSize = 0
	}
	return cfg, nil
}
