package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"archaeologist/internal/analysis"
	"archaeologist/internal/collect"
	"archaeologist/internal/gateway/app"
	"archaeologist/internal/gateway/config"
)

type analyzeOptions struct {
	format   string
	diff     bool
	save     bool
	llm      string
	dumpDir  string
	width    int
	exts     []string
	maxBytes int64
	verbose  bool
}

func newAnalyzeCmd(g *globalOptions) *cobra.Command {
	var opts analyzeOptions
	cmd := &cobra.Command{
		Use:   "analyze [dir|repo-url]",
		Short: "Analyze a local directory or the bundled legacy sample",
		Long: `Collect source files, run one analysis and print the report.

Usage:
  archaeologist analyze ./legacy-app            # Local directory
  archaeologist analyze                         # Bundled Python 2.7 sample
  archaeologist analyze ./app --format yaml     # Machine-readable output
  archaeologist analyze ./app --diff --save     # Side-by-side diffs, persist the plan

The model is configured through GEMINI_API_KEY / API_KEY and GEMINI_MODEL.
Use --llm fake for an offline run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := collect.DemoRepoURL
			if len(args) > 0 {
				source = args[0]
			}
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			return runAnalyze(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, source, opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.format, "format", "f", "text", "Output format: text, json or yaml")
	f.BoolVar(&opts.diff, "diff", false, "Print a side-by-side diff of every refactored file (text format)")
	f.BoolVar(&opts.save, "save", false, "Persist the plan through the configured plan store")
	f.StringVar(&opts.llm, "llm", "", "LLM provider override: gemini or fake (default: $LLM_PROVIDER)")
	f.StringVar(&opts.dumpDir, "dump-dir", "", "Write prompts and raw responses under this directory")
	f.IntVar(&opts.width, "width", 60, "Column width of each diff side")
	f.StringSliceVar(&opts.exts, "ext", nil, "File extensions to collect (default: common source and config types)")
	f.Int64Var(&opts.maxBytes, "max-file-bytes", 0, "Skip files larger than this (0: collector default)")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Log LLM calls and store selection to stderr")
	return cmd
}

func runAnalyze(ctx context.Context, stdout, stderr io.Writer, cfg *config.Config, source string, opts analyzeOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	format := strings.ToLower(strings.TrimSpace(opts.format))
	switch format {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unknown format %q (want text, json or yaml)", opts.format)
	}

	if opts.llm != "" {
		cfg.LLM.Provider = strings.ToLower(opts.llm)
	}
	if opts.dumpDir != "" {
		cfg.LLM.PromptDumpDir = opts.dumpDir
	}

	logOut := io.Discard
	if opts.verbose {
		logOut = stderr
	}
	logger := log.New(logOut, "", log.LstdFlags)
	log.SetOutput(logOut)

	client, err := app.NewLLMClient(ctx, cfg.LLM, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	cache, err := app.NewReportCache(cfg.Analysis, logger)
	if err != nil {
		return err
	}
	machineOpts := analysis.Options{
		Collector: collect.Auto{
			Local:    collect.LocalDir{Exts: opts.exts, MaxFileBytes: opts.maxBytes},
			Fallback: collect.Demo(0),
		},
		Client:  client,
		Timeout: cfg.Analysis.Timeout,
		Cache:   cache,
		Logger:  logger,

		StrictSeverity: cfg.Analysis.StrictSeverity,
	}
	var stores *app.PlanStores
	if opts.save {
		stores, err = app.NewPlanStores(ctx, cfg)
		if err != nil {
			return err
		}
		defer stores.Close()
		machineOpts.Plans = stores.Gateway
	}

	m, err := analysis.New(machineOpts)
	if err != nil {
		return err
	}
	defer m.Close()

	runID, err := m.Start(source)
	if err != nil {
		return err
	}
	fmt.Fprintf(stderr, "Analyzing %s ...\n", source)
	snap, err := m.Wait(ctx, runID)
	if err != nil {
		return err
	}
	if snap.Cached {
		fmt.Fprintln(stderr, "Report served from cache (--no-cache to re-run the model)")
	}
	if snap.Phase == analysis.PhaseError {
		return fmt.Errorf("analysis failed (%s): %s", snap.ErrorKind, snap.Error)
	}

	if err := writeReport(stdout, format, snap.Report, opts.diff, opts.width); err != nil {
		return err
	}

	if opts.save {
		id, err := m.SavePlan(ctx)
		if err != nil {
			return fmt.Errorf("save plan: %w", err)
		}
		fmt.Fprintf(stderr, "Saved plan %s\n", id)
	}
	return nil
}
