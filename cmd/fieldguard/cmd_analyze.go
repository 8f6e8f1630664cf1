package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fieldguard/fieldguard/internal/analysis"
	"github.com/fieldguard/fieldguard/internal/cache"
	"github.com/fieldguard/fieldguard/internal/classifier"
	"github.com/fieldguard/fieldguard/internal/overrides"
	"github.com/fieldguard/fieldguard/internal/patterns"
	"github.com/fieldguard/fieldguard/internal/report"
	"github.com/fieldguard/fieldguard/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	analyzeOutProperties string
	analyzeOutReport     string
	analyzeSkipMerge     bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>...",
	Short: "Classify fields in traffic sample files",
	Long: `Classify every field observed in the given extraction files and
regenerate the masking blacklists.

Pending developer overrides are merged into the pattern store first,
so corrections from the previous review round take effect in the same
run that re-analyzes the traffic.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeOutProperties, "properties", "", "Properties file to update (default from config)")
	analyzeCmd.Flags().StringVar(&analyzeOutReport, "report", "", "HTML review report to write (default from config)")
	analyzeCmd.Flags().BoolVar(&analyzeSkipMerge, "skip-merge", false, "Do not merge pending developer overrides first")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	propertiesFile := cfg.Analysis.PropertiesFile
	if analyzeOutProperties != "" {
		propertiesFile = analyzeOutProperties
	}
	reportFile := cfg.Analysis.ReportFile
	if analyzeOutReport != "" {
		reportFile = analyzeOutReport
	}

	if !analyzeSkipMerge {
		merged, err := overrides.Consume(cfg.Analysis.OverridesFile, cfg.Analysis.PatternsFile, log)
		if err != nil {
			return err
		}
		if merged {
			fmt.Println("Merged pending developer overrides.")
		}
	}

	patternsCfg, err := patterns.Load(cfg.Analysis.PatternsFile, log.WithComponent("patterns"))
	if err != nil {
		return err
	}
	rules, err := patterns.Compile(patternsCfg, log.WithComponent("patterns"))
	if err != nil {
		return err
	}

	var rc *cache.ResultCache
	if cfg.Cache.Enabled {
		rc, err = cache.New(&cfg.Cache, log.WithComponent("cache"))
		if err != nil {
			// The cache is an optimization; an unreachable Redis must
			// not block a run.
			log.Warn("Result cache unavailable, continuing without it", zap.Error(err))
		} else {
			defer rc.Close()
		}
	}

	cls := classifier.New(rules, log.WithComponent("classifier"))
	pipeline := analysis.New(&cfg.Analysis, cls, rc, log, analysis.Events{})

	run, err := pipeline.Run(ctx, args)
	if err != nil {
		return err
	}

	if err := report.WriteProperties(run, propertiesFile, log); err != nil {
		return err
	}
	if err := report.WriteHTML(run, reportFile, log); err != nil {
		return err
	}

	if cfg.Store.Enabled {
		if err := persistRun(ctx, run); err != nil {
			log.Error("Failed to persist run history", zap.Error(err))
		}
	}

	report.WriteConsole(run, os.Stdout)
	fmt.Printf("\nReview report: %s\nProperties:    %s\n", reportFile, propertiesFile)
	return nil
}

func persistRun(ctx context.Context, run *analysis.RunResult) error {
	st, err := store.New(&cfg.Store, log.WithComponent("store"))
	if err != nil {
		return err
	}
	defer st.Close()

	return st.SaveRun(ctx, store.NewRun(run), run.Results)
}
