package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arbelos/keel/internal/bus"
	"github.com/arbelos/keel/internal/cache"
	"github.com/arbelos/keel/internal/factcheck"
	"github.com/arbelos/keel/internal/model"
	"github.com/arbelos/keel/internal/worker"
)

var (
	checkFacts     []string
	checkFactsFile string
	checkDomain    string
	checkFile      string
	checkJSON      bool
)

// checkCmd fact-checks text without calling any model
var checkCmd = &cobra.Command{
	Use:   "check [text]",
	Short: "Fact-check text against known facts",
	Long: `Extract factual claims from text and verify each against the provided
known facts.

Text comes from the argument, from --file (one statement per line,
checked concurrently), or from stdin. Facts come from repeated --fact
flags or a --facts-file with one fact per line.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		facts := checkFacts
		if checkFactsFile != "" {
			fromFile, err := worker.ReadLines(checkFactsFile)
			if err != nil {
				return fmt.Errorf("read facts file: %w", err)
			}
			facts = append(facts, fromFile...)
		}

		kb := factcheck.NewKnowledgeBase(facts...)
		checker := factcheck.NewChecker(cfg.FactCheck, kb, cache.New(cfg.Cache), bus.New(), logger)
		opts := factcheck.CheckOptions{Domain: checkDomain, KnownFacts: facts}

		ctx := context.Background()

		if checkFile != "" {
			return checkBatch(ctx, checker, opts, checkFile)
		}

		text, err := checkInput(args)
		if err != nil {
			return err
		}

		report, err := checker.CheckResponse(ctx, text, opts)
		if err != nil {
			return err
		}

		if checkJSON {
			return printJSON(report)
		}
		printFactCheck(text, report)
		return nil
	},
}

// checkBatch verifies one statement per line, concurrently
func checkBatch(ctx context.Context, checker *factcheck.Checker, opts factcheck.CheckOptions, path string) error {
	processor := worker.NewBatchProcessor(func(ctx context.Context, line string) (interface{}, error) {
		return checker.CheckResponse(ctx, line, opts)
	}, 0)

	results, err := processor.ProcessFile(ctx, path)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if err := r.GetError(); err != nil {
			failed++
			fmt.Printf("error  %s: %v\n", r.Input, err)
			continue
		}
		report := r.Value.(*model.FactCheckReport)
		fmt.Printf("%-14s %3d/100  %s\n", report.OverallStatus, report.OverallScore, r.Input)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d statements failed to check", failed, len(results))
	}
	return nil
}

func checkInput(args []string) (string, error) {
	if len(args) == 1 && args[0] != "-" {
		return args[0], nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", fmt.Errorf("no text to check")
	}
	return text, nil
}

func printFactCheck(text string, report *model.FactCheckReport) {
	fmt.Printf("Overall: %s (%d/100)\n", report.OverallStatus, report.OverallScore)
	if report.Summary != "" {
		fmt.Println(report.Summary)
	}
	fmt.Println()

	for i, claim := range report.Claims {
		result := report.Results[i]
		fmt.Printf("  [%s] %s\n", result.Status, claim.Text)
		for _, c := range result.Contradictions {
			fmt.Printf("      contradicted (%s): %s\n", c.Severity, c.Source)
		}
		for _, s := range result.Supporting {
			fmt.Printf("      supported by %s (quality %d)\n", s.Source, s.Quality)
		}
	}

	for _, w := range report.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
}

func init() {
	checkCmd.Flags().StringArrayVar(&checkFacts, "fact", nil, "known fact to verify against (repeatable)")
	checkCmd.Flags().StringVar(&checkFactsFile, "facts-file", "", "file with one known fact per line")
	checkCmd.Flags().StringVar(&checkDomain, "domain", "", "subject domain hint")
	checkCmd.Flags().StringVar(&checkFile, "file", "", "file with one statement per line to check concurrently")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "print the report as JSON")

	rootCmd.AddCommand(checkCmd)
}
