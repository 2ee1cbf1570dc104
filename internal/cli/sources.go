package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arbelos/keel/internal/verify"
	"github.com/arbelos/keel/internal/worker"
)

var (
	sourcesFile  string
	sourcesTerms []string
	sourcesJSON  bool
)

// sourcesCmd validates source URLs in bulk
var sourcesCmd = &cobra.Command{
	Use:   "sources [url...]",
	Short: "Validate and rank source URLs",
	Long: `Fetch each URL and report whether it is reachable, how its host ranks,
and whether the page mentions the given topic terms.

Validation respects robots.txt and rate-limits requests per domain.
URLs come from arguments or from --file with one URL per line.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		urls := args
		if sourcesFile != "" {
			fromFile, err := worker.ReadLines(sourcesFile)
			if err != nil {
				return fmt.Errorf("read URL file: %w", err)
			}
			urls = append(urls, fromFile...)
		}
		if len(urls) == 0 {
			return fmt.Errorf("no URLs to validate (pass arguments or --file)")
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		validator := verify.NewValidator(cfg.Verify, logger)
		results := validator.Validate(context.Background(), urls, sourcesTerms)

		if sourcesJSON {
			return printJSON(results)
		}

		verified := 0
		for _, r := range results {
			fmt.Printf("%-10s %3d  %s%s\n", sourceState(r), r.Source.Quality, r.Source.URL, sourceNote(r))
			if r.Source.Verified {
				verified++
			}
		}
		fmt.Printf("\n%d of %d sources verified\n", verified, len(results))

		return nil
	},
}

func sourceState(r verify.Result) string {
	switch {
	case r.Blocked:
		return "blocked"
	case r.Error != "":
		return "dead"
	case r.Source.Verified:
		return "verified"
	default:
		return "unverified"
	}
}

func sourceNote(r verify.Result) string {
	var notes []string
	if r.Stale {
		notes = append(notes, "stale")
	}
	if r.Title != "" {
		notes = append(notes, fmt.Sprintf("%q", r.Title))
	}
	if r.Error != "" {
		notes = append(notes, r.Error)
	}
	if len(notes) == 0 {
		return ""
	}
	return "  (" + strings.Join(notes, ", ") + ")"
}

func init() {
	sourcesCmd.Flags().StringVar(&sourcesFile, "file", "", "file with one URL per line")
	sourcesCmd.Flags().StringArrayVar(&sourcesTerms, "term", nil, "topic term the page must mention to verify (repeatable)")
	sourcesCmd.Flags().BoolVar(&sourcesJSON, "json", false, "print results as JSON")

	rootCmd.AddCommand(sourcesCmd)
}
