package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arbelos/keel/internal/llm"
	"github.com/arbelos/keel/internal/model"
	"github.com/arbelos/keel/internal/verify"
)

var (
	runSession    string
	runProfile    string
	runDomain     string
	runFacts      []string
	runSourceURLs []string
	runQuick      bool
	runJSON       bool
	runReport     bool
)

// runCmd sends a prompt through the full reliability pipeline
var runCmd = &cobra.Command{
	Use:   "run <prompt>",
	Short: "Run a prompt through the reliability pipeline",
	Long: `Send a prompt to the configured LLM provider and return a structured,
graded response.

By default the full pipeline runs: timeout protection, confidence
scoring, fact checking, and a session checkpoint. Use --quick for
protection and scoring only, or --source to fact-check the answer
against live-validated URLs.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt := args[0]

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM))
		if err != nil {
			return err
		}
		if provider == nil {
			return fmt.Errorf("no LLM provider configured (set llm.provider to openai or ollama, or KEEL_LLM_PROVIDER)")
		}

		eng, err := buildEngine(cfg, logger)
		if err != nil {
			return err
		}
		defer eng.Shutdown()

		ctx := context.Background()

		req := model.ReliableRequest{
			SessionID:  runSession,
			Input:      prompt,
			Operation:  "llm:" + provider.Name(),
			Domain:     runDomain,
			KnownFacts: runFacts,
		}

		if runProfile != "" {
			modelID := cfg.LLM.Model
			if modelID == "" {
				modelID = provider.Name()
			}
			profile, err := eng.Components().Consistency.CreateProfile(runProfile, modelID, "", nil)
			if err != nil {
				return fmt.Errorf("create consistency profile: %w", err)
			}
			req.ProfileID = profile.ID
		}

		work := func(ctx context.Context) (string, error) {
			resp, err := provider.Complete(ctx, llm.CompletionRequest{Prompt: prompt})
			if err != nil {
				return "", err
			}
			return resp.Text, nil
		}

		var resp *model.ReliableResponse
		switch {
		case runQuick:
			resp, err = eng.ExecuteQuick(ctx, req, work)
		case len(runSourceURLs) > 0:
			validator := verify.NewValidator(cfg.Verify, logger)
			sources := validator.ValidateSources(ctx, runSourceURLs, termsFrom(runDomain))
			resp, err = eng.ExecuteVerified(ctx, req, sources, work)
		default:
			resp, err = eng.ExecuteReliable(ctx, req, work)
		}
		if err != nil {
			return err
		}

		if runJSON {
			return printJSON(resp)
		}

		printResponse(resp)
		if runReport {
			printReport(eng.GenerateReport(runSession))
		}
		return nil
	},
}

func termsFrom(domain string) []string {
	if domain == "" {
		return nil
	}
	return strings.Fields(domain)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResponse(resp *model.ReliableResponse) {
	fmt.Println(resp.Output)
	fmt.Println()

	if resp.Confidence != nil {
		fmt.Printf("Confidence: %d/100 (grade %s)\n", resp.Confidence.Overall, resp.Confidence.Grade)
	}
	if resp.FactCheck != nil {
		fmt.Printf("Fact check: %s (%d/100, %d claims)\n",
			resp.FactCheck.OverallStatus, resp.FactCheck.OverallScore, len(resp.FactCheck.Claims))
	}
	if resp.Consistency != nil {
		state := "consistent"
		if !resp.Consistency.IsConsistent {
			state = "inconsistent"
		}
		fmt.Printf("Consistency: %s\n", state)
	}
	if resp.Execution.FallbackUsed {
		fmt.Printf("Fallback used: %s\n", resp.Execution.FallbackName)
	}

	for _, w := range resp.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	for _, s := range resp.Suggestions {
		fmt.Printf("  suggestion: %s\n", s)
	}
}

func printReport(report *model.ReliabilityReport) {
	fmt.Println()
	fmt.Printf("Session %s: %d requests, %.0f%% success, avg confidence %.1f, avg latency %s\n",
		report.SessionID, report.TotalRequests, report.SuccessRate*100,
		report.AverageConfidence, report.AverageLatency)
	for _, w := range report.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
}

func init() {
	runCmd.Flags().StringVar(&runSession, "session", "default", "session id for history and checkpoints")
	runCmd.Flags().StringVar(&runProfile, "profile", "", "consistency profile name (enables drift tracking)")
	runCmd.Flags().StringVar(&runDomain, "domain", "", "subject domain hint for scoring")
	runCmd.Flags().StringArrayVar(&runFacts, "fact", nil, "known fact to check claims against (repeatable)")
	runCmd.Flags().StringArrayVar(&runSourceURLs, "source", nil, "source URL to validate and fact-check against (repeatable)")
	runCmd.Flags().BoolVar(&runQuick, "quick", false, "timeout protection and confidence scoring only")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the full response as JSON")
	runCmd.Flags().BoolVar(&runReport, "report", false, "print the session reliability report after the run")

	rootCmd.AddCommand(runCmd)
}
