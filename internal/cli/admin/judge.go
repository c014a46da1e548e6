package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/draftgate/internal/config"
	"github.com/cloo-solutions/draftgate/internal/domain"
	"github.com/cloo-solutions/draftgate/internal/metrics"
	"github.com/cloo-solutions/draftgate/internal/service"
)

type judgeEvaluator interface {
	Evaluate(ctx context.Context, input service.JudgeInput) (*service.JudgeOutcome, error)
}

// JudgeCmd returns the judge command, which runs the quality gate over a
// JSON case without a database.
func JudgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "judge",
		Short: "Score a draft with the quality gate",
		Long:  "Read a judge case as JSON from --file (or stdin with -) and print the gate outcome",
		RunE:  runJudgeCmd,
	}

	cmd.Flags().StringP("file", "f", "-", "Path to the judge case JSON, - for stdin")
	cmd.Flags().String("profile", "", "Judge profile override (strict, balanced, lenient)")
	cmd.Flags().Float64("threshold", 0, "Pass threshold override in [0,100]")

	return cmd
}

func runJudgeCmd(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	completion, err := newCompletionClient(cfg)
	if err != nil {
		return err
	}
	m := metrics.NewMetrics()
	runner, err := newPromptRunner(completion, cfg, m, logger)
	if err != nil {
		return err
	}
	jc, err := judgeConfig(cfg)
	if err != nil {
		return err
	}
	judge := service.NewJudgeService(runner, jc, m, logger.Named("judge"))

	path, _ := cmd.Flags().GetString("file")
	var in io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open judge case: %w", err)
		}
		defer f.Close()
		in = f
	}

	opts := judgeOptions{}
	opts.profile, _ = cmd.Flags().GetString("profile")
	if cmd.Flags().Changed("threshold") {
		t, _ := cmd.Flags().GetFloat64("threshold")
		opts.threshold = &t
	}

	return runJudge(cmd.Context(), judge, in, cmd.OutOrStdout(), opts)
}

type judgeOptions struct {
	profile   string
	threshold *float64
}

func runJudge(ctx context.Context, judge judgeEvaluator, in io.Reader, out io.Writer, opts judgeOptions) error {
	var input service.JudgeInput
	if err := json.NewDecoder(in).Decode(&input); err != nil {
		return fmt.Errorf("decode judge case: %w", err)
	}
	if input.Draft == "" {
		return fmt.Errorf("judge case has no draft")
	}

	if opts.profile != "" {
		input.Profile = domain.JudgeProfile(opts.profile)
	}
	if input.Profile != "" && !domain.IsValidJudgeProfile(input.Profile) {
		return fmt.Errorf("invalid profile %q", input.Profile)
	}
	if opts.threshold != nil {
		if *opts.threshold < 0 || *opts.threshold > 100 {
			return fmt.Errorf("threshold %.1f outside [0,100]", *opts.threshold)
		}
		input.Threshold = opts.threshold
	}

	outcome, err := judge.Evaluate(ctx, input)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(outcome)
}
