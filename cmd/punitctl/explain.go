package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sawpanic/punit/internal/explain"
	"github.com/sawpanic/punit/internal/model"
	"github.com/sawpanic/punit/internal/spec"
	"github.com/sawpanic/punit/internal/verdict"
)

// explainCmd renders the statistical explanation a host test runner would
// have attached to a verdict, given already-observed sample counts. Useful
// for replaying or auditing a prior run's numbers without re-executing the
// subject under test.
func explainCmd(ctx context.Context) *cobra.Command {
	var (
		specDir     string
		useCaseID   string
		version     string
		samples     int
		successes   int
		minPassRate float64
		confidence  float64
		policy      string
		origin      string
		intent      string
	)
	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Render the statistical explanation for an already-observed sample count",
		RunE: func(cmd *cobra.Command, args []string) error {
			if samples <= 0 {
				return fmt.Errorf("--samples must be > 0")
			}
			if successes < 0 || successes > samples {
				return fmt.Errorf("--successes must be in [0, samples]")
			}

			cfg := model.Configuration{
				Samples:             samples,
				MinPassRate:         minPassRate,
				ThresholdConfidence: confidence,
				ThresholdOrigin:     model.ThresholdOrigin(origin),
				Intent:              model.Intent(intent),
			}

			var threshold model.RegressionThreshold
			if useCaseID != "" && version != "" {
				source := spec.NewFileSource(specDir)
				s, err := source.Load(useCaseID, version)
				if err != nil {
					return err
				}
				threshold, err = spec.Derive(s, samples, confidence, spec.Policy(policy))
				if err != nil {
					return err
				}
				cfg.MinPassRate = threshold.MinPassRate
			} else {
				threshold = spec.DeriveInline(minPassRate)
			}

			agg := model.AggregatedResults{SamplesExecuted: samples, Successes: successes}
			v := verdict.Decide(cfg, agg, model.ReasonCompleted)
			e := explain.Build(cfg, threshold, v)

			fmt.Print(explain.Render(e))
			return nil
		},
	}
	cmd.Flags().StringVar(&specDir, "spec-dir", "./specs", "directory of <useCaseId>@<version>.yaml spec files")
	cmd.Flags().StringVar(&useCaseID, "use-case", "", "use case identifier (omit to use --min-pass-rate inline)")
	cmd.Flags().StringVar(&version, "version", "", "spec version")
	cmd.Flags().IntVar(&samples, "samples", 0, "number of samples executed")
	cmd.Flags().IntVar(&successes, "successes", 0, "number of samples that passed")
	cmd.Flags().Float64Var(&minPassRate, "min-pass-rate", 0, "inline minimum pass rate, used when --use-case is omitted")
	cmd.Flags().Float64Var(&confidence, "confidence", 0.95, "confidence level for threshold derivation")
	cmd.Flags().StringVar(&policy, "policy", string(spec.PolicyDerive), "derivation policy: DERIVE, RAW, REQUIRE_MATCHING_SAMPLES")
	cmd.Flags().StringVar(&origin, "origin", string(model.OriginUnspecified), "threshold origin: SLA, SLO, POLICY, EMPIRICAL, UNSPECIFIED")
	cmd.Flags().StringVar(&intent, "intent", string(model.IntentVerification), "test intent: VERIFICATION, SMOKE")
	return cmd
}
