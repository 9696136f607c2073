package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	pe "github.com/sawpanic/punit/internal/errors"
	"github.com/sawpanic/punit/internal/spec"
)

// validateCmd loads a spec file from --spec-dir and reports whether it
// satisfies spec.md §4.5's load-time invariants (approval metadata present,
// experimental basis well-formed, minPassRate in range).
func validateCmd(ctx context.Context) *cobra.Command {
	var (
		specDir   string
		useCaseID string
		version   string
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate an approved spec file's load-time invariants",
		RunE: func(cmd *cobra.Command, args []string) error {
			if useCaseID == "" || version == "" {
				return fmt.Errorf("--use-case and --version are required")
			}

			source := spec.NewFileSource(specDir)
			s, err := source.Load(useCaseID, version)
			if err != nil {
				if pe.Is(err, pe.KindSpecificationNotFound) {
					return fmt.Errorf("no spec found for %s@%s in %s", useCaseID, version, specDir)
				}
				return err
			}

			if err := spec.Validate(s); err != nil {
				log.Error().Err(err).Str("spec", s.Key()).Msg("spec failed validation")
				return err
			}

			fmt.Printf("%s: valid (approved by %s at %s)\n", s.Key(), s.ApprovedBy, s.ApprovedAt.Format("2006-01-02"))
			return nil
		},
	}
	cmd.Flags().StringVar(&specDir, "spec-dir", "./specs", "directory of <useCaseId>@<version>.yaml spec files")
	cmd.Flags().StringVar(&useCaseID, "use-case", "", "use case identifier")
	cmd.Flags().StringVar(&version, "version", "", "spec version")
	return cmd
}
