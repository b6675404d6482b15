package cmd

import (
	"fmt"

	"github.com/gophertribe/devtool/test"
	"github.com/spf13/cobra"
)

// QualityCmds returns the test, lint and integration-test commands.
func QualityCmds() []*cobra.Command {
	steps := []struct {
		use, short, what string
		run              func() error
	}{
		{"test", "Run unit tests (fake buses and pins, no hardware)", "tests", func() error { return test.Test() }},
		{"lint", "Run linting", "linting", func() error { return test.Lint() }},
		{"integration-test", "Run tests against an attached PN532", "integration testing", func() error { return test.Integ() }},
	}
	cmds := make([]*cobra.Command, 0, len(steps))
	for _, step := range steps {
		cmds = append(cmds, &cobra.Command{
			Use:   step.use,
			Short: step.short,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := step.run(); err != nil {
					return fmt.Errorf("failed to run %s: %w", step.what, err)
				}
				return nil
			},
		})
	}
	return cmds
}
