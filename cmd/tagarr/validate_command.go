package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

type check struct {
	name   string
	err    error
	detail string
}

func newValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check configuration, rules and registry connectivity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.buildApp()
			if err != nil {
				return err
			}

			checks := []check{{name: "configuration", detail: ctx.flags.config}}

			set, err := a.tagging.LoadRules()
			c := check{name: "rules", err: err}
			if err == nil {
				c.detail = fmt.Sprintf("%d active, %d inactive", len(set.Active()), len(set.Inactive()))
			}
			checks = append(checks, c)

			for _, reg := range a.registries() {
				checks = append(checks, check{name: "registry " + reg.Name(), err: reg.Validate(cmd.Context())})
			}

			if a.analyzer != nil {
				c := check{name: "analyzer", detail: "ffmpeg and dovi_tool found"}
				if !a.analyzer.IsAvailable() {
					c.detail = "ffmpeg or dovi_tool missing; DV items fail safe to no-dv"
				}
				checks = append(checks, c)
			}

			checks = append(checks, check{name: "notifiers", detail: fmt.Sprintf("%d configured", a.notifier.Len())})

			rows := make([][]string, 0, len(checks))
			var errs []error
			for _, c := range checks {
				status := "ok"
				detail := c.detail
				if c.err != nil {
					status = "FAIL"
					detail = c.err.Error()
					errs = append(errs, fmt.Errorf("%s: %w", c.name, c.err))
				}
				rows = append(rows, []string{c.name, status, detail})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable("Validation", []string{"Check", "Status", "Detail"}, rows, nil))

			return errors.Join(errs...)
		},
	}
}
