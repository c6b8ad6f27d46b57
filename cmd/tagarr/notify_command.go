package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newNotifyCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Notification utilities",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "test",
		Short: "Send a test notification to every configured notifier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.buildApp()
			if err != nil {
				return err
			}
			if a.notifier.Len() == 0 {
				return errors.New("no notifiers configured")
			}

			results := a.notifier.TestAll(cmd.Context())
			rows := make([][]string, 0, len(results))
			failed := 0
			for _, r := range results {
				status := "ok"
				if !r.Success {
					status = "FAIL"
					failed++
				}
				rows = append(rows, []string{r.Name, r.Type, status, r.Message})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable("Notification test", []string{"Name", "Type", "Status", "Message"}, rows, nil))

			if failed > 0 {
				return fmt.Errorf("%d of %d notifiers failed", failed, len(results))
			}
			return nil
		},
	})
	return cmd
}
