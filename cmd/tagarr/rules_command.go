package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tagarr/tagarr/internal/rules"
)

func newRulesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect the release-group rule file",
	}
	cmd.AddCommand(newRulesListCommand(ctx))
	cmd.AddCommand(newRulesDiscoveredCommand(ctx))
	return cmd
}

func loadRuleSet(ctx *commandContext) (*rules.Set, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	return rules.NewStore(cfg.RulesFile).Load()
}

func newRulesListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every rule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := loadRuleSet(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderRules(set.All()))
			return nil
		},
	}
}

func newRulesDiscoveredCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "discovered",
		Short: "List inactive rules added by discovery, for promotion review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := loadRuleSet(ctx)
			if err != nil {
				return err
			}
			var discovered []rules.Rule
			for _, r := range set.Inactive() {
				if r.Discovered != nil {
					discovered = append(discovered, r)
				}
			}
			if len(discovered) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No discovered rules awaiting review.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderDiscovered(discovered))
			return nil
		},
	}
}

func renderRules(list []rules.Rule) string {
	rows := make([][]string, 0, len(list))
	for _, r := range list {
		rows = append(rows, []string{r.Token, r.Category, r.DisplayName(), string(r.Mode), yesNo(r.IsActive())})
	}
	return renderTable("Rules", []string{"Token", "Category", "Display", "Mode", "Active"}, rows, nil)
}

func renderDiscovered(list []rules.Rule) string {
	rows := make([][]string, 0, len(list))
	for _, r := range list {
		d := r.Discovered
		rows = append(rows, []string{r.Token, r.Category, d.Date, d.Quality, d.Audio, itoa(d.Occurrences), d.FirstSeen})
	}
	return renderTable("Discovered release groups",
		[]string{"Token", "Category", "Date", "Quality", "Audio", "Seen", "First seen"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft})
}
