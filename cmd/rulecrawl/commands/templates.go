package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/rulecrawl/pkg/rule"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List and show built-in rule templates",
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List built-in templates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tRULES\tDESCRIPTION")
		for _, t := range rule.Templates() {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", t.Name, len(t.Rules), t.Description)
		}
		return tw.Flush()
	},
}

var templatesShowCmd = &cobra.Command{
	Use:   "show NAME",
	Short: "Print a template as a rule file",
	Long: `Print a built-in template in a form 'rulecrawl scrape --rules' accepts,
so it can be saved and edited:

  rulecrawl templates show "contact information" > contact.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, ok := rule.LookupTemplate(args[0])
		if !ok {
			return fmt.Errorf("unknown template: %q", args[0])
		}

		format, _ := cmd.Flags().GetString("format")
		switch format {
		case "json":
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(t)
		case "yaml", "":
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(t); err != nil {
				return err
			}
			return enc.Close()
		default:
			return fmt.Errorf("unsupported format: %s (use yaml or json)", format)
		}
	},
}

func init() {
	rootCmd.AddCommand(templatesCmd)
	templatesCmd.AddCommand(templatesListCmd, templatesShowCmd)

	templatesShowCmd.Flags().String("format", "yaml", "output format: yaml, json")
}
