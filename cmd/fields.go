package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tanpawarit/chative-crm/crm"
	contractx "github.com/tanpawarit/chative-crm/crm/contract"
	"github.com/tanpawarit/chative-crm/crm/tool"
)

var fieldsCmd = &cobra.Command{
	Use:   "fields [entity]",
	Short: "Print the updatable fields of the configured CRM",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := settings()
		if err != nil {
			return err
		}
		m, err := crm.LoadMapping(s.System, s.MappingDir)
		if err != nil {
			return err
		}

		entities := m.Entities()
		if len(args) == 1 {
			entities = []contractx.EntityType{contractx.ParseEntityType(args[0])}
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s field mapping v%s\n", m.System(), m.Version())
		for _, e := range entities {
			fmt.Fprintln(out)
			fmt.Fprintln(out, m.FieldGuide(e))
		}
		return nil
	},
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Print the agent tool definitions as OpenAI function JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := settings()
		if err != nil {
			return err
		}
		m, err := crm.LoadMapping(s.System, s.MappingDir)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(tool.OpenAITools(m))
	},
}

func init() {
	rootCmd.AddCommand(fieldsCmd, toolsCmd)
}
