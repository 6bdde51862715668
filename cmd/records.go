package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	contractx "github.com/tanpawarit/chative-crm/crm/contract"
	"github.com/tanpawarit/chative-crm/crm/tool"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Fuzzy search people, companies or leads",
	Args:  cobra.MinimumNArgs(1),
	RunE: runWithToolkit(func(ctx context.Context, kit *tool.Toolkit, args []string) contractx.Result {
		return kit.Search(ctx, strings.Join(args, " "))
	}),
}

var contactIn contractx.ContactInput

var contactCmd = &cobra.Command{
	Use:   "contact",
	Short: "Create a contact (a lead on Zoho)",
	Args:  cobra.NoArgs,
	RunE: runWithToolkit(func(ctx context.Context, kit *tool.Toolkit, _ []string) contractx.Result {
		return kit.CreateContact(ctx, contactIn)
	}),
}

var taskIn contractx.TaskInput

var taskCmd = &cobra.Command{
	Use:   "task <title>",
	Short: "Create a task, optionally linked to a contact",
	Args:  cobra.MinimumNArgs(1),
	RunE: runWithToolkit(func(ctx context.Context, kit *tool.Toolkit, args []string) contractx.Result {
		in := taskIn
		in.Title = strings.Join(args, " ")
		return kit.CreateTask(ctx, in)
	}),
}

var noteIn contractx.NoteInput

var noteCmd = &cobra.Command{
	Use:   "note <content>",
	Short: "Attach a note to a contact",
	Args:  cobra.MinimumNArgs(1),
	RunE: runWithToolkit(func(ctx context.Context, kit *tool.Toolkit, args []string) contractx.Result {
		in := noteIn
		in.Content = strings.Join(args, " ")
		return kit.CreateNote(ctx, in)
	}),
}

var (
	updateType   string
	updateSet    map[string]string
	updateFields string
)

var updateCmd = &cobra.Command{
	Use:   "update <target>",
	Short: "Update whitelisted fields of a record",
	Long: `Update whitelisted fields of a record. Fields are given as repeated
--set name=value pairs or as one --fields JSON object; see "crmctl fields".`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWithToolkit(func(ctx context.Context, kit *tool.Toolkit, args []string) contractx.Result {
		fields, err := updateArgs(updateSet, updateFields)
		if err != nil {
			return contractx.Invalid(fmt.Sprintf("Update not applied: %v", err), err)
		}
		return kit.UpdateEntity(ctx, strings.Join(args, " "), contractx.ParseEntityType(updateType), fields)
	}),
}

var detailsCmd = &cobra.Command{
	Use:   "details <target>",
	Short: "Show all stored details of a contact",
	Args:  cobra.MinimumNArgs(1),
	RunE: runWithToolkit(func(ctx context.Context, kit *tool.Toolkit, args []string) contractx.Result {
		return kit.GetDetails(ctx, strings.Join(args, " "))
	}),
}

var undoCmd = &cobra.Command{
	Use:   "undo",
	Short: "Delete the record created last by --user",
	Args:  cobra.NoArgs,
	RunE: runWithToolkit(func(ctx context.Context, kit *tool.Toolkit, _ []string) contractx.Result {
		return kit.Undo(ctx)
	}),
}

// updateArgs merges --fields JSON with --set pairs; pairs win.
func updateArgs(set map[string]string, raw string) (map[string]any, error) {
	fields := map[string]any{}
	if raw = strings.TrimSpace(raw); raw != "" {
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			return nil, fmt.Errorf("%w: --fields must be a JSON object", contractx.ErrValidation)
		}
	}
	for k, v := range set {
		fields[strings.TrimSpace(k)] = v
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields given (use --set or --fields)", contractx.ErrValidation)
	}
	return fields, nil
}

func init() {
	rootCmd.AddCommand(searchCmd, contactCmd, taskCmd, noteCmd, updateCmd, detailsCmd, undoCmd)

	contactCmd.Flags().StringVar(&contactIn.FirstName, "first", "", "First name")
	contactCmd.Flags().StringVar(&contactIn.LastName, "last", "", "Last name")
	contactCmd.Flags().StringVar(&contactIn.Company, "company", "", "Company name")
	contactCmd.Flags().StringVar(&contactIn.Email, "email", "", "Email address")
	contactCmd.Flags().StringVar(&contactIn.Phone, "phone", "", "Phone number with country code")

	taskCmd.Flags().StringVar(&taskIn.Body, "body", "", "Task description")
	taskCmd.Flags().StringVar(&taskIn.DueDate, "due", "", "Due date as YYYY-MM-DD")
	taskCmd.Flags().StringVar(&taskIn.Target, "target", "", "Contact to link the task to")

	noteCmd.Flags().StringVar(&noteIn.Target, "target", "", "Contact the note belongs to")
	noteCmd.Flags().StringVar(&noteIn.Title, "title", "", "Note title")
	noteCmd.MarkFlagRequired("target")

	updateCmd.Flags().StringVarP(&updateType, "type", "t", "person", "Entity type (person, company or lead)")
	updateCmd.Flags().StringToStringVar(&updateSet, "set", nil, "Field to set as name=value, repeatable")
	updateCmd.Flags().StringVar(&updateFields, "fields", "", "Fields as a JSON object")
}
