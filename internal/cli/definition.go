package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

// NewDefinitionCmd создаёт группу команд для управления definitions.
func NewDefinitionCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "definition",
		Short: "Manage workflow definitions",
	}

	cmd.AddCommand(
		newDefinitionListCmd(clientFn, outputFn),
		newDefinitionCreateCmd(clientFn, outputFn),
		newDefinitionValidateCmd(clientFn, outputFn),
		newDefinitionShowCmd(clientFn, outputFn),
		newDefinitionActivateCmd(clientFn, outputFn),
		newDefinitionArchiveCmd(clientFn, outputFn),
		newDefinitionVersionsCmd(clientFn, outputFn),
	)

	return cmd
}

func definitionHeaders() []string {
	return []string{"ID", "NAME", "VERSION", "STATUS", "CREATED"}
}

func definitionRow(d DefinitionResponse) []string {
	return []string{d.ID, d.Name, strconv.Itoa(d.Version), d.Status, d.CreatedAt}
}

func newDefinitionListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workflow definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			defs, err := client.ListDefinitions(ListDefinitionsOpts{
				Name:   name,
				Status: status,
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			rows := make([][]string, len(defs))
			for i, d := range defs {
				rows[i] = definitionRow(d)
			}

			out.Print(definitionHeaders(), rows, defs)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Filter by definition name")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (draft/active/archived)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newDefinitionCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a draft definition version from JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read definition file: %w", err)
			}
			if !json.Valid(data) {
				return fmt.Errorf("definition file is not valid JSON")
			}

			def, err := client.CreateDefinition(json.RawMessage(data))
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Definition created: %s (version %d)", def.ID, def.Version))
			out.Print(definitionHeaders(), [][]string{definitionRow(*def)}, def)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Path to definition JSON file (required)")
	cmd.MarkFlagRequired("file")

	return cmd
}

func newDefinitionValidateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a definition without saving it",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read definition file: %w", err)
			}
			if !json.Valid(data) {
				return fmt.Errorf("definition file is not valid JSON")
			}

			result, err := client.ValidateDefinition(json.RawMessage(data))
			if err != nil {
				return err
			}

			if result.Valid {
				out.Success("Definition is valid")
				return nil
			}

			headers := []string{"FIELD", "CODE", "MESSAGE"}
			rows := make([][]string, len(result.Errors))
			for i, e := range result.Errors {
				rows[i] = []string{e.Field, e.Code, e.Message}
			}

			out.Print(headers, rows, result)
			return fmt.Errorf("definition has %d validation errors", len(result.Errors))
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Path to definition JSON file (required)")
	cmd.MarkFlagRequired("file")

	return cmd
}

func newDefinitionShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show definition details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			def, err := client.GetDefinition(args[0])
			if err != nil {
				return err
			}

			out.Print(definitionHeaders(), [][]string{definitionRow(*def)}, def)
			return nil
		},
	}
}

func newDefinitionActivateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "activate ID",
		Short: "Activate a definition version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			def, err := client.ActivateDefinition(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Definition activated: %s version %d", def.Name, def.Version))
			out.Print(definitionHeaders(), [][]string{definitionRow(*def)}, def)
			return nil
		},
	}
}

func newDefinitionArchiveCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "archive ID",
		Short: "Archive a definition version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.ArchiveDefinition(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Definition archived: %s", args[0]))
			return nil
		},
	}
}

func newDefinitionVersionsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "versions NAME",
		Short: "List all versions of a definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			versions, err := client.ListDefinitionVersions(args[0])
			if err != nil {
				return err
			}

			rows := make([][]string, len(versions))
			for i, v := range versions {
				rows[i] = definitionRow(v)
			}

			out.Print(definitionHeaders(), rows, versions)
			return nil
		},
	}
}
