package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewInstanceCmd создаёт группу команд для управления instances.
func NewInstanceCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "instance",
		Short: "Manage workflow instances",
	}

	cmd.AddCommand(
		newInstanceListCmd(clientFn, outputFn),
		newInstanceStartCmd(clientFn, outputFn),
		newInstanceShowCmd(clientFn, outputFn),
		newInstanceExecuteCmd(clientFn, outputFn),
		newInstanceSuspendCmd(clientFn, outputFn),
		newInstanceResumeCmd(clientFn, outputFn),
		newInstanceCancelCmd(clientFn, outputFn),
		newInstanceEventsCmd(clientFn, outputFn),
	)

	return cmd
}

func instanceHeaders() []string {
	return []string{"ID", "CASE_REF", "STATUS", "PRIORITY", "VERSION", "STARTED"}
}

func instanceRow(i InstanceResponse) []string {
	return []string{
		i.ID, i.CaseRef, i.Status, i.Priority,
		strconv.Itoa(i.DefinitionVersion), i.StartedAt,
	}
}

// parseKeyValues парсит флаги KEY=VALUE в map.
func parseKeyValues(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	result := make(map[string]any, len(pairs))
	for _, kv := range pairs {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid value format %q, expected KEY=VALUE", kv)
		}
		result[parts[0]] = parts[1]
	}
	return result, nil
}

func newInstanceListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var definitionID string
	var caseRef string
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workflow instances",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			instances, err := client.ListInstances(ListInstancesOpts{
				DefinitionID: definitionID,
				CaseRef:      caseRef,
				Status:       status,
				Limit:        limit,
			})
			if err != nil {
				return err
			}

			rows := make([][]string, len(instances))
			for i, inst := range instances {
				rows[i] = instanceRow(inst)
			}

			out.Print(instanceHeaders(), rows, instances)
			return nil
		},
	}

	cmd.Flags().StringVar(&definitionID, "definition-id", "", "Filter by definition ID")
	cmd.Flags().StringVar(&caseRef, "case-ref", "", "Filter by case reference")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newInstanceStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var definitionName string
	var caseRef string
	var priority string
	var deviceType string
	var serviceType string
	var customerTier string
	var contextPairs []string
	var actor string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a new workflow instance",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			ctx, err := parseKeyValues(contextPairs)
			if err != nil {
				return err
			}

			inst, err := client.StartInstance(StartInstanceRequest{
				DefinitionName: definitionName,
				CaseRef:        caseRef,
				Priority:       priority,
				DeviceType:     deviceType,
				ServiceType:    serviceType,
				CustomerTier:   customerTier,
				Context:        ctx,
				StartedBy:      actor,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Instance started: %s", inst.ID))
			out.Print(instanceHeaders(), [][]string{instanceRow(*inst)}, inst)
			return nil
		},
	}

	cmd.Flags().StringVar(&definitionName, "definition", "", "Definition name (required)")
	cmd.Flags().StringVar(&caseRef, "case-ref", "", "Case reference (required)")
	cmd.Flags().StringVar(&priority, "priority", "", "Priority (low/normal/high/critical)")
	cmd.Flags().StringVar(&deviceType, "device-type", "", "Case device type")
	cmd.Flags().StringVar(&serviceType, "service-type", "", "Case service type")
	cmd.Flags().StringVar(&customerTier, "customer-tier", "", "Case customer tier")
	cmd.Flags().StringSliceVar(&contextPairs, "context", nil, "Context values as KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&actor, "actor", "", "Who starts the instance")
	cmd.MarkFlagRequired("definition")
	cmd.MarkFlagRequired("case-ref")

	return cmd
}

func newInstanceShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show instance details with steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			hydrated, err := client.GetInstance(args[0])
			if err != nil {
				return err
			}

			out.Print(instanceHeaders(), [][]string{instanceRow(hydrated.Instance)}, hydrated)
			if out.jsonMode {
				return nil
			}

			// Таблица шагов следом за instance
			headers := []string{"STEP_INSTANCE_ID", "STEP", "TYPE", "STATUS", "COMPLETED_BY"}
			rows := make([][]string, len(hydrated.Steps))
			for i, s := range hydrated.Steps {
				rows[i] = []string{s.ID, s.StepName, s.Type, s.Status, s.CompletedBy}
			}
			out.Table(headers, rows)
			return nil
		},
	}
}

func newInstanceExecuteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var actor string
	var dataPairs []string
	var comment string

	cmd := &cobra.Command{
		Use:   "execute INSTANCE_ID STEP_INSTANCE_ID",
		Short: "Execute an active step",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			data, err := parseKeyValues(dataPairs)
			if err != nil {
				return err
			}

			inst, err := client.ExecuteStep(args[0], args[1], ExecuteStepRequest{
				Actor:   actor,
				Data:    data,
				Comment: comment,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Step executed, instance status: %s", inst.Status))
			out.Print(instanceHeaders(), [][]string{instanceRow(*inst)}, inst)
			return nil
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "", "Who executes the step (required)")
	cmd.Flags().StringSliceVar(&dataPairs, "data", nil, "Execution data as KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&comment, "comment", "", "Execution comment")
	cmd.MarkFlagRequired("actor")

	return cmd
}

func newInstanceSuspendCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "suspend ID",
		Short: "Suspend a running instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			hydrated, err := client.SuspendInstance(args[0], actor)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Instance suspended: %s", args[0]))
			out.Print(instanceHeaders(), [][]string{instanceRow(hydrated.Instance)}, hydrated)
			return nil
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "", "Who suspends the instance (required)")
	cmd.MarkFlagRequired("actor")

	return cmd
}

func newInstanceResumeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "resume ID",
		Short: "Resume a suspended instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			hydrated, err := client.ResumeInstance(args[0], actor)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Instance resumed: %s", args[0]))
			out.Print(instanceHeaders(), [][]string{instanceRow(hydrated.Instance)}, hydrated)
			return nil
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "", "Who resumes the instance (required)")
	cmd.MarkFlagRequired("actor")

	return cmd
}

func newInstanceCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var actor string
	var reason string

	cmd := &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			hydrated, err := client.CancelInstance(args[0], actor, reason)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Instance cancelled: %s", args[0]))
			out.Print(instanceHeaders(), [][]string{instanceRow(hydrated.Instance)}, hydrated)
			return nil
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "", "Who cancels the instance (required)")
	cmd.Flags().StringVar(&reason, "reason", "", "Cancellation reason")
	cmd.MarkFlagRequired("actor")

	return cmd
}

func newInstanceEventsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "events ID",
		Short: "Show instance event log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			events, err := client.ListInstanceEvents(args[0])
			if err != nil {
				return err
			}

			headers := []string{"TIME", "TYPE", "ACTOR", "STEP_INSTANCE_ID"}
			rows := make([][]string, len(events))
			for i, e := range events {
				rows[i] = []string{e.CreatedAt, e.Type, e.Actor, e.StepInstanceID}
			}

			out.Print(headers, rows, events)
			return nil
		},
	}
}
