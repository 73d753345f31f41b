package okrctl

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/louisbranch/okrengine/internal/services/okr/domain"
	"github.com/louisbranch/okrengine/internal/services/okr/storage"
)

func (c *cli) objectiveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "objective",
		Aliases: []string{"obj"},
		Short:   "Create, inspect and close objectives",
	}
	cmd.AddCommand(
		c.objectiveCreateCommand(),
		c.objectiveGetCommand(),
		c.objectiveListCommand(),
		c.objectiveTransitionCommand("close", "Mark an objective CLOSED", c.svcClose),
		c.objectiveTransitionCommand("abandon", "Mark an objective ABANDONED", c.svcAbandon),
		c.objectiveTransitionCommand("reopen", "Return a closed or abandoned objective to automatic status", c.svcReopen),
		c.objectiveDeleteCommand(),
		c.objectiveSummaryCommand(),
	)
	return cmd
}

func (c *cli) objectiveCreateCommand() *cobra.Command {
	var (
		in     domain.ObjectiveInput
		weight string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an objective",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w, err := parseOptionalDecimal("weight", weight)
			if err != nil {
				return err
			}
			in.Weight = w
			if in.CreatedBy == "" {
				in.CreatedBy = in.OwnerID
			}
			return c.runOperation(cmd, func(ctx context.Context) (any, error) {
				objective, err := c.svc.CreateObjective(ctx, in)
				if err != nil {
					return nil, err
				}
				return newObjectiveView(objective), nil
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&in.Title, "title", "", "objective title")
	flags.StringVar(&in.Description, "description", "", "objective description")
	flags.StringVar(&in.OwnerID, "owner", "", "owning user id")
	flags.StringVar(&in.TeamID, "team", "", "team id")
	flags.StringVar(&in.WorkspaceID, "workspace", "", "workspace id")
	flags.StringVar(&in.Quarter, "quarter", "", "reporting period, e.g. 2026-Q3 or 2026-H2")
	flags.StringVar(&in.ParentID, "parent", "", "parent objective id in the KPI hierarchy")
	flags.StringVar(&in.CreatedBy, "created-by", "", "author id (defaults to --owner)")
	flags.StringVar(&weight, "weight", "", "objective weight (default 1)")
	return cmd
}

func (c *cli) objectiveGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get OBJECTIVE_ID",
		Short: "Show an objective with per key result progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runOperation(cmd, func(ctx context.Context) (any, error) {
				report, err := c.svc.ObjectiveProgress(ctx, args[0])
				if err != nil {
					return nil, err
				}
				return newReportView(report), nil
			})
		},
	}
}

func (c *cli) objectiveListCommand() *cobra.Command {
	var (
		filter storage.ObjectiveFilter
		status string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List objectives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if status != "" {
				parsed, err := domain.ParseStatus(status)
				if err != nil {
					return err
				}
				filter.Status = parsed
			}
			return c.runOperation(cmd, func(ctx context.Context) (any, error) {
				objectives, err := c.svc.ListObjectives(ctx, filter)
				if err != nil {
					return nil, err
				}
				return newObjectiveViews(objectives), nil
			})
		},
	}
	addFilterFlags(cmd, &filter)
	cmd.Flags().StringVar(&status, "status", "", "only objectives in this status")
	return cmd
}

func (c *cli) svcClose(ctx context.Context, id string) (domain.Objective, error) {
	return c.svc.CloseObjective(ctx, id)
}

func (c *cli) svcAbandon(ctx context.Context, id string) (domain.Objective, error) {
	return c.svc.AbandonObjective(ctx, id)
}

func (c *cli) svcReopen(ctx context.Context, id string) (domain.Objective, error) {
	return c.svc.ReopenObjective(ctx, id)
}

func (c *cli) objectiveTransitionCommand(use, short string, apply func(context.Context, string) (domain.Objective, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " OBJECTIVE_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runOperation(cmd, func(ctx context.Context) (any, error) {
				objective, err := apply(ctx, args[0])
				if err != nil {
					return nil, err
				}
				return newObjectiveView(objective), nil
			})
		},
	}
}

func (c *cli) objectiveDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete OBJECTIVE_ID",
		Short: "Delete an objective with its key results, check-ins and alignments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runOperation(cmd, func(ctx context.Context) (any, error) {
				if err := c.svc.DeleteObjective(ctx, args[0]); err != nil {
					return nil, err
				}
				return map[string]string{"deleted": args[0]}, nil
			})
		},
	}
}

func (c *cli) objectiveSummaryCommand() *cobra.Command {
	var (
		filter storage.ObjectiveFilter
		top    int
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Summarize objective progress and status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runOperation(cmd, func(ctx context.Context) (any, error) {
				sum, err := c.svc.Summarize(ctx, filter)
				if err != nil {
					return nil, err
				}
				var best []domain.Objective
				if top > 0 {
					best, err = c.svc.TopPerformers(ctx, filter, top)
					if err != nil {
						return nil, err
					}
				}
				return newSummaryView(sum, best), nil
			})
		},
	}
	addFilterFlags(cmd, &filter)
	cmd.Flags().IntVar(&top, "top", 0, "include the N objectives with the highest progress")
	return cmd
}

func addFilterFlags(cmd *cobra.Command, filter *storage.ObjectiveFilter) {
	flags := cmd.Flags()
	flags.StringVar(&filter.Quarter, "quarter", "", "only objectives in this period")
	flags.StringVar(&filter.OwnerID, "owner", "", "only objectives owned by this user")
	flags.StringVar(&filter.TeamID, "team", "", "only objectives of this team")
	flags.StringVar(&filter.WorkspaceID, "workspace", "", "only objectives of this workspace")
}

func parseDecimal(name, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid %s %q", name, value)
	}
	return d, nil
}

func parseOptionalDecimal(name, value string) (decimal.NullDecimal, error) {
	if strings.TrimSpace(value) == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := parseDecimal(name, value)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}
