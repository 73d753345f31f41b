package okrctl

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/louisbranch/okrengine/internal/platform/timeouts"
	"github.com/louisbranch/okrengine/internal/services/okr/seed"
)

func (c *cli) alignCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "align",
		Short: "Manage the objective alignment graph",
	}

	var createdBy string
	propose := &cobra.Command{
		Use:   "propose PARENT_ID CHILD_ID",
		Short: "Align CHILD_ID under PARENT_ID unless it would create a cycle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runOperation(cmd, func(ctx context.Context) (any, error) {
				edge, err := c.svc.ProposeAlignment(ctx, args[0], args[1], createdBy)
				if err != nil {
					return nil, err
				}
				return newAlignmentView(edge), nil
			})
		},
	}
	propose.Flags().StringVar(&createdBy, "by", "", "author id")

	remove := &cobra.Command{
		Use:   "remove PARENT_ID CHILD_ID",
		Short: "Remove one alignment edge",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runOperation(cmd, func(ctx context.Context) (any, error) {
				if err := c.svc.RemoveAlignment(ctx, args[0], args[1]); err != nil {
					return nil, err
				}
				return map[string]string{"parent_objective_id": args[0], "child_objective_id": args[1]}, nil
			})
		},
	}

	tree := &cobra.Command{
		Use:   "tree ROOT_ID",
		Short: "Walk the alignment subtree under ROOT_ID depth first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runOperation(cmd, func(ctx context.Context) (any, error) {
				nodes, err := c.svc.AlignmentTree(ctx, args[0])
				if err != nil {
					return nil, err
				}
				return newNodeViews(nodes), nil
			})
		},
	}

	cmd.AddCommand(propose, remove, tree,
		c.alignListCommand("parents OBJECTIVE_ID", "List the direct parents of an objective", c.svcParents),
		c.alignListCommand("children OBJECTIVE_ID", "List the direct children of an objective", c.svcChildren),
	)
	return cmd
}

func (c *cli) svcParents(ctx context.Context, id string) ([]string, error) {
	return c.svc.AlignmentParents(ctx, id)
}

func (c *cli) svcChildren(ctx context.Context, id string) ([]string, error) {
	return c.svc.AlignmentChildren(ctx, id)
}

func (c *cli) alignListCommand(use, short string, list func(context.Context, string) ([]string, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runOperation(cmd, func(ctx context.Context) (any, error) {
				ids, err := list(ctx, args[0])
				if err != nil {
					return nil, err
				}
				if ids == nil {
					ids = []string{}
				}
				return ids, nil
			})
		},
	}
}

func (c *cli) recomputeCommand() *cobra.Command {
	var quarter, objectiveID string
	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Re-run progress and status inference for a period or one objective",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if (quarter == "") == (objectiveID == "") {
				return fmt.Errorf("exactly one of --quarter or --objective is required")
			}
			return c.run(cmd, timeouts.Recompute, func(ctx context.Context) (any, error) {
				if objectiveID != "" {
					objective, found, err := c.svc.RecomputeObjective(ctx, objectiveID)
					if err != nil {
						return nil, err
					}
					if !found {
						return map[string]any{"recomputed": 0}, nil
					}
					return newObjectiveView(objective), nil
				}
				n, err := c.svc.RecomputePeriod(ctx, quarter)
				if err != nil {
					return nil, err
				}
				return map[string]any{"quarter": quarter, "recomputed": n}, nil
			})
		},
	}
	cmd.Flags().StringVar(&quarter, "quarter", "", "recompute every objective in this period")
	cmd.Flags().StringVar(&objectiveID, "objective", "", "recompute a single objective")
	return cmd
}

func (c *cli) importCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Import objectives, key results, check-ins and alignments from YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open seed file: %w", err)
			}
			defer f.Close()
			doc, err := seed.Parse(f)
			if err != nil {
				return err
			}
			return c.run(cmd, timeouts.Recompute, func(ctx context.Context) (any, error) {
				result, err := seed.Apply(ctx, c.svc, doc)
				if err != nil {
					return nil, err
				}
				return map[string]any{
					"objectives":  result.Objectives,
					"key_results": result.KeyResults,
					"check_ins":   result.CheckIns,
					"alignments":  result.Alignments,
				}, nil
			})
		},
	}
}
