package okrctl

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/louisbranch/okrengine/internal/services/okr/domain"
	"github.com/louisbranch/okrengine/internal/services/okr/planning"
)

func (c *cli) keyResultCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "keyresult",
		Aliases: []string{"kr"},
		Short:   "Manage the key results of an objective",
	}
	cmd.AddCommand(
		c.keyResultCreateCommand(),
		c.keyResultUpdateCommand(),
		c.keyResultDeleteCommand(),
		c.keyResultDuplicateCommand(),
	)
	return cmd
}

func (c *cli) keyResultCreateCommand() *cobra.Command {
	var (
		in             domain.KeyResultInput
		metric         string
		target, weight string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add a key result to an objective",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := parseDecimal("target", target)
			if err != nil {
				return err
			}
			w, err := parseOptionalDecimal("weight", weight)
			if err != nil {
				return err
			}
			in.TargetValue = t
			in.Weight = w
			in.MetricType = domain.MetricType(metric)
			return c.runOperation(cmd, func(ctx context.Context) (any, error) {
				kr, err := c.svc.CreateKeyResult(ctx, in)
				if err != nil {
					return nil, err
				}
				return newKeyResultView(kr), nil
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&in.ObjectiveID, "objective", "", "owning objective id")
	flags.StringVar(&in.Title, "title", "", "key result title")
	flags.StringVar(&in.Description, "description", "", "key result description")
	flags.StringVar(&metric, "metric", "", "NUMBER, PERCENT, CURRENCY or BOOLEAN (default NUMBER)")
	flags.StringVar(&in.Unit, "unit", "", "display unit")
	flags.StringVar(&target, "target", "", "target value, greater than 0")
	flags.StringVar(&weight, "weight", "", "weight in the objective average (default 1)")
	return cmd
}

func (c *cli) keyResultUpdateCommand() *cobra.Command {
	var title, description, unit, metric, target, weight string
	cmd := &cobra.Command{
		Use:   "update KEY_RESULT_ID",
		Short: "Edit a key result and recompute its objective",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var patch planning.KeyResultPatch
			flags := cmd.Flags()
			if flags.Changed("title") {
				patch.Title = &title
			}
			if flags.Changed("description") {
				patch.Description = &description
			}
			if flags.Changed("unit") {
				patch.Unit = &unit
			}
			if flags.Changed("metric") {
				m := domain.MetricType(metric)
				patch.MetricType = &m
			}
			var err error
			if patch.TargetValue, err = parseOptionalDecimal("target", target); err != nil {
				return err
			}
			if patch.Weight, err = parseOptionalDecimal("weight", weight); err != nil {
				return err
			}
			return c.runOperation(cmd, func(ctx context.Context) (any, error) {
				kr, err := c.svc.UpdateKeyResult(ctx, args[0], patch)
				if err != nil {
					return nil, err
				}
				return newKeyResultView(kr), nil
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&title, "title", "", "new title")
	flags.StringVar(&description, "description", "", "new description")
	flags.StringVar(&unit, "unit", "", "new unit")
	flags.StringVar(&metric, "metric", "", "new metric type")
	flags.StringVar(&target, "target", "", "new target value")
	flags.StringVar(&weight, "weight", "", "new weight")
	return cmd
}

func (c *cli) keyResultDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete KEY_RESULT_ID",
		Short: "Delete a key result and its check-ins",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runOperation(cmd, func(ctx context.Context) (any, error) {
				if err := c.svc.DeleteKeyResult(ctx, args[0]); err != nil {
					return nil, err
				}
				return map[string]string{"deleted": args[0]}, nil
			})
		},
	}
}

func (c *cli) keyResultDuplicateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "duplicate KEY_RESULT_ID",
		Short: "Copy a key result under the same objective",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runOperation(cmd, func(ctx context.Context) (any, error) {
				kr, err := c.svc.DuplicateKeyResult(ctx, args[0])
				if err != nil {
					return nil, err
				}
				return newKeyResultView(kr), nil
			})
		},
	}
}
