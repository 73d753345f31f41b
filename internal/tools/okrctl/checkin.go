package okrctl

import (
	"context"

	"github.com/spf13/cobra"
)

func (c *cli) checkInCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "checkin",
		Aliases: []string{"ci"},
		Short:   "Record progress against key results",
	}
	cmd.AddCommand(
		c.checkInRecordCommand(),
		c.checkInAmendCommand(),
		c.checkInRetractCommand(),
		c.checkInHistoryCommand(),
		c.checkInRecentCommand(),
	)
	return cmd
}

func (c *cli) checkInRecordCommand() *cobra.Command {
	var note, author string
	cmd := &cobra.Command{
		Use:   "record KEY_RESULT_ID VALUE",
		Short: "Record a check-in; negative values count as 0",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parseDecimal("value", args[1])
			if err != nil {
				return err
			}
			return c.runOperation(cmd, func(ctx context.Context) (any, error) {
				checkIn, err := c.svc.RecordCheckIn(ctx, args[0], value, note, author)
				if err != nil {
					return nil, err
				}
				return newCheckInView(checkIn), nil
			})
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "free-form note")
	cmd.Flags().StringVar(&author, "author", "", "author id")
	return cmd
}

func (c *cli) checkInAmendCommand() *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   "amend CHECK_IN_ID VALUE",
		Short: "Edit a check-in within 24 hours of its creation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := parseDecimal("value", args[1])
			if err != nil {
				return err
			}
			return c.runOperation(cmd, func(ctx context.Context) (any, error) {
				checkIn, err := c.svc.AmendCheckIn(ctx, args[0], value, note)
				if err != nil {
					return nil, err
				}
				return newCheckInView(checkIn), nil
			})
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "replacement note")
	return cmd
}

func (c *cli) checkInRetractCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "retract CHECK_IN_ID",
		Short: "Delete a check-in and roll its key result back",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runOperation(cmd, func(ctx context.Context) (any, error) {
				if err := c.svc.RetractCheckIn(ctx, args[0]); err != nil {
					return nil, err
				}
				return map[string]string{"retracted": args[0]}, nil
			})
		},
	}
}

func (c *cli) checkInHistoryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history KEY_RESULT_ID",
		Short: "List the check-ins of a key result, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runOperation(cmd, func(ctx context.Context) (any, error) {
				checkIns, err := c.svc.CheckInHistory(ctx, args[0])
				if err != nil {
					return nil, err
				}
				return newCheckInViews(checkIns), nil
			})
		},
	}
}

func (c *cli) checkInRecentCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List the latest check-ins across all key results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runOperation(cmd, func(ctx context.Context) (any, error) {
				checkIns, err := c.svc.RecentCheckIns(ctx, limit)
				if err != nil {
					return nil, err
				}
				return newCheckInViews(checkIns), nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of check-ins")
	return cmd
}
