// Package okrctl implements the okrctl command tree.
package okrctl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	apperrors "github.com/louisbranch/okrengine/internal/platform/errors"
	"github.com/louisbranch/okrengine/internal/platform/timeouts"
	"github.com/louisbranch/okrengine/internal/services/okr/app"
)

// Opener builds the Service a command runs against. The returned closer is
// called once the command finishes.
type Opener func(ctx context.Context, logger *slog.Logger) (*app.Service, io.Closer, error)

// Options configures the command tree.
type Options struct {
	Open Opener
	Out  io.Writer
	Err  io.Writer
}

// OpenFromConfig returns an Opener for cfg.
func OpenFromConfig(cfg app.Config) Opener {
	return func(ctx context.Context, logger *slog.Logger) (*app.Service, io.Closer, error) {
		openCtx, cancel := context.WithTimeout(ctx, timeouts.StorageOpen)
		defer cancel()
		backend, err := app.Open(openCtx, cfg)
		if err != nil {
			return nil, nil, err
		}
		svc := app.NewService(backend,
			app.WithLogger(logger),
			app.WithRecomputeConcurrency(cfg.RecomputeConcurrency),
		)
		return svc, backend, nil
	}
}

type cli struct {
	opts    Options
	verbose bool
	svc     *app.Service
	closer  io.Closer
}

// Execute runs args against the okrctl command tree.
func Execute(ctx context.Context, opts Options, args []string) error {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	c := &cli{opts: opts}
	root := c.rootCommand()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if closeErr := c.close(); err == nil {
		err = closeErr
	}
	return err
}

func (c *cli) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "okrctl",
		Short:         "Manage objectives, key results, check-ins and alignments",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.open(cmd.Context())
		},
	}
	root.SetOut(c.opts.Out)
	root.SetErr(c.opts.Err)
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log every applied operation to stderr")

	root.AddCommand(
		c.objectiveCommand(),
		c.keyResultCommand(),
		c.checkInCommand(),
		c.alignCommand(),
		c.recomputeCommand(),
		c.importCommand(),
	)
	return root
}

func (c *cli) open(ctx context.Context) error {
	if c.svc != nil {
		return nil
	}
	if c.opts.Open == nil {
		return errors.New("no storage configured")
	}
	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(c.opts.Err, &slog.HandlerOptions{Level: level}))
	svc, closer, err := c.opts.Open(ctx, logger)
	if err != nil {
		return err
	}
	c.svc = svc
	c.closer = closer
	return nil
}

func (c *cli) close() error {
	closer := c.closer
	c.svc, c.closer = nil, nil
	if closer == nil {
		return nil
	}
	return closer.Close()
}

// run executes fn under timeout and prints its result as JSON.
func (c *cli) run(cmd *cobra.Command, timeout time.Duration, fn func(ctx context.Context) (any, error)) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	out, err := fn(ctx)
	if err != nil {
		return describe(err)
	}
	if out == nil {
		return nil
	}
	enc := json.NewEncoder(c.opts.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func (c *cli) runOperation(cmd *cobra.Command, fn func(ctx context.Context) (any, error)) error {
	return c.run(cmd, timeouts.Operation, fn)
}

// describe prefixes domain failures with their code.
func describe(err error) error {
	code := apperrors.CodeOf(err)
	if code == apperrors.CodeUnknown {
		return err
	}
	return fmt.Errorf("%s: %w", code, err)
}
