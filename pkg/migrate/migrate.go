// Package migrate runs schema migration commands (up, down, status) against
// a service-provided set of operations.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nimburion/taskmanager/pkg/observability/logger"
)

const (
	CommandUp     = "up"
	CommandDown   = "down"
	CommandStatus = "status"

	defaultTimeout = 60 * time.Second
)

// ErrUsage is returned for unknown commands or malformed step counts.
var ErrUsage = errors.New("usage: migrate [up|down|status] [steps]")

type PendingMigration struct {
	Version string
	Name    string
}

// Status lists the versions already applied and the ones still waiting.
type Status struct {
	AppliedVersions []string
	Pending         []PendingMigration
}

// Operations are the hooks a service exposes for its stored data. Up and
// Down report how many documents or versions they touched.
type Operations struct {
	Up     func(ctx context.Context) (int, error)
	Down   func(ctx context.Context, steps int) (int, error)
	Status func(ctx context.Context) (*Status, error)
}

func (o Operations) complete() bool {
	return o.Up != nil && o.Down != nil && o.Status != nil
}

// Options describe where a command runs. Target names the migrated data,
// such as a collection.
type Options struct {
	ServiceName string
	Target      string
	Timeout     time.Duration
	Logger      logger.Logger
}

func (o Options) validate() error {
	switch {
	case o.Logger == nil:
		return errors.New("migration logger is required")
	case o.ServiceName == "":
		return errors.New("migration service name is required")
	case o.Target == "":
		return errors.New("migration target is required")
	}
	return nil
}

// ParseArgs reads "[command] [steps]". The command defaults to up and steps
// to 1.
func ParseArgs(args []string) (string, int, error) {
	command, steps := CommandUp, 1
	if len(args) > 0 {
		command = args[0]
	}
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return "", 0, fmt.Errorf("%w: invalid steps %q", ErrUsage, args[1])
		}
		steps = n
	}
	return command, steps, nil
}

// Run parses args and executes the command.
func Run(ctx context.Context, args []string, opts Options, ops Operations) error {
	command, steps, err := ParseArgs(args)
	if err != nil {
		return err
	}
	return RunParsed(ctx, command, steps, opts, ops)
}

// RunParsed executes one command bounded by opts.Timeout.
func RunParsed(ctx context.Context, command string, steps int, opts Options, ops Operations) error {
	if err := opts.validate(); err != nil {
		return err
	}
	if !ops.complete() {
		return errors.New("migration operations are incomplete")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log := opts.Logger.With("target", opts.Target, "command", command)
	switch command {
	case CommandUp:
		n, err := ops.Up(ctx)
		if err != nil {
			return err
		}
		log.Info("migrations applied", "count", n)
	case CommandDown:
		if steps < 1 {
			return fmt.Errorf("%w: steps must be at least 1, got %d", ErrUsage, steps)
		}
		n, err := ops.Down(ctx, steps)
		if err != nil {
			return err
		}
		log.Info("migrations reverted", "count", n, "steps", steps)
	case CommandStatus:
		status, err := ops.Status(ctx)
		if err != nil {
			return err
		}
		log.Info("migration status", "applied", len(status.AppliedVersions), "pending", len(status.Pending))
		for _, v := range status.AppliedVersions {
			log.Info("migration applied", "version", v)
		}
		for _, p := range status.Pending {
			log.Info("migration pending", "version", p.Version, "name", p.Name)
		}
	default:
		return fmt.Errorf("%w: unknown command %q for %s", ErrUsage, command, opts.ServiceName)
	}
	return nil
}
