package command

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joeycumines/behavior-engine/internal/bt"
	"github.com/joeycumines/behavior-engine/internal/builder"
	"github.com/joeycumines/behavior-engine/internal/config"
	"github.com/joeycumines/behavior-engine/internal/example/doorroom"
	"github.com/joeycumines/behavior-engine/internal/logging"
	"github.com/joeycumines/behavior-engine/internal/scheduler"
	"github.com/joeycumines/behavior-engine/internal/telemetry"
)

const telemetryShutdownTimeout = 5 * time.Second

// RunCommand builds a tree and ticks it until it completes.
type RunCommand struct {
	*BaseCommand
	config  *config.Config
	version string
	flags   treeFlags

	interval  time.Duration
	maxTicks  uint64
	trace     bool
	dump      bool
	values    valueFlags
	logLevel  string
	logFile   string
	exporter  string
	doorDelay time.Duration
}

// NewRunCommand creates a new run command.
func NewRunCommand(cfg *config.Config, version string) *RunCommand {
	return &RunCommand{
		BaseCommand: NewBaseCommand(
			"run",
			"Build a tree description and tick it until it completes",
			"run [options] <file>",
		),
		config:  cfg,
		version: version,
		values:  make(valueFlags),
	}
}

// SetupFlags configures the flags for the run command. Defaults come from
// the [run] section of the config.
func (c *RunCommand) SetupFlags(fs *flag.FlagSet) {
	schema := config.DefaultSchema()
	c.flags.setup(fs, c.config)
	fs.DurationVar(&c.interval, "interval", schema.ResolveDuration(c.config, "run", "tick.interval"), "Time between root ticks")
	fs.Uint64Var(&c.maxTicks, "max-ticks", uint64(max(schema.ResolveInt(c.config, "run", "tick.max"), 0)), "Stop after this many ticks; 0 is unbounded")
	fs.BoolVar(&c.trace, "trace", schema.ResolveBool(c.config, "run", "trace"), "Print the root status and running nodes after every tick")
	fs.BoolVar(&c.dump, "dump", false, "Print the blackboard once the run ends")
	fs.Var(c.values, "set", "Seed a blackboard value, as key=value (repeatable; values are YAML scalars)")
	fs.StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn, error (default from config)")
	fs.StringVar(&c.logFile, "log-file", "", "Write JSON logs to this file (default from config)")
	fs.StringVar(&c.exporter, "telemetry", schema.Resolve(c.config, "telemetry.exporter"), "Telemetry exporter: none, stdout")
	fs.DurationVar(&c.doorDelay, "door-delay", 200*time.Millisecond, "Time taken by the OpenDoor leaf")
}

// Execute runs the tree. A tree that fails or faults is an error; a
// cancelled run is not.
func (c *RunCommand) Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if err := expectArgs(c, args, 1, stderr); err != nil {
		return err
	}
	st, err := newStyles(stdout, c.flags.color)
	if err != nil {
		return err
	}

	logger, closer, err := logging.New(resolveLogOptions(c.config, c.logLevel, c.logFile, stderr))
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	shutdown, err := telemetry.Init("bte", c.version, telemetry.Config{Exporter: c.exporter, Writer: stderr})
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if shutdownErr := shutdown(ctx); shutdownErr != nil {
			logger.Error("telemetry shutdown failed", "error", shutdownErr)
		}
	}()
	observer, err := telemetry.NewObserver(nil, nil)
	if err != nil {
		return fmt.Errorf("failed to create telemetry observer: %w", err)
	}

	world := doorroom.NewWorld(c.doorDelay)
	reg, err := newNodeRegistry(c.config, world)
	if err != nil {
		return err
	}
	tree, err := c.flags.build(args[0], reg,
		builder.WithLogger(logger),
		builder.WithInitialValues(c.values))
	if err != nil {
		return treeError(stderr, st, args[0], err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []scheduler.Option{
		scheduler.WithInterval(c.interval),
		scheduler.WithMaxTicks(c.maxTicks),
		scheduler.WithLogger(logger),
		scheduler.WithObserver(observer),
	}
	if c.trace {
		opts = append(opts, scheduler.WithObserver(traceObserver(stdout, st, tree)))
	}
	s := scheduler.New(tree, opts...)
	if err := s.Start(ctx); err != nil {
		return err
	}
	outcome, runErr := s.Wait()

	_, _ = fmt.Fprintf(stdout, "%s %s after %d tick(s)\n", st.bold.Render(tree.Name()), outcomeText(st, outcome), tree.TickCount())
	if c.dump {
		if err := dumpBlackboard(stdout, tree); err != nil {
			logger.Warn("failed to dump blackboard", "error", err)
		}
	}

	switch outcome {
	case scheduler.OutcomeSuccess, scheduler.OutcomeCancelled:
		return nil
	case scheduler.OutcomeFailure:
		return fmt.Errorf("tree %s failed", tree.Name())
	default:
		return fmt.Errorf("tree %s faulted: %w", tree.Name(), runErr)
	}
}

func outcomeText(st *styles, o scheduler.Outcome) string {
	switch o {
	case scheduler.OutcomeSuccess:
		return st.success.Render(o.String())
	case scheduler.OutcomeFailure, scheduler.OutcomeFault:
		return st.failure.Render(o.String())
	default:
		return st.running.Render(o.String())
	}
}

// traceObserver prints one line per root tick.
func traceObserver(w io.Writer, st *styles, tree *bt.Tree) scheduler.Observer {
	return scheduler.ObserverFunc(func(_ context.Context, info scheduler.TickInfo) {
		line := fmt.Sprintf("tick %d %s", info.Tick, st.status(info.Status))
		if running := tree.Running(); len(running) > 0 {
			line += " " + st.muted.Render("running: "+strings.Join(running, ", "))
		}
		if info.Err != nil {
			line += " " + st.failure.Render("fault: "+info.Err.Error())
		}
		_, _ = fmt.Fprintln(w, line)
	})
}

func dumpBlackboard(w io.Writer, tree *bt.Tree) error {
	data, err := yaml.Marshal(tree.Blackboard().Snapshot())
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// valueFlags collects repeated -set key=value flags.
type valueFlags map[string]any

func (v valueFlags) String() string {
	keys := sortedNames(v)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, v[k])
	}
	return strings.Join(parts, ",")
}

// Set parses key=value. The value is decoded as a YAML scalar, so 3 is an
// int, true a bool and open a string. An empty value is the empty string.
func (v valueFlags) Set(s string) error {
	key, raw, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", s)
	}
	if raw == "" {
		v[key] = ""
		return nil
	}
	var value any
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	switch value.(type) {
	case map[string]any, map[any]any, []any:
		return fmt.Errorf("invalid value for %s: only scalars are supported", key)
	}
	v[key] = value
	return nil
}
