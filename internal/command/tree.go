package command

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/joeycumines/behavior-engine/internal/bt"
	"github.com/joeycumines/behavior-engine/internal/builder"
	"github.com/joeycumines/behavior-engine/internal/builtin/exprcond"
	"github.com/joeycumines/behavior-engine/internal/builtin/pabt"
	"github.com/joeycumines/behavior-engine/internal/builtin/script"
	"github.com/joeycumines/behavior-engine/internal/config"
	"github.com/joeycumines/behavior-engine/internal/example/doorroom"
)

// newNodeRegistry returns a registry holding the builtin node types, the
// Expr, Script and Plan nodes, and the door-and-room leaves bound to world.
func newNodeRegistry(cfg *config.Config, world *doorroom.World) (*builder.Registry, error) {
	reg := builder.NewRegistry()
	cache := exprcond.NewCache(config.DefaultSchema().ResolveInt(cfg, "", "expr.cache-size"))
	if err := exprcond.Register(reg, cache); err != nil {
		return nil, err
	}
	if err := script.Register(reg); err != nil {
		return nil, err
	}
	planner := pabt.NewPlanner(cache)
	if err := doorroom.RegisterPlanning(planner, world); err != nil {
		return nil, err
	}
	if err := pabt.Register(reg, planner); err != nil {
		return nil, err
	}
	if err := doorroom.Register(reg, world); err != nil {
		return nil, err
	}
	return reg, nil
}

// treeFlags are the flags shared by commands that load a tree description.
type treeFlags struct {
	format   string
	mainTree string
	color    string
}

func (f *treeFlags) setup(fs *flag.FlagSet, cfg *config.Config) {
	schema := config.DefaultSchema()
	fs.StringVar(&f.format, "format", schema.Resolve(cfg, "tree.format"), "Tree description format: auto, xml, yaml")
	fs.StringVar(&f.mainTree, "main", "", "Tree to execute, overriding the description's main tree")
	fs.StringVar(&f.color, "color", schema.Resolve(cfg, "color"), "Color mode: auto, always, never")
}

func (f *treeFlags) build(path string, reg *builder.Registry, opts ...builder.Option) (*bt.Tree, error) {
	format, err := builder.ParseFormat(f.format)
	if err != nil {
		return nil, err
	}
	if f.mainTree != "" {
		opts = append(opts, builder.WithMainTree(f.mainTree))
	}
	return builder.BuildFile(path, format, reg, opts...)
}

// treeError lists the issues of a configuration error on w and returns a
// short error in its place. Other errors are returned unchanged.
func treeError(w io.Writer, st *styles, path string, err error) error {
	var ce *builder.ConfigError
	if !errors.As(err, &ce) {
		return err
	}
	_, _ = fmt.Fprintf(w, "%s: %d issue(s)\n", path, len(ce.Issues))
	for _, issue := range ce.Issues {
		if issue.Path == "" {
			_, _ = fmt.Fprintf(w, "  %s\n", issue.Message)
			continue
		}
		_, _ = fmt.Fprintf(w, "  %s: %s\n", st.accent.Render(issue.Path), issue.Message)
	}
	return fmt.Errorf("%s: %w", path, builder.ErrConfig)
}

// ValidateCommand checks tree descriptions without running them.
type ValidateCommand struct {
	*BaseCommand
	config *config.Config
	flags  treeFlags
}

// NewValidateCommand creates a new validate command.
func NewValidateCommand(cfg *config.Config) *ValidateCommand {
	return &ValidateCommand{
		BaseCommand: NewBaseCommand(
			"validate",
			"Check a tree description for configuration errors",
			"validate [options] <file>",
		),
		config: cfg,
	}
}

// SetupFlags configures the flags for the validate command.
func (c *ValidateCommand) SetupFlags(fs *flag.FlagSet) { c.flags.setup(fs, c.config) }

// Execute validates the tree description.
func (c *ValidateCommand) Execute(_ context.Context, args []string, stdout, stderr io.Writer) error {
	if err := expectArgs(c, args, 1, stderr); err != nil {
		return err
	}
	st, err := newStyles(stdout, c.flags.color)
	if err != nil {
		return err
	}
	reg, err := newNodeRegistry(c.config, doorroom.NewWorld(0))
	if err != nil {
		return err
	}
	tree, err := c.flags.build(args[0], reg)
	if err != nil {
		return treeError(stderr, st, args[0], err)
	}
	_, _ = fmt.Fprintf(stdout, "%s %s: tree %q, %d nodes\n", st.success.Render("OK"), args[0], tree.Name(), len(tree.Nodes()))
	return nil
}

// PrintCommand renders the node tree of a description.
type PrintCommand struct {
	*BaseCommand
	config *config.Config
	flags  treeFlags
}

// NewPrintCommand creates a new print command.
func NewPrintCommand(cfg *config.Config) *PrintCommand {
	return &PrintCommand{
		BaseCommand: NewBaseCommand(
			"print",
			"Print the node tree of a tree description",
			"print [options] <file>",
		),
		config: cfg,
	}
}

// SetupFlags configures the flags for the print command.
func (c *PrintCommand) SetupFlags(fs *flag.FlagSet) { c.flags.setup(fs, c.config) }

// Execute prints the tree.
func (c *PrintCommand) Execute(_ context.Context, args []string, stdout, stderr io.Writer) error {
	if err := expectArgs(c, args, 1, stderr); err != nil {
		return err
	}
	st, err := newStyles(stdout, c.flags.color)
	if err != nil {
		return err
	}
	reg, err := newNodeRegistry(c.config, doorroom.NewWorld(0))
	if err != nil {
		return err
	}
	tree, err := c.flags.build(args[0], reg)
	if err != nil {
		return treeError(stderr, st, args[0], err)
	}
	printTree(stdout, st, tree)
	return nil
}

type portHolder interface {
	Ports() *bt.Ports
}

// printTree writes one line per node: indented name, kind and port
// bindings.
func printTree(w io.Writer, st *styles, tree *bt.Tree) {
	_, _ = fmt.Fprintf(w, "%s\n", st.bold.Render(tree.Name()))
	tree.Walk(func(n bt.Node, _ string, depth int) bool {
		var b strings.Builder
		b.WriteString(strings.Repeat("  ", depth+1))
		b.WriteString(n.Name())
		b.WriteString(" ")
		b.WriteString(st.muted.Render("(" + n.Kind().String() + ")"))
		if ph, ok := n.(portHolder); ok {
			ports := ph.Ports()
			for _, name := range ports.Bound() {
				binding, _ := ports.Binding(name)
				b.WriteString(" ")
				b.WriteString(st.accent.Render(name + "=" + binding.String()))
			}
		}
		_, _ = fmt.Fprintln(w, b.String())
		return true
	})
}

// NodesCommand lists the registered node types.
type NodesCommand struct {
	*BaseCommand
	config  *config.Config
	verbose bool
}

// NewNodesCommand creates a new nodes command.
func NewNodesCommand(cfg *config.Config) *NodesCommand {
	return &NodesCommand{
		BaseCommand: NewBaseCommand(
			"nodes",
			"List the node types available to tree descriptions",
			"nodes [options] [type]",
		),
		config: cfg,
	}
}

// SetupFlags configures the flags for the nodes command.
func (c *NodesCommand) SetupFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.verbose, "v", false, "Show ports and parameters of every type")
}

// Execute lists node types, or describes one.
func (c *NodesCommand) Execute(_ context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) > 1 {
		return expectArgs(c, args, 1, stderr)
	}
	reg, err := newNodeRegistry(c.config, doorroom.NewWorld(0))
	if err != nil {
		return err
	}
	specs := reg.Specs()
	if len(args) == 1 {
		spec, ok := reg.Lookup(args[0])
		if !ok {
			_, _ = fmt.Fprintf(stderr, "Unknown node type: %s\n", args[0])
			return fmt.Errorf("unknown node type: %s", args[0])
		}
		specs = []builder.NodeSpec{spec}
	}

	tbl := newTable(2)
	for _, spec := range specs {
		tbl.add(spec.Type, spec.Kind.String(), spec.Description)
		if c.verbose || len(args) == 1 {
			addSpecDetails(tbl, spec)
		}
	}
	return tbl.write(stdout)
}

func addSpecDetails(tbl *table, spec builder.NodeSpec) {
	for _, p := range spec.Ports {
		detail := p.Description
		if p.HasDefault {
			detail += fmt.Sprintf(" (default %v)", p.Default)
		}
		tbl.add(fmt.Sprintf("  %s port %s", p.Direction, p.Name), typeName(p.Type), detail)
	}
	for _, p := range spec.Params {
		detail := p.Description
		if p.Required {
			detail += " (required)"
		} else if p.Default != nil {
			detail += fmt.Sprintf(" (default %v)", p.Default)
		}
		tbl.add("  param "+p.Name, typeName(p.Type), detail)
	}
}

func typeName(t reflect.Type) string {
	switch {
	case t == nil:
		return "any"
	case t == reflect.TypeFor[time.Duration]():
		return "duration"
	default:
		return t.String()
	}
}
