// Package builder constructs validated behavior trees from declarative
// descriptions, using a Registry of node types.
//
// Every configuration problem is detected before a tree is returned, and
// reported together as a *ConfigError naming the offending node paths.
package builder

import (
	"encoding"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joeycumines/behavior-engine/internal/blackboard"
	"github.com/joeycumines/behavior-engine/internal/bt"
)

// Option configures Build.
type Option func(*options)

type options struct {
	initial map[string]any
	logger  *slog.Logger
	now     func() time.Time
	main    string
}

// WithInitialValues seeds the root blackboard.
func WithInitialValues(values map[string]any) Option {
	return func(o *options) {
		if o.initial == nil {
			o.initial = make(map[string]any, len(values))
		}
		for k, v := range values {
			o.initial[k] = v
		}
	}
}

// WithLogger sets the logger handed to factories and to the built tree.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock sets the clock of the built tree.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithMainTree overrides the main tree named by the description.
func WithMainTree(id string) Option {
	return func(o *options) { o.main = id }
}

// BuildFile reads and builds the tree description at path. FormatAuto picks
// the format from the file extension, or the content.
func BuildFile(path string, format Format, reg *Registry, opts ...Option) (*bt.Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tree description: %w", err)
	}
	if format == FormatAuto || format == "" {
		format = DetectFormat(path, data)
	}
	return BuildBytes(data, format, reg, opts...)
}

// BuildBytes parses and builds a tree description.
func BuildBytes(data []byte, format Format, reg *Registry, opts ...Option) (*bt.Tree, error) {
	desc, err := Parse(data, format)
	if err != nil {
		return nil, err
	}
	return Build(desc, reg, opts...)
}

// Validate reports the configuration problems of desc, if any.
func Validate(desc *Description, reg *Registry, opts ...Option) error {
	_, err := Build(desc, reg, opts...)
	return err
}

// Build constructs the main tree of desc. Trees that the main tree does not
// reference are validated as well, but not returned.
func Build(desc *Description, reg *Registry, opts ...Option) (*bt.Tree, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if reg == nil {
		reg = NewRegistry()
	}
	b := &build{
		reg:      reg,
		desc:     desc,
		logger:   o.logger,
		visited:  make(map[string]bool),
		keyTypes: make(map[scopedKey]keyType),
		literals: make(map[scopedKey]*literal),
	}
	if desc == nil || len(desc.Trees) == 0 {
		b.issues.add("", "description contains no trees")
		return nil, b.issues.err()
	}

	main := o.main
	if main == "" {
		main = desc.Main
	}
	if main == "" && len(desc.Order) == 1 {
		main = desc.Order[0]
	}
	if main == "" {
		b.issues.add("", "main tree not specified and description has %d trees", len(desc.Trees))
		return nil, b.issues.err()
	}
	rootEl, ok := desc.Trees[main]
	if !ok {
		b.issues.add("", "main tree %q not found", main)
		return nil, b.issues.err()
	}

	bb := blackboard.New()
	for k, v := range o.initial {
		bb.Set(k, v)
	}
	b.visited[main] = true
	b.stack = []string{main}
	root := b.node(rootEl, main+"/"+rootEl.Name(), bb)

	for _, id := range desc.Order {
		if b.visited[id] {
			continue
		}
		b.visited[id] = true
		b.stack = []string{id}
		el := desc.Trees[id]
		b.node(el, id+"/"+el.Name(), blackboard.New())
		o.logger.Debug("validated unreferenced tree", "tree", id)
	}

	if err := b.issues.err(); err != nil {
		return nil, err
	}
	return bt.NewTree(root, bb,
		bt.WithTreeName(main),
		bt.WithTreeLogger(o.logger),
		bt.WithTreeClock(o.now),
	), nil
}

type scopedKey struct {
	scope *blackboard.Blackboard
	key   string
}

type keyType struct {
	typ  reflect.Type
	path string
}

type build struct {
	reg    *Registry
	desc   *Description
	logger *slog.Logger
	issues issues
	// subtree IDs being expanded, outermost first
	stack   []string
	visited map[string]bool
	// declared type of each blackboard key, per owning scope
	keyTypes map[scopedKey]keyType
	// literal SubTree remappings, converted once a port declares their type
	literals map[scopedKey]*literal
}

type literal struct {
	raw string
	typ reflect.Type
}

// node builds el and its descendants. It returns nil if any problem was
// found within el's subtree.
func (b *build) node(el *Element, path string, scope *blackboard.Blackboard) bt.Node {
	if el.Type == SubTreeType {
		return b.subtree(el, path, scope)
	}
	start := len(b.issues)

	spec, known := b.reg.Lookup(el.Type)
	children := make([]bt.Node, 0, len(el.Children))
	for i, c := range el.Children {
		children = append(children, b.node(c, bt.ChildPath(path, c.Name(), i), scope))
	}
	if !known {
		b.issues.add(path, "unknown node type %q", el.Type)
		return nil
	}

	switch n := len(el.Children); {
	case spec.Kind.IsLeaf() && n != 0:
		b.issues.add(path, "%s %q must not have children, has %d", spec.Kind, el.Type, n)
	case spec.Kind == bt.KindDecorator && n != 1:
		b.issues.add(path, "decorator %q must have exactly one child, has %d", el.Type, n)
	case !spec.Kind.IsLeaf() && spec.Kind != bt.KindDecorator && n == 0:
		b.issues.add(path, "%s %q must have at least one child", spec.Kind, el.Type)
	}

	ports, params := b.attributes(el, spec, path, scope)
	if len(b.issues) > start {
		return nil
	}

	cfg := &NodeConfig{
		Name:       el.Name(),
		Type:       el.Type,
		Path:       path,
		Ports:      ports,
		Params:     params,
		Children:   children,
		Blackboard: scope,
		Logger:     b.logger,
	}
	n, err := callFactory(spec.Factory, cfg)
	switch {
	case err != nil:
		b.issues.add(path, "%v", err)
		return nil
	case n == nil:
		b.issues.add(path, "factory for %q returned no node", el.Type)
		return nil
	case n.Kind() != spec.Kind:
		b.issues.add(path, "factory for %q returned a %s node, declared %s", el.Type, n.Kind(), spec.Kind)
		return nil
	}
	return n
}

func callFactory(f Factory, cfg *NodeConfig) (n bt.Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = nil, fmt.Errorf("factory panicked: %v", r)
		}
	}()
	return f(cfg)
}

// attributes resolves the port bindings and parameters of el.
func (b *build) attributes(el *Element, spec NodeSpec, path string, scope *blackboard.Blackboard) (*bt.Ports, map[string]any) {
	bindings := make(map[string]bt.Binding)
	params := make(map[string]any)
	for _, name := range sortedKeys(el.Attrs) {
		if name == "name" {
			continue
		}
		value := el.Attrs[name]
		if port, ok := spec.port(name); ok {
			binding, err := parseBinding(port, value)
			if err != nil {
				b.issues.add(path, "port %q: %v", name, err)
				continue
			}
			if binding.IsKey {
				b.convertLiteral(scope, binding.Key, port.Type, path, name)
				b.checkKeyType(scope, binding.Key, port.Type, path, name)
			}
			bindings[name] = binding
			continue
		}
		if param, ok := spec.param(name); ok {
			v, err := parseLiteral(value, param.Type)
			if err != nil {
				b.issues.add(path, "parameter %q: %v", name, err)
				continue
			}
			params[name] = v
			continue
		}
		b.issues.add(path, "unknown attribute %q for node type %q", name, el.Type)
	}
	for _, port := range spec.Ports {
		if _, ok := bindings[port.Name]; !ok && !port.HasDefault {
			b.issues.add(path, "%s port %q is not bound", port.Direction, port.Name)
		}
	}
	for _, param := range spec.Params {
		if _, ok := params[param.Name]; ok {
			continue
		}
		switch {
		case param.Required:
			b.issues.add(path, "missing parameter %q", param.Name)
		case param.Default != nil:
			params[param.Name] = param.Default
		}
	}
	return bt.NewPorts(spec.Ports, bindings), params
}

// checkKeyType records the type a port expects of a blackboard key, and
// reports ports of the same scope that disagree.
func (b *build) checkKeyType(scope *blackboard.Blackboard, key string, typ reflect.Type, path, port string) {
	if typ == nil || typ.Kind() == reflect.Interface {
		return
	}
	owner, k := scope.Resolve(key)
	sk := scopedKey{scope: owner, key: k}
	prev, ok := b.keyTypes[sk]
	if !ok {
		b.keyTypes[sk] = keyType{typ: typ, path: path}
		return
	}
	if !compatible(prev.typ, typ) {
		b.issues.add(path, "port %q: blackboard key %q is %s here but %s at %s", port, key, typ, prev.typ, prev.path)
	}
}

// convertLiteral replaces a string seeded by a SubTree literal remapping with
// its value as the port's type.
func (b *build) convertLiteral(scope *blackboard.Blackboard, key string, typ reflect.Type, path, port string) {
	if typ == nil || typ.Kind() == reflect.Interface {
		return
	}
	owner, k := scope.Resolve(key)
	for s := owner; s != nil; s = s.Parent() {
		lit, ok := b.literals[scopedKey{scope: s, key: k}]
		if !ok {
			continue
		}
		switch {
		case lit.typ == nil:
			v, err := parseLiteral(lit.raw, typ)
			if err != nil {
				b.issues.add(path, "port %q: blackboard key %q: %v", port, key, err)
				return
			}
			s.SetLocal(k, v)
			lit.typ = typ
		case !compatible(lit.typ, typ):
			b.issues.add(path, "port %q: blackboard key %q is %s here but was seeded as %s", port, key, typ, lit.typ)
		}
		return
	}
}

func compatible(a, b reflect.Type) bool {
	return a == b || (isNumeric(a) && isNumeric(b))
}

func isNumeric(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return t != durationType
	default:
		return false
	}
}

func (b *build) subtree(el *Element, path string, scope *blackboard.Blackboard) bt.Node {
	id := el.Attrs["ID"]
	if id == "" {
		b.issues.add(path, "SubTree requires an ID attribute")
		return nil
	}
	if len(el.Children) != 0 {
		b.issues.add(path, "SubTree must not have children")
	}
	target, ok := b.desc.Trees[id]
	if !ok {
		b.issues.add(path, "unknown subtree %q", id)
		return nil
	}
	if slices.Contains(b.stack, id) {
		b.issues.add(path, "recursive subtree reference: %s", strings.Join(append(slices.Clone(b.stack), id), " -> "))
		return nil
	}

	var autoRemap bool
	if v, ok := el.Attrs["_autoremap"]; ok {
		var err error
		if autoRemap, err = strconv.ParseBool(v); err != nil {
			b.issues.add(path, "_autoremap: %v", err)
		}
	}
	remap := make(map[string]string)
	literals := make(map[string]string)
	for _, name := range sortedKeys(el.Attrs) {
		switch name {
		case "ID", "name", "_autoremap":
			continue
		}
		value := el.Attrs[name]
		if key, ok := blackboardKey(value); ok {
			if key == "=" {
				key = name
			}
			if key == "" {
				b.issues.add(path, "remapping of %q: empty blackboard key", name)
				continue
			}
			remap[name] = key
			continue
		}
		literals[name] = value
	}

	local := scope.NewScope(remap, autoRemap)
	for k, v := range literals {
		local.SetLocal(k, v)
		b.literals[scopedKey{scope: local, key: k}] = &literal{raw: v}
	}

	b.visited[id] = true
	b.stack = append(b.stack, id)
	child := b.node(target, bt.ChildPath(path, target.Name(), 0), local)
	b.stack = b.stack[:len(b.stack)-1]
	if child == nil {
		return nil
	}
	return bt.NewSubTree(el.Name(), id, local, child)
}

// blackboardKey extracts key from "{key}".
func blackboardKey(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '{' || s[len(s)-1] != '}' {
		return "", false
	}
	return strings.TrimSpace(s[1 : len(s)-1]), true
}

func parseBinding(port bt.PortSpec, value string) (bt.Binding, error) {
	if key, ok := blackboardKey(value); ok {
		if key == "=" {
			key = port.Name
		}
		if key == "" {
			return bt.Binding{}, fmt.Errorf("empty blackboard key")
		}
		return bt.KeyBinding(key), nil
	}
	if port.Direction.Writable() {
		return bt.Binding{}, fmt.Errorf("%s port must be bound to a blackboard key, got literal %q", port.Direction, value)
	}
	v, err := parseLiteral(value, port.Type)
	if err != nil {
		return bt.Binding{}, err
	}
	return bt.LiteralBinding(v), nil
}

var (
	durationType        = reflect.TypeFor[time.Duration]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

// parseLiteral converts an attribute value to t.
func parseLiteral(s string, t reflect.Type) (any, error) {
	if t == nil || (t.Kind() == reflect.Interface && t.NumMethod() == 0) {
		return s, nil
	}
	if t == durationType {
		return time.ParseDuration(strings.TrimSpace(s))
	}
	if reflect.PointerTo(t).Implements(textUnmarshalerType) {
		v := reflect.New(t)
		if err := v.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
			return nil, err
		}
		return v.Elem().Interface(), nil
	}
	trimmed := strings.TrimSpace(s)
	switch t.Kind() {
	case reflect.String:
		return reflect.ValueOf(s).Convert(t).Interface(), nil
	case reflect.Bool:
		v, err := strconv.ParseBool(trimmed)
		if err != nil {
			return nil, fmt.Errorf("invalid boolean %q", s)
		}
		return reflect.ValueOf(v).Convert(t).Interface(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v, err := strconv.ParseInt(trimmed, 0, t.Bits())
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q", t, s)
		}
		return reflect.ValueOf(v).Convert(t).Interface(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		v, err := strconv.ParseUint(trimmed, 0, t.Bits())
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q", t, s)
		}
		return reflect.ValueOf(v).Convert(t).Interface(), nil
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(trimmed, t.Bits())
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q", t, s)
		}
		return reflect.ValueOf(v).Convert(t).Interface(), nil
	case reflect.Slice:
		out := reflect.MakeSlice(t, 0, 0)
		if trimmed == "" {
			return out.Interface(), nil
		}
		for _, part := range strings.Split(s, ";") {
			v, err := parseLiteral(strings.TrimSpace(part), t.Elem())
			if err != nil {
				return nil, err
			}
			out = reflect.Append(out, reflect.ValueOf(v))
		}
		return out.Interface(), nil
	default:
		return nil, fmt.Errorf("unsupported type %s", t)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
