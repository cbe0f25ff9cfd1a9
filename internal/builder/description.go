package builder

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joeycumines/behavior-engine/internal/bt"
	"gopkg.in/yaml.v3"
)

// Format is a declarative description format.
type Format string

const (
	FormatAuto Format = "auto"
	FormatXML  Format = "xml"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name. The empty string is FormatAuto.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return FormatAuto, nil
	case "xml":
		return FormatXML, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown tree format %q", s)
	}
}

// DetectFormat picks a format from a file name, falling back to sniffing
// the content.
func DetectFormat(name string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xml":
		return FormatXML
	case ".yaml", ".yml":
		return FormatYAML
	}
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("<")) {
		return FormatXML
	}
	return FormatYAML
}

// Element is one node of a parsed description, independent of format.
type Element struct {
	Type     string
	Attrs    map[string]string
	Children []*Element
}

// Name returns the diagnostic name of the element: the name attribute if
// set, otherwise the referenced tree ID for subtrees, or the type.
func (e *Element) Name() string {
	if n := e.Attrs["name"]; n != "" {
		return n
	}
	if id := e.Attrs["ID"]; e.Type == SubTreeType && id != "" {
		return id
	}
	return e.Type
}

// Description is a parsed set of trees, one of which is the main tree.
type Description struct {
	Main string
	// Trees maps tree IDs to their root element.
	Trees map[string]*Element
	// Order lists the tree IDs in declaration order.
	Order []string
}

// Parse parses data in the given format. FormatAuto sniffs the content.
func Parse(data []byte, format Format) (*Description, error) {
	switch format {
	case FormatXML:
		return ParseXML(data)
	case FormatYAML:
		return ParseYAML(data)
	case FormatAuto, "":
		return Parse(data, DetectFormat("", data))
	default:
		return nil, fmt.Errorf("unknown tree format %q", format)
	}
}

type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []xmlNode  `xml:",any"`
}

func (n *xmlNode) attr(name string) string {
	for _, a := range n.Attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// genericTags are the BehaviorTree.CPP element names that carry the node
// type in their ID attribute.
var genericTags = map[string]bool{
	"Action":    true,
	"Condition": true,
	"Control":   true,
	"Decorator": true,
}

// ParseXML parses a BehaviorTree.CPP style document:
//
//	<root main_tree_to_execute="Main">
//	  <BehaviorTree ID="Main">
//	    <Sequence>...</Sequence>
//	  </BehaviorTree>
//	</root>
//
// TreeNodesModel elements are ignored.
func ParseXML(data []byte) (*Description, error) {
	var root xmlNode
	dec := xml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty document")
		}
		return nil, &ConfigError{Issues: []Issue{{Message: "malformed XML: " + err.Error()}}}
	}
	var list issues
	if root.XMLName.Local != "root" {
		list.add("", "document element must be <root>, got <%s>", root.XMLName.Local)
		return nil, list.err()
	}
	desc := &Description{
		Main:  root.attr("main_tree_to_execute"),
		Trees: make(map[string]*Element),
	}
	for i := range root.Children {
		child := &root.Children[i]
		switch child.XMLName.Local {
		case "BehaviorTree":
		case "TreeNodesModel", "include":
			continue
		default:
			list.add("", "unexpected element <%s> in <root>", child.XMLName.Local)
			continue
		}
		id := child.attr("ID")
		if id == "" {
			list.add("", "<BehaviorTree> #%d has no ID", i)
			continue
		}
		if _, dup := desc.Trees[id]; dup {
			list.add(id, "duplicate tree ID %q", id)
			continue
		}
		if len(child.Children) != 1 {
			list.add(id, "tree must have exactly one root node, has %d", len(child.Children))
			continue
		}
		desc.Trees[id] = xmlElement(&child.Children[0])
		desc.Order = append(desc.Order, id)
	}
	if err := list.err(); err != nil {
		return nil, err
	}
	return desc, nil
}

func xmlElement(n *xmlNode) *Element {
	el := &Element{
		Type:  n.XMLName.Local,
		Attrs: make(map[string]string, len(n.Attrs)),
	}
	for _, a := range n.Attrs {
		el.Attrs[a.Name.Local] = a.Value
	}
	if genericTags[el.Type] {
		if id := el.Attrs["ID"]; id != "" {
			el.Type = id
			delete(el.Attrs, "ID")
		}
	}
	for i := range n.Children {
		el.Children = append(el.Children, xmlElement(&n.Children[i]))
	}
	return el
}

type yamlDoc struct {
	Main  string              `yaml:"main"`
	Trees map[string]yamlNode `yaml:"trees"`
}

type yamlNode struct {
	Type     string         `yaml:"type"`
	Name     string         `yaml:"name"`
	ID       string         `yaml:"id"`
	Params   map[string]any `yaml:"params"`
	Ports    map[string]any `yaml:"ports"`
	Children []yamlNode     `yaml:"children"`
}

// ParseYAML parses a description of the form:
//
//	main: Main
//	trees:
//	  Main:
//	    type: Sequence
//	    children:
//	      - type: DoorOpen
//	      - type: Retry
//	        params: {retries: 2}
//	        children: [{type: OpenDoor}]
//
// Ports and params share one namespace, as attributes do in XML; both keys
// are accepted for readability. The id key names the tree of a SubTree.
func ParseYAML(data []byte) (*Description, error) {
	var doc yamlDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigError{Issues: []Issue{{Message: "malformed YAML: " + err.Error()}}}
	}
	desc := &Description{
		Main:  doc.Main,
		Trees: make(map[string]*Element, len(doc.Trees)),
	}
	var list issues
	for id, node := range doc.Trees {
		el := yamlElement(id, -1, &node, &list)
		desc.Trees[id] = el
		desc.Order = append(desc.Order, id)
	}
	sort.Strings(desc.Order)
	if err := list.err(); err != nil {
		return nil, err
	}
	return desc, nil
}

func yamlElement(parent string, index int, n *yamlNode, list *issues) *Element {
	el := &Element{
		Type:  n.Type,
		Attrs: make(map[string]string, len(n.Params)+len(n.Ports)+2),
	}
	if n.Name != "" {
		el.Attrs["name"] = n.Name
	}
	path := parent + "/" + el.Name()
	if index >= 0 {
		path = bt.ChildPath(parent, el.Name(), index)
	}
	if n.Type == "" {
		list.add(path, "node has no type")
	}
	if n.ID != "" {
		el.Attrs["ID"] = n.ID
	}
	for _, m := range []map[string]any{n.Params, n.Ports} {
		for k, v := range m {
			s, err := yamlScalar(v)
			if err != nil {
				list.add(path, "attribute %q: %v", k, err)
				continue
			}
			if _, dup := el.Attrs[k]; dup {
				list.add(path, "attribute %q given twice", k)
				continue
			}
			el.Attrs[k] = s
		}
	}
	for i := range n.Children {
		el.Children = append(el.Children, yamlElement(path, i, &n.Children[i], list))
	}
	return el
}

func yamlScalar(v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case map[string]any:
		// an unquoted {key} reads as a flow mapping with a single null entry
		if len(v) == 1 {
			for k, inner := range v {
				if inner == nil {
					return "{" + k + "}", nil
				}
			}
		}
		return "", errors.New("must be a scalar")
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			s, err := yamlScalar(item)
			if err != nil {
				return "", err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ";"), nil
	default:
		return fmt.Sprint(v), nil
	}
}
