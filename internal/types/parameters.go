package types

import (
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Parameters carries executor arguments in one of three shapes: a mapping,
// a positional list, or an error flagged by the task source when the raw
// parameters could not be parsed.
type Parameters struct {
	// Values holds mapping-form parameters.
	Values map[string]any

	// Args holds list-form parameters.
	Args []string

	// Err is the upstream parse error. When set, the task is classified ERROR without dispatch.
	Err string

	// Raw is the unparsed source text kept alongside Err for reporting.
	Raw string
}

// MapParameters returns mapping-form parameters.
func MapParameters(values map[string]any) Parameters {
	return Parameters{Values: values}
}

// ListParameters returns list-form parameters.
func ListParameters(args ...string) Parameters {
	return Parameters{Args: args}
}

// ErrorParameters returns parameters pre-flagged with a parse error.
func ErrorParameters(msg, raw string) Parameters {
	return Parameters{Err: msg, Raw: raw}
}

// IsList reports whether the parameters are in list form.
func (p Parameters) IsList() bool {
	return p.Args != nil
}

// IsMap reports whether the parameters are in mapping form.
func (p Parameters) IsMap() bool {
	return p.Values != nil
}

// Get returns a mapping-form value.
func (p Parameters) Get(key string) (any, bool) {
	if p.Values == nil {
		return nil, false
	}
	v, ok := p.Values[key]
	return v, ok
}

// String returns a mapping-form value rendered as a string, or "" if absent.
func (p Parameters) String(key string) string {
	v, ok := p.Get(key)
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// UnmarshalYAML accepts a mapping, a sequence, or null. Any other shape is
// recorded in Err rather than failing the whole document.
func (p *Parameters) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		var m map[string]any
		if err := node.Decode(&m); err != nil {
			*p = ErrorParameters(fmt.Sprintf("malformed parameters: %v", err), node.Value)
			return nil
		}
		*p = MapParameters(m)
	case yaml.SequenceNode:
		var items []any
		if err := node.Decode(&items); err != nil {
			*p = ErrorParameters(fmt.Sprintf("malformed parameters: %v", err), node.Value)
			return nil
		}
		*p = ListParameters(stringify(items)...)
	case yaml.ScalarNode:
		if node.Tag == "!!null" || node.Value == "" {
			*p = Parameters{}
			return nil
		}
		*p = ErrorParameters("parameters is not a valid dictionary or list", node.Value)
	default:
		*p = ErrorParameters("parameters is not a valid dictionary or list", node.Value)
	}
	return nil
}

// MarshalJSON renders whichever shape is populated.
func (p Parameters) MarshalJSON() ([]byte, error) {
	switch {
	case p.Err != "":
		return json.Marshal(map[string]string{"error": p.Err, "orig_value": p.Raw})
	case p.Args != nil:
		return json.Marshal(p.Args)
	case p.Values != nil:
		return json.Marshal(p.Values)
	default:
		return []byte("{}"), nil
	}
}

// stringify converts decoded list items into positional arguments.
func stringify(items []any) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		switch v := it.(type) {
		case string:
			out = append(out, v)
		case int:
			out = append(out, strconv.Itoa(v))
		case nil:
			out = append(out, "")
		default:
			out = append(out, fmt.Sprint(v))
		}
	}
	return out
}
