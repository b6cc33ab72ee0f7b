package devices

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Payloads is an ordered list of raw device commands.  In configuration it
// may be written either as a single scalar or as a list.
type Payloads []interface{}

func (p *Payloads) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var list []interface{}
		if err := json.Unmarshal(b, &list); err != nil {
			return err
		}
		*p = list
		return nil
	}

	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if v == nil {
		*p = nil
		return nil
	}
	*p = Payloads{v}

	return nil
}

func (p *Payloads) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var list []interface{}
		if err := node.Decode(&list); err != nil {
			return err
		}
		*p = list
	case yaml.ScalarNode:
		var v interface{}
		if err := node.Decode(&v); err != nil {
			return err
		}
		*p = Payloads{v}
	default:
		return errors.Errorf("line %d: expected a command or a list of commands", node.Line)
	}

	return nil
}

// ActionConfig is the static data for one device action.  It is written
// either as {data: <payloads>} or as the bare payloads.
type ActionConfig struct {
	Data Payloads `json:"data" yaml:"data"`
}

func (a *ActionConfig) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var wrapped struct {
			Data Payloads `json:"data"`
		}
		if err := json.Unmarshal(b, &wrapped); err != nil {
			return err
		}
		a.Data = wrapped.Data
		return nil
	}

	return json.Unmarshal(b, &a.Data)
}

func (a *ActionConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.MappingNode {
		var wrapped struct {
			Data Payloads `yaml:"data"`
		}
		if err := node.Decode(&wrapped); err != nil {
			return err
		}
		a.Data = wrapped.Data
		return nil
	}

	return node.Decode(&a.Data)
}
