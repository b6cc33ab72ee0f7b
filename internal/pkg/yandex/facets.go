package yandex

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// FacetSpec names a capability or property with its configured parameters,
// and optionally the request to resolve against it
type FacetSpec struct {
	Name    string
	Params  FacetParams
	Request *Request
}

// Facets is an ordered list of facet specs.  It is written as a mapping of
// name to parameters and keeps the declaration order of the mapping.
type Facets []FacetSpec

func (f Facets) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, spec := range f {
		if i > 0 {
			buf.WriteByte(',')
		}

		k, err := json.Marshal(spec.Name)
		if err != nil {
			return nil, err
		}
		params := spec.Params
		if params == nil {
			params = FacetParams{}
		}
		v, err := json.Marshal(params)
		if err != nil {
			return nil, errors.Wrapf(err, "encoding %s", spec.Name)
		}

		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (f *Facets) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*f = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.Errorf("facets: expected an object, got %v", tok)
	}

	out := Facets{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return errors.Errorf("facets: expected a name, got %v", tok)
		}

		var params FacetParams
		if err := dec.Decode(&params); err != nil {
			return errors.Wrapf(err, "facets: decoding %s", name)
		}
		out = append(out, FacetSpec{Name: name, Params: params})
	}

	*f = out
	return nil
}

func (f *Facets) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*f = nil
			return nil
		}
	case yaml.MappingNode:
		out := make(Facets, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			name := node.Content[i].Value

			var params FacetParams
			if err := node.Content[i+1].Decode(&params); err != nil {
				return errors.Wrapf(err, "line %d: facet %s", node.Content[i+1].Line, name)
			}
			out = append(out, FacetSpec{Name: name, Params: params})
		}
		*f = out
		return nil
	}

	return errors.Errorf("line %d: expected a mapping of facet names to parameters", node.Line)
}
