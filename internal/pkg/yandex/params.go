package yandex

import (
	"github.com/pkg/errors"
)

var ErrInvalidParams = errors.New("invalid facet parameters")

// FacetParams are the configured parameters of a capability or property, as
// decoded from the device store
type FacetParams map[string]interface{}

func (p FacetParams) boolean(key string, def bool) (bool, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}

	b, ok := v.(bool)
	if !ok {
		return def, errors.Wrapf(ErrInvalidParams, "%s must be a boolean, got %T", key, v)
	}

	return b, nil
}

func (p FacetParams) str(key string, def string) (string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}

	s, ok := v.(string)
	if !ok {
		return def, errors.Wrapf(ErrInvalidParams, "%s must be a string, got %T", key, v)
	}

	return s, nil
}

func (p FacetParams) number(key string) (float64, bool, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return 0, false, nil
	}

	f, ok := toFloat(v)
	if !ok {
		return 0, false, errors.Wrapf(ErrInvalidParams, "%s must be a number, got %T", key, v)
	}

	return f, true, nil
}

func (p FacetParams) sub(key string) (FacetParams, error) {
	switch v := p[key].(type) {
	case nil:
		return nil, nil
	case FacetParams:
		return v, nil
	case map[string]interface{}:
		return FacetParams(v), nil
	default:
		return nil, errors.Wrapf(ErrInvalidParams, "%s must be a mapping, got %T", key, v)
	}
}

func (p FacetParams) strings(key string) ([]string, error) {
	switch v := p[key].(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for i, e := range v {
			s, ok := e.(string)
			if !ok {
				return nil, errors.Wrapf(ErrInvalidParams, "%s[%d] must be a string, got %T", key, i, e)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, errors.Wrapf(ErrInvalidParams, "%s must be a list, got %T", key, v)
	}
}

// numbers arrive as int from YAML and float64 from JSON
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}

	return 0, false
}
