// Package phpquery encodes nested parameter trees into the bracket-indexed
// form encoding that PHP decodes with parse_str, the convention produced by
// PHP's http_build_query.
//
// Nested maps become parent[child]=value, sequences become parent[0]=value,
// parent[1]=value and so on. Output order follows input order exactly, so
// parameters are carried in Params, an insertion-ordered map:
//
//	p := phpquery.New(
//	    phpquery.P("field", "username"),
//	    phpquery.P("values", []string{"alice"}),
//	)
//	phpquery.Encode(p) // field=username&values%5B0%5D=alice
package phpquery

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Params is an insertion-ordered parameter map. Setting an existing key
// replaces its value but keeps its position.
type Params = orderedmap.OrderedMap[string, any]

// Pair is a single key/value entry used to build Params.
type Pair struct {
	Key   string
	Value any
}

// P is shorthand for a Pair.
func P(key string, value any) Pair {
	return Pair{Key: key, Value: value}
}

// New creates Params holding pairs in the given order.
func New(pairs ...Pair) *Params {
	p := orderedmap.New[string, any]()
	for _, pair := range pairs {
		p.Set(pair.Key, pair.Value)
	}
	return p
}

// Clone returns a shallow copy of p. A nil p yields empty Params.
func Clone(p *Params) *Params {
	out := orderedmap.New[string, any]()
	if p == nil {
		return out
	}
	for pair := p.Oldest(); pair != nil; pair = pair.Next() {
		out.Set(pair.Key, pair.Value)
	}
	return out
}

// Merge returns new Params with the entries of base followed by those of
// overlay. Keys present in both take the overlay value at the base position.
func Merge(base, overlay *Params) *Params {
	out := Clone(base)
	if overlay == nil {
		return out
	}
	for pair := overlay.Oldest(); pair != nil; pair = pair.Next() {
		out.Set(pair.Key, pair.Value)
	}
	return out
}

// Keys returns the keys of p in order.
func Keys(p *Params) []string {
	if p == nil {
		return nil
	}
	keys := make([]string, 0, p.Len())
	for pair := p.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}
