package phpquery

import (
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/google/go-querystring/query"
)

// QueryValuer is implemented by values that supply their own, already
// encoded, query representation. The returned string is emitted verbatim.
type QueryValuer interface {
	QueryValue() string
}

// Encode flattens p into a key=value&... string. Keys are emitted in
// insertion order and nested values are expanded depth first.
//
// Leaf handling:
//   - QueryValuer: QueryValue() verbatim
//   - string, []byte, fmt.Stringer: percent-encoded UTF-8
//   - bool: 1 or 0
//   - integers and floats: decimal notation
//   - nil: skipped
//
// Containers:
//   - *Params: children in insertion order
//   - string-keyed maps: children in sorted key order
//   - slices and arrays: children indexed from 0
//   - structs: flattened through their `url` tags, fields in sorted order
//   - query.Encoder: the values it adds, keys in sorted order
//
// The composed key, e.g. a[c][0], is percent-encoded once when the leaf is
// written, so brackets appear as %5B and %5D and are never double-encoded.
func Encode(p *Params) string {
	if p == nil || p.Len() == 0 {
		return ""
	}
	var parts []string
	for pair := p.Oldest(); pair != nil; pair = pair.Next() {
		parts = appendValue(parts, pair.Key, pair.Value)
	}
	return strings.Join(parts, "&")
}

// EncodeValue flattens a single value under key.
func EncodeValue(key string, value any) string {
	return strings.Join(appendValue(nil, key, value), "&")
}

func nestedKey(base, child string) string {
	return base + "[" + child + "]"
}

func leaf(parts []string, key, value string) []string {
	return append(parts, url.QueryEscape(key)+"="+url.QueryEscape(value))
}

func appendValue(parts []string, key string, value any) []string {
	switch v := value.(type) {
	case nil:
		return parts
	case QueryValuer:
		return append(parts, url.QueryEscape(key)+"="+v.QueryValue())
	case query.Encoder:
		return appendEncoder(parts, key, v)
	case *Params:
		if v == nil {
			return parts
		}
		for pair := v.Oldest(); pair != nil; pair = pair.Next() {
			parts = appendValue(parts, nestedKey(key, pair.Key), pair.Value)
		}
		return parts
	case string:
		return leaf(parts, key, v)
	case []byte:
		return leaf(parts, key, string(v))
	case bool:
		return leaf(parts, key, formatBool(v))
	case fmt.Stringer:
		return leaf(parts, key, v.String())
	}
	return appendReflected(parts, key, reflect.ValueOf(value))
}

func appendReflected(parts []string, key string, rv reflect.Value) []string {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return parts
		}
		return appendValue(parts, key, rv.Elem().Interface())
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return leaf(parts, key, fmt.Sprint(rv.Interface()))
		}
		keys := make([]string, 0, rv.Len())
		byName := make(map[string]reflect.Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			name := iter.Key().String()
			keys = append(keys, name)
			byName[name] = iter.Value()
		}
		sort.Strings(keys)
		for _, name := range keys {
			parts = appendValue(parts, nestedKey(key, name), byName[name].Interface())
		}
		return parts
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			parts = appendValue(parts, nestedKey(key, strconv.Itoa(i)), rv.Index(i).Interface())
		}
		return parts
	case reflect.Struct:
		return appendStruct(parts, key, rv)
	case reflect.Bool:
		return leaf(parts, key, formatBool(rv.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return leaf(parts, key, strconv.FormatInt(rv.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return leaf(parts, key, strconv.FormatUint(rv.Uint(), 10))
	case reflect.Float32:
		return leaf(parts, key, strconv.FormatFloat(rv.Float(), 'f', -1, 32))
	case reflect.Float64:
		return leaf(parts, key, strconv.FormatFloat(rv.Float(), 'f', -1, 64))
	case reflect.String:
		return leaf(parts, key, rv.String())
	}
	return leaf(parts, key, fmt.Sprint(rv.Interface()))
}

// appendStruct flattens a struct field by field. Names come from `url` tags
// (`url:"-"` skips a field, `omitempty` skips zero values) and every field
// value goes back through appendValue, so slices stay indexed and bools
// become 1 or 0. Untagged embedded structs are promoted to key's level.
func appendStruct(parts []string, key string, rv reflect.Value) []string {
	fields := map[string]reflect.Value{}
	collectFields(rv, fields)
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		parts = appendValue(parts, nestedKey(key, name), fields[name].Interface())
	}
	return parts
}

func collectFields(rv reflect.Value, fields map[string]reflect.Value) {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := sf.Tag.Get("url")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		fv := rv.Field(i)
		if strings.Contains(","+opts+",", ",omitempty,") && fv.IsZero() {
			continue
		}
		if sf.Anonymous && name == "" {
			if fv.Kind() == reflect.Pointer {
				if fv.IsNil() {
					continue
				}
				fv = fv.Elem()
			}
			if fv.Kind() == reflect.Struct {
				collectFields(fv, fields)
				continue
			}
		}
		if name == "" {
			name = sf.Name
		}
		fields[name] = fv
	}
}

// appendEncoder emits the values a query.Encoder adds under key, in sorted
// key order.
func appendEncoder(parts []string, key string, enc query.Encoder) []string {
	values := url.Values{}
	if err := enc.EncodeValues(key, &values); err != nil {
		return parts
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, v := range values[name] {
			parts = leaf(parts, name, v)
		}
	}
	return parts
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
