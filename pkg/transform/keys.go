package transform

import (
	"fmt"
	"reflect"
)

// StringifyKeys returns a copy of v in which every map key is a string and
// empty strings and nils are removed from lists. Applying it twice gives the
// same result as applying it once.
func StringifyKeys(v any) any {
	if v == nil {
		return nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = StringifyKeys(iter.Value().Interface())
		}
		return out

	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return v
		}
		out := make([]any, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			item := rv.Index(i).Interface()
			if item == nil {
				continue
			}
			if s, ok := item.(string); ok && s == "" {
				continue
			}
			out = append(out, StringifyKeys(item))
		}
		return out

	default:
		return v
	}
}
