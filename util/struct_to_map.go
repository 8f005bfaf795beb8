package util

import (
	"fmt"
	"reflect"
	"runtime"
	"sort"
	"strings"
)

type strToMap struct {
	normalized map[string]string
}

// StrToMap flattens the exported fields of a struct into sorted `path`, `value`
// pairs. Nested structs extend the path with a dot, fields tagged yaml:"-" are
// skipped and types with a String method are rendered through it.
func StrToMap(path string, v interface{}) [][]string {
	m := strToMap{normalized: make(map[string]string)}
	m.split(path, reflect.ValueOf(v))

	return m.sort()
}

func (n *strToMap) sort() [][]string {
	keys := make([]string, 0, len(n.normalized))
	for k := range n.normalized {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	keyVals := make([][]string, 0, len(keys))
	for _, k := range keys {
		keyVals = append(keyVals, []string{k, n.normalized[k]})
	}
	return keyVals
}

func (n *strToMap) split(parent string, v reflect.Value) {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}

	if v.Kind() != reflect.Struct {
		n.normalized[parent] = n.toString(v)
		return
	}

	types := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := types.Field(i)
		f := v.Field(i)

		if !field.IsExported() || field.Tag.Get(`yaml`) == `-` {
			continue
		}

		path := field.Name
		if parent != `` {
			path = parent + `.` + path
		}

		if (f.Kind() == reflect.Interface || f.Kind() == reflect.Ptr) && f.IsNil() {
			n.normalized[path] = `<nil>`
			continue
		}

		if s, ok := stringer(f); ok {
			n.normalized[path] = s
			continue
		}

		if f.Kind() == reflect.Struct || f.Kind() == reflect.Ptr {
			n.split(path, f)
			continue
		}

		n.normalized[path] = n.toString(f)
	}
}

func stringer(v reflect.Value) (string, bool) {
	if !v.CanInterface() {
		return ``, false
	}

	if s, ok := v.Interface().(fmt.Stringer); ok {
		return s.String(), true
	}

	return ``, false
}

func (n *strToMap) toString(value reflect.Value) string {
	switch value.Kind() {
	case reflect.Array, reflect.Slice:
		items := make([]string, 0, value.Len())
		for i := 0; i < value.Len(); i++ {
			if s, ok := stringer(value.Index(i)); ok {
				items = append(items, s)
				continue
			}
			items = append(items, n.toString(value.Index(i)))
		}
		return `[` + strings.Join(items, `, `) + `]`
	case reflect.Map:
		return fmt.Sprintf(`%+v`, value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fmt.Sprintf(`%d`, value.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fmt.Sprintf(`%d`, value.Uint())
	case reflect.Bool:
		return fmt.Sprint(value.Bool())
	case reflect.Float64, reflect.Float32:
		return fmt.Sprint(value.Float())
	case reflect.Func:
		if value.IsNil() {
			return `<nil>`
		}
		return runtime.FuncForPC(value.Pointer()).Name()
	case reflect.Interface, reflect.Ptr:
		if value.IsNil() {
			return `<nil>`
		}
		return n.toString(value.Elem())
	default:
		return value.String()
	}
}
