package memstore

import (
	"fmt"
	"strconv"
	"strings"
)

func applyUpdate(doc, filter, ops map[string]interface{}) error {
	for op, arg := range ops {
		fields := asMap(arg)
		for path, value := range fields {
			parts, err := resolvePositional(doc, filter, path)
			if err != nil {
				return err
			}
			switch op {
			case "$set":
				setPath(doc, parts, clone(value))
			case "$unset":
				unsetPath(doc, parts)
			case "$push":
				if err := pushPath(doc, parts, clone(value)); err != nil {
					return err
				}
			default:
				return fmt.Errorf("memstore: unsupported update operator %s", op)
			}
		}
	}
	return nil
}

// resolvePositional replaces a "$" segment with the index of the first array element
// that satisfied the filter conditions on that array.
func resolvePositional(doc, filter map[string]interface{}, path string) ([]string, error) {
	parts := splitPath(path)
	for i, part := range parts {
		if part != "$" {
			continue
		}
		arrayPath := strings.Join(parts[:i], ".")
		idx := positionalIndex(doc, filter, arrayPath)
		if idx < 0 {
			return nil, fmt.Errorf("memstore: the positional operator did not find the match needed from the query")
		}
		parts[i] = strconv.Itoa(idx)
	}
	return parts, nil
}

func positionalIndex(doc, filter map[string]interface{}, arrayPath string) int {
	values := lookup(doc, arrayPath)
	if len(values) != 1 {
		return -1
	}
	items, ok := values[0].([]interface{})
	if !ok {
		return -1
	}
	prefix := arrayPath + "."
	for i, item := range items {
		matched := false
		ok := true
		for key, cond := range filter {
			switch {
			case key == arrayPath:
				ops, isOps := isOperatorDoc(cond)
				if !isOps || ops["$elemMatch"] == nil {
					continue
				}
				matched = true
				if !elemMatches(item, ops["$elemMatch"]) {
					ok = false
				}
			case strings.HasPrefix(key, prefix):
				matched = true
				if !matchValues(lookup(item, strings.TrimPrefix(key, prefix)), cond) {
					ok = false
				}
			}
		}
		if matched && ok {
			return i
		}
	}
	return -1
}

func setPath(doc map[string]interface{}, parts []string, value interface{}) {
	var current interface{} = doc
	for i, part := range parts {
		last := i == len(parts)-1
		switch node := current.(type) {
		case map[string]interface{}:
			if last {
				node[part] = value
				return
			}
			next, ok := node[part]
			if !ok || next == nil {
				next = map[string]interface{}{}
				node[part] = next
			}
			current = next
		case []interface{}:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return
			}
			if last {
				node[idx] = value
				return
			}
			current = node[idx]
		default:
			return
		}
	}
}

func unsetPath(doc map[string]interface{}, parts []string) {
	parent := walk(doc, parts[:len(parts)-1])
	if len(parent) != 1 {
		return
	}
	if m, ok := parent[0].(map[string]interface{}); ok {
		delete(m, parts[len(parts)-1])
	}
}

func pushPath(doc map[string]interface{}, parts []string, value interface{}) error {
	current := walk(doc, parts)
	if len(current) == 0 {
		setPath(doc, parts, []interface{}{value})
		return nil
	}
	arr, ok := current[0].([]interface{})
	if !ok {
		return fmt.Errorf("memstore: the field '%s' must be an array but is of type %T", strings.Join(parts, "."), current[0])
	}
	setPath(doc, parts, append(arr, value))
	return nil
}
