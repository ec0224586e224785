package memstore

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// normalize converts every driver or Go container type into map[string]interface{},
// []interface{} and int64 so documents and filters compare uniformly.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case bson.M:
		return normalize(map[string]interface{}(t))
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case bson.D:
		out := make(map[string]interface{}, len(t))
		for _, e := range t {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case primitive.A:
		return normalize([]interface{}(t))
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case []bson.M:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case []string:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = val
		}
		return out
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case float32:
		return float64(t)
	}
	return v
}

func asMap(v interface{}) map[string]interface{} {
	m, _ := v.(map[string]interface{})
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}

func clone(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return cloneMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = clone(val)
		}
		return out
	}
	return v
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = clone(v)
	}
	return out
}

func splitPath(path string) []string {
	return strings.Split(path, ".")
}

// lookup returns every value reachable through path, descending into array elements
// the way the query language does for dotted paths.
func lookup(v interface{}, path string) []interface{} {
	return walk(v, splitPath(path))
}

func walk(v interface{}, parts []string) []interface{} {
	if len(parts) == 0 {
		return []interface{}{v}
	}
	switch t := v.(type) {
	case map[string]interface{}:
		child, ok := t[parts[0]]
		if !ok {
			return nil
		}
		return walk(child, parts[1:])
	case []interface{}:
		if idx, err := strconv.Atoi(parts[0]); err == nil {
			if idx >= 0 && idx < len(t) {
				return walk(t[idx], parts[1:])
			}
			return nil
		}
		var out []interface{}
		for _, item := range t {
			if _, ok := item.(map[string]interface{}); ok {
				out = append(out, walk(item, parts)...)
			}
		}
		return out
	}
	return nil
}

func isOperatorDoc(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	if !ok || len(m) == 0 {
		return nil, false
	}
	for k := range m {
		if !strings.HasPrefix(k, "$") {
			return nil, false
		}
	}
	return m, true
}

func matches(doc map[string]interface{}, filter map[string]interface{}) bool {
	for key, cond := range filter {
		switch key {
		case "$and":
			for _, sub := range asSlice(cond) {
				if !matches(doc, asMap(sub)) {
					return false
				}
			}
			continue
		case "$or":
			found := false
			for _, sub := range asSlice(cond) {
				if matches(doc, asMap(sub)) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
			continue
		}
		if !matchValues(lookup(doc, key), cond) {
			return false
		}
	}
	return true
}

func asSlice(v interface{}) []interface{} {
	s, _ := v.([]interface{})
	return s
}

func matchValues(values []interface{}, cond interface{}) bool {
	ops, isOps := isOperatorDoc(cond)
	if !isOps {
		return matchEq(values, cond)
	}
	for op, arg := range ops {
		if !matchOperator(values, op, arg) {
			return false
		}
	}
	return true
}

func matchEq(values []interface{}, want interface{}) bool {
	if want == nil {
		if len(values) == 0 {
			return true
		}
		for _, v := range values {
			if v == nil {
				return true
			}
		}
		return false
	}
	return anyScalar(values, func(v interface{}) bool { return equal(v, want) }, true)
}

// anyScalar reports whether pred holds for a value or, when the value is an array, one of its elements.
func anyScalar(values []interface{}, pred func(interface{}) bool, wholeArray bool) bool {
	for _, v := range values {
		if wholeArray && pred(v) {
			return true
		}
		if arr, ok := v.([]interface{}); ok {
			for _, item := range arr {
				if pred(item) {
					return true
				}
			}
		} else if !wholeArray && pred(v) {
			return true
		}
	}
	return false
}

func matchOperator(values []interface{}, op string, arg interface{}) bool {
	switch op {
	case "$eq":
		return matchEq(values, arg)
	case "$ne":
		return !matchEq(values, arg)
	case "$exists":
		want, _ := arg.(bool)
		return (len(values) > 0) == want
	case "$in":
		for _, candidate := range asSlice(arg) {
			if matchEq(values, candidate) {
				return true
			}
		}
		return false
	case "$regex":
		pattern, _ := arg.(string)
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return anyScalar(values, func(v interface{}) bool {
			s, ok := v.(string)
			return ok && re.MatchString(s)
		}, false)
	case "$gt", "$gte", "$lt", "$lte":
		return anyScalar(values, func(v interface{}) bool {
			c, ok := compare(v, arg)
			if !ok {
				return false
			}
			switch op {
			case "$gt":
				return c > 0
			case "$gte":
				return c >= 0
			case "$lt":
				return c < 0
			default:
				return c <= 0
			}
		}, false)
	case "$all":
		for _, slot := range asSlice(arg) {
			if sub, ok := isOperatorDoc(slot); ok {
				if !matchValues(values, sub) {
					return false
				}
				continue
			}
			if !matchEq(values, slot) {
				return false
			}
		}
		return true
	case "$elemMatch":
		for _, v := range values {
			arr, ok := v.([]interface{})
			if !ok {
				continue
			}
			for _, item := range arr {
				if elemMatches(item, arg) {
					return true
				}
			}
		}
		return false
	}
	panic(fmt.Sprintf("memstore: unsupported operator %s", op))
}

func elemMatches(item interface{}, cond interface{}) bool {
	if ops, ok := isOperatorDoc(cond); ok {
		for op, arg := range ops {
			if !matchOperator([]interface{}{item}, op, arg) {
				return false
			}
		}
		return true
	}
	m, ok := item.(map[string]interface{})
	return ok && matches(m, asMap(cond))
}

func equal(a, b interface{}) bool {
	if c, ok := compare(a, b); ok {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func compare(a, b interface{}) (int, bool) {
	if x, ok := number(a); ok {
		y, ok := number(b)
		if !ok {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	}
	if x, ok := a.(string); ok {
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	}
	return 0, false
}

// rank orders values of different kinds: missing/null, numbers, strings, documents, arrays, booleans.
func rank(v interface{}) int {
	switch v.(type) {
	case nil:
		return 0
	case int64, int, int32, float64:
		return 1
	case string:
		return 2
	case map[string]interface{}:
		return 3
	case []interface{}:
		return 4
	case bool:
		return 5
	}
	return 6
}

func sortKey(doc map[string]interface{}, path string) interface{} {
	values := lookup(doc, path)
	if len(values) == 0 {
		return nil
	}
	return values[0]
}

func compareSortKeys(a, b interface{}) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	if c, ok := compare(a, b); ok {
		return c
	}
	if x, ok := a.(bool); ok {
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	}
	return 0
}

func sortDocs(docs []map[string]interface{}, order bson.D) []map[string]interface{} {
	if len(order) == 0 {
		return docs
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, key := range order {
			c := compareSortKeys(sortKey(docs[i], key.Key), sortKey(docs[j], key.Key))
			if c == 0 {
				continue
			}
			if dir, _ := number(normalize(key.Value)); dir < 0 {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return docs
}

func toInt64(v interface{}) int64 {
	n, _ := number(normalize(v))
	return int64(n)
}
