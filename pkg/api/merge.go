package api

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// pathEscaper protects the characters gjson and sjson give a meaning to inside a key.
var pathEscaper = strings.NewReplacer(
	`\`, `\\`,
	".", `\.`,
	"*", `\*`,
	"?", `\?`,
	"|", `\|`,
	"#", `\#`,
	"@", `\@`,
	"!", `\!`,
)

// mergeJSON applies patch over target. Objects present on both sides are merged
// key by key, a null in patch removes the key and any other value replaces it.
func mergeJSON(target, patch []byte) ([]byte, error) {
	if !gjson.ValidBytes(target) || !gjson.ValidBytes(patch) {
		return nil, fmt.Errorf("merge needs valid JSON documents")
	}
	current := gjson.ParseBytes(target)
	changes := gjson.ParseBytes(patch)
	if !current.IsObject() || !changes.IsObject() {
		return nil, fmt.Errorf("merge needs two JSON objects")
	}
	out := append([]byte(nil), target...)
	return mergeObject(out, "", current, changes)
}

func mergeObject(doc []byte, prefix string, current, patch gjson.Result) ([]byte, error) {
	existing := current.Map()
	var err error
	patch.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		path := joinPath(prefix, name)
		old, found := existing[name]
		switch {
		case value.IsObject() && found && old.IsObject():
			doc, err = mergeObject(doc, path, old, value)
		case value.Type == gjson.Null:
			if found {
				doc, err = sjson.DeleteBytes(doc, path)
			}
		default:
			doc, err = sjson.SetRawBytes(doc, path, []byte(value.Raw))
		}
		if err != nil {
			err = fmt.Errorf("merge %q: %w", name, err)
		}
		return err == nil
	})
	return doc, err
}

// joinPath appends key to prefix. Numeric keys are forced to be object keys.
func joinPath(prefix, key string) string {
	segment := pathEscaper.Replace(key)
	if isIndex(key) {
		segment = ":" + segment
	}
	if prefix == "" {
		return segment
	}
	return prefix + "." + segment
}

func isIndex(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
