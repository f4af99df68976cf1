package memsearch

import (
	"strings"

	"github.com/manishrjain/denorm/x"
)

// copyDoc deep copies the nested maps of a doc, so callers can't mutate
// what's stored.
func copyDoc(doc x.Doc) x.Doc {
	doc.Data = copyMap(doc.Data)
	return doc
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	dup := make(map[string]interface{}, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]interface{}); ok {
			v = copyMap(nested)
		}
		dup[k] = v
	}
	return dup
}

// lookup resolves a dotted field path, e.g. author.first_name.
func lookup(data map[string]interface{}, field string) (interface{}, bool) {
	parts := strings.Split(field, ".")
	var cur interface{} = data
	for _, p := range parts {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		if cur, ok = m[p]; !ok {
			return nil, false
		}
	}
	return cur, true
}
