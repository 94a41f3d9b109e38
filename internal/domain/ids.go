package domain

import "strings"

// NormalizeID strips exactly one trailing path separator so "/u/42/" and
// "/u/42" compare equal. Casing, percent-encoding and query strings are left
// alone. Both operands of every identity comparison must go through this.
func NormalizeID(id string) string {
	if strings.HasSuffix(id, "/") && id != "/" {
		return id[:len(id)-1]
	}
	return id
}

// ExtractID accepts a bare identifier or an embedded object carrying an "id"
// field and returns the identifier, or "" when neither shape matches.
// ActivityPub fields like "actor" may hold either form.
func ExtractID(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		if id, ok := t["id"].(string); ok {
			return id
		}
	case Envelope:
		if id, ok := t["id"].(string); ok {
			return id
		}
	}
	return ""
}

// SameID compares two identifier-ish values after extraction and
// normalization of both sides.
func SameID(a, b any) bool {
	ida := NormalizeID(ExtractID(a))
	idb := NormalizeID(ExtractID(b))
	if ida == "" || idb == "" {
		return false
	}
	return ida == idb
}
