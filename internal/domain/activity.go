package domain

// Envelope is one submitted activity: a JSON object with free-form fields.
// Validation fills in actor/id/published when absent but never overwrites a
// field that is already present.
type Envelope map[string]any

func (e Envelope) ID() string {
	s, _ := e["id"].(string)
	return s
}

func (e Envelope) Actor() any { return e["actor"] }

func (e Envelope) Type() string {
	s, _ := e["type"].(string)
	return s
}

// Recipients collects the addressing fields used for local delivery.
func (e Envelope) Recipients() []string {
	var out []string
	for _, field := range []string{"to", "cc", "audience"} {
		switch v := e[field].(type) {
		case string:
			out = append(out, v)
		case []any:
			for _, item := range v {
				if id := ExtractID(item); id != "" {
					out = append(out, id)
				}
			}
		case []string:
			out = append(out, v...)
		}
	}
	return out
}

// Clone returns a shallow copy so validation never mutates the caller's map.
func (e Envelope) Clone() Envelope {
	out := make(Envelope, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}
