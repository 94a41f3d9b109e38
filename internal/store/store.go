// Package store defines the object-store port the gateway persists through,
// plus the backends and read caches selectable at startup. Documents are
// arbitrary JSON objects addressed by key; ConditionalCreate is the only
// atomicity primitive and the only legal way to claim a key that must exist
// at most once.
package store

import (
	"context"
	"encoding/json"
)

// Document is one stored JSON object.
type Document map[string]any

// ObjectStore is the narrow contract over the backing document store.
// Get returns domain.ErrNotFound for absent keys. ConditionalCreate reports
// created=false together with the already-present document when the key was
// taken; a plain read-then-write must never be used where at-most-once
// creation matters.
type ObjectStore interface {
	Get(ctx context.Context, key string) (Document, error)
	Put(ctx context.Context, key string, doc Document) error
	Delete(ctx context.Context, key string) error
	ConditionalCreate(ctx context.Context, key string, doc Document) (created bool, existing Document, err error)
	QueryByFields(ctx context.Context, fields map[string]any, limit int) ([]Document, error)
}

// FromStruct converts a typed record into its stored document form.
func FromStruct(v any) (Document, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Decode unmarshals the document into the given struct reference.
func (d Document) Decode(ref any) error {
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, ref)
}

// Matches reports whether every predicate field equals the document's value.
// Backends without a native predicate query use it to filter in memory.
func (d Document) Matches(fields map[string]any) bool {
	for k, want := range fields {
		got, ok := d[k]
		if !ok {
			return false
		}
		wb, err := json.Marshal(want)
		if err != nil {
			return false
		}
		gb, err := json.Marshal(got)
		if err != nil {
			return false
		}
		if string(wb) != string(gb) {
			return false
		}
	}
	return true
}
