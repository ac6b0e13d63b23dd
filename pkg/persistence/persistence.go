// Package persistence provides the document store used to audit workflows and executions.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
)

// Collections written by the engine.
const (
	WorkflowsCollection  = "workflows"
	ExecutionsCollection = "executions"
)

// Document is one stored JSON document.
type Document struct {
	ID     string          `json:"id"`
	Source json.RawMessage `json:"source"`
}

// Decode unmarshals the document source into v.
func (d Document) Decode(v any) error {
	err := json.Unmarshal(d.Source, v)
	if err != nil {
		return fmt.Errorf("failed to decode document %s: %w", d.ID, err)
	}

	return nil
}

// Query selects documents whose top-level fields equal every entry of Fields.
// A Limit of zero returns every match.
type Query struct {
	Fields map[string]any `json:"fields,omitempty"`
	Limit  int            `json:"limit,omitempty"`
}

// Store is the persistence collaborator. Index upserts by id.
type Store interface {
	Index(ctx context.Context, collection, id string, document any) error
	Get(ctx context.Context, collection, id string) (Document, error)
	Search(ctx context.Context, collection string, query Query) ([]Document, error)
	Delete(ctx context.Context, collection, id string) error
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

// Marshal encodes a document for storage. json.RawMessage and []byte values
// are stored as they are.
func Marshal(document any) (json.RawMessage, error) {
	switch d := document.(type) {
	case json.RawMessage:
		return d, nil
	case []byte:
		return d, nil
	}

	raw, err := json.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}

	return raw, nil
}

// Matches reports whether source satisfies the query fields. Values are
// compared after a JSON round trip so 1 and 1.0 are equal.
func (q Query) Matches(source json.RawMessage) bool {
	if len(q.Fields) == 0 {
		return true
	}

	var doc map[string]any
	if err := json.Unmarshal(source, &doc); err != nil {
		return false
	}

	want, err := q.normalized()
	if err != nil {
		return false
	}

	for field, expected := range want {
		actual, ok := doc[field]
		if !ok || !reflect.DeepEqual(actual, expected) {
			return false
		}
	}

	return true
}

func (q Query) normalized() (map[string]any, error) {
	raw, err := json.Marshal(q.Fields)
	if err != nil {
		return nil, err
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}

	return fields, nil
}

// Filter applies the query to documents already loaded in memory.
func (q Query) Filter(docs []Document) []Document {
	result := make([]Document, 0, len(docs))

	for _, d := range docs {
		if !q.Matches(d.Source) {
			continue
		}

		result = append(result, d)

		if q.Limit > 0 && len(result) == q.Limit {
			break
		}
	}

	return result
}
