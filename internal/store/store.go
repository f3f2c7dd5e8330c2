// Package store is the key-value document store the room service persists
// through. Items are JSON objects with a per-item expiry; an expired item is
// indistinguishable from one that never existed.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound        = errors.New("item not found")
	ErrAlreadyExists   = errors.New("item already exists")
	ErrConditionFailed = errors.New("condition failed")
)

// Document is a decoded JSON object. Numbers are json.Number so values
// survive repeated read-modify-write cycles without float drift.
type Document map[string]any

// Patch maps dotted paths ("player1.x") to values. Each value is stored as
// its JSON encoding.
type Patch map[string]any

// Condition guards a partial update.
type Condition struct {
	// Path must be absent or JSON null.
	Path string
}

func IfNull(path string) Condition { return Condition{Path: path} }

type Store interface {
	Get(ctx context.Context, key string) (Document, error)
	Put(ctx context.Context, key string, doc Document, expiresAt time.Time) error
	// PutIfAbsent writes only when no live item exists under key.
	PutIfAbsent(ctx context.Context, key string, doc Document, expiresAt time.Time) error
	// UpdatePartial merges patch into the live item in one atomic step.
	UpdatePartial(ctx context.Context, key string, patch Patch, conds ...Condition) error
	Delete(ctx context.Context, key string) error
}

// Sweeper deletes expired items and reports how many were removed.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// Encode turns any JSON-marshalable value into a Document.
func Encode(v any) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return decodeDocument(data)
}

// Decode fills v from the document.
func (d Document) Decode(v any) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

func decodeDocument(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if doc == nil {
		return nil, errors.New("decode document: not an object")
	}
	return doc, nil
}

// normalize converts a patch value to the same shape Get returns.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

func splitPath(path string) ([]string, error) {
	parts := strings.Split(path, ".")
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("invalid path %q", path)
		}
	}
	return parts, nil
}

// lookup returns the value at path and whether every segment existed.
func lookup(doc Document, parts []string) (any, bool) {
	var cur any = map[string]any(doc)
	for _, p := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func setPath(doc Document, parts []string, value any) error {
	m := map[string]any(doc)
	for i, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			return fmt.Errorf("path %q: %q is not an object", strings.Join(parts, "."), strings.Join(parts[:i+1], "."))
		}
		m = next
	}
	m[parts[len(parts)-1]] = value
	return nil
}

// applyPatch applies patch to doc in place after checking conds.
func applyPatch(doc Document, patch Patch, conds []Condition) error {
	for _, c := range conds {
		parts, err := splitPath(c.Path)
		if err != nil {
			return err
		}
		if v, ok := lookup(doc, parts); ok && v != nil {
			return ErrConditionFailed
		}
	}
	for path, value := range patch {
		parts, err := splitPath(path)
		if err != nil {
			return err
		}
		norm, err := normalize(value)
		if err != nil {
			return fmt.Errorf("patch %q: %w", path, err)
		}
		if err := setPath(doc, parts, norm); err != nil {
			return err
		}
	}
	return nil
}
