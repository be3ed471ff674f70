package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/pinbase/internal/ir"
)

// marshalValue converts a claim value to JSON TEXT for storage.
// Objects are written with sorted keys, and decimals keep their exact text,
// so equal values always produce equal column contents.
func marshalValue(v ir.IRValue) (string, error) {
	data, err := ir.MarshalIRValue(v)
	if err != nil {
		return "", fmt.Errorf("marshal value: %w", err)
	}
	return string(data), nil
}

// unmarshalValue parses JSON TEXT back into an IRValue.
func unmarshalValue(data string) (ir.IRValue, error) {
	v, err := ir.UnmarshalIRValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return v, nil
}

func marshalObject(obj ir.IRObject) (string, error) {
	if obj == nil {
		return "{}", nil
	}
	data, err := obj.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("marshal object: %w", err)
	}
	return string(data), nil
}

func unmarshalObject(data string) (ir.IRObject, error) {
	if data == "" || data == "{}" {
		return ir.IRObject{}, nil
	}
	var obj ir.IRObject
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal object: %w", err)
	}
	return obj, nil
}

func marshalGroup(g ir.GroupKey) (string, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return "", fmt.Errorf("marshal group key: %w", err)
	}
	return string(data), nil
}

func unmarshalGroup(data string) (ir.GroupKey, error) {
	var g ir.GroupKey
	if data == "" || data == "{}" {
		return g, nil
	}
	if err := json.Unmarshal([]byte(data), &g); err != nil {
		return ir.GroupKey{}, fmt.Errorf("unmarshal group key: %w", err)
	}
	return g, nil
}

func marshalCredits(credits []ir.Credit) (string, error) {
	if len(credits) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(credits)
	if err != nil {
		return "", fmt.Errorf("marshal credits: %w", err)
	}
	return string(data), nil
}

func unmarshalCredits(data string) ([]ir.Credit, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var credits []ir.Credit
	if err := json.Unmarshal([]byte(data), &credits); err != nil {
		return nil, fmt.Errorf("unmarshal credits: %w", err)
	}
	return credits, nil
}

// parentColumns splits an optional parent ref into nullable columns.
func parentColumns(p *ir.EntityRef) (sql.NullString, sql.NullString) {
	if p == nil {
		return sql.NullString{}, sql.NullString{}
	}
	return sql.NullString{String: string(p.Kind), Valid: true},
		sql.NullString{String: p.ID, Valid: true}
}

func parentRef(kind, id sql.NullString) *ir.EntityRef {
	if !kind.Valid || !id.Valid {
		return nil
	}
	ref := ir.Ref(ir.EntityKind(kind.String), id.String)
	return &ref
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
