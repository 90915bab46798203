package db

import (
	"errors"
	"fmt"
	"strings"
)

// FieldType enumerates the FT schema field kinds the point index uses.
type FieldType int

const (
	// FieldTag is an exact-match tag field, optionally multi-valued via a separator.
	FieldTag FieldType = iota
	// FieldNumeric supports range filters.
	FieldNumeric
	// FieldVector is an HNSW cosine FLOAT32 vector field.
	FieldVector
)

// HNSW tuning applied when a vector field leaves it unset.
const (
	DefaultHNSWM           = 16
	DefaultHNSWEFConstruct = 200
)

// IndexField is one field of an FT schema over hashes.
type IndexField struct {
	Name string
	Type FieldType

	// Separator splits multi-valued tags; empty means the engine default.
	Separator     string
	CaseSensitive bool

	Dim         int
	M           int
	EFConstruct int
}

// TagField declares a case-sensitive tag field. sep splits multi-valued tags.
func TagField(name, sep string) IndexField {
	return IndexField{Name: name, Type: FieldTag, Separator: sep, CaseSensitive: true}
}

// NumericField declares a numeric field.
func NumericField(name string) IndexField {
	return IndexField{Name: name, Type: FieldNumeric}
}

// VectorField declares an HNSW vector field. Zero m or ef fall back to the defaults.
func VectorField(name string, dim, m, ef int) IndexField {
	if m <= 0 {
		m = DefaultHNSWM
	}
	if ef <= 0 {
		ef = DefaultHNSWEFConstruct
	}
	return IndexField{Name: name, Type: FieldVector, Dim: dim, M: m, EFConstruct: ef}
}

// IndexDefinition describes an FT index over hashes whose keys start with Prefix.
type IndexDefinition struct {
	Name   string
	Prefix string
	Fields []IndexField
}

// Validate checks names and the vector dimension.
func (d *IndexDefinition) Validate() error {
	if !validIdentifier(d.Name) {
		return fmt.Errorf("invalid index name %q", d.Name)
	}
	if d.Prefix == "" {
		return errors.New("index prefix is required")
	}
	if len(d.Fields) == 0 {
		return errors.New("at least one field is required")
	}
	seen := make(map[string]struct{}, len(d.Fields))
	vectors := 0
	for _, f := range d.Fields {
		if !validIdentifier(f.Name) {
			return fmt.Errorf("invalid field name %q", f.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("duplicate field %q", f.Name)
		}
		seen[f.Name] = struct{}{}
		switch f.Type {
		case FieldTag, FieldNumeric:
		case FieldVector:
			vectors++
			if f.Dim <= 0 {
				return fmt.Errorf("vector field %q needs a positive dimension", f.Name)
			}
		default:
			return fmt.Errorf("field %q has unknown type %d", f.Name, f.Type)
		}
	}
	if vectors > 1 {
		return errors.New("at most one vector field is supported")
	}
	return nil
}

// validIdentifier accepts [a-zA-Z0-9_:-]+, the characters key prefixes are built from.
func validIdentifier(s string) bool {
	return s != "" && strings.IndexFunc(s, func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return false
		case r == '_', r == ':', r == '-':
			return false
		}
		return true
	}) < 0
}
