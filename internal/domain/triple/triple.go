// Package triple defines subject-predicate-object facts with provenance metadata.
package triple

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RefKind tags the domain a reference originates from.
type RefKind string

// Reference kinds.
const (
	KindSystem   RefKind = "system-reference"
	KindRelation RefKind = "relation-reference"
	KindTarget   RefKind = "target-reference"
)

// Ref is one position of a triple. Value is a string, or a number for target references.
type Ref struct {
	Kind  RefKind `json:"kind"`
	Value any     `json:"value"`
}

// String renders the value in the canonical form used for identity.
func (r Ref) String() string {
	switch v := r.Value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Metadata carries provenance. Fields holds free-form context (basedOn, category, daysDiff, ...).
type Metadata struct {
	Source     string         `json:"source"`
	Confidence float64        `json:"confidence"`
	Timestamp  time.Time      `json:"timestamp"`
	Fields     map[string]any `json:"fields,omitempty"`
}

// Field returns a free-form metadata value.
func (m Metadata) Field(key string) (any, bool) {
	v, ok := m.Fields[key]
	return v, ok
}

// With returns a copy with the field set.
func (m Metadata) With(key string, value any) Metadata {
	out := m.Clone()
	if out.Fields == nil {
		out.Fields = make(map[string]any, 1)
	}
	out.Fields[key] = value
	return out
}

// Clone returns a copy with an independent Fields map.
func (m Metadata) Clone() Metadata {
	m.Fields = maps.Clone(m.Fields)
	return m
}

// Triple is an atomic semantic fact.
type Triple struct {
	ID        string   `json:"id"`
	Subject   Ref      `json:"subject"`
	Predicate Ref      `json:"predicate"`
	Object    Ref      `json:"object"`
	Metadata  Metadata `json:"metadata"`
}

// New builds a triple; the ID is derived from its identity so equal facts share an ID.
func New(subject, predicate string, object any, md Metadata) Triple {
	t := Triple{
		Subject:   Ref{Kind: KindSystem, Value: subject},
		Predicate: Ref{Kind: KindRelation, Value: predicate},
		Object:    Ref{Kind: KindTarget, Value: object},
		Metadata:  md.Clone(),
	}
	t.ID = IDFor(t.Key())
	return t
}

// Key is the dedup identity of subject, predicate and object.
func (t Triple) Key() string {
	return KeyOf(t.Subject.String(), t.Predicate.String(), t.Object.String())
}

// KeyOf builds an identity key from rendered values. Each part is length-prefixed
// so no value can spill into its neighbor.
func KeyOf(subject, predicate, object string) string {
	var b strings.Builder
	for _, part := range [...]string{subject, predicate, object} {
		b.WriteString(strconv.Itoa(len(part)))
		b.WriteByte(':')
		b.WriteString(part)
	}
	return b.String()
}

// IDFor derives a stable identifier from an identity key.
func IDFor(key string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String()
}

// SubjectValue returns the subject as a string.
func (t Triple) SubjectValue() string { return t.Subject.String() }

// PredicateValue returns the predicate name.
func (t Triple) PredicateValue() string { return t.Predicate.String() }

// ObjectValue returns the object rendered as a string.
func (t Triple) ObjectValue() string { return t.Object.String() }

// Confidence returns the metadata confidence.
func (t Triple) Confidence() float64 { return t.Metadata.Confidence }
