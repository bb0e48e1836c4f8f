package model

import (
	"fmt"

	"github.com/google/uuid"
)

// FieldType is the declared type of a schema field.
type FieldType string

const (
	FieldTypeNumeric     FieldType = "numeric"
	FieldTypeString      FieldType = "string"
	FieldTypeDate        FieldType = "date"
	FieldTypeCategorical FieldType = "categorical"
)

// String returns the string representation of the FieldType.
func (t FieldType) String() string {
	return string(t)
}

// IsValid checks whether the FieldType is one of the declared variants.
func (t FieldType) IsValid() bool {
	switch t {
	case FieldTypeNumeric, FieldTypeString, FieldTypeDate, FieldTypeCategorical:
		return true
	default:
		return false
	}
}

// Field describes one column of a Batch: its name, declared type, and
// whether null values are permitted.
type Field struct {
	Name     string    `yaml:"name"`
	Type     FieldType `yaml:"type"`
	Nullable bool      `yaml:"nullable"`
}

// Schema is the ordered list of Field definitions a Batch conforms to.
type Schema struct {
	Fields []Field
}

// NewSchema creates a Schema from the given fields.
func NewSchema(fields ...Field) Schema {
	return Schema{Fields: fields}
}

// FieldNames returns the field names in schema order.
func (s Schema) FieldNames() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Field looks up a field definition by name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// HasField reports whether the schema declares the named field.
func (s Schema) HasField(name string) bool {
	_, ok := s.Field(name)
	return ok
}

// Rename returns a copy of the schema with field names replaced through the
// given mapping. Names absent from the mapping are kept as-is.
func (s Schema) Rename(mapping map[string]string) Schema {
	fields := make([]Field, len(s.Fields))
	copy(fields, s.Fields)
	for i, f := range fields {
		if newName, ok := mapping[f.Name]; ok {
			fields[i].Name = newName
		}
	}
	return Schema{Fields: fields}
}

// Record is one row of a Batch: a mapping from field name to value plus a
// stable row identifier assigned at ingestion. A nil value is a missing value.
type Record struct {
	ID     string
	Values map[string]interface{}
}

// NewRecord creates a Record with a generated row identifier.
func NewRecord(values map[string]interface{}) *Record {
	return &Record{ID: NewID(), Values: values}
}

// Get returns the value for the named field.
func (r *Record) Get(field string) (interface{}, bool) {
	v, ok := r.Values[field]
	return v, ok
}

// Set stores a value for the named field.
func (r *Record) Set(field string, value interface{}) {
	r.Values[field] = value
}

// IsMissing reports whether the named field holds a missing value.
func (r *Record) IsMissing(field string) bool {
	v, ok := r.Values[field]
	return !ok || v == nil
}

// Clone creates a deep copy of the Record, keeping the row identifier.
func (r *Record) Clone() *Record {
	values := make(map[string]interface{}, len(r.Values))
	for k, v := range r.Values {
		values[k] = v
	}
	return &Record{ID: r.ID, Values: values}
}

// Batch is one in-memory dataset instance: an ordered sequence of Records
// sharing one Schema. Stages never mutate a Batch in place; each stage clones
// its input and returns a new version.
type Batch struct {
	ID      string
	Version int
	Schema  Schema
	Records []*Record
}

// NewBatch creates a Batch at version 0 with a generated identifier.
func NewBatch(schema Schema, records []*Record) *Batch {
	return &Batch{
		ID:      NewID(),
		Version: 0,
		Schema:  schema,
		Records: records,
	}
}

// Len returns the number of records.
func (b *Batch) Len() int {
	return len(b.Records)
}

// Clone creates a deep copy of the Batch with the version incremented.
// Record identifiers and batch order are preserved.
func (b *Batch) Clone() *Batch {
	records := make([]*Record, len(b.Records))
	for i, r := range b.Records {
		records[i] = r.Clone()
	}
	return &Batch{
		ID:      b.ID,
		Version: b.Version + 1,
		Schema:  b.Schema,
		Records: records,
	}
}

// Column returns the named field's values in batch order.
func (b *Batch) Column(field string) []interface{} {
	values := make([]interface{}, len(b.Records))
	for i, r := range b.Records {
		values[i] = r.Values[field]
	}
	return values
}

// CheckConformance verifies the structural invariant: every record's key set
// equals the schema's field names.
func (b *Batch) CheckConformance() error {
	names := b.Schema.FieldNames()
	for i, r := range b.Records {
		if len(r.Values) != len(names) {
			return fmt.Errorf("record %d (ID: %s) has %d fields, schema declares %d", i, r.ID, len(r.Values), len(names))
		}
		for _, name := range names {
			if _, ok := r.Values[name]; !ok {
				return fmt.Errorf("record %d (ID: %s) is missing schema field %q", i, r.ID, name)
			}
		}
	}
	return nil
}

// NewID generates a new UUID string.
func NewID() string {
	return uuid.New().String()
}
