// Package schema validates agent payloads against declared JSON schema
// documents and optionally applies bounded, declared-safe repairs.
//
// Validation is structural: required fields, field types, and enum
// membership. Repair never invents semantic content; it only coerces
// unambiguous scalars, inserts declared defaults for missing optional
// fields, and drops fields the schema does not know. Anything beyond
// that leaves the payload invalid.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/bountyswarm/bountyswarm/pkg/jsonutil"
)

// Field types understood by the validator.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
)

// Field declares one payload field.
type Field struct {
	Type     string   `json:"type"`
	Required bool     `json:"required,omitempty"`
	Enum     []string `json:"enum,omitempty"`

	// Default is inserted by repair when an optional field is missing.
	Default any `json:"default,omitempty"`
}

// Document is one named payload schema.
type Document struct {
	Name   string           `json:"name"`
	Fields map[string]Field `json:"fields"`

	// AllowUnknown keeps fields the schema does not declare. When
	// false, repair drops them and strict validation flags them.
	AllowUnknown bool `json:"allow_unknown,omitempty"`
}

// Catalog is the findings schema document: a set of named schemas
// agents can declare conformance to. The file is copied verbatim into
// each run's output directory for provenance.
type Catalog struct {
	Schemas map[string]Document `json:"schemas"`
}

// LoadCatalog reads a schema catalog from path.
func LoadCatalog(path string) (Catalog, error) {
	var c Catalog
	if err := jsonutil.ReadFile(path, &c); err != nil {
		return Catalog{}, fmt.Errorf("schema: load catalog: %w", err)
	}
	for name, doc := range c.Schemas {
		doc.Name = name
		c.Schemas[name] = doc
	}
	return c, nil
}

// Lookup returns the named schema.
func (c Catalog) Lookup(name string) (Document, bool) {
	doc, ok := c.Schemas[name]
	return doc, ok
}

// Status classifies a validation outcome.
type Status string

const (
	StatusValid    Status = "valid"
	StatusRepaired Status = "repaired"
	StatusInvalid  Status = "invalid"
)

// Violation kinds.
const (
	KindMissing = "missing"
	KindType    = "type"
	KindEnum    = "enum"
	KindUnknown = "unknown_field"
)

// Violation describes one schema violation.
type Violation struct {
	Field  string `json:"field"`
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

func (v Violation) String() string {
	return v.Kind + ":" + v.Field
}

// Result is the outcome of validating (and possibly repairing) one
// payload.
type Result struct {
	Status     Status      `json:"status"`
	Violations []Violation `json:"violations,omitempty"`

	// Repairs lists the repair actions taken, e.g. "coerced:port".
	Repairs []string `json:"repairs,omitempty"`

	// Payload is the (possibly repaired) payload. It equals the input
	// when no repair ran.
	Payload json.RawMessage `json:"-"`
}

// Validate checks payload against doc without modifying it.
func Validate(payload json.RawMessage, doc Document) Result {
	obj, err := decodeObject(payload)
	if err != nil {
		return Result{
			Status:     StatusInvalid,
			Violations: []Violation{{Field: "", Kind: KindType, Detail: "payload is not a JSON object"}},
			Payload:    payload,
		}
	}
	violations := check(obj, doc)
	if len(violations) == 0 {
		return Result{Status: StatusValid, Payload: payload}
	}
	return Result{Status: StatusInvalid, Violations: violations, Payload: payload}
}

// Repair validates payload and, when violations exist, applies the
// bounded repairs. A payload that is already valid passes through
// unchanged (repair is idempotent). If repairs cannot resolve every
// violation the result stays invalid, with the remaining violations.
func Repair(payload json.RawMessage, doc Document) Result {
	obj, err := decodeObject(payload)
	if err != nil {
		return Result{
			Status:     StatusInvalid,
			Violations: []Violation{{Field: "", Kind: KindType, Detail: "payload is not a JSON object"}},
			Payload:    payload,
		}
	}
	if len(check(obj, doc)) == 0 {
		return Result{Status: StatusValid, Payload: payload}
	}

	var repairs []string

	// Drop fields the schema does not declare.
	if !doc.AllowUnknown {
		for name := range obj {
			if _, known := doc.Fields[name]; !known {
				delete(obj, name)
				repairs = append(repairs, "dropped:"+name)
			}
		}
	}

	names := make([]string, 0, len(doc.Fields))
	for name := range doc.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		field := doc.Fields[name]
		val, present := obj[name]
		if !present || val == nil {
			// Defaults only ever fill optional fields; repair never
			// fabricates required content.
			if !field.Required && field.Default != nil {
				obj[name] = field.Default
				repairs = append(repairs, "defaulted:"+name)
			}
			continue
		}
		if typeMatches(val, field.Type) {
			continue
		}
		if coerced, ok := coerce(val, field.Type); ok {
			obj[name] = coerced
			repairs = append(repairs, "coerced:"+name)
		}
	}

	remaining := check(obj, doc)
	repaired, err := json.Marshal(obj)
	if err != nil {
		repaired = payload
	}
	sort.Strings(repairs)
	if len(remaining) > 0 {
		return Result{Status: StatusInvalid, Violations: remaining, Repairs: repairs, Payload: repaired}
	}
	return Result{Status: StatusRepaired, Repairs: repairs, Payload: repaired}
}

func decodeObject(payload json.RawMessage) (map[string]any, error) {
	if len(payload) == 0 {
		return map[string]any{}, nil
	}
	var obj map[string]any
	if err := json.Unmarshal(payload, &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		obj = map[string]any{}
	}
	return obj, nil
}

// check returns all violations of obj against doc, in a stable order.
func check(obj map[string]any, doc Document) []Violation {
	var violations []Violation

	names := make([]string, 0, len(doc.Fields))
	for name := range doc.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		field := doc.Fields[name]
		val, present := obj[name]
		// Explicit null counts as absent: optional fields may be null.
		if !present || val == nil {
			if field.Required {
				violations = append(violations, Violation{Field: name, Kind: KindMissing})
			}
			continue
		}
		if !typeMatches(val, field.Type) {
			violations = append(violations, Violation{
				Field:  name,
				Kind:   KindType,
				Detail: fmt.Sprintf("want %s", field.Type),
			})
			continue
		}
		if len(field.Enum) > 0 {
			s, isStr := val.(string)
			if !isStr || !contains(field.Enum, s) {
				violations = append(violations, Violation{Field: name, Kind: KindEnum})
			}
		}
	}

	if !doc.AllowUnknown {
		extras := make([]string, 0)
		for name := range obj {
			if _, known := doc.Fields[name]; !known {
				extras = append(extras, name)
			}
		}
		sort.Strings(extras)
		for _, name := range extras {
			violations = append(violations, Violation{Field: name, Kind: KindUnknown})
		}
	}
	return violations
}

func typeMatches(val any, fieldType string) bool {
	switch fieldType {
	case TypeString:
		_, ok := val.(string)
		return ok
	case TypeNumber:
		_, ok := val.(float64)
		return ok
	case TypeInteger:
		f, ok := val.(float64)
		return ok && f == float64(int64(f))
	case TypeBoolean:
		_, ok := val.(bool)
		return ok
	case TypeArray:
		_, ok := val.([]any)
		return ok
	case TypeObject:
		_, ok := val.(map[string]any)
		return ok
	}
	return false
}

// coerce converts val to fieldType when the conversion is unambiguous:
// numeric strings to numbers, numbers to their decimal string, and the
// literal strings "true"/"false" to booleans. Everything else is
// declined.
func coerce(val any, fieldType string) (any, bool) {
	switch fieldType {
	case TypeString:
		switch v := val.(type) {
		case float64:
			if v == float64(int64(v)) {
				return strconv.FormatInt(int64(v), 10), true
			}
			return strconv.FormatFloat(v, 'f', -1, 64), true
		case bool:
			return strconv.FormatBool(v), true
		}
	case TypeNumber:
		if s, ok := val.(string); ok {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return f, true
			}
		}
	case TypeInteger:
		switch v := val.(type) {
		case string:
			if i, err := strconv.ParseInt(v, 10, 64); err == nil {
				return float64(i), true
			}
		case float64:
			if v == float64(int64(v)) {
				return v, true
			}
		}
	case TypeBoolean:
		if s, ok := val.(string); ok {
			switch s {
			case "true":
				return true, true
			case "false":
				return false, true
			}
		}
	}
	return nil, false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
