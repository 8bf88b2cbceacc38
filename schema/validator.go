// Package schema validates write requests against the closed record
// schema and turns them into typed payloads.
package schema

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"go.pilab.hu/stats/domain"
	serrors "go.pilab.hu/stats/errors"
	"go.pilab.hu/stats/facets"
)

// Mode selects the validation rules of a request.
type Mode int

const (
	ModeCreate Mode = iota + 1
	ModeUpdate
	ModeDelete
)

func (m Mode) String() string {
	switch m {
	case ModeCreate:
		return "create"
	case ModeUpdate:
		return "update"
	case ModeDelete:
		return "delete"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

const (
	keyMetadata = "metadata"
	keyQuery    = "query"
)

// Validator checks request bodies. It is safe for concurrent use.
type Validator struct {
	vocabulary facets.Provider
	metadata   *openapi3.Schema
}

// NewValidator returns a Validator that checks facet names against the
// vocabulary of p on every call.
func NewValidator(p facets.Provider) *Validator {
	return &Validator{
		vocabulary: p,
		metadata:   MetadataSchema(),
	}
}

// MetadataSchema is the closed schema of the client-supplied metadata.
// date is assigned by the service and therefore not part of it.
func MetadataSchema() *openapi3.Schema {
	uniqKeys := make([]any, len(domain.UniqKeys))
	for i, k := range domain.UniqKeys {
		uniqKeys[i] = k
	}

	s := openapi3.NewObjectSchema().
		WithProperty(domain.FieldNumResults, openapi3.NewIntegerSchema().WithMin(0)).
		WithProperty(domain.FieldFlavour, openapi3.NewStringSchema()).
		WithProperty(domain.FieldUniqKey, openapi3.NewStringSchema().WithEnum(uniqKeys...)).
		WithProperty(domain.FieldServerStatus, openapi3.NewIntegerSchema().WithMin(0))
	s.Required = []string{
		domain.FieldNumResults,
		domain.FieldFlavour,
		domain.FieldUniqKey,
		domain.FieldServerStatus,
	}
	return closed(s)
}

// QuerySchema is the closed schema of the facet query for a vocabulary.
func QuerySchema(vocabulary []string) *openapi3.Schema {
	s := openapi3.NewObjectSchema()
	for _, facet := range vocabulary {
		s.WithProperty(facet, openapi3.NewStringSchema())
	}
	return closed(s)
}

func closed(s *openapi3.Schema) *openapi3.Schema {
	s.AdditionalProperties = openapi3.AdditionalProperties{Has: openapi3.BoolPtr(false)}
	return s
}

// Validate checks body for mode and returns the typed payload. Delete
// requests carry no body and yield a nil payload.
func (v *Validator) Validate(ctx context.Context, mode Mode, body map[string]any) (domain.Payload, error) {
	switch mode {
	case ModeDelete:
		return nil, nil
	case ModeCreate, ModeUpdate:
	default:
		return nil, fmt.Errorf("unknown validation mode %s", mode)
	}

	vocabulary, err := v.vocabulary.Facets(ctx)
	if err != nil {
		return nil, serrors.NewStoreError(err, "facet vocabulary unavailable")
	}

	if mode == ModeCreate {
		return v.validateCreate(body, vocabulary)
	}
	return v.validateUpdate(body, vocabulary)
}

func (v *Validator) validateCreate(body map[string]any, vocabulary []string) (domain.Payload, error) {
	record := openapi3.NewObjectSchema().
		WithProperty(keyMetadata, v.metadata).
		WithProperty(keyQuery, QuerySchema(vocabulary))
	record.Required = []string{keyMetadata, keyQuery}

	if err := visit(closed(record), body, ""); err != nil {
		return nil, err
	}
	if err := checkIntegers(keyMetadata, body[keyMetadata].(map[string]any)); err != nil {
		return nil, err
	}

	return &domain.FullRecord{
		Metadata: toMetadata(body[keyMetadata].(map[string]any)),
		Query:    toQuery(body[keyQuery].(map[string]any)),
	}, nil
}

func (v *Validator) validateUpdate(body map[string]any, vocabulary []string) (domain.Payload, error) {
	keys := make([]string, 0, len(body))
	for k := range body {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, whole := range []string{keyMetadata, keyQuery} {
		if _, ok := body[whole]; !ok {
			continue
		}
		for _, k := range keys {
			if strings.HasPrefix(k, whole+".") {
				return nil, serrors.NewValidation(k, fmt.Sprintf("cannot be combined with a full %q object", whole))
			}
		}
	}

	querySchema := QuerySchema(vocabulary)
	fields := make(map[string]any, len(body))

	for _, k := range keys {
		value := body[k]
		switch {
		case k == keyMetadata:
			if err := visit(v.metadata, value, keyMetadata); err != nil {
				return nil, err
			}
			if err := checkIntegers(keyMetadata, value.(map[string]any)); err != nil {
				return nil, err
			}
			m := toMetadata(value.(map[string]any))
			for dotted, val := range (&domain.FullRecord{Metadata: m}).SetFields() {
				if dotted != keyQuery {
					fields[dotted] = val
				}
			}

		case k == keyQuery:
			if err := visit(querySchema, value, keyQuery); err != nil {
				return nil, err
			}
			fields[keyQuery] = toQuery(value.(map[string]any))

		case strings.HasPrefix(k, keyMetadata+"."):
			name := strings.TrimPrefix(k, keyMetadata+".")
			ref, ok := v.metadata.Properties[name]
			if !ok {
				return nil, serrors.NewValidation(k, "unknown metadata field")
			}
			if err := visit(ref.Value, value, k); err != nil {
				return nil, err
			}
			if isInteger(name) {
				n, ok := toInt64(value)
				if !ok {
					return nil, serrors.NewValidation(k, errOutOfRange)
				}
				value = n
			}
			fields[k] = value

		case strings.HasPrefix(k, keyQuery+"."):
			name := strings.TrimPrefix(k, keyQuery+".")
			if !facets.Contains(vocabulary, name) {
				return nil, serrors.NewValidation(k, "unknown facet")
			}
			if err := visit(querySchema.Properties[name].Value, value, k); err != nil {
				return nil, err
			}
			fields[k] = value

		default:
			return nil, serrors.NewValidation(k, "unknown field")
		}
	}

	_, hasMetadata := body[keyMetadata]
	_, hasQuery := body[keyQuery]
	if hasMetadata && hasQuery && len(body) == 2 {
		return &domain.FullRecord{
			Metadata: toMetadata(body[keyMetadata].(map[string]any)),
			Query:    fields[keyQuery].(map[string]string),
		}, nil
	}
	return &domain.PartialRecord{Fields: fields}, nil
}

// visit validates value and converts a schema failure into a
// ValidationError naming the offending field.
func visit(s *openapi3.Schema, value any, path string) error {
	err := s.VisitJSON(value)
	if err == nil {
		return nil
	}

	var schemaErr *openapi3.SchemaError
	if !stderrors.As(err, &schemaErr) {
		return serrors.NewValidation(fieldName(path, nil), "invalid value")
	}
	return serrors.NewValidation(fieldName(path, schemaErr.JSONPointer()), schemaErr.Reason)
}

func fieldName(path string, pointer []string) string {
	parts := make([]string, 0, len(pointer)+1)
	if path != "" {
		parts = append(parts, path)
	}
	parts = append(parts, pointer...)
	if len(parts) == 0 {
		return "body"
	}
	return strings.Join(parts, ".")
}

func toMetadata(m map[string]any) domain.Metadata {
	return domain.Metadata{
		NumResults:   mustInt64(m[domain.FieldNumResults]),
		Flavour:      m[domain.FieldFlavour].(string),
		UniqKey:      m[domain.FieldUniqKey].(string),
		ServerStatus: mustInt64(m[domain.FieldServerStatus]),
	}
}

// mustInt64 is toInt64 for values checkIntegers already accepted.
func mustInt64(v any) int64 {
	n, _ := toInt64(v)
	return n
}

func toQuery(m map[string]any) map[string]string {
	q := make(map[string]string, len(m))
	for k, v := range m {
		q[k] = v.(string)
	}
	return q
}

const errOutOfRange = "number must fit a 64-bit integer"

func isInteger(field string) bool {
	return field == domain.FieldNumResults || field == domain.FieldServerStatus
}

// checkIntegers rejects whole numbers the schema accepts but int64
// cannot hold.
func checkIntegers(path string, m map[string]any) error {
	for _, field := range []string{domain.FieldNumResults, domain.FieldServerStatus} {
		if _, ok := toInt64(m[field]); !ok {
			return serrors.NewValidation(path+"."+field, errOutOfRange)
		}
	}
	return nil
}

// toInt64 converts an already validated JSON integer. ok is false when
// the value does not fit into an int64.
func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		// float64(math.MaxInt64) rounds up to 2^63, which is out of range
		if n >= math.MaxInt64 || n < math.MinInt64 {
			return 0, false
		}
		return int64(math.Round(n)), true
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case int:
		return int64(n), true
	case int64:
		return n, true
	case int32:
		return int64(n), true
	default:
		return 0, false
	}
}
