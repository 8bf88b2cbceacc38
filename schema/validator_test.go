package schema

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.pilab.hu/stats/domain"
	serrors "go.pilab.hu/stats/errors"
	"go.pilab.hu/stats/facets"
)

type failingProvider struct{}

func (failingProvider) Facets(context.Context) ([]string, error) {
	return nil, errors.New("catalog unreachable")
}

func body(t *testing.T, raw string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func newTestValidator() *Validator {
	return NewValidator(facets.Static{"project", "model", "variable"})
}

func requireValidation(t *testing.T, err error, field string) {
	t.Helper()
	require.Error(t, err)
	assert.ErrorIs(t, err, serrors.ErrValidation)
	assert.Contains(t, serrors.As(err).Detail, field)
}

func TestValidateCreate(t *testing.T) {
	v := newTestValidator()

	payload, err := v.Validate(context.Background(), ModeCreate, body(t, `{
		"metadata": {"num_results": 5, "flavour": "freva", "uniq_key": "file", "server_status": 200},
		"query": {"project": "cmip6"}
	}`))
	require.NoError(t, err)

	record, ok := payload.(*domain.FullRecord)
	require.True(t, ok)
	assert.Equal(t, domain.Metadata{NumResults: 5, Flavour: "freva", UniqKey: "file", ServerStatus: 200}, record.Metadata)
	assert.Equal(t, map[string]string{"project": "cmip6"}, record.Query)
}

func TestValidateCreate_Rejections(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{
			name:  "missing query",
			body:  `{"metadata": {"num_results": 5, "flavour": "freva", "uniq_key": "file", "server_status": 200}}`,
			field: "query",
		},
		{
			name:  "missing metadata field",
			body:  `{"metadata": {"num_results": 5, "flavour": "freva", "uniq_key": "file"}, "query": {}}`,
			field: "server_status",
		},
		{
			name:  "client supplied date",
			body:  `{"metadata": {"num_results": 5, "flavour": "freva", "uniq_key": "file", "server_status": 200, "date": "2024-01-01"}, "query": {}}`,
			field: "metadata",
		},
		{
			name:  "negative num_results",
			body:  `{"metadata": {"num_results": -1, "flavour": "freva", "uniq_key": "file", "server_status": 200}, "query": {}}`,
			field: "num_results",
		},
		{
			name:  "fractional server_status",
			body:  `{"metadata": {"num_results": 1, "flavour": "freva", "uniq_key": "file", "server_status": 200.5}, "query": {}}`,
			field: "server_status",
		},
		{
			name:  "num_results beyond int64",
			body:  `{"metadata": {"num_results": 1e20, "flavour": "freva", "uniq_key": "file", "server_status": 200}, "query": {}}`,
			field: "metadata.num_results",
		},
		{
			name:  "server_status of 2^63",
			body:  `{"metadata": {"num_results": 1, "flavour": "freva", "uniq_key": "file", "server_status": 9223372036854775808}, "query": {}}`,
			field: "metadata.server_status",
		},
		{
			name:  "bad uniq_key",
			body:  `{"metadata": {"num_results": 1, "flavour": "freva", "uniq_key": "dataset", "server_status": 200}, "query": {}}`,
			field: "uniq_key",
		},
		{
			name:  "unknown facet",
			body:  `{"metadata": {"num_results": 1, "flavour": "freva", "uniq_key": "uri", "server_status": 200}, "query": {"colour": "red"}}`,
			field: "query",
		},
		{
			name:  "non string facet value",
			body:  `{"metadata": {"num_results": 1, "flavour": "freva", "uniq_key": "uri", "server_status": 200}, "query": {"project": 6}}`,
			field: "project",
		},
		{
			name:  "unknown top level key",
			body:  `{"metadata": {"num_results": 1, "flavour": "freva", "uniq_key": "uri", "server_status": 200}, "query": {}, "extra": 1}`,
			field: "body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(context.Background(), ModeCreate, body(t, tt.body))
			requireValidation(t, err, tt.field)
		})
	}
}

func TestValidateUpdate_DottedKeys(t *testing.T) {
	v := newTestValidator()

	payload, err := v.Validate(context.Background(), ModeUpdate, body(t, `{
		"metadata.num_results": 7,
		"query.model": "mpi-esm"
	}`))
	require.NoError(t, err)

	partial, ok := payload.(*domain.PartialRecord)
	require.True(t, ok)
	assert.Equal(t, map[string]any{
		"metadata.num_results": int64(7),
		"query.model":          "mpi-esm",
	}, partial.SetFields())
}

func TestValidateUpdate_FullRecordKeepsDate(t *testing.T) {
	v := newTestValidator()

	payload, err := v.Validate(context.Background(), ModeUpdate, body(t, `{
		"metadata": {"num_results": 1, "flavour": "cmip6", "uniq_key": "uri", "server_status": 500},
		"query": {"variable": "tas"}
	}`))
	require.NoError(t, err)

	record, ok := payload.(*domain.FullRecord)
	require.True(t, ok)
	assert.NotContains(t, record.SetFields(), "metadata.date")
	assert.Equal(t, map[string]string{"variable": "tas"}, record.Query)
}

func TestValidateUpdate_MetadataObjectWithQueryFacet(t *testing.T) {
	v := newTestValidator()

	payload, err := v.Validate(context.Background(), ModeUpdate, body(t, `{
		"metadata": {"num_results": 1, "flavour": "cmip6", "uniq_key": "uri", "server_status": 500},
		"query.project": "cordex"
	}`))
	require.NoError(t, err)

	fields := payload.SetFields()
	assert.Equal(t, int64(500), fields["metadata.server_status"])
	assert.Equal(t, "cordex", fields["query.project"])
	assert.NotContains(t, fields, "metadata")
}

func TestValidate_LargestInteger(t *testing.T) {
	payload, err := newTestValidator().Validate(context.Background(), ModeUpdate, body(t, `{"metadata.num_results": 9007199254740992}`))
	require.NoError(t, err)
	assert.Equal(t, int64(9007199254740992), payload.SetFields()["metadata.num_results"])
}

func TestValidateUpdate_Empty(t *testing.T) {
	payload, err := newTestValidator().Validate(context.Background(), ModeUpdate, map[string]any{})
	require.NoError(t, err)
	assert.Empty(t, payload.SetFields())
}

func TestValidateUpdate_Rejections(t *testing.T) {
	v := newTestValidator()

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{
			name:  "metadata object mixed with dotted key",
			body:  `{"metadata": {"num_results": 1, "flavour": "freva", "uniq_key": "uri", "server_status": 200}, "metadata.num_results": 2}`,
			field: "metadata.num_results",
		},
		{
			name:  "query object mixed with dotted key",
			body:  `{"query": {"project": "a"}, "query.model": "b"}`,
			field: "query.model",
		},
		{
			name:  "incomplete metadata object",
			body:  `{"metadata": {"num_results": 1}}`,
			field: "metadata",
		},
		{
			name:  "dotted date",
			body:  `{"metadata.date": "2024-01-01"}`,
			field: "metadata.date",
		},
		{
			name:  "unknown dotted metadata",
			body:  `{"metadata.colour": "red"}`,
			field: "metadata.colour",
		},
		{
			name:  "unknown dotted facet",
			body:  `{"query.colour": "red"}`,
			field: "query.colour",
		},
		{
			name:  "wrong dotted type",
			body:  `{"metadata.num_results": "many"}`,
			field: "metadata.num_results",
		},
		{
			name:  "dotted num_results beyond int64",
			body:  `{"metadata.num_results": 1e20}`,
			field: "metadata.num_results",
		},
		{
			name:  "metadata object beyond int64",
			body:  `{"metadata": {"num_results": 1e19, "flavour": "freva", "uniq_key": "uri", "server_status": 200}}`,
			field: "metadata.num_results",
		},
		{
			name:  "unknown key",
			body:  `{"id": "abc"}`,
			field: "id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Validate(context.Background(), ModeUpdate, body(t, tt.body))
			requireValidation(t, err, tt.field)
		})
	}
}

func TestValidateDelete_IgnoresBody(t *testing.T) {
	payload, err := NewValidator(failingProvider{}).Validate(context.Background(), ModeDelete, map[string]any{"anything": 1})
	require.NoError(t, err)
	assert.Nil(t, payload)
}

func TestValidate_VocabularyUnavailable(t *testing.T) {
	_, err := NewValidator(failingProvider{}).Validate(context.Background(), ModeCreate, map[string]any{})
	assert.ErrorIs(t, err, serrors.ErrStore)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "create", ModeCreate.String())
	assert.Equal(t, "update", ModeUpdate.String())
	assert.Equal(t, "delete", ModeDelete.String())
}
