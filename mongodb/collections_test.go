package mongodb

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.pilab.hu/stats/domain"
	serrors "go.pilab.hu/stats/errors"
)

func TestCheckNamespace(t *testing.T) {
	assert.NoError(t, checkNamespace("example-project"))
	assert.NoError(t, checkNamespace("tests"))

	for _, ns := range []string{"", "a.b", "a/b", "a b", "$x", strings.Repeat("n", 64)} {
		assert.ErrorIs(t, checkNamespace(ns), serrors.ErrValidation, ns)
	}
}

func TestToDocument_FieldOrder(t *testing.T) {
	date := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	doc := toDocument(&domain.FullRecord{
		Metadata: domain.Metadata{NumResults: 1, Flavour: "freva", UniqKey: "uri", ServerStatus: 0, Date: date},
	})

	metadata := doc[0].Value.(bson.D)
	keys := make([]string, len(metadata))
	for i, e := range metadata {
		keys[i] = e.Key
	}
	assert.Equal(t, []string{"num_results", "flavour", "uniq_key", "server_status", "date"}, keys)
	assert.Equal(t, bson.D{}, doc[1].Value)
}

func TestQueryDocument_SortedAndStable(t *testing.T) {
	query := map[string]string{
		"variable": "tas", "project": "cmip6", "model": "mpi-esm",
		"realm": "atmos", "experiment": "historical",
	}

	doc := queryDocument(query)
	keys := make([]string, len(doc))
	for i, e := range doc {
		keys[i] = e.Key
	}
	assert.Equal(t, []string{"experiment", "model", "project", "realm", "variable"}, keys)

	first, err := bson.Marshal(bson.M{"$set": setDocument(map[string]any{"query": query})})
	require.NoError(t, err)
	for range 50 {
		again, err := bson.Marshal(bson.M{"$set": setDocument(map[string]any{"query": query})})
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestSetDocument(t *testing.T) {
	set := setDocument(map[string]any{
		"metadata.num_results": int64(3),
		"query.model":          "mpi-esm",
		"query":                map[string]string{"b": "2", "a": "1"},
	})

	assert.Equal(t, int64(3), set["metadata.num_results"])
	assert.Equal(t, "mpi-esm", set["query.model"])
	assert.Equal(t, bson.D{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}}, set["query"])
}

func TestIsInvalidRegex(t *testing.T) {
	assert.True(t, isInvalidRegex(mongo.CommandError{Code: codeInvalidRegex, Message: "Regular expression is invalid: missing )"}))
	assert.True(t, isInvalidRegex(fmt.Errorf("count: %w", mongo.CommandError{Code: codeBadValue, Message: "Regular expression is invalid: missing )"})))
	assert.False(t, isInvalidRegex(mongo.CommandError{Code: codeBadValue, Message: "unknown operator: $foo"}))
	assert.False(t, isInvalidRegex(errors.New("connection reset")))
}

func TestPlain(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, at, plain(bson.NewDateTimeFromTime(at)))
	assert.Equal(t, "x", plain("x"))
}
