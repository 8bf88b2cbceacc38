package mongodb_test

import (
	"context"
	"maps"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.pilab.hu/stats/domain"
	serrors "go.pilab.hu/stats/errors"
	"go.pilab.hu/stats/mongodb"
	"go.pilab.hu/stats/mongodb/testutil"
)

func setupStatsRepo(t *testing.T) (*mongodb.StatsRepository, *mongodb.Client, string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	client, err := mongodb.Connect(ctx, mongodb.ClientOptions{
		URI:     testutil.MongoURI(t),
		AppName: "stats-tests",
		Timeout: 10 * time.Second,
	})
	require.NoError(t, err)

	namespace := testutil.Namespace("stats_repo")
	t.Cleanup(func() {
		ctx := context.Background()
		if err := client.Database(namespace).Drop(ctx); err != nil {
			t.Logf("Warning: failed to drop database %s: %v", namespace, err)
		}
		_ = client.Close(ctx)
	})

	return mongodb.NewStatsRepository(client), client, namespace
}

func newRecord() *domain.FullRecord {
	return &domain.FullRecord{
		Metadata: domain.Metadata{NumResults: 5, Flavour: "freva", UniqKey: "file", ServerStatus: 200},
		Query:    map[string]string{"project": "cmip6", "variable": "tas"},
	}
}

func TestStatsRepository_CreateAndFind(t *testing.T) {
	repo, _, ns := setupStatsRepo(t)
	ctx := context.Background()

	before := time.Now().UTC().Add(-time.Second)
	id, err := repo.Create(ctx, ns, newRecord())
	require.NoError(t, err)
	assert.Len(t, id, 24)

	n, err := repo.Count(ctx, ns, bson.M{"query.project": bson.M{"$regex": "cmip", "$options": "ix"}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	cursor, err := repo.Find(ctx, ns, bson.M{})
	require.NoError(t, err)
	defer cursor.Close(ctx)

	require.True(t, cursor.Next(ctx))
	doc, err := cursor.Record()
	require.NoError(t, err)
	assert.Equal(t, id, doc.ID)
	assert.Equal(t, map[string]string{"project": "cmip6", "variable": "tas"}, doc.Query)

	keys := make([]string, len(doc.Metadata))
	for i, f := range doc.Metadata {
		keys[i] = f.Key
	}
	assert.Equal(t, []string{"num_results", "flavour", "uniq_key", "server_status", "date"}, keys)
	assert.EqualValues(t, 5, doc.Metadata[0].Value)
	assert.Equal(t, "freva", doc.Metadata[1].Value)

	date, ok := doc.Metadata[4].Value.(time.Time)
	require.True(t, ok)
	assert.True(t, date.After(before))
	assert.Equal(t, time.UTC, date.Location())

	assert.False(t, cursor.Next(ctx))
	assert.NoError(t, cursor.Err())
}

func TestStatsRepository_Update(t *testing.T) {
	repo, _, ns := setupStatsRepo(t)
	ctx := context.Background()

	id, err := repo.Create(ctx, ns, newRecord())
	require.NoError(t, err)

	partial := &domain.PartialRecord{Fields: map[string]any{"metadata.num_results": int64(9)}}
	require.NoError(t, repo.Update(ctx, ns, id, partial))

	// same value again changes nothing
	err = repo.Update(ctx, ns, id, partial)
	assert.ErrorIs(t, err, serrors.ErrNotModified)

	err = repo.Update(ctx, ns, id, &domain.PartialRecord{Fields: map[string]any{}})
	assert.ErrorIs(t, err, serrors.ErrNotModified)

	err = repo.Update(ctx, ns, bson.NewObjectID().Hex(), partial)
	assert.ErrorIs(t, err, serrors.ErrNotModified)

	err = repo.Update(ctx, ns, "not-an-id", partial)
	assert.ErrorIs(t, err, serrors.ErrInvalidIdentifier)
}

func TestStatsRepository_FullUpdateKeepsDate(t *testing.T) {
	repo, _, ns := setupStatsRepo(t)
	ctx := context.Background()

	id, err := repo.Create(ctx, ns, newRecord())
	require.NoError(t, err)

	original := readDate(t, repo, ns)

	full := &domain.FullRecord{
		Metadata: domain.Metadata{NumResults: 1, Flavour: "cmip6", UniqKey: "uri", ServerStatus: 500},
		Query:    map[string]string{"model": "mpi-esm"},
	}
	require.NoError(t, repo.Update(ctx, ns, id, full))

	assert.Equal(t, original, readDate(t, repo, ns))
}

func TestStatsRepository_IdenticalFullUpdateIsNotModified(t *testing.T) {
	repo, _, ns := setupStatsRepo(t)
	ctx := context.Background()

	record := newRecord()
	record.Query = map[string]string{
		"project": "cmip6", "model": "mpi-esm", "variable": "tas",
		"realm": "atmos", "experiment": "historical",
	}
	id, err := repo.Create(ctx, ns, record)
	require.NoError(t, err)

	for range 10 {
		same := &domain.FullRecord{Metadata: record.Metadata, Query: maps.Clone(record.Query)}
		require.ErrorIs(t, repo.Update(ctx, ns, id, same), serrors.ErrNotModified)

		whole := &domain.PartialRecord{Fields: map[string]any{"query": maps.Clone(record.Query)}}
		require.ErrorIs(t, repo.Update(ctx, ns, id, whole), serrors.ErrNotModified)
	}
}

func TestStatsRepository_Patterns(t *testing.T) {
	repo, _, ns := setupStatsRepo(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, ns, newRecord())
	require.NoError(t, err)

	n, err := repo.Count(ctx, ns, bson.M{"query.project": bson.M{"$regex": "cmip(?!5)", "$options": "ix"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.Count(ctx, ns, bson.M{"query.project": bson.M{"$regex": "cmip(", "$options": "ix"}})
	assert.ErrorIs(t, err, serrors.ErrValidation)

	_, err = repo.Find(ctx, ns, bson.M{"query.project": bson.M{"$regex": "cmip(", "$options": "ix"}})
	assert.ErrorIs(t, err, serrors.ErrValidation)
}

func readDate(t *testing.T, repo *mongodb.StatsRepository, ns string) time.Time {
	t.Helper()
	ctx := context.Background()

	cursor, err := repo.Find(ctx, ns, bson.M{})
	require.NoError(t, err)
	defer cursor.Close(ctx)

	require.True(t, cursor.Next(ctx))
	doc, err := cursor.Record()
	require.NoError(t, err)
	for _, f := range doc.Metadata {
		if f.Key == domain.FieldDate {
			return f.Value.(time.Time)
		}
	}
	t.Fatal("record has no date")
	return time.Time{}
}

func TestStatsRepository_Delete(t *testing.T) {
	repo, _, ns := setupStatsRepo(t)
	ctx := context.Background()

	id, err := repo.Create(ctx, ns, newRecord())
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, ns, id))
	assert.ErrorIs(t, repo.Delete(ctx, ns, id), serrors.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, ns, "abc"), serrors.ErrInvalidIdentifier)
}

func TestStatsRepository_NamespacesAreIsolated(t *testing.T) {
	repo, client, ns := setupStatsRepo(t)
	ctx := context.Background()

	other := ns + "_other"
	t.Cleanup(func() { _ = client.Database(other).Drop(context.Background()) })

	id, err := repo.Create(ctx, ns, newRecord())
	require.NoError(t, err)

	n, err := repo.Count(ctx, other, bson.M{})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.ErrorIs(t, repo.Delete(ctx, other, id), serrors.ErrNotFound)
}

func TestStatsRepository_InvalidNamespace(t *testing.T) {
	repo, _, _ := setupStatsRepo(t)

	_, err := repo.Create(context.Background(), "bad.name", newRecord())
	assert.ErrorIs(t, err, serrors.ErrValidation)
}

func TestStatsRepository_Seed(t *testing.T) {
	repo, _, ns := setupStatsRepo(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, ns, newRecord())
	require.NoError(t, err)

	fixed := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	seeded := newRecord()
	seeded.Metadata.Date = fixed

	n, err := repo.Seed(ctx, ns, []*domain.FullRecord{seeded, newRecord()})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := repo.Count(ctx, ns, bson.M{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	count, err = repo.Count(ctx, ns, bson.M{"metadata.date": fixed})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	repo.EnsureIndexes(ctx, ns)
}
