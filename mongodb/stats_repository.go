package mongodb

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.pilab.hu/stats/domain"
	serrors "go.pilab.hu/stats/errors"
)

// StatsRepository implements domain.StatsRepository. Each namespace is a
// database holding a single search_queries collection.
type StatsRepository struct {
	client *Client
	now    func() time.Time
}

// NewStatsRepository creates a repository on top of a connected client.
func NewStatsRepository(client *Client) *StatsRepository {
	return &StatsRepository{client: client, now: time.Now}
}

func (r *StatsRepository) collection(namespace string) (*mongo.Collection, error) {
	if err := checkNamespace(namespace); err != nil {
		return nil, err
	}
	return r.client.Database(namespace).Collection(domain.StatsCollection), nil
}

// timestamp is the current time at the precision MongoDB stores.
func (r *StatsRepository) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Millisecond)
}

// Create stores record, stamping metadata.date, and returns the new id.
func (r *StatsRepository) Create(ctx context.Context, namespace string, record *domain.FullRecord) (string, error) {
	coll, err := r.collection(namespace)
	if err != nil {
		return "", err
	}

	record.Metadata.Date = r.timestamp()

	result, err := coll.InsertOne(ctx, toDocument(record))
	if err != nil {
		log.Error().Err(err).Str("namespace", namespace).Msg("Error inserting search statistics")
		return "", serrors.NewStoreError(err, "could not store record")
	}

	id, ok := result.InsertedID.(bson.ObjectID)
	if !ok {
		return "", serrors.NewStoreError(nil, "store returned no identifier")
	}
	return id.Hex(), nil
}

// Update applies payload as a field level $set. Nothing changed, whether
// because the values were identical or the id does not exist, yields
// NotModified.
func (r *StatsRepository) Update(ctx context.Context, namespace, id string, payload domain.Payload) error {
	coll, err := r.collection(namespace)
	if err != nil {
		return err
	}

	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return serrors.NewInvalidIdentifier(id, err)
	}

	fields := payload.SetFields()
	if len(fields) == 0 {
		return serrors.NewNotModified(id)
	}

	result, err := coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": setDocument(fields)})
	if err != nil {
		log.Error().Err(err).Str("namespace", namespace).Str("id", id).Msg("Error updating search statistics")
		return serrors.NewStoreError(err, "could not update record")
	}
	if result.ModifiedCount == 0 {
		return serrors.NewNotModified(id)
	}
	return nil
}

// Delete removes the record with id.
func (r *StatsRepository) Delete(ctx context.Context, namespace, id string) error {
	coll, err := r.collection(namespace)
	if err != nil {
		return err
	}

	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return serrors.NewInvalidIdentifier(id, err)
	}

	result, err := coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		log.Error().Err(err).Str("namespace", namespace).Str("id", id).Msg("Error deleting search statistics")
		return serrors.NewStoreError(err, "could not delete record")
	}
	if result.DeletedCount == 0 {
		return serrors.NewNotFound(fmt.Sprintf("no record with id %s", id))
	}
	return nil
}

func (r *StatsRepository) Count(ctx context.Context, namespace string, filter bson.M) (int64, error) {
	coll, err := r.collection(namespace)
	if err != nil {
		return 0, err
	}

	n, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		if isInvalidRegex(err) {
			return 0, serrors.NewValidation("query", "invalid pattern")
		}
		log.Error().Err(err).Str("namespace", namespace).Msg("Error counting search statistics")
		return 0, serrors.NewStoreError(err, "could not count records")
	}
	return n, nil
}

// Find returns a cursor over the matching records in insertion order.
// The caller owns the cursor and must close it.
func (r *StatsRepository) Find(ctx context.Context, namespace string, filter bson.M) (domain.RecordCursor, error) {
	coll, err := r.collection(namespace)
	if err != nil {
		return nil, err
	}

	cursor, err := coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		if isInvalidRegex(err) {
			return nil, serrors.NewValidation("query", "invalid pattern")
		}
		log.Error().Err(err).Str("namespace", namespace).Msg("Error finding search statistics")
		return nil, serrors.NewStoreError(err, "could not query records")
	}
	return &recordCursor{cursor: cursor}, nil
}

// EnsureIndexes creates the date index used by range queries. Failures
// are logged and otherwise ignored.
func (r *StatsRepository) EnsureIndexes(ctx context.Context, namespace string) {
	coll, err := r.collection(namespace)
	if err != nil {
		log.Warn().Err(err).Str("namespace", namespace).Msg("Skipping indexes for invalid namespace")
		return
	}

	_, err = coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "metadata." + domain.FieldDate, Value: 1}},
		Options: options.Index().SetName("metadata_date"),
	})
	if err != nil {
		log.Warn().Err(err).Str("namespace", namespace).Msg("Failed to create indexes for search_queries collection")
		return
	}
	log.Debug().Str("namespace", namespace).Msg("Indexes for search_queries collection ensured.")
}

// Seed replaces the content of a namespace with records. Records without
// a date are stamped with the current time. It returns the number of
// inserted records.
func (r *StatsRepository) Seed(ctx context.Context, namespace string, records []*domain.FullRecord) (int, error) {
	coll, err := r.collection(namespace)
	if err != nil {
		return 0, err
	}

	if err := coll.Drop(ctx); err != nil {
		return 0, serrors.NewStoreError(err, "could not reset namespace")
	}
	if len(records) == 0 {
		return 0, nil
	}

	docs := make([]any, len(records))
	for i, record := range records {
		if record.Metadata.Date.IsZero() {
			record.Metadata.Date = r.timestamp()
		}
		docs[i] = toDocument(record)
	}

	result, err := coll.InsertMany(ctx, docs)
	if err != nil {
		return 0, serrors.NewStoreError(err, "could not seed namespace")
	}
	return len(result.InsertedIDs), nil
}

// toDocument keeps metadata keys in their fixed order so exported
// columns are stable.
func toDocument(record *domain.FullRecord) bson.D {
	m := record.Metadata
	return bson.D{
		{Key: "metadata", Value: bson.D{
			{Key: domain.FieldNumResults, Value: m.NumResults},
			{Key: domain.FieldFlavour, Value: m.Flavour},
			{Key: domain.FieldUniqKey, Value: m.UniqKey},
			{Key: domain.FieldServerStatus, Value: m.ServerStatus},
			{Key: domain.FieldDate, Value: m.Date.UTC()},
		}},
		{Key: "query", Value: queryDocument(record.Query)},
	}
}

// queryDocument stores facets sorted by name. MongoDB compares embedded
// documents field by field in order, so an unchanged query must always
// encode identically for an update to report no modification.
func queryDocument(query map[string]string) bson.D {
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	doc := make(bson.D, 0, len(keys))
	for _, k := range keys {
		doc = append(doc, bson.E{Key: k, Value: query[k]})
	}
	return doc
}

// setDocument is the $set document for fields with any whole query
// object in its stored form.
func setDocument(fields map[string]any) bson.M {
	set := make(bson.M, len(fields))
	for k, v := range fields {
		if q, ok := v.(map[string]string); ok {
			set[k] = queryDocument(q)
			continue
		}
		set[k] = v
	}
	return set
}

// Server codes for a $regex the PCRE engine cannot compile.
const (
	codeBadValue     = 2
	codeInvalidRegex = 51091
)

func isInvalidRegex(err error) bool {
	var se mongo.ServerError
	if !errors.As(err, &se) {
		return false
	}
	return se.HasErrorCode(codeInvalidRegex) ||
		se.HasErrorCodeWithMessage(codeBadValue, "Regular expression")
}

var _ domain.StatsRepository = (*StatsRepository)(nil)
