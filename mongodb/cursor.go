package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.pilab.hu/stats/domain"
	serrors "go.pilab.hu/stats/errors"
)

type storedRecord struct {
	ID       bson.ObjectID  `bson:"_id"`
	Metadata bson.D         `bson:"metadata"`
	Query    map[string]any `bson:"query"`
}

// recordCursor adapts a driver cursor to domain.RecordCursor.
type recordCursor struct {
	cursor *mongo.Cursor
}

func (c *recordCursor) Next(ctx context.Context) bool {
	return c.cursor.Next(ctx)
}

// Record decodes the current document. Metadata keeps its stored order;
// stored dates come back as UTC time.Time values.
func (c *recordCursor) Record() (*domain.StatDocument, error) {
	var stored storedRecord
	if err := c.cursor.Decode(&stored); err != nil {
		return nil, serrors.NewStoreError(err, "unexpected record shape")
	}

	doc := &domain.StatDocument{
		ID:       stored.ID.Hex(),
		Metadata: make([]domain.Field, 0, len(stored.Metadata)),
		Query:    make(map[string]string, len(stored.Query)),
	}
	for _, e := range stored.Metadata {
		doc.Metadata = append(doc.Metadata, domain.Field{Key: e.Key, Value: plain(e.Value)})
	}
	for k, v := range stored.Query {
		if s, ok := v.(string); ok {
			doc.Query[k] = s
		} else {
			doc.Query[k] = fmt.Sprint(v)
		}
	}
	return doc, nil
}

func (c *recordCursor) Err() error {
	if err := c.cursor.Err(); err != nil {
		return serrors.NewStoreError(err, "cursor failed")
	}
	return nil
}

func (c *recordCursor) Close(ctx context.Context) error {
	return c.cursor.Close(ctx)
}

func plain(v any) any {
	switch t := v.(type) {
	case bson.DateTime:
		return t.Time().UTC()
	case bson.ObjectID:
		return t.Hex()
	default:
		return v
	}
}
