package domain

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// StatsCollection is the collection holding search statistics inside a
// namespace database.
const StatsCollection = "search_queries"

// Metadata fields a record must carry. Date is assigned by the service.
const (
	FieldNumResults   = "num_results"
	FieldFlavour      = "flavour"
	FieldUniqKey      = "uniq_key"
	FieldServerStatus = "server_status"
	FieldDate         = "date"
)

// UniqKeys lists the accepted values of metadata.uniq_key.
var UniqKeys = []string{"file", "uri"}

// Metadata is the schema-constrained part of a StatRecord. The field
// order here is the order in which the keys are persisted and therefore
// the column order of exported CSV.
type Metadata struct {
	NumResults   int64     `bson:"num_results" json:"num_results"`
	Flavour      string    `bson:"flavour" json:"flavour"`
	UniqKey      string    `bson:"uniq_key" json:"uniq_key"`
	ServerStatus int64     `bson:"server_status" json:"server_status"`
	Date         time.Time `bson:"date" json:"date"`
}

// Payload is a validated write request. It is either a *FullRecord or a
// *PartialRecord.
type Payload interface {
	// SetFields returns the "$set" document of an update, keyed by
	// dotted path. metadata.date is never part of it.
	SetFields() map[string]any
}

// FullRecord carries a complete metadata object and the facet query.
type FullRecord struct {
	Metadata Metadata          `bson:"metadata"`
	Query    map[string]string `bson:"query"`
}

// SetFields flattens metadata so an update keeps the stored date.
func (r *FullRecord) SetFields() map[string]any {
	return map[string]any{
		"metadata." + FieldNumResults:   r.Metadata.NumResults,
		"metadata." + FieldFlavour:      r.Metadata.Flavour,
		"metadata." + FieldUniqKey:      r.Metadata.UniqKey,
		"metadata." + FieldServerStatus: r.Metadata.ServerStatus,
		"query":                         r.Query,
	}
}

// PartialRecord is an update addressing individual fields by dotted key,
// e.g. "metadata.num_results" or "query.project". A whole "query" object
// may appear as well.
type PartialRecord struct {
	Fields map[string]any
}

func (r *PartialRecord) SetFields() map[string]any {
	return r.Fields
}

// Field is one ordered metadata entry of a stored document.
type Field struct {
	Key   string
	Value any
}

// StatDocument is a stored record as read back for export.
type StatDocument struct {
	ID       string
	Metadata []Field
	Query    map[string]string
}

// RecordCursor iterates over matching documents. It is forward only and
// must be closed by the caller.
type RecordCursor interface {
	Next(ctx context.Context) bool
	Record() (*StatDocument, error)
	Err() error
	Close(ctx context.Context) error
}

// StatsRepository persists StatRecords. Every call is scoped to a single
// namespace.
type StatsRepository interface {
	Create(ctx context.Context, namespace string, record *FullRecord) (string, error)
	Update(ctx context.Context, namespace, id string, payload Payload) error
	Delete(ctx context.Context, namespace, id string) error
	Count(ctx context.Context, namespace string, filter bson.M) (int64, error)
	Find(ctx context.Context, namespace string, filter bson.M) (RecordCursor, error)
}
