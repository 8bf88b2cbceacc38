// Package export streams stored search statistics as CSV lines.
package export

import (
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.pilab.hu/stats/domain"
	"go.pilab.hu/stats/facets"
)

// TimeFormat renders metadata timestamps.
const TimeFormat = "2006-01-02T15:04:05.999999"

// Finder is the read side of the record store.
type Finder interface {
	Find(ctx context.Context, namespace string, filter bson.M) (domain.RecordCursor, error)
}

// Exporter joins each record's metadata and facet query into one row.
type Exporter struct {
	store      Finder
	vocabulary facets.Provider
}

func NewExporter(store Finder, vocabulary facets.Provider) *Exporter {
	return &Exporter{store: store, vocabulary: vocabulary}
}

// Lines yields the header followed by one line per matching record,
// without the trailing newline. Nothing is yielded when no record
// matches. The sequence is single use; ranging over it again issues a
// new query. The store cursor is released on every exit, including the
// consumer stopping early.
func (e *Exporter) Lines(ctx context.Context, namespace string, filter bson.M) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		vocabulary, err := e.vocabulary.Facets(ctx)
		if err != nil {
			yield("", fmt.Errorf("load facet vocabulary: %w", err))
			return
		}

		cursor, err := e.store.Find(ctx, namespace, filter)
		if err != nil {
			yield("", err)
			return
		}
		defer cursor.Close(context.WithoutCancel(ctx))

		first := true
		for cursor.Next(ctx) {
			doc, err := cursor.Record()
			if err != nil {
				yield("", err)
				return
			}
			if first {
				first = false
				if !yield(header(doc, vocabulary), nil) {
					return
				}
			}
			if !yield(row(doc, vocabulary), nil) {
				return
			}
		}
		if err := cursor.Err(); err != nil {
			yield("", err)
		}
	}
}

// WriteTo writes all lines to w and returns the number of data rows.
// When w is an http.Flusher every line is flushed as it is written.
func (e *Exporter) WriteTo(ctx context.Context, namespace string, filter bson.M, w io.Writer) (int, error) {
	flusher, _ := w.(http.Flusher)

	rows := -1
	for line, err := range e.Lines(ctx, namespace, filter) {
		if err != nil {
			return max(rows, 0), err
		}
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return max(rows, 0), err
		}
		if flusher != nil {
			flusher.Flush()
		}
		rows++
	}
	return max(rows, 0), nil
}

func header(doc *domain.StatDocument, vocabulary []string) string {
	cols := make([]string, 0, 1+len(doc.Metadata)+len(vocabulary))
	cols = append(cols, "id")
	for _, f := range doc.Metadata {
		cols = append(cols, f.Key)
	}
	cols = append(cols, vocabulary...)
	return strings.Join(cols, ",")
}

// row joins the values with commas. Values are not quoted.
func row(doc *domain.StatDocument, vocabulary []string) string {
	cols := make([]string, 0, 1+len(doc.Metadata)+len(vocabulary))
	cols = append(cols, doc.ID)
	for _, f := range doc.Metadata {
		cols = append(cols, format(f.Value))
	}
	for _, facet := range vocabulary {
		cols = append(cols, doc.Query[facet])
	}
	return strings.Join(cols, ",")
}

func format(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.UTC().Format(TimeFormat)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
