package domain

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFullRecord_SetFieldsNeverTouchesDate(t *testing.T) {
	rec := &FullRecord{
		Metadata: Metadata{
			NumResults:   5,
			Flavour:      "freva",
			UniqKey:      "file",
			ServerStatus: 200,
			Date:         time.Date(2024, 1, 30, 12, 0, 0, 0, time.UTC),
		},
		Query: map[string]string{"project": "cmip6"},
	}

	set := rec.SetFields()

	assert.Equal(t, int64(5), set["metadata.num_results"])
	assert.Equal(t, "freva", set["metadata.flavour"])
	assert.Equal(t, map[string]string{"project": "cmip6"}, set["query"])
	assert.NotContains(t, set, "metadata.date")
	assert.NotContains(t, set, "metadata")
}

func TestSubjectContext(t *testing.T) {
	_, ok := SubjectFromContext(context.Background())
	assert.False(t, ok)

	sub, ok := SubjectFromContext(ContextWithSubject(context.Background(), "stats"))
	assert.True(t, ok)
	assert.Equal(t, "stats", sub)
}
