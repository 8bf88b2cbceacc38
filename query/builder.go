package query

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.pilab.hu/stats/daterange"
	"go.pilab.hu/stats/domain"
	"go.pilab.hu/stats/log"
)

// Builder compiles Params into a filter document. It never touches the
// store.
type Builder struct {
	logger log.Logger
}

func NewBuilder(logger log.Logger) *Builder {
	return &Builder{logger: logger}
}

// Build ANDs every active predicate into one filter document. Date
// bounds that cannot be parsed are logged and left out.
func (b *Builder) Build(ctx context.Context, p Params) bson.M {
	filter := bson.M{}

	for facet, value := range p.Facets {
		filter["query."+facet] = contains(value)
	}
	if p.Flavour != "" {
		filter[metadataKey(domain.FieldFlavour)] = contains(p.Flavour)
	}
	if p.UniqKey != "" {
		filter[metadataKey(domain.FieldUniqKey)] = contains(p.UniqKey)
	}

	op := p.ResultsOperator
	if op == "" {
		op = OpGTE
	}
	if p.NumResults != nil {
		filter[metadataKey(domain.FieldNumResults)] = bson.M{"$" + string(op): *p.NumResults}
	}
	// server_status replaces the num_results comparison on the same key.
	// Existing clients depend on this.
	if p.ServerStatus != nil {
		filter[metadataKey(domain.FieldNumResults)] = *p.ServerStatus
	}

	dates, err := daterange.Parse(p.Before, p.After)
	if err != nil {
		b.logger.Warn(ctx, "ignoring unparsable date filter", log.Fields{
			"before": p.Before,
			"after":  p.After,
			"error":  err.Error(),
		})
	}
	if f := dates.Filter(); f != nil {
		filter[metadataKey(domain.FieldDate)] = f
	}

	return filter
}

func metadataKey(field string) string {
	return "metadata." + field
}

func contains(pattern string) bson.M {
	return bson.M{"$regex": pattern, "$options": "ix"}
}
