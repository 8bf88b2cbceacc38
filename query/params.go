// Package query turns the optional filters of a read request into a
// document store filter.
package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	serrors "go.pilab.hu/stats/errors"
)

// Operator compares metadata.num_results with the requested value.
type Operator string

const (
	OpGTE Operator = "gte"
	OpLTE Operator = "lte"
	OpGT  Operator = "gt"
	OpLT  Operator = "lt"
	OpEQ  Operator = "eq"
)

// Valid reports whether o is a known operator.
func (o Operator) Valid() bool {
	switch o {
	case OpGTE, OpLTE, OpGT, OpLT, OpEQ:
		return true
	}
	return false
}

// FacetFilters are the facets a read request may filter on.
var FacetFilters = []string{
	"project",
	"product",
	"model",
	"institute",
	"experiment",
	"variable",
	"time_frequency",
	"ensemble",
	"realm",
}

// Params are the filters of a read request. Zero values mean "not set".
type Params struct {
	Facets          map[string]string
	NumResults      *int64
	ResultsOperator Operator
	ServerStatus    *int64
	Flavour         string
	UniqKey         string
	Before          string
	After           string
}

// ParseParams reads Params from URL query values. Unknown parameters are
// ignored and empty values count as absent. Facet, flavour and uniq_key
// values are passed on as PCRE patterns; the store rejects broken ones.
func ParseParams(values url.Values) (Params, error) {
	p := Params{
		Facets:          make(map[string]string),
		ResultsOperator: OpGTE,
	}

	for _, facet := range FacetFilters {
		if v := values.Get(facet); v != "" {
			p.Facets[facet] = v
		}
	}

	for name, dst := range map[string]*string{"flavour": &p.Flavour, "uniq_key": &p.UniqKey} {
		if v := values.Get(name); v != "" {
			*dst = v
		}
	}

	var err error
	if p.NumResults, err = parseCount(values, "num_results"); err != nil {
		return Params{}, err
	}
	if p.ServerStatus, err = parseCount(values, "server_status"); err != nil {
		return Params{}, err
	}

	if v := values.Get("results_operator"); v != "" {
		op := Operator(strings.ToLower(v))
		if !op.Valid() {
			return Params{}, serrors.NewValidation("results_operator", fmt.Sprintf("must be one of gte, lte, gt, lt, eq, got %q", v))
		}
		p.ResultsOperator = op
	}

	p.Before = values.Get("before")
	p.After = values.Get("after")

	return p, nil
}

func parseCount(values url.Values, name string) (*int64, error) {
	v := values.Get(name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return nil, serrors.NewValidation(name, "must be a non-negative integer")
	}
	return &n, nil
}
