package query

import (
	"net/url"
	"strings"

	"github.com/evergreen-ci/mongorest"
)

// Params holds the raw values of the query string parameters understood by
// the translator.
type Params struct {
	Query      string `json:"query,omitempty"`
	Skip       string `json:"skip,omitempty"`
	Limit      string `json:"limit,omitempty"`
	Sort       string `json:"sort,omitempty"`
	Select     string `json:"select,omitempty"`
	Populate   string `json:"populate,omitempty"`
	Distinct   string `json:"distinct,omitempty"`
	Projection string `json:"projection,omitempty"`
}

// ParamsFromValues reads the translator's parameters from parsed query
// string values. Repeated list parameters (select, populate, sort) are
// joined with commas; for the others the first value wins.
func ParamsFromValues(vals url.Values) Params {
	return Params{
		Query:      strings.TrimSpace(vals.Get(mongorest.QueryParam)),
		Skip:       strings.TrimSpace(vals.Get(mongorest.SkipParam)),
		Limit:      strings.TrimSpace(vals.Get(mongorest.LimitParam)),
		Sort:       joinList(vals[mongorest.SortParam]),
		Select:     joinList(vals[mongorest.SelectParam]),
		Populate:   joinList(vals[mongorest.PopulateParam]),
		Distinct:   strings.TrimSpace(vals.Get(mongorest.DistinctParam)),
		Projection: strings.TrimSpace(vals.Get(mongorest.ProjectionParam)),
	}
}

// ParseParams parses a raw query string, such as "select=name&limit=2".
func ParseParams(raw string) (Params, error) {
	vals, err := url.ParseQuery(strings.TrimPrefix(raw, "?"))
	if err != nil {
		return Params{}, newParseError("query string", err)
	}

	return ParamsFromValues(vals), nil
}

// IsZero reports whether no parameter is set.
func (p Params) IsZero() bool {
	return p == Params{}
}

func joinList(vals []string) string {
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}

	if len(out) > 1 && isJSON(out[0]) {
		return out[0]
	}
	return strings.Join(out, ",")
}

func isJSON(raw string) bool {
	return strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "[")
}
