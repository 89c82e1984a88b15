package route

import (
	"context"
	"net/http"

	"github.com/evergreen-ci/gimlet"
	"github.com/evergreen-ci/mongorest/db"
	"github.com/evergreen-ci/mongorest/model/access"
	"github.com/evergreen-ci/mongorest/rest/query"
)

func parseParams(r *http.Request) (query.Params, error) {
	params, err := query.ParseParams(r.URL.RawQuery)
	if err != nil {
		return params, gimlet.ErrorResponse{
			StatusCode: http.StatusBadRequest,
			Message:    err.Error(),
		}
	}
	return params, nil
}

////////////////////////////////////////////////////////////////////////
//
// GET /api/v1/{Model}

type documentListHandler struct {
	env modelEnv

	level access.Level
	q     db.Q
	// hidden is set when the distinct field is not visible at the level.
	hidden bool
}

func makeListDocuments(env modelEnv) gimlet.RouteHandler {
	return &documentListHandler{
		env: env,
	}
}

func (h *documentListHandler) Factory() gimlet.RouteHandler {
	return &documentListHandler{
		env: h.env,
	}
}

func (h *documentListHandler) Parse(ctx context.Context, r *http.Request) error {
	var (
		base db.Q
		err  error
	)
	if h.level, base, err = h.env.scope(r); err != nil {
		return err
	}

	params, err := parseParams(r)
	if err != nil {
		return err
	}
	if h.q, err = h.env.build(base, params); err != nil {
		return err
	}
	if h.q.Operation() == db.OpDistinct {
		h.hidden = h.env.hidden(h.q.GetDistinct(), h.level)
	}

	return nil
}

func (h *documentListHandler) Run(ctx context.Context) gimlet.Responder {
	if h.q.Operation() == db.OpDistinct {
		if h.hidden {
			return gimlet.NewJSONResponse([]any{})
		}
		values, err := h.env.connector.DistinctValues(ctx, h.env.model, h.q)
		if err != nil {
			return errorResponder(err, "finding distinct values")
		}
		return gimlet.NewJSONResponse(values)
	}

	docs, err := h.env.connector.FindDocuments(ctx, h.env.model, h.q)
	if err != nil {
		return errorResponder(err, "finding documents")
	}

	return h.env.respond(docs, h.level, h.q)
}

////////////////////////////////////////////////////////////////////////
//
// GET /api/v1/{Model}/count

type documentCountHandler struct {
	env modelEnv
	q   db.Q
}

func makeCountDocuments(env modelEnv) gimlet.RouteHandler {
	return &documentCountHandler{
		env: env,
	}
}

func (h *documentCountHandler) Factory() gimlet.RouteHandler {
	return &documentCountHandler{
		env: h.env,
	}
}

func (h *documentCountHandler) Parse(ctx context.Context, r *http.Request) error {
	_, base, err := h.env.scope(r)
	if err != nil {
		return err
	}

	params, err := parseParams(r)
	if err != nil {
		return err
	}
	params.Distinct = ""
	h.q, err = h.env.build(base.Count(), params)

	return err
}

func (h *documentCountHandler) Run(ctx context.Context) gimlet.Responder {
	count, err := h.env.connector.CountDocuments(ctx, h.env.model, h.q)
	if err != nil {
		return errorResponder(err, "counting documents")
	}

	return gimlet.NewJSONResponse(countResponse{Count: count})
}

////////////////////////////////////////////////////////////////////////
//
// DELETE /api/v1/{Model}

type documentsDeleteHandler struct {
	env modelEnv
	q   db.Q
}

func makeDeleteDocuments(env modelEnv) gimlet.RouteHandler {
	return &documentsDeleteHandler{
		env: env,
	}
}

func (h *documentsDeleteHandler) Factory() gimlet.RouteHandler {
	return &documentsDeleteHandler{
		env: h.env,
	}
}

func (h *documentsDeleteHandler) Parse(ctx context.Context, r *http.Request) error {
	_, base, err := h.env.scope(r)
	if err != nil {
		return err
	}

	params, err := parseParams(r)
	if err != nil {
		return err
	}
	h.q, err = h.env.build(base, query.Params{Query: params.Query})

	return err
}

func (h *documentsDeleteHandler) Run(ctx context.Context) gimlet.Responder {
	deleted, err := h.env.connector.DeleteDocuments(ctx, h.env.model, h.q.GetFilter())
	if err != nil {
		return errorResponder(err, "deleting documents")
	}

	return gimlet.NewJSONResponse(deletedResponse{Deleted: deleted})
}

type countResponse struct {
	Count int `json:"count"`
}

type deletedResponse struct {
	Deleted int `json:"deleted"`
}
