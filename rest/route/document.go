package route

import (
	"context"
	"net/http"

	"github.com/evergreen-ci/gimlet"
	"github.com/evergreen-ci/mongorest/db"
	"github.com/evergreen-ci/mongorest/model/access"
	"github.com/evergreen-ci/mongorest/model/schema"
	"github.com/evergreen-ci/mongorest/rest/query"
	"github.com/pkg/errors"
)

////////////////////////////////////////////////////////////////////////
//
// GET /api/v1/{Model}/{id}

type documentGetHandler struct {
	env modelEnv

	level access.Level
	q     db.Q
}

func makeGetDocument(env modelEnv) gimlet.RouteHandler {
	return &documentGetHandler{
		env: env,
	}
}

func (h *documentGetHandler) Factory() gimlet.RouteHandler {
	return &documentGetHandler{
		env: h.env,
	}
}

func (h *documentGetHandler) Parse(ctx context.Context, r *http.Request) error {
	var (
		base db.Q
		err  error
	)
	if h.level, base, err = h.env.scope(r); err != nil {
		return err
	}

	id, err := h.env.parseID(r)
	if err != nil {
		return err
	}
	params, err := parseParams(r)
	if err != nil {
		return err
	}

	h.q, err = h.env.build(base.Where(idQuery(id)), query.Params{
		Select:     params.Select,
		Populate:   params.Populate,
		Projection: params.Projection,
	})

	return err
}

func (h *documentGetHandler) Run(ctx context.Context) gimlet.Responder {
	doc, err := h.env.connector.FindDocument(ctx, h.env.model, h.q)
	if err != nil {
		return errorResponder(err, "finding document")
	}

	return h.env.respond(doc, h.level, h.q)
}

////////////////////////////////////////////////////////////////////////
//
// POST /api/v1/{Model}

type documentCreateHandler struct {
	env modelEnv

	level access.Level
	doc   map[string]any
}

func makeCreateDocument(env modelEnv) gimlet.RouteHandler {
	return &documentCreateHandler{
		env: env,
	}
}

func (h *documentCreateHandler) Factory() gimlet.RouteHandler {
	return &documentCreateHandler{
		env: h.env,
	}
}

func (h *documentCreateHandler) Parse(ctx context.Context, r *http.Request) error {
	var err error
	if h.level, _, err = h.env.scope(r); err != nil {
		return err
	}

	h.doc, err = h.env.readBody(r, h.level)
	return err
}

func (h *documentCreateHandler) Run(ctx context.Context) gimlet.Responder {
	id, err := h.env.connector.CreateDocument(ctx, h.env.model, h.doc)
	if err != nil {
		return errorResponder(err, "creating document")
	}

	q := db.Query(idQuery(id))
	doc, err := h.env.connector.FindDocument(ctx, h.env.model, q)
	if err != nil {
		return errorResponder(err, "finding created document")
	}

	resp := h.env.respond(doc, h.level, q)
	if err = resp.SetStatus(http.StatusCreated); err != nil {
		return gimlet.MakeJSONInternalErrorResponder(errors.Wrap(err, "setting response status"))
	}

	return resp
}

////////////////////////////////////////////////////////////////////////
//
// PUT /api/v1/{Model}/{id}
// PATCH /api/v1/{Model}/{id}

type documentUpdateHandler struct {
	env modelEnv

	level access.Level
	q     db.Q
	set   map[string]any
}

func makeUpdateDocument(env modelEnv) gimlet.RouteHandler {
	return &documentUpdateHandler{
		env: env,
	}
}

func (h *documentUpdateHandler) Factory() gimlet.RouteHandler {
	return &documentUpdateHandler{
		env: h.env,
	}
}

func (h *documentUpdateHandler) Parse(ctx context.Context, r *http.Request) error {
	var (
		base db.Q
		err  error
	)
	if h.level, base, err = h.env.scope(r); err != nil {
		return err
	}

	id, err := h.env.parseID(r)
	if err != nil {
		return err
	}
	h.q = base.Where(idQuery(id))

	if h.set, err = h.env.readBody(r, h.level); err != nil {
		return err
	}
	delete(h.set, schema.IDField)
	if len(h.set) == 0 {
		return gimlet.ErrorResponse{
			StatusCode: http.StatusBadRequest,
			Message:    "update has no writable fields",
		}
	}

	return nil
}

func (h *documentUpdateHandler) Run(ctx context.Context) gimlet.Responder {
	if err := h.env.connector.UpdateDocument(ctx, h.env.model, h.q.GetFilter(), h.set); err != nil {
		return errorResponder(err, "updating document")
	}

	doc, err := h.env.connector.FindDocument(ctx, h.env.model, h.q)
	if err != nil {
		return errorResponder(err, "finding updated document")
	}

	return h.env.respond(doc, h.level, h.q)
}

////////////////////////////////////////////////////////////////////////
//
// DELETE /api/v1/{Model}/{id}

type documentDeleteHandler struct {
	env modelEnv
	q   db.Q
}

func makeDeleteDocument(env modelEnv) gimlet.RouteHandler {
	return &documentDeleteHandler{
		env: env,
	}
}

func (h *documentDeleteHandler) Factory() gimlet.RouteHandler {
	return &documentDeleteHandler{
		env: h.env,
	}
}

func (h *documentDeleteHandler) Parse(ctx context.Context, r *http.Request) error {
	_, base, err := h.env.scope(r)
	if err != nil {
		return err
	}

	id, err := h.env.parseID(r)
	if err != nil {
		return err
	}
	h.q = base.Where(idQuery(id))

	return nil
}

func (h *documentDeleteHandler) Run(ctx context.Context) gimlet.Responder {
	if err := h.env.connector.DeleteDocument(ctx, h.env.model, h.q.GetFilter()); err != nil {
		return errorResponder(err, "deleting document")
	}

	return gimlet.NewJSONResponse(deletedResponse{Deleted: 1})
}
