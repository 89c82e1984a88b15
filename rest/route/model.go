package route

import (
	"net/http"
	"strings"

	"github.com/evergreen-ci/gimlet"
	"github.com/evergreen-ci/mongorest/db"
	"github.com/evergreen-ci/mongorest/model/access"
	"github.com/evergreen-ci/mongorest/model/schema"
	"github.com/evergreen-ci/mongorest/rest/data"
	"github.com/evergreen-ci/mongorest/rest/query"
	"github.com/evergreen-ci/utility"
	adb "github.com/mongodb/anser/db"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
)

const idVar = "id"

// modelEnv holds what every route of one model shares.
type modelEnv struct {
	model         string
	connector     data.Connector
	schemas       *schema.Registry
	visibility    *access.Registry
	filter        *access.Filter
	translator    *query.Translator
	access        AccessFunc
	contextFilter ContextFilter
}

// scope returns the access level of the request and its base plan, scoped
// by the context filter.
func (e *modelEnv) scope(r *http.Request) (access.Level, db.Q, error) {
	level := e.access(r, e.model)
	if level == "" {
		level = access.Public
	}
	if err := level.Validate(); err != nil {
		return "", db.Q{}, gimlet.ErrorResponse{
			StatusCode: http.StatusForbidden,
			Message:    err.Error(),
		}
	}

	base := db.Query(nil)
	if e.contextFilter != nil {
		var err error
		if base, err = e.contextFilter(r, e.model, base); err != nil {
			return "", db.Q{}, errors.Wrapf(err, "scoping '%s' request", e.model)
		}
	}

	return level, base, nil
}

// build translates the request parameters over the base plan, reporting
// malformed parameters as bad requests.
func (e *modelEnv) build(base db.Q, params query.Params) (db.Q, error) {
	q, err := e.translator.Build(e.model, base, params)
	if err != nil {
		return base, gimlet.ErrorResponse{
			StatusCode: http.StatusBadRequest,
			Message:    err.Error(),
		}
	}
	return q, nil
}

// parseID reads the document id from the route and casts it to the type
// of the model's _id.
func (e *modelEnv) parseID(r *http.Request) (any, error) {
	raw := gimlet.GetVars(r)[idVar]
	if raw == "" {
		return nil, gimlet.ErrorResponse{
			StatusCode: http.StatusBadRequest,
			Message:    "document id cannot be empty",
		}
	}

	s, ok := e.schemas.Get(e.model)
	if !ok {
		return raw, nil
	}
	id, err := s.Fields[schema.IDField].Cast(raw)
	if err != nil {
		return nil, gimlet.ErrorResponse{
			StatusCode: http.StatusBadRequest,
			Message:    errors.Wrapf(err, "invalid '%s' id", e.model).Error(),
		}
	}

	return id, nil
}

// readBody reads a JSON document body, keeping only the fields writable
// at the access level and casting them to their declared types.
func (e *modelEnv) readBody(r *http.Request, level access.Level) (map[string]any, error) {
	body := map[string]any{}
	if err := utility.ReadJSON(r.Body, &body); err != nil {
		return nil, gimlet.ErrorResponse{
			StatusCode: http.StatusBadRequest,
			Message:    errors.Wrap(err, "reading document from JSON request body").Error(),
		}
	}

	if err := checkFieldNames(body, ""); err != nil {
		return nil, gimlet.ErrorResponse{
			StatusCode: http.StatusBadRequest,
			Message:    errors.Wrapf(err, "invalid '%s' document", e.model).Error(),
		}
	}

	filtered, err := e.filter.FilterObject(e.model, body, access.FilterOptions{Access: level})
	if err != nil {
		return nil, errors.Wrap(err, "filtering request body")
	}
	cast, err := e.schemas.CastDocument(e.model, filtered.(map[string]any))
	if err != nil {
		return nil, gimlet.ErrorResponse{
			StatusCode: http.StatusBadRequest,
			Message:    errors.Wrapf(err, "invalid '%s' document", e.model).Error(),
		}
	}

	return cast, nil
}

// checkFieldNames rejects empty field names, names containing "." and
// names starting with "$", at any depth.
func checkFieldNames(node any, prefix string) error {
	switch v := node.(type) {
	case map[string]any:
		for key, val := range v {
			path := key
			if prefix != "" {
				path = prefix + "." + key
			}
			if key == "" || strings.Contains(key, ".") || strings.HasPrefix(key, "$") {
				return errors.Errorf("field name '%s' at '%s' may not be empty, contain '.' or start with '$'", key, path)
			}
			if err := checkFieldNames(val, path); err != nil {
				return err
			}
		}
	case []any:
		for _, elem := range v {
			if err := checkFieldNames(elem, prefix); err != nil {
				return err
			}
		}
	}

	return nil
}

// respond filters the documents of a plan at the access level.
func (e *modelEnv) respond(resource any, level access.Level, q db.Q) gimlet.Responder {
	filtered, err := e.filter.FilterObject(e.model, resource, access.FilterOptions{
		Access:         level,
		Populate:       access.ParsePopulatePaths(q.GetPopulate()),
		PopulateModels: access.ParsePopulateModels(q.GetPopulate()),
	})
	if err != nil {
		return gimlet.MakeJSONInternalErrorResponder(errors.Wrapf(err, "filtering '%s' response", e.model))
	}

	return gimlet.NewJSONResponse(filtered)
}

// hidden reports whether the path is removed from documents served at the
// access level.
func (e *modelEnv) hidden(path string, level access.Level) bool {
	excluded, _ := e.visibility.Excluded(e.model, level)
	for _, p := range excluded {
		if path == p || strings.HasPrefix(path, p+".") {
			return true
		}
	}
	return false
}

func idQuery(id any) bson.M {
	return bson.M{schema.IDField: id}
}

// errorResponder maps connector errors to responses.
func errorResponder(err error, msg string) gimlet.Responder {
	err = errors.Wrap(err, msg)
	switch {
	case query.IsParseError(err):
		return gimlet.MakeJSONErrorResponder(gimlet.ErrorResponse{
			StatusCode: http.StatusBadRequest,
			Message:    err.Error(),
		})
	case adb.ResultsNotFound(err):
		return gimlet.MakeJSONErrorResponder(gimlet.ErrorResponse{
			StatusCode: http.StatusNotFound,
			Message:    err.Error(),
		})
	case db.IsDuplicateKey(err):
		return gimlet.MakeJSONErrorResponder(gimlet.ErrorResponse{
			StatusCode: http.StatusConflict,
			Message:    err.Error(),
		})
	}

	return gimlet.MakeJSONInternalErrorResponder(err)
}
