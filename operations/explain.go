package operations

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/evergreen-ci/mongorest/db"
	"github.com/evergreen-ci/mongorest/rest/query"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
	"go.mongodb.org/mongo-driver/bson"
)

// Explain prints the database plan a query string translates to for a
// model, without running it.
func Explain() cli.Command {
	return cli.Command{
		Name:  "explain",
		Usage: "print the database plan of a REST query string",
		Flags: serviceConfigFlags(modelFlag(cli.StringFlag{
			Name:  joinFlagNames(queryFlagName, "q"),
			Usage: "query string, such as 'query={\"age\":\">21\"}&sort=-name'",
		})...),
		Before: mergeBeforeFuncs(
			requireConfigFile(confFlagName),
			requireStringFlag(modelFlagName),
		),
		Action: func(c *cli.Context) error {
			set, err := loadModels(c.String(confFlagName))
			if err != nil {
				return err
			}

			p, err := explainQuery(set, c.String(modelFlagName), c.String(queryFlagName))
			if err != nil {
				return err
			}

			return printPlan(os.Stdout, p)
		},
	}
}

type plan struct {
	Model      string          `json:"model"`
	Operation  db.Operation    `json:"operation"`
	Filter     json.RawMessage `json:"filter"`
	Projection string          `json:"projection,omitempty"`
	Sort       []string        `json:"sort,omitempty"`
	Skip       int             `json:"skip,omitempty"`
	Limit      int             `json:"limit,omitempty"`
	Distinct   string          `json:"distinct,omitempty"`
	Populate   []db.Populate   `json:"populate,omitempty"`
}

func explainQuery(set *modelSet, model, raw string) (*plan, error) {
	if _, ok := set.schemas.Get(model); !ok {
		return nil, errors.Errorf("model '%s' is not declared", model)
	}

	params, err := query.ParseParams(raw)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	translator := query.NewTranslator(set.schemas, query.OptionsFromSettings(set.settings.Query))
	q, err := translator.Build(model, db.Query(nil), params)
	if err != nil {
		return nil, errors.Wrap(err, "translating query string")
	}

	filter := q.GetFilter()
	if filter == nil {
		filter = bson.M{}
	}
	out, err := bson.MarshalExtJSON(filter, false, false)
	if err != nil {
		return nil, errors.Wrap(err, "rendering filter")
	}

	return &plan{
		Model:      model,
		Operation:  q.Operation(),
		Filter:     out,
		Projection: q.GetProjection().String(),
		Sort:       q.GetSort(),
		Skip:       q.GetSkip(),
		Limit:      q.GetLimit(),
		Distinct:   q.GetDistinct(),
		Populate:   q.GetPopulate(),
	}, nil
}

func printPlan(w io.Writer, p *plan) error {
	out, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return errors.Wrap(err, "rendering plan")
	}

	_, err = fmt.Fprintln(w, string(out))
	return errors.WithStack(err)
}
