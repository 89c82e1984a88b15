package operations

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/cheynewallace/tabby"
	"github.com/evergreen-ci/mongorest"
	"github.com/evergreen-ci/mongorest/model/access"
	"github.com/evergreen-ci/mongorest/model/schema"
	"github.com/evergreen-ci/mongorest/util"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

// Models lists the models declared in the settings file.
func Models() cli.Command {
	return cli.Command{
		Name:   "models",
		Usage:  "list the models served by the REST API",
		Flags: serviceConfigFlags(cli.StringFlag{
			Name:  exportFlagName,
			Usage: "write the validated model declarations, with defaults applied, to a YAML file",
		}),
		Before: requireConfigFile(confFlagName),
		Action: func(c *cli.Context) error {
			conf, err := loadModels(c.String(confFlagName))
			if err != nil {
				return err
			}

			if fn := c.String(exportFlagName); fn != "" {
				if err = exportModels(fn, conf); err != nil {
					return err
				}
			}

			return printModels(os.Stdout, conf)
		},
	}
}

// modelSet is the model configuration of a settings file, without any
// database connection.
type modelSet struct {
	settings   *mongorest.Settings
	schemas    *schema.Registry
	visibility *access.Registry
}

func loadModels(confPath string) (*modelSet, error) {
	settings, err := mongorest.NewSettings(confPath)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return buildModels(settings)
}

func buildModels(settings *mongorest.Settings) (*modelSet, error) {
	if err := settings.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating settings")
	}

	set := &modelSet{
		settings:   settings,
		schemas:    schema.NewRegistry(),
		visibility: access.NewRegistry(),
	}
	if err := settings.Models.Register(set.schemas, set.visibility); err != nil {
		return nil, errors.Wrap(err, "registering models")
	}

	return set, nil
}

func exportModels(fn string, set *modelSet) error {
	return errors.Wrapf(util.WriteYAMLFile(fn, set.settings.Models), "exporting models to '%s'", fn)
}

func printModels(w io.Writer, set *modelSet) error {
	t := tabby.NewCustom(tabwriter.NewWriter(w, 0, 0, 2, ' ', 0))
	t.AddHeader("Model", "Collection", "Fields", "References", "Protected", "Private", "Read Only")
	for _, name := range set.schemas.Models() {
		s, _ := set.schemas.Get(name)
		conf, _ := set.settings.Models.Get(name)

		var refs []string
		for _, path := range schemaPaths(s.Fields, "") {
			if info, ok := s.Resolve(path); ok && info.Kind == schema.PathReference {
				refs = append(refs, fmt.Sprintf("%s->%s", path, info.Ref))
			}
		}

		t.AddLine(name, s.Collection, len(s.Fields), strings.Join(refs, ","),
			strings.Join(conf.Protected, ","), strings.Join(conf.Private, ","), conf.ReadOnly)
	}
	t.Print()

	return nil
}

// schemaPaths returns the dotted paths of every declared field, sorted.
func schemaPaths(fields map[string]*schema.Field, prefix string) []string {
	var out []string
	for name, f := range fields {
		path := prefix + name
		out = append(out, path)
		out = append(out, schemaPaths(f.Fields, path+".")...)
	}
	sort.Strings(out)
	return out
}
