package operations

import (
	"os"

	"github.com/mongodb/grip"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

func requireConfigFile(name string) cli.BeforeFunc {
	return func(c *cli.Context) error {
		path := findConfigFile(c.String(name))
		if path == "" {
			return errors.New("no configuration file was given or found")
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return errors.Errorf("configuration file '%s' does not exist", path)
		}

		return errors.WithStack(c.Set(name, path))
	}
}

func requireStringFlag(name string) cli.BeforeFunc {
	return func(c *cli.Context) error {
		if c.String(name) == "" {
			return errors.Errorf("flag '--%s' was not specified", name)
		}
		return nil
	}
}

func mergeBeforeFuncs(ops ...cli.BeforeFunc) cli.BeforeFunc {
	return func(c *cli.Context) error {
		catcher := grip.NewBasicCatcher()

		for _, op := range ops {
			catcher.Add(op(c))
		}

		return catcher.Resolve()
	}
}
