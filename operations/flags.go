package operations

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/evergreen-ci/mongorest"
	"github.com/kardianos/osext"
	"github.com/mitchellh/go-homedir"
	"github.com/urfave/cli"
)

const (
	confFlagName   = "conf"
	modelFlagName  = "model"
	queryFlagName  = "query"
	addrFlagName   = "addr"
	exportFlagName = "export"

	settingsFileName = "mongorest.yml"
)

func joinFlagNames(ids ...string) string { return strings.Join(ids, ", ") }

func serviceConfigFlags(flags ...cli.Flag) []cli.Flag {
	return append(flags, cli.StringFlag{
		Name:  joinFlagNames(confFlagName, "config", "c"),
		Usage: "path to the service configuration file",
	})
}

func modelFlag(flags ...cli.Flag) []cli.Flag {
	return append(flags, cli.StringFlag{
		Name:  joinFlagNames(modelFlagName, "m"),
		Usage: "name of the model",
	})
}

// findConfigFile returns the settings file to load: the given path when
// set, otherwise the first existing file among the mongorest home
// directory, the user's home directory, the directory of the running
// binary and the system default location.
func findConfigFile(path string) string {
	if path != "" {
		if expanded, err := homedir.Expand(path); err == nil {
			return expanded
		}
		return path
	}

	var candidates []string
	if home := os.Getenv(mongorest.MongorestHome); home != "" {
		candidates = append(candidates, filepath.Join(home, settingsFileName))
	}
	if home, err := homedir.Dir(); err == nil {
		candidates = append(candidates, filepath.Join(home, "."+settingsFileName))
	}
	if dir, err := osext.ExecutableFolder(); err == nil {
		candidates = append(candidates, filepath.Join(dir, settingsFileName))
	}
	candidates = append(candidates, mongorest.DefaultServiceConfigurationFileName)

	for _, fn := range candidates {
		if _, err := os.Stat(fn); err == nil {
			return fn
		}
	}

	return ""
}
