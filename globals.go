package mongorest

import (
	"os"
	"path/filepath"
)

const (
	// PackageName is the import path of the module, used to name tracers.
	PackageName = "github.com/evergreen-ci/mongorest"

	MongorestHome = "MONGOREST_HOME"

	DefaultServiceConfigurationFileName = "/etc/mongorest.yml"
	DefaultDatabaseURL                  = "mongodb://localhost:27017"
	DefaultDatabaseName                 = "mongorest"
	DefaultHTTPListenAddr               = ":8080"

	RestRoutePrefix   = "/api"
	DefaultAPIVersion = 1

	// DefaultMaxLimit is the page size clamp applied when the query
	// section of the settings does not set one.
	DefaultMaxLimit = 100

	// OtelAttributeMaxLength caps the length of string span attributes.
	OtelAttributeMaxLength = 10000
)

// Query string parameters understood by the generated endpoints.
const (
	QueryParam      = "query"
	SkipParam       = "skip"
	LimitParam      = "limit"
	SortParam       = "sort"
	SelectParam     = "select"
	PopulateParam   = "populate"
	DistinctParam   = "distinct"
	ProjectionParam = "projection"
)

var (
	// BuildRevision is set at link time to the git revision of the build.
	BuildRevision = ""

	// ClientVersion is the version reported by the command line tool.
	ClientVersion = "2026-10-19"
)

// FindMongorestHome returns the MONGOREST_HOME directory, falling back to
// the directory containing the current working directory's settings.
func FindMongorestHome() string {
	if home := os.Getenv(MongorestHome); home != "" {
		return home
	}

	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	return filepath.Clean(wd)
}
