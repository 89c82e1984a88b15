package data

import (
	"fmt"

	"github.com/evergreen-ci/mongorest"
	"go.opentelemetry.io/otel"
)

var packageName = fmt.Sprintf("%s%s", mongorest.PackageName, "/rest/data")

var tracer = otel.GetTracerProvider().Tracer(packageName)

const (
	modelAttribute     = "mongorest.data.model"
	operationAttribute = "mongorest.data.operation"
	populateAttribute  = "mongorest.data.populate"
	resultsAttribute   = "mongorest.data.results"
)
