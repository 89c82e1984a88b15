/*
Package data executes translated query plans.

The Connector interface is the boundary between the REST handlers and the
storage of model documents. DBConnector runs plans against MongoDB through
the db package; MockConnector evaluates the same plans against documents
held in memory and backs the route tests.

Both implementations resolve populate directives the same way: the
reference values found at the directive's path are collected, the
referenced model is queried by _id, and the ids are replaced in place by
the documents found. Directives whose path does not resolve to a
reference in the schema are skipped.

Connectors return plain documents (map[string]any, []any and BSON
scalars). Field visibility is applied by the caller.
*/
package data
