package operations

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/evergreen-ci/mongorest"
	"github.com/evergreen-ci/mongorest/db"
	"github.com/evergreen-ci/mongorest/model/schema"
	"github.com/evergreen-ci/mongorest/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testModels(t *testing.T) *modelSet {
	set, err := buildModels(&mongorest.Settings{
		Query: mongorest.QueryConfig{MaxLimit: 5},
		Models: mongorest.ModelConfigs{
			{
				Name: "Customer",
				Fields: map[string]schema.Definition{
					"name":     {Type: schema.TypeString},
					"age":      {Type: schema.TypeNumber},
					"favorite": {Ref: "Product"},
				},
				Private: []string{"age"},
			},
			{
				Name:     "Product",
				Fields:   map[string]schema.Definition{"name": {Type: schema.TypeString}},
				ReadOnly: true,
			},
		},
	})
	require.NoError(t, err)
	return set
}

func TestBuildModelsRejectsDanglingReferences(t *testing.T) {
	_, err := buildModels(&mongorest.Settings{
		Models: mongorest.ModelConfigs{
			{Name: "Customer", Fields: map[string]schema.Definition{"favorite": {Ref: "Product"}}},
		},
	})
	assert.Error(t, err)
}

func TestExportModels(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "models.yml")
	require.NoError(t, exportModels(fn, testModels(t)))

	var models mongorest.ModelConfigs
	require.NoError(t, util.ReadFromYAMLFile(fn, &models))
	require.Len(t, models, 2)
	assert.Equal(t, "Customer", models[0].Name)
	assert.Equal(t, "customers", models[0].Collection)
	assert.Equal(t, []string{"age"}, models[0].Private)
	assert.True(t, models[1].ReadOnly)
}

func TestPrintModels(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printModels(&buf, testModels(t)))

	out := buf.String()
	assert.Contains(t, out, "Customer")
	assert.Contains(t, out, "customers")
	assert.Contains(t, out, "favorite->Product")
	assert.Contains(t, out, "products")
}

func TestExplainQuery(t *testing.T) {
	set := testModels(t)

	p, err := explainQuery(set, "Customer", `query={"age":">21"}&sort=-name&populate=favorite&limit=50`)
	require.NoError(t, err)
	assert.Equal(t, db.OpFind, p.Operation)
	assert.JSONEq(t, `{"age":{"$gt":21}}`, string(p.Filter))
	assert.Equal(t, []string{"-name"}, p.Sort)
	assert.Equal(t, 5, p.Limit)
	require.Len(t, p.Populate, 1)
	assert.Equal(t, "favorite", p.Populate[0].Path)

	var buf bytes.Buffer
	require.NoError(t, printPlan(&buf, p))
	decoded := map[string]any{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "Customer", decoded["model"])

	p, err = explainQuery(set, "Customer", "")
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(p.Filter))

	_, err = explainQuery(set, "Invoice", "")
	assert.Error(t, err)
	_, err = explainQuery(set, "Customer", "limit=-1")
	assert.Error(t, err)
}

func TestFindConfigFile(t *testing.T) {
	assert.Equal(t, "/tmp/explicit.yml", findConfigFile("/tmp/explicit.yml"))

	home := t.TempDir()
	t.Setenv(mongorest.MongorestHome, home)
	fn := filepath.Join(home, settingsFileName)
	require.NoError(t, os.WriteFile(fn, []byte("models: []\n"), 0644))
	assert.Equal(t, fn, findConfigFile(""))
}
