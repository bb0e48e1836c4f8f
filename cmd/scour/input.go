package main

import (
	"os"

	"gopkg.in/yaml.v3"

	model "github.com/tigerroll/scour/pkg/dq/core/domain/model"
	"github.com/tigerroll/scour/pkg/dq/support/util/exception"
)

// fieldSpec is one schema field of a batch document.
type fieldSpec struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Nullable bool   `yaml:"nullable"`
}

// batchDocument is the YAML shape of an input batch file: a schema block and
// a list of records keyed by field name.
type batchDocument struct {
	Schema  []fieldSpec              `yaml:"schema"`
	Records []map[string]interface{} `yaml:"records"`
}

// loadBatch reads a batch document and materializes it. Fields a record
// omits are carried as nulls so every record conforms to the schema.
func loadBatch(path string) (*model.Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, exception.NewConfigError("input", "", "failed to read batch file "+path, err)
	}

	var doc batchDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, exception.NewConfigError("input", "", "failed to parse batch file "+path, err)
	}
	if len(doc.Schema) == 0 {
		return nil, exception.NewConfigErrorf("input", "schema", "batch file %s declares no schema fields", path)
	}

	fields := make([]model.Field, 0, len(doc.Schema))
	for _, fs := range doc.Schema {
		ft := model.FieldType(fs.Type)
		if !ft.IsValid() {
			return nil, exception.NewConfigErrorf("input", "schema", "field %q has unknown type %q", fs.Name, fs.Type)
		}
		fields = append(fields, model.Field{Name: fs.Name, Type: ft, Nullable: fs.Nullable})
	}
	schema := model.NewSchema(fields...)

	records := make([]*model.Record, 0, len(doc.Records))
	for _, values := range doc.Records {
		cells := make(map[string]interface{}, len(fields))
		for _, f := range fields {
			cells[f.Name] = values[f.Name]
		}
		records = append(records, model.NewRecord(cells))
	}
	return model.NewBatch(schema, records), nil
}
