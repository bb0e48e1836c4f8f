package standardize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/tigerroll/scour/pkg/dq/core/config"
	model "github.com/tigerroll/scour/pkg/dq/core/domain/model"
	"github.com/tigerroll/scour/pkg/dq/engine/standardize"
	"github.com/tigerroll/scour/pkg/dq/support/util/exception"
)

func TestTransformName(t *testing.T) {
	tests := []struct {
		name       string
		convention config.NamingConvention
		want       string
	}{
		{"CustomerName", config.NamingSnakeCase, "customer_name"},
		{"customer name", config.NamingSnakeCase, "customer_name"},
		{"customer-name", config.NamingSnakeCase, "customer_name"},
		{"HTTPServer", config.NamingSnakeCase, "http_server"},
		{"field2Value", config.NamingSnakeCase, "field2_value"},

		{"customer_name", config.NamingCamelCase, "customerName"},
		{"Customer Name", config.NamingCamelCase, "customerName"},

		{"customer_name", config.NamingPascalCase, "CustomerName"},
		{"phone", config.NamingPascalCase, "Phone"},
	}
	for _, tt := range tests {
		got := standardize.TransformName(tt.name, tt.convention)
		assert.Equal(t, tt.want, got, "%s -> %s", tt.name, tt.convention)
	}
}

func TestTransformName_Idempotent(t *testing.T) {
	conventions := []config.NamingConvention{
		config.NamingSnakeCase, config.NamingCamelCase, config.NamingPascalCase,
	}
	names := []string{"CustomerName", "signup_date", "phoneNumber", "age", "HTTPServer"}

	for _, convention := range conventions {
		for _, name := range names {
			once := standardize.TransformName(name, convention)
			twice := standardize.TransformName(once, convention)
			assert.Equal(t, once, twice, "%s under %s", name, convention)
		}
	}
}

func TestNamingPlan(t *testing.T) {
	schema := model.NewSchema(
		model.Field{Name: "CustomerName", Type: model.FieldTypeString},
		model.Field{Name: "age", Type: model.FieldTypeNumeric},
	)
	plan := standardize.NamingPlan(schema, config.NamingSnakeCase)
	assert.Equal(t, map[string]string{
		"CustomerName": "customer_name",
		"age":          "age",
	}, plan)
}

func TestCheckCollisions(t *testing.T) {
	schema := model.NewSchema(
		model.Field{Name: "customer_name", Type: model.FieldTypeString},
		model.Field{Name: "CustomerName", Type: model.FieldTypeString},
	)
	plan := standardize.NamingPlan(schema, config.NamingSnakeCase)
	err := standardize.CheckCollisions(schema, plan)
	require.Error(t, err)
	assert.True(t, exception.IsConfigError(err))
	assert.Equal(t, "pipeline.naming_convention", exception.ConfigKeyOf(err))
}
