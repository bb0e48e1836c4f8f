// Package configbinder binds loose string property maps to typed structs.
// Registry-built validators and cleansers receive their parameters as
// map[string]string and bind them to their own parameter structs here.
package configbinder

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// BindProperties binds a map of string properties to the target struct.
// The target struct should use `yaml` tags; string values are weakly typed
// so "3.5" binds to a float64 field and "true" to a bool field.
func BindProperties(props map[string]string, target interface{}) error {
	if len(props) == 0 {
		return nil
	}

	intermediate := make(map[string]interface{}, len(props))
	for k, v := range props {
		intermediate[k] = v
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		TagName:          "yaml",
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(intermediate); err != nil {
		targetType := reflect.TypeOf(target)
		if targetType.Kind() == reflect.Ptr {
			targetType = targetType.Elem()
		}
		return fmt.Errorf("failed to bind properties to struct %s: %w", targetType.Name(), err)
	}

	return nil
}
