package standardize

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"

	model "github.com/tigerroll/scour/pkg/dq/core/domain/model"
)

// coerceValue converts one cell to the declared field type. Numeric fields
// become float64, date fields are reformatted to the configured layout, and
// string and categorical fields become trimmed strings. A non-nil error
// means the cell could not be converted; the caller nulls the cell and
// records an issue.
func coerceValue(value interface{}, fieldType model.FieldType, dateLayout string) (interface{}, error) {
	switch fieldType {
	case model.FieldTypeNumeric:
		f, err := cast.ToFloat64E(value)
		if err != nil {
			return nil, fmt.Errorf("not a number: %v", value)
		}
		return f, nil

	case model.FieldTypeDate:
		if t, ok := value.(time.Time); ok {
			return t.Format(dateLayout), nil
		}
		s := strings.TrimSpace(cast.ToString(value))
		t, err := parseDate(s, dateLayout)
		if err != nil {
			return nil, fmt.Errorf("not a date in layout %q: %v", dateLayout, value)
		}
		return t.Format(dateLayout), nil

	default: // string, categorical
		return cast.ToString(value), nil
	}
}

// fallbackDateLayouts are tried after the configured layout so common
// interchange formats still coerce.
var fallbackDateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
}

func parseDate(s, layout string) (time.Time, error) {
	if t, err := time.Parse(layout, s); err == nil {
		return t, nil
	}
	for _, l := range fallbackDateLayouts {
		if l == layout {
			continue
		}
		if t, err := time.Parse(l, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}
