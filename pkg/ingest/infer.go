package ingest

import (
	"strconv"
	"strings"

	"github.com/tabflowio/tabflow/pkg/table"
)

// inferColumnType best-effort infers a column's logical type from its
// observed string values: int64 if every non-empty value parses as an
// integer, float64 if every value parses as a float, bool if every value
// is a recognized boolean token, otherwise text.
func inferColumnType(values []string) table.CellType {
	nonEmpty := 0
	allInt, allFloat, allBool := true, true, true
	for _, v := range values {
		s := strings.TrimSpace(v)
		if s == "" {
			continue
		}
		nonEmpty++
		if allInt {
			if _, err := strconv.ParseInt(s, 10, 64); err != nil {
				allInt = false
			}
		}
		if allFloat {
			if _, err := strconv.ParseFloat(s, 64); err != nil {
				allFloat = false
			}
		}
		if allBool {
			switch strings.ToLower(s) {
			case "true", "false":
			default:
				allBool = false
			}
		}
	}
	if nonEmpty == 0 {
		return table.TypeText
	}
	switch {
	case allInt:
		return table.TypeInt64
	case allFloat:
		return table.TypeFloat64
	case allBool:
		return table.TypeBool
	default:
		return table.TypeText
	}
}

// coerceInferred converts a raw string cell (or nil) to the inferred
// column type's native representation.
func coerceInferred(v any, typ table.CellType) any {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	if strings.TrimSpace(s) == "" {
		return nil
	}
	switch typ {
	case table.TypeInt64:
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil
		}
		return n
	case table.TypeFloat64:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil
		}
		return f
	case table.TypeBool:
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return nil
		}
		return b
	default:
		return s
	}
}
