package sql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/canonica-labs/semgate/internal/errors"
)

// inlineLiterals rewrites a rendered `?`-placeholder statement by replacing
// each placeholder, in order, with an escaped literal of its bound
// argument. Build calls this for dialects with InlineValues set (Trino),
// so Execute never carries bind args for them. String values are
// single-quote-escaped by doubling, nil becomes NULL, booleans render as
// the uppercase keyword. Any other argument type fails rather than
// silently mis-rendering.
func inlineLiterals(query string, args []interface{}) (string, error) {
	var b strings.Builder
	argIdx := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			if argIdx >= len(args) {
				return "", errors.NewBuildError("inline literals: fewer arguments than placeholders", nil)
			}
			lit, err := inlineLiteral(args[argIdx])
			if err != nil {
				return "", err
			}
			b.WriteString(lit)
			argIdx++
			continue
		}
		b.WriteByte(query[i])
	}
	if argIdx != len(args) {
		return "", errors.NewBuildError("inline literals: more arguments than placeholders", nil)
	}
	return b.String(), nil
}

func inlineLiteral(v interface{}) (string, error) {
	switch val := v.(type) {
	case nil:
		return "NULL", nil
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'", nil
	case bool:
		if val {
			return "TRUE", nil
		}
		return "FALSE", nil
	case int:
		return strconv.Itoa(val), nil
	case int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val), nil
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	default:
		return "", errors.NewBuildError(fmt.Sprintf("inline literals: unsupported type %T for value inlining", v), nil)
	}
}
