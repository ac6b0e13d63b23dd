package trigger

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/dukex/conductor/pkg/models"
)

var regexCache sync.Map

func compileRegex(pattern string) (*regexp.Regexp, error) {
	if re, ok := regexCache.Load(pattern); ok {
		return re.(*regexp.Regexp), nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	regexCache.Store(pattern, re)

	return re, nil
}

// compare applies op to the resolved value. found is false when the field
// path did not resolve.
func compare(op models.Operator, actual any, found bool, expected any) (bool, error) {
	switch op {
	case models.OperatorExists:
		return found && actual != nil, nil
	case models.OperatorNotExists:
		return !found || actual == nil, nil
	}

	if !found {
		// Missing fields only satisfy negative operators.
		return op == models.OperatorNe || op == models.OperatorNotContains || op == models.OperatorNotIn, nil
	}

	switch op {
	case models.OperatorEq:
		return equal(actual, expected), nil
	case models.OperatorNe:
		return !equal(actual, expected), nil
	case models.OperatorGt, models.OperatorGte, models.OperatorLt, models.OperatorLte:
		return ordered(op, actual, expected)
	case models.OperatorContains:
		return contains(actual, expected), nil
	case models.OperatorNotContains:
		return !contains(actual, expected), nil
	case models.OperatorIn:
		return contains(expected, actual), nil
	case models.OperatorNotIn:
		return !contains(expected, actual), nil
	case models.OperatorStartsWith:
		return strings.HasPrefix(toString(actual), toString(expected)), nil
	case models.OperatorEndsWith:
		return strings.HasSuffix(toString(actual), toString(expected)), nil
	case models.OperatorMatches:
		re, err := compileRegex(toString(expected))
		if err != nil {
			return false, fmt.Errorf("invalid pattern %q: %w", expected, err)
		}

		return re.MatchString(toString(actual)), nil
	default:
		return false, fmt.Errorf("%w: %s", ErrUnknownOperator, op)
	}
}

func equal(a, b any) bool {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)

	if aok && bok {
		return af == bf
	}

	if reflect.DeepEqual(a, b) {
		return true
	}

	if isScalar(a) && isScalar(b) {
		return toString(a) == toString(b)
	}

	return false
}

func ordered(op models.Operator, actual, expected any) (bool, error) {
	af, aok := toFloat(actual)
	ef, eok := toFloat(expected)

	if !aok || !eok {
		as, aIsString := actual.(string)
		es, eIsString := expected.(string)

		if !aIsString || !eIsString {
			return false, fmt.Errorf("%w: %v %s %v", ErrNotComparable, actual, op, expected)
		}

		c := strings.Compare(as, es)
		af, ef = float64(c), 0
	}

	switch op {
	case models.OperatorGt:
		return af > ef, nil
	case models.OperatorGte:
		return af >= ef, nil
	case models.OperatorLt:
		return af < ef, nil
	default:
		return af <= ef, nil
	}
}

// contains reports whether haystack holds needle: a substring for strings,
// an element for slices and a key for maps.
func contains(haystack, needle any) bool {
	switch h := haystack.(type) {
	case string:
		return strings.Contains(h, toString(needle))
	case map[string]any:
		_, ok := h[toString(needle)]

		return ok
	case nil:
		return false
	}

	v := reflect.ValueOf(haystack)
	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return false
	}

	for i := range v.Len() {
		if equal(v.Index(i).Interface(), needle) {
			return true
		}
	}

	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)

		return f, err == nil
	default:
		return 0, false
	}
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, bool, float64, float32, int, int32, int64, uint, uint64:
		return true
	default:
		return false
	}
}

func toString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
