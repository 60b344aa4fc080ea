package engine

import (
	"regexp"
	"strings"

	"whenthen/internal/domain"
)

// MatchConditions reports whether the content attributes satisfy a playlet's
// condition set. An empty condition list is vacuously true regardless of the
// combination logic. Evaluation has no side effects and never panics:
// malformed input degrades to "does not match".
func MatchConditions(conditions []domain.TriggerCondition, logic domain.ConditionLogic, attrs domain.ContentAttributes) bool {
	if len(conditions) == 0 {
		return true
	}

	if logic == domain.LogicOr {
		for _, c := range conditions {
			if matchCondition(c, attrs) {
				return true
			}
		}
		return false
	}

	for _, c := range conditions {
		if !matchCondition(c, attrs) {
			return false
		}
	}
	return true
}

func matchCondition(c domain.TriggerCondition, attrs domain.ContentAttributes) bool {
	var result bool
	switch c.Field {
	case domain.FieldName:
		result = matchString(c, attrs.Name)
	case domain.FieldTotalSize:
		if attrs.TotalSize != nil {
			result = matchNumeric(c, *attrs.TotalSize)
		}
	case domain.FieldFileCount:
		if attrs.FileCount != nil {
			result = matchNumeric(c, int64(*attrs.FileCount))
		}
	}
	if c.Negate {
		result = !result
	}
	return result
}

func matchString(c domain.TriggerCondition, value string) bool {
	haystack := strings.ToLower(value)
	needle := strings.ToLower(c.Value)

	switch c.Operator {
	case domain.OperatorContains:
		return strings.Contains(haystack, needle)
	case domain.OperatorNotContains:
		return !strings.Contains(haystack, needle)
	case domain.OperatorStartsWith:
		return strings.HasPrefix(haystack, needle)
	case domain.OperatorEndsWith:
		return strings.HasSuffix(haystack, needle)
	case domain.OperatorEquals:
		return haystack == needle
	case domain.OperatorRegex:
		re, err := regexp.Compile("(?i)" + c.Value)
		if err != nil {
			return false
		}
		return re.MatchString(value)
	}
	return false
}

func matchNumeric(c domain.TriggerCondition, value int64) bool {
	switch c.SizeOperator {
	case domain.SizeGreaterThan:
		return value > c.NumericValue
	case domain.SizeLessThan:
		return value < c.NumericValue
	case domain.SizeBetween:
		return value >= c.NumericValue && value <= c.NumericValueEnd
	}
	return false
}
