package fetcher

import (
	"strings"

	"ats-radar/internal/model"
)

// newSalary 只在至少有一端金额时返回非空薪资。
func newSalary(min, max *float64, currency, interval string) model.Salary {
	if (min == nil || *min <= 0) && (max == nil || *max <= 0) {
		return model.Salary{}
	}
	if min != nil && *min <= 0 {
		min = nil
	}
	if max != nil && *max <= 0 {
		max = nil
	}
	return model.Salary{
		Min:      min,
		Max:      max,
		Currency: strings.ToUpper(strings.TrimSpace(currency)),
		Interval: normalizeInterval(interval),
	}
}

// normalizeInterval 统一为 hour、day、week、month、year。
func normalizeInterval(s string) string {
	s = strings.ToLower(s)
	switch {
	case s == "":
		return ""
	case strings.Contains(s, "hour"):
		return "hour"
	case strings.Contains(s, "day"), strings.Contains(s, "daily"):
		return "day"
	case strings.Contains(s, "week"):
		return "week"
	case strings.Contains(s, "month"):
		return "month"
	case strings.Contains(s, "year"), strings.Contains(s, "annual"):
		return "year"
	default:
		return ""
	}
}

func floatPtr(v float64) *float64 {
	return &v
}
