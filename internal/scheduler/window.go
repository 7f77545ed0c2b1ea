package scheduler

import (
	"regexp"
	"time"
)

// Window 半开时间区间 [Start, End)
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func NewWindow(start, end time.Time) (Window, error) {
	w := Window{Start: start, End: end}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

// Validate 零长度或倒置的窗口属于非法输入，不会进入冲突检测
func (w Window) Validate() error {
	if w.Start.IsZero() {
		return invalid("windowStart", "is required")
	}
	if w.End.IsZero() {
		return invalid("windowEnd", "is required")
	}
	if !w.End.After(w.Start) {
		return invalid("windowEnd", "must be after windowStart")
	}
	return nil
}

func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Overlaps 首尾相接（e == s2）不算重叠
func (w Window) Overlaps(start, end time.Time) bool {
	return Overlaps(w.Start, w.End, start, end)
}

func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && e1.After(s2)
}

var postalPrefix = regexp.MustCompile(`^\s*(\d{5})(?:[-\s]?\d{4})?\s*$`)

// NormalizePostalCode 返回邮编的 5 位前缀，ZIP+4 格式同样接受
func NormalizePostalCode(code string) (string, error) {
	m := postalPrefix.FindStringSubmatch(code)
	if m == nil {
		return "", invalid("postalCode", "must be a 5-digit postal code")
	}
	return m[1], nil
}
