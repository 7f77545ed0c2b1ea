package handler

import (
	"net/url"
	"strconv"
	"time"
)

func queryInt64(q url.Values, name string) (int64, error) {
	v := q.Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, invalidParam(name)
	}
	return n, nil
}

func queryBool(q url.Values, name string) (*bool, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, invalidParam(name)
	}
	return &b, nil
}

// queryTime 接受 RFC 3339 时间
func queryTime(q url.Values, name string, required bool) (time.Time, error) {
	v := q.Get(name)
	if v == "" {
		if required {
			return time.Time{}, invalidParam(name)
		}
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, invalidParam(name)
	}
	return t, nil
}

// parseDay 日期按 YYYY-MM-DD 解析，时区由调度核心按资源解释
func parseDay(v string) (time.Time, error) {
	return time.Parse(time.DateOnly, v)
}
