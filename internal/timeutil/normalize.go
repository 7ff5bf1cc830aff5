// Package timeutil 把后端返回的各种时间戳格式统一为 epoch 毫秒
package timeutil

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Normalize 使用本地时区解析 raw
func Normalize(raw string) (int64, bool) {
	return NormalizeIn(raw, time.Local)
}

// NormalizeIn 把 raw 解析为 epoch 毫秒，按顺序尝试：
//  1. 纯数字：视为 epoch 秒，乘以 1000
//  2. 纯日期 ISO 格式 "2025-03-12"：按 UTC 零点解析，与 ISO-8601 对 date-only 形式的约定一致
//  3. 其他日期字符串（带时间的 ISO-8601、"Mar 12, 2025" 等），无时区信息时使用 loc
//
// 都失败时返回 false，调用方应把该值排除在时间窗口计算之外。不会 panic。
func NormalizeIn(raw string, loc *time.Location) (ms int64, ok bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, false
	}

	if secs, err := strconv.ParseFloat(trimmed, 64); err == nil {
		if math.IsNaN(secs) || math.IsInf(secs, 0) {
			return 0, false
		}
		millis := secs * 1000
		if millis > math.MaxInt64 || millis < math.MinInt64 {
			return 0, false
		}
		return int64(math.Round(millis)), true
	}

	if t, err := time.Parse(time.DateOnly, trimmed); err == nil {
		return t.UnixMilli(), true
	}

	defer func() {
		if r := recover(); r != nil {
			ms, ok = 0, false
		}
	}()

	if loc == nil {
		loc = time.Local
	}
	t, err := dateparse.ParseIn(trimmed, loc)
	if err != nil {
		return 0, false
	}
	return t.UnixMilli(), true
}

// Ptr 解析成功时返回指针，否则 nil
func Ptr(raw string) *int64 {
	if ms, ok := Normalize(raw); ok {
		return &ms
	}
	return nil
}
