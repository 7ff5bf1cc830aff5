package models

import (
	"bytes"
	"encoding/json"
)

// RawNumber 宽松的数值字段：null、缺失或非数值都视为"无值"
type RawNumber struct {
	raw json.RawMessage
}

// NewRawNumber 用已知数值构造（测试与占位使用）
func NewRawNumber(v float64) RawNumber {
	b, _ := json.Marshal(v)
	return RawNumber{raw: b}
}

func (n *RawNumber) UnmarshalJSON(b []byte) error {
	n.raw = append(n.raw[:0], b...)
	return nil
}

func (n RawNumber) MarshalJSON() ([]byte, error) {
	if len(n.raw) == 0 {
		return []byte("null"), nil
	}
	return n.raw, nil
}

// Float64 返回数值；null、字符串、对象等一律返回 false
func (n RawNumber) Float64() (float64, bool) {
	trimmed := bytes.TrimSpace(n.raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return 0, false
	}
	switch trimmed[0] {
	case '"', '{', '[', 't', 'f':
		return 0, false
	}
	var v float64
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return 0, false
	}
	return v, true
}
