package client

import "fmt"

// FetchError 报告列表/报告内容获取失败（网络错误、非 2xx、响应无法解析）
type FetchError struct {
	Op         string // "list_reports" 或 "get_report"
	StatusCode int    // 0 表示未收到响应
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s failed: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// GenerationError 后端拒绝或未能完成报告生成
type GenerationError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generate report failed: %v", e.Err)
	}
	return fmt.Sprintf("generate report failed: status %d: %s", e.StatusCode, e.Message)
}

func (e *GenerationError) Unwrap() error { return e.Err }
