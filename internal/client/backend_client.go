package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/lihe8811/AquaSense/internal/models"
)

// ReportRecord GET /reports/{userId} 返回的单条记录
type ReportRecord struct {
	ObjectKey    string          `json:"object_key"`
	LastModified json.RawMessage `json:"last_modified"`
}

// GenerateReportRequest POST /generate-report 请求体
type GenerateReportRequest struct {
	UserID   string   `json:"user_id"`
	TestID   string   `json:"test_id"`
	Age      *int     `json:"age,omitempty"`
	Gender   *string  `json:"gender,omitempty"`
	HeightCm *float64 `json:"height_cm,omitempty"`
	WeightKg *float64 `json:"weight_kg,omitempty"`
}

// BackendClient 报告后端 API 客户端
type BackendClient struct {
	httpClient *resty.Client
	genClient  *resty.Client // 生成报告不是幂等操作，单独的客户端不重试
	logger     *zap.Logger
	mu         sync.RWMutex
	token      string
}

// NewBackendClient 创建后端客户端
func NewBackendClient(baseURL string, timeout time.Duration, retryCount int, logger *zap.Logger) *BackendClient {
	httpClient := newRestyClient(baseURL, timeout).
		SetRetryCount(retryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second)

	httpClient.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return r != nil && r.StatusCode() >= 500
	})

	return &BackendClient{
		httpClient: httpClient,
		genClient:  newRestyClient(baseURL, timeout),
		logger:     logger,
	}
}

func newRestyClient(baseURL string, timeout time.Duration) *resty.Client {
	return resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
}

// SetToken 设置 Bearer token（会话变化时由编排器调用）
func (c *BackendClient) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *BackendClient) request(ctx context.Context, rc *resty.Client) *resty.Request {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()

	req := rc.R().SetContext(ctx)
	if token != "" {
		req.SetAuthToken(token)
	}
	return req
}

// ListReports 获取用户全部已生成报告
// 后端不保证顺序，调用方不能依赖返回顺序
func (c *BackendClient) ListReports(ctx context.Context, userID string) ([]models.ReportItem, error) {
	resp, err := c.request(ctx, c.httpClient).
		SetPathParam("userId", userID).
		Get("/reports/{userId}")
	if err != nil {
		return nil, &FetchError{Op: "list_reports", Err: err}
	}
	if !resp.IsSuccess() {
		return nil, &FetchError{
			Op:         "list_reports",
			StatusCode: resp.StatusCode(),
			Err:        errors.New(errorDetail(resp.Body())),
		}
	}

	var records []ReportRecord
	if err := json.Unmarshal(resp.Body(), &records); err != nil {
		return nil, &FetchError{
			Op:         "list_reports",
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("failed to decode report list: %w", err),
		}
	}

	items := make([]models.ReportItem, 0, len(records))
	for _, rec := range records {
		if rec.ObjectKey == "" {
			continue
		}
		items = append(items, models.ReportItem{
			ID:        rec.ObjectKey,
			CreatedAt: rawTimestamp(rec.LastModified),
			Status:    models.ReportStatusReady,
			ReportKey: rec.ObjectKey,
		})
	}

	c.logger.Debug("Fetched report list",
		zap.String("user_id", userID),
		zap.Int("report_count", len(items)),
	)

	return items, nil
}

// GetReport 按 reportKey 获取完整报告
func (c *BackendClient) GetReport(ctx context.Context, reportKey string) (*models.ReportData, error) {
	resp, err := c.request(ctx, c.httpClient).
		SetPathParam("reportKey", reportKey).
		Get("/report/{reportKey}")
	if err != nil {
		return nil, &FetchError{Op: "get_report", Err: err}
	}
	if !resp.IsSuccess() {
		return nil, &FetchError{
			Op:         "get_report",
			StatusCode: resp.StatusCode(),
			Err:        errors.New(errorDetail(resp.Body())),
		}
	}

	var report models.ReportData
	if err := json.Unmarshal(resp.Body(), &report); err != nil {
		return nil, &FetchError{
			Op:         "get_report",
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("failed to decode report %s: %w", reportKey, err),
		}
	}
	return &report, nil
}

// GenerateReport 触发后端生成报告，只关心成功与否
func (c *BackendClient) GenerateReport(ctx context.Context, req GenerateReportRequest) error {
	c.logger.Info("Calling backend: generate-report",
		zap.String("user_id", req.UserID),
		zap.String("test_id", req.TestID),
	)

	resp, err := c.request(ctx, c.genClient).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post("/generate-report")
	if err != nil {
		return &GenerationError{Err: err}
	}
	if !resp.IsSuccess() {
		return &GenerationError{
			StatusCode: resp.StatusCode(),
			Message:    errorDetail(resp.Body()),
		}
	}
	return nil
}

// rawTimestamp 把 last_modified 原样转成字符串（字符串或数字都接受）
func rawTimestamp(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s
	}
	return string(trimmed)
}

// errorDetail 提取 FastAPI 风格的 {"detail": "..."} 错误信息
func errorDetail(body []byte) string {
	var payload struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != nil {
		if s, ok := payload.Detail.(string); ok {
			return s
		}
		b, _ := json.Marshal(payload.Detail)
		return string(b)
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if msg == "" {
		msg = "empty response body"
	}
	return msg
}
