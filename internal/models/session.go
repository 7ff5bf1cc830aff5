package models

import (
	"strconv"
	"time"
)

// AuthSession 登录会话（由外部认证服务签发，这里只做透传）
type AuthSession struct {
	ID    *int64 `json:"id,omitempty"`
	Token string `json:"token"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// UserID 后端报告接口使用的用户标识
// 有数值 ID 时使用 ID，否则退回 email
func (s AuthSession) UserID() string {
	if s.ID != nil {
		return strconv.FormatInt(*s.ID, 10)
	}
	return s.Email
}

// ProfileSurvey 用户问卷（生成报告时附带）
type ProfileSurvey struct {
	Age      *int     `json:"age,omitempty"`
	Gender   *string  `json:"gender,omitempty"`
	HeightCm *float64 `json:"height_cm,omitempty"`
	WeightKg *float64 `json:"weight_kg,omitempty"`
}

// ScanKind 扫描类型
type ScanKind string

const (
	ScanTongue ScanKind = "tongue"
	ScanUrine  ScanKind = "urine"
)

// ScanStatus 当前扫描流程进度
type ScanStatus struct {
	Tongue bool `json:"tongue"`
	Urine  bool `json:"urine"`
}

// TestSession 单次扫描流程（舌象 + 尿液），每次开始新流程时重新生成 TestID
type TestSession struct {
	TestID     string     `json:"testId"`
	ScanStatus ScanStatus `json:"scanStatus"`
}

// SyncStatus 同步状态机
type SyncStatus string

const (
	SyncIdle    SyncStatus = "idle"
	SyncSyncing SyncStatus = "syncing"
	SyncSynced  SyncStatus = "synced"
	SyncFailed  SyncStatus = "sync_failed"
)

// Snapshot UI 读取的只读视图
type Snapshot struct {
	UserID        string                  `json:"userId"`
	Status        SyncStatus              `json:"status"`
	Reports       []ReportItem            `json:"reports"`
	History       []HydrationHistoryPoint `json:"history"`
	WeeklyAverage *int                    `json:"weeklyAverage"` // nil 表示无数据（不是 0）
	TestSession   *TestSession            `json:"testSession,omitempty"`
	Version       uint64                  `json:"version"`
	UpdatedAt     time.Time               `json:"updatedAt"`
}
