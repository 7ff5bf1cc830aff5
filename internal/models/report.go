package models

// ReportStatus 报告状态
type ReportStatus string

const (
	ReportStatusGenerating ReportStatus = "generating"
	ReportStatusReady      ReportStatus = "ready"
)

// ReportItem 用户报告历史中的一行
// 未确认的报告 ID 形如 pending-<testId>，已确认的报告 ID 等于后端 object key
type ReportItem struct {
	ID        string       `json:"id"`
	CreatedAt string       `json:"createdAt"` // 原始时间戳（秒级 epoch、ISO-8601 或占位符的人类可读字符串）
	Status    ReportStatus `json:"status"`
	ReportKey string       `json:"reportKey,omitempty"` // 仅 ready 状态存在
}

// IsReady 是否为已确认报告
func (r ReportItem) IsReady() bool {
	return r.Status == ReportStatusReady
}

// HydrationHistoryPoint 滚动平均使用的单个样本
type HydrationHistoryPoint struct {
	Label     string  `json:"label"`
	Score     float64 `json:"score"`               // 0-100
	Timestamp *int64  `json:"timestamp,omitempty"` // epoch 毫秒，无法解析时为空
}

// ReportData 后端返回的完整报告内容
// 核心逻辑只读取 testDate 与 hydrationSummary.level
type ReportData struct {
	TestDate          string             `json:"testDate"`
	UserProfile       *ReportUserProfile `json:"userProfile,omitempty"`
	HydrationSummary  HydrationSummary   `json:"hydrationSummary"`
	UrineAnalysis     UrineAnalysis      `json:"urineAnalysis"`
	TongueAnalysis    TongueAnalysis     `json:"tongueAnalysis"`
	RecommendedDrinks []RecommendedDrink `json:"recommendedDrinks"`
}

type ReportUserProfile struct {
	Age      *int     `json:"age"`
	Gender   *string  `json:"gender"`
	HeightCm *float64 `json:"height_cm"`
	WeightKg *float64 `json:"weight_kg"`
}

// HydrationSummary 报告中的水合度汇总
// Level 保留原始 JSON，后端可能返回 null 或非数值
type HydrationSummary struct {
	Level       RawNumber `json:"level"`
	Status      string    `json:"status"`
	WellnessTip string    `json:"wellnessTip"`
}

type UrineAnalysis struct {
	Status       string             `json:"status"`
	ColorLevel   string             `json:"colorLevel"`
	Insight      string             `json:"insight"`
	Analysis     string             `json:"analysis,omitempty"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`
	AnalysisData *UrineAnalysisData `json:"analysisData,omitempty"`
}

type UrineAnalysisData struct {
	HydrationStatus         string  `json:"hydration_status"`
	RiskLevel               string  `json:"risk_level"`
	EstimatedArmstrongGrade float64 `json:"estimated_armstrong_grade"`
}

type TongueAnalysis struct {
	Status    string             `json:"status"`
	Insight   string             `json:"insight"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
	Diagnosis []string           `json:"diagnosis,omitempty"`
}

type RecommendedDrink struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Desc    string `json:"desc"`
	Benefit string `json:"benefit"`
	Img     string `json:"img"`
	IsBest  bool   `json:"isBest"`
	Reason  string `json:"reason,omitempty"`
}
