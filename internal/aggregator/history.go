// Package aggregator 拉取最近报告内容并计算 7 天平均水合分数
package aggregator

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lihe8811/AquaSense/internal/models"
	"github.com/lihe8811/AquaSense/internal/timeutil"
)

// MaxHistoryReports 每次最多拉取的报告内容数量（限制扇出）
const MaxHistoryReports = 6

// ReportFetcher 按 reportKey 获取报告内容
type ReportFetcher interface {
	GetReport(ctx context.Context, reportKey string) (*models.ReportData, error)
}

// HistoryAggregator 历史数据聚合器
type HistoryAggregator struct {
	fetcher ReportFetcher
	logger  *zap.Logger
}

// NewHistoryAggregator 创建历史数据聚合器
func NewHistoryAggregator(fetcher ReportFetcher, logger *zap.Logger) *HistoryAggregator {
	return &HistoryAggregator{
		fetcher: fetcher,
		logger:  logger,
	}
}

// SelectForHistory 过滤出带 reportKey 的 ready 报告，最多取前 MaxHistoryReports 个
// 顺序由调用方决定，需要按时间取最近的报告时应先排序
func SelectForHistory(items []models.ReportItem) []models.ReportItem {
	selected := make([]models.ReportItem, 0, MaxHistoryReports)
	for _, item := range items {
		if len(selected) == MaxHistoryReports {
			break
		}
		if item.IsReady() && item.ReportKey != "" {
			selected = append(selected, item)
		}
	}
	return selected
}

// Aggregate 并发拉取报告内容并提取历史样本
// 单个报告拉取失败或没有数值分数时丢弃该报告，不影响其它报告；结果保持输入顺序
func (a *HistoryAggregator) Aggregate(ctx context.Context, items []models.ReportItem) []models.HydrationHistoryPoint {
	selected := SelectForHistory(items)
	if len(selected) == 0 {
		return []models.HydrationHistoryPoint{}
	}

	results := make([]*models.HydrationHistoryPoint, len(selected))

	var g errgroup.Group
	g.SetLimit(MaxHistoryReports)
	for i, item := range selected {
		g.Go(func() error {
			report, err := a.fetcher.GetReport(ctx, item.ReportKey)
			if err != nil {
				a.logger.Warn("Failed to fetch report body, skipping",
					zap.String("report_key", item.ReportKey),
					zap.Error(err),
				)
				return nil
			}
			results[i] = toHistoryPoint(item, report)
			if results[i] == nil {
				a.logger.Debug("Report has no numeric hydration level, skipping",
					zap.String("report_key", item.ReportKey),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	points := make([]models.HydrationHistoryPoint, 0, len(selected))
	for _, p := range results {
		if p != nil {
			points = append(points, *p)
		}
	}
	return points
}

// toHistoryPoint 从报告内容提取样本，没有数值分数时返回 nil
func toHistoryPoint(item models.ReportItem, report *models.ReportData) *models.HydrationHistoryPoint {
	if report == nil {
		return nil
	}
	score, ok := report.HydrationSummary.Level.Float64()
	if !ok {
		return nil
	}

	label := item.CreatedAt
	if strings.TrimSpace(report.TestDate) != "" {
		label = report.TestDate
	}

	return &models.HydrationHistoryPoint{
		Label:     label,
		Score:     score,
		Timestamp: timeutil.Ptr(label),
	}
}
