package aggregator

import (
	"time"

	"github.com/montanaflynn/stats"

	"github.com/lihe8811/AquaSense/internal/models"
)

// AverageWindow 滚动平均窗口
const AverageWindow = 7 * 24 * time.Hour

// WindowedAverage 计算 [now-7d, now]（闭区间，毫秒精度）内样本的平均分
// 没有时间戳或不在窗口内的样本被排除；没有样本时返回 nil（表示无数据，而不是 0）
// 平均值四舍五入（远离零）到整数
func WindowedAverage(points []models.HydrationHistoryPoint, now time.Time) *int {
	end := now.UnixMilli()
	start := end - AverageWindow.Milliseconds()

	scores := make(stats.Float64Data, 0, len(points))
	for _, p := range points {
		if p.Timestamp == nil {
			continue
		}
		if ts := *p.Timestamp; ts < start || ts > end {
			continue
		}
		scores = append(scores, p.Score)
	}
	if len(scores) == 0 {
		return nil
	}

	mean, err := stats.Mean(scores)
	if err != nil {
		return nil
	}
	rounded, err := stats.Round(mean, 0)
	if err != nil {
		return nil
	}
	avg := int(rounded)
	return &avg
}
