// Package reconciler 合并本地占位报告与后端权威列表
package reconciler

import (
	"sort"
	"strings"

	"github.com/lihe8811/AquaSense/internal/models"
	"github.com/lihe8811/AquaSense/internal/timeutil"
)

// ConfirmedTestIDs 权威列表中已经 ready 的 testId 集合
func ConfirmedTestIDs(authoritative []models.ReportItem) map[string]struct{} {
	confirmed := make(map[string]struct{})
	for _, item := range authoritative {
		if !item.IsReady() || item.ReportKey == "" {
			continue
		}
		if testID, ok := TestIDFromKey(item.ReportKey); ok {
			confirmed[testID] = struct{}{}
		}
	}
	return confirmed
}

// StillPending 从本地列表中挑出仍未确认的占位报告（保持原有相对顺序）
func StillPending(local []models.ReportItem, confirmed map[string]struct{}) []models.ReportItem {
	pending := make([]models.ReportItem, 0, len(local))
	for _, item := range local {
		if item.Status != models.ReportStatusGenerating {
			continue
		}
		if testID, ok := TestIDFromPendingID(item.ID); ok {
			if _, done := confirmed[testID]; done {
				continue
			}
		}
		pending = append(pending, item)
	}
	return pending
}

// Merge 合并权威列表与本地列表
//  1. 从权威列表中提取已确认的 testId
//  2. 本地只保留仍在生成中的占位报告
//  3. 占位报告在前，权威列表在后
//  4. 按 ID 去重，保留第一次出现
//
// 返回值中不会有重复 ID；顺序不是展示顺序，展示前调用 SortForDisplay。
func Merge(authoritative, local []models.ReportItem) []models.ReportItem {
	pending := StillPending(local, ConfirmedTestIDs(authoritative))

	merged := make([]models.ReportItem, 0, len(pending)+len(authoritative))
	seen := make(map[string]struct{}, len(pending)+len(authoritative))
	for _, list := range [][]models.ReportItem{pending, authoritative} {
		for _, item := range list {
			if _, dup := seen[item.ID]; dup {
				continue
			}
			seen[item.ID] = struct{}{}
			merged = append(merged, item)
		}
	}
	return merged
}

// SortForDisplay 返回排序后的副本：generating 在前，同状态按时间倒序
// 时间相同或都无法解析时按原始 createdAt 字符串倒序，最后按 ID，保证结果确定
func SortForDisplay(items []models.ReportItem) []models.ReportItem {
	type keyed struct {
		item models.ReportItem
		ms   int64
		ok   bool
	}

	rows := make([]keyed, len(items))
	for i, item := range items {
		ms, ok := timeutil.Normalize(item.CreatedAt)
		rows[i] = keyed{item: item, ms: ms, ok: ok}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if ra, rb := statusRank(a.item.Status), statusRank(b.item.Status); ra != rb {
			return ra < rb
		}
		if a.ok != b.ok {
			return a.ok
		}
		if a.ok && a.ms != b.ms {
			return a.ms > b.ms
		}
		if c := strings.Compare(a.item.CreatedAt, b.item.CreatedAt); c != 0 {
			return c > 0
		}
		return a.item.ID < b.item.ID
	})

	out := make([]models.ReportItem, len(rows))
	for i, r := range rows {
		out[i] = r.item
	}
	return out
}

func statusRank(s models.ReportStatus) int {
	if s == models.ReportStatusGenerating {
		return 0
	}
	return 1
}
