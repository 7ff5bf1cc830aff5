package reconciler

import (
	"regexp"
	"strings"
)

// KeyFormatVersion 报告存储 key 格式版本
// 存储侧改变 key 布局时，reportKeyPattern 必须同步修改并升级版本号
const KeyFormatVersion = 1

// PendingPrefix 本地占位报告的 ID 前缀
const PendingPrefix = "pending-"

// reportKeyPattern 匹配 .../<testId>/report/report.json
var reportKeyPattern = regexp.MustCompile(`(?:^|/)([^/]+)/report/report\.json$`)

// PendingID 根据 testId 生成占位报告 ID
func PendingID(testID string) string {
	return PendingPrefix + testID
}

// TestIDFromPendingID 从 pending-<testId> 中取出 testId
func TestIDFromPendingID(id string) (string, bool) {
	if !strings.HasPrefix(id, PendingPrefix) {
		return "", false
	}
	testID := strings.TrimPrefix(id, PendingPrefix)
	if testID == "" {
		return "", false
	}
	return testID, true
}

// TestIDFromKey 从报告 key 中提取生成它的 testId，key 不符合格式时返回 false
func TestIDFromKey(reportKey string) (string, bool) {
	m := reportKeyPattern.FindStringSubmatch(reportKey)
	if m == nil {
		return "", false
	}
	return m[1], true
}
