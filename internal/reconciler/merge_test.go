package reconciler

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lihe8811/AquaSense/internal/models"
)

func ready(id, key, createdAt string) models.ReportItem {
	return models.ReportItem{ID: id, CreatedAt: createdAt, Status: models.ReportStatusReady, ReportKey: key}
}

func pending(testID, createdAt string) models.ReportItem {
	return models.ReportItem{ID: PendingID(testID), CreatedAt: createdAt, Status: models.ReportStatusGenerating}
}

func ids(items []models.ReportItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestTestIDFromKey(t *testing.T) {
	cases := map[string]struct {
		want string
		ok   bool
	}{
		"reports/user-1/abc/report/report.json":  {"abc", true},
		"abc/report/report.json":                 {"abc", true},
		"x/y/z/report/report.json":               {"z", true},
		"reports/user-1/abc/report/summary.json": {"", false},
		"reports/user-1/abc/report.json":         {"", false},
		"/report/report.json":                    {"", false},
		"":                                       {"", false},
	}
	for key, tc := range cases {
		got, ok := TestIDFromKey(key)
		assert.Equal(t, tc.ok, ok, key)
		assert.Equal(t, tc.want, got, key)
	}
}

func TestTestIDFromPendingID(t *testing.T) {
	id, ok := TestIDFromPendingID("pending-abc")
	require.True(t, ok)
	assert.Equal(t, "abc", id)

	_, ok = TestIDFromPendingID("pending-")
	assert.False(t, ok)
	_, ok = TestIDFromPendingID("local-abc")
	assert.False(t, ok)
}

func TestMerge_ScenarioPromotion(t *testing.T) {
	authoritative := []models.ReportItem{
		ready("k1", "reports/u/abc/report/report.json", "1700000000"),
	}
	local := []models.ReportItem{
		{ID: "pending-abc", Status: models.ReportStatusGenerating, CreatedAt: "1700000000000"},
	}

	merged := Merge(authoritative, local)
	assert.Equal(t, []string{"k1"}, ids(merged))
}

func TestMerge_NonMatchingPendingSurvives(t *testing.T) {
	authoritative := []models.ReportItem{
		ready("k1", "reports/u/abc/report/report.json", "1700000000"),
	}
	local := []models.ReportItem{
		pending("xyz", "Mar 12, 2025"),
		pending("abc", "Mar 11, 2025"),
	}

	merged := Merge(authoritative, local)
	assert.Equal(t, []string{"pending-xyz", "k1"}, ids(merged))
}

func TestMerge_KeepsUnconventionalPendingAndDropsStaleReady(t *testing.T) {
	local := []models.ReportItem{
		{ID: "draft-1", Status: models.ReportStatusGenerating},
		pending("t1", ""),
		ready("old-ready", "reports/u/old/report/report.json", "1"),
	}
	authoritative := []models.ReportItem{
		ready("k2", "weird-key-without-pattern", "2"),
	}

	merged := Merge(authoritative, local)
	assert.Equal(t, []string{"draft-1", "pending-t1", "k2"}, ids(merged))
}

func TestMerge_DedupFirstOccurrenceWins(t *testing.T) {
	local := []models.ReportItem{
		{ID: "k1", Status: models.ReportStatusGenerating, CreatedAt: "local"},
	}
	authoritative := []models.ReportItem{
		ready("k1", "reports/u/abc/report/report.json", "remote"),
		ready("k2", "reports/u/def/report/report.json", "x"),
		ready("k2", "reports/u/def/report/report.json", "y"),
	}

	merged := Merge(authoritative, local)
	require.Len(t, merged, 2)
	assert.Equal(t, "local", merged[0].CreatedAt)
	assert.Equal(t, "x", merged[1].CreatedAt)
}

func TestMerge_NoDuplicateIDsRandomized(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	statuses := []models.ReportStatus{models.ReportStatusGenerating, models.ReportStatusReady}

	for round := 0; round < 200; round++ {
		var authoritative, local []models.ReportItem
		for i := 0; i < r.Intn(10); i++ {
			testID := fmt.Sprintf("t%d", r.Intn(5))
			key := fmt.Sprintf("reports/u/%s/report/report.json", testID)
			authoritative = append(authoritative, ready(key, key, "1"))
		}
		for i := 0; i < r.Intn(10); i++ {
			id := fmt.Sprintf("pending-t%d", r.Intn(5))
			if r.Intn(3) == 0 {
				id = fmt.Sprintf("reports/u/t%d/report/report.json", r.Intn(5))
			}
			local = append(local, models.ReportItem{ID: id, Status: statuses[r.Intn(2)]})
		}

		merged := Merge(authoritative, local)
		seen := map[string]bool{}
		for _, it := range merged {
			require.False(t, seen[it.ID], "duplicate id %s in round %d", it.ID, round)
			seen[it.ID] = true
		}
		for _, a := range authoritative {
			assert.True(t, seen[a.ID], "authoritative %s missing", a.ID)
		}
		confirmed := ConfirmedTestIDs(authoritative)
		for _, it := range merged {
			if testID, ok := TestIDFromPendingID(it.ID); ok && it.Status == models.ReportStatusGenerating {
				_, done := confirmed[testID]
				assert.False(t, done, "promoted placeholder %s still present", it.ID)
			}
		}
	}
}

func TestSortForDisplay(t *testing.T) {
	items := []models.ReportItem{
		ready("r-old", "a", "1700000000"),
		ready("r-iso", "b", "2024-01-01T00:00:00Z"),
		ready("r-bad-b", "c", "zzz"),
		ready("r-bad-a", "d", "aaa"),
		pending("p1", "Jan 2, 2020 3:04:05 PM"),
		ready("r-new", "e", "1800000000"),
		pending("p2", "not a date"),
	}

	sorted := SortForDisplay(items)
	assert.Equal(t, []string{
		"pending-p1",
		"pending-p2",
		"r-new",
		"r-iso",
		"r-old",
		"r-bad-b",
		"r-bad-a",
	}, ids(sorted))

	// 原切片不被修改
	assert.Equal(t, "r-old", items[0].ID)
}

func TestSortForDisplay_EqualTimestampsFallBackToRawString(t *testing.T) {
	items := []models.ReportItem{
		ready("b", "kb", "1700000000"),
		ready("a", "ka", "2023-11-14T22:13:20Z"),
		ready("c", "kc", "1700000000"),
	}

	sorted := SortForDisplay(items)
	// "2023..." > "1700..." 按字符串倒序；同字符串按 ID
	assert.Equal(t, []string{"a", "b", "c"}, ids(sorted))
}
