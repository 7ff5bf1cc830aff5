package models

// Screen UI 页面
type Screen string

const (
	ScreenOnboarding      Screen = "ONBOARDING"
	ScreenLogin           Screen = "LOGIN"
	ScreenSignup          Screen = "SIGNUP"
	ScreenSummary         Screen = "SUMMARY"
	ScreenTongueAnalysis  Screen = "TONGUE_ANALYSIS"
	ScreenUrineAnalysis   Screen = "URINE_ANALYSIS"
	ScreenRecommendations Screen = "RECOMMENDATIONS"
	ScreenHistory         Screen = "HISTORY"
	ScreenReport          Screen = "REPORT"
	ScreenProfile         Screen = "PROFILE"
)

// TriggersSync 进入概览和历史页面时重新同步
func (s Screen) TriggersSync() bool {
	return s == ScreenSummary || s == ScreenHistory
}
