// Package service 同步编排器：持有报告列表与指标状态，响应会话变化、页面切换和生成请求
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lihe8811/AquaSense/internal/aggregator"
	"github.com/lihe8811/AquaSense/internal/client"
	"github.com/lihe8811/AquaSense/internal/models"
	"github.com/lihe8811/AquaSense/internal/reconciler"
)

// PlaceholderTimeLayout 占位报告 createdAt 使用的人类可读格式
const PlaceholderTimeLayout = "Jan 2, 2006 3:04:05 PM"

var (
	ErrNoSession        = errors.New("no active session")
	ErrNoScanInProgress = errors.New("no scan in progress")
	ErrUnknownScanKind  = errors.New("unknown scan kind")
)

// Backend 报告后端
type Backend interface {
	aggregator.ReportFetcher
	ListReports(ctx context.Context, userID string) ([]models.ReportItem, error)
	GenerateReport(ctx context.Context, req client.GenerateReportRequest) error
	SetToken(token string)
}

// StateStore 本地持久化状态
type StateStore interface {
	SaveSession(ctx context.Context, session models.AuthSession) error
	ClearSession(ctx context.Context) error
	LoadSession(ctx context.Context) (*models.AuthSession, error)
	LoadProfileSurvey(ctx context.Context) (models.ProfileSurvey, error)
	SaveSnapshot(ctx context.Context, snap models.Snapshot) error
	LoadSnapshot(ctx context.Context, userID string) (*models.Snapshot, error)
}

// Notifier 推送状态快照给 UI
type Notifier interface {
	Publish(ctx context.Context, snap models.Snapshot) error
}

// syncState 编排器独占的状态，只能在持有 mu 时读写
type syncState struct {
	session       *models.AuthSession
	epoch         uint64 // 会话每变化一次加一，旧会话的同步结果一律丢弃
	status        models.SyncStatus
	reports       []models.ReportItem
	history       []models.HydrationHistoryPoint
	weeklyAverage *int
	testSession   *models.TestSession
	version       uint64
	updatedAt     time.Time

	runSeq     uint64 // 最近一次启动的同步序号
	reportsSeq uint64 // 最近一次写入 reports 的同步序号
	metricsSeq uint64 // 最近一次写入指标（成功或失败）的同步序号
}

// Orchestrator 同步编排器
type Orchestrator struct {
	backend  Backend
	history  *aggregator.HistoryAggregator
	store    StateStore
	notifier Notifier
	logger   *zap.Logger

	now       func() time.Time
	newTestID func() string

	mu    sync.Mutex
	state syncState

	wg sync.WaitGroup
}

// NewOrchestrator 创建同步编排器
func NewOrchestrator(backend Backend, store StateStore, notifier Notifier, logger *zap.Logger) *Orchestrator {
	o := &Orchestrator{
		backend:   backend,
		history:   aggregator.NewHistoryAggregator(backend, logger),
		store:     store,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
		newTestID: uuid.NewString,
	}
	o.state = syncState{status: models.SyncIdle}
	return o
}

// Snapshot 返回当前状态的一致副本
func (o *Orchestrator) Snapshot() models.Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// Wait 等待后台生成和同步任务结束（用于优雅退出和测试）
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Restore 启动时恢复已保存的会话；没有会话时保持 idle
// 仍在生成中的占位报告从上次的快照中恢复，其余数据重新同步
func (o *Orchestrator) Restore(ctx context.Context) error {
	session, err := o.store.LoadSession(ctx)
	if err != nil {
		return err
	}
	if session == nil {
		o.logger.Info("No stored session, staying idle")
		return nil
	}

	var pending []models.ReportItem
	if snap, err := o.store.LoadSnapshot(ctx, session.UserID()); err != nil {
		o.logger.Warn("Failed to load last snapshot", zap.Error(err))
	} else if snap != nil {
		pending = reconciler.StillPending(snap.Reports, nil)
	}

	o.logger.Info("Restoring stored session",
		zap.String("user_id", session.UserID()),
		zap.Int("pending_count", len(pending)),
	)
	o.acquire(ctx, *session, pending)
	_ = o.sync(ctx, "session_restored")
	return nil
}

// SessionAcquired 登录或恢复会话：重置状态并同步，同步结束后返回
func (o *Orchestrator) SessionAcquired(ctx context.Context, session models.AuthSession) {
	o.saveSession(ctx, session)
	o.acquire(ctx, session, nil)
	_ = o.sync(ctx, "session_acquired")
}

// SessionAcquiredAsync 与 SessionAcquired 相同，但状态重置后立即返回，同步在后台执行
func (o *Orchestrator) SessionAcquiredAsync(ctx context.Context, session models.AuthSession) {
	o.saveSession(ctx, session)
	o.acquire(ctx, session, nil)
	_ = o.syncInBackground(ctx, "session_acquired")
}

func (o *Orchestrator) saveSession(ctx context.Context, session models.AuthSession) {
	if err := o.store.SaveSession(ctx, session); err != nil {
		o.logger.Warn("Failed to persist session", zap.Error(err))
	}
}

// acquire 切换到新会话：丢弃旧状态，只保留 pending 占位报告
func (o *Orchestrator) acquire(ctx context.Context, session models.AuthSession, pending []models.ReportItem) {
	o.mu.Lock()
	o.resetLocked()
	o.state.session = &session
	o.state.reports = reconciler.SortForDisplay(pending)
	o.backend.SetToken(session.Token)
	o.bumpLocked()
	snap := o.snapshotLocked()
	o.mu.Unlock()

	o.logger.Info("Session acquired", zap.String("user_id", session.UserID()))
	o.emit(ctx, snap)
}

// SessionCleared 登出：清空报告与指标，回到 idle
func (o *Orchestrator) SessionCleared(ctx context.Context) {
	if err := o.store.ClearSession(ctx); err != nil {
		o.logger.Warn("Failed to clear stored session", zap.Error(err))
	}

	o.mu.Lock()
	o.resetLocked()
	o.backend.SetToken("")
	o.bumpLocked()
	snap := o.snapshotLocked()
	o.mu.Unlock()

	o.logger.Info("Session cleared")
	o.publish(ctx, snap)
}

// Refresh 重新进入概览/历史页面时调用：无论当前状态如何都重新同步
func (o *Orchestrator) Refresh(ctx context.Context) error {
	return o.sync(ctx, "refresh")
}

// RefreshAsync 同 Refresh，但在 syncing 状态发布后立即返回
// 没有会话时同步返回 ErrNoSession；拉取失败只反映在状态里
func (o *Orchestrator) RefreshAsync(ctx context.Context) error {
	return o.syncInBackground(ctx, "refresh")
}

// StartScan 开始新的扫描流程，生成新的 testId
func (o *Orchestrator) StartScan() (models.TestSession, error) {
	o.mu.Lock()
	if o.state.session == nil {
		o.mu.Unlock()
		return models.TestSession{}, ErrNoSession
	}
	ts := models.TestSession{TestID: o.newTestID()}
	o.state.testSession = &ts
	o.bumpLocked()
	snap := o.snapshotLocked()
	o.mu.Unlock()

	o.logger.Info("Scan started", zap.String("test_id", ts.TestID))
	o.emit(context.Background(), snap)
	return ts, nil
}

// MarkScanned 标记某项扫描已完成
func (o *Orchestrator) MarkScanned(kind models.ScanKind) (models.TestSession, error) {
	o.mu.Lock()
	ts, err := o.markScannedLocked(kind)
	if err != nil {
		o.mu.Unlock()
		return models.TestSession{}, err
	}
	snap := o.snapshotLocked()
	o.mu.Unlock()

	o.emit(context.Background(), snap)
	return ts, nil
}

func (o *Orchestrator) markScannedLocked(kind models.ScanKind) (models.TestSession, error) {
	if o.state.session == nil {
		return models.TestSession{}, ErrNoSession
	}
	if o.state.testSession == nil {
		return models.TestSession{}, ErrNoScanInProgress
	}

	ts := *o.state.testSession
	switch kind {
	case models.ScanTongue:
		ts.ScanStatus.Tongue = true
	case models.ScanUrine:
		ts.ScanStatus.Urine = true
	default:
		return models.TestSession{}, ErrUnknownScanKind
	}
	o.state.testSession = &ts
	o.bumpLocked()
	return ts, nil
}

// RequestGeneration 立即插入占位报告，然后在后台调用生成接口并重新同步
// 生成失败时占位报告保留（显示为仍在生成），由下一次同步或用户重试处理
func (o *Orchestrator) RequestGeneration(ctx context.Context) (models.ReportItem, error) {
	o.mu.Lock()
	if o.state.session == nil {
		o.mu.Unlock()
		return models.ReportItem{}, ErrNoSession
	}
	if o.state.testSession == nil {
		o.state.testSession = &models.TestSession{TestID: o.newTestID()}
	}
	userID := o.state.session.UserID()
	testID := o.state.testSession.TestID
	placeholder := models.ReportItem{
		ID:        reconciler.PendingID(testID),
		CreatedAt: o.now().Format(PlaceholderTimeLayout),
		Status:    models.ReportStatusGenerating,
	}
	if !containsID(o.state.reports, placeholder.ID) {
		o.state.reports = reconciler.SortForDisplay(append([]models.ReportItem{placeholder}, o.state.reports...))
	}
	o.bumpLocked()
	snap := o.snapshotLocked()
	o.mu.Unlock()

	o.logger.Info("Report generation requested",
		zap.String("user_id", userID),
		zap.String("test_id", testID),
	)
	o.emit(ctx, snap)

	bg := context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.generate(bg, userID, testID)
	}()

	return placeholder, nil
}

func (o *Orchestrator) generate(ctx context.Context, userID, testID string) {
	survey, err := o.store.LoadProfileSurvey(ctx)
	if err != nil {
		o.logger.Warn("Failed to load profile survey, generating without it", zap.Error(err))
	}

	err = o.backend.GenerateReport(ctx, client.GenerateReportRequest{
		UserID:   userID,
		TestID:   testID,
		Age:      survey.Age,
		Gender:   survey.Gender,
		HeightCm: survey.HeightCm,
		WeightKg: survey.WeightKg,
	})
	if err != nil {
		fields := []zap.Field{zap.String("test_id", testID), zap.Error(err)}
		var genErr *client.GenerationError
		if errors.As(err, &genErr) && genErr.StatusCode != 0 {
			fields = append(fields, zap.Int("status_code", genErr.StatusCode))
		}
		o.logger.Warn("Report generation failed, keeping placeholder", fields...)
	}

	_ = o.sync(ctx, "generation")
}

// syncRun 一次同步启动时捕获的序号和会话代数
type syncRun struct {
	seq    uint64
	epoch  uint64
	userID string
	logger *zap.Logger
}

// sync 拉取 → 合并 → 聚合 → 计算周平均
// 可重入：多个同步可以重叠执行，结果按启动顺序生效（后启动的覆盖先启动的），不会混合
func (o *Orchestrator) sync(ctx context.Context, trigger string) error {
	run, err := o.beginSync(ctx, trigger)
	if err != nil {
		return err
	}
	return o.runSync(ctx, run)
}

// syncInBackground 在调用方 goroutine 里分配序号并发布 syncing，其余步骤交给后台
// 因此后续的迁移（如插入占位报告）总是排在这次同步之后
func (o *Orchestrator) syncInBackground(ctx context.Context, trigger string) error {
	run, err := o.beginSync(ctx, trigger)
	if err != nil {
		return err
	}

	bg := context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		_ = o.runSync(bg, run)
	}()
	return nil
}

func (o *Orchestrator) beginSync(ctx context.Context, trigger string) (syncRun, error) {
	o.mu.Lock()
	if o.state.session == nil {
		o.mu.Unlock()
		return syncRun{}, ErrNoSession
	}
	o.state.runSeq++
	run := syncRun{
		seq:    o.state.runSeq,
		epoch:  o.state.epoch,
		userID: o.state.session.UserID(),
	}
	o.state.status = models.SyncSyncing
	o.bumpLocked()
	snap := o.snapshotLocked()
	o.mu.Unlock()
	o.publish(ctx, snap)

	run.logger = o.logger.With(
		zap.String("trigger", trigger),
		zap.String("user_id", run.userID),
		zap.Uint64("run", run.seq),
	)
	run.logger.Debug("Sync started")
	return run, nil
}

func (o *Orchestrator) runSync(ctx context.Context, run syncRun) error {
	seq, epoch, logger := run.seq, run.epoch, run.logger

	authoritative, err := o.backend.ListReports(ctx, run.userID)
	if err != nil {
		logger.Error("Failed to fetch report list", zap.Error(err))
		o.applyFailure(ctx, seq, epoch)
		return err
	}

	reports, ok := o.applyReports(ctx, seq, epoch, authoritative, logger)
	if !ok {
		logger.Debug("Sync superseded before merge")
		return nil
	}

	points := o.history.Aggregate(ctx, reports)
	avg := aggregator.WindowedAverage(points, o.now())
	if !o.applyMetrics(ctx, seq, epoch, points, avg) {
		logger.Debug("Sync superseded before metrics")
		return nil
	}

	logger.Info("Sync completed",
		zap.Int("report_count", len(reports)),
		zap.Int("history_points", len(points)),
		zap.Bool("has_weekly_average", avg != nil),
	)
	return nil
}

// applyReports 在锁内用当前本地状态合并权威列表
func (o *Orchestrator) applyReports(ctx context.Context, seq, epoch uint64, authoritative []models.ReportItem, logger *zap.Logger) ([]models.ReportItem, bool) {
	for _, item := range authoritative {
		if _, ok := reconciler.TestIDFromKey(item.ReportKey); !ok {
			logger.Debug("Report key does not match key format",
				zap.String("report_key", item.ReportKey),
				zap.Int("key_format_version", reconciler.KeyFormatVersion),
			)
		}
	}

	o.mu.Lock()
	if epoch != o.state.epoch || seq < o.state.reportsSeq || seq < o.state.metricsSeq {
		o.mu.Unlock()
		return nil, false
	}
	o.state.reports = reconciler.SortForDisplay(reconciler.Merge(authoritative, o.state.reports))
	o.state.reportsSeq = seq
	o.bumpLocked()
	reports := append([]models.ReportItem(nil), o.state.reports...)
	snap := o.snapshotLocked()
	o.mu.Unlock()

	o.emit(ctx, snap)
	return reports, true
}

// applyMetrics 写入历史样本与周平均；被更新的同步取代时丢弃
func (o *Orchestrator) applyMetrics(ctx context.Context, seq, epoch uint64, points []models.HydrationHistoryPoint, avg *int) bool {
	o.mu.Lock()
	if epoch != o.state.epoch || seq < o.state.reportsSeq || seq < o.state.metricsSeq {
		o.mu.Unlock()
		return false
	}
	o.state.history = points
	o.state.weeklyAverage = avg
	o.state.metricsSeq = seq
	if seq == o.state.runSeq {
		o.state.status = models.SyncSynced
	}
	o.bumpLocked()
	snap := o.snapshotLocked()
	o.mu.Unlock()

	o.emit(ctx, snap)
	return true
}

// applyFailure 拉取失败：报告列表保持不变，周平均清空
func (o *Orchestrator) applyFailure(ctx context.Context, seq, epoch uint64) {
	o.mu.Lock()
	if epoch != o.state.epoch || seq < o.state.reportsSeq || seq < o.state.metricsSeq {
		o.mu.Unlock()
		return
	}
	o.state.weeklyAverage = nil
	o.state.metricsSeq = seq
	if seq == o.state.runSeq {
		o.state.status = models.SyncFailed
	}
	o.bumpLocked()
	snap := o.snapshotLocked()
	o.mu.Unlock()

	o.emit(ctx, snap)
}

func containsID(items []models.ReportItem, id string) bool {
	for _, item := range items {
		if item.ID == id {
			return true
		}
	}
	return false
}

func (o *Orchestrator) resetLocked() {
	o.state = syncState{
		epoch:   o.state.epoch + 1,
		status:  models.SyncIdle,
		version: o.state.version,
	}
}

func (o *Orchestrator) bumpLocked() {
	o.state.version++
	o.state.updatedAt = o.now()
}

func (o *Orchestrator) snapshotLocked() models.Snapshot {
	snap := models.Snapshot{
		Status:    o.state.status,
		Reports:   append([]models.ReportItem{}, o.state.reports...),
		History:   append([]models.HydrationHistoryPoint{}, o.state.history...),
		Version:   o.state.version,
		UpdatedAt: o.state.updatedAt,
	}
	if o.state.session != nil {
		snap.UserID = o.state.session.UserID()
	}
	if o.state.weeklyAverage != nil {
		avg := *o.state.weeklyAverage
		snap.WeeklyAverage = &avg
	}
	if o.state.testSession != nil {
		ts := *o.state.testSession
		snap.TestSession = &ts
	}
	return snap
}

// emit 持久化并推送快照
func (o *Orchestrator) emit(ctx context.Context, snap models.Snapshot) {
	if err := o.store.SaveSnapshot(ctx, snap); err != nil {
		o.logger.Warn("Failed to persist snapshot", zap.Error(err))
	}
	o.publish(ctx, snap)
}

func (o *Orchestrator) publish(ctx context.Context, snap models.Snapshot) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Publish(ctx, snap); err != nil {
		o.logger.Warn("Failed to publish snapshot", zap.Error(err))
	}
}
