package service

import (
	"context"
	"errors"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/lihe8811/AquaSense/internal/client"
	"github.com/lihe8811/AquaSense/internal/models"
)

// fakeBackend 可编排的后端：按调用次数返回不同结果
type fakeBackend struct {
	mu sync.Mutex

	listFn     func(call int) ([]models.ReportItem, error)
	listCalls  int
	generateFn func(req client.GenerateReportRequest) error
	reports    map[string]*models.ReportData
	generated  []client.GenerateReportRequest
	token      string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{reports: make(map[string]*models.ReportData)}
}

func (f *fakeBackend) ListReports(ctx context.Context, userID string) ([]models.ReportItem, error) {
	f.mu.Lock()
	f.listCalls++
	call := f.listCalls
	fn := f.listFn
	f.mu.Unlock()

	if fn == nil {
		return nil, nil
	}
	return fn(call)
}

func (f *fakeBackend) GetReport(ctx context.Context, key string) (*models.ReportData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.reports[key]
	if !ok {
		return nil, errors.New("report not found")
	}
	return data, nil
}

func (f *fakeBackend) GenerateReport(ctx context.Context, req client.GenerateReportRequest) error {
	f.mu.Lock()
	f.generated = append(f.generated, req)
	fn := f.generateFn
	f.mu.Unlock()

	if fn == nil {
		return nil
	}
	return fn(req)
}

func (f *fakeBackend) SetToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
}

func (f *fakeBackend) setList(fn func(call int) ([]models.ReportItem, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listFn = fn
}

func (f *fakeBackend) currentToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

// fakeStateStore 内存实现
type fakeStateStore struct {
	mu        sync.Mutex
	session   *models.AuthSession
	survey    models.ProfileSurvey
	snapshots map[string]models.Snapshot
}

func newFakeStateStore() *fakeStateStore {
	return &fakeStateStore{snapshots: make(map[string]models.Snapshot)}
}

func (s *fakeStateStore) SaveSession(ctx context.Context, session models.AuthSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = &session
	return nil
}

func (s *fakeStateStore) ClearSession(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	return nil
}

func (s *fakeStateStore) LoadSession(ctx context.Context) (*models.AuthSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, nil
	}
	session := *s.session
	return &session, nil
}

func (s *fakeStateStore) LoadProfileSurvey(ctx context.Context) (models.ProfileSurvey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.survey, nil
}

func (s *fakeStateStore) SaveSnapshot(ctx context.Context, snap models.Snapshot) error {
	if snap.UserID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.UserID] = snap
	return nil
}

func (s *fakeStateStore) LoadSnapshot(ctx context.Context, userID string) (*models.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.snapshots[userID]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

// MockNotifier 快照推送 mock
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Publish(ctx context.Context, snap models.Snapshot) error {
	args := m.Called(ctx, snap)
	return args.Error(0)
}
