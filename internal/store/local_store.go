// Package store 持久化本地状态：登录会话、用户问卷和最近一次同步快照
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lihe8811/AquaSense/internal/models"
)

const (
	SessionKey        = "aquasense:session"
	ProfileSurveyKey  = "aquasense:profile-survey"
	snapshotKeyPrefix = "aquasense:snapshot:"
)

// LocalStore 本地状态（会话与问卷的 schema 由外部认证/问卷模块定义，这里只做 JSON 透传）
type LocalStore struct {
	blobs       BlobStore
	snapshotTTL time.Duration
	logger      *zap.Logger
}

// NewLocalStore 创建本地状态存储
func NewLocalStore(blobs BlobStore, snapshotTTL time.Duration, logger *zap.Logger) *LocalStore {
	return &LocalStore{
		blobs:       blobs,
		snapshotTTL: snapshotTTL,
		logger:      logger,
	}
}

// LoadSession 读取会话，不存在时返回 nil, nil
// 内容损坏时同样视为没有会话
func (s *LocalStore) LoadSession(ctx context.Context) (*models.AuthSession, error) {
	var session models.AuthSession
	found, err := s.getJSON(ctx, SessionKey, &session)
	if err != nil || !found {
		return nil, err
	}
	if session.Token == "" {
		return nil, nil
	}
	return &session, nil
}

// SaveSession 保存会话（不过期，登出时删除）
func (s *LocalStore) SaveSession(ctx context.Context, session models.AuthSession) error {
	return s.setJSON(ctx, SessionKey, session, 0)
}

// ClearSession 删除会话
func (s *LocalStore) ClearSession(ctx context.Context) error {
	if err := s.blobs.DeleteBlobs(ctx, SessionKey); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// LoadProfileSurvey 读取问卷，不存在时返回空问卷
func (s *LocalStore) LoadProfileSurvey(ctx context.Context) (models.ProfileSurvey, error) {
	var survey models.ProfileSurvey
	if _, err := s.getJSON(ctx, ProfileSurveyKey, &survey); err != nil {
		return models.ProfileSurvey{}, err
	}
	return survey, nil
}

// SaveProfileSurvey 保存问卷
func (s *LocalStore) SaveProfileSurvey(ctx context.Context, survey models.ProfileSurvey) error {
	return s.setJSON(ctx, ProfileSurveyKey, survey, 0)
}

// SaveSnapshot 保存最近一次同步快照
func (s *LocalStore) SaveSnapshot(ctx context.Context, snap models.Snapshot) error {
	if snap.UserID == "" {
		return nil
	}
	return s.setJSON(ctx, snapshotKeyPrefix+snap.UserID, snap, s.snapshotTTL)
}

// LoadSnapshot 读取用户最近一次快照，不存在时返回 nil, nil
func (s *LocalStore) LoadSnapshot(ctx context.Context, userID string) (*models.Snapshot, error) {
	var snap models.Snapshot
	found, err := s.getJSON(ctx, snapshotKeyPrefix+userID, &snap)
	if err != nil || !found {
		return nil, err
	}
	return &snap, nil
}

func (s *LocalStore) getJSON(ctx context.Context, key string, dst any) (bool, error) {
	blob, err := s.blobs.ReadBlob(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(blob, dst); err != nil {
		s.logger.Warn("Ignoring corrupt local entry",
			zap.String("key", key),
			zap.Error(err),
		)
		return false, nil
	}
	return true, nil
}

func (s *LocalStore) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := s.blobs.WriteBlob(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	s.logger.Debug("Updated local entry", zap.String("key", key))
	return nil
}
