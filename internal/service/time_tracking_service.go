package service

import (
	"context"
	"math"
	"strings"
	"time"

	"learnhub_backend/internal/config"
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/repository"
	"learnhub_backend/internal/util"
	"learnhub_backend/pkg/logger"
	"learnhub_backend/pkg/monitoring"
	"learnhub_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type TimeTrackingService struct {
	DB         *gorm.DB
	Repo       *repository.TimeTrackingRepository
	Content    ContentResolver
	Config     config.TimeTrackingConfig
	MaxRetries int

	Now func() time.Time
}

func NewTimeTrackingService(db *gorm.DB, repo *repository.TimeTrackingRepository, content ContentResolver, cfg config.TimeTrackingConfig, maxRetries int) *TimeTrackingService {
	return &TimeTrackingService{
		DB:         db,
		Repo:       repo,
		Content:    content,
		Config:     cfg,
		MaxRetries: maxRetries,
		Now:        func() time.Time { return time.Now().UTC() },
	}
}

func validSeconds(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// UpdateSessionTime 当前会话时长是绝对值，覆盖而不是累加
func (s *TimeTrackingService) UpdateSessionTime(ctx context.Context, userID uint, ref model.ContentRef, seconds float64) (*model.TimeSpent, error) {
	if userID == 0 {
		return nil, errLoginRequired
	}
	if !validSeconds(seconds) {
		return nil, util.InvalidInput("time_seconds must be a non-negative number")
	}
	if _, err := resolveFor(ctx, s.Content, ref, CapTimeTracking); err != nil {
		return nil, err
	}

	var out *model.TimeSpent
	err := repository.Transact(ctx, s.DB, s.MaxRetries, func(tx *gorm.DB) error {
		repo := s.Repo.WithTx(tx)
		ts, err := repo.GetOrCreateForUpdate(userID, ref)
		if err != nil {
			return err
		}
		ts.CurrentSessionSeconds = seconds
		if ts.LastSessionStart == nil {
			now := s.Now()
			ts.LastSessionStart = &now
		}
		out = ts
		return repo.SaveTimeSpent(ts)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

type SaveSessionInput struct {
	SessionType model.SessionType
	Notes       string
}

func (in *SaveSessionInput) normalize() error {
	if in.SessionType == "" {
		in.SessionType = model.SessionStudy
	}
	if !in.SessionType.Valid() {
		return util.InvalidInput("unknown session type %q", in.SessionType)
	}
	in.Notes = strings.TrimSpace(in.Notes)
	return nil
}

// SaveAndResetSession 当前会话并入总时长并生成历史记录；当前为 0 时返回 false 且不做任何修改
func (s *TimeTrackingService) SaveAndResetSession(ctx context.Context, userID uint, ref model.ContentRef, in SaveSessionInput) (bool, *model.TimeSpent, error) {
	if userID == 0 {
		return false, nil, errLoginRequired
	}
	if err := in.normalize(); err != nil {
		return false, nil, err
	}
	if _, err := resolveFor(ctx, s.Content, ref, CapTimeTracking); err != nil {
		return false, nil, err
	}

	var (
		saved bool
		out   *model.TimeSpent
	)
	err := repository.Transact(ctx, s.DB, s.MaxRetries, func(tx *gorm.DB) error {
		repo := s.Repo.WithTx(tx)
		ts, err := repo.LockTimeSpent(userID, ref)
		if err != nil {
			return err
		}
		if ts == nil {
			return util.NotFoundErr("no time tracking data found")
		}
		out = ts
		saved, err = s.closeSession(repo, ts, in)
		return err
	})
	if err != nil {
		return false, nil, err
	}
	return saved, out, nil
}

// closeSession 调用方必须已持有 ts 的行锁
func (s *TimeTrackingService) closeSession(repo *repository.TimeTrackingRepository, ts *model.TimeSpent, in SaveSessionInput) (bool, error) {
	current := ts.CurrentSessionSeconds
	if current <= 0 {
		return false, nil
	}

	now := s.Now()
	started := now.Add(-secondsDuration(current))
	if ts.LastSessionStart != nil {
		started = *ts.LastSessionStart
	}

	session := &model.TimeSession{
		UUIDBase:       model.UUIDBase{CreatedAt: now},
		UserID:         ts.UserID,
		ContentKind:    ts.ContentKind,
		ContentID:      ts.ContentID,
		SessionSeconds: current,
		StartedAt:      started,
		EndedAt:        now,
		SessionType:    in.SessionType,
		Notes:          in.Notes,
	}
	if err := repo.CreateSession(session); err != nil {
		return false, err
	}

	ts.TotalSeconds += current
	ts.CurrentSessionSeconds = 0
	ts.LastSessionStart = nil
	if err := repo.SaveTimeSpent(ts); err != nil {
		return false, err
	}

	monitoring.RecordSessionSeconds(string(ts.ContentKind), current)
	logger.Log.Info("session saved",
		zap.Uint("userID", ts.UserID),
		zap.String("ref", model.ContentRef{Kind: ts.ContentKind, ID: ts.ContentID}.String()),
		zap.Float64("seconds", current),
		zap.String("type", string(in.SessionType)))
	return true, nil
}

type CompletedSessionInput struct {
	DurationSeconds float64
	SessionType     model.SessionType
	Notes           string
}

// SaveCompletedSession 客户端自行计时的完整会话，直接计入总时长
func (s *TimeTrackingService) SaveCompletedSession(ctx context.Context, userID uint, ref model.ContentRef, in CompletedSessionInput) (*model.TimeSession, error) {
	if userID == 0 {
		return nil, errLoginRequired
	}
	if !validSeconds(in.DurationSeconds) || in.DurationSeconds == 0 {
		return nil, util.InvalidInput("duration_seconds must be a positive number")
	}
	norm := SaveSessionInput{SessionType: in.SessionType, Notes: in.Notes}
	if err := norm.normalize(); err != nil {
		return nil, err
	}
	if _, err := resolveFor(ctx, s.Content, ref, CapTimeTracking); err != nil {
		return nil, err
	}

	ctx, span := tracing.Start(ctx, "time.SaveCompletedSession", attribute.String("ref", ref.String()))
	var session *model.TimeSession
	err := repository.Transact(ctx, s.DB, s.MaxRetries, func(tx *gorm.DB) error {
		repo := s.Repo.WithTx(tx)
		ts, err := repo.GetOrCreateForUpdate(userID, ref)
		if err != nil {
			return err
		}

		now := s.Now()
		session = &model.TimeSession{
			UUIDBase:       model.UUIDBase{CreatedAt: now},
			UserID:         userID,
			ContentKind:    ref.Kind,
			ContentID:      ref.ID,
			SessionSeconds: in.DurationSeconds,
			StartedAt:      now.Add(-secondsDuration(in.DurationSeconds)),
			EndedAt:        now,
			SessionType:    norm.SessionType,
			Notes:          norm.Notes,
		}
		if err := repo.CreateSession(session); err != nil {
			return err
		}
		ts.TotalSeconds += in.DurationSeconds
		return repo.SaveTimeSpent(ts)
	})
	tracing.End(span, err)
	if err != nil {
		return nil, err
	}

	monitoring.RecordSessionSeconds(string(ref.Kind), in.DurationSeconds)
	return session, nil
}

// SessionHistory 最新的在前，limit <= 0 时使用配置上限
func (s *TimeTrackingService) SessionHistory(ctx context.Context, userID uint, ref model.ContentRef, limit int) ([]model.TimeSession, error) {
	if userID == 0 {
		return nil, errLoginRequired
	}
	if limit <= 0 {
		limit = s.Config.HistoryLimit
	}
	if limit <= 0 {
		limit = util.DefaultHistoryLimit
	}
	if limit > util.MaxHistoryLimit {
		limit = util.MaxHistoryLimit
	}
	if _, err := resolveFor(ctx, s.Content, ref, CapTimeTracking); err != nil {
		return nil, err
	}
	return s.Repo.WithTx(s.DB.WithContext(ctx)).ListSessions(userID, ref, limit)
}

// CurrentTime 没有记录时返回零值行
func (s *TimeTrackingService) CurrentTime(ctx context.Context, userID uint, ref model.ContentRef) (*model.TimeSpent, error) {
	if userID == 0 {
		return nil, errLoginRequired
	}
	if _, err := resolveFor(ctx, s.Content, ref, CapTimeTracking); err != nil {
		return nil, err
	}
	ts, err := s.Repo.WithTx(s.DB.WithContext(ctx)).FindTimeSpent(userID, ref)
	if err != nil {
		return nil, err
	}
	if ts == nil {
		ts = &model.TimeSpent{UserID: userID, ContentKind: ref.Kind, ContentID: ref.ID}
	}
	return ts, nil
}

func (s *TimeTrackingService) DeleteSession(ctx context.Context, userID uint, ref model.ContentRef, sessionID string) error {
	if userID == 0 {
		return errLoginRequired
	}
	if strings.TrimSpace(sessionID) == "" {
		return util.InvalidInput("session id is required")
	}
	if _, err := resolveFor(ctx, s.Content, ref, CapTimeTracking); err != nil {
		return err
	}
	deleted, err := s.Repo.WithTx(s.DB.WithContext(ctx)).DeleteSession(userID, ref, sessionID)
	if err != nil {
		return err
	}
	if !deleted {
		return util.NotFoundErr("session not found")
	}
	return nil
}

// CloseStaleSessions 关闭长时间未更新的会话，返回关闭数量
func (s *TimeTrackingService) CloseStaleSessions(ctx context.Context, batch int) (int, error) {
	staleAfter := s.Config.StaleAfter
	if staleAfter <= 0 {
		staleAfter = config.DefaultTimeTracking().StaleAfter
	}
	if batch <= 0 {
		batch = 100
	}
	cutoff := s.Now().Add(-staleAfter)

	rows, err := s.Repo.WithTx(s.DB.WithContext(ctx)).FindStale(cutoff, batch)
	if err != nil {
		return 0, err
	}

	closed := 0
	in := SaveSessionInput{SessionType: model.SessionStudy, Notes: "auto-closed"}
	for _, row := range rows {
		id := row.ID
		var ok bool
		err := repository.Transact(ctx, s.DB, s.MaxRetries, func(tx *gorm.DB) error {
			repo := s.Repo.WithTx(tx)
			ts, err := repo.LockTimeSpentByID(id)
			if err != nil || ts == nil {
				return err
			}
			// 加锁后再确认一次，期间可能已被用户保存
			if ts.CurrentSessionSeconds <= 0 || !ts.UpdatedAt.Before(cutoff) {
				return nil
			}
			ok, err = s.closeSession(repo, ts, in)
			return err
		})
		if err != nil {
			logger.Log.Error("failed to close stale session", zap.Uint("timeSpentID", id), zap.Error(err))
			continue
		}
		if ok {
			closed++
		}
	}
	return closed, nil
}

func secondsDuration(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}
