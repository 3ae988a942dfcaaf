package service

import (
	"context"
	"math"
	"sync"
	"time"

	"learnhub_backend/internal/config"
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/repository"
	"learnhub_backend/internal/util"
	"learnhub_backend/pkg/logger"
	"learnhub_backend/pkg/tracing"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ProgressService struct {
	DB           *gorm.DB
	Paths        *repository.LearningPathRepository
	Progress     *repository.ProgressRepository
	Achievements *repository.AchievementRepository
	Quizzes      *repository.QuizRepository

	Now func() time.Time

	mu      sync.RWMutex
	rewards config.ProgressConfig
}

func NewProgressService(
	db *gorm.DB,
	paths *repository.LearningPathRepository,
	progress *repository.ProgressRepository,
	achievements *repository.AchievementRepository,
	quizzes *repository.QuizRepository,
	rewards config.ProgressConfig,
) *ProgressService {
	return &ProgressService{
		DB:           db,
		Paths:        paths,
		Progress:     progress,
		Achievements: achievements,
		Quizzes:      quizzes,
		Now:          func() time.Time { return time.Now().UTC() },
		rewards:      rewards,
	}
}

// SetRewards 配置热更新时调用
func (s *ProgressService) SetRewards(cfg config.ProgressConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rewards = cfg
	logger.Log.Info("progress rewards reloaded",
		zap.Int("videoXP", cfg.VideoXP),
		zap.Int("chapterXP", cfg.ChapterXP),
		zap.Int("quizPassXP", cfg.QuizPassXP))
}

func (s *ProgressService) Rewards() config.ProgressConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rewards
}

func (s *ProgressService) transact(ctx context.Context, userID uint, fn func(pt *progressTx) error) error {
	rewards := s.Rewards()
	return repository.Transact(ctx, s.DB, rewards.MaxRetries, func(tx *gorm.DB) error {
		return fn(&progressTx{
			paths:        s.Paths.WithTx(tx),
			progress:     s.Progress.WithTx(tx),
			achievements: s.Achievements.WithTx(tx),
			quizzes:      s.Quizzes.WithTx(tx),
			userID:       userID,
			now:          s.Now(),
			rewards:      rewards,
		})
	})
}

type PathStartResult struct {
	Progress         *model.UserLearningPathProgress `json:"progress"`
	Created          bool                            `json:"created"`
	CurrentChapterID *uint                           `json:"currentChapterId"`
}

// StartOrResume 首次开始时为第一章建立进度
func (s *ProgressService) StartOrResume(ctx context.Context, userID, pathID uint) (*PathStartResult, error) {
	if userID == 0 {
		return nil, errLoginRequired
	}
	path, err := s.Paths.WithTx(s.DB.WithContext(ctx)).FindPath(pathID)
	if err != nil {
		return nil, err
	}
	if path == nil || !path.IsActive {
		return nil, util.NotFoundErr("learning path %d not found", pathID)
	}

	ctx, span := tracing.Start(ctx, "progress.StartOrResume", attribute.Int64("pathID", int64(pathID)))
	result := &PathStartResult{}
	err = s.transact(ctx, userID, func(pt *progressTx) error {
		p, created, err := pt.progress.GetOrCreatePathProgress(userID, pathID, pt.now)
		if err != nil {
			return err
		}
		result.Progress, result.Created = p, created

		first, err := pt.paths.FirstChapter(pathID)
		if err != nil {
			return err
		}
		if first != nil {
			if created {
				if _, _, err := pt.progress.GetOrCreateChapterProgress(userID, first.ID, p.ID, pt.now); err != nil {
					return err
				}
			}
			result.CurrentChapterID = &first.ID
		}

		if err := pt.touchStreak(p); err != nil {
			return err
		}
		p.LastActivity = pt.now
		return pt.progress.SavePathProgress(p)
	})
	tracing.End(span, err)
	if err != nil {
		return nil, err
	}

	if result.Created {
		logger.Log.Info("learning path started", zap.Uint("userID", userID), zap.Uint("pathID", pathID))
	}
	return result, nil
}

type ChapterProgressView struct {
	*model.UserChapterProgress
	ProgressPercentage int `json:"progressPercentage"`
}

// StartChapter 路径进度不存在时自动建立；前置章节未完成时拒绝
func (s *ProgressService) StartChapter(ctx context.Context, userID, chapterID uint) (*ChapterProgressView, error) {
	if userID == 0 {
		return nil, errLoginRequired
	}
	chapter, err := s.Paths.WithTx(s.DB.WithContext(ctx)).FindChapter(chapterID)
	if err != nil {
		return nil, err
	}
	if chapter == nil {
		return nil, util.NotFoundErr("chapter %d not found", chapterID)
	}

	var view *ChapterProgressView
	err = s.transact(ctx, userID, func(pt *progressTx) error {
		p, _, err := pt.progress.GetOrCreatePathProgress(userID, chapter.LearningPathID, pt.now)
		if err != nil {
			return err
		}
		cp, err := pt.ensureChapterProgress(chapter, p)
		if err != nil {
			return err
		}
		if err := pt.touchStreak(p); err != nil {
			return err
		}
		p.LastActivity = pt.now
		if err := pt.progress.SavePathProgress(p); err != nil {
			return err
		}

		stats, err := pt.chapterStats(chapter.ID)
		if err != nil {
			return err
		}
		view = &ChapterProgressView{UserChapterProgress: cp, ProgressPercentage: cp.ProgressPercentage(stats)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

type VideoProgressInput struct {
	WatchedSeconds int
	Notes          *string
	MarkCompleted  bool
}

type VideoProgressResult struct {
	ProgressPercentage int  `json:"progressPercentage"`
	IsCompleted        bool `json:"isCompleted"`
	JustCompleted      bool `json:"justCompleted"`
	ChapterCompleted   bool `json:"chapterCompleted"`
	Level              int  `json:"level"`
	ExperiencePoints   int  `json:"experiencePoints"`
}

func (s *ProgressService) UpdateVideoProgress(ctx context.Context, userID, videoID uint, in VideoProgressInput) (*VideoProgressResult, error) {
	if userID == 0 {
		return nil, errLoginRequired
	}
	if in.WatchedSeconds < 0 {
		return nil, util.InvalidInput("watched_seconds must not be negative")
	}

	repo := s.Paths.WithTx(s.DB.WithContext(ctx))
	video, err := repo.FindVideo(videoID)
	if err != nil {
		return nil, err
	}
	if video == nil {
		return nil, util.NotFoundErr("video %d not found", videoID)
	}
	chapter, err := repo.FindChapter(video.PathChapterID)
	if err != nil {
		return nil, err
	}
	if chapter == nil {
		return nil, util.NotFoundErr("chapter %d not found", video.PathChapterID)
	}

	ctx, span := tracing.Start(ctx, "progress.UpdateVideoProgress", attribute.Int64("videoID", int64(videoID)))
	result := &VideoProgressResult{}
	err = s.transact(ctx, userID, func(pt *progressTx) error {
		p, _, err := pt.progress.GetOrCreatePathProgress(userID, chapter.LearningPathID, pt.now)
		if err != nil {
			return err
		}
		cp, err := pt.ensureChapterProgress(chapter, p)
		if err != nil {
			return err
		}
		vp, err := pt.progress.GetOrCreateVideoProgress(userID, video.ID, cp.ID)
		if err != nil {
			return err
		}

		vp.WatchedSeconds = in.WatchedSeconds
		if in.Notes != nil {
			vp.Notes = *in.Notes
		}

		threshold := float64(video.DurationSeconds) * pt.rewards.VideoCompletionRatio
		reached := in.MarkCompleted || float64(in.WatchedSeconds) >= threshold
		if reached && !vp.IsCompleted {
			vp.IsCompleted = true
			vp.CompletedAt = &pt.now
			result.JustCompleted = true
		}
		if err := pt.progress.SaveVideoProgress(vp); err != nil {
			return err
		}

		if err := pt.touchStreak(p); err != nil {
			return err
		}

		if result.JustCompleted {
			credited := lo.Min([]int{in.WatchedSeconds, video.DurationSeconds})
			p.TotalTimeSeconds += credited
			pt.addExperience(p, pt.rewards.VideoXP, "video")
			if err := pt.progress.AddStreakActivity(userID, p.LearningPathID, util.DayKey(pt.now), credited/60, 1); err != nil {
				return err
			}

			done, err := pt.checkChapterCompletion(p, cp, chapter)
			if err != nil {
				return err
			}
			result.ChapterCompleted = done
		}

		p.LastActivity = pt.now
		if err := pt.progress.SavePathProgress(p); err != nil {
			return err
		}

		result.ProgressPercentage = vp.ProgressPercentage(video.DurationSeconds)
		result.IsCompleted = vp.IsCompleted
		result.Level = p.Level
		result.ExperiencePoints = p.ExperiencePoints
		return nil
	})
	tracing.End(span, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

type PathStats struct {
	PathID              uint                `json:"pathId"`
	TotalProgress       int                 `json:"totalProgress"`
	CurrentStreak       int                 `json:"currentStreak"`
	LongestStreak       int                 `json:"longestStreak"`
	TotalTimeSpent      int                 `json:"totalTimeSpent"`
	CompletedChapters   int                 `json:"completedChapters"`
	TotalChapters       int                 `json:"totalChapters"`
	QuizAverage         *float64            `json:"quizAverage"`
	Level               int                 `json:"level"`
	ExperiencePoints    int                 `json:"experiencePoints"`
	NextLevelExperience int                 `json:"nextLevelExperience"`
	RecentAchievements  []model.Achievement `json:"recentAchievements"`
}

func (s *ProgressService) PathStats(ctx context.Context, userID, pathID uint) (*PathStats, error) {
	if userID == 0 {
		return nil, errLoginRequired
	}
	db := s.DB.WithContext(ctx)
	p, err := s.Progress.WithTx(db).FindPathProgress(userID, pathID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, util.ErrPathNotStarted
	}

	chapters, err := s.Paths.WithTx(db).ListChapters(pathID)
	if err != nil {
		return nil, err
	}
	chapterIDs := lo.Map(chapters, func(c model.PathChapter, _ int) uint { return c.ID })
	completed, err := s.Progress.WithTx(db).CompletedChapterIDs(userID, chapterIDs)
	if err != nil {
		return nil, err
	}

	quizIDs, err := s.Paths.WithTx(db).QuizIDsForPath(pathID)
	if err != nil {
		return nil, err
	}
	avg, err := s.Quizzes.WithTx(db).AverageScore(userID, quizIDs)
	if err != nil {
		return nil, err
	}

	recent, err := s.Achievements.WithTx(db).Recent(userID, p.ID, 5)
	if err != nil {
		return nil, err
	}

	return &PathStats{
		PathID:              pathID,
		TotalProgress:       model.PathProgressPercentage(len(completed), len(chapters)),
		CurrentStreak:       p.CurrentStreak,
		LongestStreak:       p.LongestStreak,
		TotalTimeSpent:      p.TotalTimeSeconds,
		CompletedChapters:   len(completed),
		TotalChapters:       len(chapters),
		QuizAverage:         avg,
		Level:               p.Level,
		ExperiencePoints:    p.ExperiencePoints,
		NextLevelExperience: p.NextLevelExperience(),
		RecentAchievements:  lo.Map(recent, func(ua model.UserAchievement, _ int) model.Achievement { return ua.Achievement }),
	}, nil
}

type PathSummary struct {
	Path               model.LearningPath              `json:"path"`
	Progress           *model.UserLearningPathProgress `json:"progress"`
	ProgressPercentage int                             `json:"progressPercentage"`
}

// MyPaths 用户已开始的路径，最近活动的在前
func (s *ProgressService) MyPaths(ctx context.Context, userID uint) ([]PathSummary, error) {
	if userID == 0 {
		return nil, errLoginRequired
	}
	db := s.DB.WithContext(ctx)
	rows, err := s.Progress.WithTx(db).ListPathProgress(userID)
	if err != nil {
		return nil, err
	}
	paths, err := s.Paths.WithTx(db).FindPathsByIDs(lo.Map(rows, func(p model.UserLearningPathProgress, _ int) uint { return p.LearningPathID }))
	if err != nil {
		return nil, err
	}
	byID := lo.KeyBy(paths, func(p model.LearningPath) uint { return p.ID })

	out := make([]PathSummary, 0, len(rows))
	for i := range rows {
		path, ok := byID[rows[i].LearningPathID]
		if !ok {
			continue
		}
		chapters, err := s.Paths.WithTx(db).ListChapters(path.ID)
		if err != nil {
			return nil, err
		}
		completed, err := s.Progress.WithTx(db).CompletedChapterIDs(userID, lo.Map(chapters, func(c model.PathChapter, _ int) uint { return c.ID }))
		if err != nil {
			return nil, err
		}
		out = append(out, PathSummary{
			Path:               path,
			Progress:           &rows[i],
			ProgressPercentage: model.PathProgressPercentage(len(completed), len(chapters)),
		})
	}
	return out, nil
}

type LearningOverview struct {
	PathsStarted          int                         `json:"pathsStarted"`
	TotalHours            float64                     `json:"totalHours"`
	ChaptersCompleted     int64                       `json:"chaptersCompleted"`
	CurrentStreak         int                         `json:"currentStreak"`
	AchievementsEarned    int64                       `json:"achievementsEarned"`
	RecentCompletedVideos []repository.CompletedVideo `json:"recentCompletedVideos"`
}

func (s *ProgressService) Overview(ctx context.Context, userID uint) (*LearningOverview, error) {
	if userID == 0 {
		return nil, errLoginRequired
	}
	db := s.DB.WithContext(ctx)
	rows, err := s.Progress.WithTx(db).ListPathProgress(userID)
	if err != nil {
		return nil, err
	}
	chapters, err := s.Progress.WithTx(db).CountCompletedChapters(userID, 0)
	if err != nil {
		return nil, err
	}
	achievements, err := s.Achievements.WithTx(db).CountForUser(userID)
	if err != nil {
		return nil, err
	}
	videos, err := s.Progress.WithTx(db).RecentCompletedVideos(userID, 10)
	if err != nil {
		return nil, err
	}

	seconds := lo.SumBy(rows, func(p model.UserLearningPathProgress) int { return p.TotalTimeSeconds })
	streak := 0
	if len(rows) > 0 {
		streak = lo.MaxBy(rows, func(a, b model.UserLearningPathProgress) bool { return a.CurrentStreak > b.CurrentStreak }).CurrentStreak
	}

	return &LearningOverview{
		PathsStarted:          len(rows),
		TotalHours:            math.Round(float64(seconds)/3600*10) / 10,
		ChaptersCompleted:     chapters,
		CurrentStreak:         streak,
		AchievementsEarned:    achievements,
		RecentCompletedVideos: videos,
	}, nil
}

// ResetBrokenStreaks 定时任务调用，清零已中断的连续学习天数
func (s *ProgressService) ResetBrokenStreaks(ctx context.Context) (int64, error) {
	now := s.Now()
	n, err := s.Progress.WithTx(s.DB.WithContext(ctx)).
		ResetBrokenStreaks(util.DayKey(now), util.DayKey(now.AddDate(0, 0, -1)))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.Log.Info("broken streaks reset", zap.Int64("count", n))
	}
	return n, nil
}
