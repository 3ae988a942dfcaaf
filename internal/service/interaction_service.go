package service

import (
	"context"
	"strconv"
	"strings"

	"learnhub_backend/internal/model"
	"learnhub_backend/internal/repository"
	"learnhub_backend/internal/util"
	"learnhub_backend/pkg/logger"
	"learnhub_backend/pkg/monitoring"
	"learnhub_backend/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

var errLoginRequired = util.Unauthenticated("authentication required")

type InteractionService struct {
	DB         *gorm.DB
	Repo       *repository.InteractionRepository
	Content    ContentResolver
	Cache      VoteCountCache
	MaxRetries int

	fill singleflight.Group
}

func NewInteractionService(db *gorm.DB, repo *repository.InteractionRepository, content ContentResolver, cache VoteCountCache, maxRetries int) *InteractionService {
	if cache == nil {
		cache = NoopVoteCache{}
	}
	return &InteractionService{DB: db, Repo: repo, Content: content, Cache: cache, MaxRetries: maxRetries}
}

type VoteResult struct {
	UserVote  int   `json:"userVote"` // 0 表示未投票
	VoteCount int64 `json:"voteCount"`
}

// ToggleVote 同值再投即取消，异值则改票
func (s *InteractionService) ToggleVote(ctx context.Context, userID uint, ref model.ContentRef, value int) (*VoteResult, error) {
	if userID == 0 {
		return nil, errLoginRequired
	}
	if value != model.VoteUp && value != model.VoteDown {
		return nil, util.InvalidInput("vote value must be 1 or -1")
	}

	ctx, span := tracing.Start(ctx, "interaction.ToggleVote", attribute.String("ref", ref.String()))
	var err error
	defer func() { tracing.End(span, err) }()

	if _, err = resolveFor(ctx, s.Content, ref, CapVote); err != nil {
		return nil, err
	}

	result := &VoteResult{}
	err = repository.Transact(ctx, s.DB, s.MaxRetries, func(tx *gorm.DB) error {
		repo := s.Repo.WithTx(tx)
		existing, err := repo.LockVote(userID, ref)
		if err != nil {
			return err
		}

		switch {
		case existing == nil:
			inserted, err := repo.InsertVote(&model.Vote{UserID: userID, ContentKind: ref.Kind, ContentID: ref.ID, Value: value})
			if err != nil {
				return err
			}
			if !inserted {
				return util.ConflictErr("vote changed concurrently")
			}
			result.UserVote = value
		case existing.Value == value:
			if err := repo.DeleteVote(existing); err != nil {
				return err
			}
			result.UserVote = 0
		default:
			if err := repo.UpdateVoteValue(existing, value); err != nil {
				return err
			}
			result.UserVote = value
		}

		result.VoteCount, err = repo.VoteCount(ref)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Cache.Invalidate(ctx, ref)
	monitoring.RecordInteraction("vote", string(ref.Kind))
	logger.Log.Debug("vote toggled",
		zap.Uint("userID", userID),
		zap.String("ref", ref.String()),
		zap.Int("userVote", result.UserVote))
	return result, nil
}

// VoteCount 先查缓存，未命中时并发请求只打一次数据库
func (s *InteractionService) VoteCount(ctx context.Context, ref model.ContentRef) (int64, error) {
	if n, ok := s.Cache.Get(ctx, ref); ok {
		return n, nil
	}
	v, err, _ := s.fill.Do(ref.String(), func() (interface{}, error) {
		// 版本号必须在查库之前读取
		version := s.Cache.Version(ctx, ref)
		n, err := s.Repo.WithTx(s.DB.WithContext(ctx)).VoteCount(ref)
		if err != nil {
			return int64(0), err
		}
		s.Cache.Fill(ctx, ref, version, n)
		return n, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// ToggleSave 返回操作后的收藏状态
func (s *InteractionService) ToggleSave(ctx context.Context, userID uint, ref model.ContentRef) (bool, error) {
	if userID == 0 {
		return false, errLoginRequired
	}
	if _, err := resolveFor(ctx, s.Content, ref, CapSave); err != nil {
		return false, err
	}

	var saved bool
	err := repository.Transact(ctx, s.DB, s.MaxRetries, func(tx *gorm.DB) error {
		repo := s.Repo.WithTx(tx)
		existing, err := repo.LockSave(userID, ref)
		if err != nil {
			return err
		}
		if existing != nil {
			saved = false
			return repo.DeleteSave(existing)
		}
		inserted, err := repo.InsertSave(&model.Save{UserID: userID, ContentKind: ref.Kind, ContentID: ref.ID})
		if err != nil {
			return err
		}
		if !inserted {
			return util.ConflictErr("save changed concurrently")
		}
		saved = true
		return nil
	})
	if err != nil {
		return false, err
	}

	monitoring.RecordInteraction("save", string(ref.Kind))
	return saved, nil
}

func (s *InteractionService) SetComplete(ctx context.Context, userID uint, ref model.ContentRef, status model.CompleteStatus) (*model.Complete, error) {
	if userID == 0 {
		return nil, errLoginRequired
	}
	if !status.Valid() {
		return nil, util.InvalidInput("status must be success or review")
	}
	if _, err := resolveFor(ctx, s.Content, ref, CapComplete); err != nil {
		return nil, err
	}

	var out *model.Complete
	err := repository.Transact(ctx, s.DB, s.MaxRetries, func(tx *gorm.DB) error {
		repo := s.Repo.WithTx(tx)
		if err := repo.UpsertComplete(&model.Complete{UserID: userID, ContentKind: ref.Kind, ContentID: ref.ID, Status: status}); err != nil {
			return err
		}
		var err error
		out, err = repo.FindComplete(userID, ref)
		return err
	})
	if err != nil {
		return nil, err
	}

	monitoring.RecordInteraction("complete", string(ref.Kind))
	return out, nil
}

func (s *InteractionService) RemoveComplete(ctx context.Context, userID uint, ref model.ContentRef) error {
	if userID == 0 {
		return errLoginRequired
	}
	if _, err := resolveFor(ctx, s.Content, ref, CapComplete); err != nil {
		return err
	}

	deleted, err := s.Repo.WithTx(s.DB.WithContext(ctx)).DeleteComplete(userID, ref)
	if err != nil {
		return err
	}
	if !deleted {
		return util.NotFoundErr("completion not found")
	}
	return nil
}

func (s *InteractionService) SetRating(ctx context.Context, userID uint, ref model.ContentRef, rating int) (*model.Evaluate, error) {
	if userID == 0 {
		return nil, errLoginRequired
	}
	if rating < model.MinRating || rating > model.MaxRating {
		return nil, util.InvalidInput("rating must be between %d and %d", model.MinRating, model.MaxRating)
	}
	if _, err := resolveFor(ctx, s.Content, ref, CapEvaluate); err != nil {
		return nil, err
	}

	var out *model.Evaluate
	err := repository.Transact(ctx, s.DB, s.MaxRetries, func(tx *gorm.DB) error {
		repo := s.Repo.WithTx(tx)
		if err := repo.UpsertEvaluate(&model.Evaluate{UserID: userID, ContentKind: ref.Kind, ContentID: ref.ID, Rating: rating}); err != nil {
			return err
		}
		var err error
		out, err = repo.FindEvaluate(userID, ref)
		return err
	})
	if err != nil {
		return nil, err
	}

	monitoring.RecordInteraction("evaluate", string(ref.Kind))
	return out, nil
}

// Report 幂等：重复举报返回 false
func (s *InteractionService) Report(ctx context.Context, userID uint, ref model.ContentRef, reason string) (bool, error) {
	if userID == 0 {
		return false, errLoginRequired
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return false, util.InvalidInput("reason is required")
	}
	if _, err := resolveFor(ctx, s.Content, ref, CapReport); err != nil {
		return false, err
	}

	created, err := s.Repo.WithTx(s.DB.WithContext(ctx)).InsertReport(&model.Report{
		UserID:      userID,
		ContentKind: ref.Kind,
		ContentID:   ref.ID,
		Reason:      reason,
	})
	if err != nil {
		return false, err
	}
	if created {
		monitoring.RecordInteraction("report", string(ref.Kind))
		logger.Log.Info("content reported", zap.Uint("userID", userID), zap.String("ref", ref.String()))
	}
	return created, nil
}

type ContentStats struct {
	Ref               model.ContentRef      `json:"ref"`
	Title             string                `json:"title"`
	VoteCount         int64                 `json:"voteCount"`
	UserVote          int                   `json:"userVote"`
	IsSaved           bool                  `json:"isSaved"`
	CompletionStatus  *model.CompleteStatus `json:"completionStatus"`
	UserRating        *int                  `json:"userRating"`
	SuccessCount      int64                 `json:"successCount"`
	ReviewCount       int64                 `json:"reviewCount"`
	AverageDifficulty *float64              `json:"averagePerceivedDifficulty"`
	RatingCount       int64                 `json:"ratingCount"`
}

// ContentStats userID 为 0 时只返回公共汇总
func (s *InteractionService) ContentStats(ctx context.Context, userID uint, ref model.ContentRef) (*ContentStats, error) {
	handle, err := resolveFor(ctx, s.Content, ref, CapVote)
	if err != nil {
		return nil, err
	}

	stats := &ContentStats{Ref: ref, Title: handle.Title}
	if stats.VoteCount, err = s.VoteCount(ctx, ref); err != nil {
		return nil, err
	}

	repo := s.Repo.WithTx(s.DB.WithContext(ctx))
	if Supports(ref.Kind, CapComplete) {
		counts, err := repo.CompletionCounts(ref)
		if err != nil {
			return nil, err
		}
		stats.SuccessCount, stats.ReviewCount = counts.Success, counts.Review
	}
	if Supports(ref.Kind, CapEvaluate) {
		summary, err := repo.RatingSummary(ref)
		if err != nil {
			return nil, err
		}
		stats.AverageDifficulty, stats.RatingCount = summary.Average, summary.Count
	}

	if userID == 0 {
		return stats, nil
	}

	vote, err := repo.FindVote(userID, ref)
	if err != nil {
		return nil, err
	}
	if vote != nil {
		stats.UserVote = vote.Value
	}
	if Supports(ref.Kind, CapSave) {
		if stats.IsSaved, err = repo.IsSaved(userID, ref); err != nil {
			return nil, err
		}
	}
	if Supports(ref.Kind, CapComplete) {
		c, err := repo.FindComplete(userID, ref)
		if err != nil {
			return nil, err
		}
		if c != nil {
			stats.CompletionStatus = &c.Status
		}
	}
	if Supports(ref.Kind, CapEvaluate) {
		e, err := repo.FindEvaluate(userID, ref)
		if err != nil {
			return nil, err
		}
		if e != nil {
			stats.UserRating = &e.Rating
		}
	}
	return stats, nil
}

type LearningStats struct {
	CompletedCount int64 `json:"completedCount"`
	InReviewCount  int64 `json:"inReviewCount"`
	SavedCount     int64 `json:"savedCount"`
}

func (s *InteractionService) LearningStats(ctx context.Context, userID uint) (*LearningStats, error) {
	if userID == 0 {
		return nil, errLoginRequired
	}
	counts, err := s.Repo.WithTx(s.DB.WithContext(ctx)).LearningCounts(userID)
	if err != nil {
		return nil, err
	}
	return &LearningStats{
		CompletedCount: counts.Completed,
		InReviewCount:  counts.InReview,
		SavedCount:     counts.Saved,
	}, nil
}

// ParseRef 路由参数 -> ContentRef
func ParseRef(kind, id string) (model.ContentRef, error) {
	k, err := model.ParseContentKind(kind)
	if err != nil {
		return model.ContentRef{}, util.InvalidInput("%s", err.Error())
	}
	n, err := strconv.ParseUint(id, 10, 32)
	if err != nil || n == 0 {
		return model.ContentRef{}, util.InvalidInput("invalid content id %q", id)
	}
	return model.ContentRef{Kind: k, ID: uint(n)}, nil
}
