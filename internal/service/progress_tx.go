package service

import (
	"time"

	"learnhub_backend/internal/config"
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/repository"
	"learnhub_backend/internal/util"
	"learnhub_backend/pkg/logger"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// progressTx 一次事务内的进度操作，所有仓库都绑定同一个 tx
type progressTx struct {
	paths        *repository.LearningPathRepository
	progress     *repository.ProgressRepository
	achievements *repository.AchievementRepository
	quizzes      *repository.QuizRepository
	userID       uint
	now          time.Time
	rewards      config.ProgressConfig
}

// isLocked 任一前置章节未完成即为锁定
func (pt *progressTx) isLocked(chapterID uint) (bool, error) {
	prereqs, err := pt.paths.Prerequisites(chapterID)
	if err != nil {
		return false, err
	}
	prereqs = lo.Uniq(prereqs)
	if len(prereqs) == 0 {
		return false, nil
	}
	done, err := pt.progress.CompletedChapterIDs(pt.userID, prereqs)
	if err != nil {
		return false, err
	}
	return len(lo.Uniq(done)) < len(prereqs), nil
}

// ensureChapterProgress 加锁取出章节进度；首次进入时检查前置条件再创建
func (pt *progressTx) ensureChapterProgress(chapter *model.PathChapter, p *model.UserLearningPathProgress) (*model.UserChapterProgress, error) {
	cp, err := pt.progress.LockChapterProgress(pt.userID, chapter.ID)
	if err != nil || cp != nil {
		return cp, err
	}
	locked, err := pt.isLocked(chapter.ID)
	if err != nil {
		return nil, err
	}
	if locked {
		return nil, util.ErrChapterLocked
	}
	cp, _, err = pt.progress.GetOrCreateChapterProgress(pt.userID, chapter.ID, p.ID, pt.now)
	return cp, err
}

func (pt *progressTx) addExperience(p *model.UserLearningPathProgress, points int, reason string) {
	gained := p.AddExperience(points)
	if gained > 0 {
		logger.Log.Info("level up",
			zap.Uint("userID", pt.userID),
			zap.Uint("pathID", p.LearningPathID),
			zap.Int("level", p.Level),
			zap.String("reason", reason))
	}
}

// touchStreak 当天第一次学习该路径时更新连续天数
func (pt *progressTx) touchStreak(p *model.UserLearningPathProgress) error {
	first, err := pt.progress.TouchStreak(pt.userID, p.LearningPathID, util.DayKey(pt.now))
	if err != nil || !first {
		return err
	}

	studiedYesterday, err := pt.progress.HasStreak(pt.userID, p.LearningPathID, util.DayKey(pt.now.AddDate(0, 0, -1)))
	if err != nil {
		return err
	}
	if studiedYesterday {
		p.CurrentStreak++
	} else {
		p.CurrentStreak = 1
	}
	if p.CurrentStreak > p.LongestStreak {
		p.LongestStreak = p.CurrentStreak
	}

	candidates, err := pt.achievements.ScopedToPath(model.AchievementStreak, p.LearningPathID)
	if err != nil {
		return err
	}
	for _, a := range candidates {
		if p.CurrentStreak >= a.RequiredValue {
			if err := pt.award(a, p); err != nil {
				return err
			}
		}
	}
	return nil
}

func (pt *progressTx) award(a model.Achievement, p *model.UserLearningPathProgress) error {
	created, err := pt.achievements.Award(pt.userID, a.ID, p.ID, pt.now)
	if err != nil {
		return err
	}
	if created {
		logger.Log.Info("achievement earned",
			zap.Uint("userID", pt.userID),
			zap.Uint("achievementID", a.ID),
			zap.String("type", string(a.AchievementType)))
	}
	return nil
}

func (pt *progressTx) chapterStats(chapterID uint) (model.ChapterStats, error) {
	var st model.ChapterStats
	videos, err := pt.paths.ListVideos(chapterID)
	if err != nil {
		return st, err
	}
	done, err := pt.progress.CompletedVideoIDs(pt.userID, lo.Map(videos, func(v model.Video, _ int) uint { return v.ID }))
	if err != nil {
		return st, err
	}
	quiz, err := pt.paths.FindQuizByChapter(chapterID)
	if err != nil {
		return st, err
	}
	st.TotalVideos = len(videos)
	st.CompletedVideos = len(done)
	if quiz != nil {
		st.HasQuiz = true
		st.PassingScore = quiz.PassingScore
	}
	return st, nil
}

// checkChapterCompletion 必修视频全部看完且测验通过（若有）即完成章节
func (pt *progressTx) checkChapterCompletion(p *model.UserLearningPathProgress, cp *model.UserChapterProgress, chapter *model.PathChapter) (bool, error) {
	if cp.IsCompleted {
		return false, nil
	}

	videos, err := pt.paths.ListVideos(chapter.ID)
	if err != nil {
		return false, err
	}
	required := lo.FilterMap(videos, func(v model.Video, _ int) (uint, bool) { return v.ID, v.IsRequired() })
	done, err := pt.progress.CompletedVideoIDs(pt.userID, required)
	if err != nil {
		return false, err
	}
	if len(done) < len(required) {
		return false, nil
	}

	quiz, err := pt.paths.FindQuizByChapter(chapter.ID)
	if err != nil {
		return false, err
	}
	if quiz != nil && !latestQuizPassed(cp, quiz) {
		return false, nil
	}

	cp.IsCompleted = true
	cp.CompletedAt = &pt.now
	if err := pt.progress.SaveChapterProgress(cp); err != nil {
		return false, err
	}
	pt.addExperience(p, pt.rewards.ChapterXP, "chapter")

	achievements, err := pt.achievements.ForChapter(chapter.ID, model.AchievementChapterComplete, model.AchievementMilestone)
	if err != nil {
		return false, err
	}
	for _, a := range achievements {
		if err := pt.award(a, p); err != nil {
			return false, err
		}
	}

	if err := pt.unlockDependents(p, chapter); err != nil {
		return false, err
	}

	logger.Log.Info("chapter completed",
		zap.Uint("userID", pt.userID),
		zap.Uint("chapterID", chapter.ID),
		zap.Uint("pathID", chapter.LearningPathID))
	return true, nil
}

// unlockDependents 为所有前置已满足的后续章节建立进度
func (pt *progressTx) unlockDependents(p *model.UserLearningPathProgress, chapter *model.PathChapter) error {
	deps, err := pt.paths.Dependents(chapter.ID)
	if err != nil {
		return err
	}
	for _, id := range lo.Uniq(deps) {
		next, err := pt.paths.FindChapter(id)
		if err != nil {
			return err
		}
		if next == nil || next.LearningPathID != chapter.LearningPathID {
			continue
		}
		locked, err := pt.isLocked(next.ID)
		if err != nil {
			return err
		}
		if locked {
			continue
		}
		if _, _, err := pt.progress.GetOrCreateChapterProgress(pt.userID, next.ID, p.ID, pt.now); err != nil {
			return err
		}
	}
	return nil
}

// latestQuizPassed 只看最近一次提交的成绩
func latestQuizPassed(cp *model.UserChapterProgress, quiz *model.ChapterQuiz) bool {
	return cp.QuizScore != nil && *cp.QuizScore >= quiz.PassingScore
}
