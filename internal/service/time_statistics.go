package service

import (
	"context"
	"math"
	"sort"
	"time"

	"learnhub_backend/internal/model"
	"learnhub_backend/internal/util"

	"github.com/samber/lo"
)

const (
	trendWindow        = 10
	trendMinimum       = 5
	trendThreshold     = 5.0
	consistencyDays    = 30
	consistencyMinimum = 3
	streakCap          = 365
	recentActivitySize = 10
	weeklyBuckets      = 4
)

type SessionTypeShare struct {
	SessionType     model.SessionType `json:"sessionType"`
	Count           int               `json:"count"`
	DurationSeconds float64           `json:"totalDurationSeconds"`
}

type WeeklyProgress struct {
	WeekNumber         int     `json:"weekNumber"` // 1 = 最近一周
	WeekStart          string  `json:"weekStart"`
	SessionCount       int     `json:"sessionCount"`
	TotalTimeSeconds   float64 `json:"totalTimeSeconds"`
	TotalTimeFormatted string  `json:"totalTimeFormatted"`
}

type ImprovementTrend struct {
	Trend      string  `json:"trend"` // improving | declining | stable | insufficient_data | no_comparison
	Percentage float64 `json:"percentage"`
}

type KindTimeStats struct {
	ContentKind              model.ContentKind  `json:"contentType"`
	TotalSessions            int                `json:"totalSessions"`
	TotalTimeSeconds         float64            `json:"totalTimeSeconds"`
	TotalTimeFormatted       string             `json:"totalTimeFormatted"`
	AverageSessionTime       float64            `json:"averageSessionTime"`
	AverageSessionFormatted  string             `json:"averageSessionFormatted"`
	BestTime                 float64            `json:"bestTime"`
	BestTimeFormatted        string             `json:"bestTimeFormatted"`
	LongestSession           float64            `json:"longestSession"`
	LongestSessionFormatted  string             `json:"longestSessionFormatted"`
	UniqueContentStudied     int                `json:"uniqueContentStudied"`
	SessionTypesDistribution []SessionTypeShare `json:"sessionTypesDistribution"`
	WeeklyProgress           []WeeklyProgress   `json:"weeklyProgress"`
	ImprovementTrend         ImprovementTrend   `json:"improvementTrend"`
	ConsistencyScore         int                `json:"consistencyScore"`
}

type ActiveDay struct {
	Day          string `json:"day"`
	SessionCount int    `json:"sessionCount"`
}

type StudyHabits struct {
	Morning                float64 `json:"morning"`
	Afternoon              float64 `json:"afternoon"`
	Evening                float64 `json:"evening"`
	AverageSessionsPerWeek float64 `json:"averageSessionsPerWeek"`
}

type OverallTimeStats struct {
	TotalSessions      int          `json:"totalSessionsAllContent"`
	TotalTimeSeconds   float64      `json:"totalTimeAllContent"`
	TotalTimeFormatted string       `json:"totalTimeFormatted"`
	CurrentStudyStreak int          `json:"currentStudyStreak"`
	MostActiveDay      *ActiveDay   `json:"mostActiveDay"`
	StudyHabits        *StudyHabits `json:"studyHabits"`
}

type RecentActivity struct {
	ID                string            `json:"id"`
	ContentKind       model.ContentKind `json:"contentType"`
	ContentID         uint              `json:"contentId"`
	ContentTitle      string            `json:"contentTitle"`
	DurationSeconds   int               `json:"durationSeconds"`
	DurationFormatted string            `json:"durationFormatted"`
	SessionType       model.SessionType `json:"sessionType"`
	Date              string            `json:"date"`
	Time              string            `json:"time"`
}

type TimeStatistics struct {
	ExerciseStats  KindTimeStats    `json:"exerciseStats"`
	ExamStats      KindTimeStats    `json:"examStats"`
	OverallStats   OverallTimeStats `json:"overallStats"`
	RecentActivity []RecentActivity `json:"recentActivity"`
}

// TimeStatistics 汇总用户全部历史会话
func (s *TimeTrackingService) TimeStatistics(ctx context.Context, userID uint) (*TimeStatistics, error) {
	if userID == 0 {
		return nil, errLoginRequired
	}
	sessions, err := s.Repo.WithTx(s.DB.WithContext(ctx)).UserSessions(userID)
	if err != nil {
		return nil, err
	}

	stats := BuildTimeStatistics(sessions, s.Now())

	// 最近活动补上内容标题，解析失败不影响统计
	for i := range stats.RecentActivity {
		a := &stats.RecentActivity[i]
		a.ContentTitle = "Unknown Content"
		if s.Content == nil {
			continue
		}
		if h, err := s.Content.Resolve(ctx, model.ContentRef{Kind: a.ContentKind, ID: a.ContentID}); err == nil && h.Title != "" {
			a.ContentTitle = h.Title
		}
	}
	return stats, nil
}

// BuildTimeStatistics sessions 需按结束时间倒序
func BuildTimeStatistics(sessions []model.TimeSession, now time.Time) *TimeStatistics {
	now = now.UTC()
	return &TimeStatistics{
		ExerciseStats:  kindStats(model.KindExercise, sessions, now),
		ExamStats:      kindStats(model.KindExam, sessions, now),
		OverallStats:   overallStats(sessions, now),
		RecentActivity: recentActivity(sessions),
	}
}

func kindStats(kind model.ContentKind, all []model.TimeSession, now time.Time) KindTimeStats {
	sessions := lo.Filter(all, func(s model.TimeSession, _ int) bool { return s.ContentKind == kind })
	durations := lo.Map(sessions, func(s model.TimeSession, _ int) float64 { return float64(s.DurationInSeconds()) })

	out := KindTimeStats{
		ContentKind:              kind,
		TotalSessions:            len(sessions),
		TotalTimeSeconds:         lo.Sum(durations),
		UniqueContentStudied:     len(lo.Uniq(lo.Map(sessions, func(s model.TimeSession, _ int) uint { return s.ContentID }))),
		SessionTypesDistribution: typeDistribution(sessions),
		WeeklyProgress:           weeklyProgress(sessions, now),
		ImprovementTrend:         improvementTrend(durations),
		ConsistencyScore:         consistencyScore(sessions, now),
	}
	if len(durations) > 0 {
		out.AverageSessionTime = out.TotalTimeSeconds / float64(len(durations))
		out.BestTime = lo.Min(durations)
		out.LongestSession = lo.Max(durations)
	}
	out.TotalTimeFormatted = util.FormatDuration(out.TotalTimeSeconds)
	out.AverageSessionFormatted = util.FormatDuration(out.AverageSessionTime)
	out.BestTimeFormatted = util.FormatDuration(out.BestTime)
	out.LongestSessionFormatted = util.FormatDuration(out.LongestSession)
	return out
}

func typeDistribution(sessions []model.TimeSession) []SessionTypeShare {
	grouped := lo.GroupBy(sessions, func(s model.TimeSession) model.SessionType { return s.SessionType })
	out := make([]SessionTypeShare, 0, len(grouped))
	for _, t := range model.AllSessionTypes {
		rows, ok := grouped[t]
		if !ok {
			continue
		}
		out = append(out, SessionTypeShare{
			SessionType:     t,
			Count:           len(rows),
			DurationSeconds: lo.SumBy(rows, func(s model.TimeSession) float64 { return s.SessionSeconds }),
		})
	}
	return out
}

// weeklyProgress 最近 4 个 7 天窗口，按时间从早到晚排列
func weeklyProgress(sessions []model.TimeSession, now time.Time) []WeeklyProgress {
	week := 7 * 24 * time.Hour
	out := make([]WeeklyProgress, 0, weeklyBuckets)
	for i := weeklyBuckets - 1; i >= 0; i-- {
		start := now.Add(-time.Duration(i+1) * week)
		end := now.Add(-time.Duration(i) * week)
		in := lo.Filter(sessions, func(s model.TimeSession, _ int) bool {
			return !s.EndedAt.Before(start) && s.EndedAt.Before(end)
		})
		total := lo.SumBy(in, func(s model.TimeSession) float64 { return float64(s.DurationInSeconds()) })
		out = append(out, WeeklyProgress{
			WeekNumber:         i + 1,
			WeekStart:          util.DayKey(start),
			SessionCount:       len(in),
			TotalTimeSeconds:   total,
			TotalTimeFormatted: util.FormatDuration(total),
		})
	}
	return out
}

// improvementTrend durations 需按时间倒序：前 10 条对比其后 10 条
func improvementTrend(durations []float64) ImprovementTrend {
	if len(durations) < trendWindow+trendMinimum {
		return ImprovementTrend{Trend: "insufficient_data"}
	}
	recent := durations[:trendWindow]
	previous := durations[trendWindow:lo.Min([]int{len(durations), 2 * trendWindow})]

	recentAvg := lo.Sum(recent) / float64(len(recent))
	previousAvg := lo.Sum(previous) / float64(len(previous))
	if previousAvg == 0 {
		return ImprovementTrend{Trend: "no_comparison"}
	}

	change := (recentAvg - previousAvg) / previousAvg * 100
	trend := "stable"
	switch {
	case change > trendThreshold:
		trend = "improving"
	case change < -trendThreshold:
		trend = "declining"
	}
	return ImprovementTrend{Trend: trend, Percentage: math.Round(math.Abs(change)*10) / 10}
}

func consistencyScore(sessions []model.TimeSession, now time.Time) int {
	since := now.AddDate(0, 0, -consistencyDays)
	recent := lo.Filter(sessions, func(s model.TimeSession, _ int) bool { return !s.EndedAt.Before(since) })
	if len(recent) < consistencyMinimum {
		return 0
	}
	days := lo.Uniq(lo.Map(recent, func(s model.TimeSession, _ int) string { return util.DayKey(s.EndedAt) }))
	score := int(math.Round(float64(len(days)) / consistencyDays * 100))
	return lo.Min([]int{100, score})
}

func overallStats(sessions []model.TimeSession, now time.Time) OverallTimeStats {
	total := lo.SumBy(sessions, func(s model.TimeSession) float64 { return float64(s.DurationInSeconds()) })
	return OverallTimeStats{
		TotalSessions:      len(sessions),
		TotalTimeSeconds:   total,
		TotalTimeFormatted: util.FormatDuration(total),
		CurrentStudyStreak: studyStreak(sessions, now),
		MostActiveDay:      mostActiveDay(sessions),
		StudyHabits:        studyHabits(sessions),
	}
}

// studyStreak 从今天往回数连续有会话的天数
func studyStreak(sessions []model.TimeSession, now time.Time) int {
	days := lo.Associate(sessions, func(s model.TimeSession) (string, struct{}) {
		return util.DayKey(s.EndedAt), struct{}{}
	})
	streak := 0
	for day := now; streak < streakCap; day = day.AddDate(0, 0, -1) {
		if _, ok := days[util.DayKey(day)]; !ok {
			break
		}
		streak++
	}
	return streak
}

func mostActiveDay(sessions []model.TimeSession) *ActiveDay {
	if len(sessions) == 0 {
		return nil
	}
	counts := make(map[time.Weekday]int, 7)
	for _, s := range sessions {
		counts[s.EndedAt.UTC().Weekday()]++
	}

	// 星期一开始，计数相同时取较早的一天
	order := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday}
	best := order[0]
	for _, d := range order {
		if counts[d] > counts[best] {
			best = d
		}
	}
	return &ActiveDay{Day: best.String(), SessionCount: counts[best]}
}

func studyHabits(sessions []model.TimeSession) *StudyHabits {
	total := len(sessions)
	if total == 0 {
		return nil
	}
	var morning, afternoon, evening int
	for _, s := range sessions {
		switch h := s.EndedAt.UTC().Hour(); {
		case h < 12:
			morning++
		case h < 18:
			afternoon++
		default:
			evening++
		}
	}
	pct := func(n int) float64 { return math.Round(float64(n)/float64(total)*1000) / 10 }
	return &StudyHabits{
		Morning:                pct(morning),
		Afternoon:              pct(afternoon),
		Evening:                pct(evening),
		AverageSessionsPerWeek: math.Round(float64(total)/52*10) / 10,
	}
}

func recentActivity(sessions []model.TimeSession) []RecentActivity {
	sorted := append([]model.TimeSession(nil), sessions...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].EndedAt.After(sorted[j].EndedAt) })
	if len(sorted) > recentActivitySize {
		sorted = sorted[:recentActivitySize]
	}
	return lo.Map(sorted, func(s model.TimeSession, _ int) RecentActivity {
		return RecentActivity{
			ID:                s.ID,
			ContentKind:       s.ContentKind,
			ContentID:         s.ContentID,
			DurationSeconds:   s.DurationInSeconds(),
			DurationFormatted: util.FormatDuration(s.SessionSeconds),
			SessionType:       s.SessionType,
			Date:              s.EndedAt.UTC().Format(util.DateFormat),
			Time:              s.EndedAt.UTC().Format("15:04"),
		}
	})
}
