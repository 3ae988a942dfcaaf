package controller

import (
	"net/http"
	"strconv"

	"learnhub_backend/internal/model"
	"learnhub_backend/internal/service"
	"learnhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type TimeTrackingController struct {
	Service *service.TimeTrackingService
}

func NewTimeTrackingController(svc *service.TimeTrackingService) *TimeTrackingController {
	return &TimeTrackingController{Service: svc}
}

type SessionTimeRequest struct {
	TimeSeconds *float64 `json:"time_seconds" binding:"required"`
}

type SaveSessionRequest struct {
	SessionType model.SessionType `json:"session_type"`
	Notes       string            `json:"notes"`
}

type CompletedSessionRequest struct {
	DurationSeconds float64           `json:"duration_seconds" binding:"required"`
	SessionType     model.SessionType `json:"session_type"`
	Notes           string            `json:"notes"`
}

type TimeSpentView struct {
	TotalTimeSeconds      int    `json:"totalTimeSeconds"`
	TotalTimeFormatted    string `json:"totalTimeFormatted"`
	CurrentSessionSeconds int    `json:"currentSessionSeconds"`
	IsActive              bool   `json:"isActive"`
}

func timeSpentView(ts *model.TimeSpent) TimeSpentView {
	return TimeSpentView{
		TotalTimeSeconds:      ts.TotalTimeInSeconds(),
		TotalTimeFormatted:    util.FormatDuration(ts.TotalSeconds),
		CurrentSessionSeconds: ts.CurrentSessionInSeconds(),
		IsActive:              ts.IsActive(),
	}
}

// @Summary 上报当前会话时长
// @Description time_seconds 为当前会话的绝对时长
// @Tags 学习计时
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param kind path string true "内容类型"
// @Param id path int true "内容ID"
// @Param body body SessionTimeRequest true "当前会话秒数"
// @Success 200 {object} util.Response{data=TimeSpentView}
// @Router /api/content/{kind}/{id}/session-time [post]
func (c *TimeTrackingController) UpdateSessionTime(ctx *gin.Context) {
	ref, ok := contentRef(ctx)
	if !ok {
		return
	}

	var req SessionTimeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	ts, err := c.Service.UpdateSessionTime(ctx.Request.Context(), util.CurrentUserID(ctx), ref, *req.TimeSeconds)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, timeSpentView(ts))
}

// @Summary 获取当前计时
// @Tags 学习计时
// @Produce json
// @Security BearerAuth
// @Param kind path string true "内容类型"
// @Param id path int true "内容ID"
// @Success 200 {object} util.Response{data=TimeSpentView}
// @Router /api/content/{kind}/{id}/session-time [get]
func (c *TimeTrackingController) CurrentTime(ctx *gin.Context) {
	ref, ok := contentRef(ctx)
	if !ok {
		return
	}

	ts, err := c.Service.CurrentTime(ctx.Request.Context(), util.CurrentUserID(ctx), ref)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, timeSpentView(ts))
}

// @Summary 保存并重置当前会话
// @Tags 学习计时
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param kind path string true "内容类型"
// @Param id path int true "内容ID"
// @Param body body SaveSessionRequest false "会话类型与备注"
// @Success 200 {object} util.Response{data=TimeSpentView}
// @Failure 400 {object} util.Response
// @Router /api/content/{kind}/{id}/sessions/save [post]
func (c *TimeTrackingController) SaveSession(ctx *gin.Context) {
	ref, ok := contentRef(ctx)
	if !ok {
		return
	}

	var req SaveSessionRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			util.BadRequest(ctx, err.Error())
			return
		}
	}

	saved, ts, err := c.Service.SaveAndResetSession(ctx.Request.Context(), util.CurrentUserID(ctx), ref, service.SaveSessionInput{
		SessionType: req.SessionType,
		Notes:       req.Notes,
	})
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}
	if !saved {
		util.BadRequest(ctx, "No active session to save")
		return
	}

	util.Success(ctx, timeSpentView(ts))
}

// @Summary 保存客户端计时的完整会话
// @Tags 学习计时
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param kind path string true "内容类型"
// @Param id path int true "内容ID"
// @Param body body CompletedSessionRequest true "会话信息"
// @Success 201 {object} util.Response{data=model.TimeSession}
// @Router /api/content/{kind}/{id}/sessions [post]
func (c *TimeTrackingController) SaveCompletedSession(ctx *gin.Context) {
	ref, ok := contentRef(ctx)
	if !ok {
		return
	}

	var req CompletedSessionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	session, err := c.Service.SaveCompletedSession(ctx.Request.Context(), util.CurrentUserID(ctx), ref, service.CompletedSessionInput{
		DurationSeconds: req.DurationSeconds,
		SessionType:     req.SessionType,
		Notes:           req.Notes,
	})
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Created(ctx, session)
}

// @Summary 会话历史
// @Tags 学习计时
// @Produce json
// @Security BearerAuth
// @Param kind path string true "内容类型"
// @Param id path int true "内容ID"
// @Param limit query int false "返回条数" default(20)
// @Success 200 {object} util.Response
// @Router /api/content/{kind}/{id}/sessions [get]
func (c *TimeTrackingController) History(ctx *gin.Context) {
	ref, ok := contentRef(ctx)
	if !ok {
		return
	}

	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		util.BadRequest(ctx, "invalid limit")
		return
	}

	sessions, err := c.Service.SessionHistory(ctx.Request.Context(), util.CurrentUserID(ctx), ref, limit)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{List: sessions, Total: int64(len(sessions)), Limit: limit})
}

// @Summary 删除一条会话记录
// @Tags 学习计时
// @Produce json
// @Security BearerAuth
// @Param kind path string true "内容类型"
// @Param id path int true "内容ID"
// @Param sessionId path string true "会话ID"
// @Success 204
// @Failure 404 {object} util.Response
// @Router /api/content/{kind}/{id}/sessions/{sessionId} [delete]
func (c *TimeTrackingController) DeleteSession(ctx *gin.Context) {
	ref, ok := contentRef(ctx)
	if !ok {
		return
	}

	if err := c.Service.DeleteSession(ctx.Request.Context(), util.CurrentUserID(ctx), ref, ctx.Param("sessionId")); err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

// @Summary 学习时长统计
// @Tags 学习计时
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=service.TimeStatistics}
// @Router /api/me/time-statistics [get]
func (c *TimeTrackingController) TimeStatistics(ctx *gin.Context) {
	stats, err := c.Service.TimeStatistics(ctx.Request.Context(), util.CurrentUserID(ctx))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, stats)
}

// @Summary 手动关闭过期会话
// @Description 管理员接口，立即执行一次过期会话清理
// @Tags 学习计时
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=map[string]int}
// @Router /api/admin/time-tracking/sweep [post]
func (c *TimeTrackingController) SweepStale(ctx *gin.Context) {
	closed, err := c.Service.CloseStaleSessions(ctx.Request.Context(), 0)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"closed": closed})
}
