package controller

import (
	"learnhub_backend/internal/service"
	"learnhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type LearningPathController struct {
	Service *service.ProgressService
}

func NewLearningPathController(svc *service.ProgressService) *LearningPathController {
	return &LearningPathController{Service: svc}
}

type VideoProgressRequest struct {
	WatchedSeconds int     `json:"watched_seconds"`
	Notes          *string `json:"notes"`
	MarkCompleted  bool    `json:"mark_completed"`
}

// idParam 解析 :id，失败时已写出 400
func idParam(ctx *gin.Context, name string) (uint, bool) {
	id := util.MustParseUint(ctx.Param(name))
	if id == 0 {
		util.BadRequest(ctx, "invalid "+name)
		return 0, false
	}
	return id, true
}

// @Summary 开始或继续学习路径
// @Tags 学习路径
// @Produce json
// @Security BearerAuth
// @Param id path int true "学习路径ID"
// @Success 200 {object} util.Response{data=service.PathStartResult}
// @Success 201 {object} util.Response{data=service.PathStartResult}
// @Router /api/learning-paths/{id}/start [post]
func (c *LearningPathController) Start(ctx *gin.Context) {
	pathID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	res, err := c.Service.StartOrResume(ctx.Request.Context(), util.CurrentUserID(ctx), pathID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	if res.Created {
		util.Created(ctx, res)
		return
	}
	util.Success(ctx, res)
}

// @Summary 我的学习路径
// @Tags 学习路径
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response
// @Router /api/learning-paths/mine [get]
func (c *LearningPathController) Mine(ctx *gin.Context) {
	paths, err := c.Service.MyPaths(ctx.Request.Context(), util.CurrentUserID(ctx))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, paths)
}

// @Summary 学习路径统计
// @Tags 学习路径
// @Produce json
// @Security BearerAuth
// @Param id path int true "学习路径ID"
// @Success 200 {object} util.Response{data=service.PathStats}
// @Failure 404 {object} util.Response
// @Router /api/learning-paths/{id}/stats [get]
func (c *LearningPathController) Stats(ctx *gin.Context) {
	pathID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	stats, err := c.Service.PathStats(ctx.Request.Context(), util.CurrentUserID(ctx), pathID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, stats)
}

// @Summary 学习概览
// @Tags 学习路径
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=service.LearningOverview}
// @Router /api/learning-paths/overview [get]
func (c *LearningPathController) Overview(ctx *gin.Context) {
	overview, err := c.Service.Overview(ctx.Request.Context(), util.CurrentUserID(ctx))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, overview)
}

// @Summary 开始章节
// @Tags 学习路径
// @Produce json
// @Security BearerAuth
// @Param id path int true "章节ID"
// @Success 200 {object} util.Response{data=service.ChapterProgressView}
// @Failure 403 {object} util.Response "前置章节未完成"
// @Router /api/chapters/{id}/start [post]
func (c *LearningPathController) StartChapter(ctx *gin.Context) {
	chapterID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	view, err := c.Service.StartChapter(ctx.Request.Context(), util.CurrentUserID(ctx), chapterID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, view)
}

// @Summary 更新视频观看进度
// @Tags 学习路径
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "视频ID"
// @Param body body VideoProgressRequest true "观看进度"
// @Success 200 {object} util.Response{data=service.VideoProgressResult}
// @Router /api/videos/{id}/progress [post]
func (c *LearningPathController) VideoProgress(ctx *gin.Context) {
	videoID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	var req VideoProgressRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	res, err := c.Service.UpdateVideoProgress(ctx.Request.Context(), util.CurrentUserID(ctx), videoID, service.VideoProgressInput{
		WatchedSeconds: req.WatchedSeconds,
		Notes:          req.Notes,
		MarkCompleted:  req.MarkCompleted,
	})
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, res)
}
