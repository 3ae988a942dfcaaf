package controller

import (
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/service"
	"learnhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type InteractionController struct {
	Service *service.InteractionService
}

func NewInteractionController(svc *service.InteractionService) *InteractionController {
	return &InteractionController{Service: svc}
}

type VoteRequest struct {
	Value int `json:"value" binding:"required"`
}

type CompleteRequest struct {
	Status model.CompleteStatus `json:"status" binding:"required"`
}

type RatingRequest struct {
	Rating int `json:"rating" binding:"required"`
}

type ReportRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// contentRef 解析 :kind/:id，失败时已写出响应
func contentRef(ctx *gin.Context) (model.ContentRef, bool) {
	ref, err := service.ParseRef(ctx.Param("kind"), ctx.Param("id"))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return ref, false
	}
	return ref, true
}

// @Summary 内容互动统计
// @Description 未登录时只返回公共汇总
// @Tags 互动
// @Produce json
// @Param kind path string true "内容类型 (exercise, lesson, exam, solution, comment, video)"
// @Param id path int true "内容ID"
// @Success 200 {object} util.Response{data=service.ContentStats}
// @Router /api/content/{kind}/{id}/stats [get]
func (c *InteractionController) Stats(ctx *gin.Context) {
	ref, ok := contentRef(ctx)
	if !ok {
		return
	}

	stats, err := c.Service.ContentStats(ctx.Request.Context(), util.CurrentUserID(ctx), ref)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, stats)
}

// @Summary 投票
// @Description 同值再投即取消投票
// @Tags 互动
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param kind path string true "内容类型"
// @Param id path int true "内容ID"
// @Param body body VoteRequest true "1 或 -1"
// @Success 200 {object} util.Response{data=service.VoteResult}
// @Router /api/content/{kind}/{id}/vote [post]
func (c *InteractionController) Vote(ctx *gin.Context) {
	ref, ok := contentRef(ctx)
	if !ok {
		return
	}

	var req VoteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	res, err := c.Service.ToggleVote(ctx.Request.Context(), util.CurrentUserID(ctx), ref, req.Value)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, res)
}

// @Summary 收藏/取消收藏
// @Tags 互动
// @Produce json
// @Security BearerAuth
// @Param kind path string true "内容类型"
// @Param id path int true "内容ID"
// @Success 200 {object} util.Response
// @Router /api/content/{kind}/{id}/save [post]
func (c *InteractionController) Save(ctx *gin.Context) {
	ref, ok := contentRef(ctx)
	if !ok {
		return
	}

	saved, err := c.Service.ToggleSave(ctx.Request.Context(), util.CurrentUserID(ctx), ref)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{"isSaved": saved})
}

// @Summary 标记完成状态
// @Tags 互动
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param kind path string true "内容类型"
// @Param id path int true "内容ID"
// @Param body body CompleteRequest true "success 或 review"
// @Success 200 {object} util.Response{data=model.Complete}
// @Router /api/content/{kind}/{id}/complete [put]
func (c *InteractionController) Complete(ctx *gin.Context) {
	ref, ok := contentRef(ctx)
	if !ok {
		return
	}

	var req CompleteRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	complete, err := c.Service.SetComplete(ctx.Request.Context(), util.CurrentUserID(ctx), ref, req.Status)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, complete)
}

// @Summary 取消完成状态
// @Tags 互动
// @Produce json
// @Security BearerAuth
// @Param kind path string true "内容类型"
// @Param id path int true "内容ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /api/content/{kind}/{id}/complete [delete]
func (c *InteractionController) RemoveComplete(ctx *gin.Context) {
	ref, ok := contentRef(ctx)
	if !ok {
		return
	}

	if err := c.Service.RemoveComplete(ctx.Request.Context(), util.CurrentUserID(ctx), ref); err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, nil)
}

// @Summary 评价难度
// @Tags 互动
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param kind path string true "内容类型"
// @Param id path int true "内容ID"
// @Param body body RatingRequest true "1-5"
// @Success 200 {object} util.Response{data=model.Evaluate}
// @Router /api/content/{kind}/{id}/rating [put]
func (c *InteractionController) Rate(ctx *gin.Context) {
	ref, ok := contentRef(ctx)
	if !ok {
		return
	}

	var req RatingRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	evaluate, err := c.Service.SetRating(ctx.Request.Context(), util.CurrentUserID(ctx), ref, req.Rating)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, evaluate)
}

// @Summary 举报内容
// @Description 重复举报返回 200，首次举报返回 201
// @Tags 互动
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param kind path string true "内容类型"
// @Param id path int true "内容ID"
// @Param body body ReportRequest true "举报原因"
// @Success 201 {object} util.Response
// @Router /api/content/{kind}/{id}/report [post]
func (c *InteractionController) Report(ctx *gin.Context) {
	ref, ok := contentRef(ctx)
	if !ok {
		return
	}

	var req ReportRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	created, err := c.Service.Report(ctx.Request.Context(), util.CurrentUserID(ctx), ref, req.Reason)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	if created {
		util.Created(ctx, gin.H{"created": true})
		return
	}
	util.Success(ctx, gin.H{"created": false})
}

// @Summary 我的学习统计
// @Tags 互动
// @Produce json
// @Security BearerAuth
// @Success 200 {object} util.Response{data=service.LearningStats}
// @Router /api/me/learning-stats [get]
func (c *InteractionController) LearningStats(ctx *gin.Context) {
	stats, err := c.Service.LearningStats(ctx.Request.Context(), util.CurrentUserID(ctx))
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, stats)
}
