package controller

import (
	"learnhub_backend/internal/service"
	"learnhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuizController struct {
	Service *service.QuizService
}

func NewQuizController(svc *service.QuizService) *QuizController {
	return &QuizController{Service: svc}
}

type SubmitQuizRequest struct {
	Answers []service.AnswerInput `json:"answers" binding:"required,dive"`
}

// @Summary 开始测验
// @Description 返回不含答案的题目列表
// @Tags 测验
// @Produce json
// @Security BearerAuth
// @Param id path int true "测验ID"
// @Success 201 {object} util.Response{data=service.AttemptStart}
// @Failure 400 {object} util.Response "已有未提交的尝试"
// @Failure 403 {object} util.Response "超过最大尝试次数"
// @Router /api/quizzes/{id}/attempts [post]
func (c *QuizController) StartAttempt(ctx *gin.Context) {
	quizID, ok := idParam(ctx, "id")
	if !ok {
		return
	}

	start, err := c.Service.StartAttempt(ctx.Request.Context(), util.CurrentUserID(ctx), quizID)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Created(ctx, start)
}

// @Summary 提交测验
// @Tags 测验
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param attemptId path string true "尝试ID"
// @Param body body SubmitQuizRequest true "答案"
// @Success 200 {object} util.Response{data=service.SubmitResult}
// @Router /api/quizzes/attempts/{attemptId}/submit [post]
func (c *QuizController) SubmitAttempt(ctx *gin.Context) {
	var req SubmitQuizRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	res, err := c.Service.SubmitAttempt(ctx.Request.Context(), util.CurrentUserID(ctx), ctx.Param("attemptId"), req.Answers)
	if err != nil {
		util.HandleServiceError(ctx, err)
		return
	}

	util.Success(ctx, res)
}
