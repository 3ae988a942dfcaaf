package service

import (
	"context"

	"learnhub_backend/internal/model"
	"learnhub_backend/internal/util"
)

// ContentResolver 把多态引用解析为具体内容，repository.ContentRepository 实现它
type ContentResolver interface {
	Resolve(ctx context.Context, ref model.ContentRef) (*model.ContentHandle, error)
}

type Capability string

const (
	CapVote         Capability = "vote"
	CapSave         Capability = "save"
	CapComplete     Capability = "complete"
	CapEvaluate     Capability = "evaluate"
	CapReport       Capability = "report"
	CapTimeTracking Capability = "time_tracking"
)

var kindCapabilities = map[model.ContentKind]map[Capability]bool{
	model.KindExercise: {CapVote: true, CapSave: true, CapComplete: true, CapEvaluate: true, CapReport: true, CapTimeTracking: true},
	model.KindLesson:   {CapVote: true, CapSave: true, CapComplete: true, CapEvaluate: true, CapReport: true, CapTimeTracking: true},
	model.KindExam:     {CapVote: true, CapSave: true, CapComplete: true, CapEvaluate: true, CapReport: true, CapTimeTracking: true},
	model.KindSolution: {CapVote: true},
	model.KindComment:  {CapVote: true},
	model.KindVideo:    {CapVote: true, CapTimeTracking: true},
}

func Supports(kind model.ContentKind, c Capability) bool {
	return kindCapabilities[kind][c]
}

// resolveFor 先校验能力再查库，保证写入前引用有效
func resolveFor(ctx context.Context, r ContentResolver, ref model.ContentRef, c Capability) (*model.ContentHandle, error) {
	if _, ok := kindCapabilities[ref.Kind]; !ok {
		return nil, util.InvalidInput("unknown content kind %q", ref.Kind)
	}
	if !Supports(ref.Kind, c) {
		return nil, util.InvalidInput("%s is not supported for %s", c, ref.Kind)
	}
	return r.Resolve(ctx, ref)
}
