package service

import (
	"context"
	"strconv"
	"time"

	"learnhub_backend/internal/model"
	"learnhub_backend/pkg/logger"
	"learnhub_backend/pkg/monitoring"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// VoteCountCache 投票汇总缓存。写入方在事务提交后 Invalidate，Invalidate 会推进版本号；
// 读取方在查库前取 Version，回填时版本已变化则放弃
type VoteCountCache interface {
	Get(ctx context.Context, ref model.ContentRef) (int64, bool)
	Version(ctx context.Context, ref model.ContentRef) int64
	Fill(ctx context.Context, ref model.ContentRef, version, count int64) bool
	Invalidate(ctx context.Context, ref model.ContentRef)
}

type NoopVoteCache struct{}

func (NoopVoteCache) Get(context.Context, model.ContentRef) (int64, bool) { return 0, false }
func (NoopVoteCache) Version(context.Context, model.ContentRef) int64 { return 0 }
func (NoopVoteCache) Fill(context.Context, model.ContentRef, int64, int64) bool { return false }
func (NoopVoteCache) Invalidate(context.Context, model.ContentRef) {}

type RedisVoteCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisVoteCache(client *redis.Client, ttl time.Duration) *RedisVoteCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisVoteCache{Client: client, TTL: ttl}
}

func voteCacheKey(ref model.ContentRef) string {
	return "learnhub:vote_count:" + ref.String()
}

func (c *RedisVoteCache) Get(ctx context.Context, ref model.ContentRef) (int64, bool) {
	val, err := c.Client.Get(ctx, voteCacheKey(ref)).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Log.Warn("vote cache get failed", zap.String("ref", ref.String()), zap.Error(err))
		}
		monitoring.VoteCacheLookups.WithLabelValues("miss").Inc()
		return 0, false
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		monitoring.VoteCacheLookups.WithLabelValues("miss").Inc()
		return 0, false
	}
	monitoring.VoteCacheLookups.WithLabelValues("hit").Inc()
	return n, true
}

// 版本号比计数保留更久，过期后回到 0 也只会让持有旧版本的回填失败
const voteVersionTTL = 24 * time.Hour

// fillScript 版本号未变时才写入计数
var fillScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if current == false then current = "0" end
if current ~= ARGV[1] then return 0 end
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
return 1
`)

func voteVersionKey(ref model.ContentRef) string {
	return "learnhub:vote_count_version:" + ref.String()
}

func (c *RedisVoteCache) Version(ctx context.Context, ref model.ContentRef) int64 {
	v, err := c.Client.Get(ctx, voteVersionKey(ref)).Int64()
	if err != nil {
		if err != redis.Nil {
			// 取不到版本时用 -1，回填一定失败
			logger.Log.Warn("vote cache version failed", zap.String("ref", ref.String()), zap.Error(err))
			return -1
		}
		return 0
	}
	return v
}

func (c *RedisVoteCache) Fill(ctx context.Context, ref model.ContentRef, version, count int64) bool {
	if version < 0 {
		return false
	}
	res, err := fillScript.Run(ctx, c.Client,
		[]string{voteVersionKey(ref), voteCacheKey(ref)},
		version, count, c.TTL.Milliseconds(),
	).Int64()
	if err != nil {
		logger.Log.Warn("vote cache fill failed", zap.String("ref", ref.String()), zap.Error(err))
		return false
	}
	return res == 1
}

func (c *RedisVoteCache) Invalidate(ctx context.Context, ref model.ContentRef) {
	_, err := c.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, voteVersionKey(ref))
		pipe.Expire(ctx, voteVersionKey(ref), voteVersionTTL)
		pipe.Del(ctx, voteCacheKey(ref))
		return nil
	})
	if err != nil {
		logger.Log.Warn("vote cache invalidate failed", zap.String("ref", ref.String()), zap.Error(err))
	}
}
