package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	apperr "github.com/yungbote/quest-backend/internal/pkg/errors"
	"github.com/yungbote/quest-backend/internal/platform/logger"
)

// StoryLocker serializes turns of one story. Lock fails with ErrStoryBusy
// when the story stays held for longer than the configured wait.
type StoryLocker interface {
	Lock(ctx context.Context, storyID uuid.UUID) (unlock func(), err error)
}

type localLocker struct {
	wait  time.Duration
	mu    sync.Mutex
	slots map[uuid.UUID]*lockSlot
}

type lockSlot struct {
	sem  chan struct{}
	refs int
}

// NewLocalLocker locks within this process only.
func NewLocalLocker(wait time.Duration) StoryLocker {
	return &localLocker{wait: wait, slots: map[uuid.UUID]*lockSlot{}}
}

func (l *localLocker) Lock(ctx context.Context, storyID uuid.UUID) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[storyID]
	if !ok {
		slot = &lockSlot{sem: make(chan struct{}, 1)}
		l.slots[storyID] = slot
	}
	slot.refs++
	l.mu.Unlock()

	release := func() {
		l.mu.Lock()
		slot.refs--
		if slot.refs == 0 {
			delete(l.slots, storyID)
		}
		l.mu.Unlock()
	}

	if err := acquire(ctx, slot.sem, l.wait); err != nil {
		release()
		return nil, err
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.sem
			release()
		})
	}, nil
}

func acquire(ctx context.Context, sem chan struct{}, wait time.Duration) error {
	select {
	case sem <- struct{}{}:
		return nil
	default:
	}
	if wait <= 0 {
		return apperr.ErrStoryBusy
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case sem <- struct{}{}:
		return nil
	case <-t.C:
		return apperr.ErrStoryBusy
	case <-ctx.Done():
		return ctx.Err()
	}
}

const redisLockPrefix = "quest:story-lock:"

// compare-and-delete so a lock that expired and was re-taken is left alone
var redisUnlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisLocker struct {
	log  *logger.Logger
	rdb  redis.UniversalClient
	ttl  time.Duration
	wait time.Duration
	poll time.Duration
}

// NewRedisLocker locks across instances with SET NX PX. ttl must outlast a turn.
func NewRedisLocker(log *logger.Logger, rdb redis.UniversalClient, ttl, wait time.Duration) StoryLocker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &redisLocker{
		log:  log.With("component", "RedisStoryLocker"),
		rdb:  rdb,
		ttl:  ttl,
		wait: wait,
		poll: 50 * time.Millisecond,
	}
}

func (l *redisLocker) Lock(ctx context.Context, storyID uuid.UUID) (func(), error) {
	key := redisLockPrefix + storyID.String()
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("story lock: %w", err)
		}
		if ok {
			break
		}
		if !time.Now().Before(deadline) {
			return nil, apperr.ErrStoryBusy
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.poll):
		}
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := redisUnlockScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				l.log.Warn("Story unlock failed; lock expires by TTL", "story_id", storyID, "error", err)
			}
		})
	}, nil
}
