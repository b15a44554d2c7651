package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"event-quiz-service/internal/app"
	"event-quiz-service/internal/domain"
)

// QuestionCache caches question content in Redis (hash per question) and falls
// back to the backing bank on cache miss:
//
//	HSET quiz:question:{id} event .. text .. options [..] correct 2 points 10 ..
//
// Listing active questions always goes to the bank so the sampler sees fresh
// activation flags.
type QuestionCache struct {
	client redis.UniversalClient
	bank   app.QuestionBank
	ttl    time.Duration
	sf     singleflight.Group
	rndMu  sync.Mutex
	rnd    *rand.Rand
}

func NewQuestionCache(client redis.UniversalClient, bank app.QuestionBank, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		client: client,
		bank:   bank,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

type cachedQuestion struct {
	Event       string `redis:"event"`
	Text        string `redis:"text"`
	Options     string `redis:"options"`
	Correct     int    `redis:"correct"`
	Explanation string `redis:"explanation"`
	Difficulty  string `redis:"difficulty"`
	Category    string `redis:"category"`
	Points      int    `redis:"points"`
	TimeLimit   int    `redis:"time_limit"`
	Active      bool   `redis:"active"`
}

func (c *QuestionCache) ActiveQuestions(ctx context.Context, event domain.Event) ([]domain.Question, error) {
	return c.bank.ActiveQuestions(ctx, event)
}

func (c *QuestionCache) GetQuestion(ctx context.Context, id string) (domain.Question, error) {
	if q, ok := c.lookup(ctx, id); ok {
		return q, nil
	}

	result, err, _ := c.sf.Do(id, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if q, ok := c.lookup(ctx, id); ok {
			return q, nil
		}

		q, err := c.bank.GetQuestion(ctx, id)
		if err != nil {
			return domain.Question{}, err
		}
		// Best effort: a failed fill only costs another bank read.
		_ = c.store(ctx, q)
		return q, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

// Invalidate drops the cached copy of a question.
func (c *QuestionCache) Invalidate(ctx context.Context, id string) error {
	return c.client.Del(ctx, questionKey(id)).Err()
}

func (c *QuestionCache) lookup(ctx context.Context, id string) (domain.Question, bool) {
	res := c.client.HGetAll(ctx, questionKey(id))
	if res.Err() != nil || len(res.Val()) == 0 {
		return domain.Question{}, false
	}
	var cached cachedQuestion
	if err := res.Scan(&cached); err != nil {
		return domain.Question{}, false
	}
	var options []string
	if err := json.Unmarshal([]byte(cached.Options), &options); err != nil {
		return domain.Question{}, false
	}
	return domain.Question{
		ID:            id,
		Event:         domain.Event(cached.Event),
		Text:          cached.Text,
		Options:       options,
		CorrectOption: cached.Correct,
		Explanation:   cached.Explanation,
		Difficulty:    cached.Difficulty,
		Category:      cached.Category,
		Points:        cached.Points,
		TimeLimit:     cached.TimeLimit,
		Active:        cached.Active,
	}, true
}

func (c *QuestionCache) store(ctx context.Context, q domain.Question) error {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	key := questionKey(q.ID)
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, cachedQuestion{
		Event:       string(q.Event),
		Text:        q.Text,
		Options:     string(options),
		Correct:     q.CorrectOption,
		Explanation: q.Explanation,
		Difficulty:  q.Difficulty,
		Category:    q.Category,
		Points:      q.Points,
		TimeLimit:   q.TimeLimit,
		Active:      q.Active,
	})
	if ttl := c.ttlWithJitter(); ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("cache question %s: %w", q.ID, err)
	}
	return nil
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

func questionKey(id string) string {
	return "quiz:question:" + id
}
