package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"event-quiz-service/internal/app"
	"event-quiz-service/internal/domain"
)

// QuestionBank is an in-memory question store (useful for tests/demos).
type QuestionBank struct {
	mu        sync.RWMutex
	questions map[string]domain.Question
}

func NewQuestionBank(questions ...domain.Question) *QuestionBank {
	b := &QuestionBank{questions: make(map[string]domain.Question, len(questions))}
	for _, q := range questions {
		b.questions[q.ID] = q
	}
	return b
}

// Put adds or replaces a question.
func (b *QuestionBank) Put(q domain.Question) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.questions[q.ID] = q
}

// Delete removes a question; sessions that sampled it keep the reference.
func (b *QuestionBank) Delete(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.questions, id)
}

func (b *QuestionBank) ActiveQuestions(_ context.Context, event domain.Event) ([]domain.Question, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]domain.Question, 0, len(b.questions))
	for _, q := range b.questions {
		if q.Active && q.Event == event {
			out = append(out, q)
		}
	}
	return out, nil
}

func (b *QuestionBank) GetQuestion(_ context.Context, id string) (domain.Question, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if q, ok := b.questions[id]; ok {
		return q, nil
	}
	return domain.Question{}, domain.ErrQuestionNotFound
}

func (b *QuestionBank) CountByEvent(_ context.Context) (map[domain.Event]int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[domain.Event]int)
	for _, q := range b.questions {
		out[q.Event]++
	}
	return out, nil
}

// QuestionCache caches single-question lookups with TTL to avoid repeated DB hits
// while scoring. Listing active questions always goes to the backing bank.
type QuestionCache struct {
	bank  app.QuestionBank
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group
	rnd   *rand.Rand
	rndMu sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedQuestion
}

type cachedQuestion struct {
	question  domain.Question
	expiresAt time.Time
}

func NewQuestionCache(bank app.QuestionBank, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		bank:  bank,
		ttl:   ttl,
		clock: time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache: make(map[string]cachedQuestion),
	}
}

func (c *QuestionCache) ActiveQuestions(ctx context.Context, event domain.Event) ([]domain.Question, error) {
	return c.bank.ActiveQuestions(ctx, event)
}

func (c *QuestionCache) GetQuestion(ctx context.Context, id string) (domain.Question, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[id]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.question, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(id, func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[id]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.question, nil
		}
		c.mu.RUnlock()

		q, err := c.bank.GetQuestion(ctx, id)
		if err != nil {
			return domain.Question{}, err
		}

		c.mu.Lock()
		c.cache[id] = cachedQuestion{
			question:  q,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return q, nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return result.(domain.Question), nil
}

func (c *QuestionCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
