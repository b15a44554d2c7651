package app

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"event-quiz-service/internal/domain"
)

// QuestionSampler draws a duplicate-free random subset of an event's active questions.
type QuestionSampler struct {
	bank QuestionBank

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewQuestionSampler seeds the sampler's random source. A zero seed uses the clock.
func NewQuestionSampler(bank QuestionBank, seed int64) *QuestionSampler {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &QuestionSampler{
		bank: bank,
		rnd:  rand.New(rand.NewSource(seed)),
	}
}

// Sample returns up to count distinct active questions for event. Fewer are
// returned when the pool is smaller; an empty pool is ErrNoQuestionsAvailable.
func (s *QuestionSampler) Sample(ctx context.Context, event domain.Event, count int) ([]domain.Question, error) {
	if !event.Valid() {
		return nil, domain.ErrInvalidEvent
	}
	if count <= 0 {
		return nil, domain.ErrInvalidCount
	}

	all, err := s.bank.ActiveQuestions(ctx, event)
	if err != nil {
		return nil, fmt.Errorf("list active questions: %w", err)
	}

	pool := make([]domain.Question, 0, len(all))
	seen := make(map[string]struct{}, len(all))
	for _, q := range all {
		if !q.Active || q.Event != event {
			continue
		}
		if _, dup := seen[q.ID]; dup {
			continue
		}
		seen[q.ID] = struct{}{}
		pool = append(pool, q)
	}
	if len(pool) == 0 {
		return nil, domain.ErrNoQuestionsAvailable
	}

	// Stores return rows in arbitrary order; sorting keeps a seeded run reproducible.
	sort.Slice(pool, func(i, j int) bool { return pool[i].ID < pool[j].ID })

	k := count
	if k > len(pool) {
		k = len(pool)
	}

	s.mu.Lock()
	for i := 0; i < k; i++ {
		j := i + s.rnd.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	s.mu.Unlock()

	return pool[:k:k], nil
}
