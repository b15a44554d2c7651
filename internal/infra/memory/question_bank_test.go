package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"event-quiz-service/internal/domain"
)

func TestQuestionCacheCaches(t *testing.T) {
	bank := &countingBank{QuestionBank: NewQuestionBank(sampleQuestion())}
	cache := NewQuestionCache(bank, time.Minute)

	if _, err := cache.GetQuestion(context.Background(), "q1"); err != nil {
		t.Fatalf("get question: %v", err)
	}
	if bank.calls != 1 {
		t.Fatalf("expected bank once, got %d", bank.calls)
	}

	if _, err := cache.GetQuestion(context.Background(), "q1"); err != nil {
		t.Fatalf("get question 2: %v", err)
	}
	if bank.calls != 1 {
		t.Fatalf("expected cache hit, bank calls %d", bank.calls)
	}

	if _, err := cache.GetQuestion(context.Background(), "missing"); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestQuestionBankFiltersInactive(t *testing.T) {
	inactive := sampleQuestion()
	inactive.ID = "q2"
	inactive.Active = false
	other := sampleQuestion()
	other.ID = "q3"
	other.Event = domain.EventIdeaArena

	bank := NewQuestionBank(sampleQuestion(), inactive, other)
	got, err := bank.ActiveQuestions(context.Background(), domain.EventInnovWEB)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if len(got) != 1 || got[0].ID != "q1" {
		t.Fatalf("expected only q1, got %+v", got)
	}

	counts, _ := bank.CountByEvent(context.Background())
	if counts[domain.EventInnovWEB] != 2 || counts[domain.EventIdeaArena] != 1 {
		t.Fatalf("unexpected counts %+v", counts)
	}
}

type countingBank struct {
	*QuestionBank
	calls int
}

func (b *countingBank) GetQuestion(ctx context.Context, id string) (domain.Question, error) {
	b.calls++
	return b.QuestionBank.GetQuestion(ctx, id)
}

func sampleQuestion() domain.Question {
	return domain.Question{
		ID:            "q1",
		Event:         domain.EventInnovWEB,
		Text:          "What is 2 + 2?",
		Options:       []string{"3", "4", "5", "22"},
		CorrectOption: 1,
		Points:        10,
		Active:        true,
	}
}
