package cli

import (
	"testing"

	"event-quiz-service/internal/domain"
)

func TestDemoData(t *testing.T) {
	participants, questions := demoData()
	if len(participants) != len(domain.Events) {
		t.Fatalf("expected one participant per event, got %d", len(participants))
	}

	perEvent := make(map[domain.Event]int)
	ids := make(map[string]bool)
	for _, q := range questions {
		if ids[q.ID] {
			t.Fatalf("duplicate question id %s", q.ID)
		}
		ids[q.ID] = true
		if q.CorrectOption < 0 || q.CorrectOption >= len(q.Options) {
			t.Fatalf("question %s has out of range answer", q.ID)
		}
		perEvent[q.Event]++
	}
	for _, e := range domain.Events {
		if perEvent[e] < 10 {
			t.Fatalf("event %s has only %d questions", e, perEvent[e])
		}
	}
}
