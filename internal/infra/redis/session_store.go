package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"event-quiz-service/internal/domain"
)

const maxTxRetries = 5

// SessionStore is a Redis implementation of app.SessionRepository.
//
//	quiz:session:{id}                  JSON-encoded session
//	quiz:participant:{id}:live         id of the participant's in_progress or completed session
//
// Insert writes the live key and the body in one MULTI under WATCH; the live
// key is released on abandon. Status transitions run under WATCH so a
// concurrent writer aborts the transaction.
type SessionStore struct {
	client redis.UniversalClient
}

func NewSessionStore(client redis.UniversalClient) *SessionStore {
	return &SessionStore{client: client}
}

func (s *SessionStore) Insert(ctx context.Context, session domain.QuizSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	guard := liveKey(session.ParticipantID)
	key := sessionKey(session.ID)
	txf := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, guard, key).Result()
		if err != nil {
			return fmt.Errorf("check live session: %w", err)
		}
		if n > 0 {
			return domain.ErrSessionCollision
		}
		// Guard and body land together or not at all.
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, guard, session.ID, 0)
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		return err
	}

	err = s.client.Watch(ctx, txf, guard, key)
	if errors.Is(err, redis.TxFailedErr) {
		// Someone claimed the participant or the id between WATCH and EXEC.
		return domain.ErrSessionCollision
	}
	if err != nil && !errors.Is(err, domain.ErrSessionCollision) {
		return fmt.Errorf("store session: %w", err)
	}
	return err
}

func (s *SessionStore) Get(ctx context.Context, id string) (domain.QuizSession, error) {
	return s.read(ctx, s.client, id)
}

func (s *SessionStore) FindLive(ctx context.Context, participantID string) (domain.QuizSession, error) {
	guard := liveKey(participantID)
	id, err := s.client.Get(ctx, guard).Result()
	if errors.Is(err, redis.Nil) {
		return domain.QuizSession{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.QuizSession{}, fmt.Errorf("get live session: %w", err)
	}
	session, err := s.read(ctx, s.client, id)
	if errors.Is(err, domain.ErrSessionNotFound) {
		// The guard outlived its session; drop it so the participant can start.
		if err := releaseDangling.Run(ctx, s.client, []string{guard, sessionKey(id)}, id).Err(); err != nil {
			return domain.QuizSession{}, fmt.Errorf("release dangling live session: %w", err)
		}
	}
	return session, err
}

// releaseDangling deletes the guard only while it still names ARGV[1] and
// that session body is missing.
var releaseDangling = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] and redis.call("EXISTS", KEYS[2]) == 0 then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (s *SessionStore) Complete(ctx context.Context, id string, c domain.Completion) error {
	return s.transition(ctx, id, func(session *domain.QuizSession, _ redis.Pipeliner) {
		c.Apply(session)
	})
}

func (s *SessionStore) Abandon(ctx context.Context, id string, at time.Time) error {
	return s.transition(ctx, id, func(session *domain.QuizSession, pipe redis.Pipeliner) {
		session.Status = domain.StatusAbandoned
		session.EndTime = &at
		pipe.Del(ctx, liveKey(session.ParticipantID))
	})
}

// transition applies fn to an in_progress session inside a WATCH/MULTI block.
// A session that is no longer in progress yields ErrStaleTransition.
func (s *SessionStore) transition(ctx context.Context, id string, fn func(*domain.QuizSession, redis.Pipeliner)) error {
	key := sessionKey(id)
	txf := func(tx *redis.Tx) error {
		session, err := s.read(ctx, tx, id)
		if err != nil {
			return err
		}
		if session.Status != domain.StatusInProgress {
			return domain.ErrStaleTransition
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			fn(&session, pipe)
			payload, err := json.Marshal(session)
			if err != nil {
				return fmt.Errorf("encode session: %w", err)
			}
			pipe.Set(ctx, key, payload, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			// Watched key changed; re-read and decide again.
			continue
		}
		return err
	}
	return domain.ErrStaleTransition
}

func (s *SessionStore) read(ctx context.Context, c getter, id string) (domain.QuizSession, error) {
	payload, err := c.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.QuizSession{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.QuizSession{}, fmt.Errorf("get session: %w", err)
	}
	var session domain.QuizSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return domain.QuizSession{}, fmt.Errorf("decode session %s: %w", id, err)
	}
	return session, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func sessionKey(id string) string {
	return "quiz:session:" + id
}

func liveKey(participantID string) string {
	return "quiz:participant:" + participantID + ":live"
}
