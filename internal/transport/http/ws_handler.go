package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"event-quiz-service/internal/app"
	"event-quiz-service/internal/domain"
)

type WSHandler struct {
	service  *app.QuizService
	log      *zap.Logger
	upgrader websocket.Upgrader
	now      func() time.Time
}

func NewWSHandler(service *app.QuizService, log *zap.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		log:     log.Named("ws"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		now: time.Now,
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type submitPayload struct {
	// Answers is a pointer so a missing field can be told apart from [].
	Answers *[]domain.AnswerSubmission `json:"answers"`
}

type timeUpPayload struct {
	SessionID string    `json:"session_id"`
	Deadline  time.Time `json:"deadline"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS runs one quiz attempt over a websocket: the attempt is started on
// connect, the client submits once and the server sends time_up at the
// deadline. The server never submits on the client's behalf.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	event := r.URL.Query().Get("event")
	if email == "" || event == "" {
		http.Error(w, "missing email or event", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := r.Context()
	started, err := h.service.Start(ctx, email, event)
	if err != nil {
		_, body := newErrorBody(err)
		_ = conn.WriteJSON(outboundMessage[errorBody]{Type: "error", Payload: body})
		return
	}

	out := newOutbox(8)
	closeSignals := make(chan struct{})

	go func() {
		defer close(out.done)
		for msg := range out.send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("write failed", zap.String("session_id", started.SessionID), zap.Error(err))
				return
			}
		}
	}()

	out.push(outboundMessage[any]{Type: "started", Payload: started})

	var timerWG sync.WaitGroup
	timerWG.Add(1)
	timer := time.AfterFunc(started.Deadline.Sub(h.now()), func() {
		defer timerWG.Done()
		select {
		case out.send <- outboundMessage[any]{Type: "time_up", Payload: timeUpPayload{SessionID: started.SessionID, Deadline: started.Deadline}}:
		case <-out.done:
		case <-closeSignals:
		}
	})

	h.readLoop(ctx, conn, started.SessionID, out)

	if timer.Stop() {
		timerWG.Done()
	}
	close(closeSignals)
	// A firing time_up callback must leave send before it is closed.
	timerWG.Wait()
	close(out.send)
	<-out.done
}

// outbox feeds the single writer goroutine. done is closed when the writer
// exits, after which pushes are dropped instead of blocking.
type outbox struct {
	send chan outboundMessage[any]
	done chan struct{}
}

func newOutbox(size int) *outbox {
	return &outbox{
		send: make(chan outboundMessage[any], size),
		done: make(chan struct{}),
	}
}

// push reports false once the writer is gone.
func (o *outbox) push(msg outboundMessage[any]) bool {
	select {
	case o.send <- msg:
		return true
	case <-o.done:
		return false
	}
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, sessionID string, out *outbox) {
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			return
		}
		switch inbound.Type {
		case "submit":
			var payload submitPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.Answers == nil {
				if !out.push(outboundMessage[any]{Type: "error", Payload: errorBody{Code: "InvalidArgument", Message: "invalid submit payload: answers must be an array"}}) {
					return
				}
				continue
			}
			res, err := h.service.Submit(ctx, sessionID, *payload.Answers)
			if err != nil {
				_, body := newErrorBody(err)
				if !out.push(outboundMessage[any]{Type: "error", Payload: body}) || body.QuizTaken {
					return
				}
				continue
			}
			out.push(outboundMessage[any]{Type: "result", Payload: res})
			return
		default:
			if !out.push(outboundMessage[any]{Type: "error", Payload: errorBody{Code: "InvalidArgument", Message: "unsupported message type"}}) {
				return
			}
		}
	}
}
