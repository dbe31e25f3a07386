package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/coachfit/coachfit/internal/auth"
	"github.com/coachfit/coachfit/internal/telemetry/metrics"
	"github.com/coachfit/coachfit/internal/telemetry/tracing"
	"github.com/coachfit/coachfit/internal/users"
	"github.com/coachfit/coachfit/pkg"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
	notifyWaitTimeout   = 25 * time.Second
)

type messagesRepo interface {
	Add(ctx context.Context, msg Message) (*Message, error)
	ListBefore(ctx context.Context, chatID string, before time.Time, limit int) ([]Message, error)
}

type usersRepo interface {
	Get(ctx context.Context, id int) (*users.User, error)
}

type messagesNotifier interface {
	Publish(ctx context.Context, msg Message) error
	Wait(ctx context.Context, chatID string, lastSeen uuid.UUID) (*Message, error)
}

type HistoryResponse struct {
	Messages []Message `json:"messages"`
	Total    int       `json:"total"`
}

type Handler struct {
	repo     messagesRepo
	users    usersRepo
	notifier messagesNotifier
	metrics  *metrics.Manager
}

func NewHandler(repo messagesRepo, usersRepo usersRepo, notifier messagesNotifier, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		repo:     repo,
		users:    usersRepo,
		notifier: notifier,
		metrics:  metricsManager,
	}
}

// HandleSend stores a message and fans it out to the other participant.
func (handler *Handler) HandleSend(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.chat.send")
	defer span.End()

	session, ok := auth.SessionFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}
	if session.Role == string(users.RoleAdmin) {
		// admins can read chats but not speak in them
		http.Error(w, "no can do", http.StatusForbidden)
		return
	}

	chatID, status, err := handler.resolveChat(ctx, session, r)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	var params struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		log.Tracef("send chat message, unmarshal json params: %s", err)
		http.Error(w, "send message failed", http.StatusBadRequest)
		return
	}

	msg := Message{
		ChatID:   chatID,
		SenderID: session.UserID,
		Text:     params.Text,
	}
	if err := msg.Validate(); err != nil {
		var validationErrs pkg.ValidationErrors
		if errors.As(err, &validationErrs) {
			fieldsJson, err := json.Marshal(validationErrs.FieldMap())
			if err == nil {
				pkg.WriteResponseBytes(w, pkg.ContentType.JSON, fieldsJson, http.StatusBadRequest)
				return
			}
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	stored, err := handler.repo.Add(ctx, msg)
	if err != nil {
		if errors.Is(err, pkg.ErrStorageUnavailable) {
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}
		log.Errorf("store chat message [%s]: %s", chatID, err)
		http.Error(w, "send message failed", http.StatusInternalServerError)
		return
	}

	// best effort: readers catch up from the database either way
	if err := handler.notifier.Publish(ctx, *stored); err != nil {
		log.Errorf("publish chat message %s: %s", stored.ID, err)
	}

	handler.metrics.CounterChatMessages.Inc()

	msgJson, err := json.Marshal(stored)
	if err != nil {
		log.Errorf("marshal chat message: %s", err)
		http.Error(w, "send message failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, msgJson, http.StatusCreated)
}

// HandleHistory pages through the chat backwards from ?before (default:
// now), returning messages in ascending order.
func (handler *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.chat.history")
	defer span.End()

	session, ok := auth.SessionFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	chatID, status, err := handler.resolveChat(ctx, session, r)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	before := time.Now()
	if beforeStr := r.URL.Query().Get("before"); beforeStr != "" {
		before, err = time.Parse(time.RFC3339, beforeStr)
		if err != nil {
			http.Error(w, "error, invalid before timestamp", http.StatusBadRequest)
			return
		}
	}

	limit := defaultHistoryLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			http.Error(w, "error, limit NaN", http.StatusBadRequest)
			return
		}
		if limit > maxHistoryLimit {
			limit = maxHistoryLimit
		}
	}

	messages, err := handler.repo.ListBefore(ctx, chatID, before, limit)
	if err != nil {
		if errors.Is(err, pkg.ErrStorageUnavailable) {
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}
		log.Errorf("list chat messages [%s]: %s", chatID, err)
		http.Error(w, "get history failed", http.StatusInternalServerError)
		return
	}

	resp, err := json.Marshal(HistoryResponse{
		Messages: messages,
		Total:    len(messages),
	})
	if err != nil {
		log.Errorf("marshal chat history: %s", err)
		http.Error(w, "get history failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, resp, http.StatusOK)
}

// HandleNotify long-polls for the next message in the chat. Responds 204
// when nothing arrives within the wait window.
func (handler *Handler) HandleNotify(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.chat.notify")
	defer span.End()

	session, ok := auth.SessionFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	chatID, status, err := handler.resolveChat(ctx, session, r)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	lastSeen := uuid.Nil
	if lastSeenStr := r.URL.Query().Get("lastSeenId"); lastSeenStr != "" {
		lastSeen, err = uuid.Parse(lastSeenStr)
		if err != nil {
			http.Error(w, "error, invalid last seen id", http.StatusBadRequest)
			return
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, notifyWaitTimeout)
	defer cancel()

	msg, err := handler.notifier.Wait(waitCtx, chatID, lastSeen)
	if err != nil {
		if errors.Is(err, ErrNoNewMessages) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		log.Errorf("wait for chat message [%s]: %s", chatID, err)
		http.Error(w, "notify failed", http.StatusInternalServerError)
		return
	}

	msgJson, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("marshal chat message: %s", err)
		http.Error(w, "notify failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, msgJson, http.StatusOK)
}

// resolveChat figures out which client-coach chat the caller means and
// checks they are allowed in it. Clients chat with their assigned coach,
// coaches pick the client via ?clientId, admins name the pair explicitly.
func (handler *Handler) resolveChat(ctx context.Context, session auth.Session, r *http.Request) (string, int, error) {
	switch session.Role {
	case string(users.RoleClient):
		client, err := handler.users.Get(ctx, session.UserID)
		if err != nil {
			return "", http.StatusInternalServerError, errors.New("resolve chat failed")
		}
		if client.CoachID == nil {
			return "", http.StatusForbidden, errors.New("no coach assigned")
		}
		return MakeChatID(session.UserID, *client.CoachID), http.StatusOK, nil

	case string(users.RoleCoach):
		clientID, err := strconv.Atoi(r.URL.Query().Get("clientId"))
		if err != nil {
			return "", http.StatusBadRequest, errors.New("error, client id NaN")
		}
		client, err := handler.users.Get(ctx, clientID)
		if err != nil {
			if errors.Is(err, users.ErrUserNotFound) {
				return "", http.StatusNotFound, errors.New("client not found")
			}
			return "", http.StatusInternalServerError, errors.New("resolve chat failed")
		}
		if client.CoachID == nil || *client.CoachID != session.UserID {
			return "", http.StatusForbidden, errors.New("not your client")
		}
		return MakeChatID(clientID, session.UserID), http.StatusOK, nil

	case string(users.RoleAdmin):
		clientID, err := strconv.Atoi(r.URL.Query().Get("clientId"))
		if err != nil {
			return "", http.StatusBadRequest, errors.New("error, client id NaN")
		}
		coachID, err := strconv.Atoi(r.URL.Query().Get("coachId"))
		if err != nil {
			return "", http.StatusBadRequest, errors.New("error, coach id NaN")
		}
		return MakeChatID(clientID, coachID), http.StatusOK, nil

	default:
		return "", http.StatusForbidden, errors.New("no can do")
	}
}
