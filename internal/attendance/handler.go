package attendance

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

	log "github.com/sirupsen/logrus"
)

const dateLayout = "2006-01-02"

type checkInsRepo interface {
	Add(ctx context.Context, userID int, date time.Time) (*CheckIn, bool, error)
	ListOrderedByDate(ctx context.Context, userID int) ([]CheckIn, error)
}

type usersRepo interface {
	Get(ctx context.Context, id int) (*users.User, error)
}

type CheckInResponse struct {
	CheckIn          *CheckIn `json:"checkIn,omitempty"`
	AlreadyCheckedIn bool     `json:"alreadyCheckedIn"`
}

type ListResponse struct {
	CheckIns []CheckIn `json:"checkIns"`
	Total    int       `json:"total"`
}

type Handler struct {
	repo           checkInsRepo
	users          usersRepo
	analyzer       *Analyzer
	metricsManager *metrics.Manager
}

func NewHandler(repo checkInsRepo, usersRepo usersRepo, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		repo:           repo,
		users:          usersRepo,
		analyzer:       NewAnalyzer(),
		metricsManager: metricsManager,
	}
}

// HandleCheckIn always records for the session user and defaults to
// today, a check-in is a personal "I am at the gym" action.
func (handler *Handler) HandleCheckIn(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.attendance.checkIn")
	defer span.End()

	session, ok := auth.SessionFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	date := time.Now()
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		var err error
		date, err = time.ParseInLocation(dateLayout, dateStr, time.UTC)
		if err != nil {
			http.Error(w, "error, invalid date", http.StatusBadRequest)
			return
		}
	}

	checkIn, created, err := handler.repo.Add(ctx, session.UserID, date)
	if err != nil {
		if errors.Is(err, pkg.ErrStorageUnavailable) {
			log.Errorf("check in, storage unavailable: %s", err)
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}
		log.Errorf("check in for user %d: %s", session.UserID, err)
		http.Error(w, "check in failed", http.StatusInternalServerError)
		return
	}

	if created {
		handler.metricsManager.CounterCheckIns.Inc()
	}

	resp, err := json.Marshal(CheckInResponse{
		CheckIn:          checkIn,
		AlreadyCheckedIn: !created,
	})
	if err != nil {
		log.Errorf("marshal check in response: %s", err)
		http.Error(w, "check in failed", http.StatusInternalServerError)
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, resp, status)
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.attendance.list")
	defer span.End()

	userID, status, err := handler.resolveUserID(ctx, r)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	checkIns, err := handler.listCheckIns(ctx, w, userID)
	if err != nil {
		return
	}

	resp, err := json.Marshal(ListResponse{
		CheckIns: checkIns,
		Total:    len(checkIns),
	})
	if err != nil {
		log.Errorf("marshal check ins: %s", err)
		http.Error(w, "list check ins failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, resp, http.StatusOK)
}

func (handler *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.attendance.stats")
	defer span.End()

	userID, status, err := handler.resolveUserID(ctx, r)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	checkIns, err := handler.listCheckIns(ctx, w, userID)
	if err != nil {
		return
	}

	statsJson, err := json.Marshal(handler.analyzer.Stats(checkIns))
	if err != nil {
		log.Errorf("marshal attendance stats: %s", err)
		http.Error(w, "attendance stats failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, statsJson, http.StatusOK)
}

// resolveUserID: clients read their own attendance, coaches their
// assigned clients', admins anyone's.
func (handler *Handler) resolveUserID(ctx context.Context, r *http.Request) (int, int, error) {
	session, ok := auth.SessionFromContext(ctx)
	if !ok {
		return 0, http.StatusUnauthorized, errors.New("no session")
	}

	requestedUserID := 0
	if userIDStr := r.URL.Query().Get("userId"); userIDStr != "" {
		var err error
		requestedUserID, err = strconv.Atoi(userIDStr)
		if err != nil {
			return 0, http.StatusBadRequest, errors.New("error, user id NaN")
		}
	}

	if requestedUserID == 0 || requestedUserID == session.UserID {
		return session.UserID, http.StatusOK, nil
	}

	switch session.Role {
	case string(users.RoleAdmin):
		return requestedUserID, http.StatusOK, nil
	case string(users.RoleCoach):
		user, err := handler.users.Get(ctx, requestedUserID)
		if err != nil {
			if errors.Is(err, users.ErrUserNotFound) {
				return 0, http.StatusNotFound, errors.New("user not found")
			}
			return 0, http.StatusInternalServerError, err
		}
		if user.CoachID == nil || *user.CoachID != session.UserID {
			return 0, http.StatusForbidden, errors.New("not your client")
		}
		return requestedUserID, http.StatusOK, nil
	default:
		return 0, http.StatusForbidden, errors.New("no can do")
	}
}

func (handler *Handler) listCheckIns(ctx context.Context, w http.ResponseWriter, userID int) ([]CheckIn, error) {
	checkIns, err := handler.repo.ListOrderedByDate(ctx, userID)
	if err != nil {
		if errors.Is(err, pkg.ErrStorageUnavailable) {
			log.Errorf("list check ins, storage unavailable: %s", err)
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return nil, err
		}
		log.Errorf("list check ins for user %d: %s", userID, err)
		http.Error(w, "list check ins failed", http.StatusInternalServerError)
		return nil, err
	}
	return checkIns, nil
}
