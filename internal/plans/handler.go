package plans

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/coachfit/coachfit/internal/auth"
	"github.com/coachfit/coachfit/internal/telemetry/tracing"
	"github.com/coachfit/coachfit/internal/users"
	"github.com/coachfit/coachfit/pkg"

	log "github.com/sirupsen/logrus"
)

type plansRepo interface {
	Create(ctx context.Context, plan Plan) (*Plan, error)
	List(ctx context.Context, clientID int, planType Type) ([]Plan, error)
	GetActive(ctx context.Context, clientID int, planType Type) (*Plan, error)
}

type usersRepo interface {
	Get(ctx context.Context, id int) (*users.User, error)
}

type ListResponse struct {
	Plans []Plan `json:"plans"`
	Total int    `json:"total"`
}

type Handler struct {
	repo  plansRepo
	users usersRepo
}

func NewHandler(repo plansRepo, usersRepo usersRepo) *Handler {
	return &Handler{
		repo:  repo,
		users: usersRepo,
	}
}

// HandleCreate lets a coach push a new plan version to an assigned client.
func (handler *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plans.create")
	defer span.End()

	session, ok := auth.SessionFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}
	if session.Role != string(users.RoleCoach) && session.Role != string(users.RoleAdmin) {
		http.Error(w, "no can do", http.StatusForbidden)
		return
	}

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var plan Plan
	if err := json.NewDecoder(r.Body).Decode(&plan); err != nil {
		log.Tracef("create plan, unmarshal json params: %s", err)
		http.Error(w, "create plan failed", http.StatusBadRequest)
		return
	}
	plan.CoachID = session.UserID

	if err := plan.Validate(); err != nil {
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

	if session.Role == string(users.RoleCoach) {
		client, err := handler.users.Get(ctx, plan.ClientID)
		if err != nil {
			if errors.Is(err, users.ErrUserNotFound) {
				http.Error(w, "client not found", http.StatusNotFound)
				return
			}
			log.Errorf("create plan, get client %d: %s", plan.ClientID, err)
			http.Error(w, "create plan failed", http.StatusInternalServerError)
			return
		}
		if client.CoachID == nil || *client.CoachID != session.UserID {
			http.Error(w, "not your client", http.StatusForbidden)
			return
		}
	}

	createdPlan, err := handler.repo.Create(ctx, plan)
	if err != nil {
		if errors.Is(err, pkg.ErrStorageUnavailable) {
			log.Errorf("create plan, storage unavailable: %s", err)
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}
		log.Errorf("create plan for client %d: %s", plan.ClientID, err)
		http.Error(w, "create plan failed", http.StatusInternalServerError)
		return
	}

	planJson, err := json.Marshal(createdPlan)
	if err != nil {
		log.Errorf("marshal created plan: %s", err)
		http.Error(w, "create plan failed", http.StatusInternalServerError)
		return
	}

	log.Debugf("plan v%d [%s] created for client %d", createdPlan.Version, createdPlan.Type, createdPlan.ClientID)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, planJson, http.StatusCreated)
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plans.list")
	defer span.End()

	clientID, status, err := handler.resolveClientID(ctx, r)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	planType := Type(r.URL.Query().Get("type"))
	if planType != "" && !planType.Valid() {
		http.Error(w, "error, invalid plan type", http.StatusBadRequest)
		return
	}

	plans, err := handler.repo.List(ctx, clientID, planType)
	if err != nil {
		if errors.Is(err, pkg.ErrStorageUnavailable) {
			log.Errorf("list plans, storage unavailable: %s", err)
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}
		log.Errorf("list plans for client %d: %s", clientID, err)
		http.Error(w, "list plans failed", http.StatusInternalServerError)
		return
	}

	resp, err := json.Marshal(ListResponse{
		Plans: plans,
		Total: len(plans),
	})
	if err != nil {
		log.Errorf("marshal plans: %s", err)
		http.Error(w, "list plans failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, resp, http.StatusOK)
}

func (handler *Handler) HandleGetActive(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plans.getActive")
	defer span.End()

	clientID, status, err := handler.resolveClientID(ctx, r)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	planType := Type(r.URL.Query().Get("type"))
	if !planType.Valid() {
		http.Error(w, "error, invalid plan type", http.StatusBadRequest)
		return
	}

	plan, err := handler.repo.GetActive(ctx, clientID, planType)
	if err != nil {
		if errors.Is(err, ErrPlanNotFound) {
			http.Error(w, "no active plan", http.StatusNotFound)
			return
		}
		log.Errorf("get active plan for client %d: %s", clientID, err)
		http.Error(w, "get active plan failed", http.StatusInternalServerError)
		return
	}

	planJson, err := json.Marshal(plan)
	if err != nil {
		log.Errorf("marshal plan: %s", err)
		http.Error(w, "get active plan failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, planJson, http.StatusOK)
}

// resolveClientID: clients read their own plans, coaches their assigned
// clients', admins anyone's.
func (handler *Handler) resolveClientID(ctx context.Context, r *http.Request) (int, int, error) {
	session, ok := auth.SessionFromContext(ctx)
	if !ok {
		return 0, http.StatusUnauthorized, errors.New("no session")
	}

	requestedClientID := 0
	if clientIDStr := r.URL.Query().Get("clientId"); clientIDStr != "" {
		var err error
		requestedClientID, err = strconv.Atoi(clientIDStr)
		if err != nil {
			return 0, http.StatusBadRequest, errors.New("error, client id NaN")
		}
	}

	if requestedClientID == 0 || requestedClientID == session.UserID {
		return session.UserID, http.StatusOK, nil
	}

	switch session.Role {
	case string(users.RoleAdmin):
		return requestedClientID, http.StatusOK, nil
	case string(users.RoleCoach):
		client, err := handler.users.Get(ctx, requestedClientID)
		if err != nil {
			if errors.Is(err, users.ErrUserNotFound) {
				return 0, http.StatusNotFound, errors.New("client not found")
			}
			return 0, http.StatusInternalServerError, err
		}
		if client.CoachID == nil || *client.CoachID != session.UserID {
			return 0, http.StatusForbidden, errors.New("not your client")
		}
		return requestedClientID, http.StatusOK, nil
	default:
		return 0, http.StatusForbidden, errors.New("no can do")
	}
}
