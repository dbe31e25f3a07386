package coaching

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

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type DirectoryResponse struct {
	Coaches []CoachProfile `json:"coaches"`
	Total   int            `json:"total"`
}

type RequestsResponse struct {
	Requests []Request `json:"requests"`
	Total    int       `json:"total"`
}

type directoryRepo interface {
	UpsertProfile(ctx context.Context, profile CoachProfile) (*CoachProfile, error)
	GetProfile(ctx context.Context, userID int) (*CoachProfile, error)
	ListProfiles(ctx context.Context) ([]CoachProfile, error)
	ListInbox(ctx context.Context, coachID int) ([]Request, error)
	ListByClient(ctx context.Context, clientID int) ([]Request, error)
}

type Handler struct {
	repo    directoryRepo
	service *Service
}

func NewHandler(repo directoryRepo, service *Service) *Handler {
	return &Handler{
		repo:    repo,
		service: service,
	}
}

// HandleListCoaches serves the public marketplace directory.
func (handler *Handler) HandleListCoaches(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.coaching.listCoaches")
	defer span.End()

	profiles, err := handler.repo.ListProfiles(ctx)
	if err != nil {
		if errors.Is(err, pkg.ErrStorageUnavailable) {
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}
		log.Errorf("list coaches: %s", err)
		http.Error(w, "list coaches failed", http.StatusInternalServerError)
		return
	}

	resp, err := json.Marshal(DirectoryResponse{
		Coaches: profiles,
		Total:   len(profiles),
	})
	if err != nil {
		log.Errorf("marshal coaches: %s", err)
		http.Error(w, "list coaches failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, resp, http.StatusOK)
}

func (handler *Handler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.coaching.getProfile")
	defer span.End()

	vars := mux.Vars(r)
	coachID, err := strconv.Atoi(vars["id"])
	if err != nil {
		http.Error(w, "error, coach id NaN", http.StatusBadRequest)
		return
	}

	profile, err := handler.repo.GetProfile(ctx, coachID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			http.Error(w, "coach profile not found", http.StatusNotFound)
			return
		}
		log.Errorf("get coach profile %d: %s", coachID, err)
		http.Error(w, "get coach profile failed", http.StatusInternalServerError)
		return
	}

	profileJson, err := json.Marshal(profile)
	if err != nil {
		log.Errorf("marshal coach profile: %s", err)
		http.Error(w, "get coach profile failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, profileJson, http.StatusOK)
}

// HandleUpsertProfile lets a coach create or update their own directory entry.
func (handler *Handler) HandleUpsertProfile(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.coaching.upsertProfile")
	defer span.End()

	session, ok := auth.SessionFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}
	if session.Role != string(users.RoleCoach) {
		http.Error(w, "no can do", http.StatusForbidden)
		return
	}

	var profile CoachProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		log.Tracef("upsert coach profile, unmarshal json params: %s", err)
		http.Error(w, "upsert coach profile failed", http.StatusBadRequest)
		return
	}
	profile.UserID = session.UserID

	if err := profile.Validate(); err != nil {
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

	saved, err := handler.repo.UpsertProfile(ctx, profile)
	if err != nil {
		if errors.Is(err, pkg.ErrStorageUnavailable) {
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}
		log.Errorf("upsert coach profile %d: %s", session.UserID, err)
		http.Error(w, "upsert coach profile failed", http.StatusInternalServerError)
		return
	}

	profileJson, err := json.Marshal(saved)
	if err != nil {
		log.Errorf("marshal coach profile: %s", err)
		http.Error(w, "upsert coach profile failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, profileJson, http.StatusOK)
}

// HandleSendRequest creates a pending coaching request from the client.
func (handler *Handler) HandleSendRequest(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.coaching.sendRequest")
	defer span.End()

	session, ok := auth.SessionFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}
	if session.Role != string(users.RoleClient) {
		http.Error(w, "only clients can request coaching", http.StatusForbidden)
		return
	}

	var params struct {
		CoachID int    `json:"coachId"`
		Note    string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		log.Tracef("send coaching request, unmarshal json params: %s", err)
		http.Error(w, "send coaching request failed", http.StatusBadRequest)
		return
	}
	if params.CoachID == 0 {
		http.Error(w, "error, coach id not set", http.StatusBadRequest)
		return
	}

	req, err := handler.service.SendRequest(ctx, session.UserID, params.CoachID, params.Note)
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyAssigned),
			errors.Is(err, ErrOpenRequestExists),
			errors.Is(err, ErrNotAccepting):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, ErrNotACoach):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, pkg.ErrStorageUnavailable):
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		default:
			log.Errorf("send coaching request, client %d: %s", session.UserID, err)
			http.Error(w, "send coaching request failed", http.StatusInternalServerError)
		}
		return
	}

	reqJson, err := json.Marshal(req)
	if err != nil {
		log.Errorf("marshal coaching request: %s", err)
		http.Error(w, "send coaching request failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, reqJson, http.StatusCreated)
}

// HandleListRequests shows a coach their inbox and a client their own
// request history.
func (handler *Handler) HandleListRequests(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.coaching.listRequests")
	defer span.End()

	session, ok := auth.SessionFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	var requests []Request
	var err error
	switch session.Role {
	case string(users.RoleCoach):
		requests, err = handler.repo.ListInbox(ctx, session.UserID)
	case string(users.RoleClient):
		requests, err = handler.repo.ListByClient(ctx, session.UserID)
	default:
		http.Error(w, "no can do", http.StatusForbidden)
		return
	}
	if err != nil {
		if errors.Is(err, pkg.ErrStorageUnavailable) {
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}
		log.Errorf("list coaching requests for %d: %s", session.UserID, err)
		http.Error(w, "list coaching requests failed", http.StatusInternalServerError)
		return
	}

	resp, err := json.Marshal(RequestsResponse{
		Requests: requests,
		Total:    len(requests),
	})
	if err != nil {
		log.Errorf("marshal coaching requests: %s", err)
		http.Error(w, "list coaching requests failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, resp, http.StatusOK)
}

func (handler *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.coaching.accept")
	defer span.End()

	session, requestID, ok := handler.sessionAndRequestID(w, r)
	if !ok {
		return
	}
	if session.Role != string(users.RoleCoach) {
		http.Error(w, "no can do", http.StatusForbidden)
		return
	}

	req, err := handler.service.Accept(ctx, session.UserID, requestID)
	if err != nil {
		handler.writeLifecycleErr(w, err, "accept")
		return
	}

	reqJson, err := json.Marshal(req)
	if err != nil {
		log.Errorf("marshal coaching request: %s", err)
		http.Error(w, "accept request failed", http.StatusInternalServerError)
		return
	}

	log.Debugf("coach %d accepted request %s", session.UserID, requestID)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, reqJson, http.StatusOK)
}

func (handler *Handler) HandleDecline(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.coaching.decline")
	defer span.End()

	session, requestID, ok := handler.sessionAndRequestID(w, r)
	if !ok {
		return
	}
	if session.Role != string(users.RoleCoach) {
		http.Error(w, "no can do", http.StatusForbidden)
		return
	}

	if err := handler.service.Decline(ctx, session.UserID, requestID); err != nil {
		handler.writeLifecycleErr(w, err, "decline")
		return
	}

	pkg.WriteTextResponseOK(w, "declined")
}

func (handler *Handler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.coaching.cancel")
	defer span.End()

	session, requestID, ok := handler.sessionAndRequestID(w, r)
	if !ok {
		return
	}

	if err := handler.service.Cancel(ctx, session.UserID, requestID); err != nil {
		handler.writeLifecycleErr(w, err, "cancel")
		return
	}

	pkg.WriteTextResponseOK(w, "cancelled")
}

// HandleUnassign breaks a client-coach link. Allowed for the client's
// assigned coach and for admins.
func (handler *Handler) HandleUnassign(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.coaching.unassign")
	defer span.End()

	session, ok := auth.SessionFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	var params struct {
		ClientID int `json:"clientId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil || params.ClientID == 0 {
		http.Error(w, "error, client id not set", http.StatusBadRequest)
		return
	}

	switch session.Role {
	case string(users.RoleAdmin):
		// admin may unlink anyone
	case string(users.RoleCoach):
		client, err := handler.service.users.Get(ctx, params.ClientID)
		if err != nil {
			if errors.Is(err, users.ErrUserNotFound) {
				http.Error(w, "client not found", http.StatusNotFound)
				return
			}
			log.Errorf("unassign, get client %d: %s", params.ClientID, err)
			http.Error(w, "unassign failed", http.StatusInternalServerError)
			return
		}
		if client.CoachID == nil || *client.CoachID != session.UserID {
			http.Error(w, "not your client", http.StatusForbidden)
			return
		}
	default:
		http.Error(w, "no can do", http.StatusForbidden)
		return
	}

	if err := handler.service.Unassign(ctx, params.ClientID); err != nil {
		if errors.Is(err, ErrNotAssigned) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		log.Errorf("unassign client %d: %s", params.ClientID, err)
		http.Error(w, "unassign failed", http.StatusInternalServerError)
		return
	}

	pkg.WriteTextResponseOK(w, "unassigned")
}

func (handler *Handler) sessionAndRequestID(w http.ResponseWriter, r *http.Request) (auth.Session, uuid.UUID, bool) {
	session, ok := auth.SessionFromContext(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return auth.Session{}, uuid.Nil, false
	}

	requestID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "error, invalid request id", http.StatusBadRequest)
		return auth.Session{}, uuid.Nil, false
	}

	return session, requestID, true
}

func (handler *Handler) writeLifecycleErr(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, ErrRequestNotFound):
		http.Error(w, "request not found", http.StatusNotFound)
	case errors.Is(err, ErrNotYourRequest):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, ErrAlreadyAssigned):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, pkg.ErrStorageUnavailable):
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	default:
		log.Errorf("%s coaching request: %s", op, err)
		http.Error(w, op+" request failed", http.StatusInternalServerError)
	}
}
