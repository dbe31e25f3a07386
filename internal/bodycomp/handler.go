package bodycomp

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

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const dateLayout = "2006-01-02"

type recordsRepo interface {
	UpsertByDate(ctx context.Context, record Record) (*Record, error)
	ListOrderedByDate(ctx context.Context, ownerID int) ([]Record, error)
	DeleteByDate(ctx context.Context, ownerID int, date time.Time) error
}

type usersRepo interface {
	Get(ctx context.Context, id int) (*users.User, error)
}

type SaveRecordRequest struct {
	Date             string  `json:"date"`
	WeightKg         float64 `json:"weightKg"`
	SkeletalMuscleKg float64 `json:"skeletalMuscleKg"`
	BodyFatPercent   float64 `json:"bodyFatPercent"`
	OwnerID          int     `json:"ownerId,omitempty"`
}

type ListResponse struct {
	Records []Record `json:"records"`
	Total   int      `json:"total"`
}

type MetricTrend struct {
	Trend        Trend        `json:"trend"`
	Favorability Favorability `json:"favorability"`
}

type TrendsResponse struct {
	Weight     MetricTrend `json:"weight"`
	Muscle     MetricTrend `json:"muscle"`
	Fat        MetricTrend `json:"fat"`
	PeriodDays int         `json:"periodDays"`
}

type Handler struct {
	repo           recordsRepo
	users          usersRepo
	analyzer       *Analyzer
	metricsManager *metrics.Manager
}

func NewHandler(repo recordsRepo, usersRepo usersRepo, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		repo:           repo,
		users:          usersRepo,
		analyzer:       NewAnalyzer(),
		metricsManager: metricsManager,
	}
}

// resolveOwnerID decides whose records the request targets. Clients can
// only reach their own, coaches their assigned clients', admins anyone's.
func (handler *Handler) resolveOwnerID(ctx context.Context, requestedOwnerID int) (int, int, error) {
	session, ok := auth.SessionFromContext(ctx)
	if !ok {
		return 0, http.StatusUnauthorized, errors.New("no session")
	}

	if requestedOwnerID == 0 || requestedOwnerID == session.UserID {
		return session.UserID, http.StatusOK, nil
	}

	switch session.Role {
	case string(users.RoleAdmin):
		return requestedOwnerID, http.StatusOK, nil
	case string(users.RoleCoach):
		owner, err := handler.users.Get(ctx, requestedOwnerID)
		if err != nil {
			if errors.Is(err, users.ErrUserNotFound) {
				return 0, http.StatusNotFound, errors.New("owner not found")
			}
			return 0, http.StatusInternalServerError, err
		}
		if owner.CoachID == nil || *owner.CoachID != session.UserID {
			return 0, http.StatusForbidden, errors.New("not your client")
		}
		return requestedOwnerID, http.StatusOK, nil
	default:
		return 0, http.StatusForbidden, errors.New("no can do")
	}
}

func (handler *Handler) HandleSave(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.bodycomp.save")
	defer span.End()

	if r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "invalid content type", http.StatusBadRequest)
		return
	}

	var req SaveRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("save record, unmarshal json params: %s", err)
		http.Error(w, "save record failed", http.StatusBadRequest)
		return
	}

	ownerID, status, err := handler.resolveOwnerID(ctx, req.OwnerID)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	date, err := time.ParseInLocation(dateLayout, req.Date, time.UTC)
	if err != nil {
		writeValidationErrors(w, pkg.ValidationErrors{
			{Field: "date", Message: "must be a date in format 2006-01-02"},
		})
		return
	}

	record := Record{
		OwnerID:          ownerID,
		Date:             date,
		WeightKg:         req.WeightKg,
		SkeletalMuscleKg: req.SkeletalMuscleKg,
		BodyFatPercent:   req.BodyFatPercent,
	}

	if err := record.Validate(); err != nil {
		var validationErrs pkg.ValidationErrors
		if errors.As(err, &validationErrs) {
			writeValidationErrors(w, validationErrs)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	savedRecord, err := handler.repo.UpsertByDate(ctx, record)
	if err != nil {
		if errors.Is(err, pkg.ErrStorageUnavailable) {
			log.Errorf("save record, storage unavailable: %s", err)
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}
		log.Errorf("save record for owner %d: %s", ownerID, err)
		http.Error(w, "save record failed", http.StatusInternalServerError)
		return
	}

	handler.metricsManager.CounterBodyCompRecords.Inc()

	recordJson, err := json.Marshal(savedRecord)
	if err != nil {
		log.Errorf("marshal saved record: %s", err)
		http.Error(w, "save record failed", http.StatusInternalServerError)
		return
	}

	log.Debugf("body comp record saved for owner %d, date %s", ownerID, req.Date)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, recordJson, http.StatusCreated)
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.bodycomp.list")
	defer span.End()

	ownerID, status, err := handler.ownerFromQuery(ctx, r)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	records, err := handler.listRecords(ctx, w, ownerID)
	if err != nil {
		return
	}

	resp, err := json.Marshal(ListResponse{
		Records: records,
		Total:   len(records),
	})
	if err != nil {
		log.Errorf("marshal records: %s", err)
		http.Error(w, "list records failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, resp, http.StatusOK)
}

func (handler *Handler) HandleInsights(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.bodycomp.insights")
	defer span.End()

	ownerID, status, err := handler.ownerFromQuery(ctx, r)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	records, err := handler.listRecords(ctx, w, ownerID)
	if err != nil {
		return
	}

	insight := handler.analyzer.Insights(records)
	insightJson, err := json.Marshal(insight)
	if err != nil {
		log.Errorf("marshal insight: %s", err)
		http.Error(w, "insights failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, insightJson, http.StatusOK)
}

func (handler *Handler) HandleMonthlyInsights(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.bodycomp.monthlyInsights")
	defer span.End()

	ownerID, status, err := handler.ownerFromQuery(ctx, r)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	records, err := handler.listRecords(ctx, w, ownerID)
	if err != nil {
		return
	}

	insight := handler.analyzer.MonthlyInsights(records)
	insightJson, err := json.Marshal(insight)
	if err != nil {
		log.Errorf("marshal monthly insight: %s", err)
		http.Error(w, "insights failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, insightJson, http.StatusOK)
}

func (handler *Handler) HandleTrends(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.bodycomp.trends")
	defer span.End()

	ownerID, status, err := handler.ownerFromQuery(ctx, r)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	records, err := handler.listRecords(ctx, w, ownerID)
	if err != nil {
		return
	}

	if len(records) < 2 {
		pkg.WriteJSONResponseOK(w, `{"message": "not enough records for trends"}`)
		return
	}

	owner, err := handler.users.Get(ctx, ownerID)
	if err != nil {
		log.Errorf("trends, get owner %d: %s", ownerID, err)
		http.Error(w, "trends failed", http.StatusInternalServerError)
		return
	}

	oldest, newest := records[0], records[len(records)-1]
	weightTrend := ClassifyTrend(oldest.WeightKg, newest.WeightKg)
	muscleTrend := ClassifyTrend(oldest.SkeletalMuscleKg, newest.SkeletalMuscleKg)
	fatTrend := ClassifyTrend(oldest.BodyFatPercent, newest.BodyFatPercent)

	resp, err := json.Marshal(TrendsResponse{
		Weight: MetricTrend{
			Trend:        weightTrend,
			Favorability: TrendFavorability(MetricWeight, weightTrend, owner.Goal),
		},
		Muscle: MetricTrend{
			Trend:        muscleTrend,
			Favorability: TrendFavorability(MetricMuscle, muscleTrend, owner.Goal),
		},
		Fat: MetricTrend{
			Trend:        fatTrend,
			Favorability: TrendFavorability(MetricFat, fatTrend, owner.Goal),
		},
		PeriodDays: daysBetween(oldest.Date, newest.Date),
	})
	if err != nil {
		log.Errorf("marshal trends: %s", err)
		http.Error(w, "trends failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, resp, http.StatusOK)
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.bodycomp.delete")
	defer span.End()

	ownerID, status, err := handler.ownerFromQuery(ctx, r)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	vars := mux.Vars(r)
	date, err := time.ParseInLocation(dateLayout, vars["date"], time.UTC)
	if err != nil {
		http.Error(w, "error, invalid date", http.StatusBadRequest)
		return
	}

	if err := handler.repo.DeleteByDate(ctx, ownerID, date); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			http.Error(w, "record not found", http.StatusNotFound)
			return
		}
		log.Errorf("delete record for owner %d: %s", ownerID, err)
		http.Error(w, "delete record failed", http.StatusInternalServerError)
		return
	}

	pkg.WriteJSONResponseOK(w, `{"deleted": true}`)
}

func (handler *Handler) ownerFromQuery(ctx context.Context, r *http.Request) (int, int, error) {
	requestedOwnerID := 0
	if ownerIDStr := r.URL.Query().Get("ownerId"); ownerIDStr != "" {
		var err error
		requestedOwnerID, err = strconv.Atoi(ownerIDStr)
		if err != nil {
			return 0, http.StatusBadRequest, errors.New("error, owner id NaN")
		}
	}
	return handler.resolveOwnerID(ctx, requestedOwnerID)
}

// listRecords writes the error response itself, callers just return on error.
func (handler *Handler) listRecords(ctx context.Context, w http.ResponseWriter, ownerID int) ([]Record, error) {
	records, err := handler.repo.ListOrderedByDate(ctx, ownerID)
	if err != nil {
		if errors.Is(err, pkg.ErrStorageUnavailable) {
			log.Errorf("list records, storage unavailable: %s", err)
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return nil, err
		}
		log.Errorf("list records for owner %d: %s", ownerID, err)
		http.Error(w, "list records failed", http.StatusInternalServerError)
		return nil, err
	}
	return records, nil
}

func writeValidationErrors(w http.ResponseWriter, validationErrs pkg.ValidationErrors) {
	fieldsJson, err := json.Marshal(validationErrs.FieldMap())
	if err != nil {
		http.Error(w, "invalid input", http.StatusBadRequest)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, fieldsJson, http.StatusBadRequest)
}
