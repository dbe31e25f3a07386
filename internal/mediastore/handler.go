package mediastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
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

// 20 MB per upload, progress photos and plan PDFs stay well under this
const maxUploadBytes = 20 << 20

type usersRepo interface {
	Get(ctx context.Context, id int) (*users.User, error)
}

type ListResponse struct {
	Files []Info `json:"files"`
	Total int    `json:"total"`
}

type Handler struct {
	store *DiskStore
	users usersRepo
}

func NewHandler(store *DiskStore, usersRepo usersRepo) *Handler {
	return &Handler{
		store: store,
		users: usersRepo,
	}
}

// HandleUpload stores a progress photo or a plan document for the caller.
func (handler *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.media.upload")
	defer span.End()

	session, ok := auth.SessionFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		log.Tracef("upload media, parse multipart form: %s", err)
		http.Error(w, "invalid upload", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "error, file missing", http.StatusBadRequest)
		return
	}
	defer file.Close()

	kind := Kind(r.FormValue("kind"))
	if kind == "" {
		kind = KindPhoto
	}
	if !kind.Valid() {
		http.Error(w, "error, invalid media kind", http.StatusBadRequest)
		return
	}

	isPrivate := true
	if publicStr := r.FormValue("public"); publicStr == "true" {
		isPrivate = false
	}

	saved, err := handler.store.Save(ctx, SaveParams{
		OwnerID:     session.UserID,
		Kind:        kind,
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		IsPrivate:   isPrivate,
		Content:     file,
	})
	if err != nil {
		log.Errorf("upload media for %d: %s", session.UserID, err)
		http.Error(w, "upload failed", http.StatusInternalServerError)
		return
	}

	infoJson, err := json.Marshal(saved.Info())
	if err != nil {
		log.Errorf("marshal media info: %s", err)
		http.Error(w, "upload failed", http.StatusInternalServerError)
		return
	}

	log.Debugf("media file [%s] saved for owner %d", saved.ID, session.UserID)
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, infoJson, http.StatusCreated)
}

// HandleList returns the owner's files. Clients see their own, coaches
// their assigned clients', admins anyone's.
func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.media.list")
	defer span.End()

	session, ok := auth.SessionFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	ownerID := session.UserID
	if ownerIDStr := r.URL.Query().Get("ownerId"); ownerIDStr != "" {
		requestedOwnerID, err := strconv.Atoi(ownerIDStr)
		if err != nil {
			http.Error(w, "error, owner id NaN", http.StatusBadRequest)
			return
		}
		status, err := handler.authorizeOwnerAccess(ctx, session, requestedOwnerID)
		if err != nil {
			http.Error(w, err.Error(), status)
			return
		}
		ownerID = requestedOwnerID
	}

	kind := Kind(r.URL.Query().Get("kind"))
	if kind != "" && !kind.Valid() {
		http.Error(w, "error, invalid media kind", http.StatusBadRequest)
		return
	}

	files, err := handler.store.ListByOwner(ctx, ownerID, kind)
	if err != nil {
		log.Errorf("list media for %d: %s", ownerID, err)
		http.Error(w, "list media failed", http.StatusInternalServerError)
		return
	}

	resp, err := json.Marshal(ListResponse{
		Files: files,
		Total: len(files),
	})
	if err != nil {
		log.Errorf("marshal media list: %s", err)
		http.Error(w, "list media failed", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, resp, http.StatusOK)
}

// HandleDownload streams a file's bytes. Public files are served to anyone,
// private files only to their owner, the owner's coach, or an admin.
func (handler *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.media.download")
	defer span.End()

	fileID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "error, invalid file id", http.StatusBadRequest)
		return
	}

	reader, file, err := handler.store.Open(ctx, fileID)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			http.Error(w, "file not found", http.StatusNotFound)
			return
		}
		log.Errorf("open media file %s: %s", fileID, err)
		http.Error(w, "download failed", http.StatusInternalServerError)
		return
	}
	defer reader.Close()

	if file.IsPrivate {
		session, ok := auth.SessionFromContext(ctx)
		if !ok {
			http.Error(w, "no can do", http.StatusUnauthorized)
			return
		}
		if session.UserID != file.OwnerID {
			status, err := handler.authorizeOwnerAccess(ctx, session, file.OwnerID)
			if err != nil {
				http.Error(w, err.Error(), status)
				return
			}
		}
	}

	if file.ContentType != "" {
		w.Header().Set("Content-Type", file.ContentType)
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))

	if _, err := io.Copy(w, reader); err != nil {
		log.Errorf("stream media file %s: %s", fileID, err)
	}
}

// HandleDelete removes a file. Owner or admin only.
func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.media.delete")
	defer span.End()

	session, ok := auth.SessionFromContext(ctx)
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return
	}

	fileID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "error, invalid file id", http.StatusBadRequest)
		return
	}

	file, err := handler.store.Get(ctx, fileID)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			http.Error(w, "file not found", http.StatusNotFound)
			return
		}
		log.Errorf("get media file %s: %s", fileID, err)
		http.Error(w, "delete failed", http.StatusInternalServerError)
		return
	}

	if file.OwnerID != session.UserID && session.Role != string(users.RoleAdmin) {
		http.Error(w, "no can do", http.StatusForbidden)
		return
	}

	if err := handler.store.Delete(ctx, fileID); err != nil {
		log.Errorf("delete media file %s: %s", fileID, err)
		http.Error(w, "delete failed", http.StatusInternalServerError)
		return
	}

	pkg.WriteTextResponseOK(w, "deleted")
}

// authorizeOwnerAccess checks whether the session may touch another owner's
// media: admins always, coaches for their assigned clients.
func (handler *Handler) authorizeOwnerAccess(ctx context.Context, session auth.Session, ownerID int) (int, error) {
	if ownerID == session.UserID || session.Role == string(users.RoleAdmin) {
		return http.StatusOK, nil
	}

	if session.Role == string(users.RoleCoach) {
		owner, err := handler.users.Get(ctx, ownerID)
		if err != nil {
			if errors.Is(err, users.ErrUserNotFound) {
				return http.StatusNotFound, errors.New("owner not found")
			}
			return http.StatusInternalServerError, errors.New("authorize failed")
		}
		if owner.CoachID != nil && *owner.CoachID == session.UserID {
			return http.StatusOK, nil
		}
		return http.StatusForbidden, errors.New("not your client")
	}

	return http.StatusForbidden, errors.New("no can do")
}
