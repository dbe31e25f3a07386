package mediastore

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/coachfit/coachfit/internal/auth"
	"github.com/coachfit/coachfit/internal/users"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// user 1 is a client of coach 2
func newHandlerFixture(t *testing.T) (*Handler, *DiskStore) {
	t.Helper()
	usersRepo := users.NewRepoMock()
	coachID := 2
	client, err := usersRepo.Get(context.Background(), 1)
	require.NoError(t, err)
	client.CoachID = &coachID
	usersRepo.Users[1] = *client

	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)
	return NewHandler(store, usersRepo), store
}

func multipartUpload(t *testing.T, fields map[string]string, fileName, fileContent string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	part, err := writer.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write([]byte(fileContent))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestHandler_Upload(t *testing.T) {
	handler, store := newHandlerFixture(t)

	body, contentType := multipartUpload(t, map[string]string{"kind": "photo"}, "front.jpg", "jpeg bytes")
	req := httptest.NewRequest(http.MethodPost, "/media/upload", body)
	req.Header.Set("Content-Type", contentType)
	req = req.WithContext(auth.ContextWithSession(req.Context(), auth.Session{UserID: 1, Role: "client"}))
	rr := httptest.NewRecorder()
	handler.HandleUpload(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)

	var info Info
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &info))
	assert.Equal(t, 1, info.OwnerID)
	assert.Equal(t, KindPhoto, info.Kind)
	assert.True(t, info.IsPrivate)

	files, err := store.ListByOwner(context.Background(), 1, KindPhoto)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestHandler_Upload_missingFile(t *testing.T) {
	handler, _ := newHandlerFixture(t)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	require.NoError(t, writer.WriteField("kind", "photo"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/media/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req = req.WithContext(auth.ContextWithSession(req.Context(), auth.Session{UserID: 1, Role: "client"}))
	rr := httptest.NewRecorder()
	handler.HandleUpload(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandler_List_coachSeesAssignedClient(t *testing.T) {
	handler, store := newHandlerFixture(t)
	ctx := context.Background()

	_, err := store.Save(ctx, SaveParams{
		OwnerID: 1, Kind: KindPhoto, Name: "front.jpg",
		IsPrivate: true, Content: strings.NewReader("x"),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/media?ownerId=1", nil)
	req = req.WithContext(auth.ContextWithSession(req.Context(), auth.Session{UserID: 2, Role: "coach"}))
	rr := httptest.NewRecorder()
	handler.HandleList(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp ListResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
}

func TestHandler_List_strangerCoachRejected(t *testing.T) {
	handler, _ := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/media?ownerId=1", nil)
	req = req.WithContext(auth.ContextWithSession(req.Context(), auth.Session{UserID: 9, Role: "coach"}))
	rr := httptest.NewRecorder()
	handler.HandleList(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestHandler_Download_private(t *testing.T) {
	handler, store := newHandlerFixture(t)
	ctx := context.Background()

	saved, err := store.Save(ctx, SaveParams{
		OwnerID: 1, Kind: KindPhoto, Name: "front.jpg",
		ContentType: "image/jpeg", IsPrivate: true,
		Content: strings.NewReader("jpeg bytes"),
	})
	require.NoError(t, err)

	// no session: rejected
	req := httptest.NewRequest(http.MethodGet, "/media/file/"+saved.ID.String(), nil)
	req = mux.SetURLVars(req, map[string]string{"id": saved.ID.String()})
	rr := httptest.NewRecorder()
	handler.HandleDownload(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// owner: served
	req = httptest.NewRequest(http.MethodGet, "/media/file/"+saved.ID.String(), nil)
	req = req.WithContext(auth.ContextWithSession(req.Context(), auth.Session{UserID: 1, Role: "client"}))
	req = mux.SetURLVars(req, map[string]string{"id": saved.ID.String()})
	rr = httptest.NewRecorder()
	handler.HandleDownload(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "jpeg bytes", rr.Body.String())
	assert.Equal(t, "image/jpeg", rr.Header().Get("Content-Type"))
}

func TestHandler_Download_public(t *testing.T) {
	handler, store := newHandlerFixture(t)

	saved, err := store.Save(context.Background(), SaveParams{
		OwnerID: 2, Kind: KindDocument, Name: "starter-plan.pdf",
		ContentType: "application/pdf", IsPrivate: false,
		Content: strings.NewReader("pdf bytes"),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/media/file/"+saved.ID.String(), nil)
	req = mux.SetURLVars(req, map[string]string{"id": saved.ID.String()})
	rr := httptest.NewRecorder()
	handler.HandleDownload(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "pdf bytes", rr.Body.String())
}

func TestHandler_Delete_ownerOnly(t *testing.T) {
	handler, store := newHandlerFixture(t)
	ctx := context.Background()

	saved, err := store.Save(ctx, SaveParams{
		OwnerID: 1, Kind: KindPhoto, Name: "front.jpg",
		IsPrivate: true, Content: strings.NewReader("x"),
	})
	require.NoError(t, err)

	// even the assigned coach cannot delete a client's photo
	req := httptest.NewRequest(http.MethodDelete, "/media/file/"+saved.ID.String(), nil)
	req = req.WithContext(auth.ContextWithSession(req.Context(), auth.Session{UserID: 2, Role: "coach"}))
	req = mux.SetURLVars(req, map[string]string{"id": saved.ID.String()})
	rr := httptest.NewRecorder()
	handler.HandleDelete(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	req = httptest.NewRequest(http.MethodDelete, "/media/file/"+saved.ID.String(), nil)
	req = req.WithContext(auth.ContextWithSession(req.Context(), auth.Session{UserID: 1, Role: "client"}))
	req = mux.SetURLVars(req, map[string]string{"id": saved.ID.String()})
	rr = httptest.NewRecorder()
	handler.HandleDelete(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	_, err = store.Get(ctx, saved.ID)
	assert.ErrorIs(t, err, ErrFileNotFound)
}
