package coaching

import (
	"context"
	"encoding/json"
	"fmt"
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

func newHandlerFixture(t *testing.T) (*Handler, *repoMock, *users.RepoMock) {
	t.Helper()
	usersRepo := users.NewRepoMock()
	repo := NewRepoMock()
	return NewHandler(repo, NewService(repo, usersRepo)), repo, usersRepo
}

func TestHandler_ListCoaches(t *testing.T) {
	handler, repo, _ := newHandlerFixture(t)

	for userID, accepting := range map[int]bool{2: true, 7: false} {
		_, err := repo.UpsertProfile(context.Background(), CoachProfile{
			UserID:           userID,
			Headline:         fmt.Sprintf("coach %d", userID),
			AcceptingClients: accepting,
		})
		require.NoError(t, err)
	}

	req := httptest.NewRequest(http.MethodGet, "/coaches", nil)
	rr := httptest.NewRecorder()
	handler.HandleListCoaches(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp DirectoryResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Total)
	// accepting coaches come first
	assert.True(t, resp.Coaches[0].AcceptingClients)
	assert.False(t, resp.Coaches[1].AcceptingClients)
}

func TestHandler_UpsertProfile(t *testing.T) {
	handler, repo, _ := newHandlerFixture(t)

	body := `{"headline":"strength and conditioning","specialties":["powerlifting"],"acceptingClients":true}`
	req := httptest.NewRequest(http.MethodPut, "/coaches/profile", strings.NewReader(body))
	req = req.WithContext(auth.ContextWithSession(req.Context(), auth.Session{UserID: 2, Role: "coach"}))
	rr := httptest.NewRecorder()
	handler.HandleUpsertProfile(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	profile, err := repo.GetProfile(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "strength and conditioning", profile.Headline)
	assert.True(t, profile.AcceptingClients)
}

func TestHandler_UpsertProfile_clientRejected(t *testing.T) {
	handler, _, _ := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodPut, "/coaches/profile", strings.NewReader(`{"headline":"hi"}`))
	req = req.WithContext(auth.ContextWithSession(req.Context(), auth.Session{UserID: 1, Role: "client"}))
	rr := httptest.NewRecorder()
	handler.HandleUpsertProfile(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestHandler_UpsertProfile_validation(t *testing.T) {
	handler, _, _ := newHandlerFixture(t)

	req := httptest.NewRequest(http.MethodPut, "/coaches/profile", strings.NewReader(`{"headline":""}`))
	req = req.WithContext(auth.ContextWithSession(req.Context(), auth.Session{UserID: 2, Role: "coach"}))
	rr := httptest.NewRecorder()
	handler.HandleUpsertProfile(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)

	var fields map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &fields))
	assert.Contains(t, fields, "headline")
}

func TestHandler_SendRequest(t *testing.T) {
	handler, _, _ := newHandlerFixture(t)

	body := `{"coachId":2,"note":"summer shred"}`
	req := httptest.NewRequest(http.MethodPost, "/coaching/requests", strings.NewReader(body))
	req = req.WithContext(auth.ContextWithSession(req.Context(), auth.Session{UserID: 1, Role: "client"}))
	rr := httptest.NewRecorder()
	handler.HandleSendRequest(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)

	var created Request
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, StatusPending, created.Status)

	// second open request is a conflict
	req = httptest.NewRequest(http.MethodPost, "/coaching/requests", strings.NewReader(body))
	req = req.WithContext(auth.ContextWithSession(req.Context(), auth.Session{UserID: 1, Role: "client"}))
	rr = httptest.NewRecorder()
	handler.HandleSendRequest(rr, req)

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestHandler_AcceptFlow(t *testing.T) {
	handler, repo, usersRepo := newHandlerFixture(t)
	ctx := context.Background()

	pending, err := repo.CreateRequest(ctx, Request{ClientID: 1, CoachID: 2})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/coaching/requests/"+pending.ID.String()+"/accept", nil)
	req = req.WithContext(auth.ContextWithSession(req.Context(), auth.Session{UserID: 2, Role: "coach"}))
	req = mux.SetURLVars(req, map[string]string{"id": pending.ID.String()})
	rr := httptest.NewRecorder()
	handler.HandleAccept(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var accepted Request
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &accepted))
	assert.Equal(t, StatusAccepted, accepted.Status)

	client, err := usersRepo.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, client.CoachID)
	assert.Equal(t, 2, *client.CoachID)

	// coach inbox via the list endpoint is now empty
	listReq := httptest.NewRequest(http.MethodGet, "/coaching/requests", nil)
	listReq = listReq.WithContext(auth.ContextWithSession(listReq.Context(), auth.Session{UserID: 2, Role: "coach"}))
	rr = httptest.NewRecorder()
	handler.HandleListRequests(rr, listReq)

	require.Equal(t, http.StatusOK, rr.Code)

	var inbox RequestsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &inbox))
	assert.Zero(t, inbox.Total)
}

func TestHandler_Unassign(t *testing.T) {
	handler, _, usersRepo := newHandlerFixture(t)
	ctx := context.Background()

	require.NoError(t, usersRepo.AssignCoach(ctx, 1, 2))

	req := httptest.NewRequest(http.MethodPost, "/coaching/unassign", strings.NewReader(`{"clientId":1}`))
	req = req.WithContext(auth.ContextWithSession(req.Context(), auth.Session{UserID: 2, Role: "coach"}))
	rr := httptest.NewRecorder()
	handler.HandleUnassign(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	client, err := usersRepo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, client.CoachID)
}

func TestHandler_Unassign_notYourClient(t *testing.T) {
	handler, _, usersRepo := newHandlerFixture(t)
	ctx := context.Background()

	require.NoError(t, usersRepo.AssignCoach(ctx, 1, 2))

	otherCoach, err := usersRepo.Add(ctx, users.User{Username: "sam", Role: users.RoleCoach})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/coaching/unassign", strings.NewReader(`{"clientId":1}`))
	req = req.WithContext(auth.ContextWithSession(req.Context(), auth.Session{UserID: otherCoach.ID, Role: "coach"}))
	rr := httptest.NewRecorder()
	handler.HandleUnassign(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}
