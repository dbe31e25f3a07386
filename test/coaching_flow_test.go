package test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/coachfit/coachfit/internal/chat"
	"github.com/coachfit/coachfit/internal/coaching"
	"github.com/coachfit/coachfit/internal/plans"
	"github.com/coachfit/coachfit/internal/users"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCoachingFlow walks the whole relationship: a client finds a coach in
// the directory, sends a request, the coach accepts, pushes a plan and
// they exchange chat messages.
func (s *IntegrationTestSuite) TestCoachingFlow() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.redisDataCleanup(ctx))

	coach := s.registerUser(ctx, t, "flow-coach", "coachpass", users.RoleCoach, "")
	client := s.registerUser(ctx, t, "flow-client", "clientpass", users.RoleClient, users.GoalMuscleGain)

	coachToken := s.doLogin(ctx, t, "flow-coach", "coachpass")
	clientToken := s.doLogin(ctx, t, "flow-client", "clientpass")

	t.Run("coach publishes profile", func(t *testing.T) {
		profileJson, err := json.Marshal(coaching.CoachProfile{
			Headline:         "Hypertrophy programs for busy people",
			Bio:              "A decade under the bar.",
			Specialties:      []string{"hypertrophy", "powerlifting"},
			AcceptingClients: true,
		})
		require.NoError(t, err)

		resp := s.doRequest(ctx, t, "PUT", fmt.Sprintf("%s/coaches/profile", serverEndpoint), coachToken, profileJson)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		// the directory is public, no token needed
		dirResp := s.doRequest(ctx, t, "GET", fmt.Sprintf("%s/coaches", serverEndpoint), "", nil)
		defer dirResp.Body.Close()
		require.Equal(t, http.StatusOK, dirResp.StatusCode)

		respBytes, err := io.ReadAll(dirResp.Body)
		require.NoError(t, err)

		var directory coaching.DirectoryResponse
		require.NoError(t, json.Unmarshal(respBytes, &directory))
		require.Equal(t, 1, directory.Total)
		assert.Equal(t, coach.ID, directory.Coaches[0].UserID)
	})

	var request coaching.Request
	t.Run("client sends coaching request", func(t *testing.T) {
		sendReqJson, err := json.Marshal(map[string]any{
			"coachId": coach.ID,
			"note":    "help me grow",
		})
		require.NoError(t, err)

		resp := s.doRequest(ctx, t, "POST", fmt.Sprintf("%s/coaching/requests", serverEndpoint), clientToken, sendReqJson)
		defer resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		respBytes, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(respBytes, &request))
		assert.Equal(t, coaching.StatusPending, request.Status)

		// a second open request is refused
		resp2 := s.doRequest(ctx, t, "POST", fmt.Sprintf("%s/coaching/requests", serverEndpoint), clientToken, sendReqJson)
		defer resp2.Body.Close()
		assert.Equal(t, http.StatusConflict, resp2.StatusCode)
	})

	t.Run("coach accepts", func(t *testing.T) {
		inboxResp := s.doRequest(ctx, t, "GET", fmt.Sprintf("%s/coaching/requests", serverEndpoint), coachToken, nil)
		defer inboxResp.Body.Close()
		require.Equal(t, http.StatusOK, inboxResp.StatusCode)

		respBytes, err := io.ReadAll(inboxResp.Body)
		require.NoError(t, err)

		var inbox coaching.RequestsResponse
		require.NoError(t, json.Unmarshal(respBytes, &inbox))
		require.Equal(t, 1, inbox.Total)

		acceptResp := s.doRequest(ctx, t, "POST",
			fmt.Sprintf("%s/coaching/requests/%s/accept", serverEndpoint, request.ID), coachToken, nil)
		defer acceptResp.Body.Close()
		require.Equal(t, http.StatusOK, acceptResp.StatusCode)

		// the client is now assigned
		meResp := s.doRequest(ctx, t, "GET", fmt.Sprintf("%s/me", serverEndpoint), clientToken, nil)
		defer meResp.Body.Close()
		require.Equal(t, http.StatusOK, meResp.StatusCode)

		meBytes, err := io.ReadAll(meResp.Body)
		require.NoError(t, err)

		var me users.User
		require.NoError(t, json.Unmarshal(meBytes, &me))
		require.NotNil(t, me.CoachID)
		assert.Equal(t, coach.ID, *me.CoachID)
	})

	t.Run("coach pushes a plan", func(t *testing.T) {
		planJson, err := json.Marshal(map[string]any{
			"clientId": client.ID,
			"type":     "workout",
			"title":    "Upper/Lower v1",
			"content":  map[string]any{"days": []string{"upper", "lower"}},
		})
		require.NoError(t, err)

		resp := s.doRequest(ctx, t, "POST", fmt.Sprintf("%s/plans", serverEndpoint), coachToken, planJson)
		defer resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		respBytes, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		var created plans.Plan
		require.NoError(t, json.Unmarshal(respBytes, &created))
		assert.Equal(t, 1, created.Version)
		assert.True(t, created.Active)

		activeResp := s.doRequest(ctx, t, "GET", fmt.Sprintf("%s/plans/active?type=workout", serverEndpoint), clientToken, nil)
		defer activeResp.Body.Close()
		require.Equal(t, http.StatusOK, activeResp.StatusCode)

		activeBytes, err := io.ReadAll(activeResp.Body)
		require.NoError(t, err)

		var active plans.Plan
		require.NoError(t, json.Unmarshal(activeBytes, &active))
		assert.Equal(t, "Upper/Lower v1", active.Title)
	})

	t.Run("chat", func(t *testing.T) {
		msgJson, err := json.Marshal(map[string]any{"text": "when do we start?"})
		require.NoError(t, err)

		resp := s.doRequest(ctx, t, "POST", fmt.Sprintf("%s/chat/messages", serverEndpoint), clientToken, msgJson)
		defer resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		replyJson, err := json.Marshal(map[string]any{"text": "monday, 7am"})
		require.NoError(t, err)

		replyResp := s.doRequest(ctx, t, "POST",
			fmt.Sprintf("%s/chat/messages?clientId=%d", serverEndpoint, client.ID), coachToken, replyJson)
		defer replyResp.Body.Close()
		require.Equal(t, http.StatusCreated, replyResp.StatusCode)

		historyResp := s.doRequest(ctx, t, "GET", fmt.Sprintf("%s/chat/messages", serverEndpoint), clientToken, nil)
		defer historyResp.Body.Close()
		require.Equal(t, http.StatusOK, historyResp.StatusCode)

		historyBytes, err := io.ReadAll(historyResp.Body)
		require.NoError(t, err)

		var history chat.HistoryResponse
		require.NoError(t, json.Unmarshal(historyBytes, &history))
		require.Equal(t, 2, history.Total)
		assert.Equal(t, "when do we start?", history.Messages[0].Text)
		assert.Equal(t, "monday, 7am", history.Messages[1].Text)
	})
}
