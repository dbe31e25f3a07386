package test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/coachfit/coachfit/internal/bodycomp"
	"github.com/coachfit/coachfit/internal/users"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) saveRecordRequest(
	ctx context.Context, t *testing.T,
	token string, saveReq bodycomp.SaveRecordRequest,
) bodycomp.Record {
	t.Helper()

	saveReqJson, err := json.Marshal(saveReq)
	require.NoError(t, err)

	resp := s.doRequest(ctx, t, "POST", fmt.Sprintf("%s/bodycomp", serverEndpoint), token, saveReqJson)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var record bodycomp.Record
	require.NoError(t, json.Unmarshal(respBytes, &record))
	return record
}

func (s *IntegrationTestSuite) listRecordsRequest(
	ctx context.Context, t *testing.T, token string,
) bodycomp.ListResponse {
	t.Helper()

	resp := s.doRequest(ctx, t, "GET", fmt.Sprintf("%s/bodycomp", serverEndpoint), token, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var listResp bodycomp.ListResponse
	require.NoError(t, json.Unmarshal(respBytes, &listResp))
	return listResp
}

func (s *IntegrationTestSuite) TestBodyComp() {
	t := s.T()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.redisDataCleanup(ctx))

	s.registerUser(ctx, t, "bodycomp-client", "testpass", users.RoleClient, users.GoalFatLoss)
	token := s.doLogin(ctx, t, "bodycomp-client", "testpass")

	saved := s.saveRecordRequest(ctx, t, token, bodycomp.SaveRecordRequest{
		Date:             "2025-03-01",
		WeightKg:         92.5,
		SkeletalMuscleKg: 36.1,
		BodyFatPercent:   28.4,
	})
	require.NotZero(t, saved.ID)

	// same day again: measurement correction, not a second record
	corrected := s.saveRecordRequest(ctx, t, token, bodycomp.SaveRecordRequest{
		Date:             "2025-03-01",
		WeightKg:         92.0,
		SkeletalMuscleKg: 36.1,
		BodyFatPercent:   28.4,
	})
	assert.Equal(t, saved.ID, corrected.ID)
	assert.Equal(t, 92.0, corrected.WeightKg)

	s.saveRecordRequest(ctx, t, token, bodycomp.SaveRecordRequest{
		Date:             "2025-03-15",
		WeightKg:         90.2,
		SkeletalMuscleKg: 36.4,
		BodyFatPercent:   27.1,
	})

	listResp := s.listRecordsRequest(ctx, t, token)
	require.Equal(t, 2, listResp.Total)
	assert.Equal(t, 92.0, listResp.Records[0].WeightKg)
	assert.Equal(t, 90.2, listResp.Records[1].WeightKg)

	t.Run("insights", func(t *testing.T) {
		resp := s.doRequest(ctx, t, "GET", fmt.Sprintf("%s/bodycomp/insights", serverEndpoint), token, nil)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		respBytes, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		var insight bodycomp.Insight
		require.NoError(t, json.Unmarshal(respBytes, &insight))
		require.NotNil(t, insight.WeightChange)
		assert.InDelta(t, -1.8, *insight.WeightChange, 0.001)
		assert.Equal(t, 14, insight.PeriodDays)
	})

	t.Run("trends", func(t *testing.T) {
		resp := s.doRequest(ctx, t, "GET", fmt.Sprintf("%s/bodycomp/trends", serverEndpoint), token, nil)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		respBytes, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		var trends bodycomp.TrendsResponse
		require.NoError(t, json.Unmarshal(respBytes, &trends))
		// fat loss goal, weight going down: that is a good thing
		assert.Equal(t, bodycomp.TrendDown, trends.Weight.Trend)
		assert.Equal(t, bodycomp.Favorable, trends.Weight.Favorability)
		assert.Equal(t, 14, trends.PeriodDays)
	})

	t.Run("delete", func(t *testing.T) {
		resp := s.doRequest(ctx, t, "DELETE", fmt.Sprintf("%s/bodycomp/2025-03-01", serverEndpoint), token, nil)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		listResp := s.listRecordsRequest(ctx, t, token)
		assert.Equal(t, 1, listResp.Total)

		// deleting the same day twice: not found
		resp2 := s.doRequest(ctx, t, "DELETE", fmt.Sprintf("%s/bodycomp/2025-03-01", serverEndpoint), token, nil)
		defer resp2.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
	})

	t.Run("no token", func(t *testing.T) {
		resp := s.doRequest(ctx, t, "GET", fmt.Sprintf("%s/bodycomp", serverEndpoint), "", nil)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}
