package coaching

import (
	"context"
	"testing"

	"github.com/coachfit/coachfit/internal/users"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seeded users: 1 is a client without a coach, 2 is a coach
func newTestService(t *testing.T) (*Service, *repoMock, *users.RepoMock) {
	t.Helper()
	usersRepo := users.NewRepoMock()
	repo := NewRepoMock()
	return NewService(repo, usersRepo), repo, usersRepo
}

func TestService_SendRequest(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	req, err := service.SendRequest(ctx, 1, 2, "please coach me")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, req.Status)
	assert.Equal(t, 1, req.ClientID)
	assert.Equal(t, 2, req.CoachID)
	assert.Nil(t, req.DecidedAt)
}

func TestService_SendRequest_onlyOneOpen(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.SendRequest(ctx, 1, 2, "")
	require.NoError(t, err)

	_, err = service.SendRequest(ctx, 1, 2, "again")
	assert.ErrorIs(t, err, ErrOpenRequestExists)
}

func TestService_SendRequest_notWhileAssigned(t *testing.T) {
	service, _, usersRepo := newTestService(t)
	ctx := context.Background()

	require.NoError(t, usersRepo.AssignCoach(ctx, 1, 2))

	_, err := service.SendRequest(ctx, 1, 2, "")
	assert.ErrorIs(t, err, ErrAlreadyAssigned)
}

func TestService_SendRequest_targetMustBeCoach(t *testing.T) {
	service, _, usersRepo := newTestService(t)
	ctx := context.Background()

	otherClient, err := usersRepo.Add(ctx, users.User{Username: "rex", Role: users.RoleClient})
	require.NoError(t, err)

	_, err = service.SendRequest(ctx, 1, otherClient.ID, "")
	assert.ErrorIs(t, err, ErrNotACoach)

	_, err = service.SendRequest(ctx, 1, 999, "")
	assert.ErrorIs(t, err, ErrNotACoach)
}

func TestService_SendRequest_coachNotAccepting(t *testing.T) {
	service, repo, _ := newTestService(t)
	ctx := context.Background()

	_, err := repo.UpsertProfile(ctx, CoachProfile{
		UserID:           2,
		Headline:         "fully booked",
		AcceptingClients: false,
	})
	require.NoError(t, err)

	_, err = service.SendRequest(ctx, 1, 2, "")
	assert.ErrorIs(t, err, ErrNotAccepting)
}

func TestService_Accept(t *testing.T) {
	service, _, usersRepo := newTestService(t)
	ctx := context.Background()

	req, err := service.SendRequest(ctx, 1, 2, "")
	require.NoError(t, err)

	accepted, err := service.Accept(ctx, 2, req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, accepted.Status)
	require.NotNil(t, accepted.DecidedAt)

	client, err := usersRepo.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, client.CoachID)
	assert.Equal(t, 2, *client.CoachID)
}

func TestService_Accept_wrongCoach(t *testing.T) {
	service, _, usersRepo := newTestService(t)
	ctx := context.Background()

	otherCoach, err := usersRepo.Add(ctx, users.User{Username: "sam", Role: users.RoleCoach})
	require.NoError(t, err)

	req, err := service.SendRequest(ctx, 1, 2, "")
	require.NoError(t, err)

	_, err = service.Accept(ctx, otherCoach.ID, req.ID)
	assert.ErrorIs(t, err, ErrNotYourRequest)
}

func TestService_Accept_clientMeanwhileAssigned(t *testing.T) {
	service, repo, usersRepo := newTestService(t)
	ctx := context.Background()

	req, err := service.SendRequest(ctx, 1, 2, "")
	require.NoError(t, err)

	// another coach grabbed the client outside this request
	require.NoError(t, usersRepo.AssignCoach(ctx, 1, 5))

	_, err = service.Accept(ctx, 2, req.ID)
	assert.ErrorIs(t, err, ErrAlreadyAssigned)

	// the stale request got closed
	stale, err := repo.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDeclined, stale.Status)
}

func TestService_Decline(t *testing.T) {
	service, repo, usersRepo := newTestService(t)
	ctx := context.Background()

	req, err := service.SendRequest(ctx, 1, 2, "")
	require.NoError(t, err)

	require.NoError(t, service.Decline(ctx, 2, req.ID))

	declined, err := repo.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDeclined, declined.Status)

	// declining does not assign anything
	client, err := usersRepo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, client.CoachID)

	// a decided request cannot be accepted anymore
	_, err = service.Accept(ctx, 2, req.ID)
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestService_Cancel(t *testing.T) {
	service, repo, _ := newTestService(t)
	ctx := context.Background()

	req, err := service.SendRequest(ctx, 1, 2, "")
	require.NoError(t, err)

	require.NoError(t, service.Cancel(ctx, 1, req.ID))

	cancelled, err := repo.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)

	// cancelling frees the client to send a new request
	_, err = service.SendRequest(ctx, 1, 2, "second try")
	assert.NoError(t, err)
}

func TestService_Cancel_notOwn(t *testing.T) {
	service, _, usersRepo := newTestService(t)
	ctx := context.Background()

	otherClient, err := usersRepo.Add(ctx, users.User{Username: "rex", Role: users.RoleClient})
	require.NoError(t, err)

	req, err := service.SendRequest(ctx, 1, 2, "")
	require.NoError(t, err)

	err = service.Cancel(ctx, otherClient.ID, req.ID)
	assert.ErrorIs(t, err, ErrNotYourRequest)
}

func TestService_Unassign(t *testing.T) {
	service, _, usersRepo := newTestService(t)
	ctx := context.Background()

	req, err := service.SendRequest(ctx, 1, 2, "")
	require.NoError(t, err)
	_, err = service.Accept(ctx, 2, req.ID)
	require.NoError(t, err)

	require.NoError(t, service.Unassign(ctx, 1))

	client, err := usersRepo.Get(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, client.CoachID)

	assert.ErrorIs(t, service.Unassign(ctx, 1), ErrNotAssigned)
}
