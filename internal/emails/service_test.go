package emails

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alera-fm/alera-backend/internal/repo/repotest"
	"github.com/alera-fm/alera-backend/pkg/db/models"
	"github.com/alera-fm/alera-backend/pkg/enums"
	pkgerrors "github.com/alera-fm/alera-backend/pkg/errors"
	"github.com/alera-fm/alera-backend/pkg/logger"
)

var fixedNow = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*service, *Repository) {
	t.Helper()
	repository := NewRepository(repotest.Open(t))
	svc, err := NewService(ServiceParams{
		Repo:   repository,
		Logger: logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)
	impl := svc.(*service)
	impl.now = func() time.Time { return fixedNow }
	return impl, repository
}

func TestEnqueueDefaultsScheduleToNow(t *testing.T) {
	svc, _ := newTestService(t)

	email, err := svc.Enqueue(context.Background(), EnqueueInput{
		To:       "Ada <ada@alera.test>",
		Subject:  " Your release is live ",
		HTMLBody: "<p>live</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, "ada@alera.test", email.ToEmail)
	assert.Equal(t, "Your release is live", email.Subject)
	assert.Equal(t, enums.EmailStatusPending, email.Status)
	assert.True(t, email.ScheduledAt.Equal(fixedNow))
	assert.Nil(t, email.FromEmail)
	assert.Nil(t, email.TextBody)
}

func TestEnqueueValidation(t *testing.T) {
	svc, _ := newTestService(t)
	cases := map[string]EnqueueInput{
		"bad recipient": {To: "nope", Subject: "s", HTMLBody: "b"},
		"bad sender":    {To: "a@alera.test", From: "nope", Subject: "s", HTMLBody: "b"},
		"no subject":    {To: "a@alera.test", HTMLBody: "b"},
		"no body":       {To: "a@alera.test", Subject: "s"},
	}
	for name, input := range cases {
		_, err := svc.Enqueue(context.Background(), input)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), name)
	}
}

func TestClaimDueSkipsFutureAndLeasedRows(t *testing.T) {
	svc, repository := newTestService(t)
	ctx := context.Background()

	due, err := svc.Enqueue(ctx, EnqueueInput{To: "a@alera.test", Subject: "due", HTMLBody: "b", ScheduledAt: fixedNow.Add(-time.Hour)})
	require.NoError(t, err)
	_, err = svc.Enqueue(ctx, EnqueueInput{To: "b@alera.test", Subject: "later", HTMLBody: "b", ScheduledAt: fixedNow.Add(time.Hour)})
	require.NoError(t, err)

	claimed, err := repository.ClaimDue(ctx, fixedNow, 5*time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, due.ID, claimed[0].ID)

	again, err := repository.ClaimDue(ctx, fixedNow.Add(time.Minute), 5*time.Minute, 10)
	require.NoError(t, err)
	assert.Empty(t, again)

	expired, err := repository.ClaimDue(ctx, fixedNow.Add(10*time.Minute), 5*time.Minute, 10)
	require.NoError(t, err)
	assert.Len(t, expired, 1)
}

func TestMarkAttemptFailedKeepsPendingUntilTerminal(t *testing.T) {
	svc, repository := newTestService(t)
	ctx := context.Background()
	email, err := svc.Enqueue(ctx, EnqueueInput{To: "a@alera.test", Subject: "s", HTMLBody: "b"})
	require.NoError(t, err)

	require.NoError(t, repository.MarkAttemptFailed(ctx, email.ID, "timeout", false))
	stored := load(t, repository, email)
	assert.Equal(t, enums.EmailStatusPending, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	require.NotNil(t, stored.LastError)
	assert.Equal(t, "timeout", *stored.LastError)

	require.NoError(t, repository.MarkAttemptFailed(ctx, email.ID, "rejected", true))
	stored = load(t, repository, email)
	assert.Equal(t, enums.EmailStatusFailed, stored.Status)
	assert.Equal(t, 2, stored.Attempts)
}

func TestMarkSent(t *testing.T) {
	svc, repository := newTestService(t)
	ctx := context.Background()
	email, err := svc.Enqueue(ctx, EnqueueInput{To: "a@alera.test", Subject: "s", HTMLBody: "b"})
	require.NoError(t, err)

	require.NoError(t, repository.MarkSent(ctx, email.ID, fixedNow))
	stored := load(t, repository, email)
	assert.Equal(t, enums.EmailStatusSent, stored.Status)
	require.NotNil(t, stored.SentAt)
	assert.Nil(t, stored.ClaimedUntil)
}

func load(t *testing.T, repository *Repository, email *models.EmailQueue) models.EmailQueue {
	t.Helper()
	var stored models.EmailQueue
	require.NoError(t, repository.DB(context.Background()).Where("id = ?", email.ID).Take(&stored).Error)
	return stored
}
