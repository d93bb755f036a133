package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/stravasync/internal/domain"
)

type stubWebhookHandler struct{ handled []int64 }

func (s *stubWebhookHandler) Handle(_ context.Context, e domain.WebhookEvent) error {
	s.handled = append(s.handled, e.ID)
	return nil
}

type stubBackfiller struct{ athletes []int64 }

func (s *stubBackfiller) BackfillAll(_ context.Context, athleteID int64) (int, error) {
	s.athletes = append(s.athletes, athleteID)
	return 3, nil
}

func TestRunnerRoutesByKind(t *testing.T) {
	webhooks := &stubWebhookHandler{}
	backfills := &stubBackfiller{}
	runner := NewRunner(webhooks, backfills, nil)
	ctx := context.Background()

	require.NoError(t, runner.Run(ctx, NewWebhookTask(domain.WebhookEvent{ID: 11, OwnerID: 5})))
	require.NoError(t, runner.Run(ctx, NewBackfillTask(5)))

	require.Equal(t, []int64{11}, webhooks.handled)
	require.Equal(t, []int64{5}, backfills.athletes)
}

func TestRunnerRejectsMalformedTasks(t *testing.T) {
	runner := NewRunner(&stubWebhookHandler{}, &stubBackfiller{}, nil)

	require.Error(t, runner.Run(context.Background(), Task{Kind: KindWebhook}))
	require.Error(t, runner.Run(context.Background(), Task{Kind: "mystery"}))
}
