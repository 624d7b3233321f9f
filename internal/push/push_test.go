package push

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatmesh/internal/config"
	"chatmesh/internal/models"
)

func TestNotifyWebhookSuccessNeverTouchesPushLog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	notifier := NewWebhookNotifier(config.PushConfig{WebhookURL: srv.URL, TimeoutMS: 1000}, nil)

	// db is nil: if Notify fell through to logToPushTable on a successful
	// webhook call, this would panic on a nil db dereference.
	err := notifier.Notify(context.Background(), models.PushEvent{
		UserID:    uuid.New(),
		DeviceID:  uuid.New(),
		MessageID: uuid.New(),
		Preview:   "hi",
	})
	require.NoError(t, err)
}

func TestNotifyFallsBackWhenWebhookURLIsEmpty(t *testing.T) {
	notifier := NewWebhookNotifier(config.PushConfig{WebhookURL: "", TimeoutMS: 1000}, nil)

	// No webhook configured: Notify must go straight to logToPushTable,
	// which dereferences the nil db and panics. Asserting the panic
	// (rather than requiring success) confirms the empty-URL branch was
	// taken without needing a real database.
	assert.Panics(t, func() {
		_ = notifier.Notify(context.Background(), models.PushEvent{
			UserID:    uuid.New(),
			DeviceID:  uuid.New(),
			MessageID: uuid.New(),
			Preview:   "hi",
		})
	})
}
