package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Yuvraj171/Pdm-AI-Engine/internal/config"
	"github.com/Yuvraj171/Pdm-AI-Engine/internal/models"
)

func newTestNotifier(url string) *WebhookNotifier {
	cfg := &config.Config{}
	cfg.Notifier.WebhookURL = url
	cfg.Notifier.TimeoutSec = 2
	return NewWebhookNotifier(cfg, zap.NewNop())
}

func TestNotifyCritical_Success(t *testing.T) {
	var received CriticalAlert
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := newTestNotifier(server.URL)
	verdict := &models.RiskVerdict{
		VerdictID:     "v-1",
		MachineID:     "furnace-1",
		RiskScore:     0.97,
		Status:        models.StatusCritical,
		RootCause:     models.CauseFlowFailure,
		DriftVelocity: -0.02,
		Timestamp:     time.Now(),
	}

	err := n.NotifyCritical(context.Background(), verdict)

	require.NoError(t, err)
	assert.Equal(t, "v-1", received.VerdictID)
	assert.Equal(t, "furnace-1", received.MachineID)
	assert.Equal(t, "FLOW_FAILURE", received.RootCause)
	assert.InDelta(t, 0.97, received.RiskScore, 1e-9)
}

func TestNotifyCritical_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n := newTestNotifier(server.URL)

	err := n.NotifyCritical(context.Background(), &models.RiskVerdict{
		VerdictID: "v-1",
		MachineID: "furnace-1",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
