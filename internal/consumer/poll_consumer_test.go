package consumer

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Yuvraj171/Pdm-AI-Engine/internal/models"
	"github.com/Yuvraj171/Pdm-AI-Engine/internal/repository"
)

func setupMockVerdictRepoForConsumer(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *repository.VerdictRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, repository.NewVerdictRepository(db, zap.NewNop())
}

func sqlmockResult() sql.Result {
	return sqlmock.NewResult(0, 1)
}

// stubScorer 测试用评分桩
type stubScorer struct {
	verdict *models.RiskVerdict
	calls   []string
}

func (s *stubScorer) Score(machineID string, sample models.TelemetrySample) (*models.RiskVerdict, error) {
	s.calls = append(s.calls, machineID)
	v := *s.verdict
	v.MachineID = machineID
	v.Timestamp = sample.Timestamp
	return &v, nil
}

// recordingNotifier 记录收到的关键告警
type recordingNotifier struct {
	notified []*models.RiskVerdict
}

func (n *recordingNotifier) NotifyCritical(_ context.Context, verdict *models.RiskVerdict) error {
	n.notified = append(n.notified, verdict)
	return nil
}

func TestMarkSeen_SkipsDuplicates(t *testing.T) {
	c := &PollConsumer{lastSeen: make(map[string]time.Time), logger: zap.NewNop()}
	ts := time.Now()

	assert.True(t, c.markSeen("furnace-1", ts))
	assert.False(t, c.markSeen("furnace-1", ts))
	assert.False(t, c.markSeen("furnace-1", ts.Add(-time.Second)))
	assert.True(t, c.markSeen("furnace-1", ts.Add(time.Second)))

	// 不同机台互不影响
	assert.True(t, c.markSeen("furnace-2", ts))
}

func TestMachineIDFromTopic(t *testing.T) {
	id, err := machineIDFromTopic("sentinel/furnace-1/telemetry")
	require.NoError(t, err)
	assert.Equal(t, "furnace-1", id)

	_, err = machineIDFromTopic("sentinel//telemetry")
	assert.Error(t, err)

	_, err = machineIDFromTopic("sentinel/furnace-1")
	assert.Error(t, err)

	_, err = machineIDFromTopic("other/furnace-1/telemetry/extra")
	assert.Error(t, err)
}

func TestProcessSample_CriticalTriggersNotifier(t *testing.T) {
	_, _, cacheManager := setupTestRedis(t)

	notifier := &recordingNotifier{}
	db, mock, repo := setupMockVerdictRepoForConsumer(t)
	defer db.Close()
	mock.ExpectExec(`INSERT INTO risk_verdicts`).WillReturnResult(sqlmockResult())

	c := &PollConsumer{
		config:      cacheManager.config,
		cache:       cacheManager,
		verdictRepo: repo,
		notifier:    notifier,
		logger:      zap.NewNop(),
		lastSeen:    make(map[string]time.Time),
	}

	scorer := &stubScorer{verdict: &models.RiskVerdict{
		VerdictID: "v-crit",
		RiskScore: 0.97,
		Status:    models.StatusCritical,
		RootCause: models.CauseFlowFailure,
	}}

	sample := models.TelemetrySample{
		Timestamp:    time.Now(),
		Pressure:     3.5,
		QuenchFlow:   20,
		MachineState: models.StateQuench,
	}

	err := c.ProcessSample(context.Background(), "furnace-1", sample, scorer)

	require.NoError(t, err)
	require.Len(t, notifier.notified, 1)
	assert.Equal(t, "v-crit", notifier.notified[0].VerdictID)
	assert.Equal(t, []string{"furnace-1"}, scorer.calls)

	// 裁决缓存已更新
	got, err := cacheManager.GetCachedVerdict(context.Background(), "furnace-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.StatusCritical, got.Status)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessSample_OptimalDoesNotNotify(t *testing.T) {
	_, _, cacheManager := setupTestRedis(t)

	notifier := &recordingNotifier{}
	db, mock, repo := setupMockVerdictRepoForConsumer(t)
	defer db.Close()
	mock.ExpectExec(`INSERT INTO risk_verdicts`).WillReturnResult(sqlmockResult())

	c := &PollConsumer{
		config:      cacheManager.config,
		cache:       cacheManager,
		verdictRepo: repo,
		notifier:    notifier,
		logger:      zap.NewNop(),
		lastSeen:    make(map[string]time.Time),
	}

	scorer := &stubScorer{verdict: &models.RiskVerdict{
		VerdictID: "v-ok",
		RiskScore: 0.04,
		Status:    models.StatusOptimal,
		RootCause: models.CauseNone,
	}}

	err := c.ProcessSample(context.Background(), "furnace-1", models.TelemetrySample{
		Timestamp:    time.Now(),
		MachineState: models.StateQuench,
		Pressure:     3.5,
	}, scorer)

	require.NoError(t, err)
	assert.Empty(t, notifier.notified)
	require.NoError(t, mock.ExpectationsWereMet())
}
