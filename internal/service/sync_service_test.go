package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/infra"
	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/model"
	"github.com/IngTecnologia/Bioentry-terminal-firmware/internal/remote"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSyncFixture() (*syncService, *stubQueueRepo, *stubRecordRepo, *stubUserRepo, *stubAPI) {
	queue := newStubQueueRepo()
	records := newStubRecordRepo()
	users := newStubUserRepo()
	api := &stubAPI{online: true}
	cb := infra.NewCircuitBreaker(infra.DefaultCBConfig())
	svc := NewSyncService(testConfig(), queue, records, users, api, cb).(*syncService)
	return svc, queue, records, users, api
}

func enqueueTestRecord(t *testing.T, svc *syncService, records *stubRecordRepo, cedula string) *model.AccessRecord {
	t.Helper()
	rec := &model.AccessRecord{
		TerminalRecordID: "term-" + cedula,
		Cedula:           cedula,
		EmployeeName:     "Empleado " + cedula,
		AccessTimestamp:  time.Now().UTC(),
		AccessType:       model.AccessEntrada,
		Method:           model.MethodOffline,
		VerificationType: model.VerificationManual,
		DeviceID:         "TERM001",
	}
	require.NoError(t, records.Create(context.Background(), nil, rec))
	require.NoError(t, svc.EnqueueRecord(context.Background(), rec))
	return rec
}

func TestEnqueueRecordCreatesPendingItem(t *testing.T) {
	svc, queue, records, _, _ := newSyncFixture()
	rec := enqueueTestRecord(t, svc, records, "12345678")

	require.Len(t, queue.items, 1)
	item := queue.items[0]
	assert.Equal(t, model.SyncStatusPending, item.Status)
	assert.Equal(t, model.SyncActionCreateRecord, item.Action)
	assert.Equal(t, 5, item.MaxAttempts)
	require.NotNil(t, item.RecordID)
	assert.Equal(t, rec.ID, *item.RecordID)
	assert.Contains(t, item.Payload, rec.TerminalRecordID)
}

func TestProcessQueueUploadsAndMarksSynced(t *testing.T) {
	svc, queue, records, _, api := newSyncFixture()
	rec := enqueueTestRecord(t, svc, records, "12345678")

	result, err := svc.ProcessQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Uploaded)
	assert.Equal(t, 1, api.uploadCalls)

	item := queue.byID(1)
	require.NotNil(t, item)
	assert.Equal(t, model.SyncStatusSuccess, item.Status)

	stored, err := records.FindByID(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsSynced)
	require.NotNil(t, stored.ServerID)
	assert.Equal(t, "srv-"+rec.TerminalRecordID, *stored.ServerID)
}

func TestProcessQueueSyncedItemNeverReselected(t *testing.T) {
	svc, _, records, _, api := newSyncFixture()
	enqueueTestRecord(t, svc, records, "12345678")

	_, err := svc.ProcessQueue(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, api.uploadCalls)

	result, err := svc.ProcessQueue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Uploaded)
	assert.Equal(t, 1, api.uploadCalls, "a synced record is never uploaded again")
}

func TestProcessQueueTransientFailureRetries(t *testing.T) {
	svc, queue, records, _, api := newSyncFixture()
	rec := enqueueTestRecord(t, svc, records, "12345678")
	api.uploadErr = errors.New("server error: HTTP 500")

	result, err := svc.ProcessQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)

	item := queue.byID(1)
	assert.Equal(t, model.SyncStatusPending, item.Status, "transient failures stay retryable")
	assert.Equal(t, 1, item.Attempts)
	require.NotNil(t, item.ErrorMsg)

	stored, _ := records.FindByID(context.Background(), rec.ID)
	assert.Equal(t, 1, stored.SyncAttempts)
	assert.False(t, stored.IsSynced)
}

func TestProcessQueuePermanentFailureOn4xx(t *testing.T) {
	svc, queue, records, _, api := newSyncFixture()
	enqueueTestRecord(t, svc, records, "12345678")
	api.uploadErr = &remote.APIError{Status: 422, Detail: "invalid payload"}

	result, err := svc.ProcessQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, model.SyncStatusFailed, queue.byID(1).Status)

	// Failed items are out of the queue for good
	pending, err := queue.ListPending(context.Background(), 50)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestProcessQueueServerRejectedRecordIsPermanent(t *testing.T) {
	svc, queue, records, _, api := newSyncFixture()
	rec := enqueueTestRecord(t, svc, records, "12345678")
	api.uploadResp = &remote.BulkUploadResponse{
		FailedRecords: []remote.FailedRecord{
			{TerminalRecordID: rec.TerminalRecordID, Error: "duplicate"},
		},
	}

	result, err := svc.ProcessQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, model.SyncStatusFailed, queue.byID(1).Status)
}

func TestProcessQueueCorruptPayloadIsPermanent(t *testing.T) {
	svc, queue, _, _, api := newSyncFixture()
	require.NoError(t, queue.Create(context.Background(), &model.SyncQueueItem{
		RecordType:  "access_record",
		Action:      model.SyncActionCreateRecord,
		Payload:     "{not json",
		MaxAttempts: 5,
		Status:      model.SyncStatusPending,
	}))

	result, err := svc.ProcessQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, model.SyncStatusFailed, queue.byID(1).Status)
	assert.Zero(t, api.uploadCalls)
}

func TestProcessQueueUnknownActionIsPermanent(t *testing.T) {
	svc, queue, _, _, _ := newSyncFixture()
	require.NoError(t, queue.Create(context.Background(), &model.SyncQueueItem{
		RecordType:  "user",
		Action:      "push_user",
		Payload:     "{}",
		MaxAttempts: 5,
		Status:      model.SyncStatusPending,
	}))

	result, err := svc.ProcessQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, model.SyncStatusFailed, queue.byID(1).Status)
}

func TestProcessQueueAbandonsAtMaxAttempts(t *testing.T) {
	svc, queue, records, _, api := newSyncFixture()
	enqueueTestRecord(t, svc, records, "12345678")
	api.uploadErr = errors.New("server error: HTTP 500")

	// Push the item to the brink, then one more failed attempt
	old := time.Now().Add(-24 * time.Hour)
	item := queue.byID(1)
	item.Attempts = 4
	item.LastAttempt = &old

	result, err := svc.ProcessQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Abandoned)
	assert.Equal(t, model.SyncStatusAbandoned, queue.byID(1).Status)
	assert.Equal(t, 5, queue.byID(1).Attempts)

	// Abandoned items never reappear in later passes
	pending, err := queue.ListPending(context.Background(), 50)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestProcessQueueHonorsBackoffWindow(t *testing.T) {
	svc, queue, records, _, api := newSyncFixture()
	enqueueTestRecord(t, svc, records, "12345678")

	// 3 prior attempts, last one just now: delay is 8s, not elapsed
	now := time.Now()
	item := queue.byID(1)
	item.Attempts = 3
	item.LastAttempt = &now

	result, err := svc.ProcessQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.NotReady)
	assert.Zero(t, api.uploadCalls)
}

func TestBackoffDelayGrowsToCap(t *testing.T) {
	svc, _, _, _, _ := newSyncFixture()

	assert.Equal(t, time.Second, svc.backoffDelay(0))
	assert.Equal(t, 2*time.Second, svc.backoffDelay(1))
	assert.Equal(t, 8*time.Second, svc.backoffDelay(3))

	cap := time.Duration(svc.cfg.SyncBackoffCapSec) * time.Second
	prev := time.Duration(0)
	for attempts := 0; attempts < 20; attempts++ {
		d := svc.backoffDelay(attempts)
		assert.GreaterOrEqual(t, d, prev, "delay never shrinks")
		assert.LessOrEqual(t, d, cap, "delay never exceeds the cap")
		prev = d
	}
	assert.Equal(t, cap, svc.backoffDelay(19))
}

func TestProcessQueueRespectsBatchSize(t *testing.T) {
	svc, _, records, _, api := newSyncFixture()
	svc.cfg.SyncBatchSize = 2
	for _, cedula := range []string{"11111111", "22222222", "33333333"} {
		enqueueTestRecord(t, svc, records, cedula)
	}

	result, err := svc.ProcessQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Uploaded)
	assert.Equal(t, 2, api.uploadCalls, "one pass is bounded by the batch size")
}

func TestProcessQueueSkipsPassWhenBreakerOpen(t *testing.T) {
	queue := newStubQueueRepo()
	records := newStubRecordRepo()
	api := &stubAPI{online: true}
	cb := infra.NewCircuitBreaker(infra.CircuitBreakerConfig{
		FailureThreshold: 1,
		SuccessThreshold: 1,
		OpenTimeout:      time.Hour,
	})
	svc := NewSyncService(testConfig(), queue, records, newStubUserRepo(), api, cb).(*syncService)
	enqueueTestRecord(t, svc, records, "12345678")

	// Trip the breaker
	require.Error(t, cb.Execute(func() error { return errors.New("down") }))
	require.Equal(t, infra.CBOpen, cb.State())

	result, err := svc.ProcessQueue(context.Background())
	require.NoError(t, err)
	assert.True(t, result.BreakerOpen)
	assert.Zero(t, api.uploadCalls)
	assert.Zero(t, queue.byID(1).Attempts, "a skipped pass consumes no attempts")
}

func TestPerformFullSyncSkippedOffline(t *testing.T) {
	svc, _, _, _, api := newSyncFixture()
	api.online = false

	result := svc.PerformFullSync(context.Background())
	assert.Equal(t, SyncResultSkippedOffline, result.Status)
}

func TestPerformFullSyncNonReentrant(t *testing.T) {
	svc, _, _, _, _ := newSyncFixture()
	svc.inProgress.Store(true)

	result := svc.PerformFullSync(context.Background())
	assert.Equal(t, SyncResultAlreadyInProgress, result.Status)

	svc.inProgress.Store(false)
}

func TestPerformFullSyncPullsUsersAndUploads(t *testing.T) {
	svc, _, records, users, api := newSyncFixture()
	enqueueTestRecord(t, svc, records, "12345678")
	api.syncResp = &remote.UserSyncResponse{
		Records: []remote.UserSyncRecord{
			{Cedula: "12345678", Nombre: "Maria Lopez", Empresa: "acme", Slot: intPtr(3)},
			{Cedula: "87654321", Nombre: "Juan Perez"},
			{Cedula: "", Nombre: "sin documento"}, // skipped
		},
		TotalRecords: 3,
	}

	result := svc.PerformFullSync(context.Background())

	assert.Equal(t, SyncResultSuccess, result.Status)
	assert.Equal(t, 2, result.UsersProcessed)
	assert.Equal(t, 1, result.RecordsUploaded)

	maria, err := users.FindByCedula(context.Background(), "12345678")
	require.NoError(t, err)
	assert.Equal(t, "acme", maria.Empresa)
	assert.True(t, maria.Synced)

	juan, err := users.FindByCedula(context.Background(), "87654321")
	require.NoError(t, err)
	assert.Equal(t, "principal", juan.Empresa, "empty empresa defaults")
}

func TestPerformFullSyncPartialOnUserPullFailure(t *testing.T) {
	svc, _, records, _, api := newSyncFixture()
	enqueueTestRecord(t, svc, records, "12345678")
	api.syncErr = errors.New("server error: HTTP 500")

	result := svc.PerformFullSync(context.Background())

	assert.Equal(t, SyncResultPartial, result.Status)
	assert.Equal(t, 1, result.RecordsUploaded, "queue pass still runs after a failed pull")
	require.Len(t, result.Errors, 1)
}

func TestPerformFullSyncRequeuesOrphanRecords(t *testing.T) {
	svc, queue, records, _, _ := newSyncFixture()

	// Unsynced record whose enqueue was lost
	rec := &model.AccessRecord{
		TerminalRecordID: "term-orphan",
		Cedula:           "12345678",
		AccessTimestamp:  time.Now().UTC(),
		AccessType:       model.AccessEntrada,
		Method:           model.MethodOffline,
		VerificationType: model.VerificationManual,
	}
	require.NoError(t, records.Create(context.Background(), nil, rec))
	require.Empty(t, queue.items)

	result := svc.PerformFullSync(context.Background())

	assert.Equal(t, SyncResultSuccess, result.Status)
	assert.Equal(t, 1, result.RecordsUploaded)
	stored, err := records.FindByID(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsSynced)
}

func TestStatusSnapshot(t *testing.T) {
	svc, _, records, _, api := newSyncFixture()
	enqueueTestRecord(t, svc, records, "12345678")
	enqueueTestRecord(t, svc, records, "87654321")

	_, err := svc.ProcessQueue(context.Background())
	require.NoError(t, err)

	st, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Online)
	assert.Equal(t, "closed", st.BreakerState)
	assert.False(t, st.InProgress)
	assert.Equal(t, int64(2), st.QueueCounts[model.SyncStatusSuccess])
	assert.Equal(t, int64(0), st.QueueCounts[model.SyncStatusPending])
	assert.Nil(t, st.LastFullSync)
	assert.Zero(t, api.autoCalls)
}

func TestBulkRecordMapping(t *testing.T) {
	conf := 0.93
	userID := uint(4)
	ts := time.Date(2026, 3, 15, 8, 30, 0, 0, time.UTC)
	rec := &model.AccessRecord{
		UserID:           &userID,
		TerminalRecordID: "term-abc",
		Cedula:           "12345678",
		EmployeeName:     "Maria Lopez",
		AccessTimestamp:  ts,
		AccessType:       model.AccessEntrada,
		Method:           model.MethodOffline,
		VerificationType: model.VerificationFingerprint,
		ConfidenceScore:  &conf,
		DeviceID:         "TERM001",
		LocationName:     "Planta Norte",
		CreatedAt:        ts,
	}

	bulk := bulkRecordFrom(rec)
	assert.Equal(t, "term-abc", bulk.TerminalRecordID)
	assert.Equal(t, "2026-03-15T08:30:00Z", bulk.AccessTimestamp)
	assert.Equal(t, model.MethodOffline, bulk.Method)
	assert.Equal(t, model.VerificationFingerprint, bulk.VerificationType)
	require.NotNil(t, bulk.UserID)
	assert.Equal(t, userID, *bulk.UserID)
}
