package syncqueue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/taxsync/internal/taxservice"
	"github.com/angelmondragon/taxsync/internal/taxservice/taxservicetest"
	"github.com/angelmondragon/taxsync/pkg/config"
	dbpkg "github.com/angelmondragon/taxsync/pkg/db"
	"github.com/angelmondragon/taxsync/pkg/db/models"
	"github.com/angelmondragon/taxsync/pkg/enums"
	pkgerrors "github.com/angelmondragon/taxsync/pkg/errors"
	"github.com/angelmondragon/taxsync/pkg/logger"
	"github.com/angelmondragon/taxsync/pkg/migrate"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, migrate.Up(context.Background(), sqlDB, migrate.Dialect("sqlite")))
	return conn
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	conn := openTestDB(t)
	svc, err := NewService(ServiceParams{
		DB:         dbpkg.Wrap(conn),
		Repository: NewRepository(conn),
		Logs:       NewLogRepository(conn),
		Logger:     logger.Nop(),
	})
	require.NoError(t, err)
	return svc, conn
}

func invoiceDoc(ref string) Document {
	return Document{
		Type:         enums.DocumentInvoice,
		Ref:          ref,
		StoreID:      "default",
		OrderRef:     "O-" + ref,
		CustomerCode: "42",
		Date:         time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
		Destination:  taxservice.Address{Line1: "350 5th Ave", City: "New York", Region: "NY", Country: "US", PostalCode: "10001"},
		Lines: []taxservice.Line{{
			ID:        "item:1",
			SKU:       "A",
			Quantity:  decimal.NewFromInt(2),
			Amount:    decimal.RequireFromString("100.00"),
			TaxAmount: decimal.RequireFromString("8.00"),
		}},
		Summary: []taxservice.SummaryRow{{Name: "NY STATE TAX", Rate: decimal.NewFromInt(8), Amount: decimal.RequireFromString("8.00")}},
	}
}

func TestEnqueueRejectsDuplicate(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	first, err := svc.Enqueue(ctx, invoiceDoc("100000001"))
	require.NoError(t, err)
	assert.Equal(t, enums.SyncStatusPending, first.Status)

	_, err = svc.Enqueue(ctx, invoiceDoc("100000001"))
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDuplicate))

	var count int64
	require.NoError(t, conn.Model(&models.TaxSyncQueue{}).Where("document_ref = ?", "100000001").Count(&count).Error)
	assert.Equal(t, int64(1), count)

	memo := invoiceDoc("100000001")
	memo.Type = enums.DocumentCreditMemo
	_, err = svc.Enqueue(ctx, memo)
	require.NoError(t, err, "a credit memo with the same ref is a different document")
}

func TestEnqueueValidatesDocument(t *testing.T) {
	svc, _ := newTestService(t)
	doc := invoiceDoc("")
	_, err := svc.Enqueue(context.Background(), doc)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestActiveIndexBlocksSecondPending(t *testing.T) {
	_, conn := newTestService(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, &models.TaxSyncQueue{
		DocumentType: enums.DocumentInvoice, DocumentRef: "7", StoreID: "s", Status: enums.SyncStatusCommitted, Payload: []byte(`{}`),
	}))
	err := repo.Insert(ctx, &models.TaxSyncQueue{
		DocumentType: enums.DocumentInvoice, DocumentRef: "7", StoreID: "s", Status: enums.SyncStatusPending, Payload: []byte(`{}`),
	})
	require.Error(t, err)
	assert.True(t, dbpkg.IsUniqueViolation(err, activeIndexName))

	require.NoError(t, repo.Insert(ctx, &models.TaxSyncQueue{
		DocumentType: enums.DocumentInvoice, DocumentRef: "7", StoreID: "s", Status: enums.SyncStatusError, Payload: []byte(`{}`),
	}), "error rows are not active")
}

func TestLoadByRefAndNextBatchOrder(t *testing.T) {
	svc, conn := newTestService(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	missing, err := svc.LoadByRef(ctx, enums.DocumentInvoice, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	base := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	for i, ref := range []string{"3", "1", "2"} {
		require.NoError(t, repo.Insert(ctx, &models.TaxSyncQueue{
			DocumentType: enums.DocumentInvoice,
			DocumentRef:  ref,
			StoreID:      "s",
			Status:       enums.SyncStatusPending,
			Payload:      []byte(`{}`),
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}))
	}

	batch, err := svc.NextBatch(ctx, 2)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, "3", batch[0].DocumentRef)
	assert.Equal(t, "1", batch[1].DocumentRef)

	found, err := svc.LoadByRef(ctx, enums.DocumentInvoice, "2")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, enums.SyncStatusPending, found.Status)
}

func TestClaimIsExclusive(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	row, err := svc.Enqueue(ctx, invoiceDoc("100000002"))
	require.NoError(t, err)

	require.NoError(t, svc.Claim(ctx, row.ID))
	err = svc.Claim(ctx, row.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))

	got, err := svc.Get(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SyncStatusProcessing, got.Status)
	assert.Equal(t, 1, got.AttemptCount)
}

func TestReprocess(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	row, err := svc.Enqueue(ctx, invoiceDoc("100000003"))
	require.NoError(t, err)

	_, err = svc.Reprocess(ctx, row.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict), "pending records cannot be replayed")

	require.NoError(t, svc.Claim(ctx, row.ID))
	require.NoError(t, svc.MarkFailed(ctx, row.ID, time.Now().UTC(), errors.New("timeout"), nil))

	replayed, err := svc.Reprocess(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SyncStatusPending, replayed.Status)

	_, err = svc.Enqueue(ctx, invoiceDoc("100000003"))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDuplicate))
}

func TestReleaseStuckProcessingRecord(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	at := time.Date(2026, 10, 19, 13, 0, 0, 0, time.UTC)

	row, err := svc.Enqueue(ctx, invoiceDoc("100000004"))
	require.NoError(t, err)

	_, err = svc.Release(ctx, row.ID, at, "")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict), "pending records cannot be released")

	require.NoError(t, svc.Claim(ctx, row.ID))
	stuck, err := svc.List(ctx, enums.SyncStatusProcessing, 10)
	require.NoError(t, err)
	require.Len(t, stuck, 1)
	assert.Equal(t, row.ID, stuck[0].ID)

	released, err := svc.Release(ctx, row.ID, at, "worker crashed after submit")
	require.NoError(t, err)
	assert.Equal(t, enums.SyncStatusError, released.Status)
	require.NotNil(t, released.LastError)
	assert.Equal(t, "worker crashed after submit", *released.LastError)

	entries, err := svc.Logs(ctx, row.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, enums.LogSeverityWarning, entries[0].Severity)

	replayed, err := svc.Reprocess(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SyncStatusPending, replayed.Status)

	_, err = svc.Release(ctx, uuid.New(), at, "")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func newTestProcessor(t *testing.T, svc *Service, fake *taxservicetest.Fake, mode string) *Processor {
	t.Helper()
	p, err := NewProcessor(ProcessorParams{
		Queue:  svc,
		Client: fake,
		Config: config.TaxConfig{Mode: mode},
		Logger: logger.Nop(),
		Now:    func() time.Time { return time.Date(2026, 10, 19, 13, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return p
}

func TestProcessorCommitsInvoicesAndCancelsCreditMemos(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	fake := &taxservicetest.Fake{}

	inv, err := svc.Enqueue(ctx, invoiceDoc("100000010"))
	require.NoError(t, err)
	memoDoc := invoiceDoc("100000011")
	memoDoc.Type = enums.DocumentCreditMemo
	memo, err := svc.Enqueue(ctx, memoDoc)
	require.NoError(t, err)

	res, err := newTestProcessor(t, svc, fake, "full").Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Claimed: 2, Committed: 2}, res)

	require.Len(t, fake.Commits, 1)
	assert.Equal(t, "100000010", fake.Commits[0].DocumentRef)
	assert.True(t, fake.Commits[0].Commit)
	require.Len(t, fake.Cancels, 1)
	assert.Equal(t, taxservice.DocumentReturnInvoice, fake.Cancels[0].DocumentType)

	for _, id := range []uuid.UUID{inv.ID, memo.ID} {
		row, err := svc.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, enums.SyncStatusCommitted, row.Status)
		assert.NotNil(t, row.ProcessedAt)
	}
}

func TestProcessorFailureIsNotRetried(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	fake := &taxservicetest.Fake{CommitErr: errors.New("connection reset by peer")}

	row, err := svc.Enqueue(ctx, invoiceDoc("100000020"))
	require.NoError(t, err)

	p := newTestProcessor(t, svc, fake, "full")
	res, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{Claimed: 1, Failed: 1}, res)

	got, err := svc.Get(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SyncStatusError, got.Status)
	require.NotNil(t, got.LastError)
	assert.Contains(t, *got.LastError, "connection reset by peer")

	logs, err := svc.Logs(ctx, row.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, enums.LogSeverityError, logs[0].Severity)
	assert.Contains(t, string(logs[0].Detail), "SERVICE_UNAVAILABLE")

	res, err = p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Len(t, fake.Commits, 1, "errored records must not be resubmitted")
}

func TestProcessorModeGate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	fake := &taxservicetest.Fake{}

	_, err := svc.Enqueue(ctx, invoiceDoc("100000030"))
	require.NoError(t, err)

	res, err := newTestProcessor(t, svc, fake, "calculate_only").Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Empty(t, fake.Commits)

	_, err = newTestProcessor(t, svc, fake, "calculate_submit").Run(ctx)
	require.NoError(t, err)
	require.Len(t, fake.Commits, 1)
	assert.False(t, fake.Commits[0].Commit, "calculate_submit posts documents uncommitted")
}

func TestLogRepositoryDeleteOlderThan(t *testing.T) {
	_, conn := newTestService(t)
	logs := NewLogRepository(conn)
	ctx := context.Background()
	now := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)

	require.NoError(t, logs.Insert(ctx, &models.TaxSyncLog{Severity: enums.LogSeverityInfo, Message: "old", CreatedAt: now.AddDate(0, 0, -40)}))
	require.NoError(t, logs.Insert(ctx, &models.TaxSyncLog{Severity: enums.LogSeverityInfo, Message: "new", CreatedAt: now.AddDate(0, 0, -1)}))

	var deleted int64
	err := dbpkg.Wrap(conn).WithTx(ctx, func(tx *gorm.DB) error {
		n, err := logs.DeleteOlderThan(ctx, tx, now.AddDate(0, 0, -30))
		deleted = n
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining []models.TaxSyncLog
	require.NoError(t, conn.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Equal(t, "new", remaining[0].Message)
}
