package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kasuwa-ng/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/kasuwa-ng/marketplace-backend/pkg/errors"
	pkgpagination "github.com/kasuwa-ng/marketplace-backend/pkg/pagination"
)

func setCreatedAt(t *testing.T, db *gorm.DB, id uuid.UUID, at time.Time) {
	t.Helper()
	require.NoError(t, db.Model(&models.Transaction{}).Where("id = ?", id).Update("created_at", at).Error)
}

func TestListStatementPaginatesNewestFirst(t *testing.T) {
	svc, db := newLedgerService(t)
	vendorID := uuid.New()
	dispatchID := uuid.New()
	otherVendorID := uuid.New()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		txn, err := svc.Create(context.Background(), capturedPaymentInput(vendorID, dispatchID, uuid.New()))
		require.NoError(t, err)
		setCreatedAt(t, db, txn.ID, base.Add(time.Duration(i)*time.Minute))
		ids = append(ids, txn.ID)
	}
	// A transaction for somebody else must never leak into the statement.
	foreign, err := svc.Create(context.Background(), capturedPaymentInput(otherVendorID, dispatchID, uuid.New()))
	require.NoError(t, err)
	setCreatedAt(t, db, foreign.ID, base.Add(time.Hour))

	page, err := svc.ListStatement(context.Background(), StatementParams{
		UserID: vendorID,
		Params: pkgpagination.Params{Limit: 2},
	})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.NotEmpty(t, page.Cursor)
	assert.Equal(t, ids[2], page.Items[0].TransactionID)
	assert.Equal(t, ids[1], page.Items[1].TransactionID)
	assert.True(t, page.Items[0].Credit.Equal(dec("9000.00")))
	assert.True(t, page.Items[0].Debit.IsZero())

	rest, err := svc.ListStatement(context.Background(), StatementParams{
		UserID: vendorID,
		Params: pkgpagination.Params{Limit: 2, Cursor: page.Cursor},
	})
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)
	assert.Empty(t, rest.Cursor)
	assert.Equal(t, ids[0], rest.Items[0].TransactionID)
}

func TestListStatementSumsOnlyUsersEntries(t *testing.T) {
	svc, _ := newLedgerService(t)
	vendorID := uuid.New()
	dispatchID := uuid.New()

	_, err := svc.Create(context.Background(), capturedPaymentInput(vendorID, dispatchID, uuid.New()))
	require.NoError(t, err)

	page, err := svc.ListStatement(context.Background(), StatementParams{UserID: dispatchID})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.True(t, page.Items[0].Credit.Equal(dec("1075.00")))
}

func TestListStatementValidation(t *testing.T) {
	svc, _ := newLedgerService(t)

	_, err := svc.ListStatement(context.Background(), StatementParams{})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)

	_, err = svc.ListStatement(context.Background(), StatementParams{
		UserID: uuid.New(),
		Params: pkgpagination.Params{Cursor: "%%%not-base64%%%"},
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)
}
