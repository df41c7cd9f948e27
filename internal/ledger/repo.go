package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kasuwa-ng/marketplace-backend/pkg/db/models"
	"github.com/kasuwa-ng/marketplace-backend/pkg/enums"
)

// Repository manages persistence for ledger transactions and their entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, txn *models.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	FindByReference(ctx context.Context, txnType enums.TransactionType, reference string) (*models.Transaction, error)
	ListByRelatedEntity(ctx context.Context, entityType enums.RelatedEntityType, entityID uuid.UUID) ([]models.Transaction, error)
	ListPendingBefore(ctx context.Context, txnType enums.TransactionType, cutoff time.Time) ([]models.Transaction, error)
	LatestWalletAccount(ctx context.Context, userID uuid.UUID) (enums.LedgerAccount, error)
	ListStatement(ctx context.Context, opts statementQuery) ([]models.Transaction, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error
	SwapEntrySides(ctx context.Context, transactionID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, txn *models.Transaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		Where("id = ?", id).
		First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) FindByReference(ctx context.Context, txnType enums.TransactionType, reference string) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		Where("type = ? AND reference = ?", txnType, reference).
		First(&txn).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) ListByRelatedEntity(ctx context.Context, entityType enums.RelatedEntityType, entityID uuid.UUID) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := r.db.WithContext(ctx).
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		Where("related_entity_type = ? AND related_entity_id = ?", entityType, entityID).
		Order("created_at ASC").
		Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *repository) ListPendingBefore(ctx context.Context, txnType enums.TransactionType, cutoff time.Time) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := r.db.WithContext(ctx).
		Where("type = ? AND status = ? AND created_at < ?", txnType, enums.TransactionStatusPending, cutoff).
		Order("created_at ASC").
		Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}

// LatestWalletAccount returns the wallet account of the user's most recent
// wallet-account entry, or gorm.ErrRecordNotFound when the user has none.
func (r *repository) LatestWalletAccount(ctx context.Context, userID uuid.UUID) (enums.LedgerAccount, error) {
	var entry models.Entry
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND account IN ?", userID,
			[]enums.LedgerAccount{enums.AccountWalletVendor, enums.AccountWalletDispatch}).
		Order("created_at DESC").
		First(&entry).Error
	if err != nil {
		return "", err
	}
	return entry.Account, nil
}

// ListStatement returns transactions touching the user's entries, newest
// first, using cursor pagination.
func (r *repository) ListStatement(ctx context.Context, opts statementQuery) ([]models.Transaction, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Preload("Entries", func(db *gorm.DB) *gorm.DB { return db.Order("seq ASC") }).
		Joins("JOIN entries ON entries.transaction_id = transactions.id").
		Where("entries.user_id = ?", opts.userID).
		Distinct("transactions.*")

	if opts.cursor != nil {
		query = query.Where(
			"(transactions.created_at < ?) OR (transactions.created_at = ? AND transactions.id < ?)",
			opts.cursor.CreatedAt, opts.cursor.CreatedAt, opts.cursor.ID,
		)
	}

	var txns []models.Transaction
	err := query.
		Order("transactions.created_at DESC").
		Order("transactions.id DESC").
		Limit(opts.limit).
		Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *repository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// SwapEntrySides flips debit and credit on every entry of the transaction.
func (r *repository) SwapEntrySides(ctx context.Context, transactionID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Entry{}).
		Where("transaction_id = ?", transactionID).
		Updates(map[string]any{
			"debit":  gorm.Expr("credit"),
			"credit": gorm.Expr("debit"),
		}).Error
}
