package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kasuwa-ng/marketplace-backend/pkg/db/models"
	"github.com/kasuwa-ng/marketplace-backend/pkg/enums"
	pkgerrors "github.com/kasuwa-ng/marketplace-backend/pkg/errors"
	pkgpagination "github.com/kasuwa-ng/marketplace-backend/pkg/pagination"
)

// StatementParams scopes a statement listing to one user's ledger activity.
type StatementParams struct {
	UserID uuid.UUID
	pkgpagination.Params
}

type StatementResult struct {
	Items  []StatementItem `json:"items"`
	Cursor string          `json:"cursor"`
}

// StatementItem is one transaction as seen from the requesting user's side:
// the debit and credit columns reflect only that user's entries.
type StatementItem struct {
	TransactionID uuid.UUID               `json:"transaction_id"`
	Reference     string                  `json:"reference"`
	Type          enums.TransactionType   `json:"type"`
	Status        enums.TransactionStatus `json:"status"`
	Debit         decimal.Decimal         `json:"debit"`
	Credit        decimal.Decimal         `json:"credit"`
	Currency      enums.Currency          `json:"currency"`
	Description   string                  `json:"description"`
	CreatedAt     time.Time               `json:"created_at"`
}

type statementQuery struct {
	userID uuid.UUID
	limit  int
	cursor *pkgpagination.Cursor
}

func toStatementItem(txn models.Transaction, userID uuid.UUID) StatementItem {
	item := StatementItem{
		TransactionID: txn.ID,
		Reference:     txn.Reference,
		Type:          txn.Type,
		Status:        txn.Status,
		Debit:         decimal.Zero,
		Credit:        decimal.Zero,
		Currency:      txn.Currency,
		Description:   txn.Description,
		CreatedAt:     txn.CreatedAt,
	}
	for _, entry := range txn.Entries {
		if entry.UserID == nil || *entry.UserID != userID {
			continue
		}
		item.Debit = item.Debit.Add(entry.Debit)
		item.Credit = item.Credit.Add(entry.Credit)
	}
	return item
}

func (s *service) ListStatement(ctx context.Context, params StatementParams) (*StatementResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	limit := pkgpagination.NormalizeLimit(params.Limit)
	query := statementQuery{
		userID: params.UserID,
		limit:  pkgpagination.LimitWithBuffer(params.Limit),
	}
	if params.Cursor != "" {
		cursor, err := pkgpagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.cursor = cursor
	}

	rows, err := s.repo.ListStatement(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list statement")
	}

	nextCursor := ""
	if len(rows) > limit {
		nextCursor = pkgpagination.EncodeCursor(pkgpagination.Cursor{
			CreatedAt: rows[limit].CreatedAt,
			ID:        rows[limit].ID,
		})
		rows = rows[:limit]
	}

	items := make([]StatementItem, len(rows))
	for i, row := range rows {
		items[i] = toStatementItem(row, params.UserID)
	}

	return &StatementResult{
		Items:  items,
		Cursor: nextCursor,
	}, nil
}
