package usecase

import (
	"context"

	emaildomain "github.com/vynious/finOS/internal/email/domain"
	emailusecase "github.com/vynious/finOS/internal/email/usecase"
	receiptdomain "github.com/vynious/finOS/internal/receipt/domain"
	userdomain "github.com/vynious/finOS/internal/user/domain"
)

// TokenSource returns a usable access token for a user's linked mailbox
type TokenSource interface {
	GetValidToken(ctx context.Context, email, provider string) (string, error)
}

// MessageSource is the mail provider
type MessageSource interface {
	ListAll(ctx context.Context, accessToken string, clauses []string) ([]emaildomain.CandidateMessage, error)
	FetchRaw(ctx context.Context, accessToken, messageID string) (*emaildomain.RawMessage, error)
}

// Tracker is the per-user processed-message set
type Tracker interface {
	Get(ctx context.Context, owner string) (emailusecase.IDSet, error)
	Set(ctx context.Context, owner string, ids emailusecase.IDSet) error
	Lock(owner string) func()
}

// SubjectFilter decides which messages are worth extracting
type SubjectFilter interface {
	Match(subject string) bool
}

// ReceiptStore receives every extracted receipt
type ReceiptStore interface {
	InsertMany(ctx context.Context, receipts []*receiptdomain.Receipt) error
}

// UserSyncer syncs one user's mailbox and returns the receipts found
type UserSyncer interface {
	SyncOne(ctx context.Context, user *userdomain.User, clauses []string) ([]*receiptdomain.Receipt, error)
}
