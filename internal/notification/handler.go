package notification

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	ingestor "github.com/vynious/finOS/internal/ingestor/usecase"
	receiptdomain "github.com/vynious/finOS/internal/receipt/domain"

	"go.uber.org/zap"
)

// GmailNotification is the payload Gmail publishes on a mailbox change
type GmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// Syncer runs an on-demand sync for one user
type Syncer interface {
	SyncUser(ctx context.Context, email, trigger string) ([]*receiptdomain.Receipt, error)
}

// Handler turns notifications into syncs, ignoring history ids at or below
// the last one seen for the same mailbox.
type Handler struct {
	syncer Syncer
	logger *zap.Logger

	mu            sync.Mutex
	lastHistoryID map[string]uint64
}

func NewHandler(syncer Syncer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		syncer:        syncer,
		logger:        logger.Named("notification"),
		lastHistoryID: make(map[string]uint64),
	}
}

// Handle processes one notification payload. It returns an error only when
// the message should be delivered again.
func (h *Handler) Handle(ctx context.Context, data []byte) error {
	var n GmailNotification
	if err := json.Unmarshal(data, &n); err != nil {
		h.logger.Warn("dropping malformed notification", zap.Error(err))
		return nil
	}
	email := strings.ToLower(strings.TrimSpace(n.EmailAddress))
	if email == "" {
		h.logger.Warn("dropping notification without email address")
		return nil
	}
	log := h.logger.With(zap.String("user", email), zap.Uint64("history_id", n.HistoryID))

	if !h.claim(email, n.HistoryID) {
		log.Debug("skipping duplicate notification")
		return nil
	}

	receipts, err := h.syncer.SyncUser(ctx, email, ingestor.TriggerPush)
	switch {
	case errors.Is(err, ingestor.ErrUserNotFound), errors.Is(err, ingestor.ErrUserInactive):
		log.Info("ignoring notification", zap.Error(err))
		return nil
	case err != nil:
		h.release(email, n.HistoryID)
		return err
	}

	log.Info("push sync completed", zap.Int("receipts", len(receipts)))
	return nil
}

func (h *Handler) claim(email string, historyID uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if last, ok := h.lastHistoryID[email]; ok && historyID <= last {
		return false
	}
	h.lastHistoryID[email] = historyID
	return true
}

// release forgets a claim so a redelivered notification is processed again,
// unless a newer one has been claimed since.
func (h *Handler) release(email string, historyID uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.lastHistoryID[email] == historyID {
		delete(h.lastHistoryID, email)
	}
}
