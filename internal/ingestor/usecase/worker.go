package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	authdomain "github.com/vynious/finOS/internal/auth/domain"
	emaildomain "github.com/vynious/finOS/internal/email/domain"
	emailusecase "github.com/vynious/finOS/internal/email/usecase"
	receiptdomain "github.com/vynious/finOS/internal/receipt/domain"
	userdomain "github.com/vynious/finOS/internal/user/domain"
	"github.com/vynious/finOS/pkg/ai"
	"github.com/vynious/finOS/pkg/mailparse"
	"github.com/vynious/finOS/pkg/metrics"

	"go.uber.org/zap"
)

var (
	ErrNoSentDate = errors.New("message has no usable date")
	ErrNoIssuer   = errors.New("message has no sender")
)

const (
	outcomeExtracted = "extracted"
	outcomeFiltered  = "filtered"
	outcomeFailed    = "failed"
)

// UserSyncWorker runs one user's messages through fetch, parse, filter and
// extraction with a fixed number of concurrent pipelines.
type UserSyncWorker struct {
	tokens        TokenSource
	messages      MessageSource
	tracker       Tracker
	filter        SubjectFilter
	extractor     ai.ReceiptExtractor
	workerCount   int
	commitTimeout time.Duration
	logger        *zap.Logger
}

// NewUserSyncWorker creates a new UserSyncWorker. commitTimeout bounds the
// tracked-set write, which still runs after the user's deadline expired.
func NewUserSyncWorker(
	tokens TokenSource,
	messages MessageSource,
	tracker Tracker,
	filter SubjectFilter,
	extractor ai.ReceiptExtractor,
	workerCount int,
	commitTimeout time.Duration,
	logger *zap.Logger,
) *UserSyncWorker {
	if workerCount <= 0 {
		workerCount = 4
	}
	if commitTimeout <= 0 {
		commitTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserSyncWorker{
		tokens:        tokens,
		messages:      messages,
		tracker:       tracker,
		filter:        filter,
		extractor:     extractor,
		workerCount:   workerCount,
		commitTimeout: commitTimeout,
		logger:        logger.Named("worker"),
	}
}

type messageResult struct {
	id          string
	receipts    []*receiptdomain.Receipt
	outcome     string
	// interrupted results failed because the whole sync was cancelled and
	// are not marked tracked
	interrupted bool
}

// SyncOne lists the user's matching messages, processes the ones not yet
// tracked and commits the grown tracked set before returning.
//
// Token, listing and commit failures return no receipts. If ctx expires
// mid-run, the messages already attempted are committed and their receipts
// are returned together with the error.
func (w *UserSyncWorker) SyncOne(ctx context.Context, user *userdomain.User, clauses []string) ([]*receiptdomain.Receipt, error) {
	log := w.logger.With(zap.String("user", user.Email))

	token, err := w.tokens.GetValidToken(ctx, user.Email, authdomain.ProviderGoogle)
	if err != nil {
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}

	candidates, err := w.messages.ListAll(ctx, token, clauses)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	unlock := w.tracker.Lock(user.Email)
	defer unlock()

	tracked, err := w.tracker.Get(ctx, user.Email)
	if err != nil {
		return nil, err
	}

	untracked := emailusecase.Untracked(candidates, tracked)
	log.Info("listed messages", zap.Int("candidates", len(candidates)), zap.Int("untracked", len(untracked)))
	if len(untracked) == 0 {
		return []*receiptdomain.Receipt{}, nil
	}

	results := w.processAll(ctx, token, user, untracked)

	receipts := make([]*receiptdomain.Receipt, 0)
	attempted := 0
	for _, r := range results {
		if r.interrupted {
			continue
		}
		tracked[r.id] = struct{}{}
		receipts = append(receipts, r.receipts...)
		attempted++
	}

	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.commitTimeout)
	defer cancel()
	if err := w.tracker.Set(commitCtx, user.Email, tracked); err != nil {
		// nothing was marked tracked, so the next run extracts these again
		return nil, err
	}

	log.Info("processed messages",
		zap.Int("attempted", attempted),
		zap.Int("skipped", len(untracked)-attempted),
		zap.Int("receipts", len(receipts)))

	if err := ctx.Err(); err != nil {
		return receipts, fmt.Errorf("sync interrupted after %d of %d messages: %w", attempted, len(untracked), err)
	}
	return receipts, nil
}

// processAll feeds the messages to a fixed pool of pipelines. Messages that
// were never started because ctx ended are absent from the result.
func (w *UserSyncWorker) processAll(ctx context.Context, token string, user *userdomain.User, msgs []emaildomain.CandidateMessage) []messageResult {
	jobs := make(chan emaildomain.CandidateMessage)
	out := make(chan messageResult, len(msgs))

	workers := w.workerCount
	if workers > len(msgs) {
		workers = len(msgs)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range jobs {
				if ctx.Err() != nil {
					continue
				}
				out <- w.processMessage(ctx, token, user, msg)
			}
		}()
	}

feed:
	for _, msg := range msgs {
		select {
		case jobs <- msg:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	close(out)

	results := make([]messageResult, 0, len(msgs))
	for r := range out {
		results = append(results, r)
	}
	return results
}

// processMessage never fails the user: every error is logged and the
// message yields no receipts.
func (w *UserSyncWorker) processMessage(ctx context.Context, token string, user *userdomain.User, msg emaildomain.CandidateMessage) (res messageResult) {
	res = messageResult{id: msg.ID, outcome: outcomeFailed}
	log := w.logger.With(zap.String("user", user.Email), zap.String("message_id", msg.ID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("message pipeline panicked", zap.Any("panic", r))
			res = messageResult{id: msg.ID, outcome: outcomeFailed}
		}
		metrics.IncrementMessageProcessed(res.outcome)
	}()

	receipts, filtered, err := w.extract(ctx, token, user, msg)
	switch {
	case err != nil && ctx.Err() != nil:
		res.interrupted = true
		log.Info("message interrupted", zap.Error(err))
	case err != nil:
		log.Warn("message failed", zap.Error(err))
	case filtered:
		res.outcome = outcomeFiltered
	default:
		res.outcome = outcomeExtracted
		res.receipts = receipts
		metrics.AddReceiptsExtracted(len(receipts))
	}
	return res
}

func (w *UserSyncWorker) extract(ctx context.Context, token string, user *userdomain.User, msg emaildomain.CandidateMessage) ([]*receiptdomain.Receipt, bool, error) {
	raw, err := w.messages.FetchRaw(ctx, token, msg.ID)
	if err != nil {
		return nil, false, err
	}

	content, err := mailparse.Parse(raw.Raw)
	if err != nil {
		return nil, false, fmt.Errorf("failed to parse message: %w", err)
	}

	if !w.filter.Match(content.Subject) {
		return nil, true, nil
	}

	sentAt, err := sentTime(content.SentAt, raw.InternalDate)
	if err != nil {
		return nil, false, err
	}
	issuer := content.Issuer()
	if issuer == "" {
		return nil, false, ErrNoIssuer
	}

	txs, err := w.extractor.ExtractReceipts(ctx, issuer, content.Text)
	if err != nil {
		return nil, false, fmt.Errorf("failed to extract receipts: %w", err)
	}

	receipts := make([]*receiptdomain.Receipt, 0, len(txs))
	for _, tx := range txs {
		receipts = append(receipts, &receiptdomain.Receipt{
			MessageID: msg.ID,
			Owner:     user.Email,
			Issuer:    issuer,
			Merchant:  tx.Merchant,
			Amount:    tx.Amount,
			Currency:  tx.Currency,
			Timestamp: sentAt,
		})
	}
	return receipts, false, nil
}

// sentTime picks the Date header, then Gmail's internalDate (ms). Values at
// or before the epoch count as missing.
func sentTime(header *int64, internalDateMs int64) (int64, error) {
	if header != nil && *header > 0 {
		return *header, nil
	}
	if sec := internalDateMs / 1000; sec > 0 {
		return sec, nil
	}
	return 0, ErrNoSentDate
}
