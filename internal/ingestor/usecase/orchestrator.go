package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	receiptdomain "github.com/vynious/finOS/internal/receipt/domain"
	userdomain "github.com/vynious/finOS/internal/user/domain"
	userrepo "github.com/vynious/finOS/internal/user/repository"
	"github.com/vynious/finOS/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserInactive = errors.New("user is not active")
)

const (
	TriggerSchedule = "schedule"
	TriggerOnDemand = "on_demand"
	TriggerPush     = "push"
)

// UserFailure records why one user's sync did not complete
type UserFailure struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

// SyncReport summarizes one orchestrator run
type SyncReport struct {
	RunID     string        `json:"run_id"`
	Now       int64         `json:"now"` // epoch ms shared by every user in the run
	Users     int           `json:"users"`
	Succeeded []string      `json:"succeeded"`
	Failures  []UserFailure `json:"failures"`
	Receipts  int           `json:"receipts"`
}

type userOutcome struct {
	user     *userdomain.User
	receipts []*receiptdomain.Receipt
	err      error
}

// Orchestrator syncs every active user and commits receipts and watermarks
type Orchestrator struct {
	users           userrepo.UserRepository
	receipts        ReceiptStore
	worker          UserSyncer
	issuers         []string
	userConcurrency int
	userTimeout     time.Duration
	commitTimeout   time.Duration
	logger          *zap.Logger
	now             func() time.Time
}

// NewOrchestrator creates a new Orchestrator. At most userConcurrency users
// are synced at once and each is bounded by userTimeout. commitTimeout bounds
// the receipt and watermark writes, which run even after ctx is cancelled.
func NewOrchestrator(
	users userrepo.UserRepository,
	receipts ReceiptStore,
	worker UserSyncer,
	issuers []string,
	userConcurrency int,
	userTimeout time.Duration,
	commitTimeout time.Duration,
	logger *zap.Logger,
) *Orchestrator {
	if userConcurrency <= 0 {
		userConcurrency = 4
	}
	if commitTimeout <= 0 {
		commitTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		users:           users,
		receipts:        receipts,
		worker:          worker,
		issuers:         issuers,
		userConcurrency: userConcurrency,
		userTimeout:     userTimeout,
		commitTimeout:   commitTimeout,
		logger:          logger.Named("orchestrator"),
		now:             time.Now,
	}
}

// Run syncs all active users. A user's failure is recorded in the report
// and never aborts the others; the returned error is reserved for the user
// directory and the two commit writes.
func (o *Orchestrator) Run(ctx context.Context) (*SyncReport, error) {
	metrics.IncrementSyncRun(TriggerSchedule)

	report := &SyncReport{
		RunID:     uuid.New().String(),
		Now:       o.now().UnixMilli(),
		Succeeded: []string{},
		Failures:  []UserFailure{},
	}
	log := o.logger.With(zap.String("run_id", report.RunID))

	users, err := o.users.ListActive(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list active users: %w", err)
	}
	report.Users = len(users)
	log.Info("sync run started", zap.Int("users", len(users)))

	outcomes := o.syncAll(ctx, users, report.Now)

	var (
		batch     []*receiptdomain.Receipt
		completed []*userdomain.User
	)
	for _, out := range outcomes {
		// partial results of a failed user are kept: their messages are
		// already tracked and would not be extracted again
		batch = append(batch, out.receipts...)

		if out.err != nil {
			log.Warn("user sync failed", zap.String("user", out.user.Email), zap.Error(out.err))
			report.Failures = append(report.Failures, UserFailure{Email: out.user.Email, Error: out.err.Error()})
			continue
		}
		report.Succeeded = append(report.Succeeded, out.user.Email)
		completed = append(completed, watermarked(out.user, report.Now))
	}

	stored, err := o.commit(ctx, batch, completed)
	report.Receipts = stored
	if err != nil {
		log.Error("sync run commit failed", zap.Error(err))
		return report, err
	}

	log.Info("sync run finished",
		zap.Int("succeeded", len(report.Succeeded)),
		zap.Int("failed", len(report.Failures)),
		zap.Int("receipts", report.Receipts))
	return report, nil
}

// SyncUser runs an on-demand sync for a single user. The caller gets either
// the user's receipts or the error that stopped the sync.
func (o *Orchestrator) SyncUser(ctx context.Context, email, trigger string) ([]*receiptdomain.Receipt, error) {
	metrics.IncrementSyncRun(trigger)

	user, err := o.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to load user %s: %w", email, err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, email)
	}
	if !user.Active {
		return nil, fmt.Errorf("%w: %s", ErrUserInactive, email)
	}

	now := o.now().UnixMilli()
	out := o.syncOne(ctx, user, now)

	var completed []*userdomain.User
	if out.err == nil {
		completed = append(completed, watermarked(user, now))
	}
	if _, err := o.commit(ctx, out.receipts, completed); err != nil {
		return nil, err
	}
	if out.err != nil {
		o.logger.Warn("on-demand sync failed", zap.String("user", email), zap.String("trigger", trigger), zap.Error(out.err))
		return nil, out.err
	}

	if out.receipts == nil {
		out.receipts = []*receiptdomain.Receipt{}
	}
	return out.receipts, nil
}

// syncAll fans users out to at most userConcurrency concurrent syncs
func (o *Orchestrator) syncAll(ctx context.Context, users []*userdomain.User, now int64) []userOutcome {
	outcomes := make([]userOutcome, len(users))

	var g errgroup.Group
	g.SetLimit(o.userConcurrency)
	for i, u := range users {
		i, u := i, u
		g.Go(func() error {
			outcomes[i] = o.syncOne(ctx, u, now)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// syncOne runs the worker for one user under the per-user deadline. A panic
// becomes that user's error.
func (o *Orchestrator) syncOne(ctx context.Context, user *userdomain.User, now int64) (out userOutcome) {
	out.user = user
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			out.receipts = nil
			out.err = fmt.Errorf("user sync aborted: %v", r)
		}
		status := "success"
		if out.err != nil {
			status = "failed"
		}
		metrics.RecordUserSync(status, time.Since(start))
	}()

	if o.userTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.userTimeout)
		defer cancel()
	}

	out.receipts, out.err = o.worker.SyncOne(ctx, user, BuildQuery(now, user, o.issuers))
	return out
}

// commit performs the single receipt insert and the single watermark update
// and returns how many receipts were stored. The messages behind the batch
// are already tracked, so the writes are detached from ctx cancellation.
// Incomplete receipts are dropped; watermarks are left alone when the insert
// fails.
func (o *Orchestrator) commit(ctx context.Context, batch []*receiptdomain.Receipt, completed []*userdomain.User) (int, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.commitTimeout)
	defer cancel()

	valid := make([]*receiptdomain.Receipt, 0, len(batch))
	for _, r := range batch {
		if !r.Complete() {
			o.logger.Error("dropping incomplete receipt",
				zap.String("user", r.Owner),
				zap.String("message_id", r.MessageID),
				zap.Int64("timestamp", r.Timestamp))
			continue
		}
		valid = append(valid, r)
	}

	if len(valid) > 0 {
		if err := o.receipts.InsertMany(ctx, valid); err != nil {
			return 0, fmt.Errorf("failed to store %d receipts: %w", len(valid), err)
		}
	}
	if len(completed) > 0 {
		if err := o.users.UpdateWatermarks(ctx, completed); err != nil {
			return len(valid), fmt.Errorf("failed to update watermarks for %d users: %w", len(completed), err)
		}
	}
	return len(valid), nil
}

func watermarked(u *userdomain.User, now int64) *userdomain.User {
	cp := *u
	ts := now
	cp.LastSynced = &ts
	return &cp
}
