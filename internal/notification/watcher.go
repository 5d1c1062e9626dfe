package notification

import (
	"context"
	"fmt"
	"time"

	authdomain "github.com/vynious/finOS/internal/auth/domain"
	userdomain "github.com/vynious/finOS/internal/user/domain"

	"go.uber.org/zap"
	gmailapi "google.golang.org/api/gmail/v1"
)

// Gmail drops a watch after seven days; renewing daily keeps it alive.
const watchRenewInterval = 24 * time.Hour

type UserLister interface {
	ListActive(ctx context.Context) ([]*userdomain.User, error)
}

type TokenSource interface {
	GetValidToken(ctx context.Context, email, provider string) (string, error)
}

type MailWatcher interface {
	Watch(ctx context.Context, accessToken, topicName string) (*gmailapi.WatchResponse, error)
}

// MailboxWatcher keeps a Gmail push watch registered for every active user
type MailboxWatcher struct {
	users     UserLister
	tokens    TokenSource
	gmail     MailWatcher
	topicPath string
	logger    *zap.Logger
}

// NewMailboxWatcher creates a watcher publishing to projects/<project>/topics/<topic>
func NewMailboxWatcher(users UserLister, tokens TokenSource, gmail MailWatcher, projectID, topicName string, logger *zap.Logger) *MailboxWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MailboxWatcher{
		users:     users,
		tokens:    tokens,
		gmail:     gmail,
		topicPath: fmt.Sprintf("projects/%s/topics/%s", projectID, topicName),
		logger:    logger.Named("watcher"),
	}
}

// Run registers watches now and then once a day until ctx is done
func (w *MailboxWatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(watchRenewInterval)
	defer ticker.Stop()

	for {
		if n, err := w.WatchAll(ctx); err != nil {
			w.logger.Error("failed to renew watches", zap.Error(err))
		} else {
			w.logger.Info("watches renewed", zap.Int("users", n))
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// WatchAll registers a watch for each active user and returns how many
// succeeded. One user's failure does not stop the others.
func (w *MailboxWatcher) WatchAll(ctx context.Context) (int, error) {
	users, err := w.users.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list active users: %w", err)
	}

	ok := 0
	for _, u := range users {
		if ctx.Err() != nil {
			return ok, ctx.Err()
		}
		token, err := w.tokens.GetValidToken(ctx, u.Email, authdomain.ProviderGoogle)
		if err != nil {
			w.logger.Warn("no token for watch", zap.String("user", u.Email), zap.Error(err))
			continue
		}
		resp, err := w.gmail.Watch(ctx, token, w.topicPath)
		if err != nil {
			w.logger.Warn("watch failed", zap.String("user", u.Email), zap.Error(err))
			continue
		}
		w.logger.Debug("watch registered",
			zap.String("user", u.Email),
			zap.Uint64("history_id", resp.HistoryId),
			zap.Time("expires", time.UnixMilli(resp.Expiration)))
		ok++
	}
	return ok, nil
}
