package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	emaildomain "github.com/vynious/finOS/internal/email/domain"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const user = "me"

// ErrUnauthorized is returned when Gmail rejects the access token.
var ErrUnauthorized = errors.New("gmail rejected the access token")

type Service struct {
	callTimeout time.Duration
	opts        []option.ClientOption
	logger      *zap.Logger
}

// NewService creates a Gmail client factory. Every API call made through it
// is bounded by callTimeout when it is positive. Extra options (for example
// option.WithEndpoint) are appended to each client.
func NewService(callTimeout time.Duration, logger *zap.Logger, opts ...option.ClientOption) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		callTimeout: callTimeout,
		opts:        opts,
		logger:      logger.Named("gmail"),
	}
}

// GetGmailService creates a Gmail API client authorized with a bearer token.
// Token refresh is the caller's job; the token is used as-is.
func (s *Service) GetGmailService(ctx context.Context, accessToken string) (*gmail.Service, error) {
	tokenSource := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	})
	client := oauth2.NewClient(ctx, tokenSource)

	opts := append([]option.ClientOption{option.WithHTTPClient(client)}, s.opts...)
	srv, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return srv, nil
}

func (s *Service) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.callTimeout)
}

// ListAll runs a message search with the clauses joined by spaces and
// follows nextPageToken until the provider stops returning one. Any failed
// page fails the whole listing.
func (s *Service) ListAll(ctx context.Context, accessToken string, clauses []string) ([]emaildomain.CandidateMessage, error) {
	srv, err := s.GetGmailService(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	q := strings.Join(clauses, " ")
	s.logger.Debug("listing messages", zap.String("query", q))

	var (
		out       []emaildomain.CandidateMessage
		pageToken string
		pages     int
	)
	for {
		call := srv.Users.Messages.List(user).Q(q)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		callCtx, cancel := s.withDeadline(ctx)
		resp, err := call.Context(callCtx).Do()
		cancel()
		if err != nil {
			return nil, fmt.Errorf("unable to list messages (page %d): %w", pages+1, classify(err))
		}
		pages++

		for _, m := range resp.Messages {
			out = append(out, emaildomain.CandidateMessage{ID: m.Id, ThreadID: m.ThreadId})
		}

		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}

	s.logger.Debug("listed messages", zap.Int("count", len(out)), zap.Int("pages", pages))
	return out, nil
}

// FetchRaw downloads a message in raw format and decodes its body.
func (s *Service) FetchRaw(ctx context.Context, accessToken, messageID string) (*emaildomain.RawMessage, error) {
	srv, err := s.GetGmailService(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := s.withDeadline(ctx)
	defer cancel()

	msg, err := srv.Users.Messages.Get(user, messageID).Format("raw").Context(callCtx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to fetch message %s: %w", messageID, classify(err))
	}

	raw, err := DecodeRaw(msg.Raw)
	if err != nil {
		return nil, fmt.Errorf("unable to decode message %s: %w", messageID, err)
	}

	return &emaildomain.RawMessage{
		ID:           msg.Id,
		Raw:          raw,
		InternalDate: msg.InternalDate,
	}, nil
}

// Watch sets up push notifications for the user's inbox on a Pub/Sub topic.
func (s *Service) Watch(ctx context.Context, accessToken, topicName string) (*gmail.WatchResponse, error) {
	srv, err := s.GetGmailService(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := s.withDeadline(ctx)
	defer cancel()

	// Only one push client is allowed per mailbox; clear any previous one.
	_ = srv.Users.Stop(user).Context(callCtx).Do()

	resp, err := srv.Users.Watch(user, &gmail.WatchRequest{
		TopicName: topicName,
		LabelIds:  []string{"INBOX"},
	}).Context(callCtx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to watch mailbox: %w", classify(err))
	}
	return resp, nil
}

// DecodeRaw decodes the base64url payload of a raw Gmail message. Gmail
// omits the padding, so it is restored before decoding.
func DecodeRaw(s string) ([]byte, error) {
	s = strings.TrimRight(strings.TrimSpace(s), "=")
	s = strings.NewReplacer("-", "+", "_", "/").Replace(s)
	if rem := len(s) % 4; rem != 0 {
		s += strings.Repeat("=", 4-rem)
	}
	return base64.StdEncoding.DecodeString(s)
}

func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return err
}
