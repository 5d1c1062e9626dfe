package notification

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Service listens on the Gmail watch subscription and turns mailbox change
// notifications into on-demand syncs.
type Service struct {
	pubsubClient *pubsub.Client
	handler      *Handler
	watcher      *MailboxWatcher
	topicName    string
	subName      string
	logger       *zap.Logger
}

func NewService(projectID, topicName, credentialsFile string, handler *Handler, watcher *MailboxWatcher, logger *zap.Logger) (*Service, error) {
	ctx := context.Background()

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		pubsubClient: client,
		handler:      handler,
		watcher:      watcher,
		topicName:    topicName,
		subName:      topicName + "-sub", // Convention: topic-sub
		logger:       logger.Named("pubsub"),
	}, nil
}

// Start registers mailbox watches and blocks receiving notifications until
// ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	log := s.logger.With(zap.String("topic", s.topicName), zap.String("subscription", s.subName))
	log.Info("starting notification service")

	if s.watcher != nil {
		go s.watcher.Run(ctx)
	}

	sub, err := s.ensureSubscription(ctx)
	if err != nil {
		log.Error("subscription unavailable, push sync disabled", zap.Error(err))
		return
	}

	log.Info("listening for mailbox notifications")
	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if err := s.handler.Handle(ctx, msg.Data); err != nil {
			log.Warn("notification not handled, requesting redelivery", zap.String("message_id", msg.ID), zap.Error(err))
			msg.Nack()
			return
		}
		msg.Ack()
	})
	if err != nil {
		log.Error("error receiving messages", zap.Error(err))
	}
}

// Close releases the pubsub client
func (s *Service) Close() error {
	return s.pubsubClient.Close()
}

func (s *Service) ensureSubscription(ctx context.Context) (*pubsub.Subscription, error) {
	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check subscription: %w", err)
	}
	if exists {
		return sub, nil
	}

	topic := s.pubsubClient.Topic(s.topicName)
	topicExists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check topic: %w", err)
	}
	if !topicExists {
		return nil, fmt.Errorf("topic %s does not exist", s.topicName)
	}

	sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
		Topic:       topic,
		AckDeadline: 60 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}
	s.logger.Info("created subscription", zap.String("subscription", s.subName))
	return sub, nil
}
