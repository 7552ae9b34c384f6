package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Freeeeeet/studytrack/internal/model"
	"github.com/Freeeeeet/studytrack/internal/repository"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ActivityTopic is the watermill topic carrying admin activity entries.
const ActivityTopic = "admin_activity"

// Recorder accepts audit entries without blocking the caller on persistence.
type Recorder interface {
	Record(ctx context.Context, entry *model.ActivityLog)
}

// ActivityRecorder publishes audit entries to watermill. Failures are logged, never returned.
type ActivityRecorder struct {
	publisher message.Publisher
	logger    *zap.Logger
}

func NewActivityRecorder(publisher message.Publisher, logger *zap.Logger) *ActivityRecorder {
	return &ActivityRecorder{
		publisher: publisher,
		logger:    logger,
	}
}

func (r *ActivityRecorder) Record(_ context.Context, entry *model.ActivityLog) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		r.logger.Error("Failed to marshal activity entry", zap.String("action", entry.Action), zap.Error(err))
		return
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("action", entry.Action)

	if err := r.publisher.Publish(ActivityTopic, msg); err != nil {
		r.logger.Error("Failed to publish activity entry",
			zap.String("action", entry.Action),
			zap.Error(err),
		)
	}
}

// ActivitySink appends published entries to admin_activity_logs.
type ActivitySink struct {
	subscriber message.Subscriber
	logs       repository.ActivityLogRepository
	logger     *zap.Logger
}

func NewActivitySink(subscriber message.Subscriber, logs repository.ActivityLogRepository, logger *zap.Logger) *ActivitySink {
	return &ActivitySink{
		subscriber: subscriber,
		logs:       logs,
		logger:     logger,
	}
}

// Subscribe registers the sink and returns once it is listening.
// Entries are consumed in the background until ctx is cancelled.
func (s *ActivitySink) Subscribe(ctx context.Context) (<-chan struct{}, error) {
	messages, err := s.subscriber.Subscribe(ctx, ActivityTopic)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", ActivityTopic, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range messages {
			s.handle(ctx, msg)
		}
		s.logger.Info("Activity sink stopped")
	}()

	return done, nil
}

func (s *ActivitySink) handle(ctx context.Context, msg *message.Message) {
	// Ack в любом случае
	defer msg.Ack()

	var entry model.ActivityLog
	if err := json.Unmarshal(msg.Payload, &entry); err != nil {
		s.logger.Error("Failed to decode activity entry", zap.String("message_uuid", msg.UUID), zap.Error(err))
		return
	}

	if err := s.logs.Insert(context.WithoutCancel(ctx), &entry); err != nil {
		s.logger.Error("Failed to write activity log",
			zap.String("action", entry.Action),
			zap.Error(err),
		)
		return
	}

	s.logger.Debug("Activity logged", zap.String("action", entry.Action))
}
