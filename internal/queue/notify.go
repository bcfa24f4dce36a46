package queue

import (
	"context"

	"qms/walkin-service/internal/broadcast"
	"qms/walkin-service/internal/models"

	"github.com/sirupsen/logrus"
)

// broadcastChange publishes what changed plus the fresh line and statistics.
// It runs after commit; nothing here can fail the mutation.
func (s *Service) broadcastChange(ctx context.Context, changed *models.EntryView, removedID string) {
	if s.publisher == nil {
		return
	}
	if changed != nil {
		s.publish(broadcast.EntryUpdatedEvent(changed.ID, changed))
	}
	if removedID != "" {
		s.publish(broadcast.EntryRemovedEvent(removedID))
	}

	line, err := s.GetCurrentQueue(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("snapshot for broadcast failed")
		return
	}
	s.publishLine(ctx, line)
}

func (s *Service) publishLine(ctx context.Context, line []models.EntryView) {
	if s.publisher == nil {
		return
	}
	if line == nil {
		line = []models.EntryView{}
	}
	s.publish(broadcast.SnapshotEvent(line))

	stats, err := s.GetQueueStatistics(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("statistics for broadcast failed")
		return
	}
	s.publish(broadcast.StatisticsEvent(stats))
}

func (s *Service) publish(event broadcast.Event, err error) {
	if err != nil {
		s.logger.WithError(err).Warn("build broadcast event failed")
		return
	}
	if outcome := s.publisher.Publish(event); outcome != broadcast.Queued {
		s.logger.WithFields(logrus.Fields{
			"type":    event.Type,
			"channel": event.Channel,
			"outcome": outcome.String(),
		}).Debug("broadcast not queued")
	}
}
