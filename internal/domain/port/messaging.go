package port

import (
	"context"

	"github.com/framescope/framescope/internal/domain/entity"
)

type StatusPublisher interface {
	PublishStatus(ctx context.Context, msg entity.VideoStatusMessage) error
}

// DLQPublisher parks a message that will not be processed again.
type DLQPublisher interface {
	PublishToDLQ(ctx context.Context, body []byte, reason string) error
}
