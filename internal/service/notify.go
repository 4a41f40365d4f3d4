package service

import (
	"context"
	"log/slog"

	"github.com/linemk/recipe-exchange/internal/events"
)

// notify публикует событие уже после коммита; ошибка шины не отменяет операцию.
func notify(ctx context.Context, log *slog.Logger, pub events.Publisher, subject string, payload any) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, subject, payload); err != nil {
		log.Warn("failed to publish event", slog.String("subject", subject), slog.Any("error", err))
	}
}
