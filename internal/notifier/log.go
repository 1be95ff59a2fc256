package notifier

import (
	"context"

	"ats-radar/internal/model"

	"github.com/rs/zerolog"
)

// Notifier 用于发送新增职位通知。
type Notifier interface {
	Notify(ctx context.Context, jobs []model.Job) error
}

// LogNotifier 仅打印新增职位，适合开发阶段使用。
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier 创建日志通知器。
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify 逐条打印新增职位信息。
func (n LogNotifier) Notify(ctx context.Context, jobs []model.Job) error {
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		n.logger.Info().
			Str("id", job.ID).
			Str("source", job.Source).
			Str("company", job.CompanyName).
			Str("category", job.Category).
			Str("scope", string(job.Location.Scope)).
			Str("apply_url", job.ApplyURL).
			Msgf("new job: %s", job.Title)
	}
	return nil
}
