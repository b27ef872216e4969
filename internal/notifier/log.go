package notifier

import (
	"log/slog"

	"github.com/oyvindh/stillingsvakt/internal/model"
)

// Ensure LogNotifier implements model.Notifier.
var _ model.Notifier = (*LogNotifier)(nil)

// LogNotifier writes newly catalogued postings to the given logger as
// structured messages.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier returns a notifier that logs each posting via slog.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs each posting with source, company, title, location, URL, and
// deadline. Returns nil (stdout logging does not fail).
func (n *LogNotifier) Notify(postings []model.Posting) error {
	for _, p := range postings {
		args := []any{
			"source", p.Source,
			"company", p.Company,
			"title", p.Title,
			"location", p.Location,
			"url", p.URL,
		}
		if p.Deadline != nil {
			args = append(args, "deadline", *p.Deadline)
		}
		n.logger.Info("new posting", args...)
	}
	return nil
}
