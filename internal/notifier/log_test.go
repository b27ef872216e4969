package notifier

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/oyvindh/stillingsvakt/internal/model"
)

func TestLogNotifier_Notify_zeroPostings(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	n := NewLogNotifier(logger)
	if err := n.Notify(nil); err != nil {
		t.Errorf("Notify(nil) = %v, want nil", err)
	}
	if err := n.Notify([]model.Posting{}); err != nil {
		t.Errorf("Notify([]) = %v, want nil", err)
	}
}

func TestLogNotifier_Notify_multiplePostings_returnsNil(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	n := NewLogNotifier(logger)
	deadline := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	postings := []model.Posting{
		{Company: "Fjord Analytics AS", Title: "Data Engineer", Location: "Bergen", URL: "https://example.com/1", Deadline: &deadline},
		{Company: "Helse Bergen", Title: "Utvikler", Location: "Bergen", URL: "https://example.com/2"},
	}
	if err := n.Notify(postings); err != nil {
		t.Errorf("Notify(postings) = %v, want nil", err)
	}
}
