package analysis

import (
	"errors"
	"testing"
	"time"

	"github.com/zerotwo/gios-airsync/internal/models"
)

func at(h int) time.Time {
	return time.Date(2024, 6, 1, h, 0, 0, 0, time.UTC)
}

func TestSummarize(t *testing.T) {
	s, err := Summarize([]models.Measurement{
		{Value: 10, Timestamp: at(1)},
		{Value: 4, Timestamp: at(2)},
		{Value: 22, Timestamp: at(3)},
		{Value: 4, Timestamp: at(4)},
		{Value: 12, Timestamp: at(5)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Count != 5 || s.Min != 4 || s.Max != 22 || s.Mean != 10.4 {
		t.Errorf("unexpected summary %+v", s)
	}
	if !s.MinAt.Equal(at(2)) {
		t.Errorf("expected first minimum at %s, got %s", at(2), s.MinAt)
	}
	if !s.MaxAt.Equal(at(3)) {
		t.Errorf("expected maximum at %s, got %s", at(3), s.MaxAt)
	}
	if s.Trend != TrendRising {
		t.Errorf("expected rising trend, got %s", s.Trend)
	}
}

func TestSummarizeFlatIsFalling(t *testing.T) {
	s, err := Summarize([]models.Measurement{{Value: 3, Timestamp: at(1)}, {Value: 3, Timestamp: at(2)}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Trend != TrendFalling {
		t.Errorf("expected falling trend, got %s", s.Trend)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	if _, err := Summarize(nil); !errors.Is(err, ErrNoData) {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}
