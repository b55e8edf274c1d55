package store

import (
	"math"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testEntry(conversationID, mode string) *ConversationLog {
	return &ConversationLog{
		ConversationID:   conversationID,
		Mode:             mode,
		Question:         "what is the enrollment deadline?",
		Answer:           "The deadline is June 30.",
		PromptTokens:     120,
		CompletionTokens: 30,
		TotalTokens:      150,
		PromptCost:       0.000009,
		CompletionCost:   0.000009,
		TotalCost:        0.000018,
	}
}

func TestAppendLog_AssignsIDAndTimestamp(t *testing.T) {
	s := newTestStore(t)

	entry := testEntry("conv-1", "normal")
	if err := s.AppendLog(entry); err != nil {
		t.Fatalf("AppendLog failed: %v", err)
	}
	if entry.ID == 0 {
		t.Error("AppendLog did not assign an id")
	}
	if entry.Timestamp.IsZero() {
		t.Error("AppendLog did not assign a timestamp")
	}
}

func TestAppendLog_TokenAndCostInvariants(t *testing.T) {
	s := newTestStore(t)
	if err := s.AppendLog(testEntry("conv-1", "normal")); err != nil {
		t.Fatalf("AppendLog failed: %v", err)
	}

	logs, err := s.QueryLogs(LogFilter{})
	if err != nil {
		t.Fatalf("QueryLogs failed: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 log, got %d", len(logs))
	}

	got := logs[0]
	if got.TotalTokens != got.PromptTokens+got.CompletionTokens {
		t.Errorf("total tokens %d != prompt %d + completion %d", got.TotalTokens, got.PromptTokens, got.CompletionTokens)
	}
	if math.Abs(got.TotalCost-(got.PromptCost+got.CompletionCost)) > 1e-12 {
		t.Errorf("total cost %g != prompt %g + completion %g", got.TotalCost, got.PromptCost, got.CompletionCost)
	}
}

func TestAggregate_CountsByMode(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < 3; i++ {
		if err := s.AppendLog(testEntry("conv-a", "normal")); err != nil {
			t.Fatalf("AppendLog failed: %v", err)
		}
	}
	for i := 0; i < 2; i++ {
		if err := s.AppendLog(testEntry("conv-b", "tutor")); err != nil {
			t.Fatalf("AppendLog failed: %v", err)
		}
	}

	stats, err := s.Aggregate(LogFilter{})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	// Rows are counted, not distinct conversation ids.
	if stats.TotalConversations != 5 {
		t.Errorf("TotalConversations = %d, want 5", stats.TotalConversations)
	}
	if stats.CountByMode["normal"] != 3 {
		t.Errorf("normal count = %d, want 3", stats.CountByMode["normal"])
	}
	if stats.CountByMode["tutor"] != 2 {
		t.Errorf("tutor count = %d, want 2", stats.CountByMode["tutor"])
	}
	if stats.TotalTokens != 5*150 {
		t.Errorf("TotalTokens = %d, want %d", stats.TotalTokens, 5*150)
	}
}

func TestAggregate_EmptyStore(t *testing.T) {
	s := newTestStore(t)

	stats, err := s.Aggregate(LogFilter{})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if stats.TotalConversations != 0 || stats.TotalTokens != 0 || stats.TotalCost != 0.0 {
		t.Errorf("empty store aggregate = %+v, want all zeros", stats)
	}
}

func TestClearLogs(t *testing.T) {
	s := newTestStore(t)
	if err := s.AppendLog(testEntry("conv-1", "normal")); err != nil {
		t.Fatalf("AppendLog failed: %v", err)
	}

	if err := s.ClearLogs(); err != nil {
		t.Fatalf("ClearLogs failed: %v", err)
	}

	stats, err := s.Aggregate(LogFilter{})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if stats.TotalConversations != 0 || stats.TotalTokens != 0 || stats.TotalCost != 0.0 {
		t.Errorf("aggregate after clear = %+v, want all zeros", stats)
	}
}

func TestQueryLogs_InclusiveDateBounds(t *testing.T) {
	s := newTestStore(t)

	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		entry := testEntry("conv-1", "normal")
		entry.Timestamp = base.AddDate(0, 0, i)
		if err := s.AppendLog(entry); err != nil {
			t.Fatalf("AppendLog failed: %v", err)
		}
	}

	start := base
	end := base.AddDate(0, 0, 1)
	logs, err := s.QueryLogs(LogFilter{Start: &start, End: &end})
	if err != nil {
		t.Fatalf("QueryLogs failed: %v", err)
	}
	if len(logs) != 2 {
		t.Errorf("expected 2 logs inside inclusive bounds, got %d", len(logs))
	}
}

func TestListRecent_NewestFirst(t *testing.T) {
	s := newTestStore(t)

	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		entry := testEntry("conv-1", "normal")
		entry.Question = "question"
		entry.Timestamp = base.Add(time.Duration(i) * time.Minute)
		if err := s.AppendLog(entry); err != nil {
			t.Fatalf("AppendLog failed: %v", err)
		}
	}

	logs, err := s.ListRecent(3)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("expected 3 logs, got %d", len(logs))
	}
	for i := 1; i < len(logs); i++ {
		if logs[i].Timestamp.After(logs[i-1].Timestamp) {
			t.Errorf("logs not ordered newest first: %v after %v", logs[i].Timestamp, logs[i-1].Timestamp)
		}
	}
}

func TestSettings_GetMissing(t *testing.T) {
	s := newTestStore(t)

	_, ok, err := s.GetSetting("admin_api_key")
	if err != nil {
		t.Fatalf("GetSetting failed: %v", err)
	}
	if ok {
		t.Error("GetSetting reported a value for a missing key")
	}
}

func TestSettings_Upsert(t *testing.T) {
	s := newTestStore(t)

	if err := s.SetSetting("admin_api_key", "hash-1"); err != nil {
		t.Fatalf("SetSetting failed: %v", err)
	}
	if err := s.SetSetting("admin_api_key", "hash-2"); err != nil {
		t.Fatalf("SetSetting (update) failed: %v", err)
	}

	value, ok, err := s.GetSetting("admin_api_key")
	if err != nil {
		t.Fatalf("GetSetting failed: %v", err)
	}
	if !ok || value != "hash-2" {
		t.Errorf("GetSetting = (%q, %v), want (\"hash-2\", true)", value, ok)
	}
}
