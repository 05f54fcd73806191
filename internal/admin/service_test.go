package admin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/hitoshi/timetrackr/internal/model"
	"github.com/hitoshi/timetrackr/internal/store"
)

type mockDocumentStore struct {
	entries []store.UserEntry
	err     error
}

func (m *mockDocumentStore) Load(ctx context.Context, username string) (*model.UserDocument, error) {
	return nil, errors.New("not used")
}

func (m *mockDocumentStore) Save(ctx context.Context, username string, doc *model.UserDocument) error {
	return errors.New("not used")
}

func (m *mockDocumentStore) LoadAll(ctx context.Context) ([]store.UserEntry, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.entries, nil
}

func (m *mockDocumentStore) Ping(ctx context.Context) error { return nil }

func intp(v int) *int       { return &v }
func int64p(v int64) *int64 { return &v }

func docWithMinutes(displayName string, minutes int) *model.UserDocument {
	doc := model.NewUserDocument()
	doc.DisplayName = displayName
	doc.Categories = []*model.Category{
		{ID: "c1", Name: "開発", Sessions: []*model.Session{
			{ID: "s1", Start: 0, End: int64p(int64(minutes) * 60_000), DurationMin: intp(minutes)},
		}},
	}
	return doc
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestMinutesToHuman(t *testing.T) {
	tests := []struct {
		minutes int
		want    string
	}{
		{0, "0m"},
		{45, "45m"},
		{60, "1h0m"},
		{90, "1h30m"},
		{135, "2h15m"},
		{-5, "0m"},
	}
	for _, tt := range tests {
		if got := MinutesToHuman(tt.minutes); got != tt.want {
			t.Errorf("MinutesToHuman(%d) = %q, want %q", tt.minutes, got, tt.want)
		}
	}
}

// クローズ済みセッションのみが合計に計上されることを検証
func TestOverview_TotalsClosedSessionsOnly(t *testing.T) {
	doc := docWithMinutes("太郎", 90)
	// オープンセッションは計上されない
	doc.Categories[0].Sessions = append(doc.Categories[0].Sessions,
		&model.Session{ID: "open", Start: 9_999_999})

	ms := &mockDocumentStore{entries: []store.UserEntry{{Username: "taro", Doc: doc}}}
	svc := NewService(ms, testLogger())

	got, err := svc.Overview(context.Background())
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].TotalMinutes != 90 {
		t.Errorf("TotalMinutes = %d, want 90", got[0].TotalMinutes)
	}
	if got[0].TotalHuman != "1h30m" {
		t.Errorf("TotalHuman = %q, want 1h30m", got[0].TotalHuman)
	}
	if got[0].DisplayName != "太郎" {
		t.Errorf("DisplayName = %q, want 太郎", got[0].DisplayName)
	}
}

// 表示名未設定のユーザーはユーザー名で代替されることを検証
func TestOverview_FallsBackToUsername(t *testing.T) {
	ms := &mockDocumentStore{entries: []store.UserEntry{
		{Username: "taro", Doc: docWithMinutes("", 10)},
	}}
	svc := NewService(ms, testLogger())

	got, err := svc.Overview(context.Background())
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if got[0].DisplayName != "taro" {
		t.Errorf("DisplayName = %q, want taro", got[0].DisplayName)
	}
}

func TestOverview_StoreFailure(t *testing.T) {
	ms := &mockDocumentStore{err: errors.New("redis down")}
	svc := NewService(ms, testLogger())

	_, err := svc.Overview(context.Background())
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodePersistenceFailure {
		t.Fatalf("err = %v, want PERSISTENCE_FAILURE", err)
	}
}

func TestWriteCSV_AllUsers(t *testing.T) {
	ms := &mockDocumentStore{entries: []store.UserEntry{
		{Username: "taro", Doc: docWithMinutes("太郎", 30)},
		{Username: "hanako", Doc: docWithMinutes("", 60)},
	}}
	svc := NewService(ms, testLogger())

	var buf strings.Builder
	if err := svc.WriteCSV(context.Background(), &buf); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	out := buf.String()

	if !strings.HasPrefix(out, "user,timestamp,category,duration_min,note\n") {
		t.Errorf("unexpected header: %q", out)
	}
	if !strings.Contains(out, "太郎,") {
		t.Error("missing row for 太郎")
	}
	// 表示名未設定はユーザー名で出力
	if !strings.Contains(out, "hanako,") {
		t.Error("missing row for hanako")
	}
}
