package session_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/open-assess/qtiproc/internal/db"
	"github.com/open-assess/qtiproc/internal/session"
)

func newSQLiteStore(t *testing.T) *session.SQLStore {
	t.Helper()
	dbh, err := db.Open(context.Background(), db.DriverSQLite, "file:store_test?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })
	return session.NewSQLStore(dbh)
}

func TestSQLStoreItemRoundTrip(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	it := session.Item{ID: "item-1", Title: "First", XML: []byte("<qti-assessment-item identifier=\"item-1\"/>"), CreatedAt: 1}
	if err := store.PutItem(ctx, it); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetItem(ctx, "item-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "First" || string(got.XML) != string(it.XML) {
		t.Errorf("got %+v", got)
	}

	// Re-upload replaces.
	it.Title = "Renamed"
	if err := store.PutItem(ctx, it); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetItem(ctx, "item-1")
	if got.Title != "Renamed" {
		t.Errorf("title = %q after replace", got.Title)
	}

	if _, err := store.GetItem(ctx, "missing"); err != session.ErrItemNotFound {
		t.Errorf("err = %v, want ErrItemNotFound", err)
	}
}

func TestSQLStoreSessionRoundTrip(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	if err := store.PutItem(ctx, session.Item{ID: "item-1", XML: []byte("<x/>"), CreatedAt: 1}); err != nil {
		t.Fatal(err)
	}

	sess := session.Session{
		ID:               "s-1",
		ItemID:           "item-1",
		Candidate:        "alice",
		Templates:        session.Snapshot{"DIE": json.RawMessage(`{"base":{"integer":4}}`)},
		Responses:        session.Snapshot{"RESPONSE": json.RawMessage(`{"base":null}`)},
		Outcomes:         session.Snapshot{"SCORE": json.RawMessage(`{"base":{"float":0}}`)},
		Correct:          session.Snapshot{"RESPONSE": json.RawMessage(`{"base":{"integer":4}}`)},
		CompletionStatus: "not_attempted",
		CreatedAt:        10,
		UpdatedAt:        10,
	}
	if err := store.PutSession(ctx, sess); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetSession(ctx, "s-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Candidate != "alice" || string(got.Templates["DIE"]) != `{"base":{"integer":4}}` {
		t.Errorf("got %+v", got)
	}
	if string(got.Correct["RESPONSE"]) != `{"base":{"integer":4}}` {
		t.Errorf("correct snapshot = %s", got.Correct["RESPONSE"])
	}

	got.NumAttempts = 1
	got.CompletionStatus = "completed"
	got.Outcomes["SCORE"] = json.RawMessage(`{"base":{"float":1}}`)
	if err := store.UpdateSession(ctx, got); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetSession(ctx, "s-1")
	if got.NumAttempts != 1 || got.CompletionStatus != "completed" {
		t.Errorf("after update: %+v", got)
	}

	list, err := store.ListSessions(ctx, "item-1")
	if err != nil || len(list) != 1 {
		t.Fatalf("list = %v, %v", list, err)
	}

	if err := store.UpdateSession(ctx, session.Session{ID: "missing"}); err != session.ErrSessionNotFound {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
	if _, err := store.GetSession(ctx, "missing"); err != session.ErrSessionNotFound {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}
