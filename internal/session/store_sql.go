package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) PutItem(ctx context.Context, it Item) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO items (id,title,item_xml,created_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, item_xml=EXCLUDED.item_xml`,
		it.ID, it.Title, string(it.XML), time.Now().Unix())
	return err
}

func (s *SQLStore) GetItem(ctx context.Context, id string) (Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,title,item_xml,created_at FROM items WHERE id=$1`, id)
	var it Item
	var xml string
	if err := row.Scan(&it.ID, &it.Title, &xml, &it.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, err
	}
	it.XML = []byte(xml)
	return it, nil
}

func (s *SQLStore) ListItems(ctx context.Context) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,title,item_xml,created_at FROM items ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var it Item
		var xml string
		if err := rows.Scan(&it.ID, &it.Title, &xml, &it.CreatedAt); err != nil {
			return nil, err
		}
		it.XML = []byte(xml)
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *SQLStore) PutSession(ctx context.Context, sess Session) error {
	tj, rj, oj, cj, err := marshalSnapshots(sess)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO sessions
		(id,item_id,candidate,templates_json,responses_json,outcomes_json,correct_json,num_attempts,completion_status,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		sess.ID, sess.ItemID, sess.Candidate, tj, rj, oj, cj,
		sess.NumAttempts, sess.CompletionStatus, sess.CreatedAt, sess.UpdatedAt)
	return err
}

func (s *SQLStore) GetSession(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,item_id,candidate,templates_json,responses_json,outcomes_json,correct_json,num_attempts,completion_status,created_at,updated_at
		FROM sessions WHERE id=$1`, id)
	sess, err := scanSession(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	return sess, err
}

func (s *SQLStore) UpdateSession(ctx context.Context, sess Session) error {
	tj, rj, oj, cj, err := marshalSnapshots(sess)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET
		templates_json=$1, responses_json=$2, outcomes_json=$3, correct_json=$4,
		num_attempts=$5, completion_status=$6, updated_at=$7
		WHERE id=$8`,
		tj, rj, oj, cj, sess.NumAttempts, sess.CompletionStatus, sess.UpdatedAt, sess.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *SQLStore) ListSessions(ctx context.Context, itemID string) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,item_id,candidate,templates_json,responses_json,outcomes_json,correct_json,num_attempts,completion_status,created_at,updated_at
		FROM sessions WHERE item_id=$1 ORDER BY created_at`, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows.Scan)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func marshalSnapshots(sess Session) (templates, responses, outcomes, correct string, err error) {
	enc := func(snap Snapshot) (string, error) {
		if snap == nil {
			snap = Snapshot{}
		}
		b, err := json.Marshal(snap)
		return string(b), err
	}
	if templates, err = enc(sess.Templates); err != nil {
		return "", "", "", "", err
	}
	if responses, err = enc(sess.Responses); err != nil {
		return "", "", "", "", err
	}
	if outcomes, err = enc(sess.Outcomes); err != nil {
		return "", "", "", "", err
	}
	correct, err = enc(sess.Correct)
	return templates, responses, outcomes, correct, err
}

func scanSession(scan func(...any) error) (Session, error) {
	var sess Session
	var tj, rj, oj, cj string
	if err := scan(&sess.ID, &sess.ItemID, &sess.Candidate, &tj, &rj, &oj, &cj,
		&sess.NumAttempts, &sess.CompletionStatus, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
		return Session{}, err
	}
	if err := json.Unmarshal([]byte(tj), &sess.Templates); err != nil {
		return Session{}, err
	}
	if err := json.Unmarshal([]byte(rj), &sess.Responses); err != nil {
		return Session{}, err
	}
	if err := json.Unmarshal([]byte(oj), &sess.Outcomes); err != nil {
		return Session{}, err
	}
	if err := json.Unmarshal([]byte(cj), &sess.Correct); err != nil {
		return Session{}, err
	}
	return sess, nil
}
