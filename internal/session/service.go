package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/open-assess/qtiproc/internal/qti/decls"
	"github.com/open-assess/qtiproc/internal/qti/parser"
	"github.com/open-assess/qtiproc/internal/qti/pci"
	"github.com/open-assess/qtiproc/internal/qti/value"
)

// Service implements the delivery flow: store items, open sessions, accept
// attempts and run response processing against a per-session context.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// CreateItem parses and stores an item document. The document identifier is
// the storage key; re-uploading replaces the stored item.
func (s *Service) CreateItem(ctx context.Context, xml []byte) (Item, error) {
	parsed, err := parser.ParseItem(xml)
	if err != nil {
		return Item{}, err
	}
	it := Item{
		ID:        parsed.Identifier,
		Title:     parsed.Title,
		XML:       xml,
		CreatedAt: time.Now().Unix(),
	}
	if err := s.store.PutItem(ctx, it); err != nil {
		return Item{}, fmt.Errorf("store item: %w", err)
	}
	return it, nil
}

func (s *Service) Item(ctx context.Context, id string) (Item, error) {
	return s.store.GetItem(ctx, id)
}

func (s *Service) Items(ctx context.Context) ([]Item, error) {
	return s.store.ListItems(ctx)
}

func (s *Service) loadParsed(ctx context.Context, itemID string) (*parser.Item, error) {
	it, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	parsed, err := parser.ParseItem(it.XML)
	if err != nil {
		return nil, fmt.Errorf("stored item %q: %w", itemID, err)
	}
	return parsed, nil
}

// StartSession opens a delivery of an item for a candidate. Template
// processing runs once here; the instantiated template values are part of
// the session and survive across attempts.
func (s *Service) StartSession(ctx context.Context, itemID, candidate string) (Session, error) {
	parsed, err := s.loadParsed(ctx, itemID)
	if err != nil {
		return Session{}, err
	}

	ectx := parsed.NewContext()
	if parsed.TemplateProcessing != nil {
		if err := parsed.TemplateProcessing.Execute(ectx); err != nil {
			return Session{}, fmt.Errorf("template processing: %w", err)
		}
	}

	now := time.Now().Unix()
	sess := Session{
		ID:               uuid.NewString(),
		ItemID:           itemID,
		Candidate:        candidate,
		Templates:        snapshotValues(ectx.Templates),
		Responses:        snapshotValues(ectx.Responses),
		Outcomes:         snapshotValues(ectx.Outcomes),
		Correct:          snapshotCorrect(ectx.Responses),
		CompletionStatus: "not_attempted",
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.PutSession(ctx, sess); err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}
	return sess, nil
}

func (s *Service) Session(ctx context.Context, id string) (Session, error) {
	return s.store.GetSession(ctx, id)
}

func (s *Service) SessionsForItem(ctx context.Context, itemID string) ([]Session, error) {
	return s.store.ListSessions(ctx, itemID)
}

// SubmitAttempt binds the submitted responses and runs response processing.
// Malformed response payloads never fail the attempt; they bind as null and
// score accordingly. The updated outcome snapshot is persisted even when
// processing itself errors, so the session never loses its last good state.
func (s *Service) SubmitAttempt(ctx context.Context, sessionID string, responses map[string]json.RawMessage) (Session, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	parsed, err := s.loadParsed(ctx, sess.ItemID)
	if err != nil {
		return Session{}, err
	}

	ectx := parsed.NewContext()
	restoreValues(ectx.Templates, sess.Templates)
	restoreValues(ectx.Responses, sess.Responses)
	restoreValues(ectx.Outcomes, sess.Outcomes)
	restoreCorrect(ectx.Responses, sess.Correct)

	for identifier, raw := range responses {
		d := ectx.ResponseDeclaration(identifier)
		if d == nil {
			log.Printf("session %s: dropping response for undeclared variable %q", sessionID, identifier)
			continue
		}
		ectx.SetResponseValue(identifier, pci.DecodeLenient(raw, d), nil)
	}

	ectx.IncrementNumAttempts()
	if !parsed.Adaptive {
		ectx.SetOutcomeValue("completionStatus", value.NewSingle(value.NewIdentifier("completed")))
	}

	var procErr error
	if parsed.ResponseProcessing != nil {
		procErr = parsed.ResponseProcessing.Execute(ectx)
	}

	sess.Responses = snapshotValues(ectx.Responses)
	sess.Outcomes = snapshotValues(ectx.Outcomes)
	sess.NumAttempts++
	sess.CompletionStatus = completionStatus(ectx)
	sess.UpdatedAt = time.Now().Unix()

	if err := s.store.UpdateSession(ctx, sess); err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}
	if procErr != nil {
		return sess, fmt.Errorf("response processing: %w", procErr)
	}
	return sess, nil
}

// ResetSession returns a session to its freshly-instantiated state. Template
// values and template-derived correct responses survive; responses and
// outcomes drop back to their declared defaults and the attempt count clears.
func (s *Service) ResetSession(ctx context.Context, sessionID string) (Session, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return Session{}, err
	}
	parsed, err := s.loadParsed(ctx, sess.ItemID)
	if err != nil {
		return Session{}, err
	}

	ectx := parsed.NewContext()
	restoreValues(ectx.Templates, sess.Templates)

	sess.Responses = snapshotValues(ectx.Responses)
	sess.Outcomes = snapshotValues(ectx.Outcomes)
	sess.NumAttempts = 0
	sess.CompletionStatus = "not_attempted"
	sess.UpdatedAt = time.Now().Unix()

	if err := s.store.UpdateSession(ctx, sess); err != nil {
		return Session{}, fmt.Errorf("store session: %w", err)
	}
	return sess, nil
}

func completionStatus(ectx *decls.Context) string {
	d := ectx.OutcomeDeclaration("completionStatus")
	if d == nil {
		return "unknown"
	}
	if s, ok := d.Value.Single(); ok {
		return s.Str
	}
	return "unknown"
}

func snapshotValues(declarations []*decls.Declaration) Snapshot {
	snap := make(Snapshot, len(declarations))
	for _, d := range declarations {
		raw, err := pci.EncodeJSON(d.Value)
		if err != nil {
			log.Printf("snapshot: skipping %q: %v", d.Identifier, err)
			continue
		}
		snap[d.Identifier] = raw
	}
	return snap
}

// snapshotCorrect captures correct responses after template processing, which
// may have set them with qti-set-correct-response. Without this the values
// produced from instantiated template variables would be lost between
// attempts.
func snapshotCorrect(declarations []*decls.Declaration) Snapshot {
	snap := Snapshot{}
	for _, d := range declarations {
		if d.CorrectResponse.IsNull() {
			continue
		}
		raw, err := pci.EncodeJSON(d.CorrectResponse)
		if err != nil {
			log.Printf("snapshot: skipping correct response for %q: %v", d.Identifier, err)
			continue
		}
		snap[d.Identifier] = raw
	}
	return snap
}

func restoreCorrect(declarations []*decls.Declaration, snap Snapshot) {
	for _, d := range declarations {
		raw, ok := snap[d.Identifier]
		if !ok {
			continue
		}
		v, err := pci.Decode(raw, d)
		if err != nil {
			log.Printf("snapshot: dropping stored correct response for %q: %v", d.Identifier, err)
			continue
		}
		d.CorrectResponse = v
	}
}

func restoreValues(declarations []*decls.Declaration, snap Snapshot) {
	for _, d := range declarations {
		raw, ok := snap[d.Identifier]
		if !ok {
			continue
		}
		v, err := pci.Decode(raw, d)
		if err != nil {
			log.Printf("snapshot: dropping stored value for %q: %v", d.Identifier, err)
			continue
		}
		d.Value = v
	}
}
