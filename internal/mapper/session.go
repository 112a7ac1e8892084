package mapper

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/biocirv/agstats-cli/internal/refcache"
)

// Session file names under the cache dir.
const (
	pendingFile  = "pending_review.json"
	approvedFile = "approved_matches.json"
)

// CandidateEntry is one scored taxonomy candidate stored with a review item.
type CandidateEntry struct {
	Code  string  `json:"code"`
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// ReviewItem is one unresolved resource awaiting a human decision.
type ReviewItem struct {
	Resource   ResourceRef      `json:"resource"`
	Candidates []CandidateEntry `json:"candidates"`
}

// ApprovedMatch is a resource decision ready to persist. Most carry a
// commodity; a NO_MATCH tier records a rejection with no commodity at all.
type ApprovedMatch struct {
	Resource      ResourceRef `json:"resource"`
	CommodityCode string      `json:"commodity_code"`
	CommodityName string      `json:"commodity_name"`
	Score         float64     `json:"score"`
	Tier          string      `json:"tier"`
	Note          string      `json:"note"`
	DecidedAt     time.Time   `json:"decided_at"`
}

// Session is the resumable review state: a queue of pending items plus the
// decisions accumulated so far. Both halves are flushed to disk after every
// decision so quitting (or crashing) mid-review loses nothing.
type Session struct {
	dir      string
	Pending  []ReviewItem
	Approved []ApprovedMatch
}

// LoadSession reads session state from dir. Missing files mean an empty
// queue, not an error.
func LoadSession(dir string) (*Session, error) {
	s := &Session{dir: dir}

	if err := refcache.ReadJSON(s.pendingPath(), &s.Pending); err != nil && !isNotExist(err) {
		return nil, err
	}
	if err := refcache.ReadJSON(s.approvedPath(), &s.Approved); err != nil && !isNotExist(err) {
		return nil, err
	}
	return s, nil
}

func (s *Session) pendingPath() string  { return filepath.Join(s.dir, pendingFile) }
func (s *Session) approvedPath() string { return filepath.Join(s.dir, approvedFile) }

// Resolved reports whether the review queue is empty.
func (s *Session) Resolved() bool {
	return len(s.Pending) == 0
}

// Enqueue appends items to the pending queue, skipping resources already
// queued or already decided this session, and persists. The decided check
// covers unsaved rejections: a resource the reviewer just marked NO_MATCH
// must not reappear on the next auto-match pass.
func (s *Session) Enqueue(items []ReviewItem) error {
	queued := s.decidedKeys()
	for _, it := range s.Pending {
		queued[resourceKey(it.Resource)] = true
	}
	for _, it := range items {
		if queued[resourceKey(it.Resource)] {
			continue
		}
		queued[resourceKey(it.Resource)] = true
		s.Pending = append(s.Pending, it)
	}
	return s.persist()
}

// Approve records a decision for the head-of-queue item: the item moves
// from pending to approved and both files are rewritten.
func (s *Session) Approve(item ReviewItem, choice CandidateEntry) error {
	s.Approved = append(s.Approved, ApprovedMatch{
		Resource:      item.Resource,
		CommodityCode: choice.Code,
		CommodityName: choice.Name,
		Score:         choice.Score,
		Tier:          "USER_APPROVED",
		Note:          "user approved via review session",
		DecidedAt:     time.Now().UTC(),
	})
	s.dropPending(item.Resource)
	return s.persist()
}

// AddAuto records an automatically approved match. A resource already
// decided this session is left alone so repeated passes before a save do
// not stack duplicate entries.
func (s *Session) AddAuto(m ApprovedMatch) error {
	if s.decidedKeys()[resourceKey(m.Resource)] {
		return nil
	}
	s.Approved = append(s.Approved, m)
	return s.persist()
}

// Skip records an explicit rejection: the item leaves the queue and a
// NO_MATCH decision is persisted so the resource is settled, not forgotten.
func (s *Session) Skip(item ReviewItem) error {
	s.Approved = append(s.Approved, ApprovedMatch{
		Resource:  item.Resource,
		Tier:      "NO_MATCH",
		Note:      "rejected via review session, no suitable match",
		DecidedAt: time.Now().UTC(),
	})
	s.dropPending(item.Resource)
	return s.persist()
}

// ClearApproved empties the approved list after a successful save.
func (s *Session) ClearApproved() error {
	s.Approved = nil
	return s.persist()
}

func (s *Session) dropPending(r ResourceRef) {
	key := resourceKey(r)
	out := s.Pending[:0]
	for _, it := range s.Pending {
		if resourceKey(it.Resource) != key {
			out = append(out, it)
		}
	}
	s.Pending = out
}

func (s *Session) persist() error {
	if err := refcache.WriteJSONAtomic(s.pendingPath(), emptyNotNull(s.Pending)); err != nil {
		return err
	}
	return refcache.WriteJSONAtomic(s.approvedPath(), emptyNotNull(s.Approved))
}

// decidedKeys returns the resource keys with a recorded decision, including
// NO_MATCH rejections.
func (s *Session) decidedKeys() map[string]bool {
	decided := make(map[string]bool, len(s.Approved))
	for _, m := range s.Approved {
		decided[resourceKey(m.Resource)] = true
	}
	return decided
}

func resourceKey(r ResourceRef) string {
	return r.Kind + "/" + r.Name
}

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

// emptyNotNull keeps session files as [] instead of null when empty.
func emptyNotNull[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
