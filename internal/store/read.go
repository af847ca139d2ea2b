package store

import (
	"github.com/hpungsan/tipe/internal/crm"
	"github.com/hpungsan/tipe/internal/errors"
)

// Leads returns all leads in stored order.
func (s *Store) Leads() []crm.Lead {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneLeads(s.leads)
}

// LeadsByStatus returns the leads whose status is st, in stored order.
func (s *Store) LeadsByStatus(st crm.LeadStatus) []crm.Lead {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []crm.Lead{}
	for _, l := range s.leads {
		if l.Status == st {
			out = append(out, cloneLead(l))
		}
	}
	return out
}

// ApprovedLeads is the approved subset of leads, derived on read.
func (s *Store) ApprovedLeads() []crm.Lead {
	return s.LeadsByStatus(crm.LeadApproved)
}

// PendingLeads is the review queue.
func (s *Store) PendingLeads() []crm.Lead {
	return s.LeadsByStatus(crm.LeadPending)
}

// Lead returns one lead by id.
func (s *Store) Lead(id string) (crm.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.leadIndex[id]
	if !ok {
		return crm.Lead{}, errors.NewNotFound("lead", id)
	}
	return cloneLead(s.leads[i]), nil
}

// Conversations returns conversations newest first.
func (s *Store) Conversations() []crm.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.conversations)
}

// Conversation returns one conversation by id.
func (s *Store) Conversation(id string) (crm.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.conversationIndex(id)
	if i < 0 {
		return crm.Conversation{}, errors.NewNotFound("conversation", id)
	}
	return s.conversations[i], nil
}

// Messages returns the thread for a conversation id in insertion order.
// An unknown id yields an empty slice.
func (s *Store) Messages(conversationID string) []crm.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[conversationID]
	if msgs == nil {
		return []crm.Message{}
	}
	return clone(msgs)
}

// Meetings returns meetings in insertion order.
func (s *Store) Meetings() []crm.Meeting {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.meetings)
}

// Meeting returns one meeting by id.
func (s *Store) Meeting(id string) (crm.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.meetingIndex(id)
	if i < 0 {
		return crm.Meeting{}, errors.NewNotFound("meeting", id)
	}
	return s.meetings[i], nil
}

// ContentPosts returns content posts in insertion order.
func (s *Store) ContentPosts() []crm.ContentPost {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.posts)
}

// ContentPost returns one post by id.
func (s *Store) ContentPost(id string) (crm.ContentPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.postIndex(id)
	if i < 0 {
		return crm.ContentPost{}, errors.NewNotFound("content post", id)
	}
	return s.posts[i], nil
}

// Stats returns the last computed stats.
func (s *Store) Stats() crm.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Version increases by one with every mutation.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Snapshot is a point-in-time copy of every collection.
type Snapshot struct {
	Leads         []crm.Lead               `json:"leads"`
	Conversations []crm.Conversation       `json:"conversations"`
	Messages      map[string][]crm.Message `json:"messages"`
	Meetings      []crm.Meeting            `json:"meetings"`
	ContentPosts  []crm.ContentPost        `json:"content_posts"`
	Stats         crm.Stats                `json:"stats"`
	Version       uint64                   `json:"version"`
}

// Snapshot copies the whole store under one read lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := make(map[string][]crm.Message, len(s.messages))
	for k, v := range s.messages {
		msgs[k] = clone(v)
	}
	return Snapshot{
		Leads:         cloneLeads(s.leads),
		Conversations: clone(s.conversations),
		Messages:      msgs,
		Meetings:      clone(s.meetings),
		ContentPosts:  clone(s.posts),
		Stats:         s.stats,
		Version:       s.version,
	}
}

// Restore replaces every collection with snap and recomputes stats.
// Stored stats in snap are ignored.
func (s *Store) Restore(snap Snapshot) error {
	index := make(map[string]int, len(snap.Leads))
	for i, l := range snap.Leads {
		if _, dup := index[l.ID]; dup {
			return errors.NewInvalidRequest("duplicate lead id: " + l.ID)
		}
		index[l.ID] = i
	}
	if id, dup := firstDuplicate(snap.Conversations, func(c crm.Conversation) string { return c.ID }); dup {
		return errors.NewInvalidRequest("duplicate conversation id: " + id)
	}
	if id, dup := firstDuplicate(snap.Meetings, func(m crm.Meeting) string { return m.ID }); dup {
		return errors.NewInvalidRequest("duplicate meeting id: " + id)
	}
	if id, dup := firstDuplicate(snap.ContentPosts, func(p crm.ContentPost) string { return p.ID }); dup {
		return errors.NewInvalidRequest("duplicate content post id: " + id)
	}
	msgs := make(map[string][]crm.Message, len(snap.Messages))
	for k, v := range snap.Messages {
		msgs[k] = clone(v)
	}

	s.mu.Lock()
	s.leads = cloneLeads(snap.Leads)
	s.leadIndex = index
	s.conversations = clone(snap.Conversations)
	s.messages = msgs
	s.meetings = clone(snap.Meetings)
	s.posts = clone(snap.ContentPosts)
	if snap.Version > s.version {
		s.version = snap.Version
	}
	c := s.commit(ActionRestore, true)
	s.mu.Unlock()

	s.notify(c)
	return nil
}

// Empty reports whether the store holds no records at all.
func (s *Store) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.leads) == 0 && len(s.conversations) == 0 && len(s.messages) == 0 &&
		len(s.meetings) == 0 && len(s.posts) == 0
}

// HasInteractions reports whether any conversation, message thread, meeting or
// content post is stored.
func (s *Store) HasInteractions() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations) > 0 || len(s.messages) > 0 || len(s.meetings) > 0 || len(s.posts) > 0
}

func cloneLeads(leads []crm.Lead) []crm.Lead {
	out := make([]crm.Lead, len(leads))
	for i, l := range leads {
		out[i] = cloneLead(l)
	}
	return out
}

// clone copies s into a fresh non-nil slice.
func clone[T any](s []T) []T {
	out := make([]T, len(s))
	copy(out, s)
	return out
}

func firstDuplicate[T any](items []T, key func(T) string) (string, bool) {
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		k := key(it)
		if _, ok := seen[k]; ok {
			return k, true
		}
		seen[k] = struct{}{}
	}
	return "", false
}
