// Package store holds the in-memory lead and interaction state with its derived stats.
//
// A Store is created by the application and handed to every surface that reads or
// mutates it. Each action runs under the write lock and completes before the next
// one starts. Readers always receive copies.
package store

import (
	"slices"
	"sync"

	"github.com/hpungsan/tipe/internal/crm"
	"github.com/hpungsan/tipe/internal/errors"
)

// Action names a store mutation.
type Action string

const (
	ActionSetLeads            Action = "set_leads"
	ActionUpdateLeadStatus    Action = "update_lead_status"
	ActionAddConversation     Action = "add_conversation"
	ActionAddMessage          Action = "add_message"
	ActionToggleAIHandling    Action = "toggle_ai_handling"
	ActionAddMeeting          Action = "add_meeting"
	ActionUpdateMeetingStatus Action = "update_meeting_status"
	ActionAddContentPost      Action = "add_content_post"
	ActionUpdateContentPost   Action = "update_content_post"
	ActionUpdateStats         Action = "update_stats"
	ActionRestore             Action = "restore"
)

// Change is delivered to subscribers after every successful mutation.
type Change struct {
	Action  Action
	Version uint64
	Stats   crm.Stats
}

// Store is the lead/interaction state container.
type Store struct {
	mu            sync.RWMutex
	leads         []crm.Lead
	leadIndex     map[string]int
	conversations []crm.Conversation // newest first
	messages      map[string][]crm.Message
	meetings      []crm.Meeting
	posts         []crm.ContentPost
	stats         crm.Stats
	version       uint64

	subMu     sync.Mutex
	listeners map[int]func(Change)
	nextSub   int
}

// New returns an empty store.
func New() *Store {
	return &Store{
		leadIndex: map[string]int{},
		messages:  map[string][]crm.Message{},
		listeners: map[int]func(Change){},
	}
}

// Subscribe registers fn to be called after each mutation. fn runs on the
// mutating goroutine, outside the store lock. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	return func() {
		s.subMu.Lock()
		delete(s.listeners, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(c Change) {
	s.subMu.Lock()
	fns := make([]func(Change), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}

// commit bumps the version and optionally recomputes stats. Caller holds mu.
func (s *Store) commit(action Action, recompute bool) Change {
	if recompute {
		s.stats = crm.ComputeStats(s.leads, s.conversations, s.meetings)
	}
	s.version++
	return Change{Action: action, Version: s.version, Stats: s.stats}
}

// SetLeads replaces the whole leads collection, keeping input order.
// Duplicate ids are rejected and leave the store unchanged.
func (s *Store) SetLeads(leads []crm.Lead) error {
	_, err := s.MergeLeads(leads, false)
	return err
}

// MergeLeads replaces the leads collection like SetLeads. When keep is true,
// leads whose id is already stored with a non-pending status keep that status.
// The merge and the swap happen under one write lock so a concurrent status
// update is either merged or applied after the swap. It returns how many
// statuses were kept.
func (s *Store) MergeLeads(leads []crm.Lead, keep bool) (int, error) {
	index := make(map[string]int, len(leads))
	next := make([]crm.Lead, len(leads))
	for i, l := range leads {
		if _, dup := index[l.ID]; dup {
			return 0, errors.NewInvalidRequest("duplicate lead id: " + l.ID)
		}
		index[l.ID] = i
		next[i] = cloneLead(l)
	}

	s.mu.Lock()
	kept := 0
	if keep {
		for i := range next {
			j, ok := s.leadIndex[next[i].ID]
			if !ok {
				continue
			}
			if cur := s.leads[j].Status; cur != crm.LeadPending && cur != next[i].Status {
				next[i].Status = cur
				kept++
			}
		}
	}
	s.leads = next
	s.leadIndex = index
	c := s.commit(ActionSetLeads, true)
	s.mu.Unlock()

	s.notify(c)
	return kept, nil
}

// UpdateLeadStatus sets the status of one lead.
func (s *Store) UpdateLeadStatus(id string, status crm.LeadStatus) error {
	if !status.Valid() {
		return errors.NewInvalidRequest("invalid lead status: " + string(status))
	}

	s.mu.Lock()
	i, ok := s.leadIndex[id]
	if !ok {
		s.mu.Unlock()
		return errors.NewNotFound("lead", id)
	}
	s.leads[i].Status = status
	c := s.commit(ActionUpdateLeadStatus, true)
	s.mu.Unlock()

	s.notify(c)
	return nil
}

// AddConversation prepends conv so the newest conversation comes first.
func (s *Store) AddConversation(conv crm.Conversation) error {
	s.mu.Lock()
	if s.conversationIndex(conv.ID) >= 0 {
		s.mu.Unlock()
		return errors.NewAlreadyExists("conversation", conv.ID)
	}
	s.conversations = slices.Insert(s.conversations, 0, conv)
	c := s.commit(ActionAddConversation, true)
	s.mu.Unlock()

	s.notify(c)
	return nil
}

// AddMessage appends msg to the thread keyed by conversationID. The thread is
// created when absent; the conversation itself need not exist.
func (s *Store) AddMessage(conversationID string, msg crm.Message) {
	s.mu.Lock()
	s.messages[conversationID] = append(s.messages[conversationID], msg)
	c := s.commit(ActionAddMessage, false)
	s.mu.Unlock()

	s.notify(c)
}

// ToggleAIHandling flips the AI-handling flag of a conversation and returns the new value.
func (s *Store) ToggleAIHandling(conversationID string) (bool, error) {
	s.mu.Lock()
	i := s.conversationIndex(conversationID)
	if i < 0 {
		s.mu.Unlock()
		return false, errors.NewNotFound("conversation", conversationID)
	}
	s.conversations[i].AIHandling = !s.conversations[i].AIHandling
	v := s.conversations[i].AIHandling
	c := s.commit(ActionToggleAIHandling, false)
	s.mu.Unlock()

	s.notify(c)
	return v, nil
}

// AddMeeting appends a meeting.
func (s *Store) AddMeeting(m crm.Meeting) error {
	s.mu.Lock()
	if s.meetingIndex(m.ID) >= 0 {
		s.mu.Unlock()
		return errors.NewAlreadyExists("meeting", m.ID)
	}
	s.meetings = append(s.meetings, m)
	c := s.commit(ActionAddMeeting, true)
	s.mu.Unlock()

	s.notify(c)
	return nil
}

// UpdateMeetingStatus sets the status of one meeting.
func (s *Store) UpdateMeetingStatus(id string, status crm.MeetingStatus) error {
	if !status.Valid() {
		return errors.NewInvalidRequest("invalid meeting status: " + string(status))
	}

	s.mu.Lock()
	i := s.meetingIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return errors.NewNotFound("meeting", id)
	}
	s.meetings[i].Status = status
	c := s.commit(ActionUpdateMeetingStatus, true)
	s.mu.Unlock()

	s.notify(c)
	return nil
}

// AddContentPost appends a content post.
func (s *Store) AddContentPost(p crm.ContentPost) error {
	s.mu.Lock()
	if s.postIndex(p.ID) >= 0 {
		s.mu.Unlock()
		return errors.NewAlreadyExists("content post", p.ID)
	}
	s.posts = append(s.posts, p)
	c := s.commit(ActionAddContentPost, false)
	s.mu.Unlock()

	s.notify(c)
	return nil
}

// UpdateContentPost merges the set fields of patch into one post and returns the result.
func (s *Store) UpdateContentPost(id string, patch crm.ContentPostPatch) (crm.ContentPost, error) {
	s.mu.Lock()
	i := s.postIndex(id)
	if i < 0 {
		s.mu.Unlock()
		return crm.ContentPost{}, errors.NewNotFound("content post", id)
	}
	s.posts[i] = patch.Apply(s.posts[i])
	updated := s.posts[i]
	c := s.commit(ActionUpdateContentPost, false)
	s.mu.Unlock()

	s.notify(c)
	return updated, nil
}

// UpdateStats recomputes every stats field from the current collections.
func (s *Store) UpdateStats() crm.Stats {
	s.mu.Lock()
	c := s.commit(ActionUpdateStats, true)
	s.mu.Unlock()

	s.notify(c)
	return c.Stats
}

func (s *Store) conversationIndex(id string) int {
	return slices.IndexFunc(s.conversations, func(c crm.Conversation) bool { return c.ID == id })
}

func (s *Store) meetingIndex(id string) int {
	return slices.IndexFunc(s.meetings, func(m crm.Meeting) bool { return m.ID == id })
}

func (s *Store) postIndex(id string) int {
	return slices.IndexFunc(s.posts, func(p crm.ContentPost) bool { return p.ID == id })
}

func cloneLead(l crm.Lead) crm.Lead {
	l.Signals = slices.Clone(l.Signals)
	return l
}
