package ops

import (
	"context"
	"fmt"
	"strings"

	"github.com/hpungsan/tipe/internal/crm"
	"github.com/hpungsan/tipe/internal/errors"
	"github.com/hpungsan/tipe/internal/source"
	"github.com/hpungsan/tipe/internal/store"
)

// SetLeadsInput contains parameters for the SetLeads operation.
type SetLeadsInput struct {
	Leads []crm.Lead
}

// SetLeadsOutput contains the result of the SetLeads operation.
type SetLeadsOutput struct {
	Count int       `json:"count"`
	Stats crm.Stats `json:"stats"`
}

// SetLeads validates and replaces the whole leads collection.
// Leads without a status start as pending.
func SetLeads(st *store.Store, input SetLeadsInput) (*SetLeadsOutput, error) {
	leads := make([]crm.Lead, len(input.Leads))
	for i, l := range input.Leads {
		if l.Status == "" {
			l.Status = crm.LeadPending
		}
		if err := crm.ValidateLead(l); err != nil {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("leads[%d]: %v", i, err))
		}
		leads[i] = l
	}
	if err := st.SetLeads(leads); err != nil {
		return nil, err
	}
	return &SetLeadsOutput{Count: len(leads), Stats: st.Stats()}, nil
}

// ListLeadsInput contains parameters for the ListLeads operation.
type ListLeadsInput struct {
	Status   crm.LeadStatus // optional filter
	Industry string         // optional, compared after normalization
	Limit    int            // default: 20, max: 100
	Offset   int
}

// ListLeadsOutput contains the result of the ListLeads operation.
type ListLeadsOutput struct {
	Items      []crm.Lead `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// ListLeads returns leads in store order, optionally filtered.
func ListLeads(st *store.Store, input ListLeadsInput) (*ListLeadsOutput, error) {
	if input.Status != "" && !input.Status.Valid() {
		return nil, errors.NewInvalidRequest("invalid lead status: " + string(input.Status))
	}
	industry := strings.TrimSpace(input.Industry)

	leads := filter(st.Leads(), func(l crm.Lead) bool {
		if input.Status != "" && l.Status != input.Status {
			return false
		}
		return industry == "" || crm.SameIndustry(l.Industry, industry)
	})
	items, page := paginate(leads, input.Limit, input.Offset)
	return &ListLeadsOutput{Items: items, Pagination: page}, nil
}

// FetchLead returns one lead by id.
func FetchLead(st *store.Store, id string) (*crm.Lead, error) {
	id, err := requireID("lead", id)
	if err != nil {
		return nil, err
	}
	l, err := st.Lead(id)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// NextPendingOutput is the head of the review queue.
type NextPendingOutput struct {
	Lead      *crm.Lead `json:"lead"`
	Remaining int       `json:"remaining"`
}

// NextPending returns the first pending lead and how many are left to review.
// Lead is nil once the queue is exhausted.
func NextPending(st *store.Store) *NextPendingOutput {
	pending := st.PendingLeads()
	out := &NextPendingOutput{Remaining: len(pending)}
	if len(pending) > 0 {
		out.Lead = &pending[0]
	}
	return out
}

// UpdateLeadStatusInput contains parameters for the UpdateLeadStatus operation.
type UpdateLeadStatusInput struct {
	ID     string
	Status crm.LeadStatus
}

// LeadStatusOutput reports a lead's status after a change.
type LeadStatusOutput struct {
	ID     string         `json:"id"`
	Status crm.LeadStatus `json:"status"`
	Stats  crm.Stats      `json:"stats"`
}

// UpdateLeadStatus sets the status of one lead.
func UpdateLeadStatus(st *store.Store, input UpdateLeadStatusInput) (*LeadStatusOutput, error) {
	id, err := requireID("lead", input.ID)
	if err != nil {
		return nil, err
	}
	if err := st.UpdateLeadStatus(id, input.Status); err != nil {
		return nil, err
	}
	return &LeadStatusOutput{ID: id, Status: input.Status, Stats: st.Stats()}, nil
}

// Direction is a swipe gesture on the review queue.
type Direction string

const (
	SwipeLeft  Direction = "left"
	SwipeRight Direction = "right"
	SwipeUp    Direction = "up"
)

// Status maps a swipe to the lead status it records.
func (d Direction) Status() (crm.LeadStatus, bool) {
	switch d {
	case SwipeLeft:
		return crm.LeadRejected, true
	case SwipeRight:
		return crm.LeadApproved, true
	case SwipeUp:
		return crm.LeadSkipped, true
	}
	return "", false
}

// SwipeInput contains parameters for the Swipe operation.
type SwipeInput struct {
	ID        string
	Direction Direction
}

// SwipeOutput contains the result of the Swipe operation.
type SwipeOutput struct {
	LeadStatusOutput
	Synced    bool   `json:"synced"`
	SyncError string `json:"sync_error,omitempty"`
}

// Swipe records a review decision. Approvals are also sent upstream when approver
// is non-nil; an upstream failure is reported in the output and keeps the local decision.
func Swipe(ctx context.Context, st *store.Store, approver source.Approver, input SwipeInput) (*SwipeOutput, error) {
	status, ok := input.Direction.Status()
	if !ok {
		return nil, errors.NewInvalidRequest("direction must be one of: left, right, up")
	}
	res, err := UpdateLeadStatus(st, UpdateLeadStatusInput{ID: input.ID, Status: status})
	if err != nil {
		return nil, err
	}

	out := &SwipeOutput{LeadStatusOutput: *res}
	if status == crm.LeadApproved && approver != nil {
		if err := approver.Approve(ctx, res.ID); err != nil {
			out.SyncError = err.Error()
		} else {
			out.Synced = true
		}
	}
	return out, nil
}

// ApprovedLeadsInput contains parameters for the ApprovedLeads operation.
type ApprovedLeadsInput struct {
	Industry string // optional
	Query    string // optional, matched against company name and location
}

// ApprovedLeadsOutput contains the result of the ApprovedLeads operation.
type ApprovedLeadsOutput struct {
	Items []crm.Lead `json:"items"`
	Count int        `json:"count"`
}

// ApprovedLeads returns the approved view, optionally narrowed.
func ApprovedLeads(st *store.Store, input ApprovedLeadsInput) *ApprovedLeadsOutput {
	industry := strings.TrimSpace(input.Industry)
	query := crm.Normalize(input.Query)

	items := filter(st.ApprovedLeads(), func(l crm.Lead) bool {
		if industry != "" && !crm.SameIndustry(l.Industry, industry) {
			return false
		}
		if query == "" {
			return true
		}
		return strings.Contains(crm.Normalize(l.CompanyName), query) ||
			strings.Contains(crm.Normalize(l.Location), query)
	})
	return &ApprovedLeadsOutput{Items: items, Count: len(items)}
}

// AskOutput is the assistant's reply.
type AskOutput struct {
	Query    string `json:"query"`
	Response string `json:"response"`
}

// Ask forwards a free-text question to the lead source's assistant.
func Ask(ctx context.Context, assistant source.Assistant, query string) (*AskOutput, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.NewInvalidRequest("query is required")
	}
	if assistant == nil {
		return nil, errors.NewInvalidRequest("the configured lead source has no assistant")
	}
	resp, err := assistant.Chat(ctx, query)
	if err != nil {
		return nil, err
	}
	return &AskOutput{Query: query, Response: resp}, nil
}
