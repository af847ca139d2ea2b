package ops

import (
	"slices"
	"strings"
	"time"

	"github.com/hpungsan/tipe/internal/crm"
	"github.com/hpungsan/tipe/internal/errors"
	"github.com/hpungsan/tipe/internal/store"
)

// DefaultMeetingMinutes is used when a meeting is added without a duration.
const DefaultMeetingMinutes = 30

// AddMeetingInput contains parameters for the AddMeeting operation.
type AddMeetingInput struct {
	ID          string // optional
	LeadID      string
	LeadName    string
	LeadCompany string
	Title       string // required
	Date        time.Time
	Duration    int               // minutes, default 30
	Status      crm.MeetingStatus // default: scheduled
	MeetingLink string
	AISummary   string
}

// AddMeeting validates and appends a meeting.
func AddMeeting(st *store.Store, input AddMeetingInput) (*crm.Meeting, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, errors.NewInvalidRequest("title is required")
	}
	if input.Date.IsZero() {
		return nil, errors.NewInvalidRequest("date is required")
	}

	m := crm.Meeting{
		ID:          idOrNew(input.ID),
		LeadID:      strings.TrimSpace(input.LeadID),
		LeadName:    input.LeadName,
		LeadCompany: input.LeadCompany,
		Title:       strings.TrimSpace(input.Title),
		Date:        input.Date,
		Duration:    input.Duration,
		Status:      input.Status,
		MeetingLink: input.MeetingLink,
		AISummary:   input.AISummary,
	}
	if m.Duration == 0 {
		m.Duration = DefaultMeetingMinutes
	}
	if m.Status == "" {
		m.Status = crm.MeetingScheduled
	}
	m.LeadName, m.LeadCompany = leadNames(st, m.LeadID, m.LeadName, m.LeadCompany)

	if err := crm.ValidateMeeting(m); err != nil {
		return nil, invalid(err)
	}
	if err := st.AddMeeting(m); err != nil {
		return nil, err
	}
	return &m, nil
}

// MeetingView selects which meetings ListMeetings returns.
type MeetingView string

const (
	ViewAll      MeetingView = "all"
	ViewUpcoming MeetingView = "upcoming"
	ViewPast     MeetingView = "past"
)

// ListMeetingsInput contains parameters for the ListMeetings operation.
type ListMeetingsInput struct {
	View MeetingView // default: all
	Now  time.Time   // default: time.Now()
}

// ListMeetingsOutput contains the result of the ListMeetings operation.
type ListMeetingsOutput struct {
	View  MeetingView   `json:"view"`
	Items []crm.Meeting `json:"items"`
	Count int           `json:"count"`
}

// ListMeetings returns meetings for a view. Upcoming meetings are ordered
// soonest first and past meetings most recent first; "all" keeps store order.
func ListMeetings(st *store.Store, input ListMeetingsInput) (*ListMeetingsOutput, error) {
	view := input.View
	if view == "" {
		view = ViewAll
	}
	now := input.Now
	if now.IsZero() {
		now = time.Now()
	}

	var items []crm.Meeting
	switch view {
	case ViewAll:
		items = st.Meetings()
	case ViewUpcoming:
		items = filter(st.Meetings(), func(m crm.Meeting) bool { return m.IsUpcoming(now) })
		slices.SortStableFunc(items, func(a, b crm.Meeting) int { return a.Date.Compare(b.Date) })
	case ViewPast:
		items = filter(st.Meetings(), func(m crm.Meeting) bool { return m.IsPast(now) })
		slices.SortStableFunc(items, func(a, b crm.Meeting) int { return b.Date.Compare(a.Date) })
	default:
		return nil, errors.NewInvalidRequest("view must be one of: all, upcoming, past")
	}
	return &ListMeetingsOutput{View: view, Items: items, Count: len(items)}, nil
}

// UpdateMeetingStatusInput contains parameters for the UpdateMeetingStatus operation.
type UpdateMeetingStatusInput struct {
	ID     string
	Status crm.MeetingStatus
}

// MeetingStatusOutput reports a meeting's status after a change.
type MeetingStatusOutput struct {
	ID     string            `json:"id"`
	Status crm.MeetingStatus `json:"status"`
	Stats  crm.Stats         `json:"stats"`
}

// UpdateMeetingStatus sets the status of one meeting.
func UpdateMeetingStatus(st *store.Store, input UpdateMeetingStatusInput) (*MeetingStatusOutput, error) {
	id, err := requireID("meeting", input.ID)
	if err != nil {
		return nil, err
	}
	if err := st.UpdateMeetingStatus(id, input.Status); err != nil {
		return nil, err
	}
	return &MeetingStatusOutput{ID: id, Status: input.Status, Stats: st.Stats()}, nil
}
