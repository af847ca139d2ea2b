// Package crm defines the records held by the lead/interaction store.
// JSON field names match the shapes the dashboard and the lead source exchange.
package crm

import "time"

// LeadStatus is the approval state of a lead.
type LeadStatus string

const (
	LeadPending  LeadStatus = "pending"
	LeadApproved LeadStatus = "approved"
	LeadRejected LeadStatus = "rejected"
	LeadSkipped  LeadStatus = "skipped"
)

// Valid reports whether s is one of the four lead states.
func (s LeadStatus) Valid() bool {
	switch s {
	case LeadPending, LeadApproved, LeadRejected, LeadSkipped:
		return true
	}
	return false
}

// Channel is the medium a conversation or message travels over.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelLinkedIn Channel = "linkedin"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelCall     Channel = "call"
)

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelLinkedIn, ChannelWhatsApp, ChannelCall:
		return true
	}
	return false
}

// Sender identifies who wrote a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderLead Sender = "lead"
	SenderAI   Sender = "ai"
)

// ConversationStatus is either active or archived.
type ConversationStatus string

const (
	ConversationActive   ConversationStatus = "active"
	ConversationArchived ConversationStatus = "archived"
)

// MeetingStatus is the lifecycle state of a meeting.
type MeetingStatus string

const (
	MeetingScheduled MeetingStatus = "scheduled"
	MeetingCompleted MeetingStatus = "completed"
	MeetingCancelled MeetingStatus = "cancelled"
)

// Valid reports whether s is a known meeting status.
func (s MeetingStatus) Valid() bool {
	switch s {
	case MeetingScheduled, MeetingCompleted, MeetingCancelled:
		return true
	}
	return false
}

// PostStatus is the publishing state of a content post.
type PostStatus string

const (
	PostDraft     PostStatus = "draft"
	PostScheduled PostStatus = "scheduled"
	PostPublished PostStatus = "published"
)

// Valid reports whether s is a known post status.
func (s PostStatus) Valid() bool {
	switch s {
	case PostDraft, PostScheduled, PostPublished:
		return true
	}
	return false
}

// Lead is a prospective business contact with matching scores.
type Lead struct {
	ID                 string     `json:"id" validate:"required"`
	CompanyName        string     `json:"company_name"`
	Industry           string     `json:"industry"`
	Location           string     `json:"location"`
	VectorScore        float64    `json:"vector_score" validate:"gte=0,lte=1"`
	IntentScore        float64    `json:"intent_score" validate:"gte=0,lte=1"`
	TradeMomentumIndex float64    `json:"trade_momentum_index" validate:"gte=0,lte=1"`
	MatchPercentage    int        `json:"match_percentage" validate:"gte=0,lte=100"`
	FirmographicsHash  string     `json:"firmographics_hash,omitempty"`
	TrustVerified      bool       `json:"trust_verified"`
	CompanySize        string     `json:"company_size,omitempty"`
	EstimatedValue     string     `json:"estimated_value,omitempty"`
	AIReasoning        string     `json:"ai_reasoning,omitempty"`
	OutreachTemplate   string     `json:"outreach_template,omitempty"`
	Status             LeadStatus `json:"status" validate:"required,oneof=pending approved rejected skipped"`
	ContactPerson      string     `json:"contact_person,omitempty"`
	Email              string     `json:"email,omitempty" validate:"omitempty,email"`
	Phone              string     `json:"phone,omitempty"`
	Signals            []string   `json:"signals,omitempty"`
}

// RankScore is the mean of the three matching scores, used to order the review queue.
func (l Lead) RankScore() float64 {
	return (l.VectorScore + l.IntentScore + l.TradeMomentumIndex) / 3
}

// Conversation is a per-lead thread over one channel.
type Conversation struct {
	ID              string             `json:"id" validate:"required"`
	LeadID          string             `json:"leadId"`
	LeadName        string             `json:"leadName,omitempty"`
	LeadCompany     string             `json:"leadCompany,omitempty"`
	Channel         Channel            `json:"channel" validate:"required,oneof=email linkedin whatsapp call"`
	LastMessage     string             `json:"lastMessage"`
	LastMessageTime time.Time          `json:"lastMessageTime"`
	UnreadCount     int                `json:"unreadCount" validate:"gte=0"`
	AIHandling      bool               `json:"aiHandling"`
	Status          ConversationStatus `json:"status" validate:"required,oneof=active archived"`
}

// Message is one entry in a conversation thread.
type Message struct {
	ID             string    `json:"id" validate:"required"`
	ConversationID string    `json:"conversationId"`
	Sender         Sender    `json:"sender" validate:"required,oneof=user lead ai"`
	Content        string    `json:"content"`
	Timestamp      time.Time `json:"timestamp"`
	Channel        Channel   `json:"channel" validate:"required,oneof=email linkedin whatsapp call"`
}

// Meeting is a call booked with a lead.
type Meeting struct {
	ID           string        `json:"id" validate:"required"`
	LeadID       string        `json:"leadId"`
	LeadName     string        `json:"leadName,omitempty"`
	LeadCompany  string        `json:"leadCompany,omitempty"`
	Title        string        `json:"title" validate:"required"`
	Date         time.Time     `json:"date" validate:"required"`
	Duration     int           `json:"duration" validate:"gte=0"`
	Status       MeetingStatus `json:"status" validate:"required,oneof=scheduled completed cancelled"`
	MeetingLink  string        `json:"meetingLink,omitempty" validate:"omitempty,url"`
	AISummary    string        `json:"aiSummary,omitempty"`
	FollowUpSent bool          `json:"followUpSent"`
}

// IsUpcoming reports whether the meeting is scheduled for now or later.
func (m Meeting) IsUpcoming(now time.Time) bool {
	return m.Status == MeetingScheduled && !m.Date.Before(now)
}

// IsPast reports whether the meeting is completed or its date has gone by.
func (m Meeting) IsPast(now time.Time) bool {
	return m.Status == MeetingCompleted || m.Date.Before(now)
}

// ContentPost is a social post drafted, scheduled or published by the content engine.
type ContentPost struct {
	ID             string     `json:"id" validate:"required"`
	Content        string     `json:"content"`
	Status         PostStatus `json:"status" validate:"required,oneof=draft scheduled published"`
	ScheduledDate  *time.Time `json:"scheduledDate,omitempty"`
	PublishedDate  *time.Time `json:"publishedDate,omitempty"`
	EngagementRate *float64   `json:"engagementRate,omitempty" validate:"omitempty,gte=0"`
	Likes          *int       `json:"likes,omitempty" validate:"omitempty,gte=0"`
	Comments       *int       `json:"comments,omitempty" validate:"omitempty,gte=0"`
	Shares         *int       `json:"shares,omitempty" validate:"omitempty,gte=0"`
}

// ContentPostPatch is a partial update. Nil fields are left untouched.
type ContentPostPatch struct {
	Content        *string     `json:"content,omitempty"`
	Status         *PostStatus `json:"status,omitempty" validate:"omitempty,oneof=draft scheduled published"`
	ScheduledDate  *time.Time  `json:"scheduledDate,omitempty"`
	PublishedDate  *time.Time  `json:"publishedDate,omitempty"`
	EngagementRate *float64    `json:"engagementRate,omitempty" validate:"omitempty,gte=0"`
	Likes          *int        `json:"likes,omitempty" validate:"omitempty,gte=0"`
	Comments       *int        `json:"comments,omitempty" validate:"omitempty,gte=0"`
	Shares         *int        `json:"shares,omitempty" validate:"omitempty,gte=0"`
}

// Empty reports whether the patch sets no field.
func (p ContentPostPatch) Empty() bool {
	return p.Content == nil && p.Status == nil && p.ScheduledDate == nil &&
		p.PublishedDate == nil && p.EngagementRate == nil && p.Likes == nil &&
		p.Comments == nil && p.Shares == nil
}

// Apply returns post with every set field of p merged in.
func (p ContentPostPatch) Apply(post ContentPost) ContentPost {
	if p.Content != nil {
		post.Content = *p.Content
	}
	if p.Status != nil {
		post.Status = *p.Status
	}
	if p.ScheduledDate != nil {
		post.ScheduledDate = p.ScheduledDate
	}
	if p.PublishedDate != nil {
		post.PublishedDate = p.PublishedDate
	}
	if p.EngagementRate != nil {
		post.EngagementRate = p.EngagementRate
	}
	if p.Likes != nil {
		post.Likes = p.Likes
	}
	if p.Comments != nil {
		post.Comments = p.Comments
	}
	if p.Shares != nil {
		post.Shares = p.Shares
	}
	return post
}
