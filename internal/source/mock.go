package source

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/hpungsan/tipe/internal/crm"
	"github.com/hpungsan/tipe/internal/errors"
)

// DefaultMockCount is the lead count when MockOptions.Count is zero.
const DefaultMockCount = 50

var (
	mockIndustries = []string{
		"Manufacturing", "Technology", "Agriculture", "Textiles", "Electronics",
		"Automotive", "Pharmaceuticals", "Food & Beverage", "Chemical", "Machinery",
	}
	mockCountries = []string{
		"United States", "Germany", "China", "Japan", "United Kingdom",
		"France", "India", "Brazil", "Canada", "Australia", "South Korea",
		"Italy", "Spain", "Mexico", "Netherlands", "Singapore", "UAE",
	}
	mockPrefixes     = []string{"Global", "Prime", "Elite", "Apex", "Summit", "Peak", "Nova", "Stellar"}
	mockCompanySizes = []string{"1-10", "11-50", "51-200", "201-500", "501-1000", "1000+"}
	mockReasons      = []string{
		"High vector similarity in product categories and market segments",
		"Strong intent signals from recent B2B platform activity",
		"Matching trade momentum patterns with your successful deals",
		"Complementary supply chain capabilities detected",
		"Active buyer in your target categories with budget approval",
		"Geographic expansion strategy aligns with your export markets",
		"Technology adoption curve matches your product innovation",
		"Firmographic profile mirrors your best-performing clients",
	}
	mockSignals = []string{
		"Active tariff news exposure", "Recent funding event", "Decision-maker change detected",
		"LinkedIn engagement spike", "Company is hiring", "Good payment history verified",
	}
)

// MockOptions configures the generated data.
type MockOptions struct {
	Count    int           // leads per fetch; 0 means DefaultMockCount
	Industry string        // pin every lead to one industry; empty rotates
	Seed     int64         // 0 picks a random seed
	Latency  time.Duration // artificial delay per fetch
}

// Mock generates plausible leads and a fixed set of starter interactions.
type Mock struct {
	opts MockOptions
	now  func() time.Time
}

// NewMock returns a mock source.
func NewMock(opts MockOptions) *Mock {
	if opts.Count <= 0 {
		opts.Count = DefaultMockCount
	}
	return &Mock{opts: opts, now: time.Now}
}

func (m *Mock) Name() string { return "mock" }

// FetchLeads generates opts.Count pending leads sorted by mean score, best first.
func (m *Mock) FetchLeads(ctx context.Context) ([]crm.Lead, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	f := gofakeit.New(m.opts.Seed)
	leads := make([]crm.Lead, m.opts.Count)
	for i := range leads {
		industry := m.opts.Industry
		if industry == "" {
			industry = mockIndustries[i%len(mockIndustries)]
		}
		vector := round3(f.Float64Range(0.7, 1.0))
		intent := round3(f.Float64Range(0.6, 1.0))
		momentum := round3(f.Float64Range(0.65, 1.0))

		l := crm.Lead{
			ID:                 fmt.Sprintf("lead-%d", i+1),
			CompanyName:        fmt.Sprintf("%s %s Co.", mockPrefixes[i%len(mockPrefixes)], industry),
			Industry:           industry,
			Location:           mockCountries[i%len(mockCountries)],
			VectorScore:        vector,
			IntentScore:        intent,
			TradeMomentumIndex: momentum,
			FirmographicsHash:  "SHA256:" + f.LetterN(13) + "...",
			TrustVerified:      f.Float64Range(0, 1) > 0.4,
			CompanySize:        f.RandomString(mockCompanySizes),
			EstimatedValue:     fmt.Sprintf("$%dK", f.Number(50, 549)),
			AIReasoning:        f.RandomString(mockReasons),
			OutreachTemplate:   fmt.Sprintf("Personalized outreach based on %s expertise", industry),
			Status:             crm.LeadPending,
			ContactPerson:      f.FirstName() + " " + f.LastName(),
			Email:              fmt.Sprintf("contact%d@example.com", i+1),
			Phone:              f.Numerify("+1-555-####"),
			Signals:            []string{f.RandomString(mockSignals)},
		}
		l.MatchPercentage = int(math.Round(l.RankScore() * 100))
		leads[i] = l
	}

	sort.SliceStable(leads, func(a, b int) bool {
		return leads[a].RankScore() > leads[b].RankScore()
	})
	return leads, nil
}

// Seed returns three conversations, their messages, three meetings and three posts,
// with times relative to now.
func (m *Mock) Seed(ctx context.Context) (*Seed, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("seed")
	}
	now := m.now().UTC()
	ago := func(d time.Duration) time.Time { return now.Add(-d) }
	ptr := func(t time.Time) *time.Time { return &t }
	intp := func(n int) *int { return &n }
	rate := 4.2

	return &Seed{
		Conversations: []crm.Conversation{
			{
				ID: "conv-1", LeadID: "lead-1", LeadName: "Sarah Johnson", LeadCompany: "Global Manufacturing Co.",
				Channel: crm.ChannelLinkedIn, LastMessage: "Thanks for reaching out! I'd love to discuss this opportunity.",
				LastMessageTime: ago(30 * time.Minute), UnreadCount: 2, AIHandling: true, Status: crm.ConversationActive,
			},
			{
				ID: "conv-2", LeadID: "lead-2", LeadName: "Michael Chen", LeadCompany: "Prime Technology Co.",
				Channel: crm.ChannelEmail, LastMessage: "Can you send me more details about your product specifications?",
				LastMessageTime: ago(2 * time.Hour), AIHandling: true, Status: crm.ConversationActive,
			},
			{
				ID: "conv-3", LeadID: "lead-3", LeadName: "Emily Rodriguez", LeadCompany: "Elite Agriculture Co.",
				Channel: crm.ChannelWhatsApp, LastMessage: "I'm interested in scheduling a demo next week",
				LastMessageTime: ago(5 * time.Hour), UnreadCount: 1, Status: crm.ConversationActive,
			},
		},
		Messages: map[string][]crm.Message{
			"conv-1": {
				{ID: "msg-1", ConversationID: "conv-1", Sender: crm.SenderUser, Channel: crm.ChannelLinkedIn, Timestamp: ago(2 * time.Hour),
					Content: "Hi Sarah, I noticed your company is looking to expand into sustainable materials. We have solutions that might interest you."},
				{ID: "msg-2", ConversationID: "conv-1", Sender: crm.SenderLead, Channel: crm.ChannelLinkedIn, Timestamp: ago(30 * time.Minute),
					Content: "Thanks for reaching out! I'd love to discuss this opportunity."},
				{ID: "msg-3", ConversationID: "conv-1", Sender: crm.SenderAI, Channel: crm.ChannelLinkedIn, Timestamp: ago(15 * time.Minute),
					Content: "Great! I've prepared a customized overview of our solutions. Would next Tuesday at 2 PM work for a quick call?"},
			},
			"conv-2": {
				{ID: "msg-4", ConversationID: "conv-2", Sender: crm.SenderUser, Channel: crm.ChannelEmail, Timestamp: ago(3 * time.Hour),
					Content: "Hello Michael, your recent technology investments align perfectly with our AI-powered export platform."},
				{ID: "msg-5", ConversationID: "conv-2", Sender: crm.SenderLead, Channel: crm.ChannelEmail, Timestamp: ago(2 * time.Hour),
					Content: "Can you send me more details about your product specifications?"},
			},
			"conv-3": {
				{ID: "msg-6", ConversationID: "conv-3", Sender: crm.SenderAI, Channel: crm.ChannelWhatsApp, Timestamp: ago(6 * time.Hour),
					Content: "Hi Emily! I see you're interested in optimizing your agriculture supply chain."},
				{ID: "msg-7", ConversationID: "conv-3", Sender: crm.SenderLead, Channel: crm.ChannelWhatsApp, Timestamp: ago(5 * time.Hour),
					Content: "I'm interested in scheduling a demo next week"},
			},
		},
		Meetings: []crm.Meeting{
			{
				ID: "meeting-1", LeadID: "lead-1", LeadName: "Sarah Johnson", LeadCompany: "Global Manufacturing Co.",
				Title: "Product Demo & Discovery Call", Date: now.Add(48 * time.Hour), Duration: 30,
				Status: crm.MeetingScheduled, MeetingLink: "https://meet.tipe.ai/demo-abc123",
			},
			{
				ID: "meeting-2", LeadID: "lead-4", LeadName: "David Brown", LeadCompany: "Apex Textiles Co.",
				Title: "Partnership Discussion", Date: now.Add(5 * 24 * time.Hour), Duration: 45,
				Status: crm.MeetingScheduled, MeetingLink: "https://meet.tipe.ai/partner-xyz789",
			},
			{
				ID: "meeting-3", LeadID: "lead-2", LeadName: "Michael Chen", LeadCompany: "Prime Technology Co.",
				Title: "Technical Integration Review", Date: ago(3 * 24 * time.Hour), Duration: 60,
				Status: crm.MeetingCompleted, FollowUpSent: true,
				AISummary: "Discussed API integration requirements. Michael is interested in **Q2 implementation**. Follow-up with technical specs needed.",
			},
		},
		ContentPosts: []crm.ContentPost{
			{
				ID: "post-1", Status: crm.PostPublished, PublishedDate: ptr(ago(48 * time.Hour)),
				Content:        "Global trade is evolving. AI-powered matchmaking is connecting exporters with verified buyers faster than ever. Are you ready for the future of B2B?",
				EngagementRate: &rate, Likes: intp(234), Comments: intp(18), Shares: intp(45),
			},
			{
				ID: "post-2", Status: crm.PostScheduled, ScheduledDate: ptr(now.Add(24 * time.Hour)),
				Content: "New insight: companies using intent-driven lead matching see 3x higher conversion rates. The secret? Vector similarity plus real-time trade momentum analysis.",
			},
			{
				ID: "post-3", Status: crm.PostDraft,
				Content: "Just closed another international deal through AI-powered matching. The future of export is intelligent, automated, and incredibly efficient.",
			},
		},
	}, nil
}

// Chat echoes the query the way the backend's placeholder endpoint does.
func (m *Mock) Chat(ctx context.Context, query string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.NewCancelled("chat")
	}
	return fmt.Sprintf("I received your query: %s. How can I assist you with your export growth?", query), nil
}

func (m *Mock) wait(ctx context.Context) error {
	if m.opts.Latency <= 0 {
		if ctx.Err() != nil {
			return errors.NewCancelled("fetch leads")
		}
		return nil
	}
	t := time.NewTimer(m.opts.Latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return errors.NewCancelled("fetch leads")
	case <-t.C:
		return nil
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
