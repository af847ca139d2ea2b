package crm

// Stats is the derived dashboard summary.
type Stats struct {
	ActiveLeads       int     `json:"activeLeads"`
	ResponseRate      float64 `json:"responseRate"`
	MeetingsScheduled int     `json:"meetingsScheduled"`
	ConversionRate    float64 `json:"conversionRate"`
	ApprovalRate      float64 `json:"approvalRate"`
}

// ComputeStats derives all five Stats fields from the current collections.
// Every rate is guarded against a zero denominator, so the result never holds NaN or Inf.
func ComputeStats(leads []Lead, conversations []Conversation, meetings []Meeting) Stats {
	var approved, pending int
	for _, l := range leads {
		switch l.Status {
		case LeadApproved:
			approved++
		case LeadPending:
			pending++
		}
	}

	var activeConversations int
	for _, c := range conversations {
		if c.Status == ConversationActive {
			activeConversations++
		}
	}

	var completed, scheduled int
	for _, m := range meetings {
		switch m.Status {
		case MeetingCompleted:
			completed++
		case MeetingScheduled:
			scheduled++
		}
	}

	s := Stats{
		ActiveLeads:       pending,
		MeetingsScheduled: scheduled,
	}
	if approved > 0 {
		s.ResponseRate = percent(activeConversations, approved)
		s.ConversionRate = percent(completed, approved)
	}
	if len(leads) > 0 {
		s.ApprovalRate = percent(approved, len(leads))
	}
	return s
}

func percent(n, d int) float64 {
	return float64(n) / float64(d) * 100
}
