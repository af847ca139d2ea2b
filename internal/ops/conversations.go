package ops

import (
	"strings"
	"time"

	"github.com/hpungsan/tipe/internal/crm"
	"github.com/hpungsan/tipe/internal/errors"
	"github.com/hpungsan/tipe/internal/store"
)

// AddConversationInput contains parameters for the AddConversation operation.
type AddConversationInput struct {
	ID              string // optional, ULID generated when empty
	LeadID          string
	LeadName        string // filled from the lead when empty
	LeadCompany     string // filled from the lead when empty
	Channel         crm.Channel
	LastMessage     string
	LastMessageTime time.Time // default: now
	UnreadCount     int
	AIHandling      bool
	Status          crm.ConversationStatus // default: active
}

// AddConversation validates and prepends a new conversation.
func AddConversation(st *store.Store, input AddConversationInput) (*crm.Conversation, error) {
	conv := crm.Conversation{
		ID:              idOrNew(input.ID),
		LeadID:          strings.TrimSpace(input.LeadID),
		LeadName:        input.LeadName,
		LeadCompany:     input.LeadCompany,
		Channel:         input.Channel,
		LastMessage:     input.LastMessage,
		LastMessageTime: input.LastMessageTime,
		UnreadCount:     input.UnreadCount,
		AIHandling:      input.AIHandling,
		Status:          input.Status,
	}
	if conv.Channel == "" {
		conv.Channel = crm.ChannelEmail
	}
	if conv.Status == "" {
		conv.Status = crm.ConversationActive
	}
	if conv.LastMessageTime.IsZero() {
		conv.LastMessageTime = time.Now().UTC()
	}
	conv.LeadName, conv.LeadCompany = leadNames(st, conv.LeadID, conv.LeadName, conv.LeadCompany)

	if err := crm.ValidateConversation(conv); err != nil {
		return nil, invalid(err)
	}
	if err := st.AddConversation(conv); err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListConversationsInput contains parameters for the ListConversations operation.
type ListConversationsInput struct {
	Status  crm.ConversationStatus // optional
	Channel crm.Channel            // optional
	LeadID  string                 // optional
}

// ListConversationsOutput contains the result of the ListConversations operation.
type ListConversationsOutput struct {
	Items []crm.Conversation `json:"items"`
	Count int                `json:"count"`
}

// ListConversations returns conversations newest first.
func ListConversations(st *store.Store, input ListConversationsInput) (*ListConversationsOutput, error) {
	if input.Channel != "" && !input.Channel.Valid() {
		return nil, errors.NewInvalidRequest("invalid channel: " + string(input.Channel))
	}
	items := filter(st.Conversations(), func(c crm.Conversation) bool {
		if input.Status != "" && c.Status != input.Status {
			return false
		}
		if input.Channel != "" && c.Channel != input.Channel {
			return false
		}
		return input.LeadID == "" || c.LeadID == input.LeadID
	})
	return &ListConversationsOutput{Items: items, Count: len(items)}, nil
}

// ToggleAIOutput reports the AI-handling flag after a toggle.
type ToggleAIOutput struct {
	ID         string `json:"id"`
	AIHandling bool   `json:"aiHandling"`
}

// ToggleAI flips whether the assistant handles a conversation.
func ToggleAI(st *store.Store, id string) (*ToggleAIOutput, error) {
	id, err := requireID("conversation", id)
	if err != nil {
		return nil, err
	}
	on, err := st.ToggleAIHandling(id)
	if err != nil {
		return nil, err
	}
	return &ToggleAIOutput{ID: id, AIHandling: on}, nil
}

// AddMessageInput contains parameters for the AddMessage operation.
type AddMessageInput struct {
	ConversationID string
	ID             string     // optional
	Sender         crm.Sender // default: user
	Content        string
	Channel        crm.Channel // default: the conversation's channel, else email
	Timestamp      time.Time   // default: now
}

// AddMessage appends a message to a thread. The thread does not need a
// matching conversation.
func AddMessage(st *store.Store, input AddMessageInput) (*crm.Message, error) {
	convID, err := requireID("conversation", input.ConversationID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Content) == "" {
		return nil, errors.NewInvalidRequest("content is required")
	}

	msg := crm.Message{
		ID:             idOrNew(input.ID),
		ConversationID: convID,
		Sender:         input.Sender,
		Content:        input.Content,
		Timestamp:      input.Timestamp,
		Channel:        input.Channel,
	}
	if msg.Sender == "" {
		msg.Sender = crm.SenderUser
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	if msg.Channel == "" {
		msg.Channel = crm.ChannelEmail
		if conv, err := st.Conversation(convID); err == nil {
			msg.Channel = conv.Channel
		}
	}
	if err := crm.ValidateMessage(msg); err != nil {
		return nil, invalid(err)
	}

	st.AddMessage(convID, msg)
	return &msg, nil
}

// ListMessagesOutput contains the result of the ListMessages operation.
type ListMessagesOutput struct {
	ConversationID string        `json:"conversationId"`
	Items          []crm.Message `json:"items"`
	Count          int           `json:"count"`
}

// ListMessages returns one thread in insertion order. Unknown ids give an empty thread.
func ListMessages(st *store.Store, conversationID string) (*ListMessagesOutput, error) {
	id, err := requireID("conversation", conversationID)
	if err != nil {
		return nil, err
	}
	items := st.Messages(id)
	return &ListMessagesOutput{ConversationID: id, Items: items, Count: len(items)}, nil
}

// leadNames fills empty display names from the referenced lead, if any.
func leadNames(st *store.Store, leadID, name, company string) (string, string) {
	if leadID == "" || (name != "" && company != "") {
		return name, company
	}
	l, err := st.Lead(leadID)
	if err != nil {
		return name, company
	}
	if name == "" {
		name = l.ContactPerson
	}
	if company == "" {
		company = l.CompanyName
	}
	return name, company
}
