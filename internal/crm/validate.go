package crm

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func v() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateLead checks score ranges, status and contact fields.
func ValidateLead(l Lead) error {
	return check("lead", v().Struct(l))
}

// ValidateConversation checks channel, status and counters.
func ValidateConversation(c Conversation) error {
	return check("conversation", v().Struct(c))
}

// ValidateMessage checks sender and channel.
func ValidateMessage(m Message) error {
	return check("message", v().Struct(m))
}

// ValidateMeeting checks title, date, duration, status and link.
func ValidateMeeting(m Meeting) error {
	return check("meeting", v().Struct(m))
}

// ValidateContentPost checks status and engagement counters.
func ValidateContentPost(p ContentPost) error {
	return check("content post", v().Struct(p))
}

// ValidatePatch checks the fields a content post patch sets.
func ValidatePatch(p ContentPostPatch) error {
	return check("content post patch", v().Struct(p))
}

// check flattens validator output into one readable error.
func check(kind string, err error) error {
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("%s: %w", kind, err)
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("invalid %s: %s", kind, strings.Join(parts, "; "))
}
