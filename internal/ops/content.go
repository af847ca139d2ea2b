package ops

import (
	"strings"
	"time"

	"github.com/hpungsan/tipe/internal/crm"
	"github.com/hpungsan/tipe/internal/errors"
	"github.com/hpungsan/tipe/internal/store"
)

// AddContentPostInput contains parameters for the AddContentPost operation.
type AddContentPostInput struct {
	ID            string // optional
	Content       string // required, markdown
	Status        crm.PostStatus
	ScheduledDate *time.Time
}

// AddContentPost validates and appends a content post. Posts with a scheduled
// date default to scheduled, all others to draft.
func AddContentPost(st *store.Store, input AddContentPostInput) (*crm.ContentPost, error) {
	if strings.TrimSpace(input.Content) == "" {
		return nil, errors.NewInvalidRequest("content is required")
	}

	p := crm.ContentPost{
		ID:            idOrNew(input.ID),
		Content:       input.Content,
		Status:        input.Status,
		ScheduledDate: input.ScheduledDate,
	}
	if p.Status == "" {
		p.Status = crm.PostDraft
		if p.ScheduledDate != nil {
			p.Status = crm.PostScheduled
		}
	}
	if p.Status == crm.PostScheduled && p.ScheduledDate == nil {
		return nil, errors.NewInvalidRequest("scheduled posts need a scheduled date")
	}
	if p.Status == crm.PostPublished {
		now := time.Now().UTC()
		p.PublishedDate = &now
	}

	if err := crm.ValidateContentPost(p); err != nil {
		return nil, invalid(err)
	}
	if err := st.AddContentPost(p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListContentPostsOutput contains the result of the ListContentPosts operation.
type ListContentPostsOutput struct {
	Items []crm.ContentPost `json:"items"`
	Count int               `json:"count"`
}

// ListContentPosts returns posts in store order, optionally filtered by status.
func ListContentPosts(st *store.Store, status crm.PostStatus) (*ListContentPostsOutput, error) {
	if status != "" && !status.Valid() {
		return nil, errors.NewInvalidRequest("invalid post status: " + string(status))
	}
	items := filter(st.ContentPosts(), func(p crm.ContentPost) bool {
		return status == "" || p.Status == status
	})
	return &ListContentPostsOutput{Items: items, Count: len(items)}, nil
}

// UpdateContentPostInput contains parameters for the UpdateContentPost operation.
type UpdateContentPostInput struct {
	ID    string
	Patch crm.ContentPostPatch
}

// UpdateContentPost merges a patch into one post. Publishing a post without
// an explicit published date stamps the current time.
func UpdateContentPost(st *store.Store, input UpdateContentPostInput) (*crm.ContentPost, error) {
	id, err := requireID("content post", input.ID)
	if err != nil {
		return nil, err
	}
	patch := input.Patch
	if patch.Empty() {
		return nil, errors.NewInvalidRequest("at least one field must be provided")
	}
	if err := crm.ValidatePatch(patch); err != nil {
		return nil, invalid(err)
	}
	if patch.Status != nil && *patch.Status == crm.PostPublished && patch.PublishedDate == nil {
		now := time.Now().UTC()
		patch.PublishedDate = &now
	}

	p, err := st.UpdateContentPost(id, patch)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
