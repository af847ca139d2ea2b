package source

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hpungsan/tipe/internal/crm"
	"github.com/hpungsan/tipe/internal/errors"
)

// DefaultRemoteTimeout bounds every backend call when RemoteOptions.Timeout is zero.
const DefaultRemoteTimeout = 10 * time.Second

// HTTPClient abstracts HTTP calls for testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// RemoteOptions configures the backend client.
type RemoteOptions struct {
	BaseURL   string
	Industry  string
	UserEmail string
	Timeout   time.Duration
}

// Remote talks to the matchmaking backend over HTTP.
type Remote struct {
	baseURL    string
	industry   string
	userEmail  string
	timeout    time.Duration
	httpClient HTTPClient
	log        zerolog.Logger
}

// NewRemote creates a backend client.
func NewRemote(opts RemoteOptions, log zerolog.Logger) *Remote {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRemoteTimeout
	}
	return &Remote{
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		industry:   opts.Industry,
		userEmail:  opts.UserEmail,
		timeout:    opts.Timeout,
		httpClient: &http.Client{},
		log:        log.With().Str("component", "source.remote").Logger(),
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (r *Remote) SetHTTPClient(hc HTTPClient) {
	r.httpClient = hc
}

func (r *Remote) Name() string { return "remote" }

// FetchLeads returns the industry's importers not yet approved by the user, highest rank first.
func (r *Remote) FetchLeads(ctx context.Context) ([]crm.Lead, error) {
	if strings.TrimSpace(r.industry) == "" {
		return nil, errors.NewInvalidRequest("industry is required for the remote source")
	}
	q := url.Values{"industry": {r.industry}}
	if r.userEmail != "" {
		q.Set("user_email", r.userEmail)
	}

	var records []importerRecord
	if err := r.call(ctx, "fetch leads", http.MethodGet, "/leads?"+q.Encode(), nil, &records); err != nil {
		return nil, wrapUnavailable(ctx, "fetch leads", err)
	}

	leads := make([]crm.Lead, len(records))
	for i, rec := range records {
		leads[i] = reshapeImporter(i, rec)
	}
	cleaned := Clean(leads, r.log)
	r.log.Debug().Int("received", len(records)).Int("kept", len(cleaned)).Msg("fetched leads")
	return cleaned, nil
}

// Approve records an approval for the configured user. A lead the backend already
// holds as approved counts as success.
func (r *Remote) Approve(ctx context.Context, leadID string) error {
	if r.userEmail == "" {
		return errors.NewInvalidRequest("user_email is required to approve upstream")
	}
	body := map[string]string{"user_email": r.userEmail}
	err := r.call(ctx, "approve", http.MethodPost, "/leads/"+url.PathEscape(leadID)+"/approve", body, nil)
	var apiErr *apiError
	if stderrors.As(err, &apiErr) {
		switch {
		case apiErr.status == http.StatusBadRequest && strings.EqualFold(apiErr.detail, "Already approved"):
			return nil
		case apiErr.status == http.StatusNotFound:
			return errors.NewNotFound("lead", leadID)
		}
	}
	if err != nil {
		return wrapUnavailable(ctx, "approve", err)
	}
	return nil
}

// ApprovedLeads returns the user's approvals as recorded by the backend.
func (r *Remote) ApprovedLeads(ctx context.Context) ([]crm.Lead, error) {
	if r.userEmail == "" {
		return nil, errors.NewInvalidRequest("user_email is required to list upstream approvals")
	}
	var records []approvedRecord
	q := url.Values{"user_email": {r.userEmail}}
	if err := r.call(ctx, "approved leads", http.MethodGet, "/approved-leads?"+q.Encode(), nil, &records); err != nil {
		return nil, wrapUnavailable(ctx, "approved leads", err)
	}
	leads := make([]crm.Lead, 0, len(records))
	for _, rec := range records {
		if rec.LeadID == "" {
			continue
		}
		leads = append(leads, reshapeApproved(rec))
	}
	return leads, nil
}

// Chat sends a free-text question to the backend assistant.
func (r *Remote) Chat(ctx context.Context, query string) (string, error) {
	var resp struct {
		Response string `json:"response"`
	}
	if err := r.call(ctx, "chat", http.MethodPost, "/chat", map[string]string{"query": query}, &resp); err != nil {
		return "", wrapUnavailable(ctx, "chat", err)
	}
	return resp.Response, nil
}

// apiError is a non-2xx backend answer.
type apiError struct {
	status int
	detail string
}

func (e *apiError) Error() string {
	if e.detail != "" {
		return fmt.Sprintf("backend returned %d: %s", e.status, e.detail)
	}
	return fmt.Sprintf("backend returned %d", e.status)
}

// call performs one request under the client timeout and decodes the JSON answer into out.
// Transport and decoding failures come back as SOURCE_UNAVAILABLE or CANCELLED errors;
// non-2xx answers come back as *apiError wrapped in SOURCE_UNAVAILABLE.
func (r *Remote) call(ctx context.Context, op, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.NewInternal(err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reader)
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("bad source url: %v", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return wrapUnavailable(ctx, op, err)
	}
	defer resp.Body.Close()

	r.log.Debug().Str("op", op).Int("status", resp.StatusCode).Dur("elapsed", time.Since(start)).Msg("backend call")

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &apiError{status: resp.StatusCode, detail: detailOf(respBody)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.NewSourceUnavailable(r.Name(), fmt.Errorf("decoding %s response: %w", op, err))
	}
	return nil
}

// wrapUnavailable maps a failed call to CANCELLED when the caller gave up,
// otherwise to SOURCE_UNAVAILABLE. Coded errors pass through.
func wrapUnavailable(ctx context.Context, op string, err error) error {
	if _, ok := errors.As(err); ok {
		return err
	}
	if ctx.Err() == context.Canceled {
		return errors.NewCancelled(op)
	}
	return errors.NewSourceUnavailable("remote", err)
}

// detailOf extracts FastAPI's {"detail": "..."} message, falling back to the raw body.
func detailOf(body []byte) string {
	var payload struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != nil {
		if s, ok := payload.Detail.(string); ok {
			return s
		}
		b, _ := json.Marshal(payload.Detail)
		return string(b)
	}
	return strings.TrimSpace(string(body))
}
