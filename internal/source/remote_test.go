package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/tipe/internal/crm"
	"github.com/hpungsan/tipe/internal/errors"
)

const importersJSON = `[
  {
    "_id": "65f0a1",
    "Buyer_ID": "BUY-2231",
    "Industry": "Textiles",
    "Country": "Germany",
    "Intent_Score": "0.82",
    "Prompt_Response": 0.4,
    "Response_Probability": 0.66,
    "Revenue_Size_USD": 78500000,
    "Team_Size": 120,
    "SalesNav_ProfileVisits": 12345,
    "rank": 97.6,
    "Preferred_Channel": "LinkedIn",
    "Certification": "ISO 9001",
    "Funding_Event": 1,
    "Good_Payment_History": 1
  },
  {
    "_id": "65f0a2",
    "Industry": null,
    "Intent_Score": null,
    "Response_Probability": "n/a",
    "Revenue_Size_USD": 500000
  },
  {
    "_id": "65f0a3",
    "Buyer_ID": 4417,
    "Intent_Score": 3.5
  }
]`

func newTestRemote(t *testing.T, h http.HandlerFunc, opts RemoteOptions) *Remote {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts.BaseURL = srv.URL + "/"
	return NewRemote(opts, zerolog.Nop())
}

func TestRemote_FetchLeads(t *testing.T) {
	var gotQuery string
	r := newTestRemote(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/leads", req.URL.Path)
		gotQuery = req.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(importersJSON))
	}, RemoteOptions{Industry: "Textiles", UserEmail: "ana@example.com"})

	leads, err := r.FetchLeads(context.Background())
	require.NoError(t, err)
	assert.Contains(t, gotQuery, "industry=Textiles")
	assert.Contains(t, gotQuery, "user_email=ana%40example.com")

	// The third record has an out-of-range intent score and is dropped.
	require.Len(t, leads, 2)

	first := leads[0]
	assert.Equal(t, "65f0a1", first.ID)
	assert.Equal(t, "BUY-2231", first.CompanyName)
	assert.Equal(t, "Germany", first.Location)
	assert.Equal(t, 98, first.MatchPercentage)
	assert.Equal(t, 0.82, first.IntentScore)
	assert.Equal(t, 0.82, first.VectorScore)
	assert.Equal(t, 0.66, first.TradeMomentumIndex)
	assert.Equal(t, "$78.5M", first.EstimatedValue)
	assert.Equal(t, "120", first.CompanySize)
	assert.True(t, first.TrustVerified)
	assert.Equal(t, "Cert: ISO 9001", first.FirmographicsHash)
	assert.Equal(t, "Reach via LinkedIn", first.OutreachTemplate)
	assert.Equal(t, []string{
		"Recent funding event",
		"Good payment history verified",
		"12,345 SalesNav profile visits",
	}, first.Signals)
	assert.Equal(t, "LinkedIn is the preferred outreach channel. Response probability: 66%. Prompt response rate: 40%. Certified: ISO 9001. Has a strong payment record.", first.AIReasoning)
	assert.Equal(t, crm.LeadPending, first.Status)

	second := leads[1]
	assert.Equal(t, "Buyer #2", second.CompanyName)
	assert.Equal(t, "General Trade", second.Industry)
	assert.Equal(t, "Global", second.Location)
	assert.Equal(t, 71, second.MatchPercentage)
	assert.Equal(t, "$500K", second.EstimatedValue)
	assert.Equal(t, "117", second.CompanySize)
	assert.InDelta(t, 0.72, second.VectorScore, 1e-9)
	assert.InDelta(t, 0.67, second.IntentScore, 1e-9)
	assert.InDelta(t, 0.58, second.TradeMomentumIndex, 1e-9)
	assert.Equal(t, []string{"Consistent trade engagement"}, second.Signals)
}

func TestRemote_FetchLeadsRequiresIndustry(t *testing.T) {
	r := NewRemote(RemoteOptions{BaseURL: "http://127.0.0.1:1"}, zerolog.Nop())
	_, err := r.FetchLeads(context.Background())
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestRemote_FetchLeadsNotAList(t *testing.T) {
	r := newTestRemote(t, func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(`{"detail": "oops"}`))
	}, RemoteOptions{Industry: "Textiles"})

	_, err := r.FetchLeads(context.Background())
	assert.True(t, errors.Is(err, errors.ErrSourceUnavailable))
}

func TestRemote_FetchLeadsServerError(t *testing.T) {
	r := newTestRemote(t, func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, `{"detail": "Industry required"}`, http.StatusBadRequest)
	}, RemoteOptions{Industry: "Textiles"})

	_, err := r.FetchLeads(context.Background())
	require.True(t, errors.Is(err, errors.ErrSourceUnavailable))
	assert.Contains(t, err.Error(), "Industry required")
}

func TestRemote_Timeout(t *testing.T) {
	r := newTestRemote(t, func(w http.ResponseWriter, req *http.Request) {
		select {
		case <-req.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, RemoteOptions{Industry: "Textiles", Timeout: 50 * time.Millisecond})

	start := time.Now()
	_, err := r.FetchLeads(context.Background())
	assert.True(t, errors.Is(err, errors.ErrSourceUnavailable))
	assert.Less(t, time.Since(start), time.Second)
}

func TestRemote_Cancelled(t *testing.T) {
	r := newTestRemote(t, func(w http.ResponseWriter, req *http.Request) {
		<-req.Context().Done()
	}, RemoteOptions{Industry: "Textiles"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.FetchLeads(ctx)
	assert.True(t, errors.Is(err, errors.ErrCancelled))
}

func TestRemote_Approve(t *testing.T) {
	calls := 0
	r := newTestRemote(t, func(w http.ResponseWriter, req *http.Request) {
		calls++
		assert.Equal(t, http.MethodPost, req.Method)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		assert.Equal(t, "ana@example.com", body["user_email"])

		switch req.URL.Path {
		case "/leads/new/approve":
			_, _ = w.Write([]byte(`{"message": "Lead approved successfully"}`))
		case "/leads/dup/approve":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"detail": "Already approved"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail": "Lead not found"}`))
		}
	}, RemoteOptions{UserEmail: "ana@example.com"})

	ctx := context.Background()
	assert.NoError(t, r.Approve(ctx, "new"))
	assert.NoError(t, r.Approve(ctx, "dup"))
	assert.True(t, errors.Is(r.Approve(ctx, "gone"), errors.ErrNotFound))
	assert.Equal(t, 3, calls)
}

func TestRemote_ApproveNeedsEmail(t *testing.T) {
	r := NewRemote(RemoteOptions{BaseURL: "http://127.0.0.1:1"}, zerolog.Nop())
	assert.True(t, errors.Is(r.Approve(context.Background(), "x"), errors.ErrInvalidRequest))
}

func TestRemote_ApprovedLeads(t *testing.T) {
	r := newTestRemote(t, func(w http.ResponseWriter, req *http.Request) {
		assert.Equal(t, "/approved-leads", req.URL.Path)
		_, _ = w.Write([]byte(`[
		  {"lead_id": "65f0a1", "lead_data": {"Buyer_ID": "BUY-2231", "Industry": "Textiles", "Country": "Germany"}},
		  {"lead_id": "65f0a9", "lead_data": {"company_name": "Acme", "industry": "Food"}},
		  {"lead_id": "65f0b0"},
		  {"status": "approved"}
		]`))
	}, RemoteOptions{UserEmail: "ana@example.com"})

	leads, err := r.ApprovedLeads(context.Background())
	require.NoError(t, err)
	require.Len(t, leads, 3)
	assert.Equal(t, "BUY-2231", leads[0].CompanyName)
	assert.Equal(t, "Germany", leads[0].Location)
	assert.Equal(t, "Acme", leads[1].CompanyName)
	assert.Equal(t, "Food", leads[1].Industry)
	assert.Equal(t, "65f0b0", leads[2].CompanyName)
	for _, l := range leads {
		assert.Equal(t, crm.LeadApproved, l.Status)
	}
}

func TestRemote_Chat(t *testing.T) {
	r := newTestRemote(t, func(w http.ResponseWriter, req *http.Request) {
		var body map[string]string
		assert.NoError(t, json.NewDecoder(req.Body).Decode(&body))
		_ = json.NewEncoder(w).Encode(map[string]string{"response": "echo: " + body["query"]})
	}, RemoteOptions{})

	reply, err := r.Chat(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", reply)
}

func TestFormatRevenue(t *testing.T) {
	tests := []struct {
		usd  float64
		idx  int
		want string
	}{
		{78_500_000, 0, "$78.5M"},
		{1_000_000, 0, "$1.0M"},
		{500_000, 0, "$500K"},
		{0, 3, "$43K"},
		{0, 205, "$45K"},
	}
	for _, tt := range tests {
		if got := formatRevenue(tt.usd, tt.idx); got != tt.want {
			t.Errorf("formatRevenue(%v, %d) = %q, want %q", tt.usd, tt.idx, got, tt.want)
		}
	}
}

func TestNumberDecoding(t *testing.T) {
	var rec struct {
		A, B, C, D, E, F number
	}
	err := json.Unmarshal([]byte(`{"A": 1.5, "B": "2.25", "C": null, "D": "abc", "E": true, "F": {"x": 1}}`), &rec)
	require.NoError(t, err)
	assert.Equal(t, number(1.5), rec.A)
	assert.Equal(t, number(2.25), rec.B)
	assert.Equal(t, number(0), rec.C)
	assert.Equal(t, number(0), rec.D)
	assert.Equal(t, number(1), rec.E)
	assert.Equal(t, number(0), rec.F)
}
