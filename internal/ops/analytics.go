package ops

import (
	"cmp"
	"math"
	"slices"
	"strings"

	"github.com/hpungsan/tipe/internal/crm"
	"github.com/hpungsan/tipe/internal/store"
)

// HighIntentThreshold is the intent score at which a lead counts as high intent.
const HighIntentThreshold = 0.7

// MaxTopLocations caps the location ranking in Analytics.
const MaxTopLocations = 5

// Pipeline counts leads and meetings at each funnel stage.
type Pipeline struct {
	Pending   int `json:"pending"`
	Approved  int `json:"approved"`
	Meetings  int `json:"meetings"`
	Converted int `json:"converted"`
}

// MatchBucket is one bar of the match-percentage histogram.
type MatchBucket struct {
	Range string `json:"range"`
	Min   int    `json:"min"`
	Max   int    `json:"max"`
	Count int    `json:"count"`
}

// LocationIntent ranks a location by the mean intent of its leads.
type LocationIntent struct {
	Location   string  `json:"location"`
	Leads      int     `json:"leads"`
	MeanIntent float64 `json:"mean_intent"`
}

// AnalyticsOutput is the pipeline summary.
type AnalyticsOutput struct {
	TotalLeads      int              `json:"total_leads"`
	Stats           crm.Stats        `json:"stats"`
	Pipeline        Pipeline         `json:"pipeline"`
	MatchHistogram  []MatchBucket    `json:"match_histogram"`
	TopLocations    []LocationIntent `json:"top_locations"`
	MeanIntent      float64          `json:"mean_intent"`
	HighIntentLeads int              `json:"high_intent_leads"`
}

// matchBuckets are inclusive ranges; leads below 60% fall outside every bucket.
var matchBuckets = []MatchBucket{
	{Range: "90-100%", Min: 90, Max: 100},
	{Range: "80-89%", Min: 80, Max: 89},
	{Range: "70-79%", Min: 70, Max: 79},
	{Range: "60-69%", Min: 60, Max: 69},
}

// Analytics summarizes the current leads and meetings.
func Analytics(st *store.Store) *AnalyticsOutput {
	snap := st.Snapshot()
	out := &AnalyticsOutput{
		TotalLeads:     len(snap.Leads),
		Stats:          snap.Stats,
		MatchHistogram: slices.Clone(matchBuckets),
		TopLocations:   []LocationIntent{},
	}

	type agg struct {
		label string
		n     int
		sum   float64
	}
	byLocation := map[string]*agg{}
	var intentSum float64

	for _, l := range snap.Leads {
		switch l.Status {
		case crm.LeadPending:
			out.Pipeline.Pending++
		case crm.LeadApproved:
			out.Pipeline.Approved++
		}
		for i := range out.MatchHistogram {
			b := &out.MatchHistogram[i]
			if l.MatchPercentage >= b.Min && l.MatchPercentage <= b.Max {
				b.Count++
				break
			}
		}
		intentSum += l.IntentScore
		if l.IntentScore >= HighIntentThreshold {
			out.HighIntentLeads++
		}

		key := crm.Normalize(l.Location)
		if key == "" {
			continue
		}
		a, ok := byLocation[key]
		if !ok {
			a = &agg{label: strings.TrimSpace(l.Location)}
			byLocation[key] = a
		}
		a.n++
		a.sum += l.IntentScore
	}

	for _, m := range snap.Meetings {
		switch m.Status {
		case crm.MeetingScheduled:
			out.Pipeline.Meetings++
		case crm.MeetingCompleted:
			out.Pipeline.Converted++
		}
	}

	if len(snap.Leads) > 0 {
		out.MeanIntent = round2(intentSum / float64(len(snap.Leads)))
	}

	for _, a := range byLocation {
		out.TopLocations = append(out.TopLocations, LocationIntent{
			Location:   a.label,
			Leads:      a.n,
			MeanIntent: round2(a.sum / float64(a.n)),
		})
	}
	slices.SortFunc(out.TopLocations, func(a, b LocationIntent) int {
		if c := cmp.Compare(b.MeanIntent, a.MeanIntent); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Leads, a.Leads); c != 0 {
			return c
		}
		return cmp.Compare(a.Location, b.Location)
	})
	if len(out.TopLocations) > MaxTopLocations {
		out.TopLocations = out.TopLocations[:MaxTopLocations]
	}
	return out
}

// StatsOutput wraps the derived stats with the store version they belong to.
type StatsOutput struct {
	Stats   crm.Stats `json:"stats"`
	Version uint64    `json:"version"`
}

// GetStats returns the current stats without recomputing them.
func GetStats(st *store.Store) *StatsOutput {
	return &StatsOutput{Stats: st.Stats(), Version: st.Version()}
}

// RefreshStats forces a full recompute.
func RefreshStats(st *store.Store) *StatsOutput {
	s := st.UpdateStats()
	return &StatsOutput{Stats: s, Version: st.Version()}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
