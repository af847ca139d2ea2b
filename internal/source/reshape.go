package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/hpungsan/tipe/internal/crm"
)

// number decodes JSON numbers, numeric strings, booleans and null. Anything else is 0.
type number float64

func (n *number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0, bytes.Equal(b, []byte("null")), bytes.Equal(b, []byte("false")):
		*n = 0
	case bytes.Equal(b, []byte("true")):
		*n = 1
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*n = 0
			return nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			f = 0
		}
		*n = number(f)
	default:
		f, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			f = 0
		}
		*n = number(f)
	}
	return nil
}

// text decodes JSON strings and numbers as a string. Anything else is empty.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0, bytes.Equal(b, []byte("null")):
		*t = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = text(s)
	case b[0] == '{' || b[0] == '[':
		*t = ""
	default:
		*t = text(b)
	}
	return nil
}

// importerRecord is one row of the backend's importers collection.
type importerRecord struct {
	ID                  text   `json:"_id"`
	BuyerID             text   `json:"Buyer_ID"`
	Industry            text   `json:"Industry"`
	Country             text   `json:"Country"`
	IntentScore         number `json:"Intent_Score"`
	PromptResponse      number `json:"Prompt_Response"`
	ResponseProbability number `json:"Response_Probability"`
	RevenueSizeUSD      number `json:"Revenue_Size_USD"`
	TeamSize            number `json:"Team_Size"`
	SalesNavVisits      number `json:"SalesNav_ProfileVisits"`
	Rank                number `json:"rank"`
	PreferredChannel    text   `json:"Preferred_Channel"`
	Certification       text   `json:"Certification"`
	TariffNews          number `json:"Tariff_News"`
	FundingEvent        number `json:"Funding_Event"`
	DecisionMakerChange number `json:"DecisionMaker_Change"`
	EngagementSpike     number `json:"Engagement_Spike"`
	HiringGrowth        number `json:"Hiring_Growth"`
	WarEvent            number `json:"War_Event"`
	StockMarketShock    number `json:"StockMarket_Shock"`
	GoodPaymentHistory  number `json:"Good_Payment_History"`
	Status              text   `json:"status"`

	// Present on approved-lead records.
	CompanyName text `json:"company_name"`
	Location    text `json:"location"`
	LowerInd    text `json:"industry"`
}

// approvedRecord is one row of the backend's approved_leads collection.
type approvedRecord struct {
	LeadID   text            `json:"lead_id"`
	LeadData *importerRecord `json:"lead_data"`
}

var visitsPrinter = message.NewPrinter(language.English)

// reshapeImporter turns a raw importer record at position idx into a lead.
func reshapeImporter(idx int, r importerRecord) crm.Lead {
	intent := float64(r.IntentScore)
	prompt := float64(r.PromptResponse)
	respProb := float64(r.ResponseProbability)
	revenue := float64(r.RevenueSizeUSD)
	team := float64(r.TeamSize)
	visits := float64(r.SalesNavVisits)

	var match int
	if r.Rank > 0 {
		match = int(math.Round(float64(r.Rank)))
	} else {
		match = int(math.Round((intent + respProb) / 2 * 100))
		if match == 0 {
			match = 70 + idx%15
		}
	}
	match = min(max(match, 0), 100)

	channel := string(r.PreferredChannel)
	if channel == "" {
		channel = "Email"
	}

	signals := []string{}
	flags := []struct {
		v     number
		label string
	}{
		{r.TariffNews, "Active tariff news exposure"},
		{r.FundingEvent, "Recent funding event"},
		{r.DecisionMakerChange, "Decision-maker change detected"},
		{r.EngagementSpike, "LinkedIn engagement spike"},
		{r.HiringGrowth, "Company is hiring"},
		{r.WarEvent, "Geo-political risk flagged"},
		{r.StockMarketShock, "Stock market sensitivity"},
		{r.GoodPaymentHistory, "Good payment history verified"},
	}
	for _, f := range flags {
		if f.v == 1 {
			signals = append(signals, f.label)
		}
	}
	if visits > 5000 {
		signals = append(signals, visitsPrinter.Sprintf("%d SalesNav profile visits", int64(visits)))
	}
	if len(signals) == 0 {
		signals = append(signals, "Consistent trade engagement")
	}

	reasoning := []string{
		channel + " is the preferred outreach channel.",
		fmt.Sprintf("Response probability: %d%%.", int(math.Round(respProb*100))),
		fmt.Sprintf("Prompt response rate: %d%%.", int(math.Round(prompt*100))),
	}
	if r.Certification != "" {
		reasoning = append(reasoning, fmt.Sprintf("Certified: %s.", r.Certification))
	}
	if r.GoodPaymentHistory == 1 {
		reasoning = append(reasoning, "Has a strong payment record.")
	}

	l := crm.Lead{
		ID:                 string(r.ID),
		CompanyName:        fallback(string(r.BuyerID), fmt.Sprintf("Buyer #%d", idx+1)),
		Industry:           fallback(string(r.Industry), "General Trade"),
		Location:           fallback(string(r.Country), "Global"),
		VectorScore:        nonZero(intent, 0.7+float64(idx%10)*0.02),
		IntentScore:        nonZero(intent, 0.65+float64(idx%12)*0.02),
		TradeMomentumIndex: nonZero(respProb, 0.55+float64(idx%8)*0.03),
		MatchPercentage:    match,
		CompanySize:        strconv.Itoa(100 + idx*17),
		EstimatedValue:     formatRevenue(revenue, idx),
		TrustVerified:      r.GoodPaymentHistory == 1,
		AIReasoning:        strings.Join(reasoning, " "),
		OutreachTemplate:   "Reach via " + channel,
		Status:             crm.LeadPending,
		Signals:            signals,
	}
	if team > 0 {
		l.CompanySize = strconv.FormatFloat(team, 'f', -1, 64)
	}
	if r.Certification != "" {
		l.FirmographicsHash = "Cert: " + string(r.Certification)
	}
	if st := crm.LeadStatus(r.Status); st.Valid() {
		l.Status = st
	}
	return l
}

// reshapeApproved turns an approved-lead record into an approved lead.
// Scores are not carried by the backend for approved records and stay zero.
func reshapeApproved(r approvedRecord) crm.Lead {
	data := importerRecord{}
	if r.LeadData != nil {
		data = *r.LeadData
	}
	id := string(r.LeadID)
	return crm.Lead{
		ID:          id,
		CompanyName: fallback(string(data.BuyerID), fallback(string(data.CompanyName), id)),
		Industry:    fallback(string(data.Industry), string(data.LowerInd)),
		Location:    fallback(string(data.Country), string(data.Location)),
		Status:      crm.LeadApproved,
	}
}

// formatRevenue renders USD revenue as $78.5M or $500K, with a positional fallback.
func formatRevenue(usd float64, idx int) string {
	switch {
	case usd >= 1_000_000:
		return fmt.Sprintf("$%.1fM", usd/1_000_000)
	case usd > 0:
		return fmt.Sprintf("$%.0fK", usd/1_000)
	default:
		return fmt.Sprintf("$%dK", 40+idx%200)
	}
}

func fallback(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func nonZero(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}
