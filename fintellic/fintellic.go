package fintellic

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// comparable
type Id [16]byte

func NewId() Id {
	return Id(ulid.Make())
}

func IdFromBytes(idBytes []byte) (Id, error) {
	if len(idBytes) != 16 {
		return Id{}, errors.New("Id must be 16 bytes")
	}
	return Id(idBytes), nil
}

func RequireIdFromBytes(idBytes []byte) Id {
	id, err := IdFromBytes(idBytes)
	if err != nil {
		panic(err)
	}
	return id
}

func ParseId(idStr string) (Id, error) {
	return parseUuid(idStr)
}

func RequireParseId(idStr string) Id {
	id, err := ParseId(idStr)
	if err != nil {
		panic(err)
	}
	return id
}

func (self Id) Bytes() []byte {
	return self[0:16]
}

func (self Id) String() string {
	return encodeUuid(self)
}

func (self *Id) MarshalJSON() ([]byte, error) {
	var buf [16]byte
	copy(buf[0:16], self[0:16])
	var buff bytes.Buffer
	buff.WriteByte('"')
	buff.WriteString(encodeUuid(buf))
	buff.WriteByte('"')
	b := buff.Bytes()
	return b, nil
}

func (self *Id) UnmarshalJSON(src []byte) error {
	if len(src) != 38 {
		return fmt.Errorf("invalid length for UUID: %v", len(src))
	}
	buf, err := parseUuid(string(src[1 : len(src)-1]))
	if err != nil {
		return err
	}
	*self = buf
	return nil
}

func parseUuid(src string) (dst [16]byte, err error) {
	switch len(src) {
	case 36:
		src = src[0:8] + src[9:13] + src[14:18] + src[19:23] + src[24:]
	case 32:
		// dashes already stripped, assume valid
	default:
		// assume invalid.
		return dst, fmt.Errorf("cannot parse UUID %v", src)
	}

	buf, err := hex.DecodeString(src)
	if err != nil {
		return dst, err
	}

	copy(dst[:], buf)
	return dst, err
}

func encodeUuid(src [16]byte) string {
	return fmt.Sprintf("%x-%x-%x-%x-%x", src[0:4], src[4:6], src[6:8], src[8:10], src[10:16])
}

type VoteType string

const (
	VoteNone    VoteType = "none"
	VoteBullish VoteType = "bullish"
	VoteNeutral VoteType = "neutral"
	VoteBearish VoteType = "bearish"
)

type FilingType string

const (
	FilingType10K FilingType = "10-K"
	FilingType10Q FilingType = "10-Q"
	FilingType8K  FilingType = "8-K"
	FilingTypeS1  FilingType = "S-1"
)

type VoteCounts struct {
	Bullish int `json:"bullish"`
	Neutral int `json:"neutral"`
	Bearish int `json:"bearish"`
}

// the server owns every field.
// `VoteCounts` and `CallerVote` are the only fields a client write may change
// locally, and only after server confirmation. see `FilingRegistry`.
type FilingSummary struct {
	FilingId    Id         `json:"filing_id"`
	Ticker      string     `json:"ticker"`
	CompanyName string     `json:"company_name"`
	FilingType  FilingType `json:"filing_type"`
	PublishedAt time.Time  `json:"published_at"`
	OneLiner    string     `json:"one_liner,omitempty"`
	VoteCounts  VoteCounts `json:"vote_counts"`
	CallerVote  VoteType   `json:"caller_vote"`
}

// per filing type analysis sections. only the section matching
// `FilingType` is populated by the server.
type FilingDetail struct {
	FilingSummary
	TenK   *TenKAnalysis   `json:"ten_k,omitempty"`
	TenQ   *TenQAnalysis   `json:"ten_q,omitempty"`
	EightK *EightKAnalysis `json:"eight_k,omitempty"`
	SOne   *SOneAnalysis   `json:"s_one,omitempty"`
}

type TenKAnalysis struct {
	AuditorOpinion       string   `json:"auditor_opinion,omitempty"`
	BusinessSegments     []string `json:"business_segments,omitempty"`
	GrowthDrivers        string   `json:"growth_drivers,omitempty"`
	ManagementOutlook    string   `json:"management_outlook,omitempty"`
	MarketImpact         string   `json:"market_impact_10k,omitempty"`
	RiskSummary          string   `json:"risk_summary,omitempty"`
	StrategicAdjustments string   `json:"strategic_adjustments,omitempty"`
	ThreeYearFinancials  string   `json:"three_year_financials,omitempty"`
}

type TenQAnalysis struct {
	BeatMissAnalysis       string `json:"beat_miss_analysis,omitempty"`
	CostStructure          string `json:"cost_structure,omitempty"`
	ExpectationsComparison string `json:"expectations_comparison,omitempty"`
	GrowthDeclineAnalysis  string `json:"growth_decline_analysis,omitempty"`
	GuidanceUpdate         string `json:"guidance_update,omitempty"`
	ManagementToneAnalysis string `json:"management_tone_analysis,omitempty"`
	MarketImpact           string `json:"market_impact_10q,omitempty"`
}

type EightKAnalysis struct {
	EventNatureAnalysis  string   `json:"event_nature_analysis,omitempty"`
	EventTimeline        string   `json:"event_timeline,omitempty"`
	ItemType             string   `json:"item_type,omitempty"`
	Items                []string `json:"items,omitempty"`
	KeyConsiderations    string   `json:"key_considerations,omitempty"`
	MarketImpactAnalysis string   `json:"market_impact_analysis,omitempty"`
}

type SOneAnalysis struct {
	CompanyOverview         string   `json:"company_overview,omitempty"`
	CompetitiveMoatAnalysis string   `json:"competitive_moat_analysis,omitempty"`
	FinancialSummary        string   `json:"financial_summary,omitempty"`
	GrowthPathAnalysis      string   `json:"growth_path_analysis,omitempty"`
	IpoDetails              string   `json:"ipo_details,omitempty"`
	RiskCategories          []string `json:"risk_categories,omitempty"`
}
