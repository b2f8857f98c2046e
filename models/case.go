package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CaseStatus is the lifecycle state of a case
type CaseStatus string

// Case statuses
const (
	StatusActive    CaseStatus = "active"
	StatusFound     CaseStatus = "found"
	StatusClosed    CaseStatus = "closed"
	StatusDismissed CaseStatus = "dismissed"
)

// Priority of a case
type Priority string

// Priorities
const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Category of a case
type Category string

// Categories
const (
	CategoryMissingPerson Category = "missing-person"
	CategoryRunaway       Category = "runaway"
	CategoryOther         Category = "other"
)

// Gender of the missing person
type Gender string

// Genders
const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// Case holds the structure for the cases collection in mongo
type Case struct {
	ID                primitive.ObjectID `json:"_id" bson:"_id"`
	CaseNumber        string             `json:"caseNumber" bson:"caseNumber"`
	Title             string             `json:"title,omitempty" bson:"title,omitempty"`
	Description       string             `json:"description" bson:"description"`
	MissingPerson     MissingPerson      `json:"missingPerson" bson:"missingPerson"`
	LastKnownLocation Location           `json:"lastKnownLocation" bson:"lastKnownLocation"`
	LastSeenDate      time.Time          `json:"lastSeenDate" bson:"lastSeenDate"`
	LastSeenTime      string             `json:"lastSeenTime" bson:"lastSeenTime"`
	Circumstances     string             `json:"circumstances" bson:"circumstances"`
	ContactInfo       ContactInfo        `json:"contactInfo" bson:"contactInfo"`
	Status            CaseStatus         `json:"status" bson:"status"`
	Priority          Priority           `json:"priority" bson:"priority"`
	Category          Category           `json:"category" bson:"category"`
	ReportedBy        primitive.ObjectID `json:"reportedBy" bson:"reportedBy"`
	Notes             []Note             `json:"notes" bson:"notes"`
	IsPublic          bool               `json:"isPublic" bson:"isPublic"`
	IsActive          bool               `json:"isActive" bson:"isActive"`
	CreatedAt         time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// MissingPerson describes the person a case is about
type MissingPerson struct {
	Name                   string  `json:"name" bson:"name"`
	Age                    int     `json:"age" bson:"age"`
	Gender                 Gender  `json:"gender" bson:"gender"`
	Height                 string  `json:"height" bson:"height"`
	Weight                 string  `json:"weight" bson:"weight"`
	HairColor              string  `json:"hairColor" bson:"hairColor"`
	EyeColor               string  `json:"eyeColor" bson:"eyeColor"`
	DistinguishingFeatures string  `json:"distinguishingFeatures" bson:"distinguishingFeatures"`
	LastSeenClothing       string  `json:"lastSeenClothing" bson:"lastSeenClothing"`
	Photos                 []Photo `json:"photos" bson:"photos"`
}

// Photo is an image hosted by the image host
type Photo struct {
	URL         string `json:"url" bson:"url"`
	Description string `json:"description" bson:"description"`
	IsPrimary   bool   `json:"isPrimary" bson:"isPrimary"`
}

// Location is the last known whereabouts
type Location struct {
	Address string `json:"address" bson:"address"`
	City    string `json:"city" bson:"city"`
	State   string `json:"state" bson:"state"`
	Country string `json:"country" bson:"country"`
	ZipCode string `json:"zipCode" bson:"zipCode"`
}

// ContactInfo holds who to call about the case
type ContactInfo struct {
	PrimaryContact Contact `json:"primaryContact" bson:"primaryContact"`
}

// Contact is a person reachable about the case
type Contact struct {
	Name         string `json:"name" bson:"name"`
	Relationship string `json:"relationship" bson:"relationship"`
	Phone        string `json:"phone" bson:"phone"`
	Email        string `json:"email" bson:"email"`
}

// Note is an append-only audit entry on a case
type Note struct {
	Content  string             `json:"content" bson:"content"`
	AddedBy  primitive.ObjectID `json:"addedBy" bson:"addedBy"`
	AddedAt  time.Time          `json:"addedAt" bson:"addedAt"`
	IsPublic bool               `json:"isPublic" bson:"isPublic"`
}

// PublicView returns a copy of the case without its private notes.
func (c Case) PublicView() Case {
	notes := make([]Note, 0, len(c.Notes))
	for _, n := range c.Notes {
		if n.IsPublic {
			notes = append(notes, n)
		}
	}
	c.Notes = notes
	return c
}

// CaseInput is the body accepted when reporting a new case. Each section of the
// client form fills one nested struct.
type CaseInput struct {
	Title             string             `json:"title"`
	Description       string             `json:"description"`
	MissingPerson     MissingPersonInput `json:"missingPerson"`
	LastKnownLocation Location           `json:"lastKnownLocation"`
	LastSeenDate      string             `json:"lastSeenDate"`
	LastSeenTime      string             `json:"lastSeenTime"`
	LastSeenClothing  string             `json:"lastSeenClothing"`
	Circumstances     string             `json:"circumstances"`
	ContactInfo       ContactInfo        `json:"contactInfo"`
	Priority          string             `json:"priority"`
	Category          string             `json:"category"`
}

// MissingPersonInput is the missing person section of CaseInput
type MissingPersonInput struct {
	Name                   string       `json:"name"`
	Age                    FlexibleInt  `json:"age"`
	Gender                 string       `json:"gender"`
	Height                 string       `json:"height"`
	Weight                 string       `json:"weight"`
	HairColor              string       `json:"hairColor"`
	EyeColor               string       `json:"eyeColor"`
	DistinguishingFeatures string       `json:"distinguishingFeatures"`
	Photos                 []Photo      `json:"photos"`
}

// FlexibleInt is an optional integer that decodes from either a JSON number or a
// numeric string, since form clients post ages as strings. Null, a missing key and a
// blank string leave it unset. Text that is not a whole number sets it but marks it
// invalid, so validation can name the field instead of rejecting the whole body.
type FlexibleInt struct {
	Value   int
	Set     bool
	Invalid bool
}

// IntValue returns a set FlexibleInt holding n
func IntValue(n int) FlexibleInt {
	return FlexibleInt{Value: n, Set: true}
}

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexibleInt) UnmarshalJSON(b []byte) error {
	*f = FlexibleInt{}
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	raw := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return nil
		}
	}
	f.Set = true
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil || n != math.Trunc(n) || math.Abs(n) > math.MaxInt32 {
		f.Invalid = true
		return nil
	}
	f.Value = int(n)
	return nil
}

// MarshalJSON writes the value, or null when unset
func (f FlexibleInt) MarshalJSON() ([]byte, error) {
	if !f.Set || f.Invalid {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(f.Value)), nil
}

// StatusUpdateRequest is the body of PUT /cases/{id}/status
type StatusUpdateRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

// CaseFilter selects cases in the persistence layer
type CaseFilter struct {
	ReportedBy    *primitive.ObjectID
	Status        CaseStatus
	ExcludeStatus CaseStatus
	PublicOnly    bool
	ActiveOnly    bool
	Search        string
	CreatedSince  time.Time
}

// CaseSort orders query results
type CaseSort struct {
	Field      string
	Descending bool
}

// NewestFirst sorts by creation time, most recent first
var NewestFirst = CaseSort{Field: "createdAt", Descending: true}

// PageWindow is an offset/limit window. A zero Limit means no limit.
type PageWindow struct {
	Skip  int64
	Limit int64
}

// Pagination is returned alongside paged lists
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

// CasePage is one page of public cases
type CasePage struct {
	Cases      []Case     `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// CaseStats summarises the public case counts
type CaseStats struct {
	ActiveCases int64   `json:"activeCases"`
	FoundCases  int64   `json:"foundCases"`
	ClosedCases int64   `json:"closedCases"`
	TotalCases  int64   `json:"totalCases"`
	RecentCases int64   `json:"recentCases"`
	SuccessRate float64 `json:"successRate"`
}

// OwnerStats summarises the cases one user reported
type OwnerStats struct {
	TotalCases  int64   `json:"totalCases"`
	ActiveCases int64   `json:"activeCases"`
	FoundCases  int64   `json:"foundCases"`
	ClosedCases int64   `json:"closedCases"`
	SuccessRate float64 `json:"successRate"`
}
