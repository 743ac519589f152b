package types

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SubjectType differentiates what is being verified.
type SubjectType string

const (
	SubjectListing  SubjectType = "listing"
	SubjectBroker   SubjectType = "broker"
	SubjectProperty SubjectType = "property"
)

// ParseSubjectType normalizes a user supplied subject name.
func ParseSubjectType(raw string) (SubjectType, bool) {
	switch SubjectType(strings.ToLower(strings.TrimSpace(raw))) {
	case SubjectListing:
		return SubjectListing, true
	case SubjectBroker:
		return SubjectBroker, true
	case SubjectProperty:
		return SubjectProperty, true
	}
	return "", false
}

// MediaKind tags a media reference.
type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaDocument MediaKind = "document"
)

// MediaRef points at a photo or scanned document. Data, when present, holds the
// inline bytes and no download is performed.
type MediaRef struct {
	URL      string    `json:"url" validate:"omitempty,url"`
	Kind     MediaKind `json:"kind,omitempty" validate:"omitempty,oneof=image document"`
	MIMEType string    `json:"mime_type,omitempty"`
	Caption  string    `json:"caption,omitempty" validate:"max=500"`
	Data     []byte    `json:"data,omitempty"`
}

// Listing is a property advertisement submitted by a broker or owner.
type Listing struct {
	Title        string          `json:"title" validate:"required,max=200"`
	Description  string          `json:"description" validate:"required,max=20000"`
	Price        decimal.Decimal `json:"price"`
	Currency     string          `json:"currency,omitempty" validate:"omitempty,len=3"`
	AreaSqft     float64         `json:"area_sqft"`
	Bedrooms     int             `json:"bedrooms"`
	Bathrooms    int             `json:"bathrooms"`
	PropertyType string          `json:"property_type,omitempty" validate:"max=64"`
	City         string          `json:"city,omitempty" validate:"max=128"`
	Address      string          `json:"address,omitempty" validate:"max=500"`
	ContactPhone string          `json:"contact_phone,omitempty" validate:"max=32"`
	Images       []MediaRef      `json:"images,omitempty" validate:"max=20,dive"`
	Documents    []MediaRef      `json:"documents,omitempty" validate:"max=10,dive"`
}

// Broker is an agent registering on the platform.
type Broker struct {
	FullName      string     `json:"full_name" validate:"required,max=200"`
	AgencyName    string     `json:"agency_name,omitempty" validate:"max=200"`
	LicenseNumber string     `json:"license_number" validate:"required,max=64"`
	Phone         string     `json:"phone,omitempty" validate:"max=32"`
	Email         string     `json:"email,omitempty" validate:"omitempty,email"`
	Bio           string     `json:"bio,omitempty" validate:"max=5000"`
	Documents     []MediaRef `json:"documents,omitempty" validate:"max=10,dive"`
	Photo         *MediaRef  `json:"photo,omitempty"`
}

// Property is an ownership record for a plot or unit.
type Property struct {
	Title              string     `json:"title,omitempty" validate:"max=200"`
	OwnerName          string     `json:"owner_name" validate:"required,max=200"`
	Address            string     `json:"address" validate:"required,max=500"`
	City               string     `json:"city,omitempty" validate:"max=128"`
	AreaSqft           float64    `json:"area_sqft"`
	PlotNumber         string     `json:"plot_number,omitempty" validate:"max=64"`
	RegistrationNumber string     `json:"registration_number,omitempty" validate:"max=64"`
	Description        string     `json:"description,omitempty" validate:"max=20000"`
	Documents          []MediaRef `json:"documents,omitempty" validate:"max=10,dive"`
	Images             []MediaRef `json:"images,omitempty" validate:"max=20,dive"`
}

// Request carries everything the checks need; nothing is looked up elsewhere.
// It is treated as immutable once handed to the orchestrator.
type Request struct {
	ID          string      `json:"id" validate:"required,max=128"`
	SubjectType SubjectType `json:"subject_type" validate:"required,oneof=listing broker property"`
	Listing     *Listing    `json:"listing,omitempty"`
	Broker      *Broker     `json:"broker,omitempty"`
	Property    *Property   `json:"property,omitempty"`
}

// Images returns the image references relevant to the subject.
func (r Request) Images() []MediaRef {
	switch r.SubjectType {
	case SubjectListing:
		if r.Listing != nil {
			return r.Listing.Images
		}
	case SubjectBroker:
		if r.Broker != nil && r.Broker.Photo != nil {
			return []MediaRef{*r.Broker.Photo}
		}
	case SubjectProperty:
		if r.Property != nil {
			return r.Property.Images
		}
	}
	return nil
}

// Documents returns the document references relevant to the subject.
func (r Request) Documents() []MediaRef {
	switch r.SubjectType {
	case SubjectListing:
		if r.Listing != nil {
			return r.Listing.Documents
		}
	case SubjectBroker:
		if r.Broker != nil {
			return r.Broker.Documents
		}
	case SubjectProperty:
		if r.Property != nil {
			return r.Property.Documents
		}
	}
	return nil
}

// FreeText returns the subject's free-form prose.
func (r Request) FreeText() string {
	switch r.SubjectType {
	case SubjectListing:
		if r.Listing != nil {
			return strings.TrimSpace(r.Listing.Title + "\n\n" + r.Listing.Description)
		}
	case SubjectBroker:
		if r.Broker != nil {
			return strings.TrimSpace(r.Broker.Bio)
		}
	case SubjectProperty:
		if r.Property != nil {
			return strings.TrimSpace(r.Property.Description)
		}
	}
	return ""
}

// Status is the outcome of a single check.
type Status string

const (
	StatusPass  Status = "PASS"
	StatusFail  Status = "FAIL"
	StatusError Status = "ERROR"
)

// Severity grades a finding.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity maps loose provider wording onto a Severity.
func ParseSeverity(raw string) Severity {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "critical", "severe":
		return SeverityCritical
	case "high", "major":
		return SeverityHigh
	case "medium", "moderate", "warning":
		return SeverityMedium
	case "low", "minor":
		return SeverityLow
	default:
		return SeverityInfo
	}
}

// Finding sources.
const (
	SourceRule     = "rule"
	SourceProvider = "provider"
	SourceSystem   = "system"
)

// Finding is a human-readable issue raised by a check.
type Finding struct {
	Code     string   `json:"code"`
	Category string   `json:"category"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Source   string   `json:"source"`
}

// CheckResult is produced by exactly one evaluator.
type CheckResult struct {
	Status          Status    `json:"status"`
	ConfidenceScore float64   `json:"confidence_score"`
	Findings        []Finding `json:"findings"`
	// ExecutionTime is reported in seconds.
	ExecutionTime float64 `json:"execution_time"`
}

// PassThreshold separates PASS from FAIL for a scored check.
const PassThreshold = 0.50

// StatusForScore returns PASS or FAIL for a score.
func StatusForScore(score float64) Status {
	if score >= PassThreshold {
		return StatusPass
	}
	return StatusFail
}

// ClampScore bounds a score to [0,1]; NaN becomes 0.
func ClampScore(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

// Seconds converts a duration into the wire representation of execution time.
func Seconds(d time.Duration) float64 {
	return float64(d.Round(time.Millisecond)) / float64(time.Second)
}

// Outcome is the tri-state decision.
type Outcome string

const (
	Approve Outcome = "APPROVE"
	Flag    Outcome = "FLAG"
	Reject  Outcome = "REJECT"
)

// Decision is the terminal result of one verification request.
type Decision struct {
	ID            string                 `json:"id"`
	SubjectType   SubjectType            `json:"subject_type"`
	SubjectID     string                 `json:"subject_id"`
	Decision      Outcome                `json:"decision"`
	CombinedScore float64                `json:"combined_score"`
	PerCheck      map[string]CheckResult `json:"checks"`
	Reasons       []string               `json:"reasons,omitempty"`
	DecidedAt     time.Time              `json:"decided_at"`
}

// Wire flattens the decision so each check sits beside the top-level fields.
func (d Decision) Wire() map[string]any {
	out := make(map[string]any, len(d.PerCheck)+7)
	for name, res := range d.PerCheck {
		out[name] = res
	}
	out["id"] = d.ID
	out["subject_type"] = d.SubjectType
	out["subject_id"] = d.SubjectID
	out["decision"] = d.Decision
	out["combined_score"] = d.CombinedScore
	out["decided_at"] = d.DecidedAt
	if len(d.Reasons) > 0 {
		out["reasons"] = d.Reasons
	}
	return out
}
