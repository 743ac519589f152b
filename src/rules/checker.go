// Package rules implements cheap, deterministic red-flag detection over
// submitted text and attributes. Nothing here performs I/O or returns errors.
package rules

import (
	"fmt"
	"html"
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"

	"github.com/realfinder/verifier/src/verification/types"
)

// RuleID names a rule.
type RuleID string

const (
	RuleContactPhone     RuleID = "contact.phone"
	RuleContactEmail     RuleID = "contact.email"
	RuleContactURL       RuleID = "contact.url"
	RuleTooShort         RuleID = "text.too_short"
	RuleUppercase        RuleID = "text.uppercase"
	RuleSpamPunctuation  RuleID = "text.spam_punctuation"
	RuleUrgency          RuleID = "text.urgency"
	RulePriceBelowFloor  RuleID = "price.below_floor"
	RulePricePerSqft     RuleID = "price.per_sqft_outlier"
	RuleAreaImplausible  RuleID = "area.implausible"
	RuleRoomsImplausible RuleID = "rooms.implausible"
	RuleMediaMissing     RuleID = "media.missing"
)

var (
	phonePattern = regexp.MustCompile(`(?:\+?\d[\d\s().-]{8,}\d)`)
	emailPattern = regexp.MustCompile(`(?i)[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}`)
	urlPattern   = regexp.MustCompile(`(?i)(?:https?://|www\.|wa\.me/|t\.me/)\S+`)
	spamPattern  = regexp.MustCompile(`[!?]{4,}`)
)

// Report is the outcome of running a rule set.
type Report struct {
	Score     float64
	Triggered []RuleID
	Findings  []types.Finding
}

// Attributes are the numeric/categorical facts the attribute rules inspect.
// A nil pointer means the attribute is not applicable to the subject.
type Attributes struct {
	Price     *float64
	AreaSqft  *float64
	Bedrooms  *int
	Bathrooms *int
	Images    *int
}

// Checker runs the configured rules.
type Checker struct {
	cfg       Config
	sanitizer *bluemonday.Policy
	validate  *validator.Validate
}

// NewChecker returns a Checker for cfg.
func NewChecker(cfg Config) *Checker {
	if cfg.Penalties == nil {
		cfg.Penalties = defaultPenalties()
	}
	return &Checker{cfg: cfg, sanitizer: bluemonday.StrictPolicy(), validate: validator.New()}
}

// Sanitize strips markup from user supplied text.
func (c *Checker) Sanitize(text string) string {
	return strings.TrimSpace(html.UnescapeString(c.sanitizer.Sanitize(text)))
}

// CheckText runs the free-text rules.
func (c *Checker) CheckText(text string) Report {
	r := newReport()
	if !utf8.ValidString(text) {
		return r
	}
	clean := c.Sanitize(text)
	if clean == "" {
		return r
	}

	if containsPhone(stripURLs(clean)) {
		c.hit(&r, RuleContactPhone, types.SeverityHigh, "free text embeds a phone number")
	}
	if emailPattern.MatchString(clean) {
		c.hit(&r, RuleContactEmail, types.SeverityHigh, "free text embeds an e-mail address")
	}
	if urlPattern.MatchString(clean) {
		c.hit(&r, RuleContactURL, types.SeverityMedium, "free text embeds a link or messenger handle")
	}
	if utf8.RuneCountInString(clean) < c.cfg.MinDescriptionChars {
		c.hit(&r, RuleTooShort, types.SeverityLow,
			fmt.Sprintf("text is shorter than %d characters", c.cfg.MinDescriptionChars))
	}
	if ratio, letters := uppercaseRatio(clean); letters >= c.cfg.UppercaseMinLetters && ratio > c.cfg.UppercaseRatio {
		c.hit(&r, RuleUppercase, types.SeverityLow,
			fmt.Sprintf("%.0f%% of letters are uppercase", ratio*100))
	}
	if spamPattern.MatchString(clean) {
		c.hit(&r, RuleSpamPunctuation, types.SeverityInfo, "excessive punctuation")
	}
	lower := strings.ToLower(clean)
	for _, phrase := range c.cfg.UrgencyPhrases {
		if phrase != "" && strings.Contains(lower, strings.ToLower(phrase)) {
			c.hit(&r, RuleUrgency, types.SeverityMedium, fmt.Sprintf("pressure phrase %q", phrase))
			break
		}
	}
	return r.finish()
}

// CheckAttributes runs the attribute rules.
func (c *Checker) CheckAttributes(a Attributes) Report {
	r := newReport()

	if a.Price != nil && isFinite(*a.Price) {
		price := *a.Price
		if price < c.cfg.PriceFloor {
			c.hit(&r, RulePriceBelowFloor, types.SeverityHigh,
				fmt.Sprintf("price %.2f is below the sanity floor %.2f", price, c.cfg.PriceFloor))
		} else if a.AreaSqft != nil && isFinite(*a.AreaSqft) && *a.AreaSqft > 0 {
			perSqft := price / *a.AreaSqft
			if perSqft < c.cfg.MinPricePerSqft || perSqft > c.cfg.MaxPricePerSqft {
				c.hit(&r, RulePricePerSqft, types.SeverityMedium,
					fmt.Sprintf("price per sqft %.2f is outside [%.2f, %.2f]", perSqft, c.cfg.MinPricePerSqft, c.cfg.MaxPricePerSqft))
			}
		}
	}
	if a.AreaSqft != nil && isFinite(*a.AreaSqft) {
		if area := *a.AreaSqft; area <= 0 || area > c.cfg.MaxAreaSqft {
			c.hit(&r, RuleAreaImplausible, types.SeverityMedium, fmt.Sprintf("area %.0f sqft is implausible", area))
		}
	}
	if implausibleRooms(a.Bedrooms, c.cfg.MaxRooms) || implausibleRooms(a.Bathrooms, c.cfg.MaxRooms) {
		c.hit(&r, RuleRoomsImplausible, types.SeverityLow, "room counts are implausible")
	}
	if a.Images != nil && *a.Images == 0 {
		c.hit(&r, RuleMediaMissing, types.SeverityLow, "no images were supplied")
	}
	return r.finish()
}

// PricePerSqftReport runs only the price-per-area band rule.
func (c *Checker) PricePerSqftReport(price, area float64) Report {
	r := newReport()
	if !isFinite(price) || !isFinite(area) || area <= 0 || price <= 0 {
		return r
	}
	perSqft := price / area
	if perSqft < c.cfg.MinPricePerSqft || perSqft > c.cfg.MaxPricePerSqft {
		c.hit(&r, RulePricePerSqft, types.SeverityMedium,
			fmt.Sprintf("price per sqft %.2f is outside [%.2f, %.2f]", perSqft, c.cfg.MinPricePerSqft, c.cfg.MaxPricePerSqft))
	}
	return r.finish()
}

func (c *Checker) hit(r *Report, id RuleID, sev types.Severity, msg string) {
	r.Triggered = append(r.Triggered, id)
	r.Score -= c.cfg.Penalties[id]
	r.Findings = append(r.Findings, types.Finding{
		Code:     string(id),
		Category: category(id),
		Severity: sev,
		Message:  msg,
		Source:   types.SourceRule,
	})
}

func newReport() Report {
	return Report{Score: 1}
}

func (r Report) finish() Report {
	r.Score = types.ClampScore(r.Score)
	return r
}

func category(id RuleID) string {
	name := string(id)
	if i := strings.IndexByte(name, '.'); i > 0 {
		return name[:i]
	}
	return name
}

// containsPhone requires 10-15 digits so dates and prices do not match.
func containsPhone(s string) bool {
	for _, m := range phonePattern.FindAllString(s, -1) {
		digits := 0
		for _, r := range m {
			if r >= '0' && r <= '9' {
				digits++
			}
		}
		if digits >= 10 && digits <= 15 {
			return true
		}
	}
	return false
}

// stripURLs keeps digits inside links from being read as phone numbers.
func stripURLs(s string) string {
	return urlPattern.ReplaceAllString(s, " ")
}

func uppercaseRatio(s string) (float64, int) {
	var letters, upper int
	for _, r := range s {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if letters == 0 {
		return 0, 0
	}
	return float64(upper) / float64(letters), letters
}

func implausibleRooms(v *int, max int) bool {
	return v != nil && (*v < 0 || *v > max)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Penalty returns the configured penalty for id.
func (c *Checker) Penalty(id RuleID) float64 {
	return c.cfg.Penalties[id]
}
