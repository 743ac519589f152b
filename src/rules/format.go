package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/realfinder/verifier/src/verification/types"
)

const (
	RuleFormatPhone        RuleID = "format.phone"
	RuleFormatEmail        RuleID = "format.email"
	RuleFormatLicense      RuleID = "format.license"
	RuleFormatRegistration RuleID = "format.registration"
	RuleFormatName         RuleID = "format.name"
)

var (
	phoneFormat      = regexp.MustCompile(`^\+?\d{10,15}$`)
	identifierFormat = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9/ -]{2,30}[A-Za-z0-9]$`)
	nameFormat       = regexp.MustCompile(`^[\p{L}][\p{L} .'-]{1,198}$`)
	phoneSeparators  = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")
)

// Fields are the structured values checked for well-formedness. Empty
// strings are skipped; nil numbers are skipped.
type Fields struct {
	Name               string
	Phone              string
	Email              string
	LicenseNumber      string
	RegistrationNumber string
	PlotNumber         string
	AreaSqft           *float64
	Bedrooms           *int
	Bathrooms          *int
}

// CheckFormat validates field shapes and numeric ranges.
func (c *Checker) CheckFormat(f Fields) Report {
	r := newReport()

	if name := strings.TrimSpace(f.Name); name != "" && !nameFormat.MatchString(name) {
		c.hit(&r, RuleFormatName, types.SeverityLow, fmt.Sprintf("name %q is not well formed", name))
	}
	if phone := strings.TrimSpace(f.Phone); phone != "" && !phoneFormat.MatchString(phoneSeparators.Replace(phone)) {
		c.hit(&r, RuleFormatPhone, types.SeverityMedium, fmt.Sprintf("phone %q is not a valid number", phone))
	}
	if email := strings.TrimSpace(f.Email); email != "" && c.validate.Var(email, "email") != nil {
		c.hit(&r, RuleFormatEmail, types.SeverityMedium, fmt.Sprintf("e-mail %q is not valid", email))
	}
	if lic := strings.TrimSpace(f.LicenseNumber); lic != "" && !identifierFormat.MatchString(lic) {
		c.hit(&r, RuleFormatLicense, types.SeverityHigh, fmt.Sprintf("license number %q is malformed", lic))
	}
	for _, reg := range []string{f.RegistrationNumber, f.PlotNumber} {
		if reg = strings.TrimSpace(reg); reg != "" && !identifierFormat.MatchString(reg) {
			c.hit(&r, RuleFormatRegistration, types.SeverityMedium, fmt.Sprintf("registration or plot number %q is malformed", reg))
			break
		}
	}
	if f.AreaSqft != nil && isFinite(*f.AreaSqft) {
		if area := *f.AreaSqft; area <= 0 || area > c.cfg.MaxAreaSqft {
			c.hit(&r, RuleAreaImplausible, types.SeverityMedium, fmt.Sprintf("area %.0f sqft is implausible", area))
		}
	}
	if implausibleRooms(f.Bedrooms, c.cfg.MaxRooms) || implausibleRooms(f.Bathrooms, c.cfg.MaxRooms) {
		c.hit(&r, RuleRoomsImplausible, types.SeverityLow, "room counts are implausible")
	}
	return r.finish()
}
