package checks

import (
	"sort"
	"strconv"
	"strings"

	"github.com/realfinder/verifier/src/rules"
	"github.com/realfinder/verifier/src/verification/types"
)

// declaredFields flattens the structured attributes of the subject for
// provider prompts. Empty values are omitted.
func declaredFields(req types.Request) map[string]string {
	out := map[string]string{}
	put := func(k, v string) {
		if v = strings.TrimSpace(v); v != "" {
			out[k] = v
		}
	}
	putFloat := func(k string, v float64) {
		if v > 0 {
			out[k] = strconv.FormatFloat(v, 'f', -1, 64)
		}
	}

	switch req.SubjectType {
	case types.SubjectListing:
		if l := req.Listing; l != nil {
			put("title", l.Title)
			if !l.Price.IsZero() {
				put("price", l.Price.String())
			}
			put("currency", l.Currency)
			putFloat("area_sqft", l.AreaSqft)
			put("bedrooms", strconv.Itoa(l.Bedrooms))
			put("bathrooms", strconv.Itoa(l.Bathrooms))
			put("property_type", l.PropertyType)
			put("city", l.City)
			put("address", l.Address)
			put("images", strconv.Itoa(len(l.Images)))
		}
	case types.SubjectBroker:
		if b := req.Broker; b != nil {
			put("full_name", b.FullName)
			put("agency_name", b.AgencyName)
			put("license_number", b.LicenseNumber)
			put("phone", b.Phone)
			put("email", b.Email)
		}
	case types.SubjectProperty:
		if p := req.Property; p != nil {
			put("title", p.Title)
			put("owner_name", p.OwnerName)
			put("address", p.Address)
			put("city", p.City)
			putFloat("area_sqft", p.AreaSqft)
			put("plot_number", p.PlotNumber)
			put("registration_number", p.RegistrationNumber)
		}
	}
	return out
}

// listingAttributes maps a listing onto the attribute rules. Zero price and
// zero area are treated as not supplied.
func listingAttributes(l *types.Listing) rules.Attributes {
	var a rules.Attributes
	if l == nil {
		return a
	}
	if !l.Price.IsZero() {
		p := l.Price.InexactFloat64()
		a.Price = &p
	}
	if l.AreaSqft != 0 {
		area := l.AreaSqft
		a.AreaSqft = &area
	}
	beds, baths, imgs := l.Bedrooms, l.Bathrooms, len(l.Images)
	a.Bedrooms, a.Bathrooms, a.Images = &beds, &baths, &imgs
	return a
}

func formatFields(req types.Request) rules.Fields {
	var f rules.Fields
	switch req.SubjectType {
	case types.SubjectListing:
		if l := req.Listing; l != nil {
			f.Phone = l.ContactPhone
			attrs := listingAttributes(l)
			f.AreaSqft, f.Bedrooms, f.Bathrooms = attrs.AreaSqft, attrs.Bedrooms, attrs.Bathrooms
		}
	case types.SubjectBroker:
		if b := req.Broker; b != nil {
			f.Name = b.FullName
			f.Phone = b.Phone
			f.Email = b.Email
			f.LicenseNumber = b.LicenseNumber
		}
	case types.SubjectProperty:
		if p := req.Property; p != nil {
			f.Name = p.OwnerName
			f.RegistrationNumber = p.RegistrationNumber
			f.PlotNumber = p.PlotNumber
			if p.AreaSqft != 0 {
				area := p.AreaSqft
				f.AreaSqft = &area
			}
		}
	}
	return f
}

func joinFields(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+m[k])
	}
	return strings.Join(parts, "; ")
}
