package verification

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/realfinder/verifier/src/verification/types"
)

// Validator checks requests before any evaluator runs.
type Validator struct {
	v *validator.Validate
}

// NewValidator returns a Validator reporting JSON field names.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

// Validate returns a *ValidationError listing every problem, or nil.
func (val *Validator) Validate(req types.Request) error {
	var problems []Problem

	if err := val.v.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return &ValidationError{Problems: []Problem{{Field: "request", Message: err.Error()}}}
		}
		for _, fe := range verrs {
			problems = append(problems, Problem{Field: fieldPath(fe.Namespace()), Message: describe(fe)})
		}
	}
	problems = append(problems, crossField(req)...)

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// crossField covers the rules struct tags cannot express.
func crossField(req types.Request) []Problem {
	var out []Problem
	add := func(field, msg string) { out = append(out, Problem{Field: field, Message: msg}) }

	present := map[types.SubjectType]bool{
		types.SubjectListing:  req.Listing != nil,
		types.SubjectBroker:   req.Broker != nil,
		types.SubjectProperty: req.Property != nil,
	}
	if st, ok := types.ParseSubjectType(string(req.SubjectType)); ok {
		if !present[st] {
			add(string(st), "payload is required for subject type "+string(st))
		}
		for other, has := range present {
			if other != st && has {
				add(string(other), "payload does not match subject type "+string(st))
			}
		}
	}

	checkMedia := func(prefix string, refs []types.MediaRef) {
		for i, m := range refs {
			if strings.TrimSpace(m.URL) == "" && len(m.Data) == 0 {
				add(fmt.Sprintf("%s[%d]", prefix, i), "url or data is required")
			}
		}
	}

	if l := req.Listing; l != nil {
		if l.Price.IsNegative() {
			add("listing.price", "must not be negative")
		}
		if l.AreaSqft < 0 {
			add("listing.area_sqft", "must not be negative")
		}
		if l.Bedrooms < 0 {
			add("listing.bedrooms", "must not be negative")
		}
		if l.Bathrooms < 0 {
			add("listing.bathrooms", "must not be negative")
		}
		checkMedia("listing.images", l.Images)
		checkMedia("listing.documents", l.Documents)
	}
	if b := req.Broker; b != nil {
		checkMedia("broker.documents", b.Documents)
		if b.Photo != nil {
			checkMedia("broker.photo", []types.MediaRef{*b.Photo})
		}
	}
	if p := req.Property; p != nil {
		if p.AreaSqft < 0 {
			add("property.area_sqft", "must not be negative")
		}
		checkMedia("property.images", p.Images)
		checkMedia("property.documents", p.Documents)
	}
	return out
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param()
	case "len":
		return "must have length " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "email":
		return "must be a valid e-mail address"
	case "url":
		return "must be a valid URL"
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
