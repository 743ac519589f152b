package checks

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realfinder/verifier/src/analysis"
	"github.com/realfinder/verifier/src/media"
	"github.com/realfinder/verifier/src/rules"
	"github.com/realfinder/verifier/src/verification/types"
)

type fakeAnalyzer struct {
	mu     sync.Mutex
	scores map[analysis.Kind]float64
	errs   map[analysis.Kind]error
	issues map[analysis.Kind][]analysis.Issue
	calls  map[analysis.Kind]int
	media  map[analysis.Kind]int
}

func newFakeAnalyzer(score float64) *fakeAnalyzer {
	f := &fakeAnalyzer{
		scores: map[analysis.Kind]float64{},
		errs:   map[analysis.Kind]error{},
		issues: map[analysis.Kind][]analysis.Issue{},
		calls:  map[analysis.Kind]int{},
		media:  map[analysis.Kind]int{},
	}
	for _, k := range analysis.Kinds() {
		f.scores[k] = score
	}
	return f
}

func (f *fakeAnalyzer) Analyze(_ context.Context, kind analysis.Kind, p analysis.Payload) (*analysis.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[kind]++
	f.media[kind] += len(p.Media)
	if err := f.errs[kind]; err != nil {
		return nil, err
	}
	return &analysis.Result{Score: f.scores[kind], Issues: f.issues[kind], Extracted: map[string]string{"owner": "A. Khan"}}, nil
}

type fakeFetcher struct {
	fail map[string]error
}

func (f fakeFetcher) Fetch(_ context.Context, ref types.MediaRef) (*media.Item, error) {
	if err := f.fail[ref.URL]; err != nil {
		return nil, err
	}
	data := []byte(ref.URL)
	return &media.Item{Data: data, MIMEType: "image/jpeg", Fingerprint: media.Fingerprint(data), Source: ref.URL}, nil
}

func testDeps(a analysis.Analyzer, f MediaFetcher) Deps {
	return Deps{Analyzer: a, Rules: rules.NewChecker(rules.DefaultConfig()), Media: f}
}

const goodDescription = "Bright two bedroom apartment on the fourth floor with a covered balcony, lift access and reserved parking."

func listingRequest() types.Request {
	return types.Request{
		ID:          "L-1",
		SubjectType: types.SubjectListing,
		Listing: &types.Listing{
			Title:       "Two bedroom apartment",
			Description: goodDescription,
			Price:       decimal.NewFromInt(250000),
			AreaSqft:    1100,
			Bedrooms:    2,
			Bathrooms:   2,
			Images: []types.MediaRef{
				{URL: "https://cdn.example.com/1.jpg"},
				{URL: "https://cdn.example.com/2.jpg"},
			},
		},
	}
}

func brokerRequest() types.Request {
	return types.Request{
		ID:          "B-1",
		SubjectType: types.SubjectBroker,
		Broker: &types.Broker{
			FullName:      "Sara Malik",
			LicenseNumber: "RE-2019/4471",
			Email:         "sara@bluekeys.pk",
			Documents:     []types.MediaRef{{URL: "https://cdn.example.com/license.pdf"}},
		},
	}
}

func propertyRequest() types.Request {
	return types.Request{
		ID:          "P-1",
		SubjectType: types.SubjectProperty,
		Property: &types.Property{
			OwnerName: "Ahmed Khan",
			Address:   "House 12, Street 4, F-7/2",
			AreaSqft:  2250,
			Documents: []types.MediaRef{{URL: "https://cdn.example.com/deed.pdf"}},
		},
	}
}

func names(es []Evaluator) []string {
	out := make([]string, 0, len(es))
	for _, e := range es {
		out = append(out, e.Name())
	}
	return out
}

func TestApplicability(t *testing.T) {
	reg := NewDefaultRegistry(testDeps(newFakeAnalyzer(1), fakeFetcher{}))
	require.Equal(t, 8, reg.Len())

	assert.ElementsMatch(t,
		[]string{NameText, NameImage, NameFormatValidation, NameFraud, NameConsistency, NameMediaAuthenticity},
		names(reg.Applicable(listingRequest())))

	assert.ElementsMatch(t,
		[]string{NameDocument, NameFormatValidation, NameFraud, NameConflictDetection},
		names(reg.Applicable(brokerRequest())))

	broker := brokerRequest()
	broker.Broker.Bio = "Twelve years selling homes in Islamabad."
	broker.Broker.Photo = &types.MediaRef{URL: "https://cdn.example.com/me.jpg"}
	assert.Contains(t, names(reg.Applicable(broker)), NameText)
	assert.Contains(t, names(reg.Applicable(broker)), NameImage)
	assert.NotContains(t, names(reg.Applicable(broker)), NameMediaAuthenticity)

	assert.ElementsMatch(t,
		[]string{NameDocument, NameFormatValidation, NameConsistency, NameConflictDetection},
		names(reg.Applicable(propertyRequest())))
}

func TestWeights(t *testing.T) {
	w := NewDefaultRegistry(testDeps(newFakeAnalyzer(1), fakeFetcher{})).Weights()
	assert.Equal(t, map[string]float64{
		NameText: 0.30, NameImage: 0.25, NameDocument: 0.35, NameFormatValidation: 0.15,
		NameFraud: 0.20, NameConsistency: 0.15, NameMediaAuthenticity: 0.10, NameConflictDetection: 0.25,
	}, w)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	deps := testDeps(newFakeAnalyzer(1), fakeFetcher{})
	require.NoError(t, reg.Add(NewTextEvaluator(deps)))
	assert.Error(t, reg.Add(NewTextEvaluator(deps)))
	assert.Error(t, reg.Add(nil))

	_, err := reg.Get("TEXT")
	assert.NoError(t, err)
	_, err = reg.Get("nope")
	assert.ErrorIs(t, err, ErrUnknownCheck)
}

func TestTextPenaltySurvivesHighProviderScore(t *testing.T) {
	req := listingRequest()
	req.Listing.Description = goodDescription + " Call 0300 123 4567 today."
	e := NewTextEvaluator(testDeps(newFakeAnalyzer(1.0), fakeFetcher{}))

	res := e.Evaluate(context.Background(), req)
	assert.Equal(t, types.StatusPass, res.Status)
	assert.InDelta(t, 0.70, res.ConfidenceScore, 1e-9)
	require.NotEmpty(t, res.Findings)
	assert.Equal(t, string(rules.RuleContactPhone), res.Findings[0].Code)
	assert.Equal(t, types.SourceRule, res.Findings[0].Source)
}

func TestProviderFailureBecomesError(t *testing.T) {
	a := newFakeAnalyzer(0.9)
	a.errs[analysis.KindText] = &analysis.ProviderError{Kind: analysis.KindText, Attempts: 3, Class: analysis.ErrTimeout}
	e := NewTextEvaluator(testDeps(a, fakeFetcher{}))

	res := e.Evaluate(context.Background(), listingRequest())
	assert.Equal(t, types.StatusError, res.Status)
	assert.Equal(t, 0.0, res.ConfidenceScore)
	last := res.Findings[len(res.Findings)-1]
	assert.Equal(t, "provider.timeout", last.Code)
	assert.Equal(t, types.SourceSystem, last.Source)
}

func TestImagePartialFailure(t *testing.T) {
	req := listingRequest()
	fetcher := fakeFetcher{fail: map[string]error{"https://cdn.example.com/2.jpg": media.ErrTooLarge}}
	e := NewImageEvaluator(testDeps(newFakeAnalyzer(0.8), fetcher))

	res := e.Evaluate(context.Background(), req)
	assert.Equal(t, types.StatusPass, res.Status)
	assert.InDelta(t, 0.8, res.ConfidenceScore, 1e-9)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, "image.unavailable", res.Findings[0].Code)
}

func TestImageAllFailed(t *testing.T) {
	req := listingRequest()
	fetcher := fakeFetcher{fail: map[string]error{
		"https://cdn.example.com/1.jpg": media.ErrUnsafeURL,
		"https://cdn.example.com/2.jpg": media.ErrUnsafeURL,
	}}
	res := NewImageEvaluator(testDeps(newFakeAnalyzer(0.8), fetcher)).Evaluate(context.Background(), req)
	assert.Equal(t, types.StatusError, res.Status)
	assert.Equal(t, "provider.media", res.Findings[len(res.Findings)-1].Code)
}

func TestDocumentReportsExtractedFields(t *testing.T) {
	a := newFakeAnalyzer(0.65)
	a.issues[analysis.KindDocument] = []analysis.Issue{{Code: "document.blurry", Severity: "low", Message: "scan is blurry"}}
	res := NewDocumentEvaluator(testDeps(a, fakeFetcher{})).Evaluate(context.Background(), propertyRequest())

	assert.Equal(t, types.StatusPass, res.Status)
	assert.InDelta(t, 0.65, res.ConfidenceScore, 1e-9)
	codes := make([]string, 0, len(res.Findings))
	for _, f := range res.Findings {
		codes = append(codes, f.Code)
	}
	assert.Contains(t, codes, "document.blurry")
	assert.Contains(t, codes, "document.extracted")
}

func TestFormatValidation(t *testing.T) {
	e := NewFormatEvaluator(testDeps(newFakeAnalyzer(1), fakeFetcher{}))
	res := e.Evaluate(context.Background(), brokerRequest())
	assert.Equal(t, types.StatusPass, res.Status)
	assert.Equal(t, 1.0, res.ConfidenceScore)
	assert.NotNil(t, res.Findings)

	bad := brokerRequest()
	bad.Broker.LicenseNumber = "?"
	bad.Broker.Email = "nope"
	res = e.Evaluate(context.Background(), bad)
	assert.Equal(t, types.StatusFail, res.Status)
	assert.InDelta(t, 0.40, res.ConfidenceScore, 1e-9)
}

func TestFraudAppliesAttributeRules(t *testing.T) {
	req := listingRequest()
	req.Listing.Price = decimal.NewFromInt(500)
	req.Listing.Description = goodDescription + " Advance payment required."

	res := NewFraudEvaluator(testDeps(newFakeAnalyzer(1), fakeFetcher{})).Evaluate(context.Background(), req)
	assert.InDelta(t, 0.45, res.ConfidenceScore, 1e-9)
	assert.Equal(t, types.StatusFail, res.Status)
}

func TestConsistencyPricePerSqft(t *testing.T) {
	req := listingRequest()
	req.Listing.AreaSqft = 100000
	res := NewConsistencyEvaluator(testDeps(newFakeAnalyzer(0.9), fakeFetcher{})).Evaluate(context.Background(), req)
	assert.InDelta(t, 0.9*0.75, res.ConfidenceScore, 1e-9)
}

func TestMediaAuthenticityDetectsDuplicates(t *testing.T) {
	req := listingRequest()
	req.Listing.Images = append(req.Listing.Images, types.MediaRef{URL: "https://cdn.example.com/1.jpg"})
	a := newFakeAnalyzer(1)

	res := NewMediaAuthenticityEvaluator(testDeps(a, fakeFetcher{})).Evaluate(context.Background(), req)
	assert.InDelta(t, 0.85, res.ConfidenceScore, 1e-9)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, "media.duplicate", res.Findings[0].Code)
	assert.Equal(t, 3, a.media[analysis.KindMediaAuthenticity])
}

func TestConflictDetection(t *testing.T) {
	a := newFakeAnalyzer(0.3)
	a.issues[analysis.KindConflict] = []analysis.Issue{{Code: "name_mismatch", Severity: "high", Message: "deed names a different owner"}}
	res := NewConflictEvaluator(testDeps(a, fakeFetcher{})).Evaluate(context.Background(), propertyRequest())
	assert.Equal(t, types.StatusFail, res.Status)
	require.Len(t, res.Findings, 1)
	assert.Equal(t, types.SeverityHigh, res.Findings[0].Severity)
}

func TestFailureClass(t *testing.T) {
	assert.Equal(t, "rate_limited", FailureClass(&analysis.ProviderError{Class: analysis.ErrRateLimited}))
	assert.Equal(t, "permanent", FailureClass(&analysis.ProviderError{Class: analysis.ErrProviderPermanent}))
	assert.Equal(t, "transient", FailureClass(&analysis.ProviderError{Class: analysis.ErrProviderTransient}))
	assert.Equal(t, "timeout", FailureClass(context.DeadlineExceeded))
	assert.Equal(t, "unavailable", FailureClass(errors.New("boom")))
}
