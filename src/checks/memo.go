package checks

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/realfinder/verifier/src/media"
	"github.com/realfinder/verifier/src/verification/types"
)

type memoCtxKey struct{}

// fetchMemo shares downloads between the evaluators of one request. Callers
// arriving while a download is in flight wait for it; later callers get the
// stored outcome.
type fetchMemo struct {
	group singleflight.Group

	mu   sync.Mutex
	done map[string]fetchOutcome
}

type fetchOutcome struct {
	item *media.Item
	err  error
}

// WithMediaMemo returns a context whose evaluators download each remote
// media reference at most once. The memo lives as long as ctx.
func WithMediaMemo(ctx context.Context) context.Context {
	return context.WithValue(ctx, memoCtxKey{}, &fetchMemo{done: make(map[string]fetchOutcome)})
}

func memoFrom(ctx context.Context) *fetchMemo {
	m, _ := ctx.Value(memoCtxKey{}).(*fetchMemo)
	return m
}

func (m *fetchMemo) lookup(key string) (fetchOutcome, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.done[key]
	return o, ok
}

func (m *fetchMemo) fetch(ctx context.Context, f MediaFetcher, ref types.MediaRef) (*media.Item, error) {
	key := string(ref.Kind) + "|" + ref.MIMEType + "|" + ref.URL
	if o, ok := m.lookup(key); ok {
		return o.item, o.err
	}
	v, err, _ := m.group.Do(key, func() (any, error) {
		if o, ok := m.lookup(key); ok {
			return o.item, o.err
		}
		item, err := f.Fetch(ctx, ref)
		m.mu.Lock()
		m.done[key] = fetchOutcome{item: item, err: err}
		m.mu.Unlock()
		return item, err
	})
	item, _ := v.(*media.Item)
	return item, err
}

// fetch resolves ref through the request memo when ctx carries one. Inline
// data is never memoized.
func (d Deps) fetch(ctx context.Context, ref types.MediaRef) (*media.Item, error) {
	if m := memoFrom(ctx); m != nil && ref.URL != "" && len(ref.Data) == 0 {
		return m.fetch(ctx, d.Media, ref)
	}
	return d.Media.Fetch(ctx, ref)
}
