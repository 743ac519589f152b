package media

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/realfinder/verifier/src/verification/types"
)

var (
	pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}
	pdfBytes = []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n<<>>\nendobj\n")
)

func TestFetchInline(t *testing.T) {
	f := NewFetcher(Config{}, nil)
	item, err := f.Fetch(context.Background(), types.MediaRef{Kind: types.MediaImage, Data: pngBytes})
	require.NoError(t, err)
	assert.Equal(t, "image/png", item.MIMEType)
	assert.Equal(t, "inline", item.Source)
	assert.Len(t, item.Fingerprint, 64)
	assert.Equal(t, item.Fingerprint, Fingerprint(pngBytes))
}

func TestFetchDownloads(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(pdfBytes)
	}))
	defer srv.Close()

	f := NewFetcher(Config{AllowPrivate: true}, nil)
	item, err := f.Fetch(context.Background(), types.MediaRef{URL: srv.URL + "/deed.pdf", Kind: types.MediaDocument})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", item.MIMEType)
	assert.Equal(t, srv.URL+"/deed.pdf", item.Source)
}

func TestFetchRejectsOversize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(make([]byte, 2048))
	}))
	defer srv.Close()

	f := NewFetcher(Config{AllowPrivate: true, MaxBytes: 1024}, nil)
	_, err := f.Fetch(context.Background(), types.MediaRef{URL: srv.URL})
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = f.Fetch(context.Background(), types.MediaRef{Data: make([]byte, 2048)})
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestFetchRejectsWrongType(t *testing.T) {
	f := NewFetcher(Config{}, nil)
	_, err := f.Fetch(context.Background(), types.MediaRef{Kind: types.MediaImage, Data: pdfBytes})
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = f.Fetch(context.Background(), types.MediaRef{Data: []byte("just some text")})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestFetchStatusAndEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(Config{AllowPrivate: true}, nil)
	_, err := f.Fetch(context.Background(), types.MediaRef{URL: srv.URL})
	assert.Error(t, err)

	_, err = f.Fetch(context.Background(), types.MediaRef{})
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestFetchBlocksPrivateHosts(t *testing.T) {
	f := NewFetcher(Config{}, nil)
	_, err := f.Fetch(context.Background(), types.MediaRef{URL: "http://127.0.0.1/x.png"})
	assert.ErrorIs(t, err, ErrUnsafeURL)
}

func TestSafeURL(t *testing.T) {
	public := func(string) ([]net.IP, error) { return []net.IP{net.ParseIP("93.184.216.34")}, nil }
	private := func(string) ([]net.IP, error) { return []net.IP{net.ParseIP("10.1.2.3")}, nil }

	tests := []struct {
		url    string
		lookup func(string) ([]net.IP, error)
		want   bool
	}{
		{"https://cdn.example.com/a.jpg", public, true},
		{"https://cdn.example.com/a.jpg", private, false},
		{"ftp://cdn.example.com/a.jpg", public, false},
		{"http://localhost/a.jpg", public, false},
		{"http://169.254.169.254/latest", public, false},
		{"http://[::1]/a.jpg", public, false},
		{"http://8.8.8.8/a.jpg", private, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, safeURL(tt.url, tt.lookup), tt.url)
	}
}

// publicFetcher resolves every name to a documentation address and routes
// connections for that address to target.
func publicFetcher(t *testing.T, target string, lookup func(string) ([]net.IP, error)) *Fetcher {
	t.Helper()
	f := NewFetcher(Config{}, nil)
	f.lookup = lookup
	var d net.Dialer
	f.dial = func(ctx context.Context, network, addr string) (net.Conn, error) {
		if addr == "203.0.113.10:80" {
			addr = target
		}
		return d.DialContext(ctx, network, addr)
	}
	return f
}

func TestFetchRejectsRedirectToPrivateHost(t *testing.T) {
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(pngBytes)
	}))
	defer internal.Close()

	front := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, internal.URL+"/secret.png", http.StatusFound)
	}))
	defer front.Close()

	public := func(string) ([]net.IP, error) { return []net.IP{net.ParseIP("203.0.113.10")}, nil }
	f := publicFetcher(t, front.Listener.Addr().String(), public)

	item, err := f.Fetch(context.Background(), types.MediaRef{URL: "http://cdn.example.com/a.png", Kind: types.MediaImage})
	assert.ErrorIs(t, err, ErrUnsafeURL)
	assert.Nil(t, item)
}

func TestFetchFollowsRedirectToPublicHost(t *testing.T) {
	front := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/moved.png" {
			http.Redirect(w, r, "http://img.example.com/a.png", http.StatusFound)
			return
		}
		_, _ = w.Write(pngBytes)
	}))
	defer front.Close()

	public := func(string) ([]net.IP, error) { return []net.IP{net.ParseIP("203.0.113.10")}, nil }
	f := publicFetcher(t, front.Listener.Addr().String(), public)

	item, err := f.Fetch(context.Background(), types.MediaRef{URL: "http://cdn.example.com/moved.png", Kind: types.MediaImage})
	require.NoError(t, err)
	assert.Equal(t, "image/png", item.MIMEType)
}

func TestFetchRejectsRebindingAtDial(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(pngBytes)
	}))
	defer srv.Close()

	var calls atomic.Int32
	rebinding := func(string) ([]net.IP, error) {
		if calls.Add(1) == 1 {
			return []net.IP{net.ParseIP("203.0.113.10")}, nil
		}
		return []net.IP{net.ParseIP("127.0.0.1")}, nil
	}
	f := publicFetcher(t, srv.Listener.Addr().String(), rebinding)

	_, err := f.Fetch(context.Background(), types.MediaRef{URL: "http://cdn.example.com/a.png", Kind: types.MediaImage})
	assert.ErrorIs(t, err, ErrUnsafeURL)
}
