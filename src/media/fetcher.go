// Package media turns MediaRefs into bytes the model providers can read.
package media

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/realfinder/verifier/src/ai/core"
	"github.com/realfinder/verifier/src/logging"
	"github.com/realfinder/verifier/src/verification/types"
	"github.com/realfinder/verifier/src/webclient"
)

var (
	ErrUnsafeURL   = errors.New("media url not allowed")
	ErrTooLarge    = errors.New("media exceeds size limit")
	ErrUnsupported = errors.New("unsupported media type")
	ErrEmpty       = errors.New("media has neither url nor data")
)

// Config bounds downloads.
type Config struct {
	MaxBytes int64
	Timeout  time.Duration
	// AllowPrivate permits loopback and private hosts; tests only.
	AllowPrivate bool
}

// Item is a fetched and sniffed media object.
type Item struct {
	Data        []byte
	MIMEType    string
	Fingerprint string
	Source      string
}

// Part converts the item for a provider call.
func (i *Item) Part() core.Part {
	return core.BlobPart(i.Data, i.MIMEType)
}

// Fetcher downloads media with size and host limits.
type Fetcher struct {
	cfg        Config
	httpClient *http.Client
	lookup     func(string) ([]net.IP, error)
	dial       func(ctx context.Context, network, addr string) (net.Conn, error)
	log        *zap.Logger
}

// NewFetcher returns a Fetcher. Zero config values take defaults.
func NewFetcher(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 10 << 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	dialer := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
	f := &Fetcher{
		cfg:    cfg,
		lookup: net.LookupIP,
		dial:   dialer.DialContext,
		log:    logging.OrNop(logger),
	}
	f.httpClient = webclient.NewDefault(cfg.Timeout)
	// No proxy: the dial guard must see the real target.
	f.httpClient.Transport = &http.Transport{
		DialContext:         f.dialPublic,
		TLSHandshakeTimeout: 5 * time.Second,
		MaxIdleConns:        20,
		IdleConnTimeout:     90 * time.Second,
	}
	f.httpClient.CheckRedirect = f.checkRedirect
	return f
}

// checkRedirect applies the host guard to every hop.
func (f *Fetcher) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 5 {
		return fmt.Errorf("stopped after %d redirects", len(via))
	}
	if !f.cfg.AllowPrivate && !safeURL(req.URL.String(), f.lookup) {
		return fmt.Errorf("%w: redirect to %s", ErrUnsafeURL, req.URL.Redacted())
	}
	return nil
}

// dialPublic resolves the target itself and dials only public addresses, so a
// name cannot resolve differently between the URL check and the connection.
func (f *Fetcher) dialPublic(ctx context.Context, network, addr string) (net.Conn, error) {
	if f.cfg.AllowPrivate {
		return f.dial(ctx, network, addr)
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	ips := []net.IP{net.ParseIP(host)}
	if ips[0] == nil {
		if ips, err = f.lookup(host); err != nil {
			return nil, fmt.Errorf("resolve %s: %w", host, err)
		}
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("%w: %s has no addresses", ErrUnsafeURL, host)
	}
	for _, ip := range ips {
		if !isPublicIP(ip) {
			return nil, fmt.Errorf("%w: %s resolves to %s", ErrUnsafeURL, host, ip)
		}
	}
	return f.dial(ctx, network, net.JoinHostPort(ips[0].String(), port))
}

// Fetch resolves ref into bytes. Inline data wins over the URL.
func (f *Fetcher) Fetch(ctx context.Context, ref types.MediaRef) (*Item, error) {
	var (
		data   []byte
		source string
		err    error
	)
	switch {
	case len(ref.Data) > 0:
		if int64(len(ref.Data)) > f.cfg.MaxBytes {
			return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, len(ref.Data))
		}
		data, source = ref.Data, "inline"
	case strings.TrimSpace(ref.URL) != "":
		data, err = f.download(ctx, ref.URL)
		if err != nil {
			return nil, err
		}
		source = ref.URL
	default:
		return nil, ErrEmpty
	}

	mimeType := sniff(data)
	if !acceptable(ref.Kind, mimeType) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, mimeType)
	}
	return &Item{Data: data, MIMEType: mimeType, Fingerprint: Fingerprint(data), Source: source}, nil
}

func (f *Fetcher) download(ctx context.Context, link string) ([]byte, error) {
	if !f.cfg.AllowPrivate && !safeURL(link, f.lookup) {
		return nil, fmt.Errorf("%w: %s", ErrUnsafeURL, link)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("build media request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download: status %d", resp.StatusCode)
	}
	if resp.ContentLength > f.cfg.MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.ContentLength)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read media: %w", err)
	}
	if int64(len(data)) > f.cfg.MaxBytes {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrTooLarge, f.cfg.MaxBytes)
	}
	f.log.Debug("media downloaded", zap.String("url", link), zap.Int("bytes", len(data)))
	return data, nil
}

func sniff(data []byte) string {
	m := mimetype.Detect(data).String()
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = m[:i]
	}
	return strings.TrimSpace(m)
}

func acceptable(kind types.MediaKind, mimeType string) bool {
	isImage := strings.HasPrefix(mimeType, "image/")
	switch kind {
	case types.MediaImage:
		return isImage
	default:
		return isImage || mimeType == "application/pdf"
	}
}

// Fingerprint is the hex BLAKE2b-256 digest of data.
func Fingerprint(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
