package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fairyhunter13/mainalyze/internal/domain"
	obsctx "github.com/fairyhunter13/mainalyze/internal/observability"
)

// ObjectReader is the read side of the object store.
type ObjectReader interface {
	KeyFromURL(ref string) (string, bool)
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)
}

// BackoffSettings bounds the retries of one fetch.
type BackoffSettings struct {
	MaxElapsed      time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// ErrForeignReference rejects a file reference outside our bucket and the
// allowed hosts. The worker never fetches arbitrary user-supplied URLs.
var ErrForeignReference = fmt.Errorf("%w: file reference is not an uploaded answer sheet", domain.ErrInvalidArgument)

// Fetcher dereferences answer-file references. References into our own
// bucket are read through the store. Other http(s) URLs are fetched only
// when their host is listed in AllowedHosts.
type Fetcher struct {
	Objects      ObjectReader
	HTTP         *http.Client
	Backoff      BackoffSettings
	AllowedHosts []string
}

var _ domain.FileFetcher = (*Fetcher)(nil)

// NewFetcher builds a Fetcher with a traced HTTP client. Redirects are
// followed only to allowed hosts.
func NewFetcher(objects ObjectReader, bo BackoffSettings, allowedHosts ...string) *Fetcher {
	f := &Fetcher{
		Objects:      objects,
		Backoff:      bo,
		AllowedHosts: allowedHosts,
	}
	f.HTTP = &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   60 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return errors.New("too many redirects")
			}
			if !f.allowed(req.URL) {
				return ErrForeignReference
			}
			return nil
		},
	}
	return f
}

func (f *Fetcher) newBackoff(ctx context.Context) backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	if f.Backoff.MaxElapsed > 0 {
		expo.MaxElapsedTime = f.Backoff.MaxElapsed
	}
	if f.Backoff.InitialInterval > 0 {
		expo.InitialInterval = f.Backoff.InitialInterval
	}
	if f.Backoff.MaxInterval > 0 {
		expo.MaxInterval = f.Backoff.MaxInterval
	}
	return backoff.WithContext(expo, ctx)
}

// Fetch downloads ref, refusing content larger than maxBytes.
func (f *Fetcher) Fetch(ctx context.Context, ref string, maxBytes int64) (domain.FetchedFile, error) {
	name := fileName(ref)
	key, own := f.ownKey(ref)
	if !own {
		if u, err := url.Parse(ref); err != nil || !f.allowed(u) {
			obsctx.LoggerFromContext(ctx).Warn("answer file reference refused", slog.String("file", name))
			return domain.FetchedFile{}, fmt.Errorf("op=fetch %s: %w", name, ErrForeignReference)
		}
	}
	var out domain.FetchedFile
	op := func() error {
		var (
			body io.ReadCloser
			ct   string
			err  error
		)
		if own {
			body, ct, err = f.Objects.Open(ctx, key)
			if errors.Is(err, domain.ErrNotFound) {
				return backoff.Permanent(err)
			}
		} else {
			body, ct, err = f.get(ctx, ref)
		}
		if err != nil {
			return err
		}
		defer func() { _ = body.Close() }()
		data, err := readLimited(body, maxBytes)
		if err != nil {
			if errors.Is(err, domain.ErrFileTooLarge) {
				return backoff.Permanent(err)
			}
			return err
		}
		out = domain.FetchedFile{Name: name, ContentType: ct, Data: data}
		return nil
	}
	notify := func(err error, wait time.Duration) {
		obsctx.LoggerFromContext(ctx).Warn("answer file fetch retry",
			slog.String("file", name), slog.Duration("wait", wait), slog.Any("error", err))
	}
	if err := backoff.RetryNotify(op, f.newBackoff(ctx), notify); err != nil {
		return domain.FetchedFile{}, fmt.Errorf("op=fetch %s: %w", name, err)
	}
	return out, nil
}

func (f *Fetcher) ownKey(ref string) (string, bool) {
	if f.Objects == nil {
		return "", false
	}
	return f.Objects.KeyFromURL(ref)
}

// allowed reports whether u is an http(s) URL on one of AllowedHosts. An
// entry matches either the bare hostname or host:port.
func (f *Fetcher) allowed(u *url.URL) bool {
	if u == nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false
	}
	for _, h := range f.AllowedHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h == "" {
			continue
		}
		if h == strings.ToLower(u.Host) || h == strings.ToLower(u.Hostname()) {
			return true
		}
	}
	return false
}

func (f *Fetcher) get(ctx context.Context, ref string) (io.ReadCloser, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, "", backoff.Permanent(fmt.Errorf("%w: bad file url", domain.ErrInvalidArgument))
	}
	resp, err := f.HTTP.Do(req)
	if err != nil {
		if errors.Is(err, ErrForeignReference) {
			return nil, "", backoff.Permanent(err)
		}
		return nil, "", err
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		_ = resp.Body.Close()
		return nil, "", fmt.Errorf("file server status %d", resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, "", backoff.Permanent(domain.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		_ = resp.Body.Close()
		return nil, "", backoff.Permanent(fmt.Errorf("file server status %d", resp.StatusCode))
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

func readLimited(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: exceeds %d bytes", domain.ErrFileTooLarge, maxBytes)
	}
	return data, nil
}

func fileName(ref string) string {
	if u, err := url.Parse(ref); err == nil && u.Path != "" {
		if p, err := url.PathUnescape(u.Path); err == nil {
			return path.Base(p)
		}
		return path.Base(u.Path)
	}
	return path.Base(ref)
}
