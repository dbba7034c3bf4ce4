// Package remote mirrors bundle files from an HTTP origin into the local
// bundle root the first time they are read.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/GriffinCanCode/AgentOS/bundles/internal/infrastructure/resilience"
)

// ErrOrigin is returned when the origin answers with an unexpected status.
var ErrOrigin = errors.New("bundle origin error")

// Config describes the origin.
type Config struct {
	// BaseURL is joined with the path of a bundle relative to Root.
	BaseURL string
	Root    string
	Timeout time.Duration
	Retries int
	// RetryWaitMin and RetryWaitMax bound the backoff between retries.
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// Cooldown is how long the origin is skipped after it trips the breaker.
	Cooldown time.Duration
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLogger sets the fetcher logger.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithBreaker replaces the default origin breaker.
func WithBreaker(b *resilience.Breaker) Option {
	return func(f *Fetcher) {
		if b != nil {
			f.breaker = b
		}
	}
}

// Fetcher reads bundle files from disk and downloads the missing ones.
type Fetcher struct {
	base    *url.URL
	root    string
	client  *resty.Client
	breaker *resilience.Breaker
	logger  *zap.Logger
	group   singleflight.Group
}

// New creates a fetcher for cfg.
func New(cfg Config, opts ...Option) (*Fetcher, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid origin url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid origin url %q: scheme must be http or https", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryWaitMin <= 0 {
		cfg.RetryWaitMin = time.Second
	}
	if cfg.RetryWaitMax <= 0 {
		cfg.RetryWaitMax = 30 * time.Second
	}

	f := &Fetcher{
		base:   base,
		root:   cfg.Root,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}

	// Retries happen in the transport so resty sees one response per request.
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = max(cfg.Retries, 0)
	retryClient.RetryWaitMin = cfg.RetryWaitMin
	retryClient.RetryWaitMax = cfg.RetryWaitMax
	retryClient.Logger = leveled{f.logger.Sugar()}

	f.client = resty.NewWithClient(retryClient.StandardClient()).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "AgentOS-Bundles/1.0")

	if f.breaker == nil {
		f.breaker = resilience.New("origin:"+base.Host, resilience.Settings{
			Cooldown: cfg.Cooldown,
			Healthy:  func(err error) bool { return errors.Is(err, fs.ErrNotExist) },
			OnStateChange: func(name string, from, to resilience.State) {
				f.logger.Warn("Origin breaker changed state",
					zap.String("breaker", name),
					zap.Stringer("from", from),
					zap.Stringer("to", to),
				)
			},
		})
	}
	return f, nil
}

// Breaker returns the origin breaker.
func (f *Fetcher) Breaker() *resilience.Breaker {
	return f.breaker
}

// ReadFile returns the bundle file at path, downloading it first when it is
// missing and lies under the root. It satisfies archive.FileReader.
func (f *Fetcher) ReadFile(ctx context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil || !errors.Is(err, fs.ErrNotExist) {
		return data, err
	}
	rel, ok := f.relative(path)
	if !ok {
		return nil, err
	}

	// The shared download outlives any one caller; each caller stops
	// waiting on its own ctx. The client timeout and retry cap bound it.
	shared := context.WithoutCancel(ctx)
	ch := f.group.DoChan(rel, func() (any, error) {
		return f.download(shared, rel, path)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Prefetch downloads every missing file in paths with at most workers
// downloads in flight.
func (f *Fetcher) Prefetch(ctx context.Context, paths []string, workers int) (int, error) {
	if workers <= 0 {
		workers = 4
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	fetched := make(chan struct{}, len(paths))
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			continue
		}
		g.Go(func() error {
			if _, err := f.ReadFile(ctx, path); err != nil {
				return err
			}
			fetched <- struct{}{}
			return nil
		})
	}
	err := g.Wait()
	return len(fetched), err
}

func (f *Fetcher) relative(path string) (string, bool) {
	rel, err := filepath.Rel(f.root, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (f *Fetcher) download(ctx context.Context, rel, dest string) ([]byte, error) {
	start := time.Now()
	target := f.base.JoinPath(rel).String()

	data, err := resilience.Call(ctx, f.breaker, func(ctx context.Context) ([]byte, error) {
		resp, err := f.client.R().SetContext(ctx).Get(target)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", target, err)
		}
		switch {
		case resp.StatusCode() == http.StatusNotFound:
			return nil, fmt.Errorf("fetch %s: %w", target, fs.ErrNotExist)
		case resp.IsError():
			return nil, fmt.Errorf("%w: %s: %s", ErrOrigin, target, resp.Status())
		}
		return resp.Body(), nil
	})
	if err != nil {
		f.logger.Warn("Bundle download failed", zap.String("url", target), zap.Error(err))
		return nil, err
	}

	if err := writeAtomic(dest, data); err != nil {
		return nil, err
	}
	f.logger.Info("Downloaded bundle",
		zap.String("url", target),
		zap.String("size", humanize.IBytes(uint64(len(data)))),
		zap.Duration("duration", time.Since(start)),
	)
	return data, nil
}

// writeAtomic writes data next to dest and renames it into place so readers
// never see a partial file.
func writeAtomic(dest string, data []byte) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create bundle dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".fetch-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write bundle: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write bundle: %w", err)
	}
	return os.Rename(tmp.Name(), dest)
}

// leveled adapts zap to retryablehttp.LeveledLogger.
type leveled struct {
	s *zap.SugaredLogger
}

func (l leveled) Error(msg string, kv ...any) { l.s.Errorw(msg, kv...) }
func (l leveled) Warn(msg string, kv ...any)  { l.s.Warnw(msg, kv...) }
func (l leveled) Info(msg string, kv ...any)  { l.s.Debugw(msg, kv...) }
func (l leveled) Debug(msg string, kv ...any) { l.s.Debugw(msg, kv...) }
