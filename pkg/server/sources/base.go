package sources

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/StrathCole/oracle-priority/pkg/logging"
	"github.com/StrathCole/oracle-priority/pkg/version"
)

const (
	defaultTimeout   = 10 * time.Second
	maxResponseBytes = 4 << 20
)

// BaseReader provides common functionality for all price readers
type BaseReader struct {
	name       string
	sourcetype SourceType
	client     *http.Client
	limiter    *rate.Limiter
	now        func() time.Time
	lastRead   time.Time
	healthy    bool
	stateMu    sync.RWMutex
	logger     *logging.Logger
}

// NewBaseReader builds the shared reader state from a factory config map.
// Recognized keys: name, timeout, rate_limit (requests per second), burst, logger,
// http_client and clock.
func NewBaseReader(sourcetype SourceType, config map[string]interface{}) (*BaseReader, error) {
	name := GetString(config, "name", string(sourcetype))

	timeout, err := GetDuration(config, "timeout", defaultTimeout)
	if err != nil {
		return nil, err
	}

	client, ok := config["http_client"].(*http.Client)
	if !ok || client == nil {
		client = &http.Client{Timeout: timeout}
	}

	now, ok := config["clock"].(func() time.Time)
	if !ok || now == nil {
		now = time.Now
	}

	var limiter *rate.Limiter
	if rps := GetFloat(config, "rate_limit", 0); rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), GetInt(config, "burst", 1))
	}

	return &BaseReader{
		name:       name,
		sourcetype: sourcetype,
		client:     client,
		limiter:    limiter,
		now:        now,
		logger:     GetLoggerFromConfig(config).With("source", name),
	}, nil
}

// Name returns the reader name
func (b *BaseReader) Name() string {
	return b.name
}

// Type returns the reader type
func (b *BaseReader) Type() SourceType {
	return b.sourcetype
}

// IsHealthy returns the health status
func (b *BaseReader) IsHealthy() bool {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.healthy
}

// LastRead returns the time of the last successful read
func (b *BaseReader) LastRead() time.Time {
	b.stateMu.RLock()
	defer b.stateMu.RUnlock()
	return b.lastRead
}

// Now returns the reader's clock time.
func (b *BaseReader) Now() time.Time {
	return b.now()
}

// Logger returns the logger
func (b *BaseReader) Logger() *logging.Logger {
	return b.logger
}

// Record updates health after a read attempt.
func (b *BaseReader) Record(err error) {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()
	b.healthy = err == nil
	if err == nil {
		b.lastRead = b.now()
	}
}

// GetJSON performs a rate-limited GET and returns the body of a 200 response.
func (b *BaseReader) GetJSON(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return b.do(req)
}

// PostJSON performs a rate-limited POST of a JSON body and returns the body of a 200 response.
func (b *BaseReader) PostJSON(ctx context.Context, url string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return b.do(req)
}

func (b *BaseReader) do(req *http.Request) ([]byte, error) {
	if b.limiter != nil {
		if err := b.limiter.Wait(req.Context()); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRateLimitExceeded, err)
		}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.AgentString())

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: %s", ErrRateLimitExceeded, req.URL.Host)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: %d: %s", ErrUnexpectedStatus, resp.StatusCode, truncate(body, 200))
	}
	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
