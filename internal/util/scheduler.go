package util

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Request describes one outgoing call before it is turned into an
// *http.Request. Query is merged into any query already present on URL.
// A non-nil Form is sent URL-encoded as the body.
type Request struct {
	Method  string
	URL     string
	Query   url.Values
	Headers http.Header
	Form    url.Values
}

func (r Request) FullURL() (string, error) {
	u, err := url.Parse(r.URL)
	if err != nil {
		return "", err
	}

	if len(r.Query) > 0 {
		q := u.Query()
		for k, vs := range r.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}

func (r Request) build(ctx context.Context) (*http.Request, error) {
	target, err := r.FullURL()
	if err != nil {
		return nil, err
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if r.Form != nil {
		body = strings.NewReader(r.Form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}

	for k, vs := range r.Headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	if r.Form != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	return req, nil
}

type Response struct {
	Status int
	URL    string
	Data   []byte
}

type SchedulerOptions struct {
	RequestsPerSecond float64
	Timeout           time.Duration
	MaxBodyBytes      int64
	DebugLogger       interface {
		Debugf(string, ...any)
	}
}

// Scheduler issues requests through a single shared rate limiter. Every call
// waits for a token, so concurrent callers are serialized to the configured
// budget.
type Scheduler struct {
	client  *http.Client
	limiter *rate.Limiter
	timeout time.Duration
	maxBody int64
	log     interface{ Debugf(string, ...any) }
}

func NewScheduler(c *http.Client, opts SchedulerOptions) *Scheduler {
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 16 << 20
	}

	return &Scheduler{
		client:  c,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		timeout: timeout,
		maxBody: maxBody,
		log:     opts.DebugLogger,
	}
}

func (s *Scheduler) Schedule(ctx context.Context, r Request) (*Response, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := r.build(ctx)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if s.log != nil {
		s.log.Debugf("%s %s -> %d", req.Method, req.URL, resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: req.URL.String()}
	}

	data, err := readLimited(resp.Body, s.maxBody)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", req.URL, err)
	}

	return &Response{
		Status: resp.StatusCode,
		URL:    req.URL.String(),
		Data:   data,
	}, nil
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("response body exceeds %s", Human(limit))
	}

	return data, nil
}
