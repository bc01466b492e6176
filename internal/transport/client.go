package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// DefaultTimeout bounds every round trip.
const DefaultTimeout = 30 * time.Second

const userAgent = "ecomprobe/1.0"

// Sentinel errors for transport failures. Check with errors.Is.
var (
	ErrTimeout     = errors.New("transport: timeout")
	ErrUnreachable = errors.New("transport: target unreachable")
)

// Kind classifies the outcome of one call.
type Kind int

const (
	OK Kind = iota
	TransportError
	ParseError
)

func (k Kind) String() string {
	switch k {
	case OK:
		return "ok"
	case TransportError:
		return "transport_error"
	case ParseError:
		return "parse_error"
	default:
		return "unknown"
	}
}

// Request describes one call. JSON, when set, is encoded as the body and
// takes precedence over Body.
type Request struct {
	Method string
	URL    string
	Header http.Header
	JSON   any
	Body   []byte
}

// Response is a fully read HTTP response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// ContentType returns the declared media type header verbatim.
func (r *Response) ContentType() string {
	return r.Header.Get("Content-Type")
}

// Result is what every call returns. Response is set only when Kind is OK,
// or when a ParseError came from decoding an otherwise successful response.
type Result struct {
	Kind     Kind
	Response *Response
	Err      error
}

// DecodeJSON decodes the body into v. A malformed body turns the result into
// a ParseError.
func (r Result) DecodeJSON(v any) Result {
	if r.Kind != OK {
		return r
	}
	if err := json.Unmarshal(r.Response.Body, v); err != nil {
		return Result{Kind: ParseError, Response: r.Response, Err: fmt.Errorf("decode json: %w", err)}
	}
	return r
}

// Client issues single-attempt requests. Failed attempts are never retried.
type Client struct {
	http *http.Client
}

// NewClient returns a client with the given per-call timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: true},
	}
	return &Client{http: &http.Client{
		Transport: tr,
		Timeout:   timeout,
		// Probes inspect the first response, not whatever it redirects to.
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}}
}

// Do performs req and reads the whole body.
func (c *Client) Do(ctx context.Context, req Request) Result {
	var body io.Reader
	if req.JSON != nil {
		data, err := json.Marshal(req.JSON)
		if err != nil {
			return Result{Kind: ParseError, Err: fmt.Errorf("encode json: %w", err)}
		}
		body = bytes.NewReader(data)
	} else if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return Result{Kind: TransportError, Err: fmt.Errorf("build request: %w", err)}
	}
	httpReq.Header.Set("User-Agent", userAgent)
	if req.JSON != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Result{Kind: TransportError, Err: classify(err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Kind: TransportError, Err: classify(err)}
	}
	return Result{Kind: OK, Response: &Response{
		Status: resp.StatusCode,
		Header: resp.Header,
		Body:   data,
	}}
}

func classify(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return err
}
