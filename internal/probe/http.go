package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/hamed0406/masterstatus/internal/domain"
)

// maxDrain bounds how much of a response body is read before closing.
const maxDrain = 64 << 10

type HTTPOptions struct {
	Scheme    string // "http" or "https"
	Path      string
	Timeout   time.Duration
	VerifyTLS bool
}

type HTTPChecker struct {
	Client *http.Client
	opts   HTTPOptions
}

func NewHTTPChecker(opts HTTPOptions) *HTTPChecker {
	if opts.Scheme == "" {
		opts.Scheme = "http"
	}
	if opts.Path == "" {
		opts.Path = "/"
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: !opts.VerifyTLS} //nolint:gosec // explicit verify_tls=false
	tr.DisableKeepAlives = true

	return &HTTPChecker{
		Client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: tr,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		opts: opts,
	}
}

func (h *HTTPChecker) Protocol() domain.Protocol { return domain.ProtocolHTTP }
func (h *HTTPChecker) Timeout() time.Duration    { return h.opts.Timeout }

// URL builds the probe target for a directory address.
func (h *HTTPChecker) URL(address string) string {
	host := address
	if ip := net.ParseIP(address); ip != nil && ip.To4() == nil {
		host = "[" + address + "]"
	}
	u := url.URL{Scheme: h.opts.Scheme, Host: host, Path: h.opts.Path}
	return u.String()
}

// Check is up only for an exact 200 response.
func (h *HTTPChecker) Check(ctx context.Context, address string) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, h.opts.Timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL(address), nil)
	if err != nil {
		return CheckResult{Protocol: domain.ProtocolHTTP, Reason: err.Error()}
	}

	resp, err := h.Client.Do(req)
	latency := since(start)
	if err != nil {
		return CheckResult{Protocol: domain.ProtocolHTTP, LatencyMS: latency, Reason: httpReason(ctx, err)}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))

	return CheckResult{
		Protocol:  domain.ProtocolHTTP,
		Up:        resp.StatusCode == http.StatusOK,
		LatencyMS: latency,
		Reason:    resp.Status,
	}
}

func httpReason(ctx context.Context, err error) string {
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return "tls_verification_failed"
	}
	return reason(ctx, err)
}
