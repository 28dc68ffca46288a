// Package kubernetes implements the cluster-facing infrastructure:
// an authenticated HTTP client for the API server and the repository
// implementations behind the core discovery and schema interfaces.
package kubernetes

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/k8schema/k8schema/internal/core"
)

// RequestTimeout bounds every single API request. A distinct type so
// the DI layer can inject it unambiguously.
type RequestTimeout time.Duration

// maxResponseBytes caps response reads. Large clusters serve fragment
// documents of a few megabytes; 64 MiB leaves ample headroom.
const maxResponseBytes = 64 << 20

// errBodyBytes caps how much of an error response body is retained
// for diagnostics.
const errBodyBytes = 2048

// Client issues authenticated GET requests against one cluster's API
// server. It owns the resolved credential for the session lifetime
// and carries no retry policy — callers decide what is retryable.
type Client struct {
	base    *url.URL
	http    *http.Client
	bearer  *core.BearerTokenCredential
	timeout time.Duration
}

// NewClient builds a client for the given resolved context. The
// credential sum type is handled exhaustively: an unknown variant is
// a programming error surfaced as an authentication failure rather
// than a silently unauthenticated client.
func NewClient(cc core.ClusterContext, timeout RequestTimeout) (*Client, error) {
	base, err := url.Parse(cc.Server)
	if err != nil {
		return nil, &core.ErrConfiguration{
			Section: "clusters",
			Name:    cc.Name,
			Reason:  fmt.Sprintf("invalid server URL %q", cc.Server),
			Err:     err,
		}
	}
	// Resolving relative request paths replaces the last segment of a
	// base path without a trailing slash, which would strip the prefix
	// of proxy-style server URLs (https://host/k8s/clusters/c-x).
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	switch {
	case cc.TrustAnchor.InsecureSkipVerify:
		tlsCfg.InsecureSkipVerify = true
	case len(cc.TrustAnchor.CABundle) > 0:
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(cc.TrustAnchor.CABundle) {
			return nil, &core.ErrConfiguration{
				Section: "clusters",
				Name:    cc.Name,
				Reason:  "certificate-authority bundle contains no usable certificates",
			}
		}
		tlsCfg.RootCAs = pool
	}

	c := &Client{
		base:    base,
		timeout: time.Duration(timeout),
	}
	if c.timeout <= 0 {
		c.timeout = 30 * time.Second
	}

	switch cred := cc.Credential.(type) {
	case core.ClientCertificateCredential:
		pair, err := tls.X509KeyPair(cred.CertPEM, cred.KeyPEM)
		if err != nil {
			return nil, &core.ErrCredential{
				User:   cc.Name,
				Reason: "malformed client certificate/key pair",
				Err:    err,
			}
		}
		tlsCfg.Certificates = []tls.Certificate{pair}
	case core.BearerTokenCredential:
		c.bearer = &cred
	default:
		return nil, &core.ErrAuthentication{User: cc.Name}
	}

	c.http = &http.Client{
		Transport: &http.Transport{
			TLSClientConfig:     tlsCfg,
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: 16,
		},
	}

	return c, nil
}

// Get fetches one API path (optionally carrying a query string) and
// returns the response body. Failures are classified: deadline
// overruns as ErrTimeout, transport failures as ErrConnection, and
// non-2xx responses as ErrAPI with the status and (truncated) body.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	rel, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid API path %q: %w", path, err)
	}
	u := c.base.ResolveReference(rel)

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	if c.bearer != nil {
		token, err := c.bearer.Resolve()
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransportError(u.String(), ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyTransportError(u.String(), ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(body) > errBodyBytes {
			body = body[:errBodyBytes]
		}
		return nil, &core.ErrAPI{Status: resp.StatusCode, URL: u.String(), Body: body}
	}

	return body, nil
}

// GetJSON fetches path and unmarshals the response into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	body, err := c.Get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}

func classifyTransportError(u string, parent context.Context, err error) error {
	// A cancelled parent is the caller's doing, not a network fault.
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &core.ErrTimeout{URL: u, Err: err}
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return &core.ErrTimeout{URL: u, Err: err}
	}
	return &core.ErrConnection{URL: u, Err: err}
}
