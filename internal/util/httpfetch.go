package util

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"time"
)

const (
	ConnectTimeout = 10 * time.Second
	OverallTimeout = 30 * time.Second
)

var ErrTooLarge = errors.New("remote file too large")

// HTTPFetcher downloads remote files over HTTPS with SSRF protection
type HTTPFetcher struct {
	client   *http.Client
	maxBytes int64
}

// FetchResult describes a downloaded file
type FetchResult struct {
	ContentType string
	Filename    string
	Bytes       int64
}

func NewHTTPFetcher(maxBytes int64) *HTTPFetcher {
	dialer := &net.Dialer{
		Timeout: ConnectTimeout,
	}

	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}

			ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
			if err != nil {
				return nil, err
			}
			for _, ip := range ips {
				if isPrivateIP(ip.IP) {
					return nil, fmt.Errorf("connection to private IP address is not allowed: %s", ip.IP)
				}
			}
			if len(ips) == 0 {
				return nil, fmt.Errorf("no addresses for host %s", host)
			}

			// dial the addresses we checked, not a fresh lookup
			return dialEach(ctx, dialer.DialContext, network, ips, port)
		},
		TLSHandshakeTimeout: ConnectTimeout,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
	}

	return &HTTPFetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   OverallTimeout,
		},
		maxBytes: maxBytes,
	}
}

// Fetch downloads urlStr into dst
func (f *HTTPFetcher) Fetch(ctx context.Context, urlStr string, dst io.Writer) (*FetchResult, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "https" {
		return nil, errors.New("only HTTPS URLs are allowed")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "mediadrop/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	if resp.ContentLength > f.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrTooLarge, resp.ContentLength, f.maxBytes)
	}

	// read one byte past the limit to detect bodies that lie about their length
	head := make([]byte, sniffLen)
	body := io.LimitReader(resp.Body, f.maxBytes+1)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	head = head[:n]

	if _, err := dst.Write(head); err != nil {
		return nil, err
	}
	rest, err := io.Copy(dst, body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	total := int64(n) + rest
	if total > f.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, f.maxBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = DetectContentType(head)
	}

	filename := path.Base(parsedURL.Path)
	if filename == "/" || filename == "." {
		filename = ""
	}

	return &FetchResult{
		ContentType: contentType,
		Filename:    filename,
		Bytes:       total,
	}, nil
}

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// dialEach tries ips in order and returns the first connection that opens.
func dialEach(ctx context.Context, dial dialFunc, network string, ips []net.IPAddr, port string) (net.Conn, error) {
	var errs []error
	for _, ip := range ips {
		conn, err := dial(ctx, network, net.JoinHostPort(ip.IP.String(), port))
		if err == nil {
			return conn, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errors.Join(errs...)
}

// Special purpose ranges the net.IP helpers do not cover
var reservedNets = mustParseCIDRs(
	"0.0.0.0/8",       // "this" network
	"100.64.0.0/10",   // carrier-grade NAT
	"192.0.0.0/24",    // IETF protocol assignments
	"192.0.2.0/24",    // TEST-NET-1
	"198.18.0.0/15",   // benchmarking
	"198.51.100.0/24", // TEST-NET-2
	"203.0.113.0/24",  // TEST-NET-3
	"240.0.0.0/4",     // reserved, includes broadcast
	"64:ff9b::/96",    // NAT64
	"2001:db8::/32",   // documentation
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			panic(err)
		}
		nets = append(nets, n)
	}
	return nets
}

// isPrivateIP checks if an IP address is in a private/internal range
func isPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() ||
		ip.IsMulticast() {
		return true
	}
	for _, n := range reservedNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
