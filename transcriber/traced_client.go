package transcriber

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptrace"
	"sync"
	"time"
)

// TracedClient is a keep-alive HTTP client that records per-phase timings of
// every request, so slow uploads can be told apart from slow inference.
type TracedClient struct {
	client  *http.Client
	warmURL string
}

func NewTracedClient(warmURL string) *TracedClient {
	return &TracedClient{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
		warmURL: warmURL,
	}
}

type TracedResponse struct {
	Body       []byte
	StatusCode int
	Header     http.Header
	Metrics    *NetworkMetrics
}

func (c *TracedClient) Do(req *http.Request) (*TracedResponse, error) {
	metrics := &NetworkMetrics{}
	// Trace hooks fire on both the transport's read and write loops.
	var mu sync.Mutex
	var getConnStart, dnsStart, tcpStart, tlsStart time.Time
	var gotConn, wroteHeaders, wroteRequest, firstByte time.Time
	locked := func(f func()) {
		mu.Lock()
		defer mu.Unlock()
		f()
	}

	trace := &httptrace.ClientTrace{
		GetConn: func(_ string) { locked(func() { getConnStart = time.Now() }) },
		GotConn: func(info httptrace.GotConnInfo) {
			locked(func() {
				gotConn = time.Now()
				metrics.ConnWait = gotConn.Sub(getConnStart)
				metrics.ConnReused = info.Reused
			})
		},
		DNSStart: func(_ httptrace.DNSStartInfo) { locked(func() { dnsStart = time.Now() }) },
		DNSDone:  func(_ httptrace.DNSDoneInfo) { locked(func() { metrics.DNS = time.Since(dnsStart) }) },
		ConnectStart: func(_, _ string) {
			locked(func() { tcpStart = time.Now() })
		},
		ConnectDone: func(_, _ string, _ error) {
			locked(func() { metrics.TCP = time.Since(tcpStart) })
		},
		TLSHandshakeStart: func() { locked(func() { tlsStart = time.Now() }) },
		TLSHandshakeDone: func(st tls.ConnectionState, _ error) {
			locked(func() {
				metrics.TLS = time.Since(tlsStart)
				metrics.TLSProtocol = st.NegotiatedProtocol
			})
		},
		WroteHeaders: func() {
			locked(func() {
				wroteHeaders = time.Now()
				metrics.ReqHeaders = wroteHeaders.Sub(gotConn)
			})
		},
		WroteRequest: func(_ httptrace.WroteRequestInfo) {
			locked(func() {
				wroteRequest = time.Now()
				metrics.ReqBody = wroteRequest.Sub(wroteHeaders)
			})
		},
		GotFirstResponseByte: func() {
			locked(func() {
				firstByte = time.Now()
				metrics.TTFB = firstByte.Sub(wroteRequest)
			})
		},
	}

	req = req.WithContext(httptrace.WithClientTrace(req.Context(), trace))
	reqStart := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	metrics.Download = time.Since(firstByte)
	metrics.Total = time.Since(reqStart)
	out := *metrics

	return &TracedResponse{
		Body:       body,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Metrics:    &out,
	}, nil
}

// Warm opens a connection ahead of the upload so the TLS handshake overlaps
// with recording. Errors are ignored; the real request will surface them.
func (c *TracedClient) Warm() {
	if c.warmURL == "" {
		return
	}
	req, err := http.NewRequest(http.MethodHead, c.warmURL, nil)
	if err != nil {
		return
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
