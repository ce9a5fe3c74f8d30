package recognizer

import (
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptrace"
	"sync"
	"time"
)

type TracedClient struct {
	client  *http.Client
	warmURL string
}

func NewTracedClient(warmURL string) *TracedClient {
	return &TracedClient{
		warmURL: warmURL,
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
	}
}

type TracedResponse struct {
	Body       []byte
	StatusCode int
	Header     http.Header
	Metrics    *NetworkMetrics
}

// traceState collects httptrace timings. The callbacks fire on net/http's
// read and write loops, so every field is behind mu.
type traceState struct {
	mu        sync.Mutex
	m         NetworkMetrics
	getConn   time.Time
	dns       time.Time
	tcp       time.Time
	tls       time.Time
	gotConn   time.Time
	headers   time.Time
	wrote     time.Time
	firstByte time.Time
}

func (t *traceState) with(fn func(now time.Time)) {
	now := time.Now()
	t.mu.Lock()
	fn(now)
	t.mu.Unlock()
}

func (t *traceState) clientTrace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		GetConn: func(string) { t.with(func(now time.Time) { t.getConn = now }) },
		GotConn: func(info httptrace.GotConnInfo) {
			t.with(func(now time.Time) {
				t.gotConn = now
				t.m.ConnWait = now.Sub(t.getConn)
				t.m.ConnReused = info.Reused
			})
		},
		DNSStart: func(httptrace.DNSStartInfo) { t.with(func(now time.Time) { t.dns = now }) },
		DNSDone: func(httptrace.DNSDoneInfo) {
			t.with(func(now time.Time) { t.m.DNS = now.Sub(t.dns) })
		},
		ConnectStart: func(_, _ string) { t.with(func(now time.Time) { t.tcp = now }) },
		ConnectDone: func(_, _ string, _ error) {
			t.with(func(now time.Time) { t.m.TCP = now.Sub(t.tcp) })
		},
		TLSHandshakeStart: func() { t.with(func(now time.Time) { t.tls = now }) },
		TLSHandshakeDone: func(cs tls.ConnectionState, _ error) {
			t.with(func(now time.Time) {
				t.m.TLS = now.Sub(t.tls)
				t.m.TLSProtocol = cs.NegotiatedProtocol
			})
		},
		WroteHeaders: func() {
			t.with(func(now time.Time) {
				t.headers = now
				t.m.ReqHeaders = now.Sub(t.gotConn)
			})
		},
		WroteRequest: func(httptrace.WroteRequestInfo) {
			t.with(func(now time.Time) {
				t.wrote = now
				t.m.ReqBody = now.Sub(t.headers)
			})
		},
		GotFirstResponseByte: func() {
			t.with(func(now time.Time) {
				t.firstByte = now
				t.m.TTFB = now.Sub(t.wrote)
			})
		},
	}
}

// finish stamps the download and total times and returns a copy of the
// metrics that no callback can touch any more.
func (t *traceState) finish(reqStart time.Time) *NetworkMetrics {
	out := &NetworkMetrics{}
	t.with(func(now time.Time) {
		if !t.firstByte.IsZero() {
			t.m.Download = now.Sub(t.firstByte)
		}
		t.m.Total = now.Sub(reqStart)
		*out = t.m
	})
	return out
}

func (c *TracedClient) Do(req *http.Request) (*TracedResponse, error) {
	st := &traceState{}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), st.clientTrace()))
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

	return &TracedResponse{
		Body:       body,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Metrics:    st.finish(reqStart),
	}, nil
}

// Warm opens a connection ahead of the first real request so the TLS
// handshake is off the critical path.
func (c *TracedClient) Warm() {
	if c.warmURL == "" {
		return
	}
	req, err := http.NewRequest("HEAD", c.warmURL, nil)
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
