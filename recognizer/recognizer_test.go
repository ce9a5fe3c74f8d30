package recognizer

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"murmur/capture"
)

func TestNetworkMetricsSum(t *testing.T) {
	m := &NetworkMetrics{
		ConnWait:   10 * time.Millisecond,
		DNS:        20 * time.Millisecond,
		TCP:        30 * time.Millisecond,
		TLS:        40 * time.Millisecond,
		ReqHeaders: 5 * time.Millisecond,
		ReqBody:    15 * time.Millisecond,
		TTFB:       50 * time.Millisecond,
		Download:   25 * time.Millisecond,
	}
	if got, want := m.Sum(), 195*time.Millisecond; got != want {
		t.Errorf("Sum() = %v, want %v", got, want)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	h := http.Header{}
	h.Set("X-Rate-Limit", "100")

	if got := firstNonEmpty(h, "X-Missing", "X-Rate-Limit"); got != "100" {
		t.Errorf("got %q, want %q", got, "100")
	}
	if got := firstNonEmpty(h, "X-A", "X-B"); got != "?" {
		t.Errorf("got %q, want %q", got, "?")
	}
}

func tone(ms int) capture.Artifact {
	n := 16 * ms
	pcm := make([]byte, n*2)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16((i%64)*400-12800)))
	}
	return capture.Artifact{
		SessionID:  "s1",
		Channel:    capture.ChannelMicrophone,
		SampleRate: 16000,
		Channels:   1,
		Duration:   time.Duration(ms) * time.Millisecond,
		PCM:        pcm,
	}
}

func TestGroqRecognize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer key" {
			t.Errorf("Authorization = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-large-v3-turbo" {
			t.Errorf("model = %q", got)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		data, _ := io.ReadAll(f)
		if !strings.HasSuffix(hdr.Filename, ".flac") || string(data[:4]) != "fLaC" {
			t.Errorf("upload is not flac: %q", hdr.Filename)
		}
		w.Header().Set("x-ratelimit-remaining-requests", "99")
		w.Header().Set("x-ratelimit-limit-requests", "100")
		io.WriteString(w, `{"text":" two sum problem ","segments":[{"no_speech_prob":0.01}]}`)
	}))
	defer srv.Close()

	r := NewGroq("key", WithBaseURL(srv.URL))
	res, err := r.Recognize(context.Background(), tone(200))
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "two sum problem" {
		t.Errorf("text = %q", res.Text)
	}
	if res.RateLimit != "99/100" {
		t.Errorf("rate limit = %q", res.RateLimit)
	}
	if res.AudioLengthS != 0.2 || res.UploadKB <= 0 {
		t.Errorf("stats: length=%v upload=%v", res.AudioLengthS, res.UploadKB)
	}
}

func TestNoSpeech(t *testing.T) {
	for _, tt := range []struct{ name, body string }{
		{"empty text", `{"text":"   "}`},
		{"silent segments", `{"text":"thanks for watching","segments":[{"no_speech_prob":0.97}]}`},
	} {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewGroq("key", WithBaseURL(srv.URL)).Recognize(context.Background(), tone(100))
			if !errors.Is(err, ErrNoSpeech) {
				t.Errorf("err = %v, want ErrNoSpeech", err)
			}
		})
	}
}

func TestStatusErrors(t *testing.T) {
	for _, tt := range []struct {
		status int
		unauth bool
	}{
		{http.StatusUnauthorized, true},
		{http.StatusForbidden, true},
		{http.StatusTooManyRequests, false},
		{http.StatusInternalServerError, false},
	} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			io.WriteString(w, `{"error":"nope"}`)
		}))
		_, err := NewOpenAI("key", WithBaseURL(srv.URL)).Recognize(context.Background(), tone(100))
		srv.Close()

		var recErr *Error
		if !errors.As(err, &recErr) {
			t.Fatalf("status %d: err = %v, want *Error", tt.status, err)
		}
		if recErr.StatusCode != tt.status || recErr.Unauthorized() != tt.unauth {
			t.Errorf("status %d: got code=%d unauthorized=%v", tt.status, recErr.StatusCode, recErr.Unauthorized())
		}
		if recErr.Provider != "openai" {
			t.Errorf("provider = %q", recErr.Provider)
		}
	}
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewGroq("key", WithBaseURL(url)).Recognize(context.Background(), tone(100))
	var recErr *Error
	if !errors.As(err, &recErr) || recErr.StatusCode != 0 || recErr.Err == nil {
		t.Errorf("err = %v, want transport *Error", err)
	}
}

func TestDeepgramRecognize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token dg" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "audio/flac" {
			t.Errorf("Content-Type = %q", got)
		}
		if got := r.URL.Query().Get("model"); got != "nova-3" {
			t.Errorf("model = %q", got)
		}
		io.WriteString(w, `{"results":{"channels":[{"alternatives":[{"transcript":"reverse a linked list","confidence":0.93}]}]}}`)
	}))
	defer srv.Close()

	res, err := NewDeepgram("dg", WithBaseURL(srv.URL)).Recognize(context.Background(), tone(150))
	if err != nil {
		t.Fatal(err)
	}
	if res.Text != "reverse a linked list" || res.Confidence != 0.93 {
		t.Errorf("result = %+v", res)
	}
}

func TestEmptyArtifact(t *testing.T) {
	_, err := NewGroq("key", WithBaseURL("http://127.0.0.1:1")).Recognize(context.Background(), capture.Artifact{SampleRate: 16000})
	if !errors.Is(err, ErrNoSpeech) {
		t.Errorf("err = %v, want ErrNoSpeech", err)
	}
}

func TestNewUnknownProvider(t *testing.T) {
	if _, err := New("whisper.cpp", "k"); err == nil {
		t.Error("expected error for unknown provider")
	}
	for _, p := range []string{"groq", "openai", "deepgram"} {
		r, err := New(p, "k")
		if err != nil || r.Name() != p {
			t.Errorf("New(%q) = %v, %v", p, r, err)
		}
	}
}

func TestFake(t *testing.T) {
	f := NewFake("hello", nil)
	release := f.Hold()
	done := make(chan Result, 1)
	go func() {
		res, _ := f.Recognize(context.Background(), tone(100))
		done <- res
	}()
	select {
	case <-done:
		t.Fatal("held recognizer returned early")
	case <-time.After(20 * time.Millisecond):
	}
	release()
	select {
	case res := <-done:
		if res.Text != "hello" {
			t.Errorf("text = %q", res.Text)
		}
	case <-time.After(time.Second):
		t.Fatal("recognizer never returned")
	}
	if len(f.Calls()) != 1 {
		t.Errorf("calls = %d", len(f.Calls()))
	}
}

func TestTracedClientConcurrent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.Write([]byte(`{"text":"ok"}`))
	}))
	defer srv.Close()

	c := NewTracedClient(srv.URL)
	const n = 8
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader("payload"))
			if err != nil {
				errs <- err
				return
			}
			resp, err := c.Do(req)
			if err != nil {
				errs <- err
				return
			}
			if resp.Metrics == nil || resp.Metrics.Total <= 0 {
				errs <- errors.New("missing metrics")
			}
		}()
	}
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("requests did not finish")
	}
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
