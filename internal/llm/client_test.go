package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(url string) *Client {
	return New(Options{
		GenerateURL:     url + "/api/generate",
		EmbedURL:        url + "/api/embeddings",
		Model:           "llama3",
		EmbedModel:      "nomic-embed-text",
		RetryMaxElapsed: 5 * time.Second,
	}, nil)
}

func TestGenerateStreamsFragments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p generatePayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if p.Model != "llama3" || p.Format != "json" || !p.Stream {
			t.Errorf("unexpected payload %+v", p)
		}
		for _, frag := range []string{`{"sum`, `mary":`, ` "ok"}`} {
			fmt.Fprintf(w, "{\"response\":%q,\"done\":false}\n\n", frag)
		}
		fmt.Fprintln(w, `{"response":"","done":true}`)
	}))
	defer srv.Close()

	var got []string
	err := newTestClient(srv.URL).Generate(context.Background(), GenerateRequest{Prompt: "p", Format: "json", Stream: true}, func(f string) error {
		got = append(got, f)
		return nil
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(got) != 3 || got[0]+got[1]+got[2] != `{"summary": "ok"}` {
		t.Errorf("fragments = %q", got)
	}
}

func TestCompleteNonStreaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"response":"The budget was approved.","done":true}`)
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).Complete(context.Background(), GenerateRequest{Prompt: "q"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "The budget was approved." {
		t.Errorf("got %q", got)
	}
}

func TestGenerateStreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"response":"par"}`)
		fmt.Fprintln(w, `{"error":"model crashed"}`)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Complete(context.Background(), GenerateRequest{Prompt: "q"})
	if err == nil {
		t.Fatal("expected error from error line")
	}
}

func TestGenerateMalformedLine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `not json`)
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).Complete(context.Background(), GenerateRequest{Prompt: "q"}); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestGenerateRetriesUntilServerAnswers(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			http.Error(w, "loading model", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintln(w, `{"response":"ready","done":true}`)
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).Complete(context.Background(), GenerateRequest{Prompt: "q"})
	if err != nil || got != "ready" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestGenerateClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Complete(context.Background(), GenerateRequest{Prompt: "q"})
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Fatalf("err = %v, want 404 StatusError", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p embedPayload
		json.NewDecoder(r.Body).Decode(&p)
		if p.Model != "nomic-embed-text" || p.Prompt != "hello" {
			t.Errorf("payload = %+v", p)
		}
		w.Write([]byte(`{"embedding":[0.5,-1,2]}`))
	}))
	defer srv.Close()

	v, err := newTestClient(srv.URL).Embed(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if len(v) != 3 || v[1] != -1 {
		t.Errorf("embedding = %v", v)
	}
}

func TestEmbedSingleAttempt(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "oops", http.StatusInternalServerError)
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("embed retried: %d calls", n)
	}
}

func TestEmbedEmptyVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"embedding":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Embed(context.Background(), "x")
	if !errors.Is(err, ErrEmptyEmbedding) {
		t.Errorf("err = %v", err)
	}
}
