package httpx

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRequestID(t *testing.T) {
	t.Run("generates an ID when absent", func(t *testing.T) {
		var seen string
		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetRequestID(r.Context())
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

		if seen == "" {
			t.Error("request ID not set on context")
		}
		if rec.Header().Get(RequestIDHeader) != seen {
			t.Errorf("response header = %q, context = %q",
				rec.Header().Get(RequestIDHeader), seen)
		}
	})

	t.Run("honors an incoming header", func(t *testing.T) {
		var seen string
		handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetRequestID(r.Context())
		}))

		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set(RequestIDHeader, "client-supplied-id")
		handler.ServeHTTP(httptest.NewRecorder(), req)

		if seen != "client-supplied-id" {
			t.Errorf("request ID = %q, want client-supplied-id", seen)
		}
	})
}

func TestGetRequestID(t *testing.T) {
	t.Run("returns empty string when missing", func(t *testing.T) {
		if got := GetRequestID(t.Context()); got != "" {
			t.Errorf("GetRequestID() = %q, want empty", got)
		}
	})

	t.Run("round trips through WithRequestID", func(t *testing.T) {
		ctx := WithRequestID(t.Context(), "abc123")
		if got := GetRequestID(ctx); got != "abc123" {
			t.Errorf("GetRequestID() = %q, want abc123", got)
		}
	})
}

func TestRecovery(t *testing.T) {
	t.Run("converts panics into 500 responses", func(t *testing.T) {
		handler := Recovery(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", rec.Code)
		}
	})

	t.Run("passes normal responses through", func(t *testing.T) {
		handler := Recovery(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

		if rec.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", rec.Code)
		}
	})
}

func TestGzip(t *testing.T) {
	t.Run("compresses when the client accepts gzip", func(t *testing.T) {
		handler := Gzip(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("hello hello hello"))
		}))

		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if enc := rec.Header().Get("Content-Encoding"); enc != "gzip" {
			t.Fatalf("Content-Encoding = %q, want gzip", enc)
		}

		zr, err := gzip.NewReader(rec.Body)
		if err != nil {
			t.Fatalf("body is not valid gzip: %v", err)
		}
		body, err := io.ReadAll(zr)
		if err != nil {
			t.Fatalf("failed to decompress body: %v", err)
		}
		if string(body) != "hello hello hello" {
			t.Errorf("decompressed body = %q", body)
		}
	})

	t.Run("leaves responses alone otherwise", func(t *testing.T) {
		handler := Gzip(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("plain"))
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

		if enc := rec.Header().Get("Content-Encoding"); enc != "" {
			t.Errorf("Content-Encoding = %q, want empty", enc)
		}
		if rec.Body.String() != "plain" {
			t.Errorf("body = %q, want plain", rec.Body.String())
		}
	})

	t.Run("passes pre-encoded bodies through untouched", func(t *testing.T) {
		var pre bytes.Buffer
		zw := gzip.NewWriter(&pre)
		_, _ = zw.Write([]byte("already compressed"))
		_ = zw.Close()

		handler := Gzip(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Encoding", "gzip")
			_, _ = w.Write(pre.Bytes())
		}))

		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		zr, err := gzip.NewReader(rec.Body)
		if err != nil {
			t.Fatalf("body is not valid gzip: %v", err)
		}
		body, err := io.ReadAll(zr)
		if err != nil {
			t.Fatalf("failed to decompress body: %v", err)
		}
		if string(body) != "already compressed" {
			t.Errorf("single decode = %q, want the handler's plaintext", body)
		}
		if len(body) >= 2 && body[0] == 0x1f && body[1] == 0x8b {
			t.Error("body is gzip inside gzip")
		}
	})

	t.Run("sets Vary on negotiated responses", func(t *testing.T) {
		handler := Gzip(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("vary me"))
		}))

		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if vary := rec.Header().Get("Vary"); vary != "Accept-Encoding" {
			t.Errorf("Vary = %q, want Accept-Encoding", vary)
		}
	})

	t.Run("forwards Flush to the underlying writer", func(t *testing.T) {
		handler := Gzip(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			f, ok := w.(http.Flusher)
			if !ok {
				t.Fatal("response writer does not implement http.Flusher")
			}
			_, _ = w.Write([]byte("streamed chunk"))
			f.Flush()
		}))

		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Accept-Encoding", "gzip")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if !rec.Flushed {
			t.Error("Flush did not reach the underlying writer")
		}
	})
}

func TestJSONErrors(t *testing.T) {
	decodeEnvelope := func(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
		t.Helper()
		var resp ErrorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("body is not the JSON envelope: %v (body %q)", err, rec.Body.String())
		}
		return resp
	}

	t.Run("rewrites a plain-text 404 into the envelope", func(t *testing.T) {
		handler := JSONErrors(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "404 page not found", http.StatusNotFound)
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/nope", nil))

		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		if resp := decodeEnvelope(t, rec); resp.Error != "not_found" {
			t.Errorf("error = %q, want not_found", resp.Error)
		}
	})

	t.Run("rewrites a plain-text 405 into the envelope", func(t *testing.T) {
		handler := JSONErrors(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Allow", "GET")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("DELETE", "/x", nil))

		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("status = %d, want 405", rec.Code)
		}
		if allow := rec.Header().Get("Allow"); allow != "GET" {
			t.Errorf("Allow = %q, want GET", allow)
		}
		if resp := decodeEnvelope(t, rec); resp.Error != "method_not_allowed" {
			t.Errorf("error = %q, want method_not_allowed", resp.Error)
		}
	})

	t.Run("leaves JSON error responses untouched", func(t *testing.T) {
		handler := JSONErrors(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			WriteError(w, http.StatusConflict, "conflict", "key already exists", nil)
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("POST", "/", nil))

		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", rec.Code)
		}
		resp := decodeEnvelope(t, rec)
		if resp.Error != "conflict" || resp.Message != "key already exists" {
			t.Errorf("envelope = %+v, want the handler's own envelope", resp)
		}
	})

	t.Run("leaves successful responses untouched", func(t *testing.T) {
		handler := JSONErrors(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("ok"))
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if rec.Body.String() != "ok" {
			t.Errorf("body = %q, want ok", rec.Body.String())
		}
	})
}

func TestChain(t *testing.T) {
	t.Run("applies middleware in declaration order", func(t *testing.T) {
		var order []string
		mark := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		handler := Chain(mark("outer"), mark("inner"))(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, "handler")
			}))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

		want := []string{"outer", "inner", "handler"}
		if len(order) != len(want) {
			t.Fatalf("order = %v, want %v", order, want)
		}
		for i := range want {
			if order[i] != want[i] {
				t.Fatalf("order = %v, want %v", order, want)
			}
		}
	})
}

func TestLogger(t *testing.T) {
	t.Run("records the handler status code", func(t *testing.T) {
		handler := Logger(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusMovedPermanently)
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/abc", nil))

		if rec.Code != http.StatusMovedPermanently {
			t.Errorf("status = %d, want 301", rec.Code)
		}
	})
}
