package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/gin-gonic/gin"
	"github.com/stemsi/tubequiz/internal/model"
	"github.com/stemsi/tubequiz/internal/response"
	"github.com/stemsi/tubequiz/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeResolver struct {
	sessions map[string]*model.Session
	err      error
}

func (f *fakeResolver) CurrentSession(_ context.Context, token string) (*model.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	if s, ok := f.sessions[token]; ok {
		return s, nil
	}
	return nil, service.ErrSessionNotFound
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) response.ErrCode {
	t.Helper()
	var body response.Response
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	if body.Error == nil {
		return ""
	}
	return body.Error.Code
}

func TestRequireSession(t *testing.T) {
	uid := int64(1)
	resolver := &fakeResolver{sessions: map[string]*model.Session{
		"anon-token": {ID: "a"},
		"user-token": {ID: "u", UserID: &uid, Authenticated: true},
	}}

	r := gin.New()
	r.GET("/any", RequireSession(resolver), func(c *gin.Context) {
		c.String(http.StatusOK, GetSession(c).ID)
	})
	r.GET("/me", RequireSession(resolver), RequireLogin(), func(c *gin.Context) {
		c.String(http.StatusOK, GetSession(c).ID)
	})

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
		wantBody   string
		wantCode   response.ErrCode
	}{
		{"bearer anonymous", "/any", "Bearer anon-token", http.StatusOK, "a", ""},
		{"query token", "/any?token=user-token", "", http.StatusOK, "u", ""},
		{"missing token", "/any", "", http.StatusUnauthorized, "", response.ErrTokenRequired},
		{"unknown token", "/any", "Bearer nope", http.StatusUnauthorized, "", response.ErrSessionInvalidated},
		{"login required", "/me", "Bearer anon-token", http.StatusUnauthorized, "", response.ErrLoginRequired},
		{"logged in", "/me", "bearer user-token", http.StatusOK, "u", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantCode != "" {
				if got := errorCode(t, w); got != tt.wantCode {
					t.Errorf("code = %s, want %s", got, tt.wantCode)
				}
				return
			}
			if w.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestRequireSessionStoreError(t *testing.T) {
	r := gin.New()
	r.GET("/any", RequireSession(&fakeResolver{err: errors.New("redis down")}), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/any", nil)
	req.Header.Set("Authorization", "Bearer x")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError || errorCode(t, w) != response.ErrInternal {
		t.Errorf("status = %d body = %s", w.Code, w.Body.String())
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(3)
	r := gin.New()
	r.POST("/login", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	hit := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = ip + ":40000"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < 3; i++ {
		if code := hit("192.0.2.1"); code != http.StatusNoContent {
			t.Fatalf("request %d status = %d", i+1, code)
		}
	}
	if code := hit("192.0.2.1"); code != http.StatusTooManyRequests {
		t.Errorf("fourth request status = %d, want 429", code)
	}
	if code := hit("192.0.2.2"); code != http.StatusNoContent {
		t.Errorf("other client status = %d", code)
	}
}

func TestBrotli(t *testing.T) {
	large := strings.Repeat("quiz ", 1000)

	r := gin.New()
	r.Use(Brotli())
	r.GET("/large", func(c *gin.Context) { c.String(http.StatusOK, large) })
	r.GET("/small", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/me/export", func(c *gin.Context) { c.String(http.StatusOK, large) })

	tests := []struct {
		name      string
		path      string
		accept    string
		wantBr    bool
		wantBody  string
		upgradeWS bool
	}{
		{"large body compressed", "/large", "gzip, br", true, large, false},
		{"small body passthrough", "/small", "br", false, "ok", false},
		{"client without br", "/large", "gzip", false, large, false},
		{"export excluded", "/me/export", "br", false, large, false},
		{"websocket upgrade", "/large", "br", false, large, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.Header.Set("Accept-Encoding", tt.accept)
			if tt.upgradeWS {
				req.Header.Set("Upgrade", "websocket")
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			isBr := w.Header().Get("Content-Encoding") == "br"
			if isBr != tt.wantBr {
				t.Fatalf("Content-Encoding = %q", w.Header().Get("Content-Encoding"))
			}

			var body []byte
			var err error
			if isBr {
				body, err = io.ReadAll(brotli.NewReader(w.Body))
			} else {
				body, err = io.ReadAll(w.Body)
			}
			if err != nil {
				t.Fatal(err)
			}
			if string(body) != tt.wantBody {
				t.Errorf("body length = %d, want %d", len(body), len(tt.wantBody))
			}
		})
	}
}

func TestNoStore(t *testing.T) {
	r := gin.New()
	r.GET("/", NoStore(), func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Errorf("Cache-Control = %q", w.Header().Get("Cache-Control"))
	}
}
