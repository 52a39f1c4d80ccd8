package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jmehdipour/leadsync/internal/dispatcher"
)

func TestHTTPLookupClassifies(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		want      Outcome
		wantEmail string
	}{
		{"found", 200, `{"data":[{"email":"jane@example.com"}]}`, Found, "jane@example.com"},
		{"no record", 200, `{"data":[]}`, Absent, ""},
		{"empty email", 200, `{"data":[{"email":""}]}`, Absent, ""},
		{"rate limited", 429, `{"error":"slow down"}`, RateLimited, ""},
		{"server error", 503, ``, Transient, ""},
		{"not found", 404, ``, Fatal, ""},
		{"unauthorized", 401, ``, Fatal, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.URL.Query().Get("user_id"); got != "1001" {
					t.Errorf("user_id = %q, want 1001", got)
				}
				if got := r.Header.Get("Authorization"); got != "Bearer tok" {
					t.Errorf("Authorization = %q, want Bearer tok", got)
				}
				if got := r.Header.Get("X-API-KEY"); got != "crm-key" {
					t.Errorf("X-API-KEY = %q, want crm-key", got)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			lk := NewHTTPLookup(srv.URL+"/email-by-id", "crm-key", time.Second)
			res := lk.Lookup(context.Background(), &dispatcher.Credential{Name: "cred-0", Token: "tok"}, "1001")

			if res.Outcome != tt.want {
				t.Errorf("Outcome = %v, want %v (err=%v)", res.Outcome, tt.want, res.Err)
			}
			if res.Email != tt.wantEmail {
				t.Errorf("Email = %q, want %q", res.Email, tt.wantEmail)
			}
		})
	}
}

func TestHTTPLookupNetworkErrorIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	lk := NewHTTPLookup(addr, "", time.Second)
	res := lk.Lookup(context.Background(), &dispatcher.Credential{Token: "tok"}, "1")
	if res.Outcome != Fatal {
		t.Errorf("Outcome = %v, want fatal (err=%v)", res.Outcome, res.Err)
	}
}
