package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/Clark-Hu/movie-reviews/internal/domain"
)

var testSecret = []byte("test-secret-key-32-bytes-long!!!")

func makeToken(subject, role string, exp time.Time) string {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Role: role,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, _ := tok.SignedString(testSecret)
	return signed
}

func newVerifier() JWTVerifier { return JWTVerifier{Secret: testSecret} }

func TestJWTVerifier_ValidToken(t *testing.T) {
	tok := makeToken("user-1", "Admin", time.Now().Add(time.Hour))
	claims, err := newVerifier().Parse(tok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, err := claims.Principal()
	if err != nil {
		t.Fatalf("principal: %v", err)
	}
	if p.UserID != "user-1" || p.Role != domain.RoleAdmin {
		t.Fatalf("principal = %+v", p)
	}
}

func TestJWTVerifier_Rejects(t *testing.T) {
	valid := makeToken("user-1", "Reviewer", time.Now().Add(time.Hour))
	parts := strings.Split(valid, ".")

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}})
	unsigned, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name     string
		token    string
		verifier JWTVerifier
	}{
		{"expired", makeToken("user-1", "Reviewer", time.Now().Add(-time.Hour)), newVerifier()},
		{"wrong secret", valid, JWTVerifier{Secret: []byte("wrong-secret")}},
		{"malformed", "not.a.valid.token", newVerifier()},
		{"tampered", parts[0] + ".dGFtcGVyZWQ." + parts[2], newVerifier()},
		{"alg none", unsigned, newVerifier()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.verifier.Parse(tt.token); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestClaimsPrincipal_Invalid(t *testing.T) {
	if _, err := (&Claims{Role: "Admin"}).Principal(); err == nil {
		t.Fatalf("expected error for missing subject")
	}
	c := &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u"}, Role: "superuser"}
	if _, err := c.Principal(); err == nil {
		t.Fatalf("expected error for unknown role")
	}
}

func serve(mw func(http.Handler) http.Handler, authz string) (*httptest.ResponseRecorder, domain.Principal) {
	var seen domain.Principal
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	Authenticate(newVerifier())(mw(inner)).ServeHTTP(rr, req)
	return rr, seen
}

func passthrough(next http.Handler) http.Handler { return next }

func TestAuthenticate(t *testing.T) {
	reviewerTok := makeToken("user-42", "Reviewer", time.Now().Add(time.Hour))

	tests := []struct {
		name       string
		mw         func(http.Handler) http.Handler
		authz      string
		wantStatus int
		wantUser   string
	}{
		{"anonymous allowed", passthrough, "", http.StatusOK, ""},
		{"valid bearer", passthrough, "Bearer " + reviewerTok, http.StatusOK, "user-42"},
		{"lowercase scheme", passthrough, "bearer " + reviewerTok, http.StatusOK, "user-42"},
		{"bad scheme", passthrough, "Basic abc", http.StatusUnauthorized, ""},
		{"bad token", passthrough, "Bearer nope", http.StatusUnauthorized, ""},
		{"require user anonymous", RequireUser, "", http.StatusUnauthorized, ""},
		{"require user ok", RequireUser, "Bearer " + reviewerTok, http.StatusOK, "user-42"},
		{"require admin as reviewer", RequireAdmin, "Bearer " + reviewerTok, http.StatusForbidden, ""},
		{"require admin ok", RequireAdmin, "Bearer " + makeToken("root", "Admin", time.Now().Add(time.Hour)), http.StatusOK, "root"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, seen := serve(tt.mw, tt.authz)
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if seen.UserID != tt.wantUser {
				t.Fatalf("principal user = %q, want %q", seen.UserID, tt.wantUser)
			}
			if rr.Code == http.StatusOK && tt.wantUser == "" && seen.Role != domain.RoleReviewer {
				t.Fatalf("anonymous role = %q, want Reviewer", seen.Role)
			}
		})
	}
}
