package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	mocks "github.com/cbodonnell/arcade/mocks/github.com/cbodonnell/arcade/pkg/auth/providers"
	authproviders "github.com/cbodonnell/arcade/pkg/auth/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		required   bool
		header     string
		query      string
		setup      func(p *mocks.AuthProvider)
		wantStatus int
		wantUser   string
	}{
		{
			name:       "anonymous",
			wantStatus: http.StatusOK,
			wantUser:   "anonymous",
		},
		{
			name:       "token required",
			required:   true,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:   "bearer token",
			header: "Bearer good",
			setup: func(p *mocks.AuthProvider) {
				p.On("VerifyToken", mock.Anything, "good").Return(&authproviders.TokenClaims{UID: "alice"}, nil)
			},
			wantStatus: http.StatusOK,
			wantUser:   "alice",
		},
		{
			name:  "query token",
			query: "?token=good",
			setup: func(p *mocks.AuthProvider) {
				p.On("VerifyToken", mock.Anything, "good").Return(&authproviders.TokenClaims{UID: "bob"}, nil)
			},
			wantStatus: http.StatusOK,
			wantUser:   "bob",
		},
		{
			name:   "rejected token",
			header: "Bearer bad",
			setup: func(p *mocks.AuthProvider) {
				p.On("VerifyToken", mock.Anything, "bad").Return(nil, authproviders.ErrInvalidToken)
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed header",
			header:     "Basic abc",
			wantStatus: http.StatusUnauthorized,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := mocks.NewAuthProvider(t)
			if tt.setup != nil {
				tt.setup(provider)
			}

			var gotUser string
			handler := NewAuthMiddleware(NewAuthMiddlewareOptions{
				AuthProvider:  provider,
				Required:      tt.required,
				AnonymousUser: "anonymous",
			})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotUser, _ = UserFromContext(r.Context())
			}))

			r := httptest.NewRequest(http.MethodGet, "/instances/1"+tt.query, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantUser, gotUser)
		})
	}
}
