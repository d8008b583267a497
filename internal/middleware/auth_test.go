package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"researchblog/internal/models"
	"researchblog/internal/services"
)

type mockAuthenticator struct {
	authenticateFunc func(ctx context.Context, token string) (*services.Principal, error)
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, token string) (*services.Principal, error) {
	return m.authenticateFunc(ctx, token)
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newProtected(auth Authenticator) *gin.Engine {
	r := gin.New()
	r.GET("/me", AuthRequired(auth), func(c *gin.Context) {
		p, ok := CurrentPrincipal(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": p.ID, "role": p.Role})
	})
	return r
}

func TestAuthRequired(t *testing.T) {
	id := uuid.New()
	auth := &mockAuthenticator{authenticateFunc: func(_ context.Context, token string) (*services.Principal, error) {
		if token == "good" {
			return &services.Principal{ID: id, Role: models.RoleAdmin}, nil
		}
		return nil, services.ErrInvalidToken
	}}
	r := newProtected(auth)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"bearer without token", "Bearer ", http.StatusUnauthorized},
		{"invalid token", "Bearer bad", http.StatusUnauthorized},
		{"valid token", "Bearer good", http.StatusOK},
		{"lowercase scheme", "bearer good", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusOK {
				assert.Contains(t, w.Body.String(), id.String())
			}
		})
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	r := gin.New()
	r.Use(RequestLogger(log))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusTeapot, "x") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Contains(t, buf.String(), `"path":"/ping"`)
	assert.Contains(t, buf.String(), `"status":418`)
}
