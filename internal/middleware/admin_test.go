package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupAdminRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", AdminAuth(secret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"subject": AdminSubject(c)})
	})
	return r
}

func doAdmin(r *gin.Engine, header, value string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAdminAuthSharedSecret(t *testing.T) {
	r := setupAdminRouter("s3cret")

	assert.Equal(t, http.StatusOK, doAdmin(r, "X-Admin-Secret", "s3cret").Code)
	assert.Equal(t, http.StatusUnauthorized, doAdmin(r, "X-Admin-Secret", "wrong").Code)
	assert.Equal(t, http.StatusUnauthorized, doAdmin(r, "", "").Code)
}

func TestAdminAuthBearerToken(t *testing.T) {
	r := setupAdminRouter("s3cret")

	token, err := IssueAdminToken("s3cret", "root", time.Hour, time.Now())
	require.NoError(t, err)
	rec := doAdmin(r, "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"subject":"root"}`, rec.Body.String())

	forged, err := IssueAdminToken("other", "root", time.Hour, time.Now())
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, doAdmin(r, "Authorization", "Bearer "+forged).Code)

	expired, err := IssueAdminToken("s3cret", "root", time.Hour, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, doAdmin(r, "Authorization", "Bearer "+expired).Code)

	assert.Equal(t, http.StatusUnauthorized, doAdmin(r, "Authorization", "Basic abc").Code)
}

func TestAdminAuthDisabledWithoutSecret(t *testing.T) {
	r := setupAdminRouter("")
	assert.Equal(t, http.StatusServiceUnavailable, doAdmin(r, "X-Admin-Secret", "").Code)

	_, err := IssueAdminToken("", "root", time.Hour, time.Now())
	assert.Error(t, err)
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(zap.NewNop()))
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(RequestIDKey))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, rec.Header().Get("X-Request-ID"), rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Body.String())
}
