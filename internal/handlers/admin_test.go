package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"chat-relay/internal/directory"
	"chat-relay/internal/middleware"
	"chat-relay/internal/mocks"
	"chat-relay/internal/models"
	"chat-relay/internal/telemetry"
)

const testAdminSecret = "s3cret"

func setupAdminRouter(dir Directory, publisher *mocks.PublisherMock) *gin.Engine {
	r := newTestEngine()
	var emitter *telemetry.AuditEmitter
	if publisher != nil {
		emitter = telemetry.NewAuditEmitter(publisher, "audit.chat", "chat-relay", "test", nil)
	}
	h := NewAdminHandler(dir, AdminConfig{Username: "root", Secret: testAdminSecret, TokenTTL: time.Hour}, emitter, nil)

	r.POST("/api/admin/login", h.Login)
	admin := r.Group("/api/admin", middleware.AdminAuth(testAdminSecret))
	admin.POST("/create-user", h.CreateUser)
	admin.GET("/users", h.ListUsers)
	admin.POST("/user/activate", h.Activate)
	admin.POST("/user/deactivate", h.Deactivate)
	admin.DELETE("/user/remove", h.RemoveUser)
	return r
}

func doAdminJSON(r *gin.Engine, method, path, body, token string) *httptest.ResponseRecorder {
	req := newJSONRequest(method, path, body)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else {
		req.Header.Set("X-Admin-Secret", testAdminSecret)
	}
	return serve(r, req)
}

func TestAdminLoginIssuesUsableToken(t *testing.T) {
	dir := new(mocks.DirectoryMock)
	r := setupAdminRouter(dir, nil)

	rec := doJSON(r, http.MethodPost, "/api/admin/login", `{"username":"root","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(r, http.MethodPost, "/api/admin/login", `{"username":"root","password":"`+testAdminSecret+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	token, _ := decodeBody(t, rec)["token"].(string)
	require.NotEmpty(t, token)

	dir.On("ListUsers", mock.Anything).Return([]models.AccountSummary{{Username: "alice", Status: "active"}}, nil).Once()
	rec = doAdminJSON(r, http.MethodGet, "/api/admin/users", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	users := decodeBody(t, rec)["users"].([]any)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].(map[string]any)["username"])
	dir.AssertExpectations(t)
}

func TestAdminRoutesRejectMissingCredentials(t *testing.T) {
	r := setupAdminRouter(new(mocks.DirectoryMock), nil)

	rec := doJSON(r, http.MethodGet, "/api/admin/users", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(r, http.MethodPost, "/api/admin/create-user", `{"username":"x","password":"y","adminPassword":"`+testAdminSecret+`"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminCreateUserReturnsInviteLink(t *testing.T) {
	dir := new(mocks.DirectoryMock)
	publisher := new(mocks.PublisherMock)
	r := setupAdminRouter(dir, publisher)

	dir.On("Create", mock.Anything, "dave", "pw", "dave@mail.org").Return("tok-dave", nil).Once()
	dir.On("Create", mock.Anything, "dave", "pw", "").Return("", directory.ErrAlreadyExists).Once()
	publisher.On("Publish", mock.Anything, "audit.chat", mock.MatchedBy(func(env telemetry.AuditEnvelope) bool {
		return env.Payload.Target == "dave" && env.Actor != nil && *env.Actor == "secret"
	})).Return(nil).Once()

	req := newJSONRequest(http.MethodPost, "/api/admin/create-user", `{"username":"dave","password":"pw","email":"dave@mail.org"}`)
	req.Host = "chat.local"
	req.Header.Set("X-Admin-Secret", testAdminSecret)
	rec := serve(r, req)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody(t, rec)
	assert.Equal(t, "tok-dave", resp["inviteToken"])
	assert.Equal(t, "http://chat.local/invite.html?token=tok-dave", resp["inviteLink"])

	rec = doAdminJSON(r, http.MethodPost, "/api/admin/create-user", `{"username":"dave","password":"pw"}`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User already exists", decodeBody(t, rec)["msg"])

	dir.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestAdminStatusAndRemove(t *testing.T) {
	dir := new(mocks.DirectoryMock)
	r := setupAdminRouter(dir, nil)

	dir.On("SetStatus", mock.Anything, "alice", models.StatusInactive).Return(nil).Once()
	dir.On("SetStatus", mock.Anything, "alice", models.StatusActive).Return(nil).Once()
	dir.On("SetStatus", mock.Anything, "ghost", models.StatusActive).Return(directory.ErrNotFound).Once()
	dir.On("Remove", mock.Anything, "alice").Return(nil).Once()
	dir.On("Remove", mock.Anything, "ghost").Return(directory.ErrNotFound).Once()

	assert.Equal(t, http.StatusOK, doAdminJSON(r, http.MethodPost, "/api/admin/user/deactivate", `{"username":"alice"}`, "").Code)
	assert.Equal(t, http.StatusOK, doAdminJSON(r, http.MethodPost, "/api/admin/user/activate", `{"username":"alice"}`, "").Code)
	assert.Equal(t, http.StatusNotFound, doAdminJSON(r, http.MethodPost, "/api/admin/user/activate", `{"username":"ghost"}`, "").Code)
	assert.Equal(t, http.StatusBadRequest, doAdminJSON(r, http.MethodPost, "/api/admin/user/activate", `{}`, "").Code)
	assert.Equal(t, http.StatusOK, doAdminJSON(r, http.MethodDelete, "/api/admin/user/remove", `{"username":"alice"}`, "").Code)
	assert.Equal(t, http.StatusNotFound, doAdminJSON(r, http.MethodDelete, "/api/admin/user/remove", `{"username":"ghost"}`, "").Code)

	dir.AssertExpectations(t)
}
