package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noor-academy/school-api/internal/models"
	"github.com/noor-academy/school-api/internal/service"
)

const testSecret = "middleware-test-secret"

func testAuthService() *service.AuthService {
	return service.NewAuthService(nil, nil, nil, service.AuthConfig{
		Secret:       testSecret,
		AccessExpiry: time.Minute,
		Issuer:       "school-api",
	})
}

func signTestToken(t *testing.T, userID string, role models.UserRole) string {
	t.Helper()
	claims := models.JWTClaims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func newProtectedRouter(extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handlers := append([]gin.HandlerFunc{JWT(testAuthService())}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	router.GET("/protected/:id", handlers...)
	return router
}

func TestJWTRejectsMissingHeader(t *testing.T) {
	router := newProtectedRouter()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected/x", nil)
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTRejectsMalformedToken(t *testing.T) {
	router := newProtectedRouter()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected/x", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTAcceptsValidToken(t *testing.T) {
	router := newProtectedRouter()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected/x", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, "user-1", models.RoleStaff))
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRBACAllowsRole(t *testing.T) {
	router := newProtectedRouter(RBAC("ADMIN"))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected/x", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, "user-1", models.RoleAdmin))
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRBACForbidsRole(t *testing.T) {
	router := newProtectedRouter(RBAC("ADMIN"))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected/x", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, "user-1", models.RoleTeacher))
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRBACSelfMatchesParam(t *testing.T) {
	router := newProtectedRouter(RBAC("ADMIN", "SELF"))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected/user-1", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, "user-1", models.RoleTeacher))
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/protected/user-2", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, "user-1", models.RoleTeacher))
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
