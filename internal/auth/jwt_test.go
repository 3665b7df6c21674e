package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJWTServiceDisabledWithoutSecret(t *testing.T) {
	assert.Nil(t, NewJWTService("", "curriculumhub"))
	assert.Nil(t, NewJWTService("   ", "curriculumhub"))

	var svc *JWTService
	_, err := svc.IssueOperatorToken("ops", time.Minute)
	assert.ErrorIs(t, err, ErrGuardDisabled)
}

func TestIssueAndValidate(t *testing.T) {
	svc := NewJWTService("test-secret", "curriculumhub")
	require.NotNil(t, svc)

	token, err := svc.IssueOperatorToken("ops@example.com", time.Minute)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", claims.Subject)
	assert.Equal(t, RoleOperator, claims.Role)
}

func TestValidateRejects(t *testing.T) {
	svc := NewJWTService("test-secret", "curriculumhub")

	t.Run("错误密钥", func(t *testing.T) {
		other := NewJWTService("other-secret", "curriculumhub")
		token, err := other.IssueOperatorToken("ops", time.Minute)
		require.NoError(t, err)
		_, err = svc.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("已过期", func(t *testing.T) {
		claims := &OperatorClaims{
			Role: RoleOperator,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "curriculumhub",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		_, err = svc.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("签发方不符", func(t *testing.T) {
		other := NewJWTService("test-secret", "someone-else")
		token, err := other.IssueOperatorToken("ops", time.Minute)
		require.NoError(t, err)
		_, err = svc.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("角色不符", func(t *testing.T) {
		claims := &OperatorClaims{
			Role:             "student",
			RegisteredClaims: jwt.RegisteredClaims{Issuer: "curriculumhub"},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		_, err = svc.ValidateToken(token)
		assert.Error(t, err)
	})
}

func TestExtractTokenFromBearer(t *testing.T) {
	assert.Equal(t, "abc", ExtractTokenFromBearer("Bearer abc"))
	assert.Equal(t, "abc", ExtractTokenFromBearer("bearer abc"))
	assert.Equal(t, "abc", ExtractTokenFromBearer("abc"))
}

func newGuardedRouter(svc *JWTService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ops", OperatorGuard(svc), func(c *gin.Context) {
		op, _ := GetOperator(c)
		c.String(http.StatusOK, op)
	})
	return r
}

func TestOperatorGuard(t *testing.T) {
	svc := NewJWTService("test-secret", "curriculumhub")
	router := newGuardedRouter(svc)

	t.Run("缺少令牌", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ops", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("无效令牌", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ops", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("有效令牌", func(t *testing.T) {
		token, err := svc.IssueOperatorToken("ops", time.Minute)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/ops", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ops", w.Body.String())
	})

	t.Run("未启用时放行", func(t *testing.T) {
		w := httptest.NewRecorder()
		newGuardedRouter(nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ops", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}
