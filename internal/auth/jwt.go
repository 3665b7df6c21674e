package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RoleOperator 运维角色
const RoleOperator = "operator"

// ErrGuardDisabled 未配置密钥时无法签发令牌
var ErrGuardDisabled = errors.New("auth: operator secret not configured")

// JWTService 运维令牌服务（HS256）
type JWTService struct {
	secretKey []byte
	issuer    string
	expiry    time.Duration
}

// NewJWTService 创建 JWT 服务，secret 为空时返回 nil 表示不启用校验
func NewJWTService(secretKey, issuer string) *JWTService {
	if strings.TrimSpace(secretKey) == "" {
		return nil
	}
	return &JWTService{
		secretKey: []byte(secretKey),
		issuer:    issuer,
		expiry:    12 * time.Hour,
	}
}

// OperatorClaims 运维令牌声明
type OperatorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueOperatorToken 签发运维令牌
func (s *JWTService) IssueOperatorToken(subject string, expiry time.Duration) (string, error) {
	if s == nil {
		return "", ErrGuardDisabled
	}
	if expiry <= 0 {
		expiry = s.expiry
	}

	now := time.Now()
	claims := &OperatorClaims{
		Role: RoleOperator,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("签名令牌失败: %w", err)
	}
	return tokenString, nil
}

// ValidateToken 验证并解析运维令牌
func (s *JWTService) ValidateToken(tokenString string) (*OperatorClaims, error) {
	if s == nil {
		return nil, ErrGuardDisabled
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &OperatorClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("无效的签名算法: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("解析令牌失败: %w", err)
	}

	claims, ok := token.Claims.(*OperatorClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("无效的令牌")
	}
	if claims.Role != RoleOperator {
		return nil, fmt.Errorf("令牌角色错误: %s", claims.Role)
	}
	return claims, nil
}

// ExtractTokenFromBearer 从 Bearer 令牌中提取纯令牌字符串
func ExtractTokenFromBearer(bearerToken string) string {
	const prefix = "Bearer "
	if len(bearerToken) > len(prefix) && strings.EqualFold(bearerToken[:len(prefix)], prefix) {
		return strings.TrimSpace(bearerToken[len(prefix):])
	}
	return strings.TrimSpace(bearerToken)
}
