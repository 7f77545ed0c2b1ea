package handler

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/appraisal-ops/field-scheduler/backend/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

const tokenCookieName = "__field_scheduler_token"

// AuthClaims 外部认证服务签发的令牌。评估师的 Subject 是其资源 ID
type AuthClaims struct {
	OrganizationID int64  `json:"org"`
	Role           string `json:"role"`
	jwt.RegisteredClaims
}

var errMissingToken = errors.New("missing token")

// tokenFromRequest 优先读取 Authorization 头，其次读取 cookie
func tokenFromRequest(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			return "", errMissingToken
		}
		return token, nil
	}

	cookie, err := r.Cookie(tokenCookieName)
	if err != nil {
		return "", errMissingToken
	}
	return cookie.Value, nil
}

func (h *Handler) parseToken(tokenString string) (*AuthClaims, error) {
	claims := &AuthClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(h.config.JWT.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(h.config.JWT.Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	if claims.OrganizationID <= 0 || claims.Role == "" {
		return nil, errors.New("token is missing organization or role")
	}
	return claims, nil
}

// approvers 可以审批可用性记录的角色
var approvers = []domain.Role{domain.RoleAdmin, domain.RoleManager}

// canActFor 评估师只能操作自己的资源，其他角色不受限制
func canActFor(r *http.Request, resourceID int64) bool {
	if roleOf(r) != domain.RoleAppraiser {
		return true
	}
	sub, err := strconv.ParseInt(subjectOf(r), 10, 64)
	return err == nil && sub == resourceID
}

func canApprove(r *http.Request) bool {
	return slices.Contains(approvers, roleOf(r))
}
