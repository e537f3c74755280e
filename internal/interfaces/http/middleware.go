package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/adnan4498/infinitum-crm-server/internal/application/service"
	"github.com/adnan4498/infinitum-crm-server/internal/domain/entity"
)

const principalKey = "principal"

// authMiddleware resolves the bearer token to a principal and aborts with
// 403 when the token is missing, invalid or belongs to a deactivated user.
func authMiddleware(authService service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, Response{
				Success: false,
				Message: "authentication required",
				Error:   "missing bearer token",
			})
			return
		}

		principal, err := authService.ResolvePrincipal(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, Response{
				Success: false,
				Message: "authentication failed",
				Error:   "invalid or expired token",
			})
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// mustPrincipal returns the principal set by authMiddleware.
func mustPrincipal(c *gin.Context) entity.Principal {
	return c.MustGet(principalKey).(entity.Principal)
}

// loginHandler authenticates by email/password and issues a token.
func (s *Server) loginHandler() gin.HandlerFunc {
	type loginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, Response{
				Success: false,
				Message: "invalid request body",
				Error:   err.Error(),
			})
			return
		}

		token, user, err := s.authService.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			if err == service.ErrInvalidCredentials {
				c.JSON(http.StatusForbidden, Response{
					Success: false,
					Message: "login failed",
					Error:   "invalid credentials",
				})
				return
			}
			respondError(c, s.logger, err, "login failed")
			return
		}

		c.JSON(http.StatusOK, Response{
			Success: true,
			Message: "login successful",
			Data: gin.H{
				"token": token,
				"user":  user,
			},
		})
	}
}
