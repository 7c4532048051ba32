package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/user-accounts/internal/domain/account"
)

const unauthorizedMessage = "please authenticate"

// authMiddleware resolves the bearer token to an account with a live session.
// Every failure is answered with the same 401 body.
func authMiddleware(svc account.Service, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", unauthorizedMessage, nil))
			return
		}
		session, err := svc.Authenticate(c.Request.Context(), token)
		if err != nil {
			if cause := errors.Unwrap(err); cause != nil {
				logger.Error("session lookup failed", "path", c.Request.URL.Path, "error", cause)
			}
			abortWithError(c, NewHTTPError(http.StatusUnauthorized, "unauthorized", unauthorizedMessage, err))
			return
		}
		setSession(c, session)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
