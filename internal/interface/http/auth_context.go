package http

import (
	"github.com/gin-gonic/gin"

	"github.com/yanqian/user-accounts/internal/domain/account"
)

const authSessionKey = "auth_session"

func setSession(c *gin.Context, session account.Session) {
	c.Set(authSessionKey, session)
}

func getSession(c *gin.Context) (account.Session, bool) {
	value, ok := c.Get(authSessionKey)
	if !ok {
		return account.Session{}, false
	}
	session, ok := value.(account.Session)
	return session, ok
}
