package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"taskhub/internal/domain"
)

const (
	// AccessTokenCookie carries the session token. It is the only credential
	// transport; the Authorization header is ignored.
	AccessTokenCookie = "accessToken"

	callerKey = "taskhub.caller"
)

// requireAuth verifies the session cookie and stores the caller in the context.
// A missing cookie is 401; a present but invalid or expired one is 403.
func (h *Handler) requireAuth(c *gin.Context) {
	token, _ := c.Cookie(AccessTokenCookie)
	claims, err := h.tokens.Verify(token)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Set(callerKey, claims.Caller())
	c.Next()
}

func callerFrom(c *gin.Context) (domain.Caller, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return domain.Caller{}, false
	}
	caller, ok := v.(domain.Caller)
	return caller, ok
}

// mustCaller is only used behind requireAuth.
func mustCaller(c *gin.Context) domain.Caller {
	caller, _ := callerFrom(c)
	return caller
}

func (h *Handler) setSessionCookie(c *gin.Context, token string, expiresAt time.Time) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     AccessTokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(h.tokens.TTL() / time.Second),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSessionCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     AccessTokenCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
