package server

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/spinwheel/internal/observability/context"
	"github.com/smallbiznis/spinwheel/internal/ratelimit"
	sessiondomain "github.com/smallbiznis/spinwheel/internal/session/domain"
	spindomain "github.com/smallbiznis/spinwheel/internal/spin/domain"
)

const defaultSessionCookie = "sid"

// Spin allocates one outcome to the caller's session.
func (s *Server) Spin(c *gin.Context) {
	sid, err := s.ensureSession(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	fingerprint := ratelimit.Fingerprint(c.ClientIP())
	ctx := obscontext.WithFingerprint(c.Request.Context(), fingerprint)
	c.Request = c.Request.WithContext(ctx)

	result, err := s.spinSvc.Run(ctx, spindomain.RunRequest{
		SessionID:   sid,
		Fingerprint: fingerprint,
		EventSlug:   s.cfg.EventSlug,
	})
	if err != nil {
		var limited *spindomain.RateLimitedError
		if errors.As(err, &limited) {
			writeRateLimitHeaders(c, limited)
		}
		AbortWithError(c, err)
		return
	}

	outcome := "message"
	if result.IsPrize {
		outcome = "prize"
	}
	c.Set(obscontext.SpinOutcomeKey, outcome)
	c.JSON(http.StatusOK, result)
}

// Status reports whether tangible prizes remain for the configured event.
func (s *Server) Status(c *gin.Context) {
	status, err := s.spinSvc.Status(c.Request.Context(), s.cfg.EventSlug)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// ensureSession returns the caller's session token, minting and setting a
// new cookie when the request carries none.
func (s *Server) ensureSession(c *gin.Context) (string, error) {
	name := s.sessionCookieName()
	if sid, err := c.Cookie(name); err == nil && strings.TrimSpace(sid) != "" {
		return strings.TrimSpace(sid), nil
	}

	sid, err := sessiondomain.NewToken()
	if err != nil {
		return "", err
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, sid, 0, "/", "", s.cfg.SessionCookieSecure, true)
	return sid, nil
}

func (s *Server) sessionCookieName() string {
	if name := strings.TrimSpace(s.cfg.SessionCookieName); name != "" {
		return name
	}
	return defaultSessionCookie
}

func writeRateLimitHeaders(c *gin.Context, limited *spindomain.RateLimitedError) {
	retry := int(math.Ceil(limited.RetryAfter.Seconds()))
	if retry < 1 {
		retry = 1
	}
	c.Header("Retry-After", strconv.Itoa(retry))
	c.Header("X-RateLimit-Limit", strconv.Itoa(limited.Limit))
	c.Header("X-RateLimit-Remaining", "0")
	c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(limited.RetryAfter).Unix(), 10))
}
