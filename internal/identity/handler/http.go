package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dsqrwym/Maian-sub000/internal/identity/service"
	"github.com/dsqrwym/Maian-sub000/internal/server/middleware"
)

// PlatformHeader lets clients select the web (cookie + CSRF) flow on /auth/login.
const PlatformHeader = "X-Client-Platform"

// CookieConfig describes the HttpOnly cookie holding the web refresh token.
type CookieConfig struct {
	Name     string
	Path     string
	Domain   string
	Secure   bool
	SameSite http.SameSite
	MaxAge   time.Duration
}

// AuthHandler serves the /auth routes on top of the auth service.
type AuthHandler struct {
	svc    *service.AuthService
	cookie CookieConfig
}

// NewAuthHandler returns an AuthHandler.
func NewAuthHandler(svc *service.AuthService, cookie CookieConfig) *AuthHandler {
	return &AuthHandler{svc: svc, cookie: cookie}
}

// RegisterRoutes mounts the auth endpoints. requireAuth guards the routes that
// need a live session; logout verifies its token itself so a repeated logout
// reports SESSION_NOT_FOUND.
func (h *AuthHandler) RegisterRoutes(r gin.IRouter, requireAuth gin.HandlerFunc) {
	g := r.Group("/auth")
	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
	g.POST("/login-web", h.LoginWeb)
	g.GET("/refresh-token", h.Refresh)
	g.POST("/refresh-token-web", h.RefreshWeb)
	g.DELETE("/logout", h.Logout)

	g.GET("/me", requireAuth, h.Me)
	g.GET("/sessions", requireAuth, h.ListSessions)
	g.DELETE("/sessions/device", requireAuth, h.DeleteSession)
	g.DELETE("/sessions/:id", requireAuth, h.RevokeSession)
}

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Username string `json:"username"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email      string `json:"email"`
	Username   string `json:"username"`
	Password   string `json:"password" binding:"required"`
	DeviceName string `json:"deviceName" binding:"required"`
	UserAgent  string `json:"userAgent"`
}

type refreshWebRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type deviceRequest struct {
	DeviceName string `json:"deviceName" binding:"required"`
	UserAgent  string `json:"userAgent"`
}

type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

type sessionResponse struct {
	ID         string    `json:"id"`
	DeviceName string    `json:"deviceName"`
	UserAgent  string    `json:"userAgent"`
	LastIP     string    `json:"lastIp"`
	LastActive time.Time `json:"lastActive"`
	Revoked    bool      `json:"revoked"`
	Current    bool      `json:"current"`
}

// Register creates an account. 201 {userId}.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": MessageValidation})
		return
	}
	res, err := h.svc.Register(c.Request.Context(), service.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"userId": res.UserID})
}

// Login authenticates with email or username. Requests with
// X-Client-Platform: web get the cookie + CSRF flow.
func (h *AuthHandler) Login(c *gin.Context) {
	h.login(c, isWebClient(c))
}

// LoginWeb forces the cookie + CSRF flow.
func (h *AuthHandler) LoginWeb(c *gin.Context) {
	h.login(c, true)
}

func (h *AuthHandler) login(c *gin.Context, web bool) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": MessageValidation})
		return
	}
	in := service.LoginInput{
		Email:      req.Email,
		Username:   req.Username,
		Password:   req.Password,
		DeviceName: req.DeviceName,
		UserAgent:  req.UserAgent,
		IP:         c.ClientIP(),
	}
	if in.UserAgent == "" {
		in.UserAgent = c.Request.UserAgent()
	}
	var (
		res *service.AuthResult
		err error
	)
	if web {
		res, err = h.svc.LoginWeb(c.Request.Context(), in)
	} else {
		res, err = h.svc.Login(c.Request.Context(), in)
	}
	if err != nil {
		WriteError(c, err)
		return
	}
	if web {
		h.setRefreshCookie(c, res.CookieToken)
	}
	c.JSON(http.StatusOK, tokenResponse{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken})
}

// Refresh exchanges ?refreshToken= for a new access and refresh token.
func (h *AuthHandler) Refresh(c *gin.Context) {
	res, err := h.svc.Refresh(c.Request.Context(), c.Query("refreshToken"))
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken})
}

// RefreshWeb exchanges the refresh cookie plus body {refreshToken: csrf} for a new access token.
// A missing body counts as an empty CSRF value.
func (h *AuthHandler) RefreshWeb(c *gin.Context) {
	var req refreshWebRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"message": MessageValidation})
			return
		}
	}
	cookie, _ := c.Cookie(h.cookie.Name)
	res, err := h.svc.RefreshWeb(c.Request.Context(), cookie, req.RefreshToken)
	if err != nil {
		WriteError(c, err)
		return
	}
	if res.CookieToken != "" {
		h.setRefreshCookie(c, res.CookieToken)
	}
	c.JSON(http.StatusOK, tokenResponse{AccessToken: res.AccessToken, RefreshToken: res.RefreshToken})
}

// Logout revokes the device session of the Bearer access token and clears the web cookie.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.svc.Logout(c.Request.Context(), middleware.BearerToken(c.Request)); err != nil {
		WriteError(c, err)
		return
	}
	h.clearRefreshCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": MessageLoggedOut})
}

// Me returns the verified identity of the caller.
func (h *AuthHandler) Me(c *gin.Context) {
	p, ok := middleware.GetPayload(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": MessageTokenInvalid})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"userId":    p.UserID,
		"userRole":  p.UserRole,
		"sessionId": p.SessionID,
	})
}

// ListSessions returns the caller's sessions across devices.
func (h *AuthHandler) ListSessions(c *gin.Context) {
	p, ok := middleware.GetPayload(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": MessageTokenInvalid})
		return
	}
	list, err := h.svc.ListSessions(c.Request.Context(), p.UserID)
	if err != nil {
		WriteError(c, err)
		return
	}
	out := make([]sessionResponse, 0, len(list))
	for _, s := range list {
		out = append(out, sessionResponse{
			ID:         s.ID,
			DeviceName: s.DeviceName,
			UserAgent:  s.UserAgent,
			LastIP:     s.LastIP,
			LastActive: s.LastActive,
			Revoked:    s.Revoked,
			Current:    s.ID == p.SessionID,
		})
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

// DeleteSession hard-deletes the caller's session for the device named in the body.
func (h *AuthHandler) DeleteSession(c *gin.Context) {
	p, ok := middleware.GetPayload(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": MessageTokenInvalid})
		return
	}
	var req deviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": MessageValidation})
		return
	}
	n, err := h.svc.DeleteSession(c.Request.Context(), p.UserID, req.DeviceName, req.UserAgent)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

// RevokeSession revokes one of the caller's sessions by id, keeping the row
// listed as revoked.
func (h *AuthHandler) RevokeSession(c *gin.Context) {
	p, ok := middleware.GetPayload(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": MessageTokenInvalid})
		return
	}
	if err := h.svc.RevokeSession(c.Request.Context(), p.UserID, c.Param("id")); err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revoked": c.Param("id")})
}

func isWebClient(c *gin.Context) bool {
	return strings.EqualFold(strings.TrimSpace(c.GetHeader(PlatformHeader)), "web")
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, token string) {
	c.SetSameSite(h.cookie.SameSite)
	c.SetCookie(h.cookie.Name, token, int(h.cookie.MaxAge.Seconds()), h.cookie.Path, h.cookie.Domain, h.cookie.Secure, true)
}

func (h *AuthHandler) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(h.cookie.SameSite)
	c.SetCookie(h.cookie.Name, "", -1, h.cookie.Path, h.cookie.Domain, h.cookie.Secure, true)
}
