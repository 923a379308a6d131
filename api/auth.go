package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"tablebot/config"
	"tablebot/middleware"
)

// AuthController operator login
type AuthController struct {
	cfg *config.Config
	log *zap.Logger
}

// NewAuthController creates the auth controller.
func NewAuthController(cfg *config.Config, log *zap.Logger) *AuthController {
	return &AuthController{cfg: cfg, log: log.With(zap.String("component", "auth"))}
}

// Login exchanges the operator credentials for a token.
func (c *AuthController) Login(ctx *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	if c.cfg.OpsPasswordHash == "" {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "operator login is not configured"})
		return
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(c.cfg.OpsUsername)) == 1
	passErr := bcrypt.CompareHashAndPassword([]byte(c.cfg.OpsPasswordHash), []byte(req.Password))
	if !userOK || passErr != nil {
		c.log.Info("rejected operator login", zap.String("username", req.Username), zap.String("ip", ctx.ClientIP()))
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
		return
	}

	token, err := middleware.GenerateToken(c.cfg.JWTSecret, req.Username, c.cfg.JWTExpiry)
	if err != nil {
		c.log.Error("sign token", zap.Error(err))
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"message":  "login successful",
		"username": req.Username,
		"token":    token,
	})
}
