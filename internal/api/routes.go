package api

import (
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/voicewire/voicewire/internal/auth"
	"github.com/voicewire/voicewire/internal/devserver"
)

// deviceSecret returns the shared secret devices present to obtain a bearer
// token. VOICEWIRE_DEVICE_SECRET overrides the development default.
func deviceSecret() string {
	if s := os.Getenv("VOICEWIRE_DEVICE_SECRET"); s != "" {
		return s
	}
	return "voicewire-dev"
}

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, srv *devserver.Server, logger *zap.Logger) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "voicewire-server",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	v1.POST("/device/auth", func(c echo.Context) error {
		return deviceAuth(c, logger)
	})

	// WebSocket endpoint; the bearer token rides in the connect URL
	e.GET("/ws", func(c echo.Context) error {
		return websocketWithAuth(srv, c, logger)
	})
}

func deviceAuth(c echo.Context, logger *zap.Logger) error {
	var req DeviceAuthRequest

	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind device auth request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if req.DeviceID == "" || req.SecretKey == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Device ID and secret key are required",
		})
	}

	if req.SecretKey != deviceSecret() {
		logger.Warn("Device authentication failed",
			zap.String("device_id", req.DeviceID))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "authentication_failed",
			Message: "Invalid device credentials",
		})
	}

	token, err := auth.GenerateDeviceToken(req.DeviceID)
	if err != nil {
		logger.Error("Failed to generate device token",
			zap.String("device_id", req.DeviceID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	// Expiration matches the JWT claims (24 hours)
	expiresAt := time.Now().Add(24 * time.Hour)

	logger.Info("Device authenticated successfully",
		zap.String("device_id", req.DeviceID))

	return c.JSON(http.StatusOK, DeviceAuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		DeviceID:  req.DeviceID,
	})
}

// websocketWithAuth validates the bearer token embedded in the connect URL
// and hands the upgraded connection to the streaming server.
func websocketWithAuth(srv *devserver.Server, c echo.Context, logger *zap.Logger) error {
	token := c.QueryParam("token")
	if token == "" {
		logger.Warn("WebSocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "Bearer token is required in the token query parameter",
		})
	}

	claims, err := auth.ValidateToken(token)
	if err != nil {
		logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired bearer token",
		})
	}

	if claims.Role != "device" {
		logger.Warn("WebSocket connection rejected: invalid role",
			zap.String("role", claims.Role))
		return c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "invalid_role",
			Message: "Only device tokens are allowed for WebSocket connections",
		})
	}

	deviceID := claims.DeviceID
	if deviceID == "" {
		logger.Error("WebSocket connection rejected: missing device ID in token")
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_token_claims",
			Message: "Device ID not found in token",
		})
	}

	logger.Info("WebSocket connection authenticated",
		zap.String("device_id", deviceID))

	return srv.Handle(c, deviceID)
}
