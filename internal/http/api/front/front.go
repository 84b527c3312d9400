package front

import (
	"errors"

	"github.com/gin-gonic/gin"
	apihttp "github.com/taskvip/walletcore/internal/http"
	"github.com/taskvip/walletcore/internal/http/api"
	"github.com/taskvip/walletcore/internal/http/api/front/handlers"
	"github.com/taskvip/walletcore/internal/models"
	"github.com/taskvip/walletcore/internal/security"
	"gorm.io/gorm"
)

// RegisterFrontRoutes registers the authenticated user routes.
func RegisterFrontRoutes(r *gin.Engine, svc api.Services) {
	if r == nil || svc.DB == nil {
		return
	}

	front := r.Group("/v0/front")
	auth := userAuthenticator(svc.DB, svc.JWT.UserSecret)

	authed := front.Group("")
	authed.Use(apihttp.AccessAuthMiddleware(auth, false))

	profileHandler := handlers.NewProfileHandler(svc.DB)
	authed.GET("/profile", profileHandler.Get)

	walletHandler := handlers.NewWalletHandler(svc.Ledger, svc.Currency)
	authed.GET("/wallet/balance", walletHandler.Balance)
	authed.GET("/wallet/transactions", walletHandler.Transactions)

	withdrawalHandler := handlers.NewWithdrawalHandler(svc.Withdrawals)
	authed.POST("/withdrawals", withdrawalHandler.Create)
	authed.GET("/withdrawals", withdrawalHandler.List)
	authed.GET("/withdrawals/:id", withdrawalHandler.Get)
	authed.POST("/withdrawals/:id/cancel", withdrawalHandler.Cancel)

	vipHandler := handlers.NewVIPHandler(svc.VIP, svc.Registry, svc.AutoAssignVIP)
	authed.GET("/vip", vipHandler.Status)
	authed.GET("/vip/plans", vipHandler.Plans)
	authed.POST("/vip/subscribe", vipHandler.Subscribe)

	notificationHandler := handlers.NewNotificationHandler(svc.Notifications, svc.Hub)
	authed.GET("/notifications", notificationHandler.List)
	authed.POST("/notifications/:id/read", notificationHandler.MarkRead)

	// Browsers cannot set headers on websocket upgrades.
	stream := front.Group("")
	stream.Use(apihttp.AccessAuthMiddleware(auth, true))
	stream.GET("/notifications/ws", notificationHandler.Stream)
}

// userAuthenticator validates user JWTs and loads the user into context.
func userAuthenticator(db *gorm.DB, secret string) apihttp.Authenticator {
	return func(c *gin.Context, token string) error {
		claims, errJWT := security.ParseUserToken(secret, token)
		if errJWT != nil {
			return apihttp.ErrInvalidCredential
		}

		var user models.User
		if errFind := db.WithContext(c.Request.Context()).Select("id", "disabled").First(&user, claims.UserID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return apihttp.ErrInvalidCredential
			}
			return errFind
		}
		if user.Disabled {
			return apihttp.ErrAccountDisabled
		}

		c.Set("userID", user.ID)
		return nil
	}
}
