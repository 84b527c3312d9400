// Package admin wires the manager-facing HTTP routes.
package admin

import (
	"errors"

	"github.com/gin-gonic/gin"
	apihttp "github.com/taskvip/walletcore/internal/http"
	"github.com/taskvip/walletcore/internal/http/api"
	"github.com/taskvip/walletcore/internal/http/api/admin/handlers"
	"github.com/taskvip/walletcore/internal/http/api/admin/permissions"
	"github.com/taskvip/walletcore/internal/models"
	"github.com/taskvip/walletcore/internal/security"
	"gorm.io/gorm"
)

// RegisterAdminRoutes registers the manager routes under /v0/admin.
func RegisterAdminRoutes(r *gin.Engine, svc api.Services) {
	if r == nil || svc.DB == nil {
		return
	}

	authed := r.Group("/v0/admin")
	authed.Use(apihttp.AccessAuthMiddleware(managerAuthenticator(svc.DB, svc.JWT.ManagerSecret), false))
	authed.Use(managerPermissionMiddleware(svc.DB))

	withdrawalHandler := handlers.NewWithdrawalHandler(svc.Withdrawals)
	authed.GET("/withdrawals", withdrawalHandler.List)
	authed.GET("/withdrawals/:id", withdrawalHandler.Get)
	authed.POST("/withdrawals/:id/transition", withdrawalHandler.Transition)
	authed.POST("/withdrawals/:id/reconcile", withdrawalHandler.Reconcile)

	managerHandler := handlers.NewManagerHandler(svc.Registry)
	authed.DELETE("/managers/:id", managerHandler.Delete)
	authed.POST("/managers/:id/assignments", managerHandler.Assign)
	authed.DELETE("/managers/:id/assignments/:user_id", managerHandler.Unassign)
	authed.GET("/managers/:id/capacity", managerHandler.Capacity)
	authed.POST("/vips/:user_id/auto-assign", managerHandler.AutoAssign)

	ledgerHandler := handlers.NewUserLedgerHandler(svc.Ledger, svc.VIP)
	authed.POST("/users/:id/task-rewards", ledgerHandler.TaskReward)
	authed.POST("/users/:id/monthly-returns", ledgerHandler.MonthlyReturn)
	authed.GET("/users/:id/balance", ledgerHandler.Balance)

	settingsHandler := handlers.NewSettingsHandler(svc.DB)
	authed.GET("/settings", settingsHandler.Get)
	authed.PUT("/settings", settingsHandler.Put)

	permissionHandler := handlers.NewPermissionHandler()
	authed.GET("/permissions", permissionHandler.List)
}

// RegisterHealthRoutes registers unauthenticated probes.
func RegisterHealthRoutes(r *gin.Engine, db *gorm.DB) {
	if r == nil || db == nil {
		return
	}
	healthHandler := handlers.NewHealthHandler(db)
	r.GET("/healthz", healthHandler.Healthz)
}

// managerAuthenticator validates manager JWTs and loads the manager into context.
func managerAuthenticator(db *gorm.DB, secret string) apihttp.Authenticator {
	return func(c *gin.Context, token string) error {
		claims, errJWT := security.ParseManagerToken(secret, token)
		if errJWT != nil {
			return apihttp.ErrInvalidCredential
		}

		var manager models.Manager
		if errFind := db.WithContext(c.Request.Context()).Select("id", "active", "permissions", "is_super_admin").First(&manager, claims.ManagerID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return apihttp.ErrInvalidCredential
			}
			return errFind
		}
		if !manager.Active {
			return apihttp.ErrAccountDisabled
		}

		c.Set("managerID", manager.ID)
		c.Set("managerPermissions", permissions.ParsePermissions(manager.Permissions))
		c.Set("managerIsSuperAdmin", manager.IsSuperAdmin)
		return nil
	}
}
