// Package api holds what the front and admin route groups share.
package api

import (
	"github.com/taskvip/walletcore/internal/config"
	"github.com/taskvip/walletcore/internal/ledger"
	"github.com/taskvip/walletcore/internal/notify"
	"github.com/taskvip/walletcore/internal/registry"
	"github.com/taskvip/walletcore/internal/vip"
	"github.com/taskvip/walletcore/internal/withdrawal"
	"github.com/taskvip/walletcore/internal/ws"
	"gorm.io/gorm"
)

// Services are the wired core components handlers call into.
type Services struct {
	DB            *gorm.DB
	JWT           config.JWTConfig
	Ledger        *ledger.Store
	VIP           *vip.Tracker
	Registry      *registry.Registry
	Withdrawals   *withdrawal.Service
	Notifications *notify.GormEmitter
	Hub           *ws.Hub
	Currency      string
	AutoAssignVIP bool // Default for the AUTO_ASSIGN_VIP setting.
}
