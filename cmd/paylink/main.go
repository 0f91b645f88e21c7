// @title           Paylink API
// @version         1.0
// @description     Guest invoice and payment link API

// @contact.name   API Support
// @contact.email  support@smallbiznis.com

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api
// @Schemes 	http https

package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paylink/internal/audit"
	"github.com/smallbiznis/paylink/internal/cache"
	"github.com/smallbiznis/paylink/internal/clock"
	"github.com/smallbiznis/paylink/internal/config"
	"github.com/smallbiznis/paylink/internal/events"
	"github.com/smallbiznis/paylink/internal/invoice"
	"github.com/smallbiznis/paylink/internal/migration"
	"github.com/smallbiznis/paylink/internal/notify"
	"github.com/smallbiznis/paylink/internal/observability"
	"github.com/smallbiznis/paylink/internal/payment"
	"github.com/smallbiznis/paylink/internal/server"
	"github.com/smallbiznis/paylink/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		fx.Invoke(RunMigrations),

		fx.Provide(events.NewOutbox),
		fx.Provide(cache.NewCustomerIDCache),

		audit.Module,
		notify.Module,
		payment.Module,
		invoice.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

func RunMigrations(gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return err
	}
	return migration.RunMigrations(sqlDB)
}
