package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/counselhub/counselhub/internal/clock"
	"github.com/counselhub/counselhub/internal/config"
	"github.com/counselhub/counselhub/internal/migration"
	"github.com/counselhub/counselhub/internal/observability"
	"github.com/counselhub/counselhub/internal/scheduler"
	"github.com/counselhub/counselhub/internal/seed"
	"github.com/counselhub/counselhub/internal/server"
	"github.com/counselhub/counselhub/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		seed.Module,
		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
