package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/MNhat168/careerhub/internal/clock"
	"github.com/MNhat168/careerhub/internal/config"
	"github.com/MNhat168/careerhub/internal/logger"
	"github.com/MNhat168/careerhub/internal/migration"
	"github.com/MNhat168/careerhub/internal/server"
	"github.com/MNhat168/careerhub/pkg/db"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
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
