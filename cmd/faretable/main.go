package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/transitbase/faretable/internal/migration"
	"github.com/transitbase/faretable/internal/observability"
	"github.com/transitbase/faretable/internal/server"
	"github.com/transitbase/faretable/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		server.Module,
		migration.Module,
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
