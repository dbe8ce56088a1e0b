package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/smallbiznis/branchledger/internal/clock"
	"github.com/smallbiznis/branchledger/internal/cloud"
	"github.com/smallbiznis/branchledger/internal/config"
	"github.com/smallbiznis/branchledger/internal/health"
	"github.com/smallbiznis/branchledger/internal/observability"
	"github.com/smallbiznis/branchledger/internal/pos"
	"github.com/smallbiznis/branchledger/internal/replicator"
	"github.com/smallbiznis/branchledger/internal/server"
	"github.com/smallbiznis/branchledger/internal/status"
	"github.com/smallbiznis/branchledger/internal/tenant"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		clock.Module,

		// Stores
		tenant.Module,
		cloud.Module,

		// Functional domains
		pos.Module,
		replicator.Module,
		health.Module,
		status.Module,

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
