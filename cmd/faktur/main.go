package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/faktur/internal/config"
	"github.com/smallbiznis/faktur/internal/customer"
	"github.com/smallbiznis/faktur/internal/entitylock"
	"github.com/smallbiznis/faktur/internal/invoice"
	"github.com/smallbiznis/faktur/internal/migration"
	"github.com/smallbiznis/faktur/internal/providers/email"
	"github.com/smallbiznis/faktur/internal/providers/pdf"
	"github.com/smallbiznis/faktur/internal/reporting"
	"github.com/smallbiznis/faktur/internal/sequence"
	"github.com/smallbiznis/faktur/internal/server"
	"github.com/smallbiznis/faktur/pkg/db"
	"github.com/smallbiznis/faktur/pkg/log"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		log.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		entitylock.Module,

		// Providers
		email.Module,
		pdf.Module,

		// Functional domains
		customer.Module,
		invoice.Module,
		sequence.Module,
		reporting.Module,

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
