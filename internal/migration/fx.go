package migration

import (
	"github.com/smallbiznis/faktur/internal/config"
	customerdomain "github.com/smallbiznis/faktur/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/faktur/internal/invoice/domain"
	"github.com/smallbiznis/faktur/internal/sequence"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return RunMigrations(sqlDB)
		}

		// sqlite and mysql dev setups rely on AutoMigrate.
		return conn.AutoMigrate(
			&customerdomain.Customer{},
			&invoicedomain.Invoice{},
			&invoicedomain.LineItem{},
			&invoicedomain.Payment{},
			&sequence.SerialNumber{},
		)
	}),
)
