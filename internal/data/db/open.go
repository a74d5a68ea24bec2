package db

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/yungbote/amicus-backend/internal/pkg/logger"
	"github.com/yungbote/amicus-backend/internal/utils"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open connects to the store selected by DB_DRIVER.
func Open(log *logger.Logger) (*gorm.DB, string, error) {
	driver := strings.ToLower(utils.GetEnv("DB_DRIVER", DriverPostgres, log))
	switch driver {
	case DriverPostgres, "pg", "postgresql":
		svc, err := NewPostgresService(log)
		if err != nil {
			return nil, DriverPostgres, err
		}
		return svc.DB(), DriverPostgres, nil
	case DriverSQLite, "sqlite3":
		svc, err := NewSQLiteService(log)
		if err != nil {
			return nil, DriverSQLite, err
		}
		return svc.DB(), DriverSQLite, nil
	default:
		return nil, driver, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}
}
