package database

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/marketconnect/llm-council/app/domain/entities"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"k8s.io/klog/v2"
)

// InitDB opens the provider registry database and migrates its schema.
// dbType is "mysql" or anything else for SQLite.
func InitDB(dbType, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch dbType {
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s registry database: %w", dbType, err)
	}

	if err := db.AutoMigrate(&entities.Provider{}); err != nil {
		return nil, fmt.Errorf("failed to migrate registry schema: %w", err)
	}
	klog.V(4).Infof("provider registry ready: type=%s", dbType)
	return db, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
