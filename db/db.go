package db

import (
	"socialhub/config"
	"socialhub/models"

	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	_ "github.com/jinzhu/gorm/dialects/sqlite"
)

// Connect opens the backing store (sqlite3 by default, postgres in
// production) and migrates the schema.
func Connect(conf config.Configuration) (*gorm.DB, error) {
	var (
		database *gorm.DB
		err      error
	)

	if conf.Database == "postgres" || conf.Database == "postgresql" {
		path := "host=" + conf.DbHost + " port=" + conf.DbPort
		path += " user=" + conf.DbUser + " dbname=" + conf.DbName
		path += " password=" + conf.DbPass
		database, err = gorm.Open("postgres", path)
	} else {
		database, err = gorm.Open("sqlite3", "db/database.db")
	}
	if err != nil {
		return nil, err
	}

	if err := Migrate(database); err != nil {
		return nil, err
	}
	return database, nil
}

// Migrate creates/updates the schema. Also used by tests against an
// in-memory sqlite database.
func Migrate(database *gorm.DB) error {
	return database.AutoMigrate(
		&models.Connection{},
		&models.Conversation{},
		&models.Message{},
		&models.Template{},
		&models.WebhookEvent{},
		&models.OAuthState{},
		&models.Contact{},
	).Error
}
