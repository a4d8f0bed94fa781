package main

import (
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"socialhub/config"
	"socialhub/db"
	"socialhub/router"
	"socialhub/workers"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Get()
	logger := config.GetLogger()

	database, err := db.Connect(cfg)
	if err != nil {
		logger.Fatalf("database connect: %v", err)
	}
	defer database.Close()

	r := gin.New()
	r.Use(db.SetDBtoContext(database))
	router.Initialize(r, cfg)

	workers.StartWebhookReplay(database)

	logger.Infof("socialhub listening on :%s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatalf("server: %v", err)
	}
}
