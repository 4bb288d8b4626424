package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"

	"github.com/nextshop/commerce-api/internal/router"
	"github.com/nextshop/commerce-api/pkg/global"
	"github.com/nextshop/commerce-api/pkg/mongo"
	"github.com/nextshop/commerce-api/pkg/tasks"
)

func main() {

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	mongo.InitMongoDB()
	mongo.EnsureIndexesOnStartup()

	router.InitEngine()
	router.InitServices()
	router.InitializeRoutes()

	go runWorker()

	port := global.GetEnvOrDefault("PORT", "8000")
	log.Printf("Server is running on port %s", port)

	if err := router.Router.Run(":" + port); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}

// runWorker consumes the background task topic in-process. Emails and
// ops notices never block a request handler.
func runWorker() {
	sender := tasks.NewEmailSenderFromEnv()

	worker := tasks.NewWorkerFromEnv()
	worker.Handle(tasks.KindOrderConfirmationEmail, tasks.OrderConfirmationHandler(sender))
	worker.Handle(tasks.KindStockShortfallNotice, tasks.StockShortfallHandler(sender))
	worker.Run(context.Background())
}
