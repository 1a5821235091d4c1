package main

import (
	"context"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"baydelivery/db"
	"baydelivery/db/migrations"
	"baydelivery/internal/geo"
	"baydelivery/internal/handlers"
	"baydelivery/internal/pricing"
	"baydelivery/internal/vault"
	"baydelivery/internal/vision"
	"baydelivery/internal/workflow"
)

func main() {
	_ = godotenv.Load()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	connString := os.Getenv("POSTGRES_CONN")
	if connString == "" {
		log.Fatal("POSTGRES_CONN env variable is not set")
	}

	dbConn, err := sqlx.Connect("postgres", connString)
	if err != nil {
		log.Fatal("cannot connect to db", zap.Error(err))
	}
	defer dbConn.Close()

	if err := migrations.Run(); err != nil {
		log.Fatal("migrations failed", zap.Error(err))
	}

	pricingCfg, err := pricing.LoadConfig(os.Getenv("BAYDELIVERY_PRICING_CONFIG"))
	if err != nil {
		log.Fatal("cannot load pricing config", zap.Error(err))
	}
	log.Info("pricing config loaded", zap.Int("version", pricingCfg.Version))

	store := db.NewStorage(dbConn)
	flow := workflow.NewService(store)
	h := handlers.NewHandler(store, flow, pricingCfg, log)

	if key := os.Getenv("GOOGLE_MAPS_API_KEY"); key != "" {
		h.Geo = geo.NewClient(key)
	} else {
		log.Info("distance lookup disabled, GOOGLE_MAPS_API_KEY not set")
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		h.Vision = vision.NewEstimator(key)
	} else {
		log.Info("image estimation disabled, OPENAI_API_KEY not set")
	}

	if bucket := os.Getenv("VAULT_BUCKET"); bucket != "" {
		v, err := vault.New(context.Background(), vault.Config{
			Bucket:    bucket,
			Prefix:    os.Getenv("VAULT_PREFIX"),
			Region:    os.Getenv("VAULT_REGION"),
			Endpoint:  os.Getenv("VAULT_ENDPOINT"),
			KeepCount: envInt("VAULT_KEEP_COUNT"),
		})
		if err != nil {
			log.Fatal("cannot init vault", zap.Error(err))
		}
		h.Vault = v
	} else {
		log.Info("vault disabled, VAULT_BUCKET not set")
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.PingHandler)
		r.Get("/health", h.HealthHandler)

		// quoting
		r.Post("/quote", h.CalculateQuoteHandler)
		r.Get("/quotes", h.ListQuotesHandler)
		r.Get("/quotes/search", h.SearchQuotesHandler)
		r.Get("/quotes/{quoteId}", h.GetQuoteHandler)
		r.Post("/quotes/{quoteId}/decision", h.CustomerDecisionHandler)
		r.Get("/quotes/{quoteId}/request", h.GetRequestForQuoteHandler)

		// workflow
		r.Get("/requests", h.ListQuoteRequestsHandler)
		r.Get("/requests/{requestId}", h.GetQuoteRequestHandler)
		r.Post("/requests/{requestId}/admin-decision", h.AdminDecisionHandler)

		// jobs
		r.Get("/jobs", h.ListJobsHandler)
		r.Get("/jobs/{jobId}", h.GetJobHandler)
		r.Patch("/jobs/{jobId}", h.UpdateJobHandler)

		// attachments
		r.Post("/attachments", h.UploadAttachmentHandler)
		r.Get("/attachments", h.ListAttachmentsHandler)

		// backup
		r.Get("/backup/export", h.ExportBackupHandler)
		r.Post("/backup/import", h.ImportBackupHandler)
		r.Post("/backup/upload", h.UploadBackupHandler)

		// advisory collaborators
		r.Get("/distance", h.DistanceHandler)
		r.Post("/estimate", h.EstimateFromPhotosHandler)
	})

	serverAddr := os.Getenv("SERVER_ADDRESS")
	if serverAddr == "" {
		serverAddr = "0.0.0.0:8080"
	}

	log.Info("starting server", zap.String("addr", serverAddr))
	if err := http.ListenAndServe(serverAddr, r); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func envInt(name string) int {
	n, err := strconv.Atoi(os.Getenv(name))
	if err != nil {
		return 0
	}
	return n
}
