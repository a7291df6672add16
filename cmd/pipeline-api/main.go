package main

import (
	"log"

	"orders-pipeline/internal/api"
	"orders-pipeline/internal/api/handler"
	"orders-pipeline/internal/config"
	"orders-pipeline/internal/pipeline"
	"orders-pipeline/internal/source"
	"orders-pipeline/internal/store"
	"orders-pipeline/pkg/logger"
	"orders-pipeline/pkg/router"
)

// @title Orders Pipeline API
// @version 1.0
// @description Batch ETL pipeline for transactional order records
// @BasePath /api/v1
func main() {
	cfg := config.Load()

	st, err := store.Open(cfg.Store.Path, logger.New("store"))
	if err != nil {
		log.Fatal(err)
	}
	defer st.Close()

	reader := source.NewCSVReader(logger.New("source"))
	p := pipeline.New(cfg, st, reader, logger.New("pipeline"))
	h := handler.New(cfg, st, p, logger.New("api"))

	r := router.New()
	api.RegisterRoutes(r, h)

	if err := r.Start(cfg.API.Addr); err != nil {
		log.Fatal(err)
	}
}
