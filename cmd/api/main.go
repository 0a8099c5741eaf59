package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	apiconfig "property_appraisal/pkg/api/config"
	"property_appraisal/pkg/api/valuation"
	"property_appraisal/pkg/core/config"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	config.LoadEnv()
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("[FATAL] %v", err)
	}

	worksheets := valuation.NewHandler(cfg)
	defer worksheets.Close()

	router := newRouter(cfg, worksheets)

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	fmt.Printf("API server starting on %s...\n", addr)
	fmt.Println("  - GET    /api/config")
	fmt.Println("  - POST   /api/worksheets")
	fmt.Println("  - GET    /api/worksheets/:id")
	fmt.Println("  - PUT    /api/worksheets/:id/cells")
	fmt.Println("  - PUT    /api/worksheets/:id/surveys")
	fmt.Println("  - PUT    /api/worksheets/:id/rows")
	fmt.Println("  - GET    /api/worksheets/:id/report")
	fmt.Println("  - DELETE /api/worksheets/:id")
	fmt.Println("  - GET    /metrics")

	if err := http.ListenAndServe(addr, router); err != nil {
		fmt.Printf("[FATAL] Server failed to start: %v\n", err)
		os.Exit(1)
	}
}

func newRouter(cfg config.Config, worksheets *valuation.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), cors())

	api := router.Group("/api")
	api.GET("/config", apiconfig.NewHandler(cfg).HandleConfig)
	valuation.RegisterRoutes(api, worksheets)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}

// cors allows the local front end to call the API.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}
