package main

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"together.backend/internal/interfaces/http/handlers"
)

type routeDeps struct {
	connectionHandler  *handlers.ConnectionHandler
	attestationHandler *handlers.AttestationHandler
}

func registerAPIV1Routes(r *gin.Engine, d routeDeps) {
	v1 := r.Group("/api/v1")
	{
		v1.POST("/connections", d.connectionHandler.SubmitIntent)

		users := v1.Group("/users")
		{
			users.GET("/:address/pending", d.connectionHandler.GetPending)
			users.GET("/:address/connections", d.connectionHandler.GetConnections)
			users.GET("/:address/strength", d.attestationHandler.GetStrengths)
		}

		v1.GET("/attestations/:address", d.attestationHandler.ListAttestations)
	}
}

func registerHealthRoute(r *gin.Engine, db *sql.DB) {
	r.GET("/health", func(c *gin.Context) {
		status := "ok"
		code := http.StatusOK
		if db != nil {
			if err := db.Ping(); err != nil {
				status = "degraded"
				code = http.StatusServiceUnavailable
			}
		}
		c.JSON(code, gin.H{"status": status})
	})
}

func registerMetricsRoute(r *gin.Engine) {
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
