package middleware

import (
	"log"
	"strings"
	"time"

	"github.com/darecoin/backend/internal/config"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSMiddleware returns a CORS middleware configured for the environment
func CORSMiddleware(cfg *config.Config) gin.HandlerFunc {
	log.Printf("[CORS] Environment: %s, FrontendURL: %s", cfg.Environment, cfg.FrontendURL)

	corsConfig := cors.Config{
		AllowMethods: []string{
			"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin", "Content-Length", "Content-Type", "Authorization",
			"Accept", "Cache-Control", "X-Requested-With",
		},
		ExposeHeaders: []string{
			"Content-Length", "X-Total-Count",
		},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	corsConfig.AllowOrigins = AllowedOrigins(cfg)
	if len(corsConfig.AllowOrigins) == 0 {
		log.Printf("[CORS] No FRONTEND_URL set; allowing all origins without credentials")
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	} else if cfg.Environment != "development" {
		log.Printf("[CORS] Production allowed origins: %v", corsConfig.AllowOrigins)
	}

	return cors.New(corsConfig)
}

// AllowedOrigins lists the browser origins permitted to call the API.
func AllowedOrigins(cfg *config.Config) []string {
	var origins []string
	if cfg.Environment == "development" {
		origins = append(origins,
			"http://localhost:5173", // Vite dev server
			"http://127.0.0.1:5173",
			"http://localhost:3000",
		)
	}
	if u := strings.TrimRight(cfg.FrontendURL, "/"); u != "" {
		dup := false
		for _, o := range origins {
			if o == u {
				dup = true
			}
		}
		if !dup {
			origins = append(origins, u)
		}
	}
	return origins
}
