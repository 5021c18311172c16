package middleware

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// devOrigins are the local front-end dev servers allowed outside production.
var devOrigins = []string{
	"http://localhost:5173",
	"http://localhost:5174",
	"http://localhost:3000",
}

// AllowedOrigins returns the non-empty origins plus the dev servers
// outside production.
func AllowedOrigins(production bool, origins ...string) []string {
	var allowed []string
	for _, o := range origins {
		if o != "" {
			allowed = append(allowed, o)
		}
	}
	if !production {
		allowed = append(allowed, devOrigins...)
	}
	return allowed
}

// CORS allows credentialed requests from the configured site and admin
// front ends. Empty origins are skipped.
func CORS(production bool, origins ...string) gin.HandlerFunc {
	allowed := AllowedOrigins(production, origins...)

	cfg := cors.Config{
		AllowOrigins:     allowed,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", HeaderRequestID, "x-admin-secret"},
		ExposeHeaders:    []string{HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowed) == 0 {
		// cors.New rejects an empty allowlist
		cfg.AllowOriginFunc = func(string) bool { return false }
	}
	return cors.New(cfg)
}
