package api

import (
	"crypto/rand"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-contrib/sessions/postgres"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"mcqgenerator/internal/api/handlers"
	"mcqgenerator/internal/pipeline"
)

// StoreName is the session cookie name.
const StoreName = "mcqgenerator_session"

const sessionIDKey = "sid"

// CORSMiddleware allows the configured front end to call the API with credentials.
func CORSMiddleware(frontendURL string) gin.HandlerFunc {
	if frontendURL == "" {
		frontendURL = "http://localhost:5173"
	}
	return cors.New(cors.Config{
		AllowOrigins:     []string{frontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Content-Length", "Accept-Encoding", "X-CSRF-Token", "Authorization", "Accept", "Origin", "Cache-Control", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		log.Printf("INFO: %s %s %d %s", c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

func MaxBodySize(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}

// SessionMiddleware gives every client an anonymous session id and exposes it to the
// handlers under handlers.SessionIDKey. Must run after sessions.Sessions.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		sid, _ := session.Get(sessionIDKey).(string)
		if sid == "" {
			sid = uuid.NewString()
			session.Set(sessionIDKey, sid)
			if err := session.Save(); err != nil {
				log.Printf("WARN: Failed to save new session %s: %v", sid, err)
			}
		}
		c.Set(handlers.SessionIDKey, sid)
		c.Next()
	}
}

// NewSessionStore uses Postgres when sessionDB is non-nil and signed cookies otherwise.
// An empty secret gets a random per-process key, so sessions do not survive a restart.
func NewSessionStore(secret string, sessionDB *sql.DB) (sessions.Store, error) {
	key := []byte(secret)
	if len(key) == 0 {
		log.Println("WARN: SESSION_SECRET is not set, using a random key for this process.")
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate session key: %w", err)
		}
	}

	var store sessions.Store
	if sessionDB != nil {
		pgStore, err := postgres.NewStore(sessionDB, key)
		if err != nil {
			return nil, fmt.Errorf("create postgres session store: %w", err)
		}
		store = pgStore
	} else {
		store = cookie.NewStore(key)
	}

	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(pipeline.DefaultResultTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return store, nil
}
