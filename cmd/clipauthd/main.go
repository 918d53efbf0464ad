// Command clipauthd runs the clipauth HTTP API backed by MongoDB and Redis.
//
// Configuration comes from the environment (a .env file is loaded when
// present):
//
//	PORT                  listen port (default 8000)
//	MONGODB_URI           MongoDB connection string (required)
//	DATABASE_NAME         MongoDB database name (default clipverse)
//	REDIS_ADDR            Redis address (default localhost:6379)
//	REDIS_PASSWORD        Redis password (optional)
//	ACCESS_TOKEN_SECRET   HMAC secret for access tokens (required)
//	REFRESH_TOKEN_SECRET  HMAC secret for refresh tokens (required)
//	CORS_ORIGIN           comma-separated allowed origins
//	GCS_BUCKET            media bucket; when unset files go to ./public
//	GCS_KEY_FILE          service account key file (optional)
package main

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongooptions "go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"google.golang.org/api/option"

	clipauth "github.com/clipverse/clipauth"
	"github.com/clipverse/clipauth/httpapi"
	"github.com/clipverse/clipauth/metrics/export/prometheus"
	mongoprovider "github.com/clipverse/clipauth/provider/mongodb"
	"github.com/clipverse/clipauth/upload"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	ctx := context.Background()

	users, disconnect := openUsersCollection(ctx)
	defer disconnect()

	provider := mongoprovider.New(users)
	if err := provider.EnsureIndexes(ctx); err != nil {
		log.Fatalf("ensure user indexes: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     envOr("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis ping: %v", err)
	}

	cfg := engineConfig()

	engine, err := clipauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserProvider(provider).
		WithAuditSink(clipauth.NewJSONWriterSink(os.Stdout)).
		Build()
	if err != nil {
		log.Fatalf("build engine: %v", err)
	}
	defer engine.Close()

	server := httpapi.NewServer(engine, newUploader(ctx), httpapi.Config{
		CORSOrigins:   splitOrigins(os.Getenv("CORS_ORIGIN")),
		SecureCookies: true,
		AccessMaxAge:  cfg.JWT.AccessTTL,
		RefreshMaxAge: cfg.JWT.RefreshTTL,
	})

	router := server.Router()
	router.GET("/metrics", gin.WrapH(prometheus.NewPrometheusExporter(engine).Handler()))

	addr := ":" + envOr("PORT", "8000")
	log.Printf("clipauthd listening on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func openUsersCollection(ctx context.Context) (*mongo.Collection, func()) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		log.Fatal("MONGODB_URI is required")
	}

	serverAPI := mongooptions.ServerAPI(mongooptions.ServerAPIVersion1)
	client, err := mongo.Connect(mongooptions.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI))
	if err != nil {
		log.Fatalf("mongo connect: %v", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		log.Fatalf("mongo ping: %v", err)
	}

	db := client.Database(envOr("DATABASE_NAME", "clipverse"))
	return db.Collection("users"), func() {
		_ = client.Disconnect(context.Background())
	}
}

func engineConfig() clipauth.Config {
	cfg := clipauth.DefaultConfig()
	cfg.JWT.AccessSecret = []byte(requireEnv("ACCESS_TOKEN_SECRET"))
	cfg.JWT.RefreshSecret = []byte(requireEnv("REFRESH_TOKEN_SECRET"))
	cfg.Audit.Enabled = true
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}

func newUploader(ctx context.Context) upload.Uploader {
	bucket := os.Getenv("GCS_BUCKET")
	if bucket == "" {
		log.Println("GCS_BUCKET not set, storing media under ./public")
		return upload.NewLocalDisk("public", "/public")
	}

	var opts []option.ClientOption
	if keyFile := os.Getenv("GCS_KEY_FILE"); keyFile != "" {
		opts = append(opts, option.WithCredentialsFile(keyFile))
	}
	gcs, err := upload.NewGCS(ctx, bucket, opts...)
	if err != nil {
		log.Fatalf("gcs client: %v", err)
	}
	return gcs
}

func splitOrigins(raw string) []string {
	var out []string
	for _, origin := range strings.Split(raw, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			out = append(out, origin)
		}
	}
	return out
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("%s is required", key)
	}
	return v
}
