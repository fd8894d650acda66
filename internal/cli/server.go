package cli

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quiz-results-service/internal/app"
	"quiz-results-service/internal/config"
	"quiz-results-service/internal/infra/memory"
	mongostore "quiz-results-service/internal/infra/mongo"
	pgstore "quiz-results-service/internal/infra/postgres"
	redisinfra "quiz-results-service/internal/infra/redis"
	transport "quiz-results-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz results API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	store, teardown, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer teardown()

	var rankings app.RankingSource
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		ttl := config.TTLDuration(cfg.Ranking.TTL, time.Minute)
		rankings = redisinfra.NewRankingCache(redisClient, store, ttl)
	} else {
		rankings = app.NewDirectRanking(store)
	}

	broker := app.NewRankingBroker()
	service := app.NewParticipantService(store, rankings, broker)

	mux := http.NewServeMux()
	transport.NewHandler(service).Register(mux)
	mux.HandleFunc("GET /ws/ranking", transport.NewWSHandler(service).ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz results API on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildStore selects the record store by config presence: Mongo when a URI
// is set, else Postgres when a URL is set, else in-memory.
func buildStore(ctx context.Context, cfg config.Config) (app.ParticipantStore, func(), error) {
	if cfg.Mongo.URI != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		client, err := mongodriver.Connect(connectCtx, options.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return nil, nil, err
		}
		if err := client.Ping(connectCtx, nil); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}

		coll := client.Database(cfg.MongoDatabase()).Collection(cfg.MongoCollection())
		store := mongostore.NewParticipantStore(coll)
		if err := store.EnsureIndexes(connectCtx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		log.Printf("connected to mongo database %q", cfg.MongoDatabase())
		return store, func() {
			_ = client.Disconnect(context.Background())
		}, nil
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return nil, nil, err
		}
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		db := bun.NewDB(sqldb, pgdialect.New())
		log.Printf("connected to postgres")
		return pgstore.NewParticipantStore(db), func() {
			_ = db.Close()
		}, nil
	}

	log.Printf("no database configured, using in-memory store")
	return memory.NewParticipantStore(), func() {}, nil
}
