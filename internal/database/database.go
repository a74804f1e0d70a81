package database

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bookstore_back_end/internal/config"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/gocql/gocql"
	_ "github.com/lib/pq"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
)

//go:embed migrations.sql
var migrationSQL string

//go:embed ledger.cql
var ledgerCQL string

// =============================================
// POSTGRES
// =============================================

func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("ouverture postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	slog.Info("✅ Connecté à PostgreSQL")
	return db, nil
}

// Migrate applique le schéma embarqué ; toutes les instructions sont idempotentes.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, migrationSQL); err != nil {
		return fmt.Errorf("migrations postgres: %w", err)
	}
	slog.Info("migrations postgres appliquées")
	return nil
}

// =============================================
// REDIS
// =============================================

// ConnectRedis renvoie nil quand REDIS_HOST est vide : cache, rate limit et temps réel sont alors désactivés.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Host == "" {
		slog.Warn("⚠️ REDIS_HOST vide, Redis désactivé")
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Host,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connexion redis: %w", err)
	}
	slog.Info("✅ Connecté à Redis", "addr", cfg.Host)
	return rdb, nil
}

// =============================================
// ELASTICSEARCH
// =============================================

func ConnectElastic(ctx context.Context, cfg config.ElasticConfig) (*elasticsearch.Client, error) {
	if cfg.URL == "" {
		slog.Warn("⚠️ ELASTIC_URL vide, recherche via PostgreSQL uniquement")
		return nil, nil
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.User,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("client elasticsearch: %w", err)
	}

	res, err := client.Info(client.Info.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("connexion elasticsearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("connexion elasticsearch: %s", res.Status())
	}

	slog.Info("✅ Connecté à Elasticsearch")
	return client, nil
}

// =============================================
// MINIO
// =============================================

func ConnectMinIO(ctx context.Context, cfg config.MinIOConfig) (*minio.Client, error) {
	if cfg.Endpoint == "" {
		slog.Warn("⚠️ MINIO_ENDPOINT vide, upload de couvertures désactivé")
		return nil, nil
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("client minio: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("vérification bucket minio: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("création bucket minio: %w", err)
		}
		slog.Info("bucket minio créé", "bucket", cfg.Bucket)
	}

	slog.Info("✅ Connecté à MinIO", "bucket", cfg.Bucket)
	return client, nil
}

// =============================================
// SCYLLA DB (ledger stock + audit)
// =============================================

func ConnectScylla(cfg config.ScyllaConfig) (*gocql.Session, error) {
	if len(cfg.Hosts) == 0 {
		slog.Warn("⚠️ SCYLLA_HOSTS vide, ledger désactivé")
		return nil, nil
	}

	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = gocql.Quorum
	cluster.Timeout = 5 * time.Second
	cluster.NumConns = 4
	cluster.ReconnectInterval = time.Second
	if cfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}
	cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(gocql.RoundRobinHostPolicy())

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("session scylla (%s): %w", cfg.Keyspace, err)
	}

	for _, stmt := range splitStatements(ledgerCQL) {
		if err := session.Query(stmt).Exec(); err != nil {
			session.Close()
			return nil, fmt.Errorf("schéma ledger: %w", err)
		}
	}

	slog.Info("✅ Connecté à ScyllaDB", "keyspace", cfg.Keyspace)
	return session, nil
}

func splitStatements(script string) []string {
	var out []string
	for _, s := range strings.Split(script, ";") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
