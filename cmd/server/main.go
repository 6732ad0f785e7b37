package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	mongoopts "go.mongodb.org/mongo-driver/mongo/options"

	"github.com/thornboo/jincheng-campus-api/internal/api"
	"github.com/thornboo/jincheng-campus-api/internal/auth"
	"github.com/thornboo/jincheng-campus-api/internal/bus"
	"github.com/thornboo/jincheng-campus-api/internal/chat"
	"github.com/thornboo/jincheng-campus-api/internal/config"
	"github.com/thornboo/jincheng-campus-api/internal/events"
	"github.com/thornboo/jincheng-campus-api/internal/logger"
	"github.com/thornboo/jincheng-campus-api/internal/metrics"
	"github.com/thornboo/jincheng-campus-api/internal/presence"
	"github.com/thornboo/jincheng-campus-api/internal/store"
	"github.com/thornboo/jincheng-campus-api/internal/ws"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}
	zlog, err := logger.New(logger.Config{Development: cfg.Log.Development})
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer zlog.Sync()

	var verifier auth.Verifier
	if cfg.JWT.Algorithm == "RS256" {
		verifier, err = auth.NewJWTVerifierRS256(cfg.JWT.PublicKeyPath)
	} else {
		verifier, err = auth.NewJWTVerifierHS256(cfg.JWT.Secret)
	}
	if err != nil {
		zlog.Fatalf("jwt verifier init: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var st store.Store
	var mongoClient *mongo.Client
	if cfg.Mongo.URI != "" {
		mongoClient, err = mongo.Connect(ctx, mongoopts.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			zlog.Fatalf("mongo connect: %v", err)
		}
		if err := mongoClient.Ping(ctx, nil); err != nil {
			zlog.Fatalf("mongo ping: %v", err)
		}
		ms := store.NewMongoStore(mongoClient, cfg.Mongo.Database)
		if err := ms.EnsureIndexes(ctx); err != nil {
			zlog.Fatalf("mongo indexes: %v", err)
		}
		st = ms
	} else {
		zlog.Warn("no mongo uri configured, using in-memory store")
		st = store.NewMemoryStore()
	}

	var clusterBus bus.Bus
	var registry presence.Registry
	if cfg.Redis.Addr != "" {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			zlog.Fatalf("redis ping: %v", err)
		}
		defer rdb.Close()
		clusterBus = bus.NewRedis(rdb, cfg.Redis.Channel, zlog)
		registry = presence.NewRedis(rdb, cfg.Redis.Prefix, cfg.PresenceTTL)
	} else {
		zlog.Info("no redis configured, running single-node")
		clusterBus = bus.NewMemory()
		registry = presence.NewMemory()
	}
	defer clusterBus.Close()

	var producer events.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		kp := events.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer kp.Close()
		producer = kp
	}

	metrics.Register()

	fanout := chat.NewFanout(st, clusterBus, zlog)
	router := chat.NewRouter(st, clusterBus, fanout, producer, zlog)
	hub := ws.NewHub(clusterBus, zlog)
	gate := ws.NewGate(verifier, hub, router, registry, cfg, zlog)
	srv := api.NewServer(cfg, st, registry, fanout, gate, verifier, zlog)

	errs := make(chan error, 1)
	go func() {
		addr := ":" + cfg.PortString()
		zlog.Infof("starting realtime service on %s", addr)
		errs <- srv.Listen(addr)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case e := <-errs:
		zlog.Fatalf("server error: %v", e)
	case s := <-sig:
		zlog.Infof("signal received: %v", s)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Warnf("server shutdown: %v", err)
	}
	if mongoClient != nil {
		if err := mongoClient.Disconnect(shutdownCtx); err != nil {
			zlog.Warnf("mongo disconnect: %v", err)
		}
	}
	zlog.Info("shutdown complete")
}
