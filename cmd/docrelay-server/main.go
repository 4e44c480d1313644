package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"docrelay/internal/actor"
	"docrelay/internal/authstrategy"
	"docrelay/internal/broker"
	"docrelay/internal/cleanup"
	"docrelay/internal/config"
	"docrelay/internal/presence"
	"docrelay/internal/registry"
	"docrelay/internal/session"
	"docrelay/internal/snapshotstore"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	instanceID := uuid.NewString()

	brokers := strings.Split(cfg.Broker.URL, ",")
	gateway, err := broker.NewKafkaGateway(brokers)
	if err != nil {
		log.Fatalf("broker: %v", err)
	}

	store, err := buildStore(cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}

	auditor, err := buildAuditor(cfg)
	if err != nil {
		log.Fatalf("audit: %v", err)
	}

	presenceDir := buildPresence(cfg)

	strategy := buildAuthStrategy(cfg)

	shutdownCtx, cancelShutdown := context.WithCancel(context.Background())
	defer cancelShutdown()
	tracker, _ := cleanup.New(shutdownCtx)

	sup := broker.NewSupervisor(gateway, func() (broker.Gateway, error) {
		return broker.NewKafkaGateway(brokers)
	}, nil)
	reg := registry.New(sup, store, auditor, tracker, actorConfig(cfg))
	sup.SetInvalidator(reg)

	go probeLoop(shutdownCtx, sup)

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(string) bool { return true },
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:          12 * time.Hour,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	r.GET("/docs", func(c *gin.Context) {
		docs, err := presenceDir.Documents(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusOK, gin.H{"documents": []string{}})
			return
		}
		c.JSON(http.StatusOK, gin.H{"documents": docs})
	})

	r.GET("/metrics", func(c *gin.Context) {
		perDoc := reg.Stats()
		var totals actor.Stats
		for _, s := range perDoc {
			totals.MessagesRelayed += s.MessagesRelayed
			totals.PublishFailures += s.PublishFailures
			totals.SnapshotWrites += s.SnapshotWrites
			totals.Peers += s.Peers
		}
		c.JSON(http.StatusOK, gin.H{
			"documents": perDoc,
			"totals":    totals,
		})
	})

	r.GET("/ws/:docName", func(c *gin.Context) {
		docName := c.Param("docName")
		if _, ok := strategy.Authenticate(c.Request); !ok {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		a, err := reg.Get(c.Request.Context(), docName)
		if err != nil {
			log.Printf("registry: get %q failed: %v", docName, err)
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("ws upgrade: %v", err)
			return
		}

		_ = presenceDir.Register(c.Request.Context(), docName, instanceID, 1, 2*time.Minute)
		sess := session.New(conn, a)
		go func() {
			sess.Run()
			_ = presenceDir.Unregister(context.Background(), docName, instanceID)
		}()
	})

	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.Port),
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down", sig)

	shutdownDeadline, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_ = srv.Shutdown(shutdownDeadline)
	reg.InvalidateAll()
	tracker.Wait()
	_ = sup.Close()
}

func probeLoop(ctx context.Context, sup *broker.Supervisor) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			sup.Probe(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func buildStore(cfg *config.Config) (snapshotstore.Store, error) {
	if cfg.Storage.Mode == "none" {
		return snapshotstore.NoopStore{}, nil
	}
	return snapshotstore.NewMinioStore(
		cfg.Store.Endpoint,
		cfg.Store.AccessKey,
		cfg.Store.SecretKey,
		cfg.Store.Region,
		cfg.Store.Bucket,
		cfg.Store.UseSSL,
	)
}

func buildAuditor(cfg *config.Config) (snapshotstore.AuditRecorder, error) {
	if cfg.Audit.DSN == "" {
		return snapshotstore.NoopAuditor{}, nil
	}
	return snapshotstore.NewAuditor(cfg.Audit.DSN)
}

func buildPresence(cfg *config.Config) presence.Directory {
	if cfg.Presence.RedisAddr == "" {
		return presence.NoopDirectory{}
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Presence.RedisAddr})
	return presence.NewRedisDirectory(rdb)
}

func buildAuthStrategy(cfg *config.Config) authstrategy.Strategy {
	if cfg.Auth.Strategy == "jwt" {
		return authstrategy.NewJWTStrategy(cfg.Auth.Secret)
	}
	return authstrategy.AllowAll{}
}

func actorConfig(cfg *config.Config) actor.Config {
	c := actor.DefaultConfig()
	c.Tenant = cfg.Broker.Tenant
	c.Namespace = cfg.Broker.Namespace
	c.TopicPrefix = cfg.Broker.TopicPrefix
	c.SnapshotInterval = cfg.SnapshotInterval
	if cfg.Replay.ReadTimeout > 0 {
		c.ReplayReadTimeout = cfg.Replay.ReadTimeout
	}
	if cfg.Replay.MaxConsecutiveTimeouts > 0 {
		c.ReplayMaxConsecutiveTimeouts = cfg.Replay.MaxConsecutiveTimeouts
	}
	if cfg.Replay.WallClockCap > 0 {
		c.ReplayWallClockCap = cfg.Replay.WallClockCap
	}
	if cfg.CreationRetry.Max > 0 {
		c.CreationRetryMax = cfg.CreationRetry.Max
	}
	if cfg.CreationRetry.Backoff > 0 {
		c.CreationRetryBackoff = cfg.CreationRetry.Backoff
	}
	return c
}
