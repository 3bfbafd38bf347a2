package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"PrivChat/global/config"
	"PrivChat/logger"
	"PrivChat/module/chat/crypto"
	chatsvc "PrivChat/module/chat/service"
	"PrivChat/module/chat/store"
	usersvc "PrivChat/module/user/service"
	"PrivChat/service/chat"
	"PrivChat/service/chat/handlers"
	"PrivChat/service/mgo"
	"PrivChat/service/storage"
	redissrv "PrivChat/service/storage/redis"
	"PrivChat/tools/security"
)

func main() {
	config.Load()
	cfg := config.Global

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage comes up first; the gateway refuses to start without it.
	mgo.StartAsync(ctx, &cfg.Mongo)
	waitCtx, waitCancel := context.WithTimeout(ctx, 30*time.Second)
	err := mgo.WaitReady(waitCtx, mgo.Manager())
	waitCancel()
	if err != nil {
		logger.Errorf("[main] mongo not ready: %v (last err: %v)", err, mgo.Err())
		return
	}
	db := mgo.GetDB()

	verifier, err := newVerifier(cfg)
	if err != nil {
		logger.Errorf("[main] identity verifier: %v", err)
		return
	}

	directory := usersvc.NewDirectory(db)
	chatStore := store.NewStore(db)
	cipher := crypto.NewCipher(cfg.MessageSecret)
	core := chatsvc.New(directory, chatStore, chatStore, cipher, cfg.PreviewLimit)

	var presence chat.Presence = chat.NewLocalPresence()
	if cfg.UseRedisPresence {
		if err := redissrv.InitRedis(cfg.Redis); err != nil {
			logger.Errorf("[main] redis init: %v", err)
			return
		}
		presence = storage.NewRedisPresence(redissrv.Client(), 0)
		logger.Infof("[main] using redis presence registry addr=%s", cfg.Redis.Addr)
	}

	server := chat.NewServer(chat.ServerConf{
		SendQueueSize: cfg.SendQueueSize,
		FanoutWorkers: cfg.FanoutWorkers,
		FanoutQueue:   cfg.FanoutQueue,
	}, core, verifier, directory, presence)

	server.Disp().Register(handlers.NewAuthHandler())
	server.Disp().Register(handlers.NewUsersHandler())
	server.Disp().Register(handlers.NewConversationsHandler())
	server.Disp().Register(handlers.NewJoinHandler())
	server.Disp().Register(handlers.NewSendHandler())
	server.Disp().Register(handlers.NewTypingHandler())
	server.Disp().Register(handlers.NewReadHandler())

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET(cfg.WSPath, server.HandleWS)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Infof("[main] gateway listening on %s (ws path %s)", addr, cfg.WSPath)
	if err := r.Run(addr); err != nil {
		logger.Errorf("[main] server stopped: %v", err)
	}
}

func newVerifier(cfg config.AppConfig) (*security.Verifier, error) {
	if cfg.IdentityPublicKeyPEM != "" {
		return security.NewVerifier([]byte(cfg.IdentityPublicKeyPEM))
	}
	return security.NewVerifierFromFile(cfg.IdentityPublicKeyFile)
}
