package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/go-redis/redis/v8"
	"github.com/spooky-finn/go-polymarket-session/config"
	"github.com/spooky-finn/go-polymarket-session/domain"
	promclient "github.com/spooky-finn/go-polymarket-session/infrastructure/prometheus"
	"github.com/spooky-finn/go-polymarket-session/store"
	"github.com/spooky-finn/go-polymarket-session/usecase"
)

func main() {
	conf := config.Load()
	go promclient.StartPromClientServer(conf.PromListenAddr)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     conf.RedisAddr,
		Password: conf.RedisPassword,
		DB:       conf.RedisDB,
	})
	sessionStore := store.NewRedisStore(redisClient, 0)

	signer, err := newEnvSigner(os.Getenv("WALLET_ADDRESS"))
	if err != nil {
		fmt.Printf("failed to create signer: %s\n", err)
		os.Exit(1)
	}

	invalidator := domain.InvalidatorFunc(func(key string) {
		fmt.Printf("cache invalidated: %s\n", key)
	})

	engine := usecase.NewTradingSessionUseCase(conf, sessionStore, signer, invalidator)
	defer engine.Close()

	ctx := context.Background()
	sess, err := engine.StartSession(ctx)
	if err != nil {
		fmt.Printf("could not start trading session, retry: %s\n", err)
		os.Exit(1)
	}
	fmt.Printf("trading session ready, proxy account %s\n", sess.ProxyAddress)

	if tokenID := os.Getenv("WATCH_TOKEN_ID"); tokenID != "" {
		if err := engine.WatchTickSize(tokenID); err != nil {
			fmt.Printf("failed to watch tick size for %s: %s\n", tokenID, err)
		}
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop
}
