package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/modx-xyz/exchange/base/ctx"
	"github.com/modx-xyz/exchange/base/database/mongoclient"
	"github.com/modx-xyz/exchange/base/database/redisclient"
	"github.com/modx-xyz/exchange/base/log"
	"github.com/modx-xyz/exchange/base/metrics"
	bValidator "github.com/modx-xyz/exchange/base/validator"
	"github.com/modx-xyz/exchange/domain"
	mmiddleware "github.com/modx-xyz/exchange/middleware"
	"github.com/modx-xyz/exchange/service/cache"
	"github.com/modx-xyz/exchange/service/cache/provider"
	"github.com/modx-xyz/exchange/service/cache/provider/compound"
	"github.com/modx-xyz/exchange/service/cache/provider/primitive"
	redisprovider "github.com/modx-xyz/exchange/service/cache/provider/redis"
	"github.com/modx-xyz/exchange/service/eventbus"
	ledgersvc "github.com/modx-xyz/exchange/service/ledger"
	"github.com/modx-xyz/exchange/service/query"
	"github.com/modx-xyz/exchange/service/redis"
	"github.com/modx-xyz/exchange/service/royaltyengine"
	activity_delivery "github.com/modx-xyz/exchange/stores/activity/delivery/http"
	activity_repository "github.com/modx-xyz/exchange/stores/activity/repository"
	activity_usecase "github.com/modx-xyz/exchange/stores/activity/usecase"
	ask_delivery "github.com/modx-xyz/exchange/stores/ask/delivery/http"
	ask_repository "github.com/modx-xyz/exchange/stores/ask/repository"
	ask_usecase "github.com/modx-xyz/exchange/stores/ask/usecase"
	auction_delivery "github.com/modx-xyz/exchange/stores/auction/delivery/http"
	auction_repository "github.com/modx-xyz/exchange/stores/auction/repository"
	auction_usecase "github.com/modx-xyz/exchange/stores/auction/usecase"
	auth_delivery "github.com/modx-xyz/exchange/stores/auth/delivery/http"
	auth_middleware "github.com/modx-xyz/exchange/stores/auth/delivery/http/middleware"
	auth_usecase "github.com/modx-xyz/exchange/stores/auth/usecase"
	hc_delivery "github.com/modx-xyz/exchange/stores/healthcheck/delivery/http"
	hc_repo "github.com/modx-xyz/exchange/stores/healthcheck/repository"
	hc_usecase "github.com/modx-xyz/exchange/stores/healthcheck/usecase"
	offer_delivery "github.com/modx-xyz/exchange/stores/offer/delivery/http"
	offer_repository "github.com/modx-xyz/exchange/stores/offer/repository"
	offer_usecase "github.com/modx-xyz/exchange/stores/offer/usecase"
	payout_usecase "github.com/modx-xyz/exchange/stores/payout/usecase"
	put_delivery "github.com/modx-xyz/exchange/stores/put/delivery/http"
	put_repository "github.com/modx-xyz/exchange/stores/put/repository"
	put_usecase "github.com/modx-xyz/exchange/stores/put/usecase"
	registry_delivery "github.com/modx-xyz/exchange/stores/registry/delivery/http"
	registry_repository "github.com/modx-xyz/exchange/stores/registry/repository"
	registry_usecase "github.com/modx-xyz/exchange/stores/registry/usecase"
	royalty_delivery "github.com/modx-xyz/exchange/stores/royalty/delivery/http"
	royalty_repository "github.com/modx-xyz/exchange/stores/royalty/repository"
	royalty_usecase "github.com/modx-xyz/exchange/stores/royalty/usecase"
)

func init() {
	pflag.String("config", "infra/configs/config.yaml", "path to the config file")
	pflag.Parse()
	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		panic(err)
	}

	viper.SetConfigType("yaml")
	viper.SetConfigFile(viper.GetString("config"))
	err := viper.ReadInConfig()
	if err != nil {
		panic(err)
	}

	if viper.GetBool(`debug`) {
		log.Log().Info("Service RUN on DEBUG mode")
	}
}

func main() {
	// init echo
	e := echo.New()
	e.Use(middleware.Recover())
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{}))
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	middL := mmiddleware.InitMiddleware()
	e.Use(middL.ResponseLogger())
	e.Use(middL.AddContext())
	e.Use(middleware.CORS())
	e.Validator = bValidator.NewCustomValidator(validator.New())

	context := ctx.Background()

	// init mongo client
	context.Info("init mongo")
	uri := viper.GetString("mongo.uri")
	authDBName := viper.GetString("mongo.authDBName")
	dbName := viper.GetString("mongo.dbName")
	enableSSL := viper.GetBool("mongo.enableSSL")
	checkIndex := viper.GetBool("mongo.checkIndex")
	mongoClient := mongoclient.MustConnectMongoClient(uri, authDBName, dbName, enableSSL, true, 2)
	q := query.New(mongoClient, checkIndex)

	// init redis service
	context.Info("init redis cache")
	redisCacheName := viper.GetString("redis_cache.name")
	redisCacheURI := viper.GetString("redis_cache.uri")
	redisCachePwd := viper.GetString("redis_cache.password")
	redisCachePoolMultiplier := viper.GetFloat64("redis_cache.poolMultiplier")
	redisCachePool := redisclient.MustConnectRedis(redisCacheURI, redisCachePwd, redisclient.RedisParam{
		PoolMultiplier: redisCachePoolMultiplier,
		Retry:          true,
	})
	redisCache := redis.New(redisCacheName, metrics.New(redisCacheName), &redis.Pools{
		Src: redisCachePool,
	})

	// the settlement book of record. balances and token ownership live
	// here; wrapped-native fallbacks are configured per chain.
	book := ledgersvc.New()
	for chainId, wrapped := range domain.ChainIdWrappedNativeMap {
		book.SetWrappedNative(chainId, wrapped)
	}

	escrow := domain.Address(viper.GetString("exchange.escrow"))
	moduleAsks := domain.Address(viper.GetString("exchange.modules.asks"))
	moduleOffers := domain.Address(viper.GetString("exchange.modules.offers"))
	moduleAuctions := domain.Address(viper.GetString("exchange.modules.auctions"))
	modulePuts := domain.Address(viper.GetString("exchange.modules.puts"))

	// construct repository, usecase and delivery
	hcRepo := hc_repo.New(mongoClient, redisCache)
	askRepo := ask_repository.New(q)
	offerRepo := offer_repository.New(q)
	auctionRepo := auction_repository.New(q)
	putRepo := put_repository.New(q)
	feeSettingRepo := registry_repository.NewFeeSetting(q)
	moduleApprovalRepo := registry_repository.NewModuleApproval(q)
	scheduleRepo := royalty_repository.New(q)
	activityRepo := activity_repository.New(q)

	hc := hc_usecase.New(hcRepo)
	registryUC := registry_usecase.New(&registry_usecase.RegistryUseCaseCfg{
		FeeSettings:     feeSettingRepo,
		ModuleApprovals: moduleApprovalRepo,
	})
	royaltyUC := royalty_usecase.New(scheduleRepo)
	royaltyOracle := royaltyengine.New(&royaltyengine.Cfg{
		Upstream: royaltyUC,
		Cache: cache.New(cache.ServiceConfig{
			Ttl: viper.GetDuration("royalty.cacheTtl"),
			Pfx: "royalty",
			Cache: compound.NewCompound([]provider.Provider{
				primitive.NewPrimitive("royalty", 1024),
				redisprovider.NewRedis(redisCache),
			}),
		}),
		Budget: viper.GetDuration("royalty.budget"),
	})
	engine := payout_usecase.New(&payout_usecase.Cfg{
		Native:   book.Native(),
		Erc20:    book.Erc20(),
		Erc721:   book.Erc721(),
		Wrapped:  book.WrappedNative(),
		Royalty:  royaltyOracle,
		Registry: registryUC,
		Escrow:   escrow,
		Budget:   viper.GetDuration("exchange.transferBudget"),
	})

	activityUC := activity_usecase.New(activityRepo)
	bus := eventbus.New(activityUC)
	defer bus.Close()

	askUC := ask_usecase.New(&ask_usecase.AskUseCaseCfg{
		Asks:   askRepo,
		Payout: engine,
		Erc20:  book.Erc20(),
		Erc721: book.Erc721(),
		Bus:    bus,
		Module: moduleAsks,
	})
	offerUC := offer_usecase.New(&offer_usecase.OfferUseCaseCfg{
		Offers: offerRepo,
		Payout: engine,
		Erc721: book.Erc721(),
		Bus:    bus,
		Module: moduleOffers,
	})
	auctionUC := auction_usecase.New(&auction_usecase.AuctionUseCaseCfg{
		Auctions:           auctionRepo,
		Payout:             engine,
		Erc20:              book.Erc20(),
		Erc721:             book.Erc721(),
		Bus:                bus,
		Module:             moduleAuctions,
		Escrow:             escrow,
		TimeBuffer:         viper.GetDuration("exchange.auction.timeBuffer"),
		MinBidIncrementPct: viper.GetInt64("exchange.auction.minBidIncrementPct"),
	})
	putUC := put_usecase.New(&put_usecase.PutUseCaseCfg{
		Puts:   putRepo,
		Payout: engine,
		Bus:    bus,
		Module: modulePuts,
	})

	auth := auth_usecase.New(&auth_usecase.AuthUseCaseCfg{
		JwtSecret:    viper.GetString("auth.jwtSecret"),
		SignatureMsg: viper.GetString("auth.signatureMsg"),
		Redis:        redisCache,
		TokenTTL:     viper.GetDuration("auth.tokenTTL"),
	})
	adminAddresses := viper.GetStringSlice("admin.addresses")
	authMiddleware := auth_middleware.New(auth, adminAddresses)

	hc_delivery.New(e, hc)
	auth_delivery.New(e, auth, viper.GetString("auth.signatureMsg"))
	registry_delivery.New(e, registryUC, authMiddleware)
	royalty_delivery.New(e, royaltyUC, authMiddleware)
	ask_delivery.New(e, askUC, authMiddleware)
	offer_delivery.New(e, offerUC, authMiddleware)
	auction_delivery.New(e, auctionUC, authMiddleware)
	put_delivery.New(e, putUC, authMiddleware)
	activity_delivery.New(e, activityUC)

	go func() {
		if err := e.Start(viper.GetString("server.address")); err != nil && err != http.ErrServerClosed {
			log.Log().WithField("err", err).Error("shutting down the server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 10 seconds.
	// Use a buffered channel to avoid missing signals as recommended for signal.Notify
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	sig := <-quit
	log.Log().WithField("signal", sig).Info("received signal")
	ctx, cancel := ctx.WithTimeout(context, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Log().WithField("err", err).Error("shutting down the server")
	} else {
		log.Log().Info("shutdown server successfully")
	}
}
