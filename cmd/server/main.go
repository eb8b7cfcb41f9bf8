// BanBiao 排班核心服务
// 主程序入口

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paiban/banbiao/internal/auth"
	"github.com/paiban/banbiao/internal/config"
	"github.com/paiban/banbiao/internal/database"
	"github.com/paiban/banbiao/internal/handler"
	"github.com/paiban/banbiao/internal/notify"
	"github.com/paiban/banbiao/internal/service"
	"github.com/paiban/banbiao/pkg/logger"
	"github.com/paiban/banbiao/pkg/solver"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "配置加载失败: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Level:  cfg.App.LogLevel,
		Format: "console",
	})

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Str("env", cfg.App.Env).
		Msg("BanBiao 排班核心启动")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Error().Err(err).Msg("数据库初始化失败")
		os.Exit(1)
	}
	defer db.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Migrate(migrateCtx); err != nil {
		cancelMigrate()
		logger.Error().Err(err).Msg("表结构初始化失败")
		os.Exit(1)
	}
	cancelMigrate()

	repos := service.NewRepos(db)
	slv := solver.New(solver.Options{
		TimeLimit: cfg.Solver.TimeLimit,
		Workers:   cfg.Solver.Workers,
		Seed:      cfg.Solver.Seed,
	})
	notifier := notify.New(notify.NewSMTPMailer(cfg.Mail), repos.Employees)

	demands := service.NewDemandService(db, repos, nil)
	schedules := service.NewScheduleService(db, repos, nil, demands, slv, notifier)
	availability := service.NewAvailabilityService(db, repos, nil)
	transfers := service.NewTransferService(db, repos, nil, notifier)
	rules := service.NewRuleService(repos)

	router := handler.NewRouter(handler.Dependencies{
		Config:        cfg,
		DB:            db,
		Authenticator: auth.New(cfg.Auth.JWTSecret),
		Demands:       demands,
		Schedules:     schedules,
		Availability:  availability,
		Transfers:     transfers,
		Rules:         rules,
		Version:       Version,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info().
			Int("port", cfg.App.Port).
			Str("url", fmt.Sprintf("http://localhost:%d", cfg.App.Port)).
			Msg("服务器启动")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("服务器启动失败")
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("服务器关闭失败")
		os.Exit(1)
	}

	logger.Info().Msg("服务器已关闭")
}
