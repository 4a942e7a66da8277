package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"path/filepath"
	"time"
	"gatepass/impl/activity"
	"gatepass/impl/allocation"
	"gatepass/impl/auth"
	"gatepass/impl/core"
	"gatepass/impl/pool"
	"gatepass/impl/redemption"
	"gatepass/internal/alert"
	"gatepass/internal/config"
	"gatepass/internal/database"
	"gatepass/internal/http-server/api"
	"gatepass/internal/idgen"
	"gatepass/internal/notify"
	"gatepass/lib/clock"
	"gatepass/lib/logger"
	"gatepass/lib/sl"
)

const logFileName = "gatepass.log"

func main() {
	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/", "path to log file directory")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	lg := logger.SetupLogger(conf.Env, filepath.Join(*logPath, logFileName))
	lg.Info("starting gatepass", slog.String("config", *configPath), slog.String("env", conf.Env))

	if conf.Telegram.Enabled {
		sender, err := alert.NewTelegram(conf.Telegram.ApiKey, conf.Telegram.ChatId, lg)
		if err != nil {
			lg.Error("telegram alerts disabled", sl.Err(err))
		} else {
			lg = logger.WithAlerts(lg, sender)
			lg.Info("telegram alerts enabled")
		}
	}

	db := database.NewMongoClient(conf)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.EnsureIndexes(ctx); err != nil {
		log.Fatal("ensure indexes: ", err)
	}

	clk := clock.NewSystem()
	authService := auth.New(db, conf.Jwt.Secret, conf.Jwt.ExpiresHours, clk, lg)
	if err := authService.EnsureAdmin(ctx, conf.Admin.Username, conf.Admin.Email, conf.Admin.Password); err != nil {
		log.Fatal("bootstrap admin: ", err)
	}

	var notifier allocation.Notifier
	if conf.Smtp.Enabled {
		mailer, err := notify.NewMailer(conf, lg)
		if err != nil {
			log.Fatal("smtp client: ", err)
		}
		notifier = mailer
	} else {
		notifier = notify.NewLogNotifier(lg)
	}

	gen := idgen.NewDefault(conf.Pool.CodePrefix)
	recorder := activity.New(db, clk, lg)
	allocService := allocation.New(db, notifier, clk, lg)
	redeemService := redemption.New(db, clk, lg)
	poolService := pool.New(db, gen, clk, conf.Pool.Size, lg)

	handler := core.New(allocService, redeemService, poolService, authService, recorder, lg)

	if err := api.New(conf, lg, handler); err != nil {
		lg.Error("api server stopped", sl.Err(err))
	}
}
