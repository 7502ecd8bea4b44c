// Command pokersrv runs the table server: it pops connect requests and
// room-control commands off a pair of Redis-backed FIFOs, seats players
// into per-table rooms, and drives each hand to completion, persisting
// every action and result to sqlite.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/coder/quartz"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/holdempoker/tableserver/internal/bot"
	"github.com/holdempoker/tableserver/internal/broker"
	"github.com/holdempoker/tableserver/internal/config"
	"github.com/holdempoker/tableserver/internal/gameserver"
	"github.com/holdempoker/tableserver/internal/logging"
	"github.com/holdempoker/tableserver/internal/store"
)

// runDailyReset is the one-shot entry point daily_settlement_cron.py's
// external scheduler calls once a day: it sweeps every known player's
// wallet through CheckAndResetDailyChips, resetting any that haven't seen
// today yet, then exits without starting the server loop.
func runDailyReset(cfg *config.Config) {
	st, err := store.Open(cfg.Server.DBPath)
	if err != nil {
		fmt.Printf("error opening %q: %v\n", cfg.Server.DBPath, err)
		os.Exit(1)
	}
	defer st.Close()

	ctx := context.Background()
	ids, err := st.ListPlayerIDs(ctx)
	if err != nil {
		fmt.Printf("error listing players: %v\n", err)
		os.Exit(1)
	}

	for _, id := range ids {
		if _, err := st.CheckAndResetDailyChips(ctx, id, cfg.Server.InitMoney, time.Now()); err != nil {
			fmt.Printf("error resetting %s: %v\n", id, err)
		}
	}
	fmt.Printf("daily reset swept %d player(s)\n", len(ids))
}

var cli struct {
	Config     string `short:"c" help:"Path to HCL configuration file" default:"pokersrv.hcl"`
	RedisURL   string `short:"r" help:"Redis connection URL" default:"redis://127.0.0.1:6379/0"`
	ServerID   string `short:"i" help:"This server's identity, echoed in connect acks" default:"pokersrv-1"`
	LogLevel   string `short:"l" help:"Override the configured log level"`
	DailyReset bool   `help:"Run the daily chip reset sweep for every known player and exit, instead of serving"`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("pokersrv"),
		kong.Description("Texas hold'em table server"),
		kong.UsageOnError(),
	)

	cfg, err := config.Load(cli.Config)
	if err != nil {
		fmt.Printf("error loading config: %v\n", err)
		ctx.Exit(1)
	}
	if cli.LogLevel != "" {
		cfg.Server.LogLevel = cli.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Printf("invalid configuration: %v\n", err)
		ctx.Exit(1)
	}

	if cli.DailyReset {
		runDailyReset(cfg)
		return
	}

	logBackend, err := logging.New(cfg.Server.LogDir, "pokersrv.log", 10)
	if err != nil {
		fmt.Printf("error opening log backend: %v\n", err)
		ctx.Exit(1)
	}
	defer logBackend.Close()

	log := logBackend.Logger("SRVR")
	if lvl, err := logging.ParseLevel(cfg.Server.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	st, err := store.Open(cfg.Server.DBPath)
	if err != nil {
		log.Errorf("open store %q: %v", cfg.Server.DBPath, err)
		ctx.Exit(1)
	}
	defer st.Close()

	opts, err := redis.ParseURL(cli.RedisURL)
	if err != nil {
		log.Errorf("parse redis url: %v", err)
		ctx.Exit(1)
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	lobby := broker.NewMessageQueue(rdb, "texas-holdem-poker:lobby")
	roomControl := broker.NewMessageQueue(rdb, "texas-holdem-poker:room-control")

	tables := make(map[string]gameserver.TableSpec, len(cfg.Tables))
	for _, t := range cfg.Tables {
		tables[t.Name] = gameserver.TableSpec{
			RoomSize:   t.RoomSize,
			SmallBlind: t.SmallBlind,
			BigBlind:   t.BigBlind,
			Private:    t.Private,
		}
	}
	defaults := gameserver.TableSpec{RoomSize: 10, SmallBlind: 5, BigBlind: 10}
	if len(cfg.Tables) > 0 {
		defaults = tables[cfg.Tables[0].Name]
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rooms := gameserver.NewRoomRegistry(runCtx, quartz.NewReal(), st, tables, defaults, cfg.Server.InitMoney,
		cfg.Server.PingDeadline(), cfg.Server.PingGrace(), log)

	bots := gameserver.NewBots(bot.RemoteConfig{
		BaseURL: cfg.Server.BotDecisionURL,
		Timeout: cfg.Server.BotDecisionTimeout(),
	})

	srv := gameserver.New(cli.ServerID, rdb, lobby, roomControl, rooms, bots, log)
	srv.Store = st
	srv.InitMoney = cfg.Server.InitMoney

	log.Infof("starting pokersrv %s, %d configured table(s)", cli.ServerID, len(cfg.Tables))

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		srv.RunLobbyLoop(gctx)
		return nil
	})
	g.Go(func() error {
		srv.RunRoomControlLoop(gctx)
		return nil
	})

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		log.Infof("shutdown signal received, draining...")
		cancel()
	}()

	if err := g.Wait(); err != nil {
		log.Errorf("server loop exited: %v", err)
	}

	// Give in-flight broadcasts a moment to land before the process tears
	// down the Redis connection out from under them.
	time.Sleep(200 * time.Millisecond)
}
