// Command novariad runs the Novaria simulation kernel as a standalone
// tick-driven process: it owns the UDP peer transport, the kernel, and
// the admin diagnostics HTTP surface, and ticks the kernel on a fixed
// wall-clock schedule until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/novaria-game/core/pkg/adminserver"
	"github.com/novaria-game/core/pkg/kernel"
	"github.com/novaria-game/core/pkg/materials"
	"github.com/novaria-game/core/pkg/motion"
	"github.com/novaria-game/core/pkg/script"
	"github.com/novaria-game/core/pkg/transport"
)

const defaultScriptModuleName = "gameplay"

func main() {
	localAddr := flag.String("address", ":25566", "UDP address to listen on")
	remoteAddr := flag.String("peer", "", "UDP address of the remote peer (empty = single-player, no transport)")
	adminAddr := flag.String("admin-address", ":8787", "HTTP address for the diagnostics/metrics surface")
	scriptModule := flag.String("script-module", "", "path to a single-file JS module to load into the script sandbox (empty = no script host)")
	authorityFlag := flag.String("authority", "authoritative", "authority mode: authoritative or replica")
	tickRate := flag.Float64("tick-rate", 60, "ticks per second")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	authority := kernel.Authoritative
	if *authorityFlag == "replica" {
		authority = kernel.Replica
	}

	var tickCounter atomic.Uint64
	var peer *transport.Peer
	var stopListen chan struct{}
	if *remoteAddr != "" {
		var err error
		peer, err = transport.NewPeer(transport.Config{LocalAddr: *localAddr, RemoteAddr: *remoteAddr}, sugar)
		if err != nil {
			sugar.Fatalw("construct transport peer failed", "error", err)
		}
		defer peer.Close()

		stopListen = make(chan struct{})
		go peer.Listen(tickCounter.Load, stopListen)
		defer close(stopListen)
	}

	moduleName := ""
	var moduleSource []byte
	if *scriptModule != "" {
		moduleName = defaultScriptModuleName
		moduleSource, err = os.ReadFile(*scriptModule)
		if err != nil {
			sugar.Fatalw("read script module failed", "path", *scriptModule, "error", err)
		}
	}

	k := kernel.New(kernel.Config{
		Materials:      materials.New(),
		MotionSettings: motion.DefaultSettings(),
		Authority:      authority,
		ScriptModule:   moduleName,
		Logger:         sugar,
	}, peer, sugar)

	if err := k.Init(); err != nil {
		sugar.Fatalw("kernel init failed", "error", err)
	}

	if moduleName != "" {
		err := k.ScriptHost().LoadModules([]script.Module{{
			Name:         moduleName,
			Source:       string(moduleSource),
			APIVersion:   script.APIVersion,
			Capabilities: []script.Capability{script.CapabilityTickReceive, script.CapabilityEventReceive},
		}})
		if err != nil {
			sugar.Fatalw("load script module failed", "path", *scriptModule, "error", err)
		}
	}

	admin := adminserver.New(adminserver.Config{Addr: *adminAddr}, k, prometheus.NewRegistry(), sugar)
	go func() {
		sugar.Infow("admin surface listening", "address", *adminAddr)
		if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Errorw("admin surface stopped", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(time.Duration(float64(time.Second) / *tickRate))
	defer ticker.Stop()

	dt := 1.0 / *tickRate
	metricState := adminserver.NewCounterState()

	sugar.Infow("novariad started", "address", *localAddr, "peer", *remoteAddr, "authority", *authorityFlag, "tick_rate", *tickRate)

runLoop:
	for {
		select {
		case sig := <-sigCh:
			sugar.Infow("shutting down", "signal", sig.String())
			break runLoop
		case <-ticker.C:
			k.Update(dt)
			tickCounter.Store(k.Diagnostics().TickIndex)
			admin.BroadcastEvents(k.ConsumeScriptEvents())
			admin.SampleMetrics(metricState)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := admin.Shutdown(ctx); err != nil {
		sugar.Errorw("admin surface shutdown error", "error", err)
	}
	if err := k.Shutdown(); err != nil {
		sugar.Errorw("kernel shutdown error", "error", err)
	}
	sugar.Info("novariad stopped")
}
