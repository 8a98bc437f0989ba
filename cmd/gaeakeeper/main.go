package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"

	"gaeakeeper/internal/app"
)

func main() {
	var (
		cfgPath  string
		noProxy  bool
		training bool
	)
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config file (yaml or json)")
	flag.BoolVar(&noProxy, "no-proxy", false, "ignore the proxy column and connect directly")
	flag.BoolVar(&training, "training", false, "enable the daily training job (overrides config)")
	flag.Parse()

	// Only override the config when -training was given explicitly.
	var trainingOverride *bool
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "training" {
			v := training
			trainingOverride = &v
		}
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath, app.Options{
		NoProxy:  noProxy,
		Training: trainingOverride,
	})
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	err = a.Run(ctx)
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}
