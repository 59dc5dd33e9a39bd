package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/fx"

	"github.com/Umareee/messenger-crm/internal/config"
	"github.com/Umareee/messenger-crm/internal/daemon"
	"github.com/Umareee/messenger-crm/internal/profile"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	listenFlag := flag.String("listen", "", "api listen address (overrides config)")
	flag.Parse()

	profileName := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(profileName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg := config.LoadOrDefault(profile.ConfigPath())
	listenAddr := *listenFlag
	if listenAddr == "" {
		listenAddr = cfg.Addr()
	}

	app := fx.New(
		daemon.Module(daemon.Params{
			ProfileName: profileName,
			ListenAddr:  listenAddr,
			AccountID:   cfg.Account(),
			JWTSecret:   cfg.JWTSecret,
		}),
	)

	app.Run()
}
