package main

import (
	"context"
	"fmt"
	"log"

	corecmd "github.com/m3rciful/communitybot/core/cmd"
	"github.com/m3rciful/communitybot/internal/app"
	"github.com/m3rciful/communitybot/internal/config"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			cfg, err := config.Load(path)
			if err != nil {
				return nil, err
			}
			return cfg, nil
		},
		Bootstrap: func(ctx context.Context, c corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			cfg, ok := c.(*config.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", c)
			}
			return app.New(ctx, cfg)
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
