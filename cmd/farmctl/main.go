package main

import (
	"os"

	"github.com/example/farmcart/internal/config"
	"github.com/example/farmcart/internal/logger"
	"github.com/example/farmcart/internal/server"
)

func main() {
	root := newRootCmd(func(path string) (*server.Deps, error) {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		if _, err := logger.Init(&cfg.Log); err != nil {
			return nil, err
		}
		return server.Bootstrap(cfg)
	})
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
