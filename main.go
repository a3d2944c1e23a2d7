// Package main is the entry point for the traktoon connector
package main

import (
	"github.com/ArthurPouzCS/traktoon-sub000/cmd"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/config"
	"github.com/ArthurPouzCS/traktoon-sub000/internal/logger"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.AppEnv)

	cmd.Execute(cfg)
}
