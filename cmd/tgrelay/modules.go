package main

// Compiled-in modules. Each registers itself with the core registry.
import (
	_ "github.com/gneuro/tgrelay/internal/gateway"
	_ "github.com/gneuro/tgrelay/internal/relay"
	_ "github.com/gneuro/tgrelay/internal/telemetry"
	_ "github.com/gneuro/tgrelay/modules/audit/sqlite"
	_ "github.com/gneuro/tgrelay/modules/channel/telegram"
	_ "github.com/gneuro/tgrelay/modules/provider/gemini"
)
