package main

// Compiled-in modules. Each registers itself with the core registry.
import (
	_ "github.com/frejasky/coda/internal/gateway"
	_ "github.com/frejasky/coda/modules/memory/sqlite"
	_ "github.com/frejasky/coda/modules/provider/ollama"
	_ "github.com/frejasky/coda/modules/provider/openai_compatible"
)
