package main

import (
	"fmt"
	"os"

	"github.com/storefront/storefront-api/internal/app"
)

func main() {
	if app.SkipStartup(nil, "ops") {
		return
	}
	if err := NewRootCmd(defaultDeps()).Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
