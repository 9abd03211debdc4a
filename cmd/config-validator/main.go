package main

import (
	"fmt"
	"os"

	"github.com/orgoj/sentryroute/internal/config"
	flag "github.com/spf13/pflag"
)

func main() {
	strict := flag.Bool("strict", false, "Treat warnings as errors")
	flag.Parse()

	// Get config path from arguments
	if len(flag.Args()) < 1 {
		fmt.Println("Error: Config file path is required")
		fmt.Println("Usage: config-validator [--strict] <config-file>")
		os.Exit(1)
	}
	configPath := flag.Args()[0]

	// Load and validate configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		fmt.Printf("Validation error: %v\n", err)
		os.Exit(1)
	}

	warnings := lintConfig(cfg)
	for _, w := range warnings {
		fmt.Printf("Warning: %s\n", w)
	}
	if *strict && len(warnings) > 0 {
		os.Exit(1)
	}

	fmt.Println("Configuration is valid!")
}

// lintConfig reports settings that are valid but most likely not intended.
func lintConfig(cfg *config.Config) []string {
	var warnings []string

	components := make(map[string]config.Component, len(cfg.Components))
	for _, comp := range cfg.Components {
		components[comp.Name] = comp
	}

	hasEnabledRoute := false
	for _, route := range cfg.LogRoutes {
		if !route.Enabled {
			continue
		}
		hasEnabledRoute = true

		comp, ok := components[route.SentryComponent]
		switch {
		case !ok:
			warnings = append(warnings, fmt.Sprintf("log route '%s': component '%s' does not exist, the route will forward nothing", route.Name, route.SentryComponent))
		case !comp.Enabled:
			warnings = append(warnings, fmt.Sprintf("log route '%s': component '%s' is disabled, the route will forward nothing", route.Name, route.SentryComponent))
		case comp.DSN == "":
			warnings = append(warnings, fmt.Sprintf("log route '%s': component '%s' has no dsn, events are dropped", route.Name, route.SentryComponent))
		}
	}

	if !hasEnabledRoute {
		warnings = append(warnings, "no log route is enabled")
	}
	return warnings
}
