package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/oarkflow/guardian"
	"github.com/oarkflow/guardian/stores"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "convert":
		handleConvert()
	case "validate":
		handleValidate()
	case "stats":
		handleStats()
	case "apply":
		handleApply()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("guardian-config - Configuration tool for guardian")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  guardian-config convert <input> <output>  - Convert between formats")
	fmt.Println("  guardian-config validate <file>           - Validate configuration")
	fmt.Println("  guardian-config stats <file>              - Show configuration statistics")
	fmt.Println("  guardian-config apply <file>              - Apply configuration to an in-memory engine")
	fmt.Println()
	fmt.Println("Supported formats: .yaml, .yml, .json")
}

func handleConvert() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: guardian-config convert <input> <output>")
		os.Exit(1)
	}

	cfg, err := loadConfig(os.Args[2])
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := saveConfig(cfg, os.Args[3]); err != nil {
		fmt.Printf("Error saving config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Converted %s -> %s\n", os.Args[2], os.Args[3])
}

func handleValidate() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: guardian-config validate <file>")
		os.Exit(1)
	}

	cfg, err := loadConfig(os.Args[2])
	if err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Configuration is valid\n")
	fmt.Printf("  Tenants:     %d\n", len(cfg.Tenants))
	fmt.Printf("  Roles:       %d\n", len(cfg.Roles))
	fmt.Printf("  Grants:      %d\n", len(cfg.Grants))
	fmt.Printf("  Assignments: %d\n", len(cfg.Assignments))
	fmt.Printf("  Policies:    %d\n", len(cfg.Policies))
}

func handleStats() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: guardian-config stats <file>")
		os.Exit(1)
	}

	filename := os.Args[2]
	cfg, err := loadConfig(filename)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Configuration Statistics")
	fmt.Println("========================")
	if stat, err := os.Stat(filename); err == nil {
		fmt.Printf("File size: %d bytes\n", stat.Size())
	}
	fmt.Println()

	fmt.Println("Components:")
	fmt.Printf("  Tenants:     %d\n", len(cfg.Tenants))
	fmt.Printf("  Roles:       %d\n", len(cfg.Roles))
	fmt.Printf("  Grants:      %d\n", len(cfg.Grants))
	fmt.Printf("  Assignments: %d\n", len(cfg.Assignments))
	fmt.Printf("  Policies:    %d\n", len(cfg.Policies))
	fmt.Println()

	if len(cfg.Policies) > 0 {
		allowCount := 0
		denyCount := 0
		for _, p := range cfg.Policies {
			if p.Effect == guardian.EffectAllow {
				allowCount++
			} else {
				denyCount++
			}
		}
		fmt.Println("Policy Details:")
		fmt.Printf("  Allow policies: %d\n", allowCount)
		fmt.Printf("  Deny policies:  %d\n", denyCount)
		fmt.Println()
	}

	if len(cfg.Roles) > 0 {
		totalPerms := 0
		for _, r := range cfg.Roles {
			totalPerms += len(r.Permissions)
		}
		fmt.Println("Role Details:")
		fmt.Printf("  Total permissions: %d\n", totalPerms)
		fmt.Printf("  Avg per role:      %.1f\n", float64(totalPerms)/float64(len(cfg.Roles)))
		fmt.Println()
	}

	fmt.Println("Engine Configuration:")
	fmt.Printf("  Max depth:          %d\n", cfg.MaxDepth)
	fmt.Printf("  Cache backend:      %s\n", cfg.Cache.Backend)
	fmt.Printf("  Decision cache TTL: %dms\n", cfg.Cache.TTLMillis)
}

func handleApply() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: guardian-config apply <file>")
		os.Exit(1)
	}

	cfg, err := loadConfig(os.Args[2])
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	opts, err := cfg.EngineOptions()
	if err != nil {
		fmt.Printf("Error building engine options: %v\n", err)
		os.Exit(1)
	}
	engine, err := guardian.NewEngine(
		stores.NewMemoryTenantStore(),
		stores.NewMemoryGrantStore(),
		stores.NewMemoryRoleStore(),
		stores.NewMemoryAssignmentStore(),
		stores.NewMemoryPolicyStore(),
		stores.NewMemoryAuditStore(),
		opts...,
	)
	if err != nil {
		fmt.Printf("Error building engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	if err := engine.ApplyConfig(context.Background(), cfg, "guardian-config"); err != nil {
		fmt.Printf("Error applying config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Configuration applied successfully\n")
	fmt.Printf("  Tenants loaded:  %d\n", len(cfg.Tenants))
	fmt.Printf("  Roles loaded:    %d\n", len(cfg.Roles))
	fmt.Printf("  Grants loaded:   %d\n", len(cfg.Grants))
	fmt.Printf("  Policies loaded: %d\n", len(cfg.Policies))
}

func loadConfig(filename string) (*guardian.Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return guardian.LoadConfigYAML(data)
	case ".json":
		return guardian.LoadConfigJSON(data)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", filepath.Ext(filename))
	}
}

func saveConfig(cfg *guardian.Config, filename string) error {
	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		data, err = cfg.ToYAML()
	case ".json":
		data, err = cfg.ToJSON()
	default:
		return fmt.Errorf("unsupported file format: %s", filepath.Ext(filename))
	}
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}
