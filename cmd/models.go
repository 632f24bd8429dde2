package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/RCFilm/AiRC-LLM/config"
	"github.com/RCFilm/AiRC-LLM/engines"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var listRunning bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect the models of a backend.",
}

var modelsListCmd = &cobra.Command{
	Use:   "list [BACKEND]",
	Short: "List the models a backend serves.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		name, llm, err := openBackend(name, "")
		if err != nil {
			return err
		}

		var models []engines.Model
		switch {
		case listRunning:
			manager, ok := llm.(engines.ModelManager)
			if !ok {
				return fmt.Errorf("backend %s does not report running models", name)
			}
			models, err = manager.ListRunningModels()
		default:
			lister, ok := llm.(engines.ModelLister)
			if !ok {
				return fmt.Errorf("backend %s cannot list models", name)
			}
			models, err = lister.ListModels()
		}
		if err != nil {
			return err
		}
		for _, m := range models {
			if m.Size > 0 {
				fmt.Printf("%s  %s\n", color.GreenString(m.Name), formatSize(m.Size))
				continue
			}
			fmt.Println(color.GreenString(m.Name))
		}
		return nil
	},
}

var modelsLoadCmd = &cobra.Command{
	Use:   "load MODEL [BACKEND]",
	Short: "Load a model into the memory of its backend server.",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := ""
		if len(args) == 2 {
			name = args[1]
		}
		name, llm, err := openBackend(name, "")
		if err != nil {
			return err
		}
		manager, ok := llm.(engines.ModelManager)
		if !ok {
			return fmt.Errorf("backend %s cannot load models", name)
		}
		if err := manager.LoadModel(args[0]); err != nil {
			return err
		}
		fmt.Printf("Loaded %s on %s\n", color.GreenString(args[0]), name)
		return nil
	},
}

// openBackend creates the configured backend called name, the default
// backend when name is empty. A non-empty model overrides the backend model.
func openBackend(name, model string) (string, engines.LLM, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", nil, err
	}
	if name == "" {
		name = cfg.DefaultBackend
	}
	backendCfg, ok := cfg.Backends[name]
	if !ok {
		return "", nil, fmt.Errorf("%w: %q is not configured", engines.ErrUnknownBackend, name)
	}
	if model != "" {
		backendCfg.Model = model
	}
	llm, err := engines.NewDefaultRegistry().New(backendCfg)
	if err != nil {
		return "", nil, err
	}
	return name, llm, nil
}

func formatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the configuration.",
}

var configSchemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON schema of the config file.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(config.Schema())
	},
}

func init() {
	modelsListCmd.Flags().BoolVar(&listRunning, "running", false, "only list models loaded in memory")
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsLoadCmd)
	configCmd.AddCommand(configSchemaCmd)
}
