package main

import (
	"fmt"

	"github.com/RCFilm/AiRC-LLM/workspace"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	workspaceBackend      string
	workspaceModel        string
	workspaceSystemPrompt string
	workspaceMemoryMode   string
)

var workspaceCmd = &cobra.Command{
	Use:     "workspace",
	Aliases: []string{"ws"},
	Short:   "Manage workspaces.",
}

var workspaceCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a workspace.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), true, func(a *app) error {
			switch workspaceMemoryMode {
			case workspace.MemoryModeVector, workspace.MemoryModeSummarised:
			default:
				return fmt.Errorf("invalid memory mode %q (must be %s or %s)",
					workspaceMemoryMode, workspace.MemoryModeVector, workspace.MemoryModeSummarised)
			}
			backend := workspaceBackend
			if backend == "" {
				backend = a.cfg.DefaultBackend
			}
			ws, err := a.manager.Create(args[0], backend, workspaceModel)
			if err != nil {
				return err
			}
			if workspaceSystemPrompt != "" {
				ws.SetSetting(workspace.SystemPromptSetting, workspaceSystemPrompt)
			}
			ws.SetSetting(workspace.MemoryModeSetting, workspaceMemoryMode)
			fmt.Printf("Created workspace %s (%s)\n", color.GreenString(ws.Name()), ws.ID)
			return nil
		})
	},
}

var workspaceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workspaces.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), false, func(a *app) error {
			for _, ws := range a.manager.List() {
				model := ws.Model()
				if model == "" {
					model = "default model"
				}
				fmt.Printf("%s  %s  %s/%s  %d memories\n",
					ws.ID, color.GreenString(ws.Name()), ws.Backend(), model, ws.MemoryCount())
			}
			return nil
		})
	},
}

var workspaceRenameCmd = &cobra.Command{
	Use:   "rename WORKSPACE NEW_NAME",
	Short: "Rename a workspace.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), true, func(a *app) error {
			return a.manager.Rename(args[0], args[1])
		})
	},
}

var workspaceRemoveCmd = &cobra.Command{
	Use:     "rm WORKSPACE",
	Aliases: []string{"remove"},
	Short:   "Delete a workspace and its memory.",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), true, func(a *app) error {
			return a.manager.Remove(cmd.Context(), args[0])
		})
	},
}

func init() {
	workspaceCreateCmd.Flags().StringVar(&workspaceBackend, "backend", "", "configured backend to chat with (default from config)")
	workspaceCreateCmd.Flags().StringVar(&workspaceModel, "model", "", "model name, overrides the backend model")
	workspaceCreateCmd.Flags().StringVar(&workspaceSystemPrompt, "system-prompt", "", "system prompt sent with every message")
	workspaceCreateCmd.Flags().StringVar(&workspaceMemoryMode, "memory-mode", workspace.MemoryModeVector,
		"vector recalls stored replies, summarised keeps a running summary")

	workspaceCmd.AddCommand(workspaceCreateCmd)
	workspaceCmd.AddCommand(workspaceListCmd)
	workspaceCmd.AddCommand(workspaceRenameCmd)
	workspaceCmd.AddCommand(workspaceRemoveCmd)
}
