package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat WORKSPACE [MESSAGE]",
	Short: "Chat in a workspace.",
	Long: `Send MESSAGE to the workspace backend and print the reply.
Without MESSAGE, read messages from standard input until EOF.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withApp(ctx, true, func(a *app) error {
			if len(args) == 2 {
				return chatTurn(a, args[0], args[1])
			}
			scanner := bufio.NewScanner(os.Stdin)
			fmt.Print(color.CyanString("> "))
			for scanner.Scan() {
				text := strings.TrimSpace(scanner.Text())
				if text != "" {
					if err := chatTurn(a, args[0], text); err != nil {
						log.Error(err)
					} else if err := a.save(ctx); err != nil {
						log.Error(err)
					}
				}
				fmt.Print(color.CyanString("> "))
			}
			fmt.Println()
			return scanner.Err()
		})
	},
}

func chatTurn(a *app, workspace, text string) error {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " Just a moment..."
	s.Writer = os.Stderr
	s.Start()
	reply, err := a.manager.Send(workspace, text)
	s.Stop()
	if err != nil {
		return err
	}
	fmt.Println(reply.Text)
	return nil
}
