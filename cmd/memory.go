package main

import (
	"fmt"
	"time"

	"github.com/RCFilm/AiRC-LLM/evaluation"
	"github.com/RCFilm/AiRC-LLM/memory"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	queryK          int
	rebuildCapacity int
	evalQueries     int
	evalK           int
	evalSeed        int64
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and maintain workspace memory.",
}

var memoryAddCmd = &cobra.Command{
	Use:   "add WORKSPACE TEXT",
	Short: "Store a text in the workspace memory.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), true, func(a *app) error {
			label, err := a.manager.Remember(args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Printf("Stored as memory %d\n", label)
			return nil
		})
	},
}

var memoryQueryCmd = &cobra.Command{
	Use:   "query WORKSPACE TEXT",
	Short: "Show the memories closest to a text.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), false, func(a *app) error {
			matches, err := a.manager.Query(args[0], args[1], queryK)
			if err != nil {
				return err
			}
			if len(matches) == 0 {
				fmt.Println("No memories yet.")
			}
			for _, m := range matches {
				fmt.Printf("%s %s %s\n",
					color.YellowString("#%d", m.Label),
					color.CyanString("(%.4f)", m.Distance),
					m.Text)
			}
			return nil
		})
	},
}

var memoryStatsCmd = &cobra.Command{
	Use:   "stats WORKSPACE",
	Short: "Show the size of the workspace memory.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), false, func(a *app) error {
			ws, err := a.manager.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("workspace: %s\nrecords:   %d\ncapacity:  %d\ndimension: %d\n",
				ws.Name(), ws.MemoryCount(), ws.MemoryCapacity(), ws.MemoryDimension())
			return nil
		})
	},
}

var memoryRebuildCmd = &cobra.Command{
	Use:   "rebuild WORKSPACE",
	Short: "Re-create the memory index, optionally with a new capacity.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), true, func(a *app) error {
			ws, err := a.manager.Get(args[0])
			if err != nil {
				return err
			}
			capacity := rebuildCapacity
			if capacity <= 0 {
				capacity = ws.MemoryCapacity()
			}
			started := time.Now()
			if err := ws.RebuildMemory(capacity); err != nil {
				return err
			}
			fmt.Printf("Rebuilt %d records with capacity %d in %s\n", ws.MemoryCount(), capacity, time.Since(started).Round(time.Millisecond))
			return nil
		})
	},
}

var memoryEvalCmd = &cobra.Command{
	Use:   "eval WORKSPACE",
	Short: "Measure the recall of the memory index against an exact scan.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), false, func(a *app) error {
			ws, err := a.manager.Get(args[0])
			if err != nil {
				return err
			}
			return ws.ReadMemory(func(store *memory.Store) error {
				if store.Count() == 0 {
					fmt.Println("No memories yet.")
					return nil
				}
				cases := evaluation.RandomCases(store.Dimension(), evalQueries, evalK, evalSeed)
				evaluator := evaluation.NewEvaluator(evaluation.NewRecallTester(store), &evaluation.Options[evaluation.RecallCase, []memory.Match]{
					GoodnessFunction: evaluation.RecallAtK(store),
					Repetitions:      1,
				})
				report, err := evaluator.Evaluate(cases)
				if err != nil {
					return err
				}
				fmt.Printf("recall@%d over %d queries: %s\n", evalK, len(cases), color.GreenString("%.3f", evaluation.Mean(report)))
				return nil
			})
		})
	},
}

func init() {
	memoryQueryCmd.Flags().IntVarP(&queryK, "top", "k", 3, "number of memories to show")
	memoryRebuildCmd.Flags().IntVar(&rebuildCapacity, "capacity", 0, "new capacity (default: keep the current one)")
	memoryEvalCmd.Flags().IntVar(&evalQueries, "queries", 100, "number of random queries")
	memoryEvalCmd.Flags().IntVarP(&evalK, "top", "k", 10, "neighbours per query")
	memoryEvalCmd.Flags().Int64Var(&evalSeed, "seed", 1, "seed of the random queries")

	memoryCmd.AddCommand(memoryAddCmd)
	memoryCmd.AddCommand(memoryQueryCmd)
	memoryCmd.AddCommand(memoryStatsCmd)
	memoryCmd.AddCommand(memoryRebuildCmd)
	memoryCmd.AddCommand(memoryEvalCmd)
}
