package main

import (
	"fmt"
	"os"
	"time"

	"github.com/RCFilm/AiRC-LLM/engines"
	"github.com/RCFilm/AiRC-LLM/evaluation"
	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	evalBackend     string
	evalModel       string
	evalRepetitions int
)

var evalCmd = &cobra.Command{
	Use:   "eval CASES_FILE",
	Short: "Score a backend against a YAML file of prompts and expected answers.",
	Long: `Score a backend against a YAML file of prompts and expected answers.

Each case is a prompt, an optional system prompt and a text the reply must
contain:

  - prompt: What is the capital of France?
    expect: Paris`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open prompt cases: %w", err)
		}
		defer f.Close()
		cases, err := evaluation.LoadPromptCases(f)
		if err != nil {
			return err
		}
		name, llm, err := openBackend(evalBackend, evalModel)
		if err != nil {
			return err
		}

		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Suffix = fmt.Sprintf(" evaluating %d prompts on %s", len(cases), name)
		s.Writer = os.Stderr
		s.Start()
		evaluator := evaluation.NewEvaluator(evaluation.NewPromptTester(llm), &evaluation.Options[evaluation.PromptCase, *engines.ChatMessage]{
			GoodnessFunction: evaluation.ExpectContains,
			Repetitions:      evalRepetitions,
		})
		report, err := evaluator.Evaluate(cases)
		s.Stop()
		if err != nil {
			return err
		}
		for i, c := range cases {
			score := color.GreenString("%.2f", report[i])
			if report[i] < 1 {
				score = color.RedString("%.2f", report[i])
			}
			fmt.Printf("%s  %s\n", score, c.Prompt)
		}
		fmt.Printf("mean score over %d prompts: %s\n", len(cases), color.GreenString("%.3f", evaluation.Mean(report)))
		return nil
	},
}

func init() {
	evalCmd.Flags().StringVar(&evalBackend, "backend", "", "configured backend to evaluate (default from config)")
	evalCmd.Flags().StringVar(&evalModel, "model", "", "model name, overrides the backend model")
	evalCmd.Flags().IntVarP(&evalRepetitions, "repetitions", "n", 1, "times every prompt is sent")
}
