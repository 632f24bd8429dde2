package evaluation

import (
	"fmt"
	"io"
	"strings"

	"github.com/RCFilm/AiRC-LLM/engines"
	"gopkg.in/yaml.v3"
)

// PromptCase is one entry of a prompt evaluation file.
type PromptCase struct {
	System string `yaml:"system"`
	Prompt string `yaml:"prompt"`
	// Expect is a substring the reply must contain, compared case-insensitively.
	Expect string `yaml:"expect"`
}

func (c PromptCase) ChatPrompt() *engines.ChatPrompt {
	prompt := &engines.ChatPrompt{}
	if c.System != "" {
		prompt.History = append(prompt.History, &engines.ChatMessage{Role: engines.ConvRoleSystem, Text: c.System})
	}
	prompt.History = append(prompt.History, &engines.ChatMessage{Role: engines.ConvRoleUser, Text: c.Prompt})
	return prompt
}

// LoadPromptCases reads a YAML list of prompt cases.
func LoadPromptCases(r io.Reader) ([]PromptCase, error) {
	var cases []PromptCase
	if err := yaml.NewDecoder(r).Decode(&cases); err != nil {
		return nil, fmt.Errorf("failed to decode prompt cases: %w", err)
	}
	for i, c := range cases {
		if c.Prompt == "" {
			return nil, fmt.Errorf("prompt case %d has no prompt", i+1)
		}
	}
	return cases, nil
}

type promptTester struct {
	llm Tester[*engines.ChatPrompt, *engines.ChatMessage]
}

// NewPromptTester sends every prompt case to llm.
func NewPromptTester(llm engines.LLM) Tester[PromptCase, *engines.ChatMessage] {
	return &promptTester{llm: NewLLMTester(llm)}
}

func (t *promptTester) Test(test PromptCase) (*engines.ChatMessage, error) {
	return t.llm.Test(test.ChatPrompt())
}

// ExpectContains scores 1 when the reply contains the expected text and 0
// otherwise. A case without an expectation passes on any reply.
func ExpectContains(test PromptCase, reply *engines.ChatMessage, err error) float64 {
	if err != nil || reply == nil {
		return 0
	}
	if strings.Contains(strings.ToLower(reply.Text), strings.ToLower(test.Expect)) {
		return 1
	}
	return 0
}
