package evaluation

import "github.com/RCFilm/AiRC-LLM/engines"

type llmTester struct {
	llm engines.LLM
}

// NewLLMTester sends every test prompt to llm.
func NewLLMTester(llm engines.LLM) Tester[*engines.ChatPrompt, *engines.ChatMessage] {
	return &llmTester{
		llm: llm,
	}
}

func (t *llmTester) Test(test *engines.ChatPrompt) (*engines.ChatMessage, error) {
	return t.llm.Chat(test)
}
