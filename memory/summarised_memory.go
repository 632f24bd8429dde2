package memory

import (
	"fmt"

	"github.com/RCFilm/AiRC-LLM/engines"
)

type SummarisedMemory struct {
	recentMessageLimit int
	recentMessages     []*engines.ChatMessage
	originalPrompt     *engines.ChatPrompt
	memoryState        string
	model              engines.LLM
}

func (memory *SummarisedMemory) reduceBuffer() {
	if memory.recentMessageLimit > 0 && len(memory.recentMessages) > memory.recentMessageLimit {
		memory.recentMessages = memory.recentMessages[len(memory.recentMessages)-memory.recentMessageLimit:]
	}
}

func (memory *SummarisedMemory) updateMemoryState(msg ...*engines.ChatMessage) error {
	prompt := engines.ChatPrompt{
		History: []*engines.ChatMessage{
			{
				Role: engines.ConvRoleSystem,
				Text: "You maintain the long term memory of a chat workspace. The user sends you two or more messages: " +
					"one with the current memory state, and the rest with new messages " +
					"exchanged between the user of the workspace and the assistant. You should " +
					"update the memory state to reflect the new messages' content. " +
					"Keep the memory state as compact as possible " +
					"while preserving facts, decisions and open questions the assistant " +
					"will need later in the conversation. Do not include any other text " +
					"in your response.",
			},
			{
				Role: engines.ConvRoleUser,
				Text: "Memory state:\n\n" + memory.memoryState,
			},
		},
	}
	for _, m := range msg {
		prompt.History = append(prompt.History, &engines.ChatMessage{
			Role: engines.ConvRoleUser,
			Text: fmt.Sprintf("New message:\n\nRole: %s\nContent: %s", m.Role, m.Text),
		})
	}
	updatedMemState, err := memory.model.Chat(&prompt)
	if err != nil {
		return fmt.Errorf("failed to update memory state: %w", err)
	}
	memory.memoryState = updatedMemState.Text
	return nil
}

func (memory *SummarisedMemory) Add(msg *engines.ChatMessage) error {
	memory.recentMessages = append(memory.recentMessages, msg)
	memory.reduceBuffer()
	if err := memory.updateMemoryState(msg); err != nil {
		return fmt.Errorf("failed to update memory state: %w", err)
	}
	return nil
}

// Summarise folds several messages into the memory state with one model call.
func (memory *SummarisedMemory) Summarise(msgs ...*engines.ChatMessage) error {
	return memory.updateMemoryState(msgs...)
}

// State returns the current memory state.
func (memory *SummarisedMemory) State() string {
	return memory.memoryState
}

// SetState resumes from a state returned by State.
func (memory *SummarisedMemory) SetState(state string) {
	memory.memoryState = state
}

func (memory *SummarisedMemory) AddPrompt(prompt *engines.ChatPrompt) error {
	memory.originalPrompt = prompt
	return nil
}

func (memory *SummarisedMemory) PromptWithContext(nextMessages ...*engines.ChatMessage) (*engines.ChatPrompt, error) {
	memory.recentMessages = append(memory.recentMessages, nextMessages...)
	var history []*engines.ChatMessage
	if memory.originalPrompt != nil {
		history = append(history, memory.originalPrompt.History...)
	}
	history = append(history, &engines.ChatMessage{
		Role: engines.ConvRoleSystem,
		Text: fmt.Sprintf("Memory state:\n\n%s", memory.memoryState),
	})
	return &engines.ChatPrompt{
		History: append(history, memory.recentMessages...),
	}, nil
}

func NewSummarisedMemory(recentMessageLimit int, model engines.LLM) *SummarisedMemory {
	return &SummarisedMemory{
		recentMessageLimit: recentMessageLimit,
		model:              model,
	}
}
