package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"storyforge-server/internal/ai"
)

// Mock ai.Client
type AIClient struct {
	mock.Mock
}

func (m *AIClient) GenerateText(ctx context.Context, systemPrompt, userInput string, maxTokens int) (string, ai.UsageInfo, error) {
	args := m.Called(ctx, systemPrompt, userInput, maxTokens)
	var usage ai.UsageInfo
	if u, ok := args.Get(1).(ai.UsageInfo); ok {
		usage = u
	}
	return args.String(0), usage, args.Error(2)
}
