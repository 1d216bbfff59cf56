package messages

import (
	"github.com/korjavin/gamenight/pkg/logger"
	"github.com/korjavin/gamenight/pkg/openai"
)

// Service provides message generation functionality
type Service struct {
	openaiClient *openai.Client
	logger       *logger.Logger
}

// New creates a new message service
func New(openaiClient *openai.Client) *Service {
	return &Service{
		openaiClient: openaiClient,
		logger:       logger.New("messages"),
	}
}

// GenerateWelcomeMessage generates a welcome message
func (s *Service) GenerateWelcomeMessage() string {
	msg, err := s.openaiClient.GenerateChatMessage("welcome", map[string]interface{}{
		"purpose": "Help groups of friends pick a game night time everyone can make",
	})
	if err != nil {
		s.logger.Error("Failed to generate welcome message: %v", err)
		return "👋 Welcome to GameNight bot! I'll help your group pick a time everyone can make. Try /schedule to propose one."
	}
	return msg
}

// GenerateConfirmationCelebration generates a short celebration for a locked-in session
func (s *Service) GenerateConfirmationCelebration(title, when string, players int) string {
	msg, err := s.openaiClient.GenerateChatMessage("session_confirmed", map[string]interface{}{
		"title":   title,
		"when":    when,
		"players": players,
	})
	if err != nil {
		s.logger.Error("Failed to generate confirmation celebration: %v", err)
		return "🎉 It's on! See you all there."
	}
	return msg
}

// GenerateErrorMessage generates an error message
func (s *Service) GenerateErrorMessage(context string) string {
	msg, err := s.openaiClient.GenerateChatMessage("error", map[string]interface{}{
		"context": context,
	})
	if err != nil {
		s.logger.Error("Failed to generate error message: %v", err)
		return "😢 Sorry, something went wrong. Please try again later."
	}
	return msg
}
