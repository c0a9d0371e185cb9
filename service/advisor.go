package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/mdhv11/cardwiz/model"
)

// AdvisorService stores the user's chat-style advisor log.
type AdvisorService struct {
	messages AdvisorStore
}

func NewAdvisorService(messages AdvisorStore) *AdvisorService {
	return &AdvisorService{messages: messages}
}

func (s *AdvisorService) History(ctx context.Context, userID int64) ([]model.AdvisorMessage, error) {
	msgs, err := s.messages.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list advisor messages: %w", err)
	}
	if msgs == nil {
		msgs = []model.AdvisorMessage{}
	}
	return msgs, nil
}

func (s *AdvisorService) Append(ctx context.Context, userID int64, msg *model.AdvisorMessage) (*model.AdvisorMessage, error) {
	if msg.Sender != "user" && msg.Sender != "bot" {
		return nil, fmt.Errorf("%w: sender must be \"user\" or \"bot\"", ErrValidation)
	}
	if strings.TrimSpace(msg.Text) == "" {
		return nil, fmt.Errorf("%w: text is required", ErrValidation)
	}

	msg.ID = 0
	msg.UserID = userID
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to store advisor message: %w", err)
	}
	return msg, nil
}
