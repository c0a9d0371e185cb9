package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mdhv11/cardwiz/model"
	"github.com/mdhv11/cardwiz/pkg/cache"
)

const cardMetadataCache = "cardMetadataByUserV2"

// CardService manages the user's card portfolio. The per-user card list is
// cached; every mutation drops the whole cache name since card metadata also
// feeds recommendations.
type CardService struct {
	cards CardStore
	cache *cache.Cache
}

func NewCardService(cards CardStore, c *cache.Cache) *CardService {
	return &CardService{cards: cards, cache: c}
}

// List returns the user's cards, served from cache when fresh.
func (s *CardService) List(ctx context.Context, userID int64) ([]model.Card, error) {
	cacheKey := strconv.FormatInt(userID, 10)

	var cached []model.Card
	if s.cache.Get(ctx, cardMetadataCache, cacheKey, &cached) {
		return cached, nil
	}

	cards, err := s.cards.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	if cards == nil {
		cards = []model.Card{}
	}

	s.cache.Put(ctx, cardMetadataCache, cacheKey, cards)
	return cards, nil
}

// Get returns one card owned by the user.
func (s *CardService) Get(ctx context.Context, userID, cardID int64) (*model.Card, error) {
	card, err := s.cards.FindByID(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to load card: %w", err)
	}
	if card == nil || card.UserID != userID {
		return nil, fmt.Errorf("%w: card %d", ErrNotFound, cardID)
	}
	return card, nil
}

// Create adds a card to the user's portfolio.
func (s *CardService) Create(ctx context.Context, userID int64, card *model.Card) (*model.Card, error) {
	if strings.TrimSpace(card.CardName) == "" {
		return nil, fmt.Errorf("%w: cardName is required", ErrValidation)
	}
	if card.LastFourDigits != "" && len(card.LastFourDigits) != 4 {
		return nil, fmt.Errorf("%w: lastFourDigits must be exactly 4 digits", ErrValidation)
	}

	card.ID = 0
	card.UserID = userID
	card.Active = true
	if err := s.cards.Create(ctx, card); err != nil {
		return nil, fmt.Errorf("failed to create card: %w", err)
	}

	s.cache.EvictAll(ctx, cardMetadataCache)
	return card, nil
}

// Update replaces a card's mutable fields.
func (s *CardService) Update(ctx context.Context, userID, cardID int64, card *model.Card) (*model.Card, error) {
	existing, err := s.Get(ctx, userID, cardID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(card.CardName) == "" {
		return nil, fmt.Errorf("%w: cardName is required", ErrValidation)
	}
	if card.LastFourDigits != "" && len(card.LastFourDigits) != 4 {
		return nil, fmt.Errorf("%w: lastFourDigits must be exactly 4 digits", ErrValidation)
	}

	existing.CardName = card.CardName
	existing.Issuer = card.Issuer
	existing.Network = card.Network
	existing.LastFourDigits = card.LastFourDigits
	existing.Active = card.Active
	if err := s.cards.Update(ctx, existing); err != nil {
		return nil, fmt.Errorf("failed to update card: %w", err)
	}

	s.cache.EvictAll(ctx, cardMetadataCache)
	return existing, nil
}

// Delete removes a card owned by the user.
func (s *CardService) Delete(ctx context.Context, userID, cardID int64) error {
	if _, err := s.Get(ctx, userID, cardID); err != nil {
		return err
	}
	if err := s.cards.Delete(ctx, cardID); err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}

	s.cache.EvictAll(ctx, cardMetadataCache)
	return nil
}

// ActiveCardIDs returns the ids of the user's active cards.
func (s *CardService) ActiveCardIDs(ctx context.Context, userID int64) ([]int64, error) {
	cards, err := s.cards.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cards: %w", err)
	}
	ids := make([]int64, 0, len(cards))
	for _, c := range cards {
		if c.Active {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}
