// Package expert answers shopper questions about a catalog product through a
// chat completion backend.
package expert

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/shop-api/internal/domain/product"
)

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// ErrEmptyConversation is returned when the conversation has no user message.
	ErrEmptyConversation = errors.New("conversation must contain a user message")
	// ErrNotConfigured is returned when no chat backend is available.
	ErrNotConfigured = errors.New("product expert is not configured")
)

// Message is one turn of a conversation.
type Message struct {
	Role    string
	Content string
}

// Client completes a conversation.
type Client interface {
	Complete(ctx context.Context, messages []Message) (Message, error)
}

// Catalog is the product lookup the expert needs.
type Catalog interface {
	GetByID(ctx context.Context, id string) (*product.Product, error)
}

// Service answers questions about products.
type Service struct {
	catalog Catalog
	client  Client
}

// NewService creates an expert Service. A nil client makes every Ask fail
// with ErrNotConfigured.
func NewService(catalog Catalog, client Client) *Service {
	return &Service{catalog: catalog, client: client}
}

// Ask forwards the conversation about productID to the chat backend,
// prefixed with a system prompt describing the product, and returns the reply.
// Caller supplied system messages are dropped.
func (s *Service) Ask(ctx context.Context, productID string, conversation []Message) (Message, error) {
	if s.client == nil {
		return Message{}, ErrNotConfigured
	}

	msgs := make([]Message, 0, len(conversation)+1)
	var hasUser bool
	for _, m := range conversation {
		switch m.Role {
		case RoleUser:
			if strings.TrimSpace(m.Content) != "" {
				hasUser = true
			}
			msgs = append(msgs, m)
		case RoleAssistant:
			msgs = append(msgs, m)
		}
	}
	if !hasUser {
		return Message{}, ErrEmptyConversation
	}

	p, err := s.catalog.GetByID(ctx, productID)
	if err != nil {
		return Message{}, err
	}

	msgs = append([]Message{{Role: RoleSystem, Content: systemPrompt(p)}}, msgs...)

	reply, err := s.client.Complete(ctx, msgs)
	if err != nil {
		return Message{}, errors.Wrap(err, "complete")
	}
	return reply, nil
}

func systemPrompt(p *product.Product) string {
	var b strings.Builder
	b.WriteString("You are a helpful product expert for an online store. ")
	b.WriteString("Answer questions about the product below concisely and only from the given facts. ")
	b.WriteString("If the answer is not in the facts, say you do not know.\n\n")
	fmt.Fprintf(&b, "Name: %s\n", p.Name)
	fmt.Fprintf(&b, "Brand: %s\n", p.Brand)
	fmt.Fprintf(&b, "Category: %s\n", p.Category)
	fmt.Fprintf(&b, "Price: %s\n", p.Price.StringFixed(2))
	fmt.Fprintf(&b, "In stock: %d\n", p.CountInStock)
	fmt.Fprintf(&b, "Rating: %.1f from %d reviews\n", p.Rating, p.NumReviews)
	fmt.Fprintf(&b, "Description: %s\n", p.Description)
	return b.String()
}
