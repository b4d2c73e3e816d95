package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/gatekeeper/core"
	"github.com/layer-3/gatekeeper/ports"
)

const (
	DefaultLoginTopic  = "gatekeeper.login"
	DefaultLogoutTopic = "gatekeeper.logout"
)

// LoginEvent is published after a successful login
type LoginEvent struct {
	UserID   string    `json:"user_id"`
	Username string    `json:"username"`
	Modality string    `json:"modality"`
	At       time.Time `json:"at"`
}

// LogoutEvent is published after a token was revoked by logout
type LogoutEvent struct {
	UserID   string    `json:"user_id,omitempty"`
	Username string    `json:"username,omitempty"`
	TokenID  string    `json:"token_id"`
	At       time.Time `json:"at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher   message.Publisher
	loginTopic  string
	logoutTopic string
}

// NewWatermillPublisher creates a new Watermill publisher. Empty topics fall
// back to the defaults.
func NewWatermillPublisher(publisher message.Publisher, loginTopic, logoutTopic string) ports.EventPublisher {
	if loginTopic == "" {
		loginTopic = DefaultLoginTopic
	}
	if logoutTopic == "" {
		logoutTopic = DefaultLogoutTopic
	}
	return &WatermillPublisher{
		publisher:   publisher,
		loginTopic:  loginTopic,
		logoutTopic: logoutTopic,
	}
}

// PublishLogin publishes a login event
func (p *WatermillPublisher) PublishLogin(ctx context.Context, principal *core.Principal, modality core.Modality) error {
	event := LoginEvent{
		UserID:   principal.ID,
		Username: principal.Username,
		Modality: string(modality),
		At:       time.Now().UTC(),
	}
	return p.publish(ctx, p.loginTopic, watermill.NewUUID(), event)
}

// PublishLogout publishes a logout event
func (p *WatermillPublisher) PublishLogout(ctx context.Context, principal *core.Principal, tokenID string) error {
	event := LogoutEvent{
		TokenID: tokenID,
		At:      time.Now().UTC(),
	}
	if principal != nil {
		event.UserID = principal.ID
		event.Username = principal.Username
	}
	return p.publish(ctx, p.logoutTopic, tokenID, event)
}

func (p *WatermillPublisher) publish(ctx context.Context, topic, uuid string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid, payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
