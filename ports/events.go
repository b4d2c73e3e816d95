package ports

import (
	"context"

	"github.com/layer-3/gatekeeper/core"
)

// EventPublisher publishes audit events about authentication outcomes
type EventPublisher interface {
	PublishLogin(ctx context.Context, principal *core.Principal, modality core.Modality) error
	PublishLogout(ctx context.Context, principal *core.Principal, tokenID string) error
}
