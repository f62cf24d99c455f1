package source

import (
	"context"
)

import (
	"github.com/nanjiek/lockgate/internal/config"
)

// PolicyPayload is a bot policy fetched from an external source.
type PolicyPayload struct {
	Policy  config.BotPolicy
	Version string
}

// PolicySource fetches bot policies from an external system (e.g., Nacos).
type PolicySource interface {
	Fetch(ctx context.Context) (PolicyPayload, error)
}
