package memory

import (
	"context"
	"sync"

	"github.com/klaemsch/authopie/internal/domain/oauth"
	apperrors "github.com/klaemsch/authopie/pkg/errors"
)

// ClientRepository implements oauth.ClientRepository in memory.
type ClientRepository struct {
	mu      sync.RWMutex
	clients map[string]*oauth.Client
}

// NewClientRepository creates an empty in-memory client registry.
func NewClientRepository() *ClientRepository {
	return &ClientRepository{clients: make(map[string]*oauth.Client)}
}

func (r *ClientRepository) Create(_ context.Context, client *oauth.Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[client.ClientID]; ok {
		return apperrors.ErrEntityAlreadyExists
	}
	r.clients[client.ClientID] = client
	return nil
}

func (r *ClientRepository) GetByClientID(_ context.Context, clientID string) (*oauth.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.clients[clientID]
	if !ok {
		return nil, apperrors.ErrClientNotFound
	}
	return client, nil
}
