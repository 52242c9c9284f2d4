package provider

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jaevor/go-nanoid"
)

// GatewayService holds the initialized provider instances for this process.
// Each instance carries its own resolved credentials, so concurrent requests
// for different providers share nothing mutable.
type GatewayService struct {
	mu        sync.RWMutex
	providers map[string]PixProvider
	flags     Flags
}

// NewGatewayService creates an empty gateway service
func NewGatewayService() *GatewayService {
	return &GatewayService{
		providers: make(map[string]PixProvider),
		flags:     make(Flags),
	}
}

// AddProvider creates, validates and initializes a provider from the default
// registry and makes it available for selection.
func (s *GatewayService) AddProvider(name string, conf map[string]string, enabled bool) error {
	name = strings.ToLower(strings.TrimSpace(name))

	p, err := CreateProvider(name)
	if err != nil {
		return err
	}

	if err := p.Initialize(conf); err != nil {
		return fmt.Errorf("initialize provider %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[name] = p
	s.flags[name] = enabled

	return nil
}

// Provider returns the initialized provider by name.
func (s *GatewayService) Provider(name string) (PixProvider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.providers[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("pix provider '%s' is not configured", name)
	}
	return p, nil
}

// Select resolves the provider for a deposit request per the selection rules
// and returns its name together with the initialized instance.
func (s *GatewayService) Select(requested string) (string, PixProvider, error) {
	s.mu.RLock()
	flags := make(Flags, len(s.flags))
	for k, v := range s.flags {
		flags[k] = v
	}
	s.mu.RUnlock()

	name, err := SelectGateway(requested, flags)
	if err != nil {
		return "", nil, err
	}

	p, err := s.Provider(name)
	if err != nil {
		return "", nil, err
	}
	return name, p, nil
}

// ProviderNames returns the names of all configured providers.
func (s *GatewayService) ProviderNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	return names
}

// Correlation ids must never collide across concurrent attempts: UUIDv4 for
// the provider-facing correlation id, nanoid for the shorter internal token.
var newUniqueToken, _ = nanoid.Standard(21)

// NewCorrelationID generates the provider-facing correlation id for a payment attempt.
func NewCorrelationID() string {
	return uuid.New().String()
}

// NewUniqueToken generates the internal de-duplication token stored with a transaction.
func NewUniqueToken() string {
	return newUniqueToken()
}
