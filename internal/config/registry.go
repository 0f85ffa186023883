package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/voxsentinel/voxsentinel/internal/alert"
	"github.com/voxsentinel/voxsentinel/internal/asr"
	"github.com/voxsentinel/voxsentinel/internal/vad"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider kind VoxSentinel pluggable component. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	asr     map[string]func(ProviderEntry) (asr.Engine, error)
	vad     map[string]func(ProviderEntry) (vad.Engine, error)
	channel map[string]func(ChannelEntry) (alert.Channel, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		asr:     make(map[string]func(ProviderEntry) (asr.Engine, error)),
		vad:     make(map[string]func(ProviderEntry) (vad.Engine, error)),
		channel: make(map[string]func(ChannelEntry) (alert.Channel, error)),
	}
}

// RegisterASR registers an ASR engine factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterASR(name string, factory func(ProviderEntry) (asr.Engine, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.asr[name] = factory
}

// RegisterVAD registers a VAD engine factory under name.
func (r *Registry) RegisterVAD(name string, factory func(ProviderEntry) (vad.Engine, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vad[name] = factory
}

// RegisterChannel registers an alert channel factory under name.
func (r *Registry) RegisterChannel(name string, factory func(ChannelEntry) (alert.Channel, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channel[name] = factory
}

// CreateASR instantiates an ASR engine using the factory registered under entry.Name.
func (r *Registry) CreateASR(entry ProviderEntry) (asr.Engine, error) {
	r.mu.RLock()
	factory, ok := r.asr[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: asr/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateVAD instantiates a VAD engine using the factory registered under entry.Name.
func (r *Registry) CreateVAD(entry ProviderEntry) (vad.Engine, error) {
	r.mu.RLock()
	factory, ok := r.vad[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: vad/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateChannel instantiates an alert channel using the factory registered
// under entry.ChannelType.
func (r *Registry) CreateChannel(entry ChannelEntry) (alert.Channel, error) {
	r.mu.RLock()
	factory, ok := r.channel[entry.ChannelType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: channel/%q", ErrProviderNotRegistered, entry.ChannelType)
	}
	return factory(entry)
}
