// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package agent

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hassanmzia/AI-Insurance-Claim-Assistant/pkg/registry"
)

// Registry maps agent ids to agents. It is populated once at start-up and
// sealed; after that it is read-only and safe for concurrent use.
type Registry struct {
	agents *registry.OrderedRegistry[Agent]

	mu      sync.RWMutex
	actions map[string]Kind
}

// NewRegistry registers every agent and seals the registry.
func NewRegistry(agents ...Agent) (*Registry, error) {
	r := &Registry{
		agents:  registry.NewOrderedRegistry[Agent](),
		actions: make(map[string]Kind),
	}
	for _, a := range agents {
		if err := r.Register(a); err != nil {
			return nil, err
		}
	}
	r.Seal()
	return r, nil
}

// Register adds an agent. It rejects duplicate ids, kinds outside the
// pipeline set, cards without actions, and any call after Seal.
func (r *Registry) Register(a Agent) error {
	if a == nil {
		return fmt.Errorf("register agent: nil agent")
	}
	if !a.Kind().Valid() {
		return fmt.Errorf("register agent %s: unknown kind %q", a.ID(), a.Kind())
	}
	card := a.Card()
	if card.AgentID != a.ID() {
		return fmt.Errorf("register agent %s: card advertises id %q", a.ID(), card.AgentID)
	}
	if len(card.Actions) == 0 {
		return fmt.Errorf("register agent %s: card declares no actions", a.ID())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, action := range card.Actions {
		if owner, taken := r.actions[action.Name]; taken && owner != a.Kind() {
			return fmt.Errorf("register agent %s: action %q already bound to %s", a.ID(), action.Name, owner)
		}
	}
	if err := r.agents.Register(a.ID(), a); err != nil {
		return fmt.Errorf("register agent: %w", err)
	}
	for _, action := range card.Actions {
		r.actions[action.Name] = a.Kind()
	}
	return nil
}

// Seal freezes the registry.
func (r *Registry) Seal() { r.agents.Seal() }

// Resolve returns the agent registered under id.
func (r *Registry) Resolve(id string) (Agent, error) {
	a, ok := r.agents.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAgent, id)
	}
	return a, nil
}

// KindForAction reports which agent kind serves an action name.
func (r *Registry) KindForAction(action string) (Kind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.actions[action]
	return k, ok
}

// CapabilityCards returns every registered card in pipeline order. Agents of
// the same kind keep registration order.
func (r *Registry) CapabilityCards() []CapabilityCard {
	agents := r.agents.List()
	rank := make(map[Kind]int, len(Kinds()))
	for i, k := range Kinds() {
		rank[k] = i
	}
	sort.SliceStable(agents, func(i, j int) bool {
		return rank[agents[i].Kind()] < rank[agents[j].Kind()]
	})

	cards := make([]CapabilityCard, 0, len(agents))
	for _, a := range agents {
		cards = append(cards, a.Card())
	}
	return cards
}

// Len returns the number of registered agents.
func (r *Registry) Len() int { return r.agents.Count() }
