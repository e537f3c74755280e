package lifecycle

import (
	"context"
	"fmt"

	"github.com/adnan4498/infinitum-crm-server/internal/domain/entity"
)

// GuardFunc is a function that evaluates whether a transition should be allowed
type GuardFunc func(ctx context.Context) bool

// StateMachineBuilder builds a configured state machine
type StateMachineBuilder interface {
	// Configure returns a status configuration for the given status
	Configure(status entity.Status) StateConfiguration

	// Build creates a new state machine instance with the given initial status
	Build(initialStatus entity.Status) StateMachine
}

// StateConfiguration configures transitions for a specific status
type StateConfiguration interface {
	// Permit allows a trigger to transition to the target status
	Permit(trigger Trigger, toStatus entity.Status) StateConfiguration

	// PermitIf allows a trigger to transition to the target status if the guard passes
	PermitIf(trigger Trigger, toStatus entity.Status, guard GuardFunc) StateConfiguration
}

// transition represents a status transition with optional guard
type transition struct {
	toStatus entity.Status
	guard    GuardFunc
}

type stateConfig struct {
	fromStatus  entity.Status
	transitions map[Trigger][]transition
}

type stateMachineBuilder struct {
	configurations map[entity.Status]*stateConfig
}

type stateMachine struct {
	currentStatus  entity.Status
	configurations map[entity.Status]*stateConfig
}

// NewBuilder creates a new state machine builder
func NewBuilder() StateMachineBuilder {
	return &stateMachineBuilder{
		configurations: make(map[entity.Status]*stateConfig),
	}
}

func (b *stateMachineBuilder) Configure(status entity.Status) StateConfiguration {
	if !status.IsValid() {
		panic(fmt.Sprintf("invalid status: %s", status))
	}

	config, exists := b.configurations[status]
	if !exists {
		config = &stateConfig{
			fromStatus:  status,
			transitions: make(map[Trigger][]transition),
		}
		b.configurations[status] = config
	}

	return config
}

func (b *stateMachineBuilder) Build(initialStatus entity.Status) StateMachine {
	if !initialStatus.IsValid() {
		panic(fmt.Sprintf("invalid initial status: %s", initialStatus))
	}

	// Deep copy configurations so built machines are independent of the builder
	configsCopy := make(map[entity.Status]*stateConfig)
	for status, config := range b.configurations {
		transitionsCopy := make(map[Trigger][]transition)
		for trigger, transitions := range config.transitions {
			transitionsCopy[trigger] = append([]transition{}, transitions...)
		}
		configsCopy[status] = &stateConfig{
			fromStatus:  status,
			transitions: transitionsCopy,
		}
	}

	return &stateMachine{
		currentStatus:  initialStatus,
		configurations: configsCopy,
	}
}

func (c *stateConfig) Permit(trigger Trigger, toStatus entity.Status) StateConfiguration {
	return c.PermitIf(trigger, toStatus, nil)
}

func (c *stateConfig) PermitIf(trigger Trigger, toStatus entity.Status, guard GuardFunc) StateConfiguration {
	if !toStatus.IsValid() {
		panic(fmt.Sprintf("invalid target status: %s", toStatus))
	}

	c.transitions[trigger] = append(c.transitions[trigger], transition{
		toStatus: toStatus,
		guard:    guard,
	})

	return c
}

func (m *stateMachine) State() entity.Status {
	return m.currentStatus
}

func (m *stateMachine) CanFire(trigger Trigger) bool {
	config, exists := m.configurations[m.currentStatus]
	if !exists {
		return false
	}

	transitions, exists := config.transitions[trigger]
	return exists && len(transitions) > 0
}

func (m *stateMachine) Fire(ctx context.Context, trigger Trigger) error {
	config, exists := m.configurations[m.currentStatus]
	if !exists {
		return fmt.Errorf("%w: cannot fire trigger %s from status %s (no configuration)", ErrInvalidTransition, trigger, m.currentStatus)
	}

	transitions, exists := config.transitions[trigger]
	if !exists || len(transitions) == 0 {
		return fmt.Errorf("%w: cannot fire trigger %s from status %s", ErrInvalidTransition, trigger, m.currentStatus)
	}

	// Try each transition in order until one succeeds
	for _, t := range transitions {
		if t.guard == nil || t.guard(ctx) {
			m.currentStatus = t.toStatus
			return nil
		}
	}

	return fmt.Errorf("%w: trigger %s from status %s", ErrGuardFailed, trigger, m.currentStatus)
}

func (m *stateMachine) PermittedTriggers() []Trigger {
	config, exists := m.configurations[m.currentStatus]
	if !exists {
		return []Trigger{}
	}

	triggers := make([]Trigger, 0, len(config.transitions))
	for trigger := range config.transitions {
		triggers = append(triggers, trigger)
	}

	return triggers
}
