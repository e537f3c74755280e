package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/adnan4498/infinitum-crm-server/internal/domain/entity"
)

func TestBuilder_Configure(t *testing.T) {
	builder := NewBuilder()

	config := builder.Configure(entity.StatusPending)
	if config == nil {
		t.Fatal("Configure() returned nil")
	}

	// Configure same status again should return same config
	config2 := builder.Configure(entity.StatusPending)
	if config != config2 {
		t.Error("Configure() should return same config for same status")
	}
}

func TestBuilder_ConfigurePanicsOnInvalidStatus(t *testing.T) {
	builder := NewBuilder()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Configure() should panic on invalid status")
		}
	}()

	builder.Configure(entity.Status("bogus"))
}

func TestBuilder_BuildPanicsOnInvalidInitialStatus(t *testing.T) {
	builder := NewBuilder()

	defer func() {
		if r := recover(); r == nil {
			t.Error("Build() should panic on invalid initial status")
		}
	}()

	builder.Build(entity.Status("bogus"))
}

func TestStateConfiguration_Permit(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(entity.StatusPending).
		Permit(TriggerStart, entity.StatusInProgress)

	machine := builder.Build(entity.StatusPending)

	if !machine.CanFire(TriggerStart) {
		t.Error("CanFire() should return true for permitted trigger")
	}

	if err := machine.Fire(context.Background(), TriggerStart); err != nil {
		t.Errorf("Fire() failed: %v", err)
	}

	if machine.State() != entity.StatusInProgress {
		t.Errorf("State after Fire() = %v, want %v", machine.State(), entity.StatusInProgress)
	}
}

func TestStateConfiguration_PermitIf_GuardFails(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(entity.StatusPending).
		PermitIf(TriggerStart, entity.StatusInProgress, func(ctx context.Context) bool {
			return false
		})

	machine := builder.Build(entity.StatusPending)

	err := machine.Fire(context.Background(), TriggerStart)
	if err == nil {
		t.Fatal("Fire() should fail when guard fails")
	}

	if !errors.Is(err, ErrGuardFailed) {
		t.Errorf("Fire() error = %v, want %v", err, ErrGuardFailed)
	}

	if machine.State() != entity.StatusPending {
		t.Errorf("State should remain %v after failed Fire(), got %v", entity.StatusPending, machine.State())
	}
}

func TestStateMachine_Fire_InvalidTransition(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(entity.StatusPending).
		Permit(TriggerStart, entity.StatusInProgress)

	machine := builder.Build(entity.StatusPending)

	err := machine.Fire(context.Background(), TriggerCancel)
	if err == nil {
		t.Fatal("Fire() should fail for invalid transition")
	}

	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Fire() error = %v, want %v", err, ErrInvalidTransition)
	}

	if machine.State() != entity.StatusPending {
		t.Errorf("State should remain %v after failed Fire(), got %v", entity.StatusPending, machine.State())
	}
}

func TestStateMachine_Immutability(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(entity.StatusPending).
		Permit(TriggerStart, entity.StatusInProgress)

	machine1 := builder.Build(entity.StatusPending)
	machine2 := builder.Build(entity.StatusPending)

	if err := machine1.Fire(context.Background(), TriggerStart); err != nil {
		t.Errorf("Fire() failed: %v", err)
	}

	// machine2 should remain in initial status
	if machine2.State() != entity.StatusPending {
		t.Errorf("machine2 state = %v, want %v (machines should be independent)", machine2.State(), entity.StatusPending)
	}

	if machine1.State() != entity.StatusInProgress {
		t.Errorf("machine1 state = %v, want %v", machine1.State(), entity.StatusInProgress)
	}
}

func TestTaskStateMachine_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		from    entity.Status
		trigger Trigger
		to      entity.Status
		wantErr bool
	}{
		{"pending starts", entity.StatusPending, TriggerStart, entity.StatusInProgress, false},
		{"pending completes", entity.StatusPending, TriggerComplete, entity.StatusCompleted, false},
		{"pending cancels", entity.StatusPending, TriggerCancel, entity.StatusCancelled, false},
		{"in progress completes", entity.StatusInProgress, TriggerComplete, entity.StatusCompleted, false},
		{"in progress cancels", entity.StatusInProgress, TriggerCancel, entity.StatusCancelled, false},
		{"in progress cannot restart", entity.StatusInProgress, TriggerStart, entity.StatusInProgress, true},
		{"overdue resumes", entity.StatusOverdue, TriggerStart, entity.StatusInProgress, false},
		{"overdue completes", entity.StatusOverdue, TriggerComplete, entity.StatusCompleted, false},
		{"overdue cancels", entity.StatusOverdue, TriggerCancel, entity.StatusCancelled, false},
		{"completed is terminal", entity.StatusCompleted, TriggerStart, entity.StatusCompleted, true},
		{"completed cannot cancel", entity.StatusCompleted, TriggerCancel, entity.StatusCompleted, true},
		{"cancelled is terminal", entity.StatusCancelled, TriggerComplete, entity.StatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			machine := NewTaskStateMachine(tt.from)

			err := machine.Fire(context.Background(), tt.trigger)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Fire(%v) from %v should fail", tt.trigger, tt.from)
				}
				if !errors.Is(err, ErrInvalidTransition) {
					t.Errorf("Fire() error = %v, want %v", err, ErrInvalidTransition)
				}
				if machine.State() != tt.from {
					t.Errorf("State after failed Fire() = %v, want %v", machine.State(), tt.from)
				}
				return
			}

			if err != nil {
				t.Fatalf("Fire(%v) from %v failed: %v", tt.trigger, tt.from, err)
			}
			if machine.State() != tt.to {
				t.Errorf("State after Fire() = %v, want %v", machine.State(), tt.to)
			}
		})
	}
}

func TestTaskStateMachine_TerminalStatusesHaveNoTriggers(t *testing.T) {
	for _, status := range []entity.Status{entity.StatusCompleted, entity.StatusCancelled} {
		machine := NewTaskStateMachine(status)
		if triggers := machine.PermittedTriggers(); len(triggers) != 0 {
			t.Errorf("PermittedTriggers() for %v = %v, want none", status, triggers)
		}
	}
}
