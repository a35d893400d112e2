// Package example is a minimal illustrative consumer of the core
// framework: a VmRequest aggregate with a single creation
// command, used by this package's tests to exercise the
// end-to-end scenarios without pulling the real VM-provisioning domain
// into this repository.
package example

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/wisbric/eaf/pkg/aggregate"
	"github.com/wisbric/eaf/pkg/eventstore"
)

// VmRequestState is the folded read side of a VmRequest aggregate.
type VmRequestState struct {
	ID          string
	TenantID    string
	RequestedBy string
	Size        string
	CreatedAt   time.Time
}

// VmRequestAggregate implements aggregate.Aggregate[VmRequestState].
type VmRequestAggregate struct{}

type vmRequestCreatedPayload struct {
	RequestedBy string `json:"requestedBy"`
	Size        string `json:"size"`
}

func (VmRequestAggregate) Apply(state VmRequestState, event eventstore.Event) (VmRequestState, error) {
	switch event.EventType {
	case "VmRequestCreated":
		var payload vmRequestCreatedPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return state, err
		}
		state.ID = event.AggregateID
		state.TenantID = event.TenantID
		state.RequestedBy = payload.RequestedBy
		state.Size = payload.Size
		state.CreatedAt = event.CreatedAt
		return state, nil
	default:
		return state, &aggregate.InvalidState{AggregateType: "VmRequest", EventType: event.EventType}
	}
}

// CreateVmRequest is the command payload for the sole creation command,
// implementing dispatch.HasTenant.
type CreateVmRequest struct {
	Tenant      string
	RequestID   string
	RequestedBy string
	Size        string
}

// TenantID satisfies dispatch.HasTenant.
func (c CreateVmRequest) TenantID() string { return c.Tenant }

// NewVmRequestCreated builds the first event for a CreateVmRequest
// command, version assigned later by aggregate.Runtime.
func NewVmRequestCreated(cmd CreateVmRequest) (eventstore.Event, error) {
	payload, err := json.Marshal(vmRequestCreatedPayload{
		RequestedBy: cmd.RequestedBy,
		Size:        cmd.Size,
	})
	if err != nil {
		return eventstore.Event{}, err
	}
	return eventstore.Event{
		ID:            uuid.NewString(),
		AggregateID:   cmd.RequestID,
		AggregateType: "VmRequest",
		EventType:     "VmRequestCreated",
		Payload:       payload,
		TenantID:      cmd.Tenant,
		Metadata: eventstore.Metadata{
			TenantID:  cmd.Tenant,
			Timestamp: time.Now(),
		},
	}, nil
}
