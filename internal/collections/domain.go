package collections

import (
	"time"

	"github.com/google/uuid"
)

// ActionType classifies how a client was contacted about outstanding debt.
type ActionType string

const (
	ActionCall      ActionType = "LLAMADA"
	ActionVisit     ActionType = "VISITA"
	ActionWhatsApp  ActionType = "WHATSAPP"
	ActionEmail     ActionType = "EMAIL"
	ActionSMS       ActionType = "SMS"
	ActionLetter    ActionType = "CARTA"
	ActionCourier   ActionType = "MOTORIZADO"
	ActionVideoCall ActionType = "VIDEOLLAMADA"
	ActionOther     ActionType = "OTRO"
)

// ValidActionTypes lists the accepted action types in presentation order.
var ValidActionTypes = []ActionType{
	ActionCall,
	ActionVisit,
	ActionWhatsApp,
	ActionEmail,
	ActionSMS,
	ActionLetter,
	ActionCourier,
	ActionVideoCall,
	ActionOther,
}

// IsValid reports whether t is one of the accepted action types.
func (t ActionType) IsValid() bool {
	for _, valid := range ValidActionTypes {
		if t == valid {
			return true
		}
	}
	return false
}

// Action is one recorded collection contact with a follow-up date.
type Action struct {
	ID           uuid.UUID
	ClientID     uuid.UUID
	ClientName   string
	Type         ActionType
	Description  string
	FollowUpDate time.Time
	Completed    bool
	CompletedAt  *time.Time
	UserID       uuid.UUID
	CreatedAt    time.Time
}

// CreateInput describes a new collection action.
type CreateInput struct {
	ClientID     uuid.UUID
	Type         ActionType
	Description  string
	FollowUpDate time.Time
	UserID       uuid.UUID
}
