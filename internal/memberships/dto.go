package memberships

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockledger/pkg/db/models"
	"github.com/angelmondragon/stockledger/pkg/enums"
)

// MembershipDTO is the transport shape for a membership record and the permissions it carries.
type MembershipDTO struct {
	ID              uuid.UUID              `json:"id"`
	UserID          uuid.UUID              `json:"user_id"`
	Role            enums.MemberRole       `json:"role"`
	Status          enums.MembershipStatus `json:"status"`
	Permissions     []enums.Permission     `json:"permissions"`
	InvitedByUserID *uuid.UUID             `json:"invited_by_user_id,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

var allPermissions = []enums.Permission{
	enums.PermissionInventoryRead,
	enums.PermissionInventoryWrite,
	enums.PermissionInventoryAlerts,
}

// ToDTO converts a model to the external DTO.
func ToDTO(m *models.Membership) *MembershipDTO {
	if m == nil {
		return nil
	}

	perms := make([]enums.Permission, 0, len(allPermissions))
	if m.Status == enums.MembershipStatusActive {
		for _, p := range allPermissions {
			if m.Role.Grants(p) {
				perms = append(perms, p)
			}
		}
	}

	return &MembershipDTO{
		ID:              m.ID,
		UserID:          m.UserID,
		Role:            m.Role,
		Status:          m.Status,
		Permissions:     perms,
		InvitedByUserID: copyUUIDPointer(m.InvitedByUserID),
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func copyUUIDPointer(src *uuid.UUID) *uuid.UUID {
	if src == nil {
		return nil
	}
	dst := *src
	return &dst
}
