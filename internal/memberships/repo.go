package memberships

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger/pkg/db/models"
	"github.com/angelmondragon/stockledger/pkg/enums"
)

// Repository exposes membership persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repo to the provided GORM connection.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// GetMembership retrieves the membership held by a user.
func (r *Repository) GetMembership(ctx context.Context, userID uuid.UUID) (*models.Membership, error) {
	var membership models.Membership
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&membership).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

// CreateMembership persists a new membership record.
func (r *Repository) CreateMembership(ctx context.Context, userID uuid.UUID, role enums.MemberRole, invitedBy *uuid.UUID, status enums.MembershipStatus) (*models.Membership, error) {
	if !role.IsValid() {
		return nil, fmt.Errorf("invalid member role %q", role)
	}
	if !status.IsValid() {
		return nil, fmt.Errorf("invalid membership status %q", status)
	}

	membership := &models.Membership{
		UserID:          userID,
		Role:            role,
		Status:          status,
		InvitedByUserID: invitedBy,
	}

	if err := r.db.WithContext(ctx).Create(membership).Error; err != nil {
		return nil, err
	}
	return membership, nil
}

// UserHasRole reports whether the user holds one of the provided roles on an active membership.
func (r *Repository) UserHasRole(ctx context.Context, userID uuid.UUID, roles ...enums.MemberRole) (bool, error) {
	if len(roles) == 0 {
		return false, nil
	}

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Membership{}).
		Where("user_id = ? AND status = ? AND role IN ?", userID, enums.MembershipStatusActive, roles).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// UserHasPermission reports whether an active membership grants p to the user.
func (r *Repository) UserHasPermission(ctx context.Context, userID uuid.UUID, p enums.Permission) (bool, error) {
	return r.UserHasRole(ctx, userID, enums.RolesWithPermission(p)...)
}

// ActorsWithPermission lists users whose active membership grants p, oldest membership first.
func (r *Repository) ActorsWithPermission(ctx context.Context, p enums.Permission) ([]uuid.UUID, error) {
	roles := enums.RolesWithPermission(p)
	if len(roles) == 0 {
		return nil, nil
	}

	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Membership{}).
		Where("status = ? AND role IN ?", enums.MembershipStatusActive, roles).
		Order("created_at ASC").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
