package memberships

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger/pkg/enums"
	"github.com/angelmondragon/stockledger/pkg/migrate"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open("file:memberships_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := migrate.AutoMigrateModels(conn); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return conn
}

func TestRepositoryMembershipFlow(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	ctx := context.Background()

	userID := uuid.New()
	membership, err := repo.CreateMembership(ctx, userID, enums.MemberRoleOwner, nil, enums.MembershipStatusActive)
	if err != nil {
		t.Fatalf("create membership: %v", err)
	}

	exists, err := repo.UserHasRole(ctx, userID, enums.MemberRoleOwner)
	if err != nil {
		t.Fatalf("check role: %v", err)
	}
	if !exists {
		t.Fatalf("expected user to have role owner")
	}

	other, err := repo.UserHasRole(ctx, userID, enums.MemberRoleAdmin)
	if err != nil {
		t.Fatalf("check other role: %v", err)
	}
	if other {
		t.Fatal("expected user to not have admin role")
	}

	fetched, err := repo.GetMembership(ctx, userID)
	if err != nil {
		t.Fatalf("get membership: %v", err)
	}
	if fetched.ID != membership.ID {
		t.Fatalf("expected membership id %s, got %s", membership.ID, fetched.ID)
	}

	if _, err := repo.CreateMembership(ctx, userID, enums.MemberRoleAdmin, nil, enums.MembershipStatusActive); err == nil {
		t.Fatal("expected duplicate membership to fail")
	}
	if _, err := repo.CreateMembership(ctx, uuid.New(), enums.MemberRole("janitor"), nil, enums.MembershipStatusActive); err == nil {
		t.Fatal("expected invalid role to fail")
	}
}

func TestRepositoryActorsWithPermission(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	ctx := context.Background()

	manager := uuid.New()
	owner := uuid.New()
	seed := []struct {
		user   uuid.UUID
		role   enums.MemberRole
		status enums.MembershipStatus
	}{
		{user: owner, role: enums.MemberRoleOwner, status: enums.MembershipStatusActive},
		{user: manager, role: enums.MemberRoleManager, status: enums.MembershipStatusActive},
		{user: uuid.New(), role: enums.MemberRoleStaff, status: enums.MembershipStatusActive},
		{user: uuid.New(), role: enums.MemberRoleAdmin, status: enums.MembershipStatusRemoved},
		{user: uuid.New(), role: enums.MemberRoleAdmin, status: enums.MembershipStatusInvited},
	}
	for _, s := range seed {
		if _, err := repo.CreateMembership(ctx, s.user, s.role, nil, s.status); err != nil {
			t.Fatalf("seed membership: %v", err)
		}
	}

	actors, err := repo.ActorsWithPermission(ctx, enums.PermissionInventoryAlerts)
	if err != nil {
		t.Fatalf("actors with permission: %v", err)
	}
	if len(actors) != 2 {
		t.Fatalf("expected 2 alert recipients, got %v", actors)
	}
	got := map[uuid.UUID]bool{actors[0]: true, actors[1]: true}
	if !got[owner] || !got[manager] {
		t.Fatalf("unexpected recipients %v", actors)
	}

	writers, err := repo.ActorsWithPermission(ctx, enums.PermissionInventoryWrite)
	if err != nil {
		t.Fatalf("writers: %v", err)
	}
	if len(writers) != 3 {
		t.Fatalf("expected 3 writers, got %d", len(writers))
	}

	allowed, err := repo.UserHasPermission(ctx, manager, enums.PermissionInventoryAlerts)
	if err != nil || !allowed {
		t.Fatalf("expected manager to receive alerts: %v", err)
	}
}

func TestToDTOPermissions(t *testing.T) {
	repo := NewRepository(openTestDB(t))
	m, err := repo.CreateMembership(context.Background(), uuid.New(), enums.MemberRoleViewer, nil, enums.MembershipStatusActive)
	if err != nil {
		t.Fatalf("create membership: %v", err)
	}
	dto := ToDTO(m)
	if len(dto.Permissions) != 1 || dto.Permissions[0] != enums.PermissionInventoryRead {
		t.Fatalf("unexpected permissions %v", dto.Permissions)
	}

	m.Status = enums.MembershipStatusRemoved
	if got := ToDTO(m).Permissions; len(got) != 0 {
		t.Fatalf("removed membership should carry no permissions, got %v", got)
	}
	if ToDTO(nil) != nil {
		t.Fatal("expected nil dto")
	}
}
