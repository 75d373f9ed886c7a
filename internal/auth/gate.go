package auth

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/vistohub/vistoriago/internal/apperr"
	"github.com/vistohub/vistoriago/internal/models"
)

// Identity is the resolved caller: user id, role and company membership.
// It is carried only in the request context, never in shared mutable state,
// so concurrent requests from different companies cannot cross-contaminate.
type Identity struct {
	UserID    uuid.UUID
	Email     string
	Role      models.Role
	CompanyID *uuid.UUID
}

// IsSuperadmin reports whether the caller holds the cross-tenant role
func (id Identity) IsSuperadmin() bool {
	return id.Role == models.RoleSuperadmin
}

// RoleSet is an operation's declared allowed-role set
type RoleSet map[models.Role]struct{}

// Roles builds a RoleSet
func Roles(roles ...models.Role) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

// Contains reports membership
func (s RoleSet) Contains(r models.Role) bool {
	_, ok := s[r]
	return ok
}

// Gate authenticates callers and enforces role membership and tenant scoping.
// It is stateless per request: every check re-derives from the credential and
// freshly read company/role data.
type Gate struct {
	db     *gorm.DB
	secret string
}

// NewGate creates a new authorization gate
func NewGate(db *gorm.DB, secret string) *Gate {
	return &Gate{db: db, secret: secret}
}

// Authenticate resolves a bearer credential to an Identity. The user row is
// read fresh so revoked accounts and role changes take effect immediately.
func (g *Gate) Authenticate(tokenString string) (Identity, error) {
	claims, err := ValidateToken(tokenString, g.secret)
	if err != nil {
		return Identity{}, apperr.Unauthenticated("invalid or expired token")
	}

	rawID, ok := claims["id"].(string)
	if !ok {
		return Identity{}, apperr.Unauthenticated("malformed token claims")
	}
	userID, err := uuid.Parse(rawID)
	if err != nil {
		return Identity{}, apperr.Unauthenticated("malformed token claims")
	}

	var user models.User
	if err := g.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Identity{}, apperr.Unauthenticated("unknown user")
		}
		return Identity{}, apperr.Internal(err)
	}
	if !user.Active {
		return Identity{}, apperr.Unauthenticated("account disabled")
	}

	return Identity{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		CompanyID: user.CompanyID,
	}, nil
}

// Authorize enforces the operation's allowed-role set, the tenant-scope rule
// and the tenant-active rule against the target company.
func (g *Gate) Authorize(id Identity, allowed RoleSet, companyID uuid.UUID) error {
	return g.authorize(id, allowed, companyID, false)
}

// AuthorizeInactive is Authorize minus the tenant-active check. Used only by
// the reactivation operation, which must be permitted on an inactive company.
func (g *Gate) AuthorizeInactive(id Identity, allowed RoleSet, companyID uuid.UUID) error {
	return g.authorize(id, allowed, companyID, true)
}

func (g *Gate) authorize(id Identity, allowed RoleSet, companyID uuid.UUID, allowInactive bool) error {
	if !allowed.Contains(id.Role) {
		return apperr.Forbidden("operation not permitted for role " + string(id.Role))
	}

	if !id.IsSuperadmin() {
		if id.CompanyID == nil || *id.CompanyID != companyID {
			return apperr.Forbidden("access denied to requested company")
		}
	}

	var company models.Company
	if err := g.db.First(&company, "id = ?", companyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("company not found")
		}
		return apperr.Internal(err)
	}
	if !company.Active && !allowInactive {
		return apperr.TenantInactive("company is inactive")
	}

	return nil
}

// ResolveCompany determines the target company for an operation. Superadmin
// may act on any explicitly requested company; everyone else is pinned to
// their own.
func (g *Gate) ResolveCompany(id Identity, requested *uuid.UUID) (uuid.UUID, error) {
	if id.IsSuperadmin() {
		if requested != nil {
			return *requested, nil
		}
		if id.CompanyID != nil {
			return *id.CompanyID, nil
		}
		return uuid.Nil, apperr.Validation("company id is required")
	}

	if id.CompanyID == nil {
		return uuid.Nil, apperr.Forbidden("caller has no company membership")
	}
	if requested != nil && *requested != *id.CompanyID {
		return uuid.Nil, apperr.Forbidden("access denied to requested company")
	}
	return *id.CompanyID, nil
}

// AssignRole is the superadmin-only role-assignment sub-operation. The target
// company must exist and be active; role and company are written atomically
// in a single update, and the user's session claims are mirrored best-effort.
func (g *Gate) AssignRole(actor Identity, targetUserID uuid.UUID, role models.Role, companyID uuid.UUID) (*models.User, error) {
	if !actor.IsSuperadmin() {
		return nil, apperr.Forbidden("role assignment requires superadmin")
	}
	if !role.Valid() {
		return nil, apperr.Validation("unknown role: " + string(role))
	}

	var company models.Company
	if err := g.db.First(&company, "id = ?", companyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("company not found")
		}
		return nil, apperr.Internal(err)
	}
	if !company.Active {
		return nil, apperr.TenantInactive("company is inactive")
	}

	var user models.User
	if err := g.db.First(&user, "id = ?", targetUserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, apperr.Internal(err)
	}

	// Single-statement conditional update so two concurrent assignments
	// cannot interleave a read-then-write.
	res := g.db.Model(&models.User{}).
		Where("id = ?", targetUserID).
		Updates(map[string]interface{}{"role": role, "company_id": companyID})
	if res.Error != nil {
		return nil, apperr.Internal(res.Error)
	}

	user.Role = role
	user.CompanyID = &companyID

	// Mirror role/company into session claims so future tokens carry the
	// updated role without a fresh login. Best-effort: logged, not fatal.
	claims, err := json.Marshal(map[string]string{
		"role":      string(role),
		"companyId": companyID.String(),
	})
	if err == nil {
		err = g.db.Model(&models.User{}).
			Where("id = ?", targetUserID).
			UpdateColumn("session_claims", claims).Error
	}
	if err != nil {
		log.Warn().Err(err).Str("user_id", targetUserID.String()).
			Msg("Failed to mirror session claims")
	}

	return &user, nil
}

// RecordLogin updates the user's last-login timestamp. Best-effort: a failure
// here must not fail the outer operation.
func (g *Gate) RecordLogin(userID uuid.UUID) {
	if err := g.db.Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("last_login", gorm.Expr("CURRENT_TIMESTAMP")).Error; err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("Failed to record last login")
	}
}
