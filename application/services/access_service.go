package services

import (
	"context"

	"kgraph-backend/application/ports"
	apperrors "kgraph-backend/pkg/errors"

	"go.uber.org/zap"
)

// Access roles.
const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

// AccessDecision is the structured outcome of resolving a credential against
// a namespace. Callers must branch on Granted before any scoped operation; a
// denied decision is never a success.
type AccessDecision struct {
	Granted           bool   `json:"granted"`
	EffectiveIdentity string `json:"effectiveIdentity,omitempty"`
	Role              string `json:"role,omitempty"`
	Reason            string `json:"reason"`
}

// Scope returns the operation scope for a granted decision.
func (d AccessDecision) Scope(namespaceID string) Scope {
	return Scope{NamespaceID: namespaceID, Identity: d.EffectiveIdentity}
}

// AccessService resolves caller identity into an effective tenant and access
// decision, including delegated access for team members.
type AccessService struct {
	store     ports.GraphStore
	resolver  ports.IdentityResolver
	directory ports.TeamDirectory
	logger    *zap.Logger
}

// NewAccessService creates a new access service
func NewAccessService(
	store ports.GraphStore,
	resolver ports.IdentityResolver,
	directory ports.TeamDirectory,
	logger *zap.Logger,
) *AccessService {
	return &AccessService{
		store:     store,
		resolver:  resolver,
		directory: directory,
		logger:    logger,
	}
}

// Resolve authenticates the credential and decides access to the requested
// namespace. With no namespace id the authenticated identity is returned
// as-is; the namespace will be created on first write. Team members are
// granted access with the namespace owner as effective identity, so their
// writes land under the owner's partition.
func (s *AccessService) Resolve(ctx context.Context, credential, namespaceID string) (AccessDecision, error) {
	identity, err := s.resolver.Resolve(ctx, credential)
	if err != nil {
		if apperrors.IsAppError(err) {
			return AccessDecision{}, err
		}
		return AccessDecision{}, apperrors.NewAuthenticationError("").WithCause(err)
	}

	if namespaceID == "" {
		return AccessDecision{
			Granted:           true,
			EffectiveIdentity: identity,
			Role:              RoleOwner,
			Reason:            "no namespace requested",
		}, nil
	}

	owner, exists, err := s.namespaceOwner(ctx, namespaceID)
	if err != nil {
		return AccessDecision{}, err
	}

	if !exists {
		// Namespace is about to be created; the caller becomes its owner on
		// first write.
		return AccessDecision{
			Granted:           true,
			EffectiveIdentity: identity,
			Role:              RoleOwner,
			Reason:            "new namespace",
		}, nil
	}

	if owner == identity {
		return AccessDecision{
			Granted:           true,
			EffectiveIdentity: identity,
			Role:              RoleOwner,
			Reason:            "namespace owner",
		}, nil
	}

	teamID, err := s.directory.TeamForNamespace(ctx, namespaceID)
	if err != nil {
		return AccessDecision{}, apperrors.NewUnavailableError("team-directory", err)
	}
	if teamID == "" {
		s.logger.Debug("Access denied: namespace has no team",
			zap.String("namespaceID", namespaceID),
			zap.String("identity", identity),
		)
		return AccessDecision{Granted: false, Reason: "no team membership"}, nil
	}

	role, err := s.directory.Membership(ctx, teamID, identity)
	if err != nil {
		return AccessDecision{}, apperrors.NewUnavailableError("team-directory", err)
	}
	if role == "" {
		s.logger.Debug("Access denied: not a team member",
			zap.String("namespaceID", namespaceID),
			zap.String("teamID", teamID),
			zap.String("identity", identity),
		)
		return AccessDecision{Granted: false, Reason: "not a team member"}, nil
	}

	// Team members write under the owner's identity; that is what makes the
	// namespace shared.
	return AccessDecision{
		Granted:           true,
		EffectiveIdentity: owner,
		Role:              RoleMember,
		Reason:            "team member",
	}, nil
}

// namespaceOwner looks up the owning identity of a namespace root.
func (s *AccessService) namespaceOwner(ctx context.Context, namespaceID string) (string, bool, error) {
	rows, err := s.store.Run(ctx,
		`MATCH (ns:Namespace {id: $namespaceId}) RETURN ns.owner AS owner`,
		map[string]interface{}{"namespaceId": namespaceID},
	)
	if err != nil {
		return "", false, err
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	owner, _ := rows[0]["owner"].(string)
	return owner, true, nil
}
