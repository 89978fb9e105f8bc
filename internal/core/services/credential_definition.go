package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/polygonid/academic-bridge/internal/core/domain"
	"github.com/polygonid/academic-bridge/internal/core/ports"
	"github.com/polygonid/academic-bridge/internal/db"
	"github.com/polygonid/academic-bridge/internal/log"
	"github.com/polygonid/academic-bridge/pkg/cache"
)

type credentialDefinition struct {
	agent   ports.AgentGateway
	repo    ports.CredentialDefinitionsRepository
	storage db.Querier
	cache   cache.Cache
	ttl     time.Duration
}

// NewCredentialDefinition returns the resolver of the academic credential definition.
// Lookups go through the cache, then the database and finally create the schema and definition in the agent.
func NewCredentialDefinition(agent ports.AgentGateway, repo ports.CredentialDefinitionsRepository, storage db.Querier, c cache.Cache, ttl time.Duration) ports.CredentialDefinitionService {
	return &credentialDefinition{
		agent:   agent,
		repo:    repo,
		storage: storage,
		cache:   c,
		ttl:     ttl,
	}
}

func (cd *credentialDefinition) Ensure(ctx context.Context) (*domain.CredentialDefinition, error) {
	key := definitionCacheKey(domain.AcademicSchemaName, domain.AcademicSchemaVersion)
	def := &domain.CredentialDefinition{}
	if cd.cache != nil && cd.cache.Get(ctx, key, def) {
		return def, nil
	}

	def, err := cd.repo.Get(ctx, cd.storage, domain.AcademicSchemaName, domain.AcademicSchemaVersion)
	switch {
	case err == nil:
		cd.remember(ctx, key, def)
		return def, nil
	case !errors.Is(err, ports.ErrDefinitionNotFound):
		log.Warn(ctx, "loading credential definition", "err", err)
	}

	attrs := domain.AcademicAttributeNames()
	schemaID, err := cd.agent.CreateSchema(ctx, domain.AcademicSchemaName, domain.AcademicSchemaVersion, attrs)
	if err != nil {
		log.Error(ctx, "creating academic schema", "err", err)
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	defID, err := cd.agent.CreateCredentialDefinition(ctx, schemaID, domain.AcademicDefinitionTag)
	if err != nil {
		log.Error(ctx, "creating academic credential definition", "err", err, "schemaId", schemaID)
		return nil, fmt.Errorf("creating credential definition: %w", err)
	}

	def = &domain.CredentialDefinition{
		SchemaName:             domain.AcademicSchemaName,
		SchemaVersion:          domain.AcademicSchemaVersion,
		SchemaID:               schemaID,
		CredentialDefinitionID: defID,
		Tag:                    domain.AcademicDefinitionTag,
		AttributeNames:         attrs,
		CreatedAt:              time.Now().UTC(),
	}
	if err := cd.repo.Save(ctx, cd.storage, def); err != nil {
		log.Warn(ctx, "saving credential definition", "err", err)
	}
	cd.remember(ctx, key, def)
	log.Info(ctx, "academic credential definition ready", "schemaId", schemaID, "credentialDefinitionId", defID)
	return def, nil
}

func (cd *credentialDefinition) remember(ctx context.Context, key string, def *domain.CredentialDefinition) {
	if cd.cache == nil {
		return
	}
	if err := cd.cache.Set(ctx, key, def, cd.ttl); err != nil {
		log.Warn(ctx, "caching credential definition", "err", err)
	}
}

func definitionCacheKey(name, version string) string {
	return fmt.Sprintf("academic-bridge:credential-definition:%s:%s", name, version)
}
