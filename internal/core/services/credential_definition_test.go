package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polygonid/academic-bridge/internal/core/domain"
	"github.com/polygonid/academic-bridge/internal/core/ports"
	"github.com/polygonid/academic-bridge/pkg/cache"
)

func TestCredentialDefinition_Ensure(t *testing.T) {
	ctx := testContext()

	t.Run("created once and cached", func(t *testing.T) {
		agent := newFakeAgent()
		repo := newMemDefinitions()
		svc := NewCredentialDefinition(agent, repo, nil, cache.NewMemoryCache(), 0)

		def, err := svc.Ensure(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.AcademicSchemaName, def.SchemaName)
		assert.Equal(t, domain.AcademicSchemaVersion, def.SchemaVersion)
		assert.Equal(t, domain.AcademicDefinitionTag, def.Tag)
		assert.Equal(t, domain.AcademicAttributeNames(), def.AttributeNames)
		assert.NotEmpty(t, def.SchemaID)
		assert.NotEmpty(t, def.CredentialDefinitionID)

		again, err := svc.Ensure(ctx)
		require.NoError(t, err)
		assert.Equal(t, def.CredentialDefinitionID, again.CredentialDefinitionID)
		assert.Equal(t, 1, agent.schemaCalls)
		assert.Equal(t, 1, agent.defCalls)
		assert.Equal(t, 1, repo.gets, "second lookup is served by the cache")
	})

	t.Run("stored definition is reused", func(t *testing.T) {
		agent := newFakeAgent()
		repo := newMemDefinitions()
		require.NoError(t, repo.Save(ctx, nil, &domain.CredentialDefinition{
			SchemaName:             domain.AcademicSchemaName,
			SchemaVersion:          domain.AcademicSchemaVersion,
			SchemaID:               "schema-1",
			CredentialDefinitionID: "def-1",
		}))
		svc := NewCredentialDefinition(agent, repo, nil, nil, 0)

		def, err := svc.Ensure(ctx)
		require.NoError(t, err)
		assert.Equal(t, "def-1", def.CredentialDefinitionID)
		assert.Equal(t, 0, agent.schemaCalls)
	})

	t.Run("agent failure", func(t *testing.T) {
		agent := newFakeAgent()
		agent.schemaErr = ports.ErrAgentUnreachable
		svc := NewCredentialDefinition(agent, newMemDefinitions(), nil, cache.NewMemoryCache(), 0)

		_, err := svc.Ensure(ctx)
		require.ErrorIs(t, err, ports.ErrAgentUnreachable)
		assert.Equal(t, 0, agent.defCalls)
	})
}
