package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	neo4jconfig "github.com/neo4j/neo4j-go-driver/v5/neo4j/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tagtree/pkg/config"
)

type fakeRunner struct {
	queries []string
	errs    map[string]error
}

func (f *fakeRunner) Run(ctx context.Context, cypher string, params map[string]any, _ ...func(*neo4j.TransactionConfig)) (neo4j.ResultWithContext, error) {
	f.queries = append(f.queries, cypher)
	return nil, f.errs[cypher]
}

func TestApplySchema(t *testing.T) {
	ctx := context.Background()

	t.Run("全部执行", func(t *testing.T) {
		r := &fakeRunner{}
		require.NoError(t, applySchema(ctx, r, zap.NewNop()))
		assert.Equal(t, schemaQueries, r.queries)
	})

	t.Run("已存在时跳过", func(t *testing.T) {
		r := &fakeRunner{errs: map[string]error{
			schemaQueries[0]: errors.New("Constraint already exists"),
		}}
		require.NoError(t, applySchema(ctx, r, zap.NewNop()))
		assert.Len(t, r.queries, len(schemaQueries))
	})

	t.Run("其他错误中止", func(t *testing.T) {
		boom := errors.New("permission denied")
		r := &fakeRunner{errs: map[string]error{schemaQueries[1]: boom}}
		err := applySchema(ctx, r, zap.NewNop())
		assert.ErrorIs(t, err, boom)
		assert.Len(t, r.queries, 2)
	})
}

func TestPoolConfigurer(t *testing.T) {
	c := &neo4jconfig.Config{MaxConnectionPoolSize: 100, MaxConnectionLifetime: time.Hour}
	poolConfigurer(config.Neo4jConfig{
		MaxConnectionPoolSize:        20,
		ConnectionAcquisitionTimeout: 5,
	})(c)

	assert.Equal(t, 20, c.MaxConnectionPoolSize)
	assert.Equal(t, 5*time.Second, c.ConnectionAcquisitionTimeout)
	assert.Equal(t, time.Hour, c.MaxConnectionLifetime, "未配置时保留原值")
}
