package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/arklim/learnstore/internal/core/domain"
	"github.com/arklim/learnstore/internal/infra/config"
	"github.com/arklim/learnstore/internal/infra/database"
	kafkainfra "github.com/arklim/learnstore/internal/infra/kafka"
	"github.com/arklim/learnstore/internal/infra/security"
	mongorepo "github.com/arklim/learnstore/internal/repository/mongo"
	"github.com/arklim/learnstore/internal/usecase"
)

// AdminSeed describes the administrator created or reset by BootstrapAdmin.
type AdminSeed struct {
	Name     string
	Email    string
	Password string
}

// BootstrapAdmin connects to the store database and creates the administrator, or promotes and
// resets the identity that already owns the email. The boolean reports whether it was created.
func BootstrapAdmin(ctx context.Context, cfg *config.AppConfig, seed AdminSeed, log *zap.Logger) (domain.Identity, bool, error) {
	if log == nil {
		log = zap.NewNop()
	}

	mongoClient, err := database.NewMongo(ctx, cfg.Mongo, log)
	if err != nil {
		return domain.Identity{}, false, fmt.Errorf("init mongo: %w", err)
	}
	defer func() {
		if err := mongoClient.Close(); err != nil {
			log.Warn("close mongo", zap.Error(err))
		}
	}()

	repos := mongorepo.NewRepositories(mongoClient.Database())
	if err := repos.EnsureIndexes(ctx); err != nil {
		return domain.Identity{}, false, fmt.Errorf("ensure indexes: %w", err)
	}

	hasher, err := newPasswordHasher(cfg)
	if err != nil {
		return domain.Identity{}, false, err
	}
	policy := security.NewPasswordPolicy(cfg.Password.MinLength, cfg.Password.MinStrengthScore)

	credentials := usecase.NewCredentialService(repos.Identities, hasher, policy, nil, kafkainfra.NewStubPublisher(log), log)
	return credentials.BootstrapAdmin(ctx, seed.Name, seed.Email, seed.Password)
}
