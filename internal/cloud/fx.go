package cloud

import (
	"context"

	"github.com/smallbiznis/branchledger/internal/cloud/domain"
	"github.com/smallbiznis/branchledger/internal/config"
	"github.com/smallbiznis/branchledger/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("cloud.store",
	fx.Provide(newFromConfig),
	fx.Provide(func(s *Store) domain.Store { return s }),
	fx.Invoke(registerLifecycle),
)

func newFromConfig(cfg config.Config, log *zap.Logger) (*Store, error) {
	conn, err := db.OpenCloud(cfg)
	if err != nil {
		return nil, err
	}
	return NewStore(conn, log), nil
}

func registerLifecycle(lc fx.Lifecycle, s *Store) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			sqlDB, err := s.DB().DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})
}
