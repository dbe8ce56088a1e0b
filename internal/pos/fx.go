package pos

import (
	"go.uber.org/fx"

	domain "github.com/smallbiznis/branchledger/internal/pos/domain"
)

var Module = fx.Module("pos",
	fx.Provide(
		NewService,
		func(s *Service) domain.Service { return s },
	),
)
