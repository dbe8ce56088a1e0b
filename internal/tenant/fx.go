package tenant

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("tenant.router",
	fx.Provide(NewRouter),
	fx.Invoke(registerLifecycle),
)

func registerLifecycle(lc fx.Lifecycle, r *Router) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return r.Close()
		},
	})
}
