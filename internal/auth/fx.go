package auth

import (
	"github.com/smallbiznis/complytics/internal/auth/password"
	"github.com/smallbiznis/complytics/internal/auth/repository"
	"github.com/smallbiznis/complytics/internal/auth/service"
	"github.com/smallbiznis/complytics/internal/auth/token"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(repository.New),
	fx.Provide(password.New),
	fx.Provide(token.New),
	fx.Provide(service.New),
)
