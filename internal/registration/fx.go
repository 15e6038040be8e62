package registration

import (
	"github.com/smallbiznis/complytics/internal/registration/repository"
	"github.com/smallbiznis/complytics/internal/registration/service"
	"go.uber.org/fx"
)

var Module = fx.Module("registration.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(repository.NewPendingEmails),
	fx.Provide(service.NewService),
)
