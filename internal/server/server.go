package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/complytics/internal/auth"
	authdomain "github.com/smallbiznis/complytics/internal/auth/domain"
	"github.com/smallbiznis/complytics/internal/authorization"
	"github.com/smallbiznis/complytics/internal/config"
	"github.com/smallbiznis/complytics/internal/observability"
	obsmiddleware "github.com/smallbiznis/complytics/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/complytics/internal/observability/metrics"
	obstracing "github.com/smallbiznis/complytics/internal/observability/tracing"
	"github.com/smallbiznis/complytics/internal/organization"
	organizationdomain "github.com/smallbiznis/complytics/internal/organization/domain"
	"github.com/smallbiznis/complytics/internal/registration"
	registrationdomain "github.com/smallbiznis/complytics/internal/registration/domain"
	"github.com/smallbiznis/complytics/internal/team"
	teamdomain "github.com/smallbiznis/complytics/internal/team/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

var Module = fx.Module("http.server",
	authorization.Module,
	auth.Module,
	organization.Module,
	registration.Module,
	team.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware(obsCfg.UntracedPaths...))
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})

	return r
}

// run binds the listener during start so a taken port fails the app
// instead of a background goroutine.
func run(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	log = log.Named("http.server")
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info("listening", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	authsvc         authdomain.Service
	guard           authorization.Service
	organizationSvc organizationdomain.Service
	registrationSvc registrationdomain.Service
	teamSvc         teamdomain.Service
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Authsvc         authdomain.Service
	Guard           authorization.Service
	OrganizationSvc organizationdomain.Service
	RegistrationSvc registrationdomain.Service
	TeamSvc         teamdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		authsvc:         p.Authsvc,
		guard:           p.Guard,
		organizationSvc: p.OrganizationSvc,
		registrationSvc: p.RegistrationSvc,
		teamSvc:         p.TeamSvc,
	}

	svc.registerAuthRoutes()
	svc.registerSuperadminRoutes()
	svc.registerRegistrationRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	authGroup := s.engine.Group("/auth")

	authGroup.POST("/login", s.Login)
	authGroup.POST("/forgot-password", s.ForgotPassword)
	authGroup.GET("/me", s.BearerAuth(), s.Authorize(authorization.ObjectProfile, authorization.ActionView), s.Me)
	authGroup.PUT("/profile", s.BearerAuth(), s.Authorize(authorization.ObjectProfile, authorization.ActionUpdate), s.ChangePassword)
}

func (s *Server) registerSuperadminRoutes() {
	superadmin := s.engine.Group("/superadmin", s.BearerAuth())

	superadmin.POST("/create-admin", s.Authorize(authorization.ObjectAdminAccount, authorization.ActionCreate), s.CreateAdmin)
	superadmin.GET("/admins", s.Authorize(authorization.ObjectAdminAccount, authorization.ActionList), s.ListAdmins)
	superadmin.GET("/organizations/active", s.Authorize(authorization.ObjectOrganization, authorization.ActionList), s.ListActiveOrganizations)
	superadmin.GET("/active-users", s.Authorize(authorization.ObjectUser, authorization.ActionListActive), s.ListActiveUsers)
}

func (s *Server) registerRegistrationRoutes() {
	registrationGroup := s.engine.Group("/registration")

	registrationGroup.POST("/register", s.Register)
	registrationGroup.GET("/pending-registrations", s.BearerAuth(), s.Authorize(authorization.ObjectRegistration, authorization.ActionList), s.ListPendingRegistrations)
	registrationGroup.POST("/approve-registration/:id", s.BearerAuth(), s.Authorize(authorization.ObjectRegistration, authorization.ActionApprove), s.ApproveRegistration)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin", s.BearerAuth())

	admin.GET("/team-members", s.Authorize(authorization.ObjectTeamMember, authorization.ActionList), s.ListTeamMembers)
	admin.POST("/create-team-member", s.Authorize(authorization.ObjectTeamMember, authorization.ActionCreate), s.CreateTeamMember)
	admin.POST("/team-members/bulk-delete", s.Authorize(authorization.ObjectTeamMember, authorization.ActionDelete), s.BulkDeleteTeamMembers)
	admin.PATCH("/team-members/:id", s.Authorize(authorization.ObjectTeamMember, authorization.ActionUpdate), s.UpdateTeamMember)
	admin.DELETE("/team-members/:id", s.Authorize(authorization.ObjectTeamMember, authorization.ActionDelete), s.DeleteTeamMember)
}
