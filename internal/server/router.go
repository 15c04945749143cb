package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/loangraph/marketsync/internal/auth"
	"github.com/loangraph/marketsync/internal/config"
	"github.com/loangraph/marketsync/internal/http/handlers"
	"github.com/loangraph/marketsync/internal/http/middleware"
	"github.com/loangraph/marketsync/internal/market"
	"github.com/loangraph/marketsync/internal/version"
	"github.com/loangraph/marketsync/internal/ws"
)

const maxBodyBytes = 1 << 20

type Dependencies struct {
	Pinger           handlers.Pinger
	SessionHandler   *handlers.SessionHandler
	DirectoryHandler *handlers.DirectoryHandler
	ViewsHandler     *handlers.ViewsHandler
	ActionsHandler   *handlers.ActionsHandler
	BlocksHandler    *handlers.BlocksHandler
	WSHandler        *ws.Handler
	JWTManager       *auth.JWTManager
}

func NewRouter(cfg config.Config, logger *slog.Logger, deps Dependencies) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.UseRawPath = true
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLog(logger))
	r.Use(middleware.RequestBodyLimit(maxBodyBytes))

	health := handlers.NewHealthHandler(deps.Pinger)
	meta := handlers.NewMetaHandler(cfg.Env, version.Version, cfg.MarketAPIURL)

	r.GET("/health", health.Health)
	r.GET("/ready", health.Ready)
	r.GET("/v1/meta", meta.GetMeta)

	if deps.SessionHandler != nil && deps.JWTManager != nil {
		r.POST("/v1/session", deps.SessionHandler.Login)
		r.DELETE("/v1/session", deps.SessionHandler.Logout)

		protected := r.Group("/v1")
		protected.Use(middleware.RequireAuth(deps.JWTManager))
		protected.GET("/me", deps.SessionHandler.Me)

		if deps.DirectoryHandler != nil {
			protected.GET("/users", deps.DirectoryHandler.ListUsers)
			protected.GET("/banks", deps.DirectoryHandler.ListBanks)
		}
		if deps.ViewsHandler != nil {
			protected.GET("/views", deps.ViewsHandler.ListViews)
			protected.GET("/views/:name", deps.ViewsHandler.GetView)
			protected.POST("/views/:name/refresh", deps.ViewsHandler.RefreshView)
		}
		if deps.BlocksHandler != nil {
			protected.GET("/blocks/:id", deps.BlocksHandler.GetBlock)
			protected.GET("/contracts/:id", deps.BlocksHandler.GetContract)
		}
		if deps.WSHandler != nil {
			protected.GET("/ws", deps.WSHandler.HandleWebSocket)
		}

		if a := deps.ActionsHandler; a != nil {
			protected.PUT("/profile", a.SaveProfile)
			protected.DELETE("/alerts", a.DismissAlert)

			borrower := protected.Group("/borrower")
			borrower.Use(middleware.RequireRole(market.RoleBorrower))
			borrower.POST("/loanrequests", a.CreateLoanRequest)
			borrower.POST("/mortgages/:id/:uid/:decision", a.DecideMortgageOffer)
			borrower.POST("/campaigns/:cid/:cuid/investments/:id/:uid/:decision", a.DecideInvestment)

			bank := protected.Group("/bank")
			bank.Use(middleware.RequireRole(market.RoleFinancialInstitution))
			bank.POST("/loanrequests/:id/:uid/:decision", a.DecideLoanRequest)

			investor := protected.Group("/investor")
			investor.Use(middleware.RequireRole(market.RoleInvestor))
			investor.POST("/investments", a.Invest)
			investor.POST("/investments/:id/:uid/sell", a.SellInvestment)
			investor.POST("/investments/:id/:uid/transfers", a.OfferTransfer)
			investor.POST("/investments/:id/:uid/transfers/:tid/:tuid/:decision", a.DecideTransfer)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	})

	return r
}
