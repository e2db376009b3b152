package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"trading-bot/internal/events"
	"trading-bot/internal/market"
	"trading-bot/internal/strategy"
	"trading-bot/pkg/db"
	"trading-bot/pkg/exchanges/common"
)

// Server exposes the bot's read surface and control commands over HTTP.
type Server struct {
	Router  *gin.Engine
	Manager *strategy.Manager
	Board   *market.QuoteBoard
	Bus     *events.Bus
	Feed    *events.LogFeed
	Queries *db.Queries
	Conns   map[string]common.Connector
}

// NewServer builds the router with the full middleware stack and routes.
func NewServer(mgr *strategy.Manager, board *market.QuoteBoard, bus *events.Bus, feed *events.LogFeed, queries *db.Queries, conns map[string]common.Connector) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger())
	r.Use(RateLimitMiddleware())
	r.Use(CORSMiddleware())

	s := &Server{
		Router:  r,
		Manager: mgr,
		Board:   board,
		Bus:     bus,
		Feed:    feed,
		Queries: queries,
		Conns:   conns,
	}
	s.routes()
	return s
}

// Start blocks serving HTTP on addr.
func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}

func (s *Server) routes() {
	api := s.Router.Group("/api")

	api.GET("/health", s.health)
	api.GET("/contracts/:exchange", s.contracts)
	api.GET("/balances/:exchange", s.balances)
	api.GET("/quotes", s.quotes)

	api.GET("/strategies", s.listStrategies)
	api.POST("/strategies", s.startStrategy)
	api.DELETE("/strategies/:id", s.stopStrategy)
	api.GET("/strategies/saved", s.savedStrategies)
	api.GET("/strategies/saved/:name", s.savedStrategy)

	api.GET("/trades", s.trades)
	api.GET("/trades/closed", s.closedTrades)
	api.GET("/logs", s.logs)
	api.GET("/ws", s.websocketHandler)

	api.GET("/watchlist", s.watchlist)
	api.POST("/watchlist", s.addWatchlist)
	api.DELETE("/watchlist/:exchange/:symbol", s.removeWatchlist)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) contracts(c *gin.Context) {
	catalog, err := s.Manager.Contracts(c.Request.Context(), c.Param("exchange"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, catalog)
}

func (s *Server) balances(c *gin.Context) {
	exchange := c.Param("exchange")
	conn, ok := s.Conns[exchange]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown exchange " + exchange})
		return
	}
	balances, err := conn.GetBalances(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, balances)
}

func (s *Server) quotes(c *gin.Context) {
	c.JSON(http.StatusOK, s.Board.Snapshot())
}

func (s *Server) listStrategies(c *gin.Context) {
	c.JSON(http.StatusOK, s.Manager.List())
}

func (s *Server) startStrategy(c *gin.Context) {
	var p strategy.Params
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	view, err := s.Manager.Start(c.Request.Context(), p)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (s *Server) stopStrategy(c *gin.Context) {
	if err := s.Manager.Stop(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

// savedStrategies lists the preset rows persisted in the database, as synced
// from the YAML preset file.
func (s *Server) savedStrategies(c *gin.Context) {
	rows, err := s.Queries.Strategies(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) savedStrategy(c *gin.Context) {
	row, err := s.Queries.StrategyByName(c.Request.Context(), c.Param("name"))
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no saved strategy " + c.Param("name")})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, row)
}

func (s *Server) trades(c *gin.Context) {
	c.JSON(http.StatusOK, s.Manager.Trades())
}

func (s *Server) closedTrades(c *gin.Context) {
	trades, err := s.Queries.ClosedTrades(c.Request.Context(), 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, trades)
}

// logs returns undisplayed activity entries by default; ?all=true replays the
// whole history.
func (s *Server) logs(c *gin.Context) {
	if c.Query("all") == "true" {
		c.JSON(http.StatusOK, s.Feed.All())
		return
	}
	c.JSON(http.StatusOK, s.Feed.TakeUndisplayed())
}

func (s *Server) watchlist(c *gin.Context) {
	entries, err := s.Queries.Watchlist(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (s *Server) addWatchlist(c *gin.Context) {
	var entry db.WatchlistEntry
	if err := c.ShouldBindJSON(&entry); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Reject symbols the venue does not list.
	if _, err := s.Manager.Contract(c.Request.Context(), entry.Exchange, entry.Symbol); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.Queries.AddToWatchlist(c.Request.Context(), entry.Symbol, entry.Exchange); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, entry)
}

func (s *Server) removeWatchlist(c *gin.Context) {
	err := s.Queries.RemoveFromWatchlist(c.Request.Context(), c.Param("symbol"), c.Param("exchange"))
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not on the watchlist"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}
