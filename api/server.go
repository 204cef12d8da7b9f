package api

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stellarlinkco/xquad-eval/internal/config"
	"github.com/stellarlinkco/xquad-eval/internal/results"
)

type Server struct {
	router *gin.Engine
	store  *results.Store
	config *config.Config
}

func NewServer(cfg *config.Config, store *results.Store) (*Server, error) {
	r := gin.New()
	s := &Server{
		router: r,
		store:  store,
		config: cfg,
	}
	s.registerMiddleware()
	if err := s.registerRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) Run(addr string) error {
	if s == nil || s.router == nil {
		return errors.New("api: nil server")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		addr = ":8080"
	}
	return s.router.Run(addr)
}
