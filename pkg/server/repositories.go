package server

import (
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"

	"thoreinstein.com/repodash/pkg/discovery"
)

func (s *Server) registerRepositories(r fiber.Router) {
	r = r.Group("/repositories")

	r.Use(s.repositoryErrors)
	r.Get("/", s.listRepositories)
	r.Get("/summary", s.summary)
	r.Post("/probe", withBody(s.validate, s.probe))
	r.Delete("/", s.forget)
}

func (s *Server) listRepositories(c *fiber.Ctx) error {
	return c.JSON(toResponses(s.engine.Store().Filter(c.Query("q"))))
}

func (s *Server) summary(c *fiber.Ctx) error {
	return c.JSON(toSummary(s.engine.Store().Counts()))
}

func (s *Server) probe(c *fiber.Ctx, req *ProbeRequest) error {
	rec, err := s.engine.Reprobe(c.UserContext(), req.Path)
	if err != nil {
		return errors.Wrap(err, "failed to probe repository")
	}
	return c.JSON(toResponse(rec))
}

func (s *Server) forget(c *fiber.Ctx) error {
	path := c.Query("path")
	if path == "" {
		return fiber.NewError(fiber.StatusBadRequest, "path query parameter is required")
	}

	removed, err := s.engine.Forget(c.UserContext(), path)
	if err != nil {
		return errors.Wrap(err, "failed to forget repository")
	}
	if !removed {
		return errors.Wrapf(discovery.ErrNotTracked, "%s", path)
	}
	if s.onForget != nil {
		s.onForget(path)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) repositoryErrors(c *fiber.Ctx) error {
	err := c.Next()
	if err == nil {
		return nil
	}

	if errors.Is(err, discovery.ErrNotTracked) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return err
}
