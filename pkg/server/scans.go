package server

import (
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	"thoreinstein.com/repodash/pkg/discovery"
)

func (s *Server) registerScans(r fiber.Router) {
	r = r.Group("/scans")

	r.Post("/", withBody(s.validate, s.startScan))
	r.Get("/current", s.currentScan)
}

func (s *Server) startScan(c *fiber.Ctx, req *ScanRequest) error {
	roots := req.Roots
	if len(roots) == 0 {
		roots = s.engine.Config.Discovery.Roots
	}

	// Scans outlive the request that started them.
	if _, err := s.engine.StartScan(s.baseCtx, roots...); err != nil {
		if errors.Is(err, discovery.ErrScanInProgress) {
			return fiber.NewError(fiber.StatusConflict, err.Error())
		}
		return errors.Wrap(err, "failed to start scan")
	}

	s.logger.Info("scan requested", "roots", roots)
	return c.Status(fiber.StatusAccepted).JSON(ScanResponse{Roots: roots})
}

func (s *Server) currentScan(c *fiber.Ctx) error {
	coord := s.engine.Coordinator()
	resp := ScanStatusResponse{
		Running: s.engine.Scanning() || coord.Running(),
	}

	if run := coord.Current(); run != nil {
		resp.RunID = run.ID
		resp.Root = run.Root
		resp.StartedAt = lo.ToPtr(run.StartedAt)
	}
	if run := coord.Last(); run != nil {
		progress := run.Progress()
		resp.Total = progress.Total
		resp.Completed = progress.Completed
		resp.Percent = run.Percent()
	}

	return c.JSON(resp)
}
