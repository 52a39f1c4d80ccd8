package http

import (
	"math"
	"net/http"
	"time"

	"github.com/jmehdipour/leadsync/internal/model"
	"github.com/jmehdipour/leadsync/internal/service/report"
	echo "github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	apiVersion    = "1.0.0"
	deltaMockSize = 5
	fullMockSize  = 10
)

type reportResponse struct {
	Count   int            `json:"count"`
	Records []model.Record `json:"records"`
}

func isMock(c echo.Context) bool { return c.QueryParam("mock") == "true" }

func (s *Server) loadFailed(c echo.Context, route string, err error) error {
	s.opts.Logger.Error("store read failed", zap.String("route", route), zap.Error(err))
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Unable to load data"})
}

// deltaReport serves records modified since the previous call and moves the
// access cursor to now. Mock mode leaves the cursor alone.
func (s *Server) deltaReport(c echo.Context) error {
	now := s.opts.Now().UTC()
	if isMock(c) {
		recs := report.Placeholder(deltaMockSize, now)
		c.Response().Header().Set(echo.HeaderLastModified, now.Format(http.TimeFormat))
		return c.JSON(http.StatusOK, reportResponse{Count: len(recs), Records: recs})
	}

	ctx := c.Request().Context()

	s.opts.Store.Lock()
	defer s.opts.Store.Unlock()

	access, err := s.opts.Store.LoadAccess(ctx)
	if err != nil {
		return s.loadFailed(c, "/reports", err)
	}
	recs, _, err := s.opts.Store.LoadRecords(ctx)
	if err != nil {
		return s.loadFailed(c, "/reports", err)
	}

	var since time.Time
	if access.LastClientFetch != nil {
		since = *access.LastClientFetch
	}
	fresh := make([]model.Record, 0)
	for _, r := range recs {
		if r.ModifiedAt.After(since) {
			fresh = append(fresh, r)
		}
	}

	if err := s.opts.Store.SaveAccess(ctx, now); err != nil {
		return s.loadFailed(c, "/reports", err)
	}
	c.Response().Header().Set(echo.HeaderLastModified, now.Format(http.TimeFormat))
	return c.JSON(http.StatusOK, reportResponse{Count: len(fresh), Records: fresh})
}

func (s *Server) fullReport(c echo.Context) error {
	now := s.opts.Now().UTC()

	var recs []model.Record
	if isMock(c) {
		recs = report.Placeholder(fullMockSize, now)
	} else {
		var err error
		if recs, _, err = s.opts.Store.LoadRecords(c.Request().Context()); err != nil {
			return s.loadFailed(c, "/reports/full", err)
		}
	}
	c.Response().Header().Set(echo.HeaderLastModified, now.Format(http.TimeFormat))
	return c.JSON(http.StatusOK, reportResponse{Count: len(recs), Records: recs})
}

type healthResponse struct {
	Status           string     `json:"status"`
	LastClientFetch  *time.Time `json:"lastClientFetch"`
	LastBrokerUpdate *time.Time `json:"lastBrokerUpdate"`
}

func (s *Server) health(c echo.Context) error {
	ctx := c.Request().Context()
	ps, err := s.opts.Store.LoadPullState(ctx)
	if err == nil {
		var as model.AccessState
		if as, err = s.opts.Store.LoadAccess(ctx); err == nil {
			return c.JSON(http.StatusOK, healthResponse{
				Status:           "ok",
				LastClientFetch:  as.LastClientFetch,
				LastBrokerUpdate: ps.LastFetch,
			})
		}
	}
	s.opts.Logger.Error("health check failed", zap.Error(err))
	return c.JSON(http.StatusInternalServerError, map[string]string{"status": "error", "message": err.Error()})
}

type metaResponse struct {
	Version            string     `json:"version"`
	RecordCount        int        `json:"recordCount"`
	LastBrokerUpdate   *time.Time `json:"lastBrokerUpdate"`
	LastClientFetch    *time.Time `json:"lastClientFetch"`
	LastUpdateDetected *time.Time `json:"lastUpdateDetected"`
	FileSizeKB         float64    `json:"fileSizeKB"`
	IntervalMinutes    int        `json:"intervalMinutes"`
	AffiliateID        string     `json:"affiliateId"`
	UptimeSeconds      int64      `json:"uptimeSeconds"`
	Timezone           string     `json:"timezone"`
	Credentials        int        `json:"credentials"`
}

func (s *Server) meta(c echo.Context) error {
	ctx := c.Request().Context()
	recs, size, err := s.opts.Store.LoadRecords(ctx)
	if err != nil {
		return s.metaFailed(c, err)
	}
	ps, err := s.opts.Store.LoadPullState(ctx)
	if err != nil {
		return s.metaFailed(c, err)
	}
	as, err := s.opts.Store.LoadAccess(ctx)
	if err != nil {
		return s.metaFailed(c, err)
	}

	var latest *time.Time
	for i := range recs {
		if latest == nil || recs[i].ModifiedAt.After(*latest) {
			latest = &recs[i].ModifiedAt
		}
	}

	return c.JSON(http.StatusOK, metaResponse{
		Version:            apiVersion,
		RecordCount:        len(recs),
		LastBrokerUpdate:   ps.LastFetch,
		LastClientFetch:    as.LastClientFetch,
		LastUpdateDetected: latest,
		FileSizeKB:         math.Round(float64(size)/1024*100) / 100,
		IntervalMinutes:    s.opts.IntervalMinutes,
		AffiliateID:        s.opts.AffiliateID,
		UptimeSeconds:      int64(s.opts.Now().Sub(s.started) / time.Second),
		Timezone:           "UTC",
		Credentials:        s.opts.Credentials,
	})
}

func (s *Server) metaFailed(c echo.Context, err error) error {
	s.opts.Logger.Error("meta failed", zap.Error(err))
	return c.JSON(http.StatusInternalServerError, map[string]string{"status": "error", "message": err.Error()})
}
