package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pinharvest/cache"
	"github.com/use-agent/pinharvest/config"
	"github.com/use-agent/pinharvest/fetch"
	"github.com/use-agent/pinharvest/harvest"
	"github.com/use-agent/pinharvest/models"
	"github.com/use-agent/pinharvest/pipeline"
	"github.com/use-agent/pinharvest/webhook"
)

// harvestStore holds all in-flight and completed harvest jobs.
var harvestStore sync.Map

func init() {
	// Background goroutine to expire harvest jobs older than 1 hour.
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			cutoff := time.Now().Add(-1 * time.Hour).Unix()
			harvestStore.Range(func(key, value any) bool {
				job := value.(*models.HarvestJob)
				if job.CreatedAt < cutoff {
					harvestStore.Delete(key)
				}
				return true
			})
		}
	}()
}

// jobRunTimeout caps a whole background run regardless of per-page timeouts.
const jobRunTimeout = 15 * time.Minute

// countingFetcher wraps a Fetcher and counts successful page fetches so
// job status can report how many pages the run actually hit.
type countingFetcher struct {
	inner harvest.Fetcher
	pages atomic.Int32
}

func (f *countingFetcher) Fetch(ctx context.Context, req *fetch.Request) (*fetch.Result, error) {
	res, err := f.inner.Fetch(ctx, req)
	if err == nil {
		f.pages.Add(1)
	}
	return res, err
}

// PostHarvest returns a handler for POST /api/v1/harvest.
//
// The harvest runs in the background; the response carries the job ID
// for polling via GET /api/v1/harvest/:id.
func PostHarvest(fetcher harvest.Fetcher, pages *cache.Cache, cfg *config.Config, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.HarvestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		req.Defaults()

		jobID := "harvest-" + randomID()
		job := &models.HarvestJob{
			ID:            jobID,
			Status:        "processing",
			CreatedAt:     time.Now().Unix(),
			WebhookURL:    req.WebhookURL,
			WebhookSecret: req.WebhookSecret,
		}
		harvestStore.Store(jobID, job)

		go runHarvest(fetcher, pages, cfg, log, job, req)

		c.JSON(http.StatusOK, models.HarvestResponse{
			ID:     jobID,
			Status: "processing",
		})
	}
}

// GetHarvest returns a handler for GET /api/v1/harvest/:id.
func GetHarvest() gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := c.Param("id")
		val, ok := harvestStore.Load(jobID)
		if !ok {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: "harvest job not found",
				},
			})
			return
		}

		job := val.(*models.HarvestJob)
		c.JSON(http.StatusOK, models.HarvestStatusResponse{
			ID:         job.ID,
			Status:     job.Status,
			Kept:       job.Kept,
			Duplicates: job.Duplicates,
			Pages:      job.Pages,
			Files:      job.Files,
			Error:      job.Error,
		})
	}
}

// runHarvest drives one background run: open a fresh pipeline, walk the
// site, close, publish the totals, and notify the webhook.
//
// The job stored at submission is never mutated; the run's results land
// in a fresh snapshot swapped into the store, so GetHarvest only ever
// reads fully-built values.
func runHarvest(fetcher harvest.Fetcher, pages *cache.Cache, cfg *config.Config, log *slog.Logger, job *models.HarvestJob, req models.HarvestRequest) {
	cf := &countingFetcher{inner: fetcher}
	hv := harvest.New(cf, pages, cfg.Harvest, log)
	pl := pipeline.New(pipeline.Config{
		OutputDir:        cfg.Export.OutputDir,
		StrictHeaders:    cfg.Export.StrictHeaders,
		NearDupThreshold: cfg.Harvest.NearDupThreshold,
	}, log)

	done := &models.HarvestJob{
		ID:            job.ID,
		CreatedAt:     job.CreatedAt,
		WebhookURL:    job.WebhookURL,
		WebhookSecret: job.WebhookSecret,
	}

	if err := pl.Open(job.ID); err != nil {
		finishJob(done, err, log)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), jobRunTimeout)
	defer cancel()

	runErr := hv.Run(ctx, &req, pl)
	if closeErr := pl.Close(); runErr == nil {
		runErr = closeErr
	}

	stats := pl.Stats()
	done.Kept = stats.Kept
	done.Duplicates = stats.Duplicates
	done.Pages = int(cf.pages.Load())
	done.Files = pl.Files()

	finishJob(done, runErr, log)
}

// finishJob stamps the outcome on the snapshot, publishes it, and
// dispatches the webhook.
func finishJob(job *models.HarvestJob, runErr error, log *slog.Logger) {
	if runErr != nil {
		job.Status = "failed"
		var he *models.HarvestError
		if errors.As(runErr, &he) {
			job.Error = he.ToDetail()
		} else {
			job.Error = &models.ErrorDetail{
				Code:    models.ErrCodeInternal,
				Message: runErr.Error(),
			}
		}
	} else {
		job.Status = "completed"
	}

	harvestStore.Store(job.ID, job)

	log.Info("harvest job finished",
		"id", job.ID,
		"status", job.Status,
		"kept", job.Kept,
		"duplicates", job.Duplicates,
		"pages", job.Pages,
	)

	notify(job, log)
}

// notify delivers the run summary to the job's webhook, if configured.
func notify(job *models.HarvestJob, log *slog.Logger) {
	if job.WebhookURL == "" {
		return
	}
	eventType := "harvest.completed"
	if job.Status == "failed" {
		eventType = "harvest.failed"
	}
	log.Info("dispatching webhook", "id", job.ID, "event", eventType)
	webhook.DeliverAsync(job.WebhookURL, job.WebhookSecret, &webhook.Event{
		Type:      eventType,
		JobID:     job.ID,
		Timestamp: time.Now().Unix(),
		Data: models.HarvestStatusResponse{
			ID:         job.ID,
			Status:     job.Status,
			Kept:       job.Kept,
			Duplicates: job.Duplicates,
			Pages:      job.Pages,
			Files:      job.Files,
			Error:      job.Error,
		},
	})
}

// randomID generates a short random hex job identifier.
func randomID() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}
