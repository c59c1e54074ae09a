package handler

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/use-agent/pinharvest/config"
	"github.com/use-agent/pinharvest/fetch"
	"github.com/use-agent/pinharvest/models"
)

// cannedFetcher serves fixed HTML per URL.
type cannedFetcher struct {
	pages map[string]string
}

func (f *cannedFetcher) Fetch(_ context.Context, req *fetch.Request) (*fetch.Result, error) {
	html, ok := f.pages[req.URL]
	if !ok {
		return nil, errors.New("no such page")
	}
	return &fetch.Result{HTML: html, FinalURL: req.URL, StatusCode: 200, Engine: "http"}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Harvest: config.HarvestConfig{MaxItems: 20, MaxPages: 5},
		Export:  config.ExportConfig{OutputDir: t.TempDir()},
	}
}

func storeJob(t *testing.T, id string) *models.HarvestJob {
	t.Helper()
	job := &models.HarvestJob{ID: id, Status: "processing", CreatedAt: time.Now().Unix()}
	harvestStore.Store(id, job)
	t.Cleanup(func() { harvestStore.Delete(id) })
	return job
}

func TestRunHarvestPublishesSnapshot(t *testing.T) {
	fetcher := &cannedFetcher{pages: map[string]string{
		"https://www.pinterest.com/search/pins/?q=kitchen": `<html><body><a href="/pin/111222333444555/">a</a></body></html>`,
		"https://www.pinterest.com/pin/111222333444555/": `<html><body>
			<h1>Tiled Kitchen</h1>
			<img src="https://i.pinimg.com/736x/aa/bb/cc.jpg" alt="Pin image">
		</body></html>`,
	}}

	job := storeJob(t, "harvest-snapshot-test")
	req := models.HarvestRequest{Query: "kitchen", Kind: "pins"}
	req.Defaults()
	runHarvest(fetcher, nil, testConfig(t), slog.Default(), job, req)

	val, ok := harvestStore.Load(job.ID)
	if !ok {
		t.Fatal("job vanished from store")
	}
	published := val.(*models.HarvestJob)
	if published == job {
		t.Fatal("store still holds the submission job; results must land in a fresh snapshot")
	}
	if job.Status != "processing" {
		t.Errorf("submission job mutated: status = %q", job.Status)
	}
	if published.Status != "completed" {
		t.Errorf("status = %q, want completed", published.Status)
	}
	if published.Kept != 1 {
		t.Errorf("kept = %d, want 1", published.Kept)
	}
	if published.Pages != 2 {
		t.Errorf("pages = %d, want 2", published.Pages)
	}
	if len(published.Files) == 0 {
		t.Error("no export files on the published job")
	}
}

func TestRunHarvestFailureSnapshot(t *testing.T) {
	fetcher := &cannedFetcher{pages: map[string]string{}}

	job := storeJob(t, "harvest-failure-test")
	req := models.HarvestRequest{Query: "kitchen", Kind: "pins"}
	req.Defaults()
	runHarvest(fetcher, nil, testConfig(t), slog.Default(), job, req)

	val, _ := harvestStore.Load(job.ID)
	published := val.(*models.HarvestJob)
	if published.Status != "failed" {
		t.Fatalf("status = %q, want failed", published.Status)
	}
	if published.Error == nil || published.Error.Code != models.ErrCodeFetch {
		t.Errorf("error = %+v, want %s", published.Error, models.ErrCodeFetch)
	}
}
