// Package delivery turns a completed profile into a PDF plan document
// stored in the bucket, returning a signed link the user can open.
package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gricce/fuelqpro-console/internal/blob"
	"github.com/gricce/fuelqpro-console/internal/models"
	"github.com/gricce/fuelqpro-console/internal/pdf"
	"github.com/gricce/fuelqpro-console/internal/util"
)

// LinkExpiry is how long a plan download link stays valid.
const LinkExpiry = 7 * 24 * time.Hour

// PlanGenerator produces plan text from a profile. Satisfied by
// *plan.Generator.
type PlanGenerator interface {
	Generate(ctx context.Context, profile map[string]string, full bool) string
}

// Recorder persists plan document records. Satisfied by store.Store.
type Recorder interface {
	AppendDocument(ctx context.Context, userID string, doc models.PlanDocument) error
}

// Deliverer generates, renders, uploads, and records plan documents.
type Deliverer struct {
	plans  PlanGenerator
	bucket blob.Bucket
	store  Recorder

	render func(profile map[string]string, planText string) ([]byte, error)
	now    func() time.Time
}

// New creates a Deliverer. All three dependencies are required.
func New(plans PlanGenerator, bucket blob.Bucket, store Recorder) *Deliverer {
	return &Deliverer{
		plans:   plans,
		bucket:  bucket,
		store:   store,
		render: pdf.Render,
		now:    time.Now,
	}
}

// SetClock overrides the time source for tests.
func (d *Deliverer) SetClock(now func() time.Time) { d.now = now }

// Deliver produces the full plan for the profile, renders it as a PDF,
// uploads it, and returns a signed download URL. The document record is
// appended only after the upload succeeds, so a failed upload never leaves
// a record pointing at a missing object.
func (d *Deliverer) Deliver(ctx context.Context, userID string, profile map[string]string) (string, error) {
	planText := d.plans.Generate(ctx, profile, true)

	content, err := d.render(profile, planText)
	if err != nil {
		slog.Error("Deliverer.Deliver: PDF render failed", "error", err, "userID", userID)
		return "", fmt.Errorf("failed to render plan PDF: %w", err)
	}

	now := d.now()
	suffix := util.GenerateRandomHex(8)
	filename := fmt.Sprintf("plans/plan_%s_%d_%s.pdf",
		util.NormalizeNamePart(profile["name"], "user"), now.Unix(), suffix)

	if err := d.bucket.Upload(ctx, filename, content, "application/pdf"); err != nil {
		slog.Error("Deliverer.Deliver: upload failed", "error", err, "userID", userID, "object", filename)
		return "", fmt.Errorf("failed to upload plan PDF: %w", err)
	}

	url, err := d.bucket.SignedURL(filename, LinkExpiry)
	if err != nil {
		slog.Error("Deliverer.Deliver: signing failed", "error", err, "userID", userID, "object", filename)
		return "", fmt.Errorf("failed to sign plan URL: %w", err)
	}

	doc := models.PlanDocument{Filename: filename, URL: url, CreatedAt: now}
	if err := d.store.AppendDocument(ctx, userID, doc); err != nil {
		// The user still gets a working link; only the history entry is lost.
		slog.Warn("Deliverer.Deliver: failed to record plan document", "error", err, "userID", userID, "object", filename)
	}

	slog.Info("Deliverer.Deliver: plan delivered", "userID", userID, "object", filename)
	return url, nil
}
