// Package enrichment dispatches saved persons to the enrichment provider and reconciles the outcome.
package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rpattn/leadstream/internal/domain"
	"github.com/rpattn/leadstream/internal/ingestion"
	"github.com/rpattn/leadstream/internal/provider"
	"github.com/rpattn/leadstream/internal/repository"
)

// Provider is the bulk enrichment capability.
type Provider interface {
	BulkEnrich(ctx context.Context, items []provider.RequestItem) ([]provider.ResponseItem, error)
}

// Saver commits an upload's rows. Implemented by ingestion.Service.
type Saver interface {
	Save(ctx context.Context, uploadID int64) (ingestion.SaveResult, error)
}

// EnrichRequest identifies the upload and the user asking for it.
type EnrichRequest struct {
	UploadID int64
	UserID   int64
}

// EnrichResult acknowledges a dispatched batch.
type EnrichResult struct {
	BatchID         *uuid.UUID `json:"batchId,omitempty"`
	InProgressCount int        `json:"inProgressCount"`
}

// Service orchestrates enrichment batches.
type Service struct {
	store    repository.Store
	saver    Saver
	provider Provider
	logger   *zap.Logger
	queue    *Queue
}

// NewService wires the orchestrator and starts its dispatch queue.
func NewService(store repository.Store, saver Saver, p Provider, logger *zap.Logger, opts ...QueueOption) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:    store,
		saver:    saver,
		provider: p,
		logger:   logger,
	}
	s.queue = NewQueue(s.process, s.fail, logger.Named("queue"), opts...)
	return s
}

// Shutdown drains the dispatch queue.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.queue.Shutdown(ctx)
}

// Enrich claims the upload's Pending persons and dispatches them. It returns as soon as the
// batch is queued; outcomes are visible by polling person status.
func (s *Service) Enrich(ctx context.Context, req EnrichRequest) (EnrichResult, error) {
	if req.UserID <= 0 {
		return EnrichResult{}, domain.ErrUnauthenticated
	}
	upload, err := s.store.Uploads().GetByID(ctx, req.UploadID)
	if err != nil {
		return EnrichResult{}, err
	}

	if err := s.authorize(ctx, req, upload); err != nil {
		return EnrichResult{}, err
	}

	if !upload.IsSaved {
		result, err := s.saver.Save(ctx, upload.ID)
		switch {
		case errors.Is(err, domain.ErrAlreadySaved):
			s.logger.Debug("upload saved concurrently", zap.Int64("upload_id", upload.ID))
		case err != nil:
			return EnrichResult{}, fmt.Errorf("failed to save upload before enrichment: %w", err)
		default:
			s.logger.Info("upload auto-saved for enrichment",
				zap.Int64("upload_id", upload.ID),
				zap.Int64("inserted", result.InsertedCount),
				zap.Int("expected", result.ExpectedCount),
			)
		}
	}

	batchID := uuid.New()
	var job Job
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		claimed, err := tx.Persons().ClaimPending(ctx, upload.ID, batchID)
		if err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}

		items := buildRequestItems(claimed)
		payload, err := json.Marshal(items)
		if err != nil {
			return fmt.Errorf("failed to encode enrichment request: %w", err)
		}
		if _, err := tx.Enrichments().CreateAudit(ctx, domain.EnrichmentAudit{
			BatchID:        batchID,
			Kind:           domain.EnrichmentKindPerson,
			UploadID:       upload.ID,
			RequestPayload: payload,
		}); err != nil {
			return err
		}
		job = Job{BatchID: batchID, UploadID: upload.ID, Items: items}
		return nil
	})
	if err != nil {
		return EnrichResult{}, err
	}

	if len(job.Items) == 0 {
		s.logger.Info("no pending persons to enrich", zap.Int64("upload_id", upload.ID))
		return EnrichResult{}, nil
	}

	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.logger.Error("failed to dispatch enrichment batch",
			zap.String("batch_id", batchID.String()),
			zap.Int64("upload_id", upload.ID),
			zap.Error(err),
		)
		s.fail(context.WithoutCancel(ctx), job, err)
		return EnrichResult{}, fmt.Errorf("failed to dispatch enrichment batch: %w", err)
	}

	s.logger.Info("enrichment batch dispatched",
		zap.String("batch_id", batchID.String()),
		zap.Int64("upload_id", upload.ID),
		zap.Int("persons", len(job.Items)),
	)
	return EnrichResult{BatchID: &batchID, InProgressCount: len(job.Items)}, nil
}

// GetBatch returns the audit record of a dispatched batch when the user may see its upload.
func (s *Service) GetBatch(ctx context.Context, userID int64, batchID uuid.UUID) (domain.EnrichmentAudit, error) {
	if userID <= 0 {
		return domain.EnrichmentAudit{}, domain.ErrUnauthenticated
	}
	audit, err := s.store.Enrichments().GetAudit(ctx, batchID)
	if err != nil {
		return domain.EnrichmentAudit{}, err
	}
	upload, err := s.store.Uploads().GetByID(ctx, audit.UploadID)
	if err != nil {
		return domain.EnrichmentAudit{}, err
	}
	if err := s.authorize(ctx, EnrichRequest{UploadID: upload.ID, UserID: userID}, upload); err != nil {
		return domain.EnrichmentAudit{}, err
	}
	return audit, nil
}

func (s *Service) authorize(ctx context.Context, req EnrichRequest, upload domain.Upload) error {
	forbidden := &domain.ForbiddenError{UserID: req.UserID, UploadID: upload.ID}

	user, err := s.store.Ownership().GetUser(ctx, req.UserID)
	if errors.Is(err, domain.ErrNotFound) {
		return forbidden
	}
	if err != nil {
		return err
	}
	company, err := s.store.Ownership().GetCompany(ctx, upload.OwnerCompanyID)
	if errors.Is(err, domain.ErrNotFound) {
		return forbidden
	}
	if err != nil {
		return err
	}
	if !user.OwnsCompany(company) {
		s.logger.Warn("enrichment denied",
			zap.Int64("user_id", req.UserID),
			zap.Int64("upload_id", upload.ID),
			zap.Int64("company_id", company.ID),
		)
		return forbidden
	}
	return nil
}

func buildRequestItems(persons []domain.Person) []provider.RequestItem {
	items := make([]provider.RequestItem, len(persons))
	for i, p := range persons {
		items[i] = provider.RequestItem{
			Params: provider.Params{
				Name:    p.FullName,
				Email:   p.Email,
				Profile: p.LinkedinProfileURL,
				Phone:   p.PhoneNumber,
			},
			Metadata: provider.Metadata{
				PersonID: p.ID,
				Email:    p.Email,
			},
		}
	}
	return items
}

// process is the detached continuation of a dispatched batch.
func (s *Service) process(ctx context.Context, job Job) error {
	items, callErr := s.provider.BulkEnrich(ctx, job.Items)
	if callErr != nil && len(items) == 0 {
		return callErr
	}

	auditOutcome := domain.AuditOutcomeSucceeded
	var body any = items
	if callErr != nil {
		// Answered chunks are kept; unanswered persons end up missing and so Failed.
		auditOutcome = domain.AuditOutcomeFailed
		body = partialPayload{Error: callErr.Error(), Items: items}
	}
	response, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode enrichment response: %w", err)
	}

	var outcome Outcome
	settled := false
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		members, err := tx.Persons().ListByBatch(ctx, job.BatchID)
		if err != nil {
			return err
		}
		inFlight := members[:0]
		for _, p := range members {
			if p.EnrichmentStatus == domain.EnrichmentStatusInProgress {
				inFlight = append(inFlight, p)
			}
		}

		ok, err := tx.Enrichments().SettleAudit(ctx, job.BatchID, auditOutcome, response)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		settled = true

		outcome = Reconcile(inFlight, items)
		if _, err := tx.Enrichments().InsertResults(ctx, outcome.Results); err != nil {
			return err
		}
		if _, err := tx.Persons().TransitionBatch(ctx, job.BatchID, outcome.Completed, domain.EnrichmentStatusCompleted); err != nil {
			return err
		}
		if _, err := tx.Persons().TransitionBatch(ctx, job.BatchID, outcome.FailedOrMissing(), domain.EnrichmentStatusFailed); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to reconcile enrichment batch: %w", err)
	}

	if !settled {
		s.logger.Warn("enrichment batch already settled, response discarded",
			zap.String("batch_id", job.BatchID.String()),
		)
		return nil
	}
	for _, item := range outcome.Unknown {
		s.logger.Warn("enrichment response item does not belong to batch",
			zap.String("batch_id", job.BatchID.String()),
			zap.Int64("person_id", item.Metadata.PersonID),
			zap.Int("status", item.Status),
		)
	}
	if callErr != nil {
		s.logger.Warn("enrichment batch partially answered",
			zap.String("batch_id", job.BatchID.String()),
			zap.Int("answered", len(items)),
			zap.Error(callErr),
		)
	}
	s.logger.Info("enrichment batch reconciled",
		zap.String("batch_id", job.BatchID.String()),
		zap.Int64("upload_id", job.UploadID),
		zap.Int("completed", len(outcome.Completed)),
		zap.Int("failed", len(outcome.Failed)),
		zap.Int("missing", len(outcome.Missing)),
		zap.Int("unknown", len(outcome.Unknown)),
	)
	return nil
}

type failurePayload struct {
	Error string `json:"error"`
}

type partialPayload struct {
	Error string                  `json:"error"`
	Items []provider.ResponseItem `json:"items"`
}

// fail settles the audit with the error and fails every person still in flight.
func (s *Service) fail(ctx context.Context, job Job, cause error) {
	s.settleFailed(ctx, job.BatchID, domain.AuditOutcomeFailed, cause)
}

func (s *Service) settleFailed(ctx context.Context, batchID uuid.UUID, outcome domain.AuditOutcome, cause error) (int64, bool) {
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}
	payload, _ := json.Marshal(failurePayload{Error: msg})

	var (
		failed  int64
		settled bool
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		ok, err := tx.Enrichments().SettleAudit(ctx, batchID, outcome, payload)
		if err != nil || !ok {
			return err
		}
		settled = true
		failed, err = tx.Persons().TransitionBatch(ctx, batchID, nil, domain.EnrichmentStatusFailed)
		return err
	})
	if err != nil {
		s.logger.Error("failed to settle enrichment batch",
			zap.String("batch_id", batchID.String()),
			zap.String("outcome", string(outcome)),
			zap.Error(err),
		)
		return 0, false
	}
	if settled {
		s.logger.Warn("enrichment batch marked failed",
			zap.String("batch_id", batchID.String()),
			zap.String("outcome", string(outcome)),
			zap.Int64("persons", failed),
			zap.String("cause", msg),
		)
	}
	return failed, settled
}
