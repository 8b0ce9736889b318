package httpapi

import (
	"context"

	"github.com/dmitrijs2005/gophqms/internal/server/models"
	"github.com/dmitrijs2005/gophqms/internal/server/services"
)

type RecordService interface {
	Create(ctx context.Context, in services.CreateRecordInput) (*models.Record, error)
	Get(ctx context.Context, entityType, entityID string) (*models.Record, error)
	List(ctx context.Context, entityType, state string) ([]*models.Record, error)
	Update(ctx context.Context, in services.UpdateRecordInput) (*models.Record, error)
	History(ctx context.Context, entityType, entityID string) ([]*models.HistoryEntry, error)
	AddTask(ctx context.Context, in services.AddTaskInput) (*models.Task, error)
	CompleteTask(ctx context.Context, entityType, entityID, taskID, actorID string) error
	Tasks(ctx context.Context, entityType, entityID string) ([]*models.Task, error)
	RecordWaiver(ctx context.Context, entityType, entityID, justification, actorID string) (*models.Waiver, error)
	AddAttachment(ctx context.Context, in services.AddAttachmentInput) (*models.Attachment, string, error)
	Attachments(ctx context.Context, entityType, entityID string) ([]*models.Attachment, error)
}

type IntegrityService interface {
	CanonicalPayload(ctx context.Context, entityType, entityID string) (*services.CanonicalPayload, error)
	SubmitArtifact(ctx context.Context, in services.SubmitArtifactInput) (*services.ArtifactResult, error)
	ApprovalStatus(ctx context.Context, entityType, entityID string) (*services.ApprovalStatus, error)
	ListArtifacts(ctx context.Context, entityType, entityID string) ([]*models.SignatureArtifact, error)
}

type LedgerService interface {
	CreateRequest(ctx context.Context, in services.CreateRequestInput) (*models.SignatureRequest, error)
	MarkSigned(ctx context.Context, requestID, artifactID string) error
	ListPending(ctx context.Context, entityType, entityID string) ([]*models.SignatureRequest, error)
}

type WorkflowService interface {
	Transition(ctx context.Context, in services.TransitionInput) (*models.Record, error)
	AllowedTargets(ctx context.Context, entityType, entityID string) ([]string, error)
}

type EsignService interface {
	Sign(ctx context.Context, in services.EsignInput) (*services.EsignResult, error)
	ListSignatures(ctx context.Context, entityType, entityID string) ([]*models.LocalSignature, error)
}

type ActorService interface {
	Login(ctx context.Context, userName string, password []byte) (string, error)
}

var (
	_ RecordService    = (*services.RecordService)(nil)
	_ IntegrityService = (*services.IntegrityService)(nil)
	_ LedgerService    = (*services.LedgerService)(nil)
	_ WorkflowService  = (*services.WorkflowService)(nil)
	_ EsignService     = (*services.EsignService)(nil)
	_ ActorService     = (*services.ActorService)(nil)
)
