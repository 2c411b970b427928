package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"contactgate/internal/antispam"
	"contactgate/internal/delivery"
	"contactgate/internal/domain"
	"contactgate/internal/metrics"
	apperrors "contactgate/pkg/errors"
)

// Messages shown to visitors.
const (
	MsgSuccess            = "Mensagem enviada com sucesso! Você receberá um email de confirmação."
	MsgReceived           = "Mensagem recebida! Entraremos em contato em breve."
	MsgConfirmationFailed = "Não foi possível enviar o email de confirmação, mas sua mensagem foi registrada."
	MsgFollowUp           = "Sua mensagem foi registrada e será respondida em breve."
	MsgInvalidData        = "Por favor, verifique os dados informados e tente novamente."
	MsgContentRejected    = "Sua mensagem não pôde ser enviada. Revise o conteúdo e tente novamente."
	MsgRecipientRejected  = "Email rejeitado. Por favor, verifique o endereço de email."
	MsgTooManyAttempts    = "Muitas tentativas. Aguarde alguns minutos antes de tentar novamente."
	MsgInternal           = "Erro ao enviar mensagem. Por favor, tente novamente."
)

const submissionPurpose = "submission"

// ContactStore is the persistence the pipeline needs.
type ContactStore interface {
	Create(ctx context.Context, rec *domain.ContactRecord) error
	MarkSent(ctx context.Context, id uint) error
	ListRecent(ctx context.Context, limit int) ([]domain.ContactRecord, error)
}

// Mailer sends one email. Implemented by *delivery.Service.
type Mailer interface {
	Send(ctx context.Context, email delivery.Email, opts delivery.Options) (*delivery.Result, error)
}

// ContactConfig holds the addresses used by the pipeline.
type ContactConfig struct {
	OwnerEmail string
	SenderName string
}

// SubmitInput is one form post with its request metadata.
type SubmitInput struct {
	Submission domain.Submission
	IP         string
	UserAgent  string
}

// SubmitResult is returned once a record exists.
type SubmitResult struct {
	ContactID uint
	CreatedAt time.Time
	Message   string
	Warning   string
}

// ContactService runs a submission from validation to the final status update.
type ContactService struct {
	cfg        ContactConfig
	store      ContactStore
	mailer     Mailer
	guard      *antispam.Guard
	scorer     *antispam.Scorer
	reputation *antispam.Reputation
	log        zerolog.Logger
}

// NewContactService creates a new contact service
func NewContactService(cfg ContactConfig, store ContactStore, mailer Mailer, guard *antispam.Guard, reputation *antispam.Reputation, log zerolog.Logger) *ContactService {
	return &ContactService{
		cfg:        cfg,
		store:      store,
		mailer:     mailer,
		guard:      guard,
		scorer:     antispam.FormScorer(),
		reputation: reputation,
		log:        log,
	}
}

// Submit validates, persists and dispatches a submission. Errors returned
// before the record exists are VALIDATION_FAILED or INTERNAL_ERROR. After it
// exists only RATE_LIMIT_EXCEEDED, CONTENT_REJECTED and RECIPIENT_REJECTED
// from the owner email are returned; every other failure degrades into a
// result with a warning.
func (s *ContactService) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	sub := normalizeSubmission(in.Submission)

	if err := s.validate(ctx, sub, in.IP); err != nil {
		metrics.RecordContactSubmission("rejected")
		return nil, err
	}

	rec := &domain.ContactRecord{
		Name:      sub.Name,
		Email:     sub.Email,
		Company:   sub.Company,
		Message:   sub.Message,
		IPAddress: in.IP,
		UserAgent: in.UserAgent,
	}
	if err := s.store.Create(ctx, rec); err != nil {
		s.log.Error().Err(err).Str("ip", in.IP).Msg("failed to persist contact")
		metrics.RecordContactSubmission("error")
		return nil, apperrors.Wrap(apperrors.ErrCodeInternalError, MsgInternal, err)
	}

	s.log.Info().Uint("contact_id", rec.ID).Str("email", rec.Email).Str("ip", in.IP).Msg("contact saved")
	return s.dispatch(ctx, rec, in.IP)
}

// validate runs the structural, guard and content checks. Every failure is
// counted against the caller IP.
func (s *ContactService) validate(ctx context.Context, sub domain.Submission, ip string) error {
	var (
		err   error
		check string
	)

	if guardErr := s.guard.Check(sub.Honeypot, sub.RenderedAtMs()); guardErr != nil {
		err, check = guardErr, "guard"
	} else if fieldErrs := validateFields(sub); len(fieldErrs) > 0 {
		err, check = apperrors.Validation(MsgInvalidData, fieldErrs...), "validation"
	} else if res, ok := s.scorer.Check(sub.Message); !ok {
		details := append([]string{fmt.Sprintf("content: spam score %d", res.Score)}, res.Reasons...)
		err, check = apperrors.Validation(MsgContentRejected, details...), "content"
	}
	if err == nil {
		return nil
	}

	metrics.RecordSpamRejection(check)
	s.log.Warn().Err(err).Str("ip", ip).Str("check", check).Msg("submission rejected")

	if _, promoted, recErr := s.reputation.RecordFailure(ctx, ip, submissionPurpose); recErr != nil {
		s.log.Error().Err(recErr).Str("ip", ip).Msg("failed to record validation failure")
	} else if promoted {
		s.log.Warn().Str("ip", ip).Msg("ip flagged after repeated validation failures")
	}
	return err
}

// dispatch sends both emails and marks the record sent. It never panics past
// its caller. Once the record exists the caller going away no longer stops
// the pipeline; the transport's own timeouts bound it.
func (s *ContactService) dispatch(ctx context.Context, rec *domain.ContactRecord, ip string) (res *SubmitResult, err error) {
	ctx = context.WithoutCancel(ctx)

	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Uint("contact_id", rec.ID).Msg("contact dispatch panicked")
			metrics.RecordContactSubmission("partial")
			res = &SubmitResult{ContactID: rec.ID, CreatedAt: rec.CreatedAt, Message: MsgReceived, Warning: MsgFollowUp}
			err = nil
		}
	}()

	ownerErr := s.sendOwnerNotification(ctx, rec, ip)
	metrics.RecordEmail("owner", ownerErr)
	if ownerErr != nil {
		if abortErr := s.classifyOwnerFailure(ctx, ownerErr, rec, ip); abortErr != nil {
			return nil, abortErr
		}
	}

	result := &SubmitResult{ContactID: rec.ID, CreatedAt: rec.CreatedAt, Message: MsgSuccess}

	confirmErr := s.sendConfirmation(ctx, rec)
	metrics.RecordEmail("confirmation", confirmErr)
	if confirmErr != nil {
		s.log.Warn().Err(confirmErr).Uint("contact_id", rec.ID).Msg("confirmation email failed")
		result.Message = MsgReceived
		result.Warning = MsgConfirmationFailed
	}

	if markErr := s.store.MarkSent(ctx, rec.ID); markErr != nil {
		s.log.Error().Err(markErr).Uint("contact_id", rec.ID).Msg("failed to mark contact as sent")
		if result.Warning == "" {
			result.Message = MsgReceived
			result.Warning = MsgFollowUp
		}
	}

	if result.Warning != "" {
		metrics.RecordContactSubmission("partial")
	} else {
		metrics.RecordContactSubmission("accepted")
	}
	return result, nil
}

// classifyOwnerFailure returns the error that aborts the pipeline, or nil
// when the failure is only logged.
func (s *ContactService) classifyOwnerFailure(ctx context.Context, ownerErr error, rec *domain.ContactRecord, ip string) error {
	log := s.log.With().Uint("contact_id", rec.ID).Str("ip", ip).Logger()

	switch apperrors.CodeOf(ownerErr) {
	case apperrors.ErrCodeRateLimited:
		log.Warn().Err(ownerErr).Msg("owner email rate limited")
		metrics.RecordRateLimitRejection(delivery.PerSource.Name)
		metrics.RecordContactSubmission("rate_limited")
		retry := delivery.PerSource.Window
		if appErr, ok := apperrors.As(ownerErr); ok && appErr.RetryAfter > 0 {
			retry = appErr.RetryAfter
		}
		return apperrors.RateLimited(MsgTooManyAttempts, retry)

	case apperrors.ErrCodeContentRejected:
		log.Warn().Err(ownerErr).Msg("owner email content rejected")
		metrics.RecordSpamRejection("delivery_content")
		metrics.RecordContactSubmission("rejected")
		if err := s.reputation.MarkSuspicious(ctx, ip, "outbound content rejected"); err != nil {
			log.Error().Err(err).Msg("failed to flag ip")
		}
		rejected := apperrors.New(apperrors.ErrCodeContentRejected, MsgContentRejected)
		if appErr, ok := apperrors.As(ownerErr); ok {
			rejected.Details = appErr.Details
		}
		return rejected

	case apperrors.ErrCodeRecipientRejected:
		log.Warn().Err(ownerErr).Msg("owner email rejected by mail server")
		metrics.RecordContactSubmission("rejected")
		return apperrors.Wrap(apperrors.ErrCodeRecipientRejected, MsgRecipientRejected, ownerErr)

	default:
		log.Error().Err(ownerErr).Msg("owner email failed, continuing")
		return nil
	}
}

func (s *ContactService) sendOwnerNotification(ctx context.Context, rec *domain.ContactRecord, ip string) error {
	_, err := s.mailer.Send(ctx, delivery.Email{
		To:      s.cfg.OwnerEmail,
		Subject: ownerSubject(rec),
		HTML:    ownerHTML(rec),
		Text:    ownerText(rec),
	}, delivery.Options{
		ReplyTo:     rec.Email,
		ReferenceID: fmt.Sprintf("contact-%d", rec.ID),
		SourceIP:    ip,
	})
	return err
}

func (s *ContactService) sendConfirmation(ctx context.Context, rec *domain.ContactRecord) error {
	_, err := s.mailer.Send(ctx, delivery.Email{
		To:      rec.Email,
		Subject: confirmationSubject(s.cfg.SenderName),
		HTML:    confirmationHTML(rec, s.cfg.SenderName),
		Text:    confirmationText(rec, s.cfg.SenderName),
	}, delivery.Options{
		ReferenceID:   fmt.Sprintf("confirmation-%d", rec.ID),
		SkipSpamCheck: true,
	})
	return err
}

// ListRecent returns the newest contact records for the admin listing.
func (s *ContactService) ListRecent(ctx context.Context, limit int) ([]domain.ContactRecord, error) {
	records, err := s.store.ListRecent(ctx, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeInternalError, "failed to list contacts", err)
	}
	return records, nil
}
