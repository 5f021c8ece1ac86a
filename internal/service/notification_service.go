package service

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	"go.uber.org/zap"

	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/models"
	"github.com/DiegoCE21/ApprovalFlow-sub000/pkg/jobs"
	"github.com/DiegoCE21/ApprovalFlow-sub000/pkg/mailer"
)

// JobTypeMail identifies mail delivery jobs on the queue.
const JobTypeMail = "mail"

// Notice describes one notification to a single recipient.
type Notice struct {
	Kind      models.NotificationKind
	Recipient string
	Document  models.Document
	SlotToken string
	Actor     string
	Reason    string
	Pending   []string
}

type mailDispatcher interface {
	Enqueue(job jobs.Job) error
}

// NotificationService reserves notices through the dedup gate and dispatches them after commit.
type NotificationService struct {
	gate      NotificationGate
	mailer    mailer.Mailer
	queue     mailDispatcher
	metrics   *MetricsService
	logger    *zap.Logger
	baseURL   string
	oversight string
	templates map[models.NotificationKind]*template.Template
}

// NotificationConfig holds link and recipient settings.
type NotificationConfig struct {
	PublicBaseURL  string
	OversightEmail string
}

// NewNotificationService constructs the notifier. Without a queue notices are sent inline.
func NewNotificationService(gate NotificationGate, m mailer.Mailer, metrics *MetricsService, logger *zap.Logger, cfg NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		gate:      gate,
		mailer:    m,
		metrics:   metrics,
		logger:    logger,
		baseURL:   strings.TrimRight(cfg.PublicBaseURL, "/"),
		oversight: models.NormalizeEmail(cfg.OversightEmail),
		templates: parseNoticeTemplates(),
	}
}

// UseQueue routes deliveries through the worker queue.
func (s *NotificationService) UseQueue(queue mailDispatcher) {
	s.queue = queue
}

// Notify reserves the notice in the gate and dispatches it unless it was already sent in the window.
// Mail failures are logged, never returned.
func (s *NotificationService) Notify(ctx context.Context, notice Notice) {
	s.notify(ctx, notice, true, false)
}

// NotifyOnce behaves like Notify but the delivery is not retried.
func (s *NotificationService) NotifyOnce(ctx context.Context, notice Notice) {
	s.notify(ctx, notice, true, true)
}

// NotifyOversight sends a copy of notice to the oversight recipient without dedup.
func (s *NotificationService) NotifyOversight(ctx context.Context, notice Notice) {
	if s.oversight == "" {
		return
	}
	notice.Recipient = s.oversight
	s.notify(ctx, notice, false, false)
}

func (s *NotificationService) notify(ctx context.Context, notice Notice, gated, noRetry bool) {
	if s == nil {
		return
	}
	notice.Recipient = models.NormalizeEmail(notice.Recipient)
	if notice.Recipient == "" {
		return
	}
	fields := []zap.Field{
		zap.String("kind", string(notice.Kind)),
		zap.String("recipient", notice.Recipient),
		zap.String("document_id", notice.Document.ID),
	}
	if gated && s.gate != nil {
		reservation, err := s.gate.TryReserve(ctx, models.ReceiptKey{
			Recipient:  notice.Recipient,
			DocumentID: notice.Document.ID,
			Kind:       notice.Kind,
			SlotToken:  notice.SlotToken,
		})
		if err != nil {
			s.logger.Warn("notification gate unavailable", append(fields, zap.Error(err))...)
			s.metrics.RecordNotification(notice.Kind, NotificationOutcomeFailed)
			return
		}
		if reservation.Already {
			s.logger.Debug("notification suppressed", fields...)
			s.metrics.RecordNotification(notice.Kind, NotificationOutcomeSuppressed)
			return
		}
	}

	msg, err := s.Render(notice)
	if err != nil {
		s.logger.Error("failed to render notification", append(fields, zap.Error(err))...)
		s.metrics.RecordNotification(notice.Kind, NotificationOutcomeFailed)
		return
	}

	if s.queue == nil {
		if err := s.send(ctx, mailJob{Kind: notice.Kind, Message: msg}); err != nil {
			s.logger.Warn("failed to send notification", append(fields, zap.Error(err))...)
		}
		return
	}
	job := jobs.Job{
		ID:      fmt.Sprintf("%s:%s:%s", notice.Kind, notice.Document.ID, notice.Recipient),
		Type:    JobTypeMail,
		Payload: mailJob{Kind: notice.Kind, Message: msg},
		NoRetry: noRetry,
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue notification", append(fields, zap.Error(err))...)
		s.metrics.RecordNotification(notice.Kind, NotificationOutcomeFailed)
	}
}

type mailJob struct {
	Kind    models.NotificationKind
	Message mailer.Message
}

// Deliver is the queue handler for mail jobs.
func (s *NotificationService) Deliver(ctx context.Context, job jobs.Job) error {
	payload, ok := job.Payload.(mailJob)
	if !ok {
		return fmt.Errorf("unexpected mail payload %T", job.Payload)
	}
	return s.send(ctx, payload)
}

// GiveUp records a delivery the queue abandoned.
func (s *NotificationService) GiveUp(job jobs.Job, err error) {
	kind := models.NotificationKind("")
	if payload, ok := job.Payload.(mailJob); ok {
		kind = payload.Kind
	}
	s.metrics.RecordNotification(kind, NotificationOutcomeFailed)
}

func (s *NotificationService) send(ctx context.Context, job mailJob) error {
	if s.mailer == nil {
		return fmt.Errorf("mailer not configured")
	}
	if err := s.mailer.Send(ctx, job.Message); err != nil {
		return err
	}
	s.metrics.RecordNotification(job.Kind, NotificationOutcomeSent)
	return nil
}

type noticeView struct {
	DocumentName string
	Version      int
	Actor        string
	Reason       string
	Pending      []string
	Link         string
}

// Render builds the email for notice.
func (s *NotificationService) Render(notice Notice) (mailer.Message, error) {
	tmpl, ok := s.templates[notice.Kind]
	if !ok {
		return mailer.Message{}, fmt.Errorf("no template for notification kind %q", notice.Kind)
	}
	view := noticeView{
		DocumentName: notice.Document.Name,
		Version:      notice.Document.Version,
		Actor:        notice.Actor,
		Reason:       notice.Reason,
		Pending:      notice.Pending,
		Link:         s.link(notice),
	}
	var body bytes.Buffer
	if err := tmpl.Execute(&body, view); err != nil {
		return mailer.Message{}, fmt.Errorf("render %s: %w", notice.Kind, err)
	}
	return mailer.Message{
		To:      notice.Recipient,
		Subject: noticeSubjects[notice.Kind] + ": " + notice.Document.Name,
		HTML:    body.String(),
	}, nil
}

func (s *NotificationService) link(notice Notice) string {
	if notice.SlotToken != "" {
		return s.baseURL + "/approvals/" + notice.SlotToken
	}
	return s.baseURL + "/documents/access/" + notice.Document.AccessToken
}

var noticeSubjects = map[models.NotificationKind]string{
	models.NotificationApprovalRequest: "Solicitud de aprobación",
	models.NotificationReminder:        "Recordatorio de aprobación pendiente",
	models.NotificationCompleted:       "Documento aprobado",
	models.NotificationRejected:        "Documento rechazado",
	models.NotificationExpired:         "Documento expirado",
	models.NotificationNewVersion:      "Nueva versión para aprobación",
}

var noticeBodies = map[models.NotificationKind]string{
	models.NotificationApprovalRequest: `<p>Se solicita su aprobación para <strong>{{.DocumentName}}</strong> (versión {{.Version}}).</p>
<p><a href="{{.Link}}">Revisar y firmar</a></p>`,
	models.NotificationReminder: `<p>El documento <strong>{{.DocumentName}}</strong> sigue pendiente de su aprobación.</p>
<p><a href="{{.Link}}">Revisar y firmar</a></p>`,
	models.NotificationCompleted: `<p>Todas las aprobaciones de <strong>{{.DocumentName}}</strong> (versión {{.Version}}) fueron registradas.</p>
<p><a href="{{.Link}}">Ver documento</a></p>`,
	models.NotificationRejected: `<p><strong>{{.DocumentName}}</strong> (versión {{.Version}}) fue rechazado por {{.Actor}}.</p>
<p>Motivo: {{.Reason}}</p>
<p><a href="{{.Link}}">Ver documento</a></p>`,
	models.NotificationExpired: `<p>El plazo de aprobación de <strong>{{.DocumentName}}</strong> venció.</p>
{{if .Pending}}<p>Sin respuesta:</p><ul>{{range .Pending}}<li>{{.}}</li>{{end}}</ul>{{end}}
<p><a href="{{.Link}}">Ver documento</a></p>`,
	models.NotificationNewVersion: `<p>Hay una nueva versión ({{.Version}}) de <strong>{{.DocumentName}}</strong> que requiere su aprobación.</p>
<p><a href="{{.Link}}">Revisar y firmar</a></p>`,
}

func parseNoticeTemplates() map[models.NotificationKind]*template.Template {
	out := make(map[models.NotificationKind]*template.Template, len(noticeBodies))
	for kind, body := range noticeBodies {
		out[kind] = template.Must(template.New(string(kind)).Parse(body))
	}
	return out
}
