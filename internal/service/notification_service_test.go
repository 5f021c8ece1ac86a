package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/models"
	"github.com/DiegoCE21/ApprovalFlow-sub000/pkg/jobs"
	"github.com/DiegoCE21/ApprovalFlow-sub000/pkg/mailer"
)

// memoryReceipts mimics the windowed upsert of the receipts table.
type memoryReceipts struct {
	mu    sync.Mutex
	sent  map[models.ReceiptKey]time.Time
	calls int
}

func newMemoryReceipts() *memoryReceipts {
	return &memoryReceipts{sent: map[models.ReceiptKey]time.Time{}}
}

func (m *memoryReceipts) Reserve(_ context.Context, key models.ReceiptKey, window time.Duration, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if at, ok := m.sent[key]; ok && now.Sub(at) < window {
		return false, nil
	}
	m.sent[key] = now
	return true, nil
}

type mailerStub struct {
	mu       sync.Mutex
	messages []mailer.Message
	err      error
}

func (m *mailerStub) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msg)
	return nil
}

func (m *mailerStub) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

type gateStub struct {
	err error
}

func (g gateStub) TryReserve(context.Context, models.ReceiptKey) (Reservation, error) {
	return Reservation{}, g.err
}

func sampleNotice(kind models.NotificationKind) Notice {
	return Notice{
		Kind:      kind,
		Recipient: "Ana@Example.com",
		Document:  models.Document{ID: "doc-1", Name: "Orden de compra 42", Version: 2, AccessToken: "access-1"},
		SlotToken: "slot-1",
	}
}

func TestPostgresGateWindows(t *testing.T) {
	receipts := newMemoryReceipts()
	gate := NewPostgresGate(receipts, GateWindows{})
	clock := fixedNow
	gate.now = func() time.Time { return clock }
	ctx := context.Background()
	key := models.ReceiptKey{Recipient: "ana@example.com", DocumentID: "doc-1", Kind: models.NotificationReminder, SlotToken: "slot-1"}

	res, err := gate.TryReserve(ctx, key)
	require.NoError(t, err)
	assert.False(t, res.Already)

	clock = fixedNow.Add(30 * time.Second)
	res, err = gate.TryReserve(ctx, models.ReceiptKey{Recipient: " ANA@example.com", DocumentID: "doc-1", Kind: models.NotificationReminder, SlotToken: "slot-1"})
	require.NoError(t, err)
	assert.True(t, res.Already)

	clock = fixedNow.Add(61 * time.Second)
	res, err = gate.TryReserve(ctx, key)
	require.NoError(t, err)
	assert.False(t, res.Already)

	request := key
	request.Kind = models.NotificationApprovalRequest
	res, err = gate.TryReserve(ctx, request)
	require.NoError(t, err)
	assert.False(t, res.Already)
	clock = fixedNow.Add(4 * time.Minute)
	res, err = gate.TryReserve(ctx, request)
	require.NoError(t, err)
	assert.True(t, res.Already)

	otherSlot := request
	otherSlot.SlotToken = "slot-2"
	res, err = gate.TryReserve(ctx, otherSlot)
	require.NoError(t, err)
	assert.False(t, res.Already)

	_, err = gate.TryReserve(ctx, models.ReceiptKey{DocumentID: "doc-1"})
	assert.Error(t, err)
}

func TestRedisGateExpiresReceipts(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	gate := NewRedisGate(client, GateWindows{Reminder: time.Minute, Default: 5 * time.Minute})
	ctx := context.Background()
	key := models.ReceiptKey{Recipient: "Ana@example.com", DocumentID: "doc-1", Kind: models.NotificationReminder}

	res, err := gate.TryReserve(ctx, key)
	require.NoError(t, err)
	assert.False(t, res.Already)
	assert.True(t, mr.Exists("approvalflow:receipt:ana@example.com:doc-1:reminder:"))

	res, err = gate.TryReserve(ctx, key)
	require.NoError(t, err)
	assert.True(t, res.Already)

	mr.FastForward(61 * time.Second)
	res, err = gate.TryReserve(ctx, key)
	require.NoError(t, err)
	assert.False(t, res.Already)
}

func TestNotifySuppressesDuplicates(t *testing.T) {
	mail := &mailerStub{}
	metrics := NewMetricsService()
	svc := NewNotificationService(NewPostgresGate(newMemoryReceipts(), GateWindows{}), mail, metrics, nil, NotificationConfig{
		PublicBaseURL: "https://firmas.example.com/",
	})

	svc.Notify(context.Background(), sampleNotice(models.NotificationApprovalRequest))
	svc.Notify(context.Background(), sampleNotice(models.NotificationApprovalRequest))

	require.Equal(t, 1, mail.count())
	msg := mail.messages[0]
	assert.Equal(t, "ana@example.com", msg.To)
	assert.Equal(t, "Solicitud de aprobación: Orden de compra 42", msg.Subject)
	assert.Contains(t, msg.HTML, "https://firmas.example.com/approvals/slot-1")

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.NotificationsSent)
	assert.Equal(t, uint64(1), snapshot.NotificationsSuppressed)
}

func TestNotifyOversightBypassesGate(t *testing.T) {
	mail := &mailerStub{}
	receipts := newMemoryReceipts()
	svc := NewNotificationService(NewPostgresGate(receipts, GateWindows{}), mail, nil, nil, NotificationConfig{
		OversightEmail: "Auditoria@example.com",
	})
	notice := sampleNotice(models.NotificationRejected)
	notice.Actor = "Luis Paz"
	notice.Reason = "Monto <incorrecto>"

	svc.NotifyOversight(context.Background(), notice)
	svc.NotifyOversight(context.Background(), notice)

	require.Equal(t, 2, mail.count())
	assert.Zero(t, receipts.calls)
	assert.Equal(t, "auditoria@example.com", mail.messages[0].To)
	assert.Contains(t, mail.messages[0].HTML, "Luis Paz")
	assert.Contains(t, mail.messages[0].HTML, "Monto &lt;incorrecto&gt;")

	quiet := NewNotificationService(nil, mail, nil, nil, NotificationConfig{})
	quiet.NotifyOversight(context.Background(), notice)
	assert.Equal(t, 2, mail.count())
}

func TestNotifyGateFailureDropsNotice(t *testing.T) {
	mail := &mailerStub{}
	metrics := NewMetricsService()
	svc := NewNotificationService(gateStub{err: errors.New("db down")}, mail, metrics, nil, NotificationConfig{})

	svc.Notify(context.Background(), sampleNotice(models.NotificationReminder))
	assert.Zero(t, mail.count())
	assert.Equal(t, uint64(1), metrics.Snapshot().NotificationsFailed)
}

func TestRenderNotices(t *testing.T) {
	svc := NewNotificationService(nil, nil, nil, nil, NotificationConfig{PublicBaseURL: "https://firmas.example.com"})

	expired := sampleNotice(models.NotificationExpired)
	expired.SlotToken = ""
	expired.Pending = []string{"Luis Paz", "compras@example.com"}
	msg, err := svc.Render(expired)
	require.NoError(t, err)
	assert.Equal(t, "Documento expirado: Orden de compra 42", msg.Subject)
	assert.Contains(t, msg.HTML, "<li>Luis Paz</li>")
	assert.Contains(t, msg.HTML, "https://firmas.example.com/documents/access/access-1")

	version, err := svc.Render(sampleNotice(models.NotificationNewVersion))
	require.NoError(t, err)
	assert.True(t, strings.Contains(version.HTML, "(2)"))

	_, err = svc.Render(Notice{Kind: "desconocido"})
	assert.Error(t, err)
}

func TestNotifyThroughQueue(t *testing.T) {
	mail := &mailerStub{err: errors.New("smtp unavailable")}
	metrics := NewMetricsService()
	svc := NewNotificationService(nil, mail, metrics, nil, NotificationConfig{})
	queue := jobs.NewQueue("mail", svc.Deliver, jobs.QueueConfig{Workers: 1, OnGiveUp: svc.GiveUp})
	queue.Start(context.Background())
	t.Cleanup(queue.Stop)
	svc.UseQueue(queue)

	svc.NotifyOnce(context.Background(), sampleNotice(models.NotificationExpired))

	require.Eventually(t, func() bool {
		return metrics.Snapshot().NotificationsFailed == 1
	}, time.Second, 10*time.Millisecond)
	assert.Zero(t, mail.count())
}

func TestDeliverRejectsUnknownPayload(t *testing.T) {
	svc := NewNotificationService(nil, &mailerStub{}, nil, nil, NotificationConfig{})
	err := svc.Deliver(context.Background(), jobs.Job{Payload: "raw"})
	assert.Error(t, err)
}
