package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/models"
)

type purgerStub struct {
	cutoffs []time.Time
}

func (p *purgerStub) PurgeOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	p.cutoffs = append(p.cutoffs, cutoff)
	return 3, nil
}

func newSweeperFixture(t *testing.T) (*workflowFixture, *SweeperService, *purgerStub) {
	t.Helper()
	f := newWorkflowFixture(t)
	seedUsers(f.db)
	tx, mock := newTxProviderMock(t)
	f.mock = mock
	purger := &purgerStub{}
	sweeper := NewSweeperService(SweeperDeps{
		Tx:        tx,
		Documents: docStub{db: f.db},
		Slots:     slotStub{db: f.db},
		Users:     userStub{db: f.db},
		Receipts:  purger,
		Notifier:  f.notifier,
		Audit:     f.audit,
	}, SweeperConfig{})
	sweeper.now = func() time.Time { return fixedNow }
	return f, sweeper, purger
}

func TestRunExpirationsExpiresOverdueDocumentsOnce(t *testing.T) {
	f, sweeper, _ := newSweeperFixture(t)
	doc := f.seedDocument(t, creator, models.IndividualBinding(11), models.IndividualBinding(12))
	slots := f.db.slotsOf(doc.ID)
	require.NoError(t, slotStub{db: f.db}.MarkApproved(context.Background(), nil, slots[0].ID, nil, "Ana Ruiz", fixedNow))
	stored := f.db.doc(doc.ID)
	deadline := fixedNow.Add(-time.Minute)
	stored.DeadlineAt = &deadline
	f.db.docs[doc.ID] = stored

	fresh := f.seedDocument(t, creator, models.IndividualBinding(11))
	future := fixedNow.Add(time.Hour)
	stillOpen := f.db.doc(fresh.ID)
	stillOpen.DeadlineAt = &future
	f.db.docs[fresh.ID] = stillOpen

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	expired, err := sweeper.RunExpirations(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	assert.Equal(t, models.DocumentStateExpired, f.db.doc(doc.ID).State)
	assert.Equal(t, models.DocumentStatePending, f.db.doc(fresh.ID).State)
	after := f.db.slotsOf(doc.ID)
	assert.Equal(t, models.SlotStateApproved, after[0].State)
	assert.Equal(t, models.SlotStateExpired, after[1].State)

	require.Len(t, f.notifier.once, 1)
	notice := f.notifier.once[0]
	assert.Equal(t, models.NotificationExpired, notice.Kind)
	assert.Equal(t, creator.Email, notice.Recipient)
	assert.Equal(t, []string{"Luis Paz"}, notice.Pending)
	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, models.AuditActionDocumentExpire, f.audit.entries[0].Action)
	assert.Equal(t, "system", f.audit.entries[0].IPAddress)

	expired, err = sweeper.RunExpirations(context.Background())
	require.NoError(t, err)
	assert.Zero(t, expired)
	assert.Len(t, f.notifier.once, 1)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestRunRemindersRespectsInterval(t *testing.T) {
	f, sweeper, _ := newSweeperFixture(t)
	doc := f.seedDocument(t, creator, models.IndividualBinding(11), models.GroupBinding("compras@example.com"))
	stored := f.db.doc(doc.ID)
	stored.ReminderIntervalHours = intPtr(1)
	f.db.docs[doc.ID] = stored
	f.seedDocument(t, creator, models.IndividualBinding(12))

	reminded, err := sweeper.RunReminders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, reminded)
	reminders := f.notifier.byKind(models.NotificationReminder)
	require.Len(t, reminders, 2)
	assert.Equal(t, "ana@example.com", reminders[0].Recipient)
	assert.Equal(t, "compras@example.com", reminders[1].Recipient)
	assert.NotEmpty(t, reminders[0].SlotToken)
	require.NotNil(t, f.db.doc(doc.ID).LastReminderAt)

	reminded, err = sweeper.RunReminders(context.Background())
	require.NoError(t, err)
	assert.Zero(t, reminded)

	sweeper.now = func() time.Time { return fixedNow.Add(time.Hour) }
	reminded, err = sweeper.RunReminders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, reminded)
	assert.Len(t, f.notifier.byKind(models.NotificationReminder), 4)
}

func TestRunRemindersSkipsDecidedSlots(t *testing.T) {
	f, sweeper, _ := newSweeperFixture(t)
	doc := f.seedDocument(t, creator, models.IndividualBinding(11), models.IndividualBinding(12))
	stored := f.db.doc(doc.ID)
	stored.ReminderIntervalHours = intPtr(1)
	f.db.docs[doc.ID] = stored
	slots := f.db.slotsOf(doc.ID)
	require.NoError(t, slotStub{db: f.db}.MarkApproved(context.Background(), nil, slots[0].ID, nil, "Ana Ruiz", fixedNow))

	_, err := sweeper.RunReminders(context.Background())
	require.NoError(t, err)
	reminders := f.notifier.byKind(models.NotificationReminder)
	require.Len(t, reminders, 1)
	assert.Equal(t, "luis@example.com", reminders[0].Recipient)
}

func TestRunOncePurgesReceipts(t *testing.T) {
	_, sweeper, purger := newSweeperFixture(t)
	sweeper.RunOnce(context.Background())
	require.Len(t, purger.cutoffs, 1)
	assert.Equal(t, fixedNow.Add(-24*time.Hour), purger.cutoffs[0])
}
