package service

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/require"

	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/models"
	"github.com/DiegoCE21/ApprovalFlow-sub000/internal/repository"
	"github.com/DiegoCE21/ApprovalFlow-sub000/pkg/pdfstamp"
	"github.com/DiegoCE21/ApprovalFlow-sub000/pkg/storage"
)

type txProviderMock struct {
	db *sqlx.DB
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlx.NewDb(db, "sqlmock")}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}

func samplePDF(t *testing.T) []byte {
	t.Helper()
	pdf := gofpdf.New("P", "pt", "Letter", "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.AddPage()
	pdf.Text(72, 72, "Orden de compra")
	buf := &bytes.Buffer{}
	require.NoError(t, pdf.Output(buf))
	return buf.Bytes()
}

// memDB backs every store stub so the workflow can be exercised end to end.
type memDB struct {
	mu      sync.Mutex
	docs    map[string]models.Document
	slots   map[string]models.ApproverSlot
	sigs    []models.Signature
	groups  map[string]bool
	members []models.GroupMember
	users   map[int64]models.User
}

func newMemDB() *memDB {
	return &memDB{
		docs:   map[string]models.Document{},
		slots:  map[string]models.ApproverSlot{},
		groups: map[string]bool{},
		users:  map[int64]models.User{},
	}
}

func (m *memDB) addUser(id int64, email, name string) {
	m.users[id] = models.User{ID: id, Email: email, FullName: name, Active: true}
}

func (m *memDB) addMember(alias, name, email, personnelID string) models.GroupMember {
	alias = models.NormalizeEmail(alias)
	m.groups[alias] = true
	member := models.GroupMember{ID: uuid.NewString(), Alias: alias, DisplayName: name, Active: true}
	if email != "" {
		member.Email = &email
	}
	if personnelID != "" {
		member.PersonnelID = &personnelID
	}
	m.members = append(m.members, member)
	return member
}

func (m *memDB) doc(id string) models.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docs[id]
}

func (m *memDB) slotsOf(documentID string) []models.ApproverSlot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slotsOfLocked(documentID)
}

func (m *memDB) slotsOfLocked(documentID string) []models.ApproverSlot {
	out := []models.ApproverSlot{}
	for _, slot := range m.slots {
		if slot.DocumentID == documentID {
			out = append(out, slot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

type docStub struct{ db *memDB }

func (s docStub) Create(_ context.Context, _ sqlx.ExtContext, doc *models.Document) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if doc.RootID == "" {
		doc.RootID = doc.ID
	}
	doc.UpdatedAt = doc.CreatedAt
	s.db.docs[doc.ID] = *doc
	return nil
}

func (s docStub) FindByID(_ context.Context, id string) (*models.Document, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	doc, ok := s.db.docs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &doc, nil
}

func (s docStub) LockByID(ctx context.Context, _ sqlx.ExtContext, id string) (*models.Document, error) {
	return s.FindByID(ctx, id)
}

func (s docStub) FindByAccessToken(_ context.Context, token string) (*models.Document, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, doc := range s.db.docs {
		if doc.AccessToken == token {
			d := doc
			return &d, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s docStub) FindByIDs(_ context.Context, ids []string) ([]models.Document, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []models.Document{}
	for _, id := range ids {
		if doc, ok := s.db.docs[id]; ok {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (s docStub) ListByCreator(_ context.Context, creatorID int64) ([]models.Document, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []models.Document{}
	for _, doc := range s.db.docs {
		if doc.CreatorID == creatorID {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s docStub) ListByRoot(_ context.Context, rootID string) ([]models.Document, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []models.Document{}
	for _, doc := range s.db.docs {
		if doc.RootID == rootID {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (s docStub) HasSuccessor(_ context.Context, _ sqlx.ExtContext, id string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, doc := range s.db.docs {
		if doc.ParentID != nil && *doc.ParentID == id {
			return true, nil
		}
	}
	return false, nil
}

func (s docStub) TransitionState(_ context.Context, _ sqlx.ExtContext, id string, from, to models.DocumentState, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	doc, ok := s.db.docs[id]
	if !ok || doc.State != from {
		return sql.ErrNoRows
	}
	doc.State = to
	doc.UpdatedAt = at
	if to == models.DocumentStateApproved {
		doc.FinalizedAt = &at
	}
	s.db.docs[id] = doc
	return nil
}

func (s docStub) Reopen(_ context.Context, _ sqlx.ExtContext, id string, deadline *time.Time, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	doc, ok := s.db.docs[id]
	if !ok || doc.State != models.DocumentStateExpired {
		return sql.ErrNoRows
	}
	doc.State = models.DocumentStatePending
	doc.DeadlineAt = deadline
	doc.LastReminderAt = nil
	doc.UpdatedAt = at
	s.db.docs[id] = doc
	return nil
}

func (s docStub) UpdateMetadata(_ context.Context, id string, update models.DocumentUpdate, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	doc, ok := s.db.docs[id]
	if !ok || doc.State != models.DocumentStatePending {
		return sql.ErrNoRows
	}
	if update.Name != nil {
		doc.Name = *update.Name
	}
	if update.Description != nil {
		doc.Description = *update.Description
	}
	if update.ReminderIntervalHours != nil {
		doc.ReminderIntervalHours = update.ReminderIntervalHours
	}
	doc.UpdatedAt = at
	s.db.docs[id] = doc
	return nil
}

func (s docStub) TouchWorkingFile(_ context.Context, _ sqlx.ExtContext, id string, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	doc := s.db.docs[id]
	doc.UpdatedAt = at
	s.db.docs[id] = doc
	return nil
}

func (s docStub) MarkReminded(_ context.Context, id string, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	doc, ok := s.db.docs[id]
	if !ok || doc.State != models.DocumentStatePending {
		return sql.ErrNoRows
	}
	doc.LastReminderAt = &at
	s.db.docs[id] = doc
	return nil
}

func (s docStub) ListDueReminders(_ context.Context, now time.Time, _ int) ([]models.Document, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []models.Document{}
	for _, doc := range s.db.docs {
		if doc.State != models.DocumentStatePending || doc.ReminderIntervalHours == nil {
			continue
		}
		baseline := doc.CreatedAt
		if doc.LastReminderAt != nil {
			baseline = *doc.LastReminderAt
		}
		if !baseline.Add(time.Duration(*doc.ReminderIntervalHours) * time.Hour).After(now) {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (s docStub) ListOverdue(_ context.Context, now time.Time, _ int) ([]models.Document, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []models.Document{}
	for _, doc := range s.db.docs {
		if doc.State == models.DocumentStatePending && doc.DeadlineAt != nil && doc.DeadlineAt.Before(now) {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (s docStub) Delete(_ context.Context, _ sqlx.ExtContext, id string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.docs[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.db.docs, id)
	for slotID, slot := range s.db.slots {
		if slot.DocumentID == id {
			delete(s.db.slots, slotID)
		}
	}
	return nil
}

type slotStub struct{ db *memDB }

func (s slotStub) CreateBatch(_ context.Context, _ sqlx.ExtContext, slots []models.ApproverSlot) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, slot := range slots {
		s.db.slots[slot.ID] = slot
	}
	return nil
}

func (s slotStub) ListByDocument(_ context.Context, _ sqlx.ExtContext, documentID string) ([]models.ApproverSlot, error) {
	return s.db.slotsOf(documentID), nil
}

func (s slotStub) ListByDocuments(_ context.Context, ids []string) (map[string][]models.ApproverSlot, error) {
	out := map[string][]models.ApproverSlot{}
	for _, id := range ids {
		out[id] = s.db.slotsOf(id)
	}
	return out, nil
}

func (s slotStub) FindByToken(_ context.Context, token string) (*models.ApproverSlot, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, slot := range s.db.slots {
		if slot.Token == token {
			found := slot
			return &found, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s slotStub) LockByToken(ctx context.Context, _ sqlx.ExtContext, token string) (*models.ApproverSlot, error) {
	return s.FindByToken(ctx, token)
}

func (s slotStub) DocumentIDByToken(ctx context.Context, _ sqlx.ExtContext, token string) (string, error) {
	slot, err := s.FindByToken(ctx, token)
	if err != nil {
		return "", err
	}
	return slot.DocumentID, nil
}

func (s slotStub) update(id string, fn func(*models.ApproverSlot) bool) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	slot, ok := s.db.slots[id]
	if !ok || !fn(&slot) {
		return sql.ErrNoRows
	}
	s.db.slots[id] = slot
	return nil
}

func (s slotStub) MarkApproved(_ context.Context, _ sqlx.ExtContext, id string, memberID *string, signerName string, at time.Time) error {
	return s.update(id, func(slot *models.ApproverSlot) bool {
		if slot.State != models.SlotStatePending {
			return false
		}
		slot.State = models.SlotStateApproved
		slot.SignerMemberID = memberID
		slot.SignerName = &signerName
		slot.SignedAt = &at
		return true
	})
}

func (s slotStub) MarkRejected(_ context.Context, _ sqlx.ExtContext, id, reason string, at time.Time) error {
	return s.update(id, func(slot *models.ApproverSlot) bool {
		if slot.State != models.SlotStatePending {
			return false
		}
		slot.State = models.SlotStateRejected
		slot.RejectionReason = &reason
		slot.UpdatedAt = at
		return true
	})
}

func (s slotStub) bulk(documentID string, fn func(*models.ApproverSlot) bool) int64 {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var n int64
	for id, slot := range s.db.slots {
		if slot.DocumentID != documentID {
			continue
		}
		if fn(&slot) {
			s.db.slots[id] = slot
			n++
		}
	}
	return n
}

func (s slotStub) RejectRemaining(_ context.Context, _ sqlx.ExtContext, documentID, exceptID, reason string, at time.Time) (int64, error) {
	return s.bulk(documentID, func(slot *models.ApproverSlot) bool {
		if slot.ID == exceptID || slot.State != models.SlotStatePending {
			return false
		}
		r := reason
		slot.State = models.SlotStateRejected
		slot.RejectionReason = &r
		slot.UpdatedAt = at
		return true
	}), nil
}

func (s slotStub) ExpirePending(_ context.Context, _ sqlx.ExtContext, documentID string, at time.Time) (int64, error) {
	return s.bulk(documentID, func(slot *models.ApproverSlot) bool {
		if slot.State != models.SlotStatePending {
			return false
		}
		slot.State = models.SlotStateExpired
		slot.UpdatedAt = at
		return true
	}), nil
}

func (s slotStub) ReopenExpired(_ context.Context, _ sqlx.ExtContext, documentID string, at time.Time) (int64, error) {
	return s.bulk(documentID, func(slot *models.ApproverSlot) bool {
		if slot.State != models.SlotStatePending && slot.State != models.SlotStateExpired {
			return false
		}
		slot.State = models.SlotStatePending
		slot.UpdatedAt = at
		return true
	}), nil
}

func (s slotStub) CountPending(_ context.Context, _ sqlx.ExtContext, documentID string) (int, error) {
	count := 0
	for _, slot := range s.db.slotsOf(documentID) {
		if slot.State == models.SlotStatePending {
			count++
		}
	}
	return count, nil
}

func (s slotStub) UpdateGeometry(_ context.Context, _ sqlx.ExtContext, documentID, slotID string, g models.Geometry, at time.Time) error {
	return s.update(slotID, func(slot *models.ApproverSlot) bool {
		if slot.DocumentID != documentID {
			return false
		}
		slot.Geometry = g
		slot.UpdatedAt = at
		return true
	})
}

func (s slotStub) ListActionable(_ context.Context, userID int64, email string, aliases []string) ([]models.ApproverSlot, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	allowed := map[string]bool{models.NormalizeEmail(email): true}
	for _, alias := range aliases {
		allowed[alias] = true
	}
	out := []models.ApproverSlot{}
	for _, slot := range s.db.slots {
		if slot.State != models.SlotStatePending || s.db.docs[slot.DocumentID].State != models.DocumentStatePending {
			continue
		}
		binding := slot.Binding()
		if (binding.Kind == models.BindingIndividual && binding.UserID == userID) ||
			(binding.Kind == models.BindingGroup && allowed[binding.Alias]) {
			out = append(out, slot)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

type signatureStub struct{ db *memDB }

func (s signatureStub) Create(_ context.Context, _ sqlx.ExtContext, sig *models.Signature) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, existing := range s.db.sigs {
		if existing.SlotID == sig.SlotID {
			return repository.ErrDuplicate
		}
	}
	s.db.sigs = append(s.db.sigs, *sig)
	return nil
}

func (s signatureStub) ListByDocument(_ context.Context, _ sqlx.ExtContext, documentID string) ([]models.Signature, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []models.Signature{}
	for _, sig := range s.db.sigs {
		if sig.DocumentID == documentID {
			out = append(out, sig)
		}
	}
	return out, nil
}

func (s signatureStub) ListByDocuments(ctx context.Context, ids []string) (map[string][]models.Signature, error) {
	out := map[string][]models.Signature{}
	for _, id := range ids {
		sigs, _ := s.ListByDocument(ctx, nil, id)
		if len(sigs) > 0 {
			out[id] = sigs
		}
	}
	return out, nil
}

type groupStub struct{ db *memDB }

func (s groupStub) ListMembers(_ context.Context, alias string, activeOnly bool) ([]models.GroupMember, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []models.GroupMember{}
	for _, m := range s.db.members {
		if m.Alias == models.NormalizeEmail(alias) && (!activeOnly || m.Active) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s groupStub) ExistingAliases(_ context.Context, aliases []string) (map[string]bool, error) {
	out := map[string]bool{}
	for _, alias := range aliases {
		if s.db.groups[alias] {
			out[alias] = true
		}
	}
	return out, nil
}

func (s groupStub) AliasesForIdentity(_ context.Context, identity models.GroupIdentity) ([]string, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	seen := map[string]bool{}
	out := []string{}
	for _, m := range s.db.members {
		if !m.Active {
			continue
		}
		match := (m.Email != nil && identity.Email != "" && models.NormalizeEmail(*m.Email) == models.NormalizeEmail(identity.Email)) ||
			(m.PersonnelID != nil && identity.PersonnelID != "" && *m.PersonnelID == identity.PersonnelID) ||
			(m.UserID != nil && identity.UserID > 0 && *m.UserID == identity.UserID)
		if match && !seen[m.Alias] {
			seen[m.Alias] = true
			out = append(out, m.Alias)
		}
	}
	return out, nil
}

type userStub struct{ db *memDB }

func (s userStub) FindByIDs(_ context.Context, ids []int64) (map[int64]models.User, error) {
	out := map[int64]models.User{}
	for _, id := range ids {
		if user, ok := s.db.users[id]; ok {
			out[id] = user
		}
	}
	return out, nil
}

type blobStub struct {
	mu        sync.Mutex
	files     map[string][]byte
	failWrite map[string]error
}

func newBlobStub() *blobStub {
	return &blobStub{files: map[string][]byte{}, failWrite: map[string]error{}}
}

func (b *blobStub) Read(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.files[key]
	if !ok {
		return nil, storage.ErrBlobNotFound
	}
	return append([]byte(nil), data...), nil
}

func (b *blobStub) Write(_ context.Context, key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.failWrite[key]; err != nil {
		return err
	}
	b.files[key] = append([]byte(nil), data...)
	return nil
}

func (b *blobStub) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.files[key]; !ok {
		return storage.ErrBlobNotFound
	}
	delete(b.files, key)
	return nil
}

func (b *blobStub) get(key string) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.files[key]
}

// rendererStub appends "|TEXT" per stamp so tests can see what was drawn on which base.
type rendererStub struct {
	calls [][]pdfstamp.Stamp
	err   error
}

func (r *rendererStub) Apply(src []byte, stamps []pdfstamp.Stamp) ([]byte, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.calls = append(r.calls, stamps)
	out := append([]byte(nil), src...)
	for _, stamp := range stamps {
		out = append(out, []byte("|"+stamp.Text)...)
	}
	return out, nil
}

type notifierStub struct {
	mu        sync.Mutex
	notices   []Notice
	once      []Notice
	oversight []Notice
}

func (n *notifierStub) Notify(_ context.Context, notice Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

func (n *notifierStub) NotifyOnce(_ context.Context, notice Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.once = append(n.once, notice)
}

func (n *notifierStub) NotifyOversight(_ context.Context, notice Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.oversight = append(n.oversight, notice)
}

func (n *notifierStub) byKind(kind models.NotificationKind) []Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := []Notice{}
	for _, notice := range n.notices {
		if notice.Kind == kind {
			out = append(out, notice)
		}
	}
	return out
}

func (n *notifierStub) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = nil
	n.once = nil
	n.oversight = nil
}

type auditStub struct {
	mu      sync.Mutex
	entries []models.AuditLog
}

func (a *auditStub) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, *log)
	return nil
}

type signerStub struct{}

func (signerStub) Generate(subject, key, filename string) (string, time.Time, error) {
	return fmt.Sprintf("grant-%s", subject), time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), nil
}

var fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type workflowFixture struct {
	svc      *WorkflowService
	db       *memDB
	blobs    *blobStub
	renderer *rendererStub
	notifier *notifierStub
	audit    *auditStub
	mock     sqlmock.Sqlmock
}

func newWorkflowFixture(t *testing.T) *workflowFixture {
	t.Helper()
	tx, mock := newTxProviderMock(t)
	db := newMemDB()
	f := &workflowFixture{
		db:       db,
		blobs:    newBlobStub(),
		renderer: &rendererStub{},
		notifier: &notifierStub{},
		audit:    &auditStub{},
		mock:     mock,
	}
	f.svc = NewWorkflowService(WorkflowDeps{
		Tx:         tx,
		Documents:  docStub{db: db},
		Slots:      slotStub{db: db},
		Signatures: signatureStub{db: db},
		Groups:     groupStub{db: db},
		Users:      userStub{db: db},
		Blobs:      f.blobs,
		Renderer:   f.renderer,
		Signer:     signerStub{},
		Notifier:   f.notifier,
		Audit:      f.audit,
	}, WorkflowConfig{DownloadBaseURL: "https://firmas.example.com/api/v1/files"})
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

// seedDocument stores a pending document with the given slots bound to it.
func (f *workflowFixture) seedDocument(t *testing.T, creator *models.Caller, bindings ...models.Binding) models.Document {
	t.Helper()
	id := uuid.NewString()
	accessToken, err := f.svc.newToken()
	require.NoError(t, err)
	doc := models.Document{
		ID:           id,
		Name:         "Orden de compra 42",
		Version:      1,
		RootID:       id,
		CreatorID:    creator.UserID,
		CreatorEmail: creator.Email,
		CreatorName:  creator.FullName,
		AccessToken:  accessToken,
		State:        models.DocumentStatePending,
		FilePath:     id + ".pdf",
		FileName:     "orden.pdf",
		CreatedAt:    fixedNow.Add(-time.Hour),
	}
	require.NoError(t, docStub{db: f.db}.Create(context.Background(), nil, &doc))
	slots := make([]models.ApproverSlot, 0, len(bindings))
	for i, binding := range bindings {
		slot := models.ApproverSlot{
			DocumentID: id,
			Position:   i + 1,
			State:      models.SlotStatePending,
			Geometry:   models.Geometry{Page: 0, X: 72 + float64(i)*200, Y: 72, Width: 180, Height: 40},
		}
		slot.SetBinding(binding)
		slots = append(slots, slot)
	}
	slots, err = f.svc.assignTokens(slots)
	require.NoError(t, err)
	require.NoError(t, slotStub{db: f.db}.CreateBatch(context.Background(), nil, slots))
	f.blobs.files[doc.FilePath] = []byte("%PDF-working")
	f.blobs.files[storage.OriginalKey(doc.FilePath)] = []byte("%PDF-working")
	return doc
}
