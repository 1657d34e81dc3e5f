package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Guizzs26/go-sync-sheets/internal/mapper"
	"github.com/Guizzs26/go-sync-sheets/internal/models"
	"github.com/Guizzs26/go-sync-sheets/pkg/encoding"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustID(t *testing.T, hex string) primitive.ObjectID {
	t.Helper()
	id, err := primitive.ObjectIDFromHex(hex)
	require.NoError(t, err)
	return id
}

func players(names ...string) []models.Participant {
	out := make([]models.Participant, len(names))
	for i, n := range names {
		out[i] = models.Participant{Name: n}
	}
	return out
}

// memStore is an in-memory Store. Writes are counted so tests can assert that
// rejected mutations never touched it
type memStore struct {
	mu       sync.Mutex
	users    map[primitive.ObjectID]*models.User
	forms    map[primitive.ObjectID]*models.Form
	payments map[primitive.ObjectID]*models.Payment
	writes   int
	failGet  error

	// failUpdate makes UpdateByID fail for one collection
	failUpdate map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[primitive.ObjectID]*models.User{},
		forms:    map[primitive.ObjectID]*models.Form{},
		payments: map[primitive.ObjectID]*models.Payment{},
	}
}

func (m *memStore) addUser(u models.User) {
	m.users[u.ID] = &u
}

func (m *memStore) addForm(f models.Form) {
	m.forms[f.ID] = &f
}

func (m *memStore) addPayment(p models.Payment) {
	m.payments[p.ID] = &p
}

func (m *memStore) user(id primitive.ObjectID) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.users[id]
}

func (m *memStore) form(id primitive.ObjectID) models.Form {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.forms[id]
}

func (m *memStore) payment(id primitive.ObjectID) models.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.payments[id]
}

func (m *memStore) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *memStore) FindUser(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	u, ok := m.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) FindForm(_ context.Context, id primitive.ObjectID) (*models.Form, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	f, ok := m.forms[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (m *memStore) FindPayment(_ context.Context, id primitive.ObjectID) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	p, ok := m.payments[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) ListUsers(context.Context) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() < out[j].ID.Hex() })
	return out, nil
}

func (m *memStore) ListForms(context.Context) ([]models.Form, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Form, 0, len(m.forms))
	for _, f := range m.forms {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() < out[j].ID.Hex() })
	return out, nil
}

func (m *memStore) ListPayments(context.Context) ([]models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Payment, 0, len(m.payments))
	for _, p := range m.payments {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() < out[j].ID.Hex() })
	return out, nil
}

func (m *memStore) FormsByOwner(ctx context.Context, owner primitive.ObjectID) ([]models.Form, error) {
	all, _ := m.ListForms(ctx)
	var out []models.Form
	for _, f := range all {
		if f.OwnerID == owner {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *memStore) VerifiedPaymentForOwner(ctx context.Context, owner primitive.ObjectID) (*models.Payment, error) {
	all, _ := m.ListPayments(ctx)
	var best *models.Payment
	for i := range all {
		p := all[i]
		if p.OwnerID != owner || !p.Verified() {
			continue
		}
		if best == nil || p.CreatedAt.After(best.CreatedAt) {
			best = &p
		}
	}
	if best == nil {
		return nil, models.ErrNotFound
	}
	return best, nil
}

func (m *memStore) UpdateByID(_ context.Context, collection string, id primitive.ObjectID, set map[string]any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failUpdate[collection]; err != nil {
		return false, err
	}
	switch collection {
	case models.CollectionUsers:
		u, ok := m.users[id]
		if !ok {
			return false, nil
		}
		m.writes++
		applyUser(u, set)
	case models.CollectionForms:
		f, ok := m.forms[id]
		if !ok {
			return false, nil
		}
		m.writes++
		applyForm(f, set)
	case models.CollectionPayments:
		p, ok := m.payments[id]
		if !ok {
			return false, nil
		}
		m.writes++
		applyPayment(p, set)
	default:
		return false, models.ErrUnsupportedCollection
	}
	return true, nil
}

// UpdateUserByEmail mimics the case-insensitive collation used by MongoStore
func (m *memStore) UpdateUserByEmail(_ context.Context, email string, set map[string]any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if encoding.EqualEmail(u.Email, email) {
			m.writes++
			applyUser(u, set)
			return true, nil
		}
	}
	return false, nil
}

func applyUser(u *models.User, set map[string]any) {
	for k, v := range set {
		switch k {
		case "emailVerified":
			u.EmailVerified = v.(bool)
		case "registrationDone":
			u.RegistrationDone = v.(bool)
		case "paymentDone":
			u.PaymentDone = v.(bool)
		case "name":
			u.Name = v.(string)
		case "phone":
			u.Phone = v.(string)
		case "college":
			u.College = v.(string)
		case "submittedForms":
			u.SubmittedForms = v.(map[string]models.SubmittedForm)
		case "updatedAt":
			u.UpdatedAt = v.(time.Time)
		}
	}
}

func applyForm(f *models.Form, set map[string]any) {
	for k, v := range set {
		switch k {
		case "status":
			f.Status = v.(string)
		case "fields":
			f.Fields = v.(models.FormFields)
		case "updatedAt":
			f.UpdatedAt = v.(time.Time)
		}
	}
}

func applyPayment(p *models.Payment, set map[string]any) {
	for k, v := range set {
		switch k {
		case "status":
			p.Status = v.(string)
		case "registrationStatus":
			p.RegistrationStatus = v.(string)
		case "sendEmail":
			p.SendEmail = v.(bool)
		case "transactionId":
			p.TransactionID = v.(string)
		case "amountInNumbers":
			p.AmountInNumbers = v.(float64)
		case "amount":
			p.Amount = v.(string)
		case "paymentData":
			p.PaymentData = v.(string)
		case "updatedAt":
			p.UpdatedAt = v.(time.Time)
		}
	}
}

// memSheet emulates the subset of A1 addressing the services use. Tabs are
// kept as ragged row slices like the real API returns them
type memSheet struct {
	mu      sync.Mutex
	tabs    map[string][][]any
	ids     map[string]int64
	writes  int
	appends int
	failErr error
	bolded  []int64
}

func newMemSheet() *memSheet {
	return &memSheet{tabs: map[string][][]any{}, ids: map[string]int64{}}
}

func (s *memSheet) seed(tab string, rows ...[]any) {
	s.tabs[tab] = rows
	s.ids[tab] = int64(len(s.ids) + 1)
}

func (s *memSheet) rows(tab string) [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return trimRows(s.tabs[tab])
}

func (s *memSheet) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

type a1Range struct {
	col0, row0 int // zero-based, inclusive
	col1, row1 int // -1 means open
}

func splitRange(rng string) (string, a1Range) {
	tab, a1, _ := strings.Cut(rng, "!")
	tab = strings.ReplaceAll(strings.TrimSuffix(strings.TrimPrefix(tab, "'"), "'"), "''", "'")
	r := a1Range{col1: -1, row1: -1}
	if a1 == "" {
		return tab, r
	}
	from, to, hasTo := strings.Cut(a1, ":")
	c0, r0 := parseCell(from)
	if c0 >= 0 {
		r.col0 = c0
	}
	if r0 >= 0 {
		r.row0 = r0
	}
	if !hasTo {
		return tab, r
	}
	c1, r1 := parseCell(to)
	r.col1, r.row1 = c1, r1
	return tab, r
}

// parseCell returns zero-based column and row, -1 when absent
func parseCell(ref string) (int, int) {
	i := 0
	col := 0
	for i < len(ref) && ref[i] >= 'A' && ref[i] <= 'Z' {
		col = col*26 + int(ref[i]-'A'+1)
		i++
	}
	c, r := col-1, -1
	if i < len(ref) {
		n, _ := strconv.Atoi(ref[i:])
		r = n - 1
	}
	return c, r
}

func (s *memSheet) Get(_ context.Context, rng string) ([][]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	tab, r := splitRange(rng)
	data := trimRows(s.tabs[tab])

	var out [][]any
	for i := r.row0; i < len(data); i++ {
		if r.row1 >= 0 && i > r.row1 {
			break
		}
		row := data[i]
		end := len(row)
		if r.col1 >= 0 && r.col1+1 < end {
			end = r.col1 + 1
		}
		var cells []any
		for j := r.col0; j < end; j++ {
			cells = append(cells, row[j])
		}
		out = append(out, trimCells(cells))
	}
	return trimRows(out), nil
}

func (s *memSheet) Update(_ context.Context, rng string, rows [][]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.writes++
	tab, r := splitRange(rng)
	s.write(tab, r.row0, r.col0, rows)
	return nil
}

func (s *memSheet) Append(_ context.Context, rng string, rows [][]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.writes++
	s.appends++
	tab, r := splitRange(rng)
	s.write(tab, len(trimRows(s.tabs[tab])), r.col0, rows)
	return nil
}

func (s *memSheet) Clear(_ context.Context, rng string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	tab, r := splitRange(rng)
	data := s.tabs[tab]
	for i := r.row0; i < len(data); i++ {
		if r.row1 >= 0 && i > r.row1 {
			break
		}
		for j := r.col0; j < len(data[i]); j++ {
			if r.col1 >= 0 && j > r.col1 {
				break
			}
			data[i][j] = ""
		}
	}
	s.tabs[tab] = trimRows(data)
	return nil
}

func (s *memSheet) EnsureSheet(_ context.Context, title string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return 0, false, s.failErr
	}
	if id, ok := s.ids[title]; ok {
		return id, false, nil
	}
	id := int64(len(s.ids) + 1)
	s.ids[title] = id
	s.tabs[title] = nil
	return id, true, nil
}

func (s *memSheet) BoldHeader(_ context.Context, sheetID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bolded = append(s.bolded, sheetID)
	return nil
}

func (s *memSheet) write(tab string, row0, col0 int, rows [][]any) {
	data := s.tabs[tab]
	for i, row := range rows {
		for len(data) <= row0+i {
			data = append(data, nil)
		}
		target := data[row0+i]
		for len(target) < col0+len(row) {
			target = append(target, "")
		}
		copy(target[col0:], row)
		data[row0+i] = target
	}
	s.tabs[tab] = data
}

func trimCells(row []any) []any {
	end := len(row)
	for end > 0 && mapper.CellString(row[end-1]) == "" {
		end--
	}
	return row[:end]
}

func trimRows(rows [][]any) [][]any {
	end := len(rows)
	for end > 0 && len(trimCells(rows[end-1])) == 0 {
		end--
	}
	out := make([][]any, end)
	for i := range out {
		out[i] = append([]any(nil), rows[i]...)
	}
	return out
}

// recordingTrigger captures dispatched requests instead of running them
type recordingTrigger struct {
	mu   sync.Mutex
	reqs []models.SyncRequest
}

func (r *recordingTrigger) Dispatch(req models.SyncRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
}

func (r *recordingTrigger) targets() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.reqs))
	for i, req := range r.reqs {
		out[i] = req.Collection + "/" + req.RecordID
	}
	return out
}

type memSink struct {
	mu      sync.Mutex
	letters []models.DeadLetter
}

func (m *memSink) Record(_ context.Context, dl models.DeadLetter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.letters = append(m.letters, dl)
	return nil
}

func (m *memSink) recorded() []models.DeadLetter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.DeadLetter(nil), m.letters...)
}
