package assistant

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/voice-ledger/internal/backup"
	"github.com/dvloznov/voice-ledger/internal/contextstore"
	"github.com/dvloznov/voice-ledger/internal/domain"
	"github.com/dvloznov/voice-ledger/internal/events"
	"github.com/dvloznov/voice-ledger/internal/extract"
	"github.com/dvloznov/voice-ledger/internal/jobs"
	"github.com/dvloznov/voice-ledger/internal/ledger"
)

const operator int64 = 42

type memLedger struct {
	mu        sync.Mutex
	rows      []domain.Transaction
	AppendErr error
}

func (m *memLedger) Append(_ context.Context, t domain.Transaction) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AppendErr != nil {
		return 0, m.AppendErr
	}
	m.rows = append(m.rows, t)
	return len(m.rows) + 1, nil
}

func (m *memLedger) Delete(_ context.Context, row int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := row - 2
	if i < 0 || i >= len(m.rows) {
		return errors.New("no such row")
	}
	m.rows = append(m.rows[:i], m.rows[i+1:]...)
	return nil
}

func (m *memLedger) ReadAll(context.Context) ([]ledger.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ledger.Entry, len(m.rows))
	for i, t := range m.rows {
		out[i] = ledger.Entry{Row: i + 2, Transaction: t}
	}
	return out, nil
}

func (m *memLedger) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = nil
	return nil
}

type stubClassifier struct {
	ClassifyFunc func(ctx context.Context, utterance string, uc contextstore.UserContext) domain.Result
}

func (s *stubClassifier) Classify(ctx context.Context, utterance string, uc contextstore.UserContext) domain.Result {
	return s.ClassifyFunc(ctx, utterance, uc)
}

func returns(r domain.Result) *stubClassifier {
	return &stubClassifier{ClassifyFunc: func(context.Context, string, contextstore.UserContext) domain.Result { return r }}
}

type recordingEvents struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingEvents) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingEvents) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Type
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type mockJobs struct {
	PublishFunc func(ctx context.Context, job *jobs.UploadBackupJob) error
}

func (m *mockJobs) PublishUploadBackup(ctx context.Context, job *jobs.UploadBackupJob) error {
	return m.PublishFunc(ctx, job)
}

func (m *mockJobs) Close() error { return nil }

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock {
	return &clock{t: time.Date(2024, 12, 5, 14, 7, 0, 0, domain.Moscow())}
}

func finance(amount int64, category, desc string, confidence float64) *domain.FinanceResult {
	op := domain.OperationExpense
	if amount > 0 {
		op = domain.OperationIncome
	}
	return &domain.FinanceResult{
		OperationType: op,
		Amount:        decimal.NewFromInt(amount),
		Category:      category,
		Description:   desc,
		Confidence:    confidence,
	}
}

type fixture struct {
	svc    *Service
	ledger *memLedger
	clock  *clock
	events *recordingEvents
	ctxs   *contextstore.Store
}

func newFixture(c *stubClassifier) *fixture {
	f := &fixture{ledger: &memLedger{}, clock: newClock(), events: &recordingEvents{}, ctxs: contextstore.New()}
	f.svc = New(Deps{
		Ledger:     f.ledger,
		Classifier: c,
		Extractor:  extract.New(extract.NewTableNormalizer()),
		Contexts:   f.ctxs,
		Events:     f.events,
		Now:        f.clock.Now,
	})
	return f
}

func TestHandleText_RecordsConfidentResult(t *testing.T) {
	f := newFixture(returns(finance(-40000, domain.CategorySalaries, "Петров", 0.9)))

	reply, err := f.svc.HandleText(context.Background(), operator, "выплатил Петрову 40000")
	require.NoError(t, err)
	assert.Equal(t, KindRecorded, reply.Kind)
	assert.Equal(t, 2, reply.Row)
	assert.Contains(t, reply.Text, "-40,000 ₽")
	assert.Contains(t, reply.Text, "05.12.2024")

	require.Len(t, f.ledger.rows, 1)
	assert.Equal(t, "05.12.2024", f.ledger.rows[0].Date)

	uc := f.ctxs.Get(operator)
	assert.Equal(t, []string{"Петров: -40,000 ₽ (Зарплаты сотрудникам)"}, uc.Recent)
	require.NotNil(t, uc.Last)
	assert.Equal(t, 2, uc.Last.Row)
	assert.Equal(t, []events.Type{events.TypeRecorded}, f.events.types())
}

func TestHandleText_LowConfidenceWaitsForConfirm(t *testing.T) {
	f := newFixture(returns(finance(-1500, domain.CategoryTaxi, "такси", 0.5)))
	ctx := context.Background()

	reply, err := f.svc.HandleText(ctx, operator, "такси полторы тысячи")
	require.NoError(t, err)
	assert.Equal(t, KindConfirm, reply.Kind)
	assert.Contains(t, reply.Text, "Проверьте правильность")
	assert.Empty(t, f.ledger.rows)
	assert.NotNil(t, f.ctxs.Get(operator).Pending)

	reply, err = f.svc.Confirm(ctx, operator)
	require.NoError(t, err)
	assert.Equal(t, KindRecorded, reply.Kind)
	require.Len(t, f.ledger.rows, 1)
	assert.Nil(t, f.ctxs.Get(operator).Pending)

	reply, err = f.svc.Confirm(ctx, operator)
	assert.ErrorIs(t, err, domain.ErrNothingPending)
	assert.Equal(t, KindError, reply.Kind)
	assert.Len(t, f.ledger.rows, 1)
}

func TestHandleText_NewRecordingReplacesPending(t *testing.T) {
	results := []domain.Result{
		finance(-1500, domain.CategoryTaxi, "такси", 0.5),
		finance(-300, domain.CategoryConnectivity, "связь", 0.6),
	}
	calls := 0
	f := newFixture(&stubClassifier{ClassifyFunc: func(context.Context, string, contextstore.UserContext) domain.Result {
		r := results[calls]
		calls++
		return r
	}})
	ctx := context.Background()

	_, err := f.svc.HandleText(ctx, operator, "такси")
	require.NoError(t, err)
	_, err = f.svc.HandleText(ctx, operator, "связь")
	require.NoError(t, err)

	_, err = f.svc.Confirm(ctx, operator)
	require.NoError(t, err)
	require.Len(t, f.ledger.rows, 1)
	assert.Equal(t, domain.CategoryConnectivity, f.ledger.rows[0].Category)
}

func TestHandleText_Clarification(t *testing.T) {
	f := newFixture(returns(&domain.ClarificationResult{
		Message:     "Уточните сумму",
		Suggestions: []string{"a", "b", "c", "d"},
	}))

	reply, err := f.svc.HandleText(context.Background(), operator, "что-то непонятное")
	require.NoError(t, err)
	assert.Equal(t, KindClarification, reply.Kind)
	assert.Contains(t, reply.Text, "3. c")
	assert.NotContains(t, reply.Text, "4. d")
	assert.Empty(t, f.ledger.rows)
}

func TestHandleText_AppendFailure(t *testing.T) {
	f := newFixture(returns(finance(-100, domain.CategoryTaxi, "такси", 0.95)))
	f.ledger.AppendErr = errors.New("quota exceeded")

	reply, err := f.svc.HandleText(context.Background(), operator, "такси 100")
	require.Error(t, err)
	assert.Equal(t, KindError, reply.Kind)
	assert.Nil(t, f.ctxs.Get(operator).Last)
	assert.Empty(t, f.events.types())
}

func TestHandleText_EmptyUtterance(t *testing.T) {
	f := newFixture(returns(nil))
	reply, err := f.svc.HandleText(context.Background(), operator, "   ")
	require.Error(t, err)
	assert.Equal(t, KindError, reply.Kind)
}

func TestUndo_Window(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		wantErr error
		rows    int
	}{
		{name: "just inside", elapsed: 3599 * time.Second, rows: 0},
		{name: "exactly one hour", elapsed: time.Hour, rows: 0},
		{name: "expired", elapsed: 3601 * time.Second, wantErr: domain.ErrUndoExpired, rows: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(returns(finance(-40000, domain.CategorySalaries, "Петров", 0.9)))
			ctx := context.Background()
			_, err := f.svc.HandleText(ctx, operator, "выплатил Петрову 40000")
			require.NoError(t, err)

			f.clock.Advance(tt.elapsed)
			reply, err := f.svc.Undo(ctx, operator)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, KindError, reply.Kind)
			} else {
				require.NoError(t, err)
				assert.Equal(t, KindUndone, reply.Kind)
				assert.Equal(t, 2, reply.Row)
				assert.Nil(t, f.ctxs.Get(operator).Last)
			}
			assert.Len(t, f.ledger.rows, tt.rows)
		})
	}
}

func TestUndo_NothingToUndo(t *testing.T) {
	f := newFixture(returns(finance(-100, domain.CategoryTaxi, "такси", 0.9)))
	ctx := context.Background()

	_, err := f.svc.Undo(ctx, operator)
	assert.ErrorIs(t, err, domain.ErrNothingToUndo)

	_, err = f.svc.HandleText(ctx, operator, "такси 100")
	require.NoError(t, err)
	_, err = f.svc.Undo(ctx, operator)
	require.NoError(t, err)
	_, err = f.svc.Undo(ctx, operator)
	assert.ErrorIs(t, err, domain.ErrNothingToUndo)
	assert.Equal(t, []events.Type{events.TypeRecorded, events.TypeUndone}, f.events.types())
}

func TestReset(t *testing.T) {
	f := newFixture(returns(finance(-100, domain.CategoryTaxi, "такси", 0.9)))
	ctx := context.Background()
	_, err := f.svc.HandleText(ctx, operator, "такси 100")
	require.NoError(t, err)

	reply, err := f.svc.Reset(ctx, operator)
	require.NoError(t, err)
	assert.Equal(t, KindReset, reply.Kind)
	assert.Empty(t, f.ledger.rows)
	assert.Empty(t, f.ctxs.Get(operator).Recent)
	assert.Nil(t, f.ctxs.Get(operator).Last)
}

func seed(f *fixture, rows ...domain.Transaction) {
	f.ledger.rows = append(f.ledger.rows, rows...)
}

func row(date string, amount int64, category, desc string) domain.Transaction {
	op := domain.OperationExpense
	if amount > 0 {
		op = domain.OperationIncome
	}
	return domain.Transaction{Date: date, OperationType: op, Category: category, Description: desc, Amount: decimal.NewFromInt(amount)}
}

func TestHandleText_VoiceCommandRunsReport(t *testing.T) {
	f := newFixture(returns(&domain.VoiceCommandResult{Command: domain.CommandCategories, Params: "траты по категориям за неделю"}))
	seed(f,
		row("04.12.2024", -3000, domain.CategoryTaxi, "такси"),
		row("03.12.2024", -1000, domain.CategoryConnectivity, "связь"),
		row("01.10.2024", -9000, domain.CategoryGoods, "закупка"),
	)

	reply, err := f.svc.HandleText(context.Background(), operator, "траты по категориям за неделю")
	require.NoError(t, err)
	assert.Equal(t, KindReport, reply.Kind)
	assert.Contains(t, reply.Text, "Анализ расходов за неделю")
	assert.Contains(t, reply.Text, "4,000 ₽")
	assert.Contains(t, reply.Text, "███████████████░░░░░")
	assert.NotContains(t, reply.Text, domain.CategoryGoods)
	assert.NotContains(t, reply.Text, "Топ-3")
	assert.IsType(t, &domain.VoiceCommandResult{}, reply.Result)
}

func TestReport_Recipients(t *testing.T) {
	f := newFixture(returns(nil))
	seed(f,
		row("04.12.2024", -40000, domain.CategorySalaries, "Петров"),
		row("03.12.2024", -20000, domain.CategorySalaries, "Петров"),
		row("03.12.2024", -10000, domain.CategorySupplier, "Интигам"),
		row("02.12.2024", -500, domain.CategoryTaxi, "Яндекс"),
	)

	reply, err := f.svc.Report(context.Background(), operator, domain.CommandRecipients, "по получателям")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "Уникальных получателей: 3")
	assert.Contains(t, reply.Text, "1. 💼 Петров")
	assert.Contains(t, reply.Text, "2 операций, ~30,000 ₽ за раз")
	assert.Contains(t, reply.Text, "Топ-3 получателя: 100.0%")
	assert.Contains(t, reply.Text, "Средний чек по типам")
}

func TestReport_Suppliers(t *testing.T) {
	f := newFixture(returns(nil))
	seed(f,
		row("01.11.2024", -10000, domain.CategorySupplier, "Интигам"),
		row("01.12.2024", -20000, domain.CategorySupplier, "Интигам"),
	)
	ctx := context.Background()

	reply, err := f.svc.Report(ctx, operator, domain.CommandSuppliers, "анализ поставщика Интигам")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "Анализ поставщика: Интигам")
	assert.Contains(t, reply.Text, "Всего операций: 2")
	assert.Contains(t, reply.Text, "Средняя оплата: 15,000 ₽")

	reply, err = f.svc.Report(ctx, operator, domain.CommandSuppliers, "анализ поставщиков")
	require.NoError(t, err)
	assert.Equal(t, supplierHelp, reply.Text)
}

func TestReport_SearchComposesQuery(t *testing.T) {
	f := newFixture(returns(nil))
	seed(f,
		row("04.12.2024", -40000, domain.CategorySalaries, "Петров"),
		row("01.10.2024", -30000, domain.CategorySalaries, "Петров"),
		row("03.12.2024", -1000, domain.CategoryTaxi, "такси"),
	)
	ctx := context.Background()

	reply, err := f.svc.Report(ctx, operator, domain.CommandSearch, "найди Петрова за неделю")
	require.NoError(t, err)
	require.Len(t, reply.Transactions, 1)
	assert.Equal(t, "04.12.2024", reply.Transactions[0].Date)
	assert.Contains(t, reply.Text, "Запрос: Петров неделя")

	reply, err = f.svc.Report(ctx, operator, domain.CommandSearch, "поиск")
	require.NoError(t, err)
	assert.Equal(t, searchHelp, reply.Text)
}

func TestSearch_NewestFirstWithTotals(t *testing.T) {
	f := newFixture(returns(nil))
	seed(f,
		row("01.12.2024", -1000, domain.CategoryTaxi, "Яндекс такси"),
		row("03.12.2024", 500, domain.CategoryNone, "Яндекс возврат"),
		row("02.12.2024", -2000, domain.CategoryHousehold, "Яндекс еда"),
		row("02.12.2024", -700, domain.CategoryTaxi, "Ситимобил"),
	)

	reply, err := f.svc.Search(context.Background(), operator, "яндекс")
	require.NoError(t, err)
	require.Len(t, reply.Transactions, 3)
	assert.Equal(t, "03.12.2024", reply.Transactions[0].Date)
	assert.Equal(t, "01.12.2024", reply.Transactions[2].Date)
	assert.Contains(t, reply.Text, "Найдено: 3 операций")
	assert.Contains(t, reply.Text, "Общая сумма: -2,500 ₽")
	assert.Contains(t, reply.Text, "Доходы: +500 ₽")
	assert.Contains(t, reply.Text, "Топ категория: Общественные расходы (2,000 ₽)")

	reply, err = f.svc.Search(context.Background(), operator, "такси")
	require.NoError(t, err)
	assert.Len(t, reply.Transactions, 2)

	reply, err = f.svc.Search(context.Background(), operator, "самолёт")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "ничего не найдено")
}

func TestFind_CaseInsensitive(t *testing.T) {
	f := newFixture(returns(nil))
	seed(f,
		row("01.12.2024", -1000, domain.CategoryTaxi, "Яндекс Такси"),
		row("02.12.2024", -2000, domain.CategoryGoods, "закупка"),
	)
	reply, err := f.svc.Find(context.Background(), operator, "такси")
	require.NoError(t, err)
	assert.Len(t, reply.Transactions, 1)
	assert.Contains(t, reply.Text, "Найдено операций с 'такси': 1")
}

func TestHistory(t *testing.T) {
	f := newFixture(returns(finance(-100, domain.CategoryTaxi, "такси", 0.9)))
	ctx := context.Background()
	reply, err := f.svc.History(ctx, operator)
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "Контекст пуст")

	for i := 0; i < 4; i++ {
		_, err := f.svc.HandleText(ctx, operator, "такси 100")
		require.NoError(t, err)
	}
	reply, err = f.svc.History(ctx, operator)
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "4. такси: -100 ₽ (Такси)")
	assert.Len(t, reply.Transactions, 3)
}

func TestBackupAndRestore(t *testing.T) {
	dir := t.TempDir()
	var queued *jobs.UploadBackupJob
	f := newFixture(returns(nil))
	f.svc.backups = backup.LocalStore{Dir: dir}
	f.svc.jobs = &mockJobs{PublishFunc: func(_ context.Context, job *jobs.UploadBackupJob) error {
		job.JobID = "job-1"
		queued = job
		return nil
	}}
	seed(f,
		row("01.12.2024", -1000, domain.CategoryTaxi, "такси"),
		row("02.12.2024", 5000, domain.CategoryNone, "пополнение"),
	)
	ctx := context.Background()

	reply, err := f.svc.Backup(ctx, operator)
	require.NoError(t, err)
	require.NotNil(t, reply.Backup)
	assert.Equal(t, "backup_20241205_1407.json", reply.Backup.FileName)
	assert.Equal(t, 2, reply.Backup.Records)
	assert.Equal(t, filepath.Join(dir, "backup_20241205_1407.json"), reply.Backup.Location)
	assert.Equal(t, "job-1", reply.Backup.JobID)
	require.NotNil(t, queued)
	assert.Equal(t, reply.Backup.Data, queued.Data)

	_, err = f.svc.Restore(ctx, operator, reply.Backup.Location)
	assert.ErrorIs(t, err, domain.ErrLedgerNotEmpty)

	_, err = f.svc.Reset(ctx, operator)
	require.NoError(t, err)
	restored, err := f.svc.Restore(ctx, operator, reply.Backup.Location)
	require.NoError(t, err)
	assert.Equal(t, KindRestored, restored.Kind)
	require.Len(t, f.ledger.rows, 2)
	assert.True(t, decimal.NewFromInt(5000).Equal(f.ledger.rows[1].Amount))
	assert.Equal(t, "пополнение", f.ledger.rows[1].Description)
}

type transcriberFunc func(ctx context.Context, audio []byte, mimeType string) (string, error)

func (f transcriberFunc) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	return f(ctx, audio, mimeType)
}

func TestHandleVoice(t *testing.T) {
	var heard string
	f := newFixture(&stubClassifier{ClassifyFunc: func(_ context.Context, utterance string, _ contextstore.UserContext) domain.Result {
		heard = utterance
		return finance(-500, domain.CategoryTaxi, "такси", 0.9)
	}})
	ctx := context.Background()

	_, err := f.svc.HandleVoice(ctx, operator, []byte("ogg"), "")
	require.Error(t, err)

	f.svc.transcriber = transcriberFunc(func(context.Context, []byte, string) (string, error) {
		return "такси 500", nil
	})
	reply, err := f.svc.HandleVoice(ctx, operator, []byte("ogg"), "audio/ogg")
	require.NoError(t, err)
	assert.Equal(t, "такси 500", heard)
	assert.Equal(t, "такси 500", reply.Transcript)
	assert.Contains(t, reply.Text, `🎤 Распознано: "такси 500"`)
	assert.Equal(t, KindRecorded, reply.Kind)
}

func TestBar(t *testing.T) {
	assert.Equal(t, "░░░░░░░░░░░░░░░░░░░░", bar(4.9))
	assert.Equal(t, "██████████░░░░░░░░░░", bar(50))
	assert.Equal(t, "████████████████████", bar(100))
}
