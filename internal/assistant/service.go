// Package assistant turns operator utterances into ledger writes and
// rendered reports. It is the single entry point shared by the HTTP API,
// the CLI and bulk ingest.
package assistant

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/voice-ledger/internal/backup"
	"github.com/dvloznov/voice-ledger/internal/classifier"
	"github.com/dvloznov/voice-ledger/internal/contextstore"
	"github.com/dvloznov/voice-ledger/internal/domain"
	"github.com/dvloznov/voice-ledger/internal/events"
	"github.com/dvloznov/voice-ledger/internal/extract"
	"github.com/dvloznov/voice-ledger/internal/jobs"
	"github.com/dvloznov/voice-ledger/internal/ledger"
	"github.com/dvloznov/voice-ledger/internal/logger"
	"github.com/dvloznov/voice-ledger/internal/metrics"
	"github.com/dvloznov/voice-ledger/internal/query"
	"github.com/dvloznov/voice-ledger/internal/report"
	"github.com/dvloznov/voice-ledger/internal/transcribe"
)

// DefaultUndoWindow is how long the last operation stays undoable.
const DefaultUndoWindow = time.Hour

// Kind tags a Reply.
type Kind string

const (
	KindRecorded      Kind = "recorded"
	KindConfirm       Kind = "confirm"
	KindClarification Kind = "clarification"
	KindReport        Kind = "report"
	KindUndone        Kind = "undone"
	KindReset         Kind = "reset"
	KindBackup        Kind = "backup"
	KindRestored      Kind = "restored"
	KindError         Kind = "error"
)

// Reply is what the operator sees. Text is always set.
type Reply struct {
	Kind         Kind                 `json:"kind"`
	Text         string               `json:"text"`
	Transcript   string               `json:"transcript,omitempty"`
	Result       domain.Result        `json:"result,omitempty"`
	Transaction  *domain.Transaction  `json:"transaction,omitempty"`
	Row          int                  `json:"row,omitempty"`
	Transactions []domain.Transaction `json:"transactions,omitempty"`
	Backup       *BackupInfo          `json:"backup,omitempty"`
}

// BackupInfo describes a backup artifact produced by Service.Backup.
type BackupInfo struct {
	FileName string `json:"file_name"`
	Records  int    `json:"records"`
	Location string `json:"location,omitempty"`
	JobID    string `json:"job_id,omitempty"`
	Data     []byte `json:"-"`
}

// Deps are the collaborators of a Service. Ledger, Classifier, Extractor
// and Contexts are required.
type Deps struct {
	Ledger      ledger.Ledger
	Classifier  classifier.Classifier
	Extractor   *extract.Extractor
	Contexts    *contextstore.Store
	Transcriber transcribe.Transcriber
	Events      events.Publisher
	// Backups keeps artifacts locally; Jobs uploads them asynchronously.
	Backups backup.Store
	Jobs    jobs.Publisher
	// Remote reads gs:// locations on restore.
	Remote     backup.Loader
	Now        func() time.Time
	UndoWindow time.Duration
}

// Service handles one operator message at a time per user.
type Service struct {
	ledger      ledger.Ledger
	classifier  classifier.Classifier
	extractor   *extract.Extractor
	contexts    *contextstore.Store
	transcriber transcribe.Transcriber
	events      events.Publisher
	backups     backup.Store
	jobs        jobs.Publisher
	remote      backup.Loader
	now         func() time.Time
	undoWindow  time.Duration
}

// New builds a Service, filling optional collaborators with defaults.
func New(d Deps) *Service {
	s := &Service{
		ledger:      d.Ledger,
		classifier:  d.Classifier,
		extractor:   d.Extractor,
		contexts:    d.Contexts,
		transcriber: d.Transcriber,
		events:      d.Events,
		backups:     d.Backups,
		jobs:        d.Jobs,
		remote:      d.Remote,
		now:         d.Now,
		undoWindow:  d.UndoWindow,
	}
	if s.events == nil {
		s.events = events.Nop{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.undoWindow <= 0 {
		s.undoWindow = DefaultUndoWindow
	}
	if s.contexts == nil {
		s.contexts = contextstore.New()
	}
	return s
}

var (
	ErrEmptyUtterance = errors.New("empty utterance")
	ErrNoTranscriber  = errors.New("voice input is not configured")
)

func failure(text string, err error) (Reply, error) {
	return Reply{Kind: KindError, Text: text}, err
}

// HandleText classifies utterance and acts on it: writes a transaction,
// holds it for confirmation, asks for clarification or runs a command.
func (s *Service) HandleText(ctx context.Context, userID int64, utterance string) (Reply, error) {
	log := logger.ForUser(ctx, userID)
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return failure("❓ Пустое сообщение.", ErrEmptyUtterance)
	}

	var (
		reply   Reply
		command *domain.VoiceCommandResult
	)
	err := s.contexts.Do(userID, func(tx *contextstore.Tx) error {
		res := s.classifier.Classify(ctx, utterance, tx.Context())
		switch r := res.(type) {
		case *domain.FinanceResult:
			metrics.Classifications.WithLabelValues(string(domain.ResultFinance), "").Inc()
			if r.NeedsConfirmation() {
				tx.SetPending(r)
				metrics.Confirmations.WithLabelValues("requested").Inc()
				log.Info().Float64("confidence", r.Confidence).Str("category", r.Category).Msg("holding transaction for confirmation")
				reply = Reply{Kind: KindConfirm, Text: formatConfirm(r), Result: r}
				return nil
			}
			tx.SetPending(nil)
			var err error
			reply, err = s.commit(ctx, tx, userID, r)
			return err
		case *domain.VoiceCommandResult:
			metrics.Classifications.WithLabelValues(string(domain.ResultVoiceCommand), string(r.Command)).Inc()
			command = r
			return nil
		case *domain.ClarificationResult:
			metrics.Classifications.WithLabelValues(string(domain.ResultClarification), "").Inc()
			reply = Reply{Kind: KindClarification, Text: formatClarification(r), Result: r}
			return nil
		default:
			return fmt.Errorf("HandleText: unexpected result %T", res)
		}
	})
	if err != nil {
		if reply.Kind == "" {
			reply = Reply{Kind: KindError, Text: "❌ Произошла ошибка при обработке сообщения."}
		}
		return reply, err
	}

	// Commands read the ledger outside the user lock.
	if command != nil {
		log.Info().Str("intent", string(command.Command)).Msg("running voice command")
		reply, err = s.Report(ctx, userID, command.Command, command.Params)
		if reply.Result == nil {
			reply.Result = command
		}
		return reply, err
	}
	return reply, nil
}

// HandleVoice transcribes audio and handles the text. The transcript is
// returned with the reply.
func (s *Service) HandleVoice(ctx context.Context, userID int64, audio []byte, mimeType string) (Reply, error) {
	if s.transcriber == nil {
		return failure("❌ Голосовой ввод не настроен.", ErrNoTranscriber)
	}
	text, err := s.transcriber.Transcribe(ctx, audio, mimeType)
	if err != nil {
		logger.ForUser(ctx, userID).Error().Err(err).Msg("transcription failed")
		if errors.Is(err, transcribe.ErrNoSpeech) {
			return failure("❌ Не удалось распознать речь.", err)
		}
		return failure("❌ Ошибка при распознавании голоса.", fmt.Errorf("HandleVoice: %w", err))
	}
	reply, err := s.HandleText(ctx, userID, text)
	reply.Transcript = text
	if reply.Kind == KindRecorded || reply.Kind == KindConfirm {
		reply.Text = voiceSource(text) + reply.Text
	}
	return reply, err
}

func voiceSource(text string) string {
	return "🎤 Распознано: \"" + text + "\"\n\n"
}

// Confirm writes the transaction awaiting confirmation.
func (s *Service) Confirm(ctx context.Context, userID int64) (Reply, error) {
	var reply Reply
	err := s.contexts.Do(userID, func(tx *contextstore.Tx) error {
		pending := tx.TakePending()
		if pending == nil {
			return domain.ErrNothingPending
		}
		metrics.Confirmations.WithLabelValues("accepted").Inc()
		var err error
		reply, err = s.commit(ctx, tx, userID, pending)
		return err
	})
	if errors.Is(err, domain.ErrNothingPending) {
		return failure("ℹ️ Нет операции, ожидающей подтверждения.", err)
	}
	return reply, err
}

// commit appends f and makes it the undo target. The caller holds the
// user's lock.
func (s *Service) commit(ctx context.Context, tx *contextstore.Tx, userID int64, f *domain.FinanceResult) (Reply, error) {
	log := logger.ForUser(ctx, userID)
	now := s.now()
	t := f.Transaction(now)

	row, err := s.ledger.Append(ctx, t)
	if err != nil {
		log.Error().Err(err).Str("category", t.Category).Msg("ledger append failed")
		return failure("❌ Ошибка записи в таблицу. Попробуйте ещё раз.", fmt.Errorf("commit: append: %w", err))
	}
	tx.Record(contextstore.LastOperation{Transaction: t, Row: row, CreatedAt: now})
	log.Info().Int("row", row).Str("category", t.Category).Str("amount", t.Amount.String()).Msg("transaction recorded")

	s.publish(ctx, events.New(events.TypeRecorded, userID, row, &t))
	return Reply{Kind: KindRecorded, Text: formatRecorded(t), Result: f, Transaction: &t, Row: row}, nil
}

// publish logs delivery failures and drops them.
func (s *Service) publish(ctx context.Context, e events.Event) {
	if err := s.events.Publish(ctx, e); err != nil {
		logger.FromContext(ctx).Warn().Err(err).Str("event", string(e.Type)).Msg("event publish failed")
	}
}

// Undo deletes the last recorded row if it is no older than the undo window.
func (s *Service) Undo(ctx context.Context, userID int64) (Reply, error) {
	var reply Reply
	err := s.contexts.Do(userID, func(tx *contextstore.Tx) error {
		last := tx.Last()
		if last == nil {
			metrics.Undos.WithLabelValues("empty").Inc()
			return domain.ErrNothingToUndo
		}
		if s.now().Sub(last.CreatedAt) > s.undoWindow {
			metrics.Undos.WithLabelValues("expired").Inc()
			return domain.ErrUndoExpired
		}
		if err := s.ledger.Delete(ctx, last.Row); err != nil {
			metrics.Undos.WithLabelValues("error").Inc()
			return fmt.Errorf("Undo: delete row %d: %w", last.Row, err)
		}
		tx.ClearLast()
		metrics.Undos.WithLabelValues("ok").Inc()
		logger.ForUser(ctx, userID).Info().Int("row", last.Row).Msg("operation undone")

		s.publish(ctx, events.New(events.TypeUndone, userID, last.Row, &last.Transaction))
		t := last.Transaction
		reply = Reply{
			Kind:        KindUndone,
			Text:        "↩️ Операция отменена:\n" + contextstore.Summary(t),
			Transaction: &t,
			Row:         last.Row,
		}
		return nil
	})
	switch {
	case errors.Is(err, domain.ErrNothingToUndo):
		return failure("ℹ️ Нет операций для отмены.", err)
	case errors.Is(err, domain.ErrUndoExpired):
		return failure("⏰ Отменить можно только операцию не старше часа.", err)
	case err != nil:
		return failure("❌ Не удалось отменить операцию.", err)
	}
	return reply, nil
}

// Reset clears every data row and the user's context.
func (s *Service) Reset(ctx context.Context, userID int64) (Reply, error) {
	err := s.contexts.Do(userID, func(tx *contextstore.Tx) error {
		if err := s.ledger.Reset(ctx); err != nil {
			return fmt.Errorf("Reset: %w", err)
		}
		tx.Clear()
		return nil
	})
	if err != nil {
		logger.ForUser(ctx, userID).Error().Err(err).Msg("reset failed")
		return failure("❌ Не удалось очистить таблицу.", err)
	}
	logger.ForUser(ctx, userID).Warn().Msg("ledger reset")
	s.publish(ctx, events.New(events.TypeReset, userID, 0, nil))
	return Reply{Kind: KindReset, Text: "🗑 Таблица очищена, контекст сброшен."}, nil
}

func (s *Service) records(ctx context.Context) ([]domain.Transaction, error) {
	entries, err := s.ledger.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return ledger.Transactions(entries), nil
}

const readFailed = "❌ Не удалось прочитать таблицу."

// Backup snapshots the ledger, keeps the artifact locally and queues its
// upload when a job publisher is configured.
func (s *Service) Backup(ctx context.Context, userID int64) (Reply, error) {
	log := logger.ForUser(ctx, userID)
	txs, err := s.records(ctx)
	if err != nil {
		return failure(readFailed, fmt.Errorf("Backup: %w", err))
	}
	now := s.now()
	artifact := backup.Build(txs, now)
	data, err := backup.Marshal(artifact)
	if err != nil {
		return failure("❌ Ошибка при создании резервной копии.", fmt.Errorf("Backup: %w", err))
	}
	info := &BackupInfo{FileName: backup.FileName(now), Records: artifact.FinanceRecords, Data: data}

	if s.backups != nil {
		info.Location, err = s.backups.Save(ctx, info.FileName, data)
		if err != nil {
			log.Error().Err(err).Msg("saving backup failed")
			return failure("❌ Ошибка при сохранении резервной копии.", fmt.Errorf("Backup: %w", err))
		}
	}
	if s.jobs != nil {
		job := &jobs.UploadBackupJob{FileName: info.FileName, Records: info.Records, Data: data}
		if err := s.jobs.PublishUploadBackup(ctx, job); err != nil {
			log.Error().Err(err).Msg("queueing backup upload failed")
		} else {
			info.JobID = job.JobID
		}
	}
	log.Info().Str("file", info.FileName).Int("records", info.Records).Msg("backup created")

	var b strings.Builder
	b.WriteString("💾 Резервная копия создана\n\n")
	fmt.Fprintf(&b, "📄 Файл: %s\n", info.FileName)
	fmt.Fprintf(&b, "📊 Записей: %d", info.Records)
	if info.Location != "" {
		fmt.Fprintf(&b, "\n📁 Сохранено: %s", info.Location)
	}
	if info.JobID != "" {
		b.WriteString("\n☁️ Загрузка в облако поставлена в очередь")
	}
	return Reply{Kind: KindBackup, Text: b.String(), Backup: info}, nil
}

// Restore appends the rows of the artifact at location to an empty ledger.
func (s *Service) Restore(ctx context.Context, userID int64, location string) (Reply, error) {
	data, err := backup.Fetch(ctx, location, s.remote)
	if err != nil {
		return failure("❌ Не удалось прочитать резервную копию.", fmt.Errorf("Restore: %w", err))
	}
	artifact, err := backup.Decode(bytes.NewReader(data))
	if err != nil {
		return failure("❌ Файл резервной копии повреждён.", fmt.Errorf("Restore: %w", err))
	}

	var restored int
	err = s.contexts.Do(userID, func(tx *contextstore.Tx) error {
		entries, err := s.ledger.ReadAll(ctx)
		if err != nil {
			return fmt.Errorf("read ledger: %w", err)
		}
		if len(entries) > 0 {
			return domain.ErrLedgerNotEmpty
		}
		for _, t := range artifact.Transactions() {
			if _, err := s.ledger.Append(ctx, t); err != nil {
				return fmt.Errorf("append row %d: %w", restored+2, err)
			}
			restored++
		}
		tx.Clear()
		return nil
	})
	if errors.Is(err, domain.ErrLedgerNotEmpty) {
		return failure("⚠️ Таблица не пуста. Сначала очистите её.", err)
	}
	if err != nil {
		logger.ForUser(ctx, userID).Error().Err(err).Int("restored", restored).Msg("restore failed")
		return failure(fmt.Sprintf("❌ Восстановление прервано, записано %d из %d.", restored, artifact.FinanceRecords), fmt.Errorf("Restore: %w", err))
	}
	logger.ForUser(ctx, userID).Info().Int("records", restored).Str("location", location).Msg("backup restored")
	return Reply{
		Kind: KindRestored,
		Text: fmt.Sprintf("♻️ Восстановлено записей: %d (копия от %s)", restored, artifact.Created),
	}, nil
}

// Search runs a query in the search language over the whole ledger,
// newest first.
func (s *Service) Search(ctx context.Context, userID int64, q string) (Reply, error) {
	q = strings.TrimSpace(q)
	p := query.Parse(q)
	if p.IsEmpty() {
		return Reply{Kind: KindReport, Text: searchHelp}, nil
	}
	txs, err := s.records(ctx)
	if err != nil {
		return failure(readFailed, fmt.Errorf("Search: %w", err))
	}
	found := report.SortByDateDesc(query.Filter(txs, p, s.now()))
	logger.ForUser(ctx, userID).Debug().Str("query", q).Int("found", len(found)).Msg("search")
	return Reply{Kind: KindReport, Text: formatSearch(q, found), Transactions: found}, nil
}

// Find lists rows whose description, category or comment contains term.
func (s *Service) Find(ctx context.Context, userID int64, term string) (Reply, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return failure("❓ Укажите, что искать.", ErrEmptyUtterance)
	}
	txs, err := s.records(ctx)
	if err != nil {
		return failure(readFailed, fmt.Errorf("Find: %w", err))
	}
	needle := strings.ToLower(term)
	var found []domain.Transaction
	for _, t := range txs {
		hay := strings.ToLower(t.Description + " " + t.Category + " " + t.Comment)
		if strings.Contains(hay, needle) {
			found = append(found, t)
		}
	}
	logger.ForUser(ctx, userID).Debug().Str("term", term).Int("found", len(found)).Msg("find")
	return Reply{Kind: KindReport, Text: formatFind(term, found), Transactions: found}, nil
}

// History shows the user's recent context and the last ledger rows.
func (s *Service) History(ctx context.Context, userID int64) (Reply, error) {
	recent := s.contexts.Get(userID).Tail(historyContext)
	txs, err := s.records(ctx)
	if err != nil {
		return failure(readFailed, fmt.Errorf("History: %w", err))
	}
	tail := txs
	if len(tail) > historyLedger {
		tail = tail[len(tail)-historyLedger:]
	}
	return Reply{Kind: KindReport, Text: formatHistory(recent, tail), Transactions: tail}, nil
}

// Report runs a voice command. utterance is the raw text its parameters
// are extracted from.
func (s *Service) Report(ctx context.Context, userID int64, cmd domain.Command, utterance string) (Reply, error) {
	params := s.extractor.Extract(utterance, cmd)
	logger.ForUser(ctx, userID).Debug().
		Str("intent", string(cmd)).
		Str("name", params.Name).
		Str("hint", string(params.Category)).
		Msg("command parameters")

	switch cmd {
	case domain.CommandSearch:
		return s.Search(ctx, userID, searchQuery(params))
	case domain.CommandHistory:
		return s.History(ctx, userID)
	case domain.CommandBackup:
		return s.Backup(ctx, userID)
	case domain.CommandSuppliers:
		if params.Name == "" {
			return Reply{Kind: KindReport, Text: supplierHelp}, nil
		}
	case domain.CommandAnalytics, domain.CommandCategories, domain.CommandRecipients:
	default:
		return Reply{Kind: KindClarification, Text: formatClarification(&domain.ClarificationResult{})}, nil
	}

	txs, err := s.records(ctx)
	if err != nil {
		return failure(readFailed, fmt.Errorf("Report: %w", err))
	}
	now := s.now()
	var text string
	switch cmd {
	case domain.CommandAnalytics:
		text = formatOverview(report.Overview(txs, now))
	case domain.CommandCategories:
		text = formatCategories(report.Aggregate(txs, report.ByCategory, report.WindowFromPeriod(params.Period), now))
	case domain.CommandRecipients:
		text = formatRecipients(report.Aggregate(txs, report.ByRecipient, report.WindowFromPeriod(params.Period), now))
	case domain.CommandSuppliers:
		text = formatSupplier(report.SupplierHistory(txs, params.Name))
	}
	return Reply{Kind: KindReport, Text: text}, nil
}

// searchQuery composes extracted parameters into the search language.
func searchQuery(p extract.Params) string {
	var parts []string
	if p.Name != "" {
		parts = append(parts, p.Name)
	}
	if p.Period != nil {
		parts = append(parts, p.Period.String())
	}
	if p.Category != "" {
		parts = append(parts, string(p.Category))
	}
	return strings.Join(parts, " ")
}
