package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	emaildomain "email-assistant/internal/email/domain"
	"email-assistant/internal/email/repository"
	"email-assistant/pkg/fuzzy"
	"email-assistant/pkg/keylock"
	"email-assistant/pkg/mail"
	"email-assistant/pkg/signals"

	"go.uber.org/zap"
)

// Analyzer computes triage signals. *signals.Extractor implements it.
type Analyzer interface {
	Analyze(ctx context.Context, subject, body string) signals.Analysis
	IsSupportEmail(subject, body string) bool
}

// Options tune a TriageUsecase. Zero values pick defaults.
type Options struct {
	// SupportFilter drops fetched mail without a support keyword before ingest
	SupportFilter    bool
	DefaultHoursBack int
	// Location defines calendar days for analytics
	Location *time.Location
	// AnalysisWorkers bounds concurrent signal extraction
	AnalysisWorkers int
	// Notifier, when set, is told about every newly ingested urgent email
	Notifier UrgentNotifier
	Logger   *zap.Logger
	Now      func() time.Time
}

type triageUsecase struct {
	emailRepo     repository.EmailRepository
	analyticsRepo repository.AnalyticsRepository
	syncRunRepo   repository.SyncRunRepository
	analyzer      Analyzer
	generator     *ResponseGenerator
	transport     mail.Transport
	notifier      UrgentNotifier

	locks         *keylock.Locker
	supportFilter bool
	hoursBack     int
	location      *time.Location
	workers       int
	logger        *zap.Logger
	now           func() time.Time
}

// NewTriageUsecase creates a new TriageUsecase. transport may be nil when
// mail is only ingested through the API; Sync and SendResponse then fail.
func NewTriageUsecase(
	emailRepo repository.EmailRepository,
	analyticsRepo repository.AnalyticsRepository,
	syncRunRepo repository.SyncRunRepository,
	analyzer Analyzer,
	generator *ResponseGenerator,
	transport mail.Transport,
	opts Options,
) TriageUsecase {
	u := &triageUsecase{
		emailRepo:     emailRepo,
		analyticsRepo: analyticsRepo,
		syncRunRepo:   syncRunRepo,
		analyzer:      analyzer,
		generator:     generator,
		transport:     transport,
		notifier:      opts.Notifier,
		locks:         keylock.New(),
		supportFilter: opts.SupportFilter,
		hoursBack:     opts.DefaultHoursBack,
		location:      opts.Location,
		workers:       opts.AnalysisWorkers,
		logger:        opts.Logger,
		now:           opts.Now,
	}
	if u.hoursBack <= 0 {
		u.hoursBack = 24
	}
	if u.location == nil {
		u.location = time.UTC
	}
	if u.workers <= 0 {
		u.workers = 4
	}
	if u.logger == nil {
		u.logger = zap.NewNop()
	}
	if u.now == nil {
		u.now = time.Now
	}
	if u.generator == nil {
		u.generator = NewResponseGenerator(nil, nil, nil, 0, u.logger)
	}
	return u
}

func (u *triageUsecase) Ingest(ctx context.Context, raws []emaildomain.RawEmail) *IngestResult {
	res := &IngestResult{Committed: true, CreatedIDs: []string{}}

	// Screen out what needs no model call: missing ids, in-batch repeats
	// and emails that are already stored.
	seen := make(map[string]bool, len(raws))
	candidates := make([]emaildomain.RawEmail, 0, len(raws))
	for _, raw := range raws {
		raw.MessageID = strings.TrimSpace(raw.MessageID)
		if raw.MessageID == "" {
			res.Failed++
			u.logger.Warn("email without message id", zap.String("subject", raw.Subject))
			continue
		}
		if seen[raw.MessageID] {
			res.Skipped++
			continue
		}
		seen[raw.MessageID] = true

		existing, err := u.emailRepo.FindByMessageID(ctx, raw.MessageID)
		if err != nil {
			res.Failed++
			u.logger.Error("failed to check for existing email", zap.String("message_id", raw.MessageID), zap.Error(err))
			continue
		}
		if existing != nil {
			res.Skipped++
			continue
		}
		candidates = append(candidates, raw)
	}
	if len(candidates) == 0 {
		res.Message = ingestMessage(res)
		return res
	}

	analyses := u.analyzeAll(ctx, len(candidates), func(i int) (string, string) {
		return candidates[i].Subject, candidates[i].Body
	})

	// Locks are taken in sorted order so overlapping batches cannot deadlock,
	// and held until commit so a concurrent batch sees the stored rows.
	keys := make([]string, len(candidates))
	for i, c := range candidates {
		keys[i] = "msg:" + c.MessageID
	}
	sort.Strings(keys)
	for _, key := range keys {
		unlock := u.locks.Lock(key)
		defer unlock()
	}

	var (
		created []*emaildomain.Email
		skipped int
		failed  int
	)
	err := u.emailRepo.Transaction(ctx, func(tx repository.EmailRepository) error {
		for i, raw := range candidates {
			existing, err := tx.FindByMessageID(ctx, raw.MessageID)
			if err != nil {
				failed++
				u.logger.Error("failed to check for existing email", zap.String("message_id", raw.MessageID), zap.Error(err))
				continue
			}
			if existing != nil {
				skipped++
				continue
			}

			email := u.newEmail(raw, analyses[i])
			err = tx.Transaction(ctx, func(sp repository.EmailRepository) error {
				return sp.Create(ctx, email)
			})
			if err != nil {
				failed++
				u.logger.Error("failed to store email", zap.String("message_id", raw.MessageID), zap.Error(err))
				continue
			}
			created = append(created, email)
		}
		return nil
	})
	if err != nil {
		res.Committed = false
		res.Failed += len(candidates)
		res.Message = fmt.Sprintf("Error committing to database: %v", err)
		u.logger.Error("ingest batch rolled back", zap.Int("batch", len(candidates)), zap.Error(err))
		return res
	}

	res.Processed = len(created)
	res.Skipped += skipped
	res.Failed += failed
	for _, e := range created {
		res.CreatedIDs = append(res.CreatedIDs, e.ID)
	}
	res.Message = ingestMessage(res)

	u.logger.Info("ingested emails",
		zap.Int("processed", res.Processed),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
	)
	u.notifyUrgent(ctx, created)
	return res
}

func ingestMessage(res *IngestResult) string {
	return fmt.Sprintf("Processed %d new emails (%d skipped, %d failed)", res.Processed, res.Skipped, res.Failed)
}

func (u *triageUsecase) newEmail(raw emaildomain.RawEmail, a signals.Analysis) *emaildomain.Email {
	received := raw.ReceivedAt
	if received.IsZero() {
		received = u.now()
	}
	email := &emaildomain.Email{
		MessageID:   raw.MessageID,
		SenderEmail: mail.Address(raw.From),
		Subject:     raw.Subject,
		Body:        raw.Body,
		ReceivedAt:  received.UTC(),
		IsProcessed: true,
		IsResponded: false,
	}
	email.ApplyAnalysis(a)
	return email
}

// analyzeAll runs signal extraction for n emails on a bounded worker pool,
// preserving order.
func (u *triageUsecase) analyzeAll(ctx context.Context, n int, text func(i int) (subject, body string)) []signals.Analysis {
	out := make([]signals.Analysis, n)
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < min(u.workers, n); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				subject, body := text(i)
				out[i] = u.analyzer.Analyze(ctx, subject, body)
			}
		}()
	}
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return out
}

func (u *triageUsecase) notifyUrgent(ctx context.Context, created []*emaildomain.Email) {
	if u.notifier == nil {
		return
	}
	for _, e := range created {
		if e.Priority != signals.PriorityUrgent {
			continue
		}
		if err := u.notifier.NotifyUrgent(ctx, e); err != nil {
			u.logger.Warn("urgent notification failed", zap.String("email_id", e.ID), zap.Error(err))
		}
	}
}

func (u *triageUsecase) Sync(ctx context.Context, req SyncRequest) *SyncResult {
	started := u.now()
	if req.HoursBack <= 0 {
		req.HoursBack = u.hoursBack
	}
	if req.Source == "" {
		req.Source = emaildomain.SourceManual
	}
	log := u.logger.With(zap.String("source", req.Source), zap.Int("hours_back", req.HoursBack))

	if req.HistoryID != "" && u.syncRunRepo != nil {
		seen, err := u.syncRunRepo.HasHistoryID(ctx, req.HistoryID)
		if err != nil {
			log.Warn("failed to check sync history", zap.Error(err))
		} else if seen {
			log.Debug("mailbox change already synced", zap.String("history_id", req.HistoryID))
			return &SyncResult{Success: true, Duplicate: true, Message: "Mailbox change already synced"}
		}
	}

	result := u.sync(ctx, req, started)
	if result.Success {
		log.Info("sync finished", zap.Int("fetched", result.Fetched), zap.Int("processed", result.Processed))
	} else {
		log.Error("sync failed", zap.String("message", result.Message))
	}

	if u.syncRunRepo != nil {
		run := &emaildomain.SyncRun{
			Source:     req.Source,
			HistoryID:  req.HistoryID,
			HoursBack:  req.HoursBack,
			Fetched:    result.Fetched,
			Filtered:   result.Filtered,
			Processed:  result.Processed,
			Skipped:    result.Skipped,
			Failed:     result.Failed,
			Success:    result.Success,
			Message:    result.Message,
			StartedAt:  started.UTC(),
			FinishedAt: u.now().UTC(),
		}
		if err := u.syncRunRepo.Create(ctx, run); err != nil {
			log.Warn("failed to record sync run", zap.Error(err))
		}
	}
	return result
}

func (u *triageUsecase) sync(ctx context.Context, req SyncRequest, started time.Time) *SyncResult {
	if u.transport == nil {
		return &SyncResult{Message: "Error syncing emails: no mail transport configured"}
	}

	since := started.Add(-time.Duration(req.HoursBack) * time.Hour)
	raws, err := u.transport.Fetch(ctx, since)
	if err != nil {
		return &SyncResult{Message: fmt.Sprintf("Error syncing emails: %v", err)}
	}

	result := &SyncResult{Fetched: len(raws)}
	if u.supportFilter {
		kept := make([]mail.Message, 0, len(raws))
		for _, raw := range raws {
			if u.analyzer.IsSupportEmail(raw.Subject, raw.Body) {
				kept = append(kept, raw)
			}
		}
		raws = kept
	}
	result.Filtered = len(raws)

	if len(raws) == 0 {
		result.Success = true
		result.Message = "No new emails found"
		return result
	}

	ingest := u.Ingest(ctx, raws)
	result.Processed = ingest.Processed
	result.Skipped = ingest.Skipped
	result.Failed = ingest.Failed
	result.Success = ingest.Committed
	if !ingest.Committed {
		result.Message = "Error syncing emails: " + ingest.Message
		return result
	}
	result.Message = fmt.Sprintf("Successfully processed %d emails", ingest.Processed)

	if _, err := u.RecomputeAnalytics(ctx, started); err != nil {
		u.logger.Warn("failed to update analytics after sync", zap.Error(err))
	}
	return result
}

func (u *triageUsecase) PriorityQueue(ctx context.Context) ([]*emaildomain.Email, error) {
	emails, err := u.emailRepo.PriorityQueue(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load priority queue: %w", err)
	}
	if emails == nil {
		emails = []*emaildomain.Email{}
	}
	return emails, nil
}

func (u *triageUsecase) load(ctx context.Context, id string) (*emaildomain.Email, error) {
	email, err := u.emailRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load email %s: %w", id, err)
	}
	if email == nil {
		return nil, ErrEmailNotFound
	}
	return email, nil
}

func (u *triageUsecase) GenerateResponse(ctx context.Context, id, override string) (*GeneratedResponse, error) {
	unlock := u.locks.Lock("email:" + id)
	defer unlock()

	email, err := u.load(ctx, id)
	if err != nil {
		return nil, err
	}

	draft := u.generator.Generate(ctx, ResponseInput{
		Body:      email.Body,
		Subject:   email.Subject,
		Sender:    email.SenderEmail,
		Sentiment: email.Sentiment,
		Priority:  email.Priority,
		Category:  email.Category,
		Override:  override,
	})

	err = u.emailRepo.UpdateFields(ctx, id, map[string]interface{}{
		"generated_response":  draft.Response,
		"response_confidence": draft.Confidence,
		"response_rationale":  draft.Rationale,
		"is_processed":        true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store generated response for %s: %w", id, err)
	}

	u.logger.Info("generated response",
		zap.String("email_id", id),
		zap.Float64("confidence", draft.Confidence),
		zap.Bool("fallback", draft.Fallback),
	)
	return &GeneratedResponse{EmailID: id, Draft: draft}, nil
}

func (u *triageUsecase) SendResponse(ctx context.Context, id, overrideText string) error {
	unlock := u.locks.Lock("email:" + id)
	defer unlock()

	email, err := u.load(ctx, id)
	if err != nil {
		return err
	}

	text := strings.TrimSpace(overrideText)
	usedOverride := text != ""
	if !usedOverride && email.GeneratedResponse != nil {
		text = strings.TrimSpace(*email.GeneratedResponse)
	}
	if text == "" {
		return ErrNoResponseText
	}
	if u.transport == nil {
		return fmt.Errorf("failed to send response to %s: no mail transport configured", email.SenderEmail)
	}

	if err := u.transport.Send(ctx, email.SenderEmail, "Re: "+email.Subject, text); err != nil {
		return fmt.Errorf("failed to send response to %s: %w", email.SenderEmail, err)
	}

	fields := map[string]interface{}{
		"response_sent": true,
		"is_responded":  true,
	}
	if usedOverride {
		fields["generated_response"] = text
	}
	if err := u.emailRepo.UpdateFields(ctx, id, fields); err != nil {
		return fmt.Errorf("response sent but failed to mark email %s resolved: %w", id, err)
	}

	u.logger.Info("sent response", zap.String("email_id", id), zap.Bool("override", usedOverride))
	return nil
}

// Reprocess reruns signal extraction. An empty id list means every email.
func (u *triageUsecase) Reprocess(ctx context.Context, ids []string) (int, error) {
	var (
		emails []*emaildomain.Email
		err    error
	)
	if len(ids) == 0 {
		emails, _, err = u.emailRepo.List(ctx, emaildomain.EmailFilter{})
	} else {
		emails, err = u.emailRepo.FindByIDs(ctx, ids)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load emails for reprocessing: %w", err)
	}
	if len(emails) == 0 {
		return 0, nil
	}

	analyses := u.analyzeAll(ctx, len(emails), func(i int) (string, string) {
		return emails[i].Subject, emails[i].Body
	})

	updated := 0
	for i, e := range emails {
		if err := u.reanalyze(ctx, e.ID, analyses[i]); err != nil {
			u.logger.Error("failed to reprocess email", zap.String("email_id", e.ID), zap.Error(err))
			continue
		}
		updated++
	}

	u.logger.Info("reprocessed emails", zap.Int("requested", len(emails)), zap.Int("updated", updated))
	return updated, nil
}

// reanalyze reloads under the record lock so a concurrent send is not
// overwritten, then replaces only the derived fields.
func (u *triageUsecase) reanalyze(ctx context.Context, id string, a signals.Analysis) error {
	unlock := u.locks.Lock("email:" + id)
	defer unlock()

	email, err := u.load(ctx, id)
	if err != nil {
		return err
	}
	email.ApplyAnalysis(a)
	email.IsProcessed = true
	return u.emailRepo.Save(ctx, email)
}

// ListEmails filters in the store. A fuzzy query ranks the filtered set in
// memory before pagination.
func (u *triageUsecase) ListEmails(ctx context.Context, filter emaildomain.EmailFilter) ([]*emaildomain.Email, int64, error) {
	query := strings.TrimSpace(filter.Query)
	if query == "" {
		emails, total, err := u.emailRepo.List(ctx, filter)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to list emails: %w", err)
		}
		if emails == nil {
			emails = []*emaildomain.Email{}
		}
		return emails, total, nil
	}

	all := filter
	all.Limit, all.Offset = 0, 0
	emails, _, err := u.emailRepo.List(ctx, all)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list emails: %w", err)
	}

	type scored struct {
		email *emaildomain.Email
		score float64
	}
	ranked := make([]scored, 0, len(emails))
	for _, e := range emails {
		if s := fuzzy.EmailScore(query, e.Subject, e.SenderEmail, e.Body); s > 0 {
			ranked = append(ranked, scored{email: e, score: s})
		}
	}
	// stable: equal scores keep newest-first order
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	total := int64(len(ranked))
	start := min(max(filter.Offset, 0), len(ranked))
	end := len(ranked)
	if filter.Limit > 0 {
		end = min(start+filter.Limit, len(ranked))
	}
	out := make([]*emaildomain.Email, 0, end-start)
	for _, r := range ranked[start:end] {
		out = append(out, r.email)
	}
	return out, total, nil
}

func (u *triageUsecase) GetEmail(ctx context.Context, id string) (*emaildomain.Email, error) {
	return u.load(ctx, id)
}

func (u *triageUsecase) UpdateEmail(ctx context.Context, id string, update emaildomain.EmailUpdate) (*emaildomain.Email, error) {
	fields := map[string]interface{}{}
	if update.Sentiment != nil {
		if !update.Sentiment.Valid() {
			return nil, fmt.Errorf("%w: unknown sentiment %q", ErrInvalidUpdate, *update.Sentiment)
		}
		fields["sentiment"] = string(*update.Sentiment)
	}
	if update.Priority != nil {
		if !update.Priority.Valid() {
			return nil, fmt.Errorf("%w: unknown priority %q", ErrInvalidUpdate, *update.Priority)
		}
		fields["priority"] = string(*update.Priority)
	}
	if update.Category != nil {
		if !update.Category.Valid() {
			return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidUpdate, *update.Category)
		}
		fields["category"] = string(*update.Category)
	}
	if update.IsProcessed != nil {
		fields["is_processed"] = *update.IsProcessed
	}
	if update.IsResponded != nil {
		fields["is_responded"] = *update.IsResponded
	}
	if update.GeneratedResponse != nil {
		fields["generated_response"] = *update.GeneratedResponse
	}
	if update.ResponseSent != nil {
		fields["response_sent"] = *update.ResponseSent
	}

	unlock := u.locks.Lock("email:" + id)
	defer unlock()

	if _, err := u.load(ctx, id); err != nil {
		return nil, err
	}
	if len(fields) > 0 {
		if err := u.emailRepo.UpdateFields(ctx, id, fields); err != nil {
			return nil, fmt.Errorf("failed to update email %s: %w", id, err)
		}
	}
	return u.load(ctx, id)
}
