package chat

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yanqian/persian-faqbot/internal/domain/chatlog"
	apperrors "github.com/yanqian/persian-faqbot/pkg/errors"
	"github.com/yanqian/persian-faqbot/pkg/util"
)

// Service handles chat requests and exposes the interaction log.
type Service interface {
	Chat(ctx context.Context, req Request) (Response, error)
	Logs(ctx context.Context, query chatlog.Query) (chatlog.Page, error)
	Stats(ctx context.Context) (chatlog.Stats, error)
	ExportLogs(ctx context.Context, query chatlog.Query) (ExportResult, error)
	ReplaySpool(ctx context.Context) error
}

type service struct {
	cfg      Config
	matcher  Matcher
	log      ChatLog
	spool    Spool
	tokens   TokenCounter
	reporter Reporter
	storage  ObjectStorage
	logger   *slog.Logger
	now      util.Clock
}

// NewService wires the chat session handler.
func NewService(
	cfg Config,
	matcher Matcher,
	log ChatLog,
	spool Spool,
	tokens TokenCounter,
	reporter Reporter,
	storage ObjectStorage,
	logger *slog.Logger,
) Service {
	return newService(cfg, matcher, log, spool, tokens, reporter, storage, logger, util.NowUTC)
}

func newService(
	cfg Config,
	matcher Matcher,
	log ChatLog,
	spool Spool,
	tokens TokenCounter,
	reporter Reporter,
	storage ObjectStorage,
	logger *slog.Logger,
	now util.Clock,
) *service {
	return &service{
		cfg:      cfg.withDefaults(),
		matcher:  matcher,
		log:      log,
		spool:    spool,
		tokens:   tokens,
		reporter: reporter,
		storage:  storage,
		logger:   logger.With("component", "chat.service"),
		now:      now.OrNow(),
	}
}

func (s *service) Chat(ctx context.Context, req Request) (Response, error) {
	started := s.now()
	// punctuation-only messages still reach the matcher and are logged as
	// an empty_message fallback
	if strings.TrimSpace(req.Message) == "" {
		return Response{}, apperrors.Wrap(apperrors.CodeInvalidInput, "message cannot be empty", nil)
	}

	result, err := s.matcher.Match(ctx, req.Message)
	if err != nil {
		// reported to the error tracker by the transport with the 503
		s.logger.Error("faq match failed", "requestId", req.RequestID, "error", err)
		return Response{}, apperrors.Wrap(apperrors.CodeFAQUnavailable, "faq catalog is unavailable", err)
	}

	latency := s.now().Sub(started).Milliseconds()
	usage := s.tokens.Usage(req.Message, result.Answer)
	draft := chatlog.Draft{
		UserText:     req.Message,
		Answer:       result.Answer,
		MatchedFAQID: result.FAQID,
		Confidence:   result.Confidence,
		Source:       string(result.Source),
		LatencyMs:    latency,
		TokensIn:     usage.PromptTokens,
		TokensOut:    usage.CompletionTokens,
		RequestID:    req.RequestID,
		OccurredAt:   started,
	}

	resp := Response{
		Answer:       result.Answer,
		Confidence:   result.Confidence,
		MatchedFAQID: result.FAQID,
	}
	entry, logged := s.record(ctx, draft)
	if logged {
		id := entry.ID
		resp.LogID = &id
	}
	if req.Debug {
		resp.DebugInfo = &DebugInfo{
			Normalized:     result.Normalized,
			Source:         result.Source,
			Reason:         result.Reason,
			Threshold:      s.matcher.Threshold(),
			CatalogVersion: result.CatalogVersion,
			LatencyMs:      latency,
			Usage:          usage,
			Logged:         logged,
		}
	}

	s.logger.Info("chat answered",
		"requestId", req.RequestID,
		"source", result.Source,
		"confidence", result.Confidence,
		"latencyMs", latency,
		"logged", logged,
	)
	return resp, nil
}

// record appends the draft under its own deadline so a slow or cancelled
// client cannot lose the record. Failed drafts go to the spool, which gets
// a deadline of its own: the response waits at most two LogTimeouts.
func (s *service) record(ctx context.Context, draft chatlog.Draft) (chatlog.Entry, bool) {
	detached := context.WithoutCancel(ctx)
	logCtx, cancel := context.WithTimeout(detached, s.cfg.LogTimeout)
	entry, err := s.log.Append(logCtx, draft)
	cancel()
	if err == nil {
		return entry, true
	}
	s.logger.Error("chat log append failed", "requestId", draft.RequestID, "error", err)
	s.reporter.CaptureError(ctx, err)
	s.reporter.Breadcrumb(ctx, "chatlog", "append failed, spooling draft")

	if pushErr := s.push(detached, draft); pushErr != nil {
		s.logger.Error("chat log spool failed, record lost", "requestId", draft.RequestID, "error", pushErr)
		s.reporter.CaptureError(ctx, fmt.Errorf("spool chat log draft: %w", pushErr))
	}
	return chatlog.Entry{}, false
}

func (s *service) push(ctx context.Context, draft chatlog.Draft) error {
	pushCtx, cancel := context.WithTimeout(ctx, s.cfg.LogTimeout)
	defer cancel()
	return s.spool.Push(pushCtx, draft)
}

func (s *service) Logs(ctx context.Context, query chatlog.Query) (chatlog.Page, error) {
	return s.log.Page(ctx, query)
}

// Stats aggregates the log and reports the spool backlog. A spool that
// cannot report its length leaves Spooled at zero.
func (s *service) Stats(ctx context.Context) (chatlog.Stats, error) {
	stats, err := s.log.Stats(ctx)
	if err != nil {
		return chatlog.Stats{}, err
	}
	spooled, err := s.spool.Len(ctx)
	if err != nil {
		s.logger.Warn("spool length unavailable", "error", err)
		return stats, nil
	}
	stats.Spooled = spooled
	return stats, nil
}

var exportHeader = []string{
	"id", "timestamp", "user_text", "answer", "matched_faq_id", "confidence",
	"source", "latency_ms", "tokens_in", "tokens_out", "request_id",
}

func (s *service) ExportLogs(ctx context.Context, query chatlog.Query) (ExportResult, error) {
	entries, err := s.log.Recent(ctx, query)
	if err != nil {
		return ExportResult{}, err
	}

	var buf bytes.Buffer
	// BOM so spreadsheet tools detect UTF-8 Persian text
	buf.WriteString("\ufeff")
	writer := csv.NewWriter(&buf)
	if err := writer.Write(exportHeader); err != nil {
		return ExportResult{}, apperrors.Wrap(apperrors.CodePersistence, "encode export failed", err)
	}
	for _, entry := range entries {
		matched := ""
		if entry.MatchedFAQID != nil {
			matched = strconv.FormatInt(*entry.MatchedFAQID, 10)
		}
		record := []string{
			strconv.FormatInt(entry.ID, 10),
			entry.Timestamp.UTC().Format(time.RFC3339),
			entry.UserText,
			entry.Answer,
			matched,
			strconv.FormatFloat(entry.Confidence, 'f', 4, 64),
			entry.Source,
			strconv.FormatInt(entry.LatencyMs, 10),
			strconv.Itoa(entry.TokensIn),
			strconv.Itoa(entry.TokensOut),
			entry.RequestID,
		}
		if err := writer.Write(record); err != nil {
			return ExportResult{}, apperrors.Wrap(apperrors.CodePersistence, "encode export failed", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return ExportResult{}, apperrors.Wrap(apperrors.CodePersistence, "encode export failed", err)
	}

	key := fmt.Sprintf("%s%s-%s.csv", s.cfg.ExportPrefix, s.now().UTC().Format("20060102T150405Z"), uuid.NewString())
	stored, err := s.storage.Put(ctx, key, buf.Bytes(), "text/csv; charset=utf-8")
	if err != nil {
		s.logger.Error("chat log export upload failed", "key", key, "error", err)
		return ExportResult{}, apperrors.Wrap(apperrors.CodePersistence, "store export failed", err)
	}
	s.logger.Info("chat logs exported", "key", stored.Key, "entries", len(entries), "bytes", stored.Size)
	return ExportResult{Key: stored.Key, Size: stored.Size, Count: len(entries)}, nil
}

// ReplaySpool re-appends spooled drafts until ctx is cancelled.
func (s *service) ReplaySpool(ctx context.Context) error {
	backoff := s.cfg.ReplayBackoff
	for {
		if ctx.Err() != nil {
			return nil
		}
		draft, ok, err := s.spool.Pop(ctx, s.cfg.ReplayPollWait)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn("spool pop failed", "error", err)
			if !sleep(ctx, backoff) {
				return nil
			}
			backoff = s.nextBackoff(backoff)
			continue
		}
		if !ok {
			continue
		}

		appendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.LogTimeout)
		entry, err := s.log.Append(appendCtx, draft)
		cancel()
		if err != nil {
			s.logger.Warn("spooled chat log replay failed", "requestId", draft.RequestID, "error", err)
			if pushErr := s.push(context.WithoutCancel(ctx), draft); pushErr != nil {
				s.logger.Error("chat log respool failed, record lost", "requestId", draft.RequestID, "error", pushErr)
				s.reporter.CaptureError(ctx, fmt.Errorf("respool chat log draft: %w", pushErr))
			}
			if !sleep(ctx, backoff) {
				return nil
			}
			backoff = s.nextBackoff(backoff)
			continue
		}
		backoff = s.cfg.ReplayBackoff
		s.logger.Info("spooled chat log replayed", "requestId", draft.RequestID, "logId", entry.ID)
	}
}

func (s *service) nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > s.cfg.ReplayMaxBackoff {
		return s.cfg.ReplayMaxBackoff
	}
	return next
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
