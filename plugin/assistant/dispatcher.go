package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"

	"github.com/hyeonwoo/calmate/plugin/assistant/catalog"
	"github.com/hyeonwoo/calmate/plugin/assistant/history"
	"github.com/hyeonwoo/calmate/plugin/assistant/navsession"
	"github.com/hyeonwoo/calmate/plugin/assistant/resolver"
	"github.com/hyeonwoo/calmate/plugin/geo"
	"github.com/hyeonwoo/calmate/plugin/nlp"
	"github.com/hyeonwoo/calmate/server/service/calendar"
	"github.com/hyeonwoo/calmate/server/timezone"
)

// User-facing messages. Kept as constants so transports and tests agree
// on exact wording.
const (
	msgApology         = "죄송합니다. 일시적인 오류로 요청을 처리하지 못했습니다. 잠시 후 다시 시도해주세요."
	msgProcessingError = "처리 중 오류가 발생했습니다."
	msgUnauthenticated = "먼저 /start 로 인증을 완료해주세요."
	msgPermission      = "캘린더 접근 권한이 없습니다. 공유 캘린더 설정을 확인해주세요."
	msgNotFound        = "해당 일정을 찾을 수 없습니다."
	msgNoNavigation    = "길찾기 요청이 없습니다. 먼저 목적지를 알려주세요."
)

// ChatRoster lists the chats entitled to the daily digest.
type ChatRoster interface {
	AuthenticatedChats(ctx context.Context) ([]int64, error)
}

// Config wires the dispatcher's collaborators.
type Config struct {
	Calendar calendar.Service
	Reasoner nlp.Service
	Geocoder geo.Service
	Roster   ChatRoster

	Timezone *time.Location

	// RetryWait is the pause before the single reasoning retry.
	RetryWait time.Duration

	// NavTTL bounds how long a pending navigation waits for a
	// location share. Zero selects the navsession default.
	NavTTL time.Duration
}

// Dispatcher is the engine core. One instance serves every chat; all
// entry points are safe for concurrent use and messages from the same
// chat are processed strictly in arrival order.
type Dispatcher struct {
	catalog  *catalog.Catalog
	tools    []openai.Tool
	history  *history.Store
	nav      *navsession.Store
	resolver *resolver.Resolver
	reasoner nlp.Service
	cal      calendar.Service
	geocoder geo.Service
	roster   ChatRoster
	seq      *Sequencer
	loc      *time.Location

	retryWait time.Duration
	now       func() time.Time // test hook
}

// New creates a dispatcher.
func New(cfg *Config) *Dispatcher {
	loc := cfg.Timezone
	if loc == nil {
		loc = time.UTC
	}
	retryWait := cfg.RetryWait
	if retryWait == 0 {
		retryWait = time.Second
	}
	cat := catalog.New()
	return &Dispatcher{
		catalog:   cat,
		tools:     cat.Tools(),
		history:   history.NewStore(),
		nav:       navsession.NewStore(cfg.NavTTL),
		resolver:  resolver.New(cfg.Calendar, loc),
		reasoner:  cfg.Reasoner,
		cal:       cfg.Calendar,
		geocoder:  cfg.Geocoder,
		roster:    cfg.Roster,
		seq:       NewSequencer(),
		loc:       loc,
		retryWait: retryWait,
		now:       time.Now,
	}
}

// History exposes the conversation store, for /reset and inspection.
func (d *Dispatcher) History() *history.Store {
	return d.history
}

// Reset clears a chat's conversation history. It queues behind any
// in-flight message for the chat, so a reset can never be overwritten by
// a late append from an operation that was already running.
func (d *Dispatcher) Reset(chatID int64) {
	d.seq.Do(chatID, func() {
		d.history.Reset(chatID)
	})
}

// HandleMessage processes one natural-language message and returns the
// reply to deliver. Calls for the same chat are serialized in arrival
// order; different chats proceed independently.
func (d *Dispatcher) HandleMessage(ctx context.Context, chatID int64, text string) *Reply {
	var reply *Reply
	d.seq.Do(chatID, func() {
		requestID := uuid.NewString()
		start := time.Now()
		slog.Debug("message accepted", "request_id", requestID, "chat_id", chatID, "message_length", len(text))
		reply = d.process(ctx, chatID, text)
		slog.Info("message processed", "request_id", requestID, "chat_id", chatID, "duration_ms", time.Since(start).Milliseconds())
	})
	return reply
}

// process runs one message end to end. History is only appended once the
// outcome is known, so a crash mid-operation never leaves a dangling
// tool-call turn.
func (d *Dispatcher) process(ctx context.Context, chatID int64, text string) *Reply {
	userTurn := history.UserTurn(text)
	turns := append(d.history.Get(chatID), userTurn)

	result, err := d.interpret(ctx, turns)
	if err != nil {
		slog.Error("reasoning backend failed after retry", "chat_id", chatID, "error", err)
		d.history.Append(chatID, userTurn)
		return NewReply(msgApology)
	}

	if result.Call == nil {
		d.history.Append(chatID, userTurn, history.AssistantTurn(result.Text))
		return NewReply(result.Text)
	}

	call := result.Call
	callTurn := history.AssistantToolCallTurn(call.ID, call.Name, call.RawArgs)
	req := &catalog.Request{
		Name:       call.Name,
		Args:       call.Args,
		ToolCallID: call.ID,
		RawArgs:    call.RawArgs,
	}

	spec, err := d.catalog.Validate(req)
	if err != nil {
		var verr *catalog.ValidationError
		if errors.As(err, &verr) {
			slog.Warn("invalid action request", "chat_id", chatID, "action", call.Name, "problems", verr.Problems)
			msg := clarificationMessage(verr)
			d.history.Append(chatID, userTurn, callTurn,
				history.ToolResultTurn(call.ID, "매개변수 오류: "+strings.Join(verr.Problems, "; ")),
				history.AssistantTurn(msg))
			return NewReply(msg)
		}
		d.history.Append(chatID, userTurn)
		return NewReply(msgProcessingError)
	}

	switch spec.Category {
	case catalog.CategoryQuery:
		return d.runQuery(ctx, chatID, req, userTurn, callTurn, turns)
	case catalog.CategoryNavigation:
		return d.runNavigation(ctx, chatID, req, userTurn, callTurn)
	default:
		return d.runMutation(ctx, chatID, req, userTurn, callTurn)
	}
}

// HandleLocation consumes a shared location against the chat's pending
// navigation session.
func (d *Dispatcher) HandleLocation(_ context.Context, chatID int64, at Coordinates) *Reply {
	var reply *Reply
	d.seq.Do(chatID, func() {
		sess := d.nav.Take(chatID)
		if sess == nil {
			reply = &Reply{Messages: []string{msgNoNavigation}, RemoveKeyboard: true}
			return
		}
		url := geo.BuildDirectionsURL(at.Lat, at.Lng, sess.Lat, sess.Lng)
		reply = &Reply{
			Messages: []string{fmt.Sprintf(
				"🗺️ %s 길찾기\n\n📍 출발: 현재 위치\n📍 도착: %s\n\n👉 %s",
				sess.Destination, sess.Address, url)},
			RemoveKeyboard: true,
		}
	})
	return reply
}

// DailyDigest builds the morning schedule notice for every authenticated
// chat. Today's events are fetched once and the formatted text is reused
// for every recipient.
func (d *Dispatcher) DailyDigest(ctx context.Context) (map[int64]*Reply, error) {
	if d.roster == nil {
		return map[int64]*Reply{}, nil
	}
	chats, err := d.roster.AuthenticatedChats(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list digest recipients")
	}
	if len(chats) == 0 {
		return map[int64]*Reply{}, nil
	}

	start, end := timezone.DayWindow(d.now(), d.loc)
	events, err := d.cal.List(ctx, calendar.AnyChat, calendar.Range{Start: start, End: end})
	if err != nil {
		return nil, errors.Wrap(err, "fetch today's events for digest")
	}

	text := "🌅 좋은 아침입니다!\n\n" + formatToday(events, d.loc)
	out := make(map[int64]*Reply, len(chats))
	for _, chatID := range chats {
		out[chatID] = NewReply(text)
	}
	return out, nil
}

// Today renders today's schedule directly, for the /today command.
func (d *Dispatcher) Today(ctx context.Context, chatID int64) *Reply {
	start, end := timezone.DayWindow(d.now(), d.loc)
	events, err := d.cal.List(ctx, chatID, calendar.Range{Start: start, End: end})
	if err != nil {
		return NewReply(d.userMessage(classify(err)))
	}
	return NewReply(formatToday(events, d.loc))
}

// RunSweeper drops expired navigation sessions on a fixed interval until
// ctx is canceled. Take already treats expired sessions as absent; this
// only keeps the session map from accumulating abandoned entries.
func (d *Dispatcher) RunSweeper(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := d.nav.Sweep(); n > 0 {
				slog.Debug("expired navigation sessions removed", "count", n)
			}
		}
	}
}

// interpret asks the reasoning backend once, and once more after a short
// wait if the first attempt fails.
func (d *Dispatcher) interpret(ctx context.Context, turns []history.Turn) (*nlp.Result, error) {
	result, err := d.reasoner.Interpret(ctx, turns, d.tools)
	if err == nil {
		return result, nil
	}
	slog.Warn("reasoning request failed, retrying once", "wait", d.retryWait, "error", err)
	select {
	case <-time.After(d.retryWait):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return d.reasoner.Interpret(ctx, turns, d.tools)
}

// runMutation executes a calendar mutation, then appends the affected
// month's summary so the user sees the new state.
func (d *Dispatcher) runMutation(ctx context.Context, chatID int64, req *catalog.Request, userTurn, callTurn history.Turn) *Reply {
	text, mutated, err := d.executeMutation(ctx, chatID, req)
	if err != nil {
		engErr := classify(err)
		slog.Error("mutation failed", "chat_id", chatID, "action", req.Name, "error", engErr)
		msg := d.userMessage(engErr)
		d.history.Append(chatID, userTurn, callTurn, history.ToolResultTurn(req.ToolCallID, msg))
		return NewReply(msg)
	}

	d.history.Append(chatID, userTurn, callTurn, history.ToolResultTurn(req.ToolCallID, text))

	reply := NewReply(text)
	if mutated {
		if summary := d.monthSummary(ctx, chatID, req); summary != "" {
			reply.Messages = append(reply.Messages, summary)
		}
	}
	return reply
}

// runQuery executes a read, feeds the formatted result back to the
// reasoning backend, and replies with its prose summary.
func (d *Dispatcher) runQuery(ctx context.Context, chatID int64, req *catalog.Request, userTurn, callTurn history.Turn, turns []history.Turn) *Reply {
	text, err := d.executeQuery(ctx, chatID, req)
	if err != nil {
		engErr := classify(err)
		slog.Error("query failed", "chat_id", chatID, "action", req.Name, "error", engErr)
		msg := d.userMessage(engErr)
		d.history.Append(chatID, userTurn, callTurn, history.ToolResultTurn(req.ToolCallID, msg))
		return NewReply(msg)
	}

	resultTurn := history.ToolResultTurn(req.ToolCallID, text)
	summary, err := d.reasoner.Summarize(ctx, append(append(turns, callTurn), resultTurn))
	if err != nil {
		// The formatted list is a serviceable reply on its own.
		slog.Warn("summary pass failed, replying with raw listing", "chat_id", chatID, "error", err)
		summary = text
	}

	d.history.Append(chatID, userTurn, callTurn, resultTurn, history.AssistantTurn(summary))
	return NewReply(summary)
}

// runNavigation geocodes the destination and opens a pending session;
// the reply asks the user to share their location.
func (d *Dispatcher) runNavigation(ctx context.Context, chatID int64, req *catalog.Request, userTurn, callTurn history.Turn) *Reply {
	text, pending, err := d.executeNavigation(ctx, chatID, req)
	if err != nil {
		engErr := classify(err)
		slog.Error("navigation failed", "chat_id", chatID, "action", req.Name, "error", engErr)
		msg := d.userMessage(engErr)
		d.history.Append(chatID, userTurn, callTurn, history.ToolResultTurn(req.ToolCallID, msg))
		return NewReply(msg)
	}

	d.history.Append(chatID, userTurn, callTurn, history.ToolResultTurn(req.ToolCallID, text))
	return &Reply{Messages: []string{text}, RequestLocation: pending}
}

// Mutation executors

func (d *Dispatcher) executeMutation(ctx context.Context, chatID int64, req *catalog.Request) (text string, mutated bool, err error) {
	switch req.Name {
	case catalog.ActionAddEvent:
		return d.execAddEvent(ctx, chatID, req)
	case catalog.ActionAddEventsByRange:
		return d.execAddEventsByRange(ctx, chatID, req)
	case catalog.ActionAddMultidayEvent:
		return d.execAddMultidayEvent(ctx, chatID, req)
	case catalog.ActionDeleteEvent:
		return d.execDeleteEvent(ctx, chatID, req)
	case catalog.ActionDeleteEventsByRange:
		return d.execDeleteEventsByRange(ctx, chatID, req)
	case catalog.ActionEditEvent:
		return d.execEditEvent(ctx, chatID, req)
	}
	return "", false, errors.Errorf("no executor for mutation %s", req.Name)
}

func (d *Dispatcher) execAddEvent(ctx context.Context, chatID int64, req *catalog.Request) (string, bool, error) {
	start, end, err := d.parseEventTimes(req.StringArg("date"), req.StringArg("start_time"), req.StringArg("end_time"))
	if err != nil {
		return "", false, err
	}
	event := &calendar.Event{
		Title:       req.StringArg("title"),
		Description: req.StringArg("description"),
		Start:       start,
		End:         end,
	}
	if _, err := d.cal.Create(ctx, chatID, event); err != nil {
		return "", false, err
	}

	timeStr := req.StringArg("start_time")
	if et := req.StringArg("end_time"); et != "" {
		timeStr += " - " + et
	}
	text := fmt.Sprintf("✅ 일정이 추가되었습니다!\n\n📅 %s\n🕐 %s\n📝 %s",
		req.StringArg("date"), timeStr, event.Title)
	if event.Description != "" {
		text += "\n💬 " + event.Description
	}
	return text, true, nil
}

func (d *Dispatcher) execAddEventsByRange(ctx context.Context, chatID int64, req *catalog.Request) (string, bool, error) {
	from, err := timezone.ParseDate(req.StringArg("date_from"), d.loc)
	if err != nil {
		return "", false, err
	}
	to, err := timezone.ParseDate(req.StringArg("date_to"), d.loc)
	if err != nil {
		return "", false, err
	}
	if to.Before(from) {
		return "", false, errors.New("date_to before date_from")
	}

	count := 0
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		start, end, err := d.parseEventTimes(day.Format("2006-01-02"), req.StringArg("start_time"), req.StringArg("end_time"))
		if err != nil {
			return "", false, err
		}
		event := &calendar.Event{
			Title:       req.StringArg("title"),
			Description: req.StringArg("description"),
			Start:       start,
			End:         end,
		}
		if _, err := d.cal.Create(ctx, chatID, event); err != nil {
			if count > 0 {
				// Partial success still changed the calendar; report it.
				text := fmt.Sprintf("⚠️ %d개 일정만 추가되었습니다. 나머지는 오류로 실패했습니다.", count)
				slog.Error("range add partially failed", "chat_id", chatID, "created", count, "error", err)
				return text, true, nil
			}
			return "", false, err
		}
		count++
	}

	timeStr := req.StringArg("start_time")
	if et := req.StringArg("end_time"); et != "" {
		timeStr += " - " + et
	}
	text := fmt.Sprintf("✅ %d개 일정이 추가되었습니다!\n\n📅 %s ~ %s\n🕐 %s\n📝 %s",
		count, req.StringArg("date_from"), req.StringArg("date_to"), timeStr, req.StringArg("title"))
	if desc := req.StringArg("description"); desc != "" {
		text += "\n💬 " + desc
	}
	return text, true, nil
}

func (d *Dispatcher) execAddMultidayEvent(ctx context.Context, chatID int64, req *catalog.Request) (string, bool, error) {
	from, err := timezone.ParseDate(req.StringArg("date_from"), d.loc)
	if err != nil {
		return "", false, err
	}
	to, err := timezone.ParseDate(req.StringArg("date_to"), d.loc)
	if err != nil {
		return "", false, err
	}
	if to.Before(from) {
		return "", false, errors.New("date_to before date_from")
	}

	event := &calendar.Event{
		Title:       req.StringArg("title"),
		Description: req.StringArg("description"),
		Start:       from,
		End:         to.AddDate(0, 0, 1), // all-day end is exclusive
		AllDay:      true,
	}
	if _, err := d.cal.Create(ctx, chatID, event); err != nil {
		return "", false, err
	}

	text := fmt.Sprintf("✅ 일정이 추가되었습니다!\n\n📅 %s ~ %s\n📝 %s",
		req.StringArg("date_from"), req.StringArg("date_to"), event.Title)
	if event.Description != "" {
		text += "\n💬 " + event.Description
	}
	return text, true, nil
}

func (d *Dispatcher) execDeleteEvent(ctx context.Context, chatID int64, req *catalog.Request) (string, bool, error) {
	outcome, err := d.resolveTarget(ctx, chatID, req)
	if err != nil {
		return "", false, err
	}
	if !outcome.Resolved() {
		return "", false, newError(CodeAmbiguous, formatCandidates(outcome.Candidates, d.loc), nil)
	}

	if err := d.cal.Delete(ctx, chatID, outcome.Event.ID); err != nil {
		return "", false, err
	}
	return fmt.Sprintf("🗑️ 일정이 삭제되었습니다!\n\n📅 %s\n📝 %s",
		req.StringArg("date"), outcome.Event.Title), true, nil
}

func (d *Dispatcher) execDeleteEventsByRange(ctx context.Context, chatID int64, req *catalog.Request) (string, bool, error) {
	from, err := timezone.ParseDate(req.StringArg("date_from"), d.loc)
	if err != nil {
		return "", false, err
	}
	to, err := timezone.ParseDate(req.StringArg("date_to"), d.loc)
	if err != nil {
		return "", false, err
	}

	events, err := d.cal.List(ctx, chatID, calendar.Range{Start: from, End: to.AddDate(0, 0, 1)})
	if err != nil {
		return "", false, err
	}
	events = filterByKeyword(events, req.StringArg("keyword"))
	if len(events) == 0 {
		return "❌ 일정 삭제 실패\n해당 기간에 삭제할 일정이 없습니다.", false, nil
	}

	count := 0
	for _, ev := range events {
		if err := d.cal.Delete(ctx, chatID, ev.ID); err != nil {
			if count > 0 {
				slog.Error("range delete partially failed", "chat_id", chatID, "deleted", count, "error", err)
				return fmt.Sprintf("⚠️ %d개 일정만 삭제되었습니다. 나머지는 오류로 실패했습니다.", count), true, nil
			}
			return "", false, err
		}
		count++
	}

	text := fmt.Sprintf("🗑️ %d개 일정이 삭제되었습니다!\n\n📅 %s ~ %s",
		count, req.StringArg("date_from"), req.StringArg("date_to"))
	if kw := req.StringArg("keyword"); kw != "" {
		text += fmt.Sprintf("\n🔍 키워드: %q", kw)
	}
	return text, true, nil
}

func (d *Dispatcher) execEditEvent(ctx context.Context, chatID int64, req *catalog.Request) (string, bool, error) {
	outcome, err := d.resolveTarget(ctx, chatID, req)
	if err != nil {
		return "", false, err
	}
	if !outcome.Resolved() {
		return "", false, newError(CodeAmbiguous, formatCandidates(outcome.Candidates, d.loc), nil)
	}

	changes := req.ObjectArg("changes")
	patch, details, err := d.buildPatch(outcome.Event, changes)
	if err != nil {
		return "", false, err
	}

	updated, err := d.cal.Update(ctx, chatID, outcome.Event.ID, patch)
	if err != nil {
		return "", false, err
	}

	text := "✏️ 일정이 수정되었습니다!\n\n📝 " + updated.Title
	if len(details) > 0 {
		text += "\n\n변경사항:"
		for _, detail := range details {
			text += "\n• " + detail
		}
	}
	return text, true, nil
}

// buildPatch translates the model's "changes" object into an EventPatch.
// A new date or start time recomputes Start; End follows, defaulting to
// one hour after Start when no end time is given.
func (d *Dispatcher) buildPatch(ev *calendar.Event, changes map[string]any) (*calendar.EventPatch, []string, error) {
	patch := &calendar.EventPatch{}
	var details []string

	if v, ok := changes["title"].(string); ok && v != "" {
		patch.Title = &v
		details = append(details, "제목 → "+v)
	}
	if v, ok := changes["description"].(string); ok && v != "" {
		patch.Description = &v
		details = append(details, "설명 → "+v)
	}

	newDate, _ := changes["date"].(string)
	newStart, _ := changes["start_time"].(string)
	newEnd, _ := changes["end_time"].(string)
	if newDate == "" && newStart == "" && newEnd == "" {
		return patch, details, nil
	}

	date := ev.Start.In(d.loc).Format("2006-01-02")
	if newDate != "" {
		date = newDate
		details = append(details, "날짜 → "+newDate)
	}
	startClock := ev.Start.In(d.loc).Format("15:04")
	if newStart != "" {
		startClock = newStart
		details = append(details, "시작 → "+newStart)
	}
	endClock := newEnd
	if newEnd != "" {
		details = append(details, "종료 → "+newEnd)
	} else if newStart == "" && !ev.AllDay && !ev.End.IsZero() {
		// A date-only move shifts both clocks, keeping the event's
		// duration. The one-hour default applies only when the start
		// itself changes without a new end.
		endClock = ev.End.In(d.loc).Format("15:04")
	}

	start, end, err := d.parseEventTimes(date, startClock, endClock)
	if err != nil {
		return nil, nil, err
	}
	patch.Start = &start
	patch.End = &end
	return patch, details, nil
}

// Query executors

func (d *Dispatcher) executeQuery(ctx context.Context, chatID int64, req *catalog.Request) (string, error) {
	switch req.Name {
	case catalog.ActionGetTodayEvents:
		start, end := timezone.DayWindow(d.now(), d.loc)
		events, err := d.cal.List(ctx, chatID, calendar.Range{Start: start, End: end})
		if err != nil {
			return "", err
		}
		return formatToday(events, d.loc), nil

	case catalog.ActionGetWeekEvents:
		start, end := timezone.WeekWindow(d.now(), d.loc)
		events, err := d.cal.List(ctx, chatID, calendar.Range{Start: start, End: end})
		if err != nil {
			return "", err
		}
		return formatWeek(events, d.loc), nil

	case catalog.ActionSearchEvents:
		window, err := d.searchWindow(req)
		if err != nil {
			return "", err
		}
		events, err := d.cal.List(ctx, chatID, window)
		if err != nil {
			return "", err
		}
		// Keyword filtering happens here rather than in the backend
		// query, so match semantics stay consistent across backends.
		keyword := req.StringArg("keyword")
		events = filterByKeyword(events, keyword)
		return formatSearch(events, keyword, d.loc), nil
	}
	return "", errors.Errorf("no executor for query %s", req.Name)
}

// searchWindow derives the search range: explicit dates when given,
// otherwise the next 30 days.
func (d *Dispatcher) searchWindow(req *catalog.Request) (calendar.Range, error) {
	start, end := timezone.DayWindow(d.now(), d.loc)

	if from := req.StringArg("date_from"); from != "" {
		parsed, err := timezone.ParseDate(from, d.loc)
		if err != nil {
			return calendar.Range{}, err
		}
		start = parsed
	}
	if to := req.StringArg("date_to"); to != "" {
		parsed, err := timezone.ParseDate(to, d.loc)
		if err != nil {
			return calendar.Range{}, err
		}
		end = parsed.AddDate(0, 0, 1)
	} else {
		end = start.AddDate(0, 0, 30)
	}
	return calendar.Range{Start: start, End: end}, nil
}

// Navigation executors

func (d *Dispatcher) executeNavigation(ctx context.Context, chatID int64, req *catalog.Request) (text string, pending bool, err error) {
	switch req.Name {
	case catalog.ActionNavigate:
		return d.execNavigate(ctx, chatID, req)
	case catalog.ActionNavigateToEvent:
		return d.execNavigateToEvent(ctx, chatID, req)
	}
	return "", false, errors.Errorf("no executor for navigation %s", req.Name)
}

func (d *Dispatcher) execNavigate(ctx context.Context, chatID int64, req *catalog.Request) (string, bool, error) {
	destination := req.StringArg("destination")
	prefix := ""

	if destination == "" {
		// The model referenced a calendar event instead of naming a
		// place; resolve it and use its location.
		title := req.StringArg("title")
		if title == "" {
			return "목적지를 알려주세요.", false, nil
		}
		window := d.hintWindow(req.StringArg("date"))
		outcome, err := d.resolver.Resolve(ctx, chatID, resolver.Hint{Title: title}, window)
		if err != nil {
			return "", false, err
		}
		if !outcome.Resolved() {
			return "", false, newError(CodeAmbiguous, formatCandidates(outcome.Candidates, d.loc), nil)
		}
		destination = outcome.Event.Location
		if destination == "" {
			destination = outcome.Event.Title
		}
		prefix = fmt.Sprintf("📅 %s (%s)\n", outcome.Event.Title, eventTimeRange(outcome.Event, d.loc))
	}

	return d.openNavigation(ctx, chatID, destination, prefix)
}

func (d *Dispatcher) execNavigateToEvent(ctx context.Context, chatID int64, req *catalog.Request) (string, bool, error) {
	start, end := timezone.DayWindow(d.now(), d.loc)
	events, err := d.cal.List(ctx, chatID, calendar.Range{Start: start, End: end})
	if err != nil {
		return "", false, err
	}
	if len(events) == 0 {
		return "오늘 예정된 일정이 없습니다.", false, nil
	}

	titleFilter := req.StringArg("title")
	now := d.now()

	var target *calendar.Event
	for _, ev := range events {
		if ev.Location == "" {
			continue
		}
		if titleFilter != "" {
			if !strings.Contains(strings.ToLower(ev.Title), strings.ToLower(titleFilter)) {
				continue
			}
		} else if !ev.AllDay && ev.Start.Before(now) {
			// No filter: pick the nearest upcoming event.
			continue
		}
		target = ev
		break
	}
	if target == nil {
		if titleFilter != "" {
			return fmt.Sprintf("'%s' 일정을 찾을 수 없거나 장소 정보가 없습니다.", titleFilter), false, nil
		}
		return "장소 정보가 있는 다음 일정을 찾을 수 없습니다.", false, nil
	}

	prefix := fmt.Sprintf("📅 %s (%s)\n", target.Title, eventTimeRange(target, d.loc))
	return d.openNavigation(ctx, chatID, target.Location, prefix)
}

// openNavigation geocodes the destination and stores the pending
// session. A geocoding miss is a user-correctable outcome, not an error.
func (d *Dispatcher) openNavigation(ctx context.Context, chatID int64, destination, prefix string) (string, bool, error) {
	if d.geocoder == nil {
		return "길찾기 기능이 설정되지 않았습니다.", false, nil
	}
	place, err := d.geocoder.Geocode(ctx, destination)
	if err != nil {
		if errors.Is(err, geo.ErrNoResults) {
			return fmt.Sprintf("'%s'의 위치를 찾을 수 없습니다. 더 구체적인 주소나 장소명을 알려주세요.", destination), false, nil
		}
		return "", false, err
	}

	d.nav.Put(&navsession.Session{
		ChatID:      chatID,
		Destination: destination,
		Address:     place.Address,
		Lat:         place.Lat,
		Lng:         place.Lng,
	})

	text := fmt.Sprintf("%s📍 '%s' 위치를 찾았습니다!\n(%s)\n\n아래 버튼을 눌러 현재 위치를 공유해주세요.",
		prefix, destination, place.Address)
	return text, true, nil
}

// Shared helpers

// resolveTarget resolves the event a delete/edit request refers to,
// searching the hinted day.
func (d *Dispatcher) resolveTarget(ctx context.Context, chatID int64, req *catalog.Request) (*resolver.Outcome, error) {
	hint := resolver.Hint{
		Title: req.StringArg("title"),
		Time:  req.StringArg("original_time"),
	}
	window := d.hintWindow(req.StringArg("date"))
	return d.resolver.Resolve(ctx, chatID, hint, window)
}

// hintWindow is the day window of the hinted date, or today when the
// date is absent or malformed.
func (d *Dispatcher) hintWindow(date string) calendar.Range {
	base := d.now()
	if date != "" {
		if parsed, err := timezone.ParseDate(date, d.loc); err == nil {
			base = parsed
		}
	}
	start, end := timezone.DayWindow(base, d.loc)
	return calendar.Range{Start: start, End: end}
}

// parseEventTimes combines a civil date with start/end clocks. A missing
// end defaults to one hour after start.
func (d *Dispatcher) parseEventTimes(date, startClock, endClock string) (time.Time, time.Time, error) {
	day, err := timezone.ParseDate(date, d.loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	hour, minute, err := timezone.ParseClock(startClock)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, d.loc)

	end := start.Add(time.Hour)
	if endClock != "" {
		eh, em, err := timezone.ParseClock(endClock)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = time.Date(day.Year(), day.Month(), day.Day(), eh, em, 0, 0, d.loc)
		if !end.After(start) {
			// An end clock earlier than start means it crosses midnight.
			end = end.AddDate(0, 0, 1)
		}
	}
	return start, end, nil
}

// monthSummary fetches and formats the month a mutation touched.
// Best effort: a failure here never degrades the mutation's own reply.
func (d *Dispatcher) monthSummary(ctx context.Context, chatID int64, req *catalog.Request) string {
	date := req.StringArg("date")
	switch req.Name {
	case catalog.ActionAddEventsByRange, catalog.ActionAddMultidayEvent, catalog.ActionDeleteEventsByRange:
		date = req.StringArg("date_from")
	case catalog.ActionEditEvent:
		// A moved event should show its new month.
		if changes := req.ObjectArg("changes"); changes != nil {
			if v, ok := changes["date"].(string); ok && v != "" {
				date = v
			}
		}
	}
	if date == "" {
		return ""
	}
	anchor, err := timezone.ParseDate(date, d.loc)
	if err != nil {
		return ""
	}

	start, end := timezone.MonthWindow(anchor, d.loc)
	events, err := d.cal.List(ctx, chatID, calendar.Range{Start: start, End: end})
	if err != nil {
		slog.Warn("month summary fetch failed", "chat_id", chatID, "error", err)
		return ""
	}
	return formatMonthSummary(start, events, d.loc)
}

// filterByKeyword keeps events whose title or description contains the
// keyword, case-insensitively. An empty keyword keeps everything.
func filterByKeyword(events []*calendar.Event, keyword string) []*calendar.Event {
	needle := strings.ToLower(strings.TrimSpace(keyword))
	if needle == "" {
		return events
	}
	var out []*calendar.Event
	for _, ev := range events {
		if strings.Contains(strings.ToLower(ev.Title), needle) ||
			strings.Contains(strings.ToLower(ev.Description), needle) {
			out = append(out, ev)
		}
	}
	return out
}

// clarificationMessage asks the user to restate the request, naming the
// missing pieces.
func clarificationMessage(verr *catalog.ValidationError) string {
	return "요청을 이해했지만 필요한 정보가 부족합니다.\n- " +
		strings.Join(verr.Problems, "\n- ") +
		"\n\n빠진 내용을 포함해 다시 말씀해주세요."
}

// classify maps collaborator failures onto the engine error taxonomy.
func classify(err error) *EngineError {
	var engErr *EngineError
	if errors.As(err, &engErr) {
		return engErr
	}
	var verr *catalog.ValidationError
	if errors.As(err, &verr) {
		return newError(CodeValidation, clarificationMessage(verr), err)
	}
	switch {
	case errors.Is(err, calendar.ErrUnauthenticated):
		return newError(CodeUnauthenticated, "chat not authenticated", err)
	case errors.Is(err, calendar.ErrPermissionDenied):
		return newError(CodePermissionDenied, "calendar rejected operation", err)
	case errors.Is(err, calendar.ErrNotFound):
		return newError(CodeNotFound, "event not found", err)
	default:
		return newError(CodeBackendUnavailable, "backend call failed", err)
	}
}

// userMessage picks the user-facing text for a classified failure.
func (d *Dispatcher) userMessage(err *EngineError) string {
	switch err.Code {
	case CodeAmbiguous, CodeValidation:
		// The classified message is already user-facing Korean.
		return err.Message
	case CodeUnauthenticated:
		return msgUnauthenticated
	case CodePermissionDenied:
		return msgPermission
	case CodeNotFound:
		return msgNotFound
	default:
		return msgProcessingError
	}
}
