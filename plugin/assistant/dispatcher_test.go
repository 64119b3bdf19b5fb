package assistant

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyeonwoo/calmate/plugin/assistant/history"
	"github.com/hyeonwoo/calmate/plugin/geo"
	"github.com/hyeonwoo/calmate/plugin/nlp"
	"github.com/hyeonwoo/calmate/server/service/calendar"
)

var kst = time.FixedZone("KST", 9*60*60)

// Friday 2026-08-28 10:00 KST.
var testNow = time.Date(2026, 8, 28, 10, 0, 0, 0, kst)

type fixedRoster struct{ chats []int64 }

func (r *fixedRoster) AuthenticatedChats(context.Context) ([]int64, error) {
	return r.chats, nil
}

func newTestDispatcher(cal calendar.Service, reasoner nlp.Service, geocoder geo.Service, roster ChatRoster) *Dispatcher {
	d := New(&Config{
		Calendar:  cal,
		Reasoner:  reasoner,
		Geocoder:  geocoder,
		Roster:    roster,
		Timezone:  kst,
		RetryWait: time.Millisecond,
	})
	d.now = func() time.Time { return testNow }
	return d
}

func toolCall(name, rawArgs string, args map[string]any) *nlp.Result {
	return &nlp.Result{Call: &nlp.ToolCall{
		ID:      "call-1",
		Name:    name,
		RawArgs: rawArgs,
		Args:    args,
	}}
}

func TestHandleMessageTextResponse(t *testing.T) {
	reasoner := &nlp.MockService{Steps: []nlp.MockStep{
		{Result: &nlp.Result{Text: "안녕하세요! 일정 관리를 도와드릴게요."}},
	}}
	d := newTestDispatcher(calendar.NewMockService(), reasoner, &geo.MockService{}, nil)

	reply := d.HandleMessage(context.Background(), 1, "안녕")
	require.Equal(t, []string{"안녕하세요! 일정 관리를 도와드릴게요."}, reply.Messages)

	turns := d.History().Get(1)
	require.Len(t, turns, 2)
	assert.Equal(t, history.RoleUser, turns[0].Role)
	assert.Equal(t, history.RoleAssistant, turns[1].Role)
}

func TestReasoningRetry(t *testing.T) {
	t.Run("SecondAttemptSucceeds", func(t *testing.T) {
		reasoner := &nlp.MockService{Steps: []nlp.MockStep{
			{Err: errors.New("transport reset")},
			{Result: &nlp.Result{Text: "다시 연결되었습니다."}},
		}}
		d := newTestDispatcher(calendar.NewMockService(), reasoner, &geo.MockService{}, nil)

		reply := d.HandleMessage(context.Background(), 1, "안녕")
		assert.Equal(t, []string{"다시 연결되었습니다."}, reply.Messages)
		assert.Equal(t, 2, reasoner.InterpretCalls)
	})

	t.Run("BothAttemptsFailYieldApology", func(t *testing.T) {
		reasoner := &nlp.MockService{Steps: []nlp.MockStep{
			{Err: errors.New("transport reset")},
			{Err: errors.New("transport reset")},
		}}
		d := newTestDispatcher(calendar.NewMockService(), reasoner, &geo.MockService{}, nil)

		reply := d.HandleMessage(context.Background(), 1, "내일 회의 잡아줘")
		assert.Equal(t, []string{msgApology}, reply.Messages)
		assert.Equal(t, 2, reasoner.InterpretCalls)

		// The user's message is kept, but no tool turn was appended.
		turns := d.History().Get(1)
		require.Len(t, turns, 1)
		assert.Equal(t, history.RoleUser, turns[0].Role)
	})
}

func TestMutationFlow(t *testing.T) {
	addEventCall := func() *nlp.Result {
		return toolCall("add_event",
			`{"title":"팀 회의","date":"2026-08-29","start_time":"15:00"}`,
			map[string]any{"title": "팀 회의", "date": "2026-08-29", "start_time": "15:00"})
	}

	t.Run("SuccessAppendsMonthSummary", func(t *testing.T) {
		cal := calendar.NewMockService()
		reasoner := &nlp.MockService{Steps: []nlp.MockStep{{Result: addEventCall()}}}
		d := newTestDispatcher(cal, reasoner, &geo.MockService{}, nil)

		reply := d.HandleMessage(context.Background(), 1, "내일 3시에 팀 회의 잡아줘")
		require.Len(t, reply.Messages, 2)
		assert.Contains(t, reply.Messages[0], "✅ 일정이 추가되었습니다!")
		assert.Contains(t, reply.Messages[0], "팀 회의")
		assert.Contains(t, reply.Messages[1], "2026년 8월 전체 일정")
		assert.Contains(t, reply.Messages[1], "팀 회의")

		// user, assistant tool call, tool result.
		turns := d.History().Get(1)
		require.Len(t, turns, 3)
		assert.Equal(t, history.RoleTool, turns[2].Role)
		assert.Contains(t, turns[2].Content, "✅")
	})

	t.Run("PermissionDeniedHasNoMonthSummary", func(t *testing.T) {
		cal := calendar.NewMockService()
		cal.CreateErr = calendar.ErrPermissionDenied
		reasoner := &nlp.MockService{Steps: []nlp.MockStep{{Result: addEventCall()}}}
		d := newTestDispatcher(cal, reasoner, &geo.MockService{}, nil)

		reply := d.HandleMessage(context.Background(), 1, "내일 3시에 팀 회의 잡아줘")
		require.Len(t, reply.Messages, 1)
		assert.Equal(t, msgPermission, reply.Messages[0])

		turns := d.History().Get(1)
		require.Len(t, turns, 3)
		assert.Equal(t, msgPermission, turns[2].Content)
	})

	t.Run("RangeAddCreatesEachDay", func(t *testing.T) {
		cal := calendar.NewMockService()
		reasoner := &nlp.MockService{Steps: []nlp.MockStep{{Result: toolCall("add_events_by_range",
			`{"title":"스탠드업","date_from":"2026-08-31","date_to":"2026-09-02","start_time":"10:00"}`,
			map[string]any{
				"title": "스탠드업", "date_from": "2026-08-31",
				"date_to": "2026-09-02", "start_time": "10:00",
			})}}}
		d := newTestDispatcher(cal, reasoner, &geo.MockService{}, nil)

		reply := d.HandleMessage(context.Background(), 1, "월요일부터 수요일까지 매일 10시 스탠드업")
		assert.Contains(t, reply.Messages[0], "✅ 3개 일정이 추가되었습니다!")

		events, err := cal.List(context.Background(), 1, calendar.Range{
			Start: time.Date(2026, 8, 31, 0, 0, 0, 0, kst),
			End:   time.Date(2026, 9, 3, 0, 0, 0, 0, kst),
		})
		require.NoError(t, err)
		assert.Len(t, events, 3)
	})

	t.Run("MultidayCreatesSingleAllDayEvent", func(t *testing.T) {
		cal := calendar.NewMockService()
		reasoner := &nlp.MockService{Steps: []nlp.MockStep{{Result: toolCall("add_multiday_event",
			`{"title":"브라질 출장","date_from":"2026-09-01","date_to":"2026-09-05"}`,
			map[string]any{"title": "브라질 출장", "date_from": "2026-09-01", "date_to": "2026-09-05"})}}}
		d := newTestDispatcher(cal, reasoner, &geo.MockService{}, nil)

		reply := d.HandleMessage(context.Background(), 1, "9월 1일부터 5일까지 브라질 출장")
		assert.Contains(t, reply.Messages[0], "✅ 일정이 추가되었습니다!")

		events, err := cal.List(context.Background(), 1, calendar.Range{
			Start: time.Date(2026, 9, 1, 0, 0, 0, 0, kst),
			End:   time.Date(2026, 9, 7, 0, 0, 0, 0, kst),
		})
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.True(t, events[0].AllDay)
		// All-day end is exclusive: the 5-day stay ends at Sep 6 00:00.
		assert.Equal(t, time.Date(2026, 9, 6, 0, 0, 0, 0, kst), events[0].End.In(kst))
	})

	t.Run("DeleteResolvesBySubstring", func(t *testing.T) {
		cal := calendar.NewMockService()
		cal.Seed(
			&calendar.Event{Title: "Team Sync", Start: time.Date(2026, 8, 29, 15, 0, 0, 0, kst)},
			&calendar.Event{Title: "Dentist", Start: time.Date(2026, 8, 29, 17, 0, 0, 0, kst)},
		)
		reasoner := &nlp.MockService{Steps: []nlp.MockStep{{Result: toolCall("delete_event",
			`{"title":"sync","date":"2026-08-29"}`,
			map[string]any{"title": "sync", "date": "2026-08-29"})}}}
		d := newTestDispatcher(cal, reasoner, &geo.MockService{}, nil)

		reply := d.HandleMessage(context.Background(), 1, "내일 싱크 미팅 지워줘")
		assert.Contains(t, reply.Messages[0], "🗑️ 일정이 삭제되었습니다!")
		assert.Contains(t, reply.Messages[0], "Team Sync")
	})

	t.Run("AmbiguousDeleteListsCandidates", func(t *testing.T) {
		cal := calendar.NewMockService()
		cal.Seed(
			&calendar.Event{Title: "Meeting", Start: time.Date(2026, 8, 29, 10, 0, 0, 0, kst)},
			&calendar.Event{Title: "Meeting", Start: time.Date(2026, 8, 29, 15, 0, 0, 0, kst)},
		)
		reasoner := &nlp.MockService{Steps: []nlp.MockStep{{Result: toolCall("delete_event",
			`{"title":"Meeting","date":"2026-08-29"}`,
			map[string]any{"title": "Meeting", "date": "2026-08-29"})}}}
		d := newTestDispatcher(cal, reasoner, &geo.MockService{}, nil)

		reply := d.HandleMessage(context.Background(), 1, "내일 미팅 지워줘")
		require.Len(t, reply.Messages, 1)
		assert.Contains(t, reply.Messages[0], "명확하지 않습니다")
		assert.Contains(t, reply.Messages[0], "1. Meeting")
		assert.Contains(t, reply.Messages[0], "2. Meeting")

		// Nothing was deleted.
		events, err := cal.List(context.Background(), 1, calendar.Range{
			Start: time.Date(2026, 8, 29, 0, 0, 0, 0, kst),
			End:   time.Date(2026, 8, 30, 0, 0, 0, 0, kst),
		})
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})

	t.Run("DeleteInEmptyWindowReportsNoMatch", func(t *testing.T) {
		reasoner := &nlp.MockService{Steps: []nlp.MockStep{{Result: toolCall("delete_event",
			`{"title":"회의","date":"2026-08-29"}`,
			map[string]any{"title": "회의", "date": "2026-08-29"})}}}
		d := newTestDispatcher(calendar.NewMockService(), reasoner, &geo.MockService{}, nil)

		reply := d.HandleMessage(context.Background(), 1, "내일 회의 지워줘")
		require.Len(t, reply.Messages, 1)
		assert.Equal(t, "해당 날짜에 일치하는 일정을 찾을 수 없습니다.", reply.Messages[0])
	})

	t.Run("EditAppliesChanges", func(t *testing.T) {
		cal := calendar.NewMockService()
		cal.Seed(&calendar.Event{
			Title: "팀 회의",
			Start: time.Date(2026, 8, 29, 15, 0, 0, 0, kst),
			End:   time.Date(2026, 8, 29, 16, 0, 0, 0, kst),
		})
		reasoner := &nlp.MockService{Steps: []nlp.MockStep{{Result: toolCall("edit_event",
			`{"title":"팀 회의","date":"2026-08-29","changes":{"start_time":"16:00"}}`,
			map[string]any{
				"title": "팀 회의", "date": "2026-08-29",
				"changes": map[string]any{"start_time": "16:00"},
			})}}}
		d := newTestDispatcher(cal, reasoner, &geo.MockService{}, nil)

		reply := d.HandleMessage(context.Background(), 1, "팀 회의 4시로 옮겨줘")
		assert.Contains(t, reply.Messages[0], "✏️ 일정이 수정되었습니다!")
		assert.Contains(t, reply.Messages[0], "시작 → 16:00")

		ev, err := cal.Get(context.Background(), 1, "ev-1")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 8, 29, 16, 0, 0, 0, kst), ev.Start.In(kst))
		assert.Equal(t, time.Date(2026, 8, 29, 17, 0, 0, 0, kst), ev.End.In(kst))
	})

	t.Run("DateOnlyEditKeepsDuration", func(t *testing.T) {
		cal := calendar.NewMockService()
		cal.Seed(&calendar.Event{
			Title: "워크숍",
			Start: time.Date(2026, 8, 29, 15, 0, 0, 0, kst),
			End:   time.Date(2026, 8, 29, 18, 0, 0, 0, kst),
		})
		reasoner := &nlp.MockService{Steps: []nlp.MockStep{{Result: toolCall("edit_event",
			`{"title":"워크숍","date":"2026-08-29","changes":{"date":"2026-08-30"}}`,
			map[string]any{
				"title": "워크숍", "date": "2026-08-29",
				"changes": map[string]any{"date": "2026-08-30"},
			})}}}
		d := newTestDispatcher(cal, reasoner, &geo.MockService{}, nil)

		d.HandleMessage(context.Background(), 1, "워크숍 내일로 미뤄줘")

		ev, err := cal.Get(context.Background(), 1, "ev-1")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 8, 30, 15, 0, 0, 0, kst), ev.Start.In(kst))
		// The three-hour span moves with the date instead of collapsing
		// to the one-hour default.
		assert.Equal(t, time.Date(2026, 8, 30, 18, 0, 0, 0, kst), ev.End.In(kst))
	})

	t.Run("RangeDeleteFiltersKeywordInCore", func(t *testing.T) {
		cal := calendar.NewMockService()
		cal.Seed(
			&calendar.Event{Title: "팀 회의", Start: time.Date(2026, 8, 29, 10, 0, 0, 0, kst)},
			&calendar.Event{Title: "치과", Start: time.Date(2026, 8, 30, 11, 0, 0, 0, kst)},
		)
		reasoner := &nlp.MockService{Steps: []nlp.MockStep{{Result: toolCall("delete_events_by_range",
			`{"date_from":"2026-08-29","date_to":"2026-08-31","keyword":"회의"}`,
			map[string]any{"date_from": "2026-08-29", "date_to": "2026-08-31", "keyword": "회의"})}}}
		d := newTestDispatcher(cal, reasoner, &geo.MockService{}, nil)

		reply := d.HandleMessage(context.Background(), 1, "주말 회의 다 지워줘")
		assert.Contains(t, reply.Messages[0], "🗑️ 1개 일정이 삭제되었습니다!")

		_, err := cal.Get(context.Background(), 1, "ev-2")
		assert.NoError(t, err, "non-matching event must survive")
	})
}

func TestQueryFlow(t *testing.T) {
	t.Run("TwoPassSummaryShape", func(t *testing.T) {
		cal := calendar.NewMockService()
		cal.Seed(&calendar.Event{
			Title: "저녁 약속",
			Start: time.Date(2026, 8, 28, 19, 0, 0, 0, kst),
			End:   time.Date(2026, 8, 28, 20, 0, 0, 0, kst),
		})
		reasoner := &nlp.MockService{
			Steps:          []nlp.MockStep{{Result: toolCall("get_today_events", "{}", map[string]any{})}},
			SummarizeReply: "오늘은 19시부터 20시까지 저녁 약속이 있어요.",
		}
		d := newTestDispatcher(cal, reasoner, &geo.MockService{}, nil)

		reply := d.HandleMessage(context.Background(), 1, "오늘 뭐 있어?")
		require.Equal(t, []string{"오늘은 19시부터 20시까지 저녁 약속이 있어요."}, reply.Messages)

		// The summary pass saw the formatted tool result.
		require.Equal(t, 1, reasoner.SummarizeCalls)
		summarized := reasoner.SummarizedTurns[0]
		last := summarized[len(summarized)-1]
		assert.Equal(t, history.RoleTool, last.Role)
		assert.Contains(t, last.Content, "저녁 약속")
		assert.Contains(t, last.Content, "19:00 - 20:00")

		// user, tool call, tool result, assistant summary.
		turns := d.History().Get(1)
		require.Len(t, turns, 4)
		assert.Equal(t, history.RoleAssistant, turns[3].Role)
	})

	t.Run("SummaryFailureFallsBackToListing", func(t *testing.T) {
		cal := calendar.NewMockService()
		cal.Seed(&calendar.Event{
			Title: "저녁 약속",
			Start: time.Date(2026, 8, 28, 19, 0, 0, 0, kst),
		})
		reasoner := &nlp.MockService{
			Steps:        []nlp.MockStep{{Result: toolCall("get_today_events", "{}", map[string]any{})}},
			SummarizeErr: errors.New("transport reset"),
		}
		d := newTestDispatcher(cal, reasoner, &geo.MockService{}, nil)

		reply := d.HandleMessage(context.Background(), 1, "오늘 뭐 있어?")
		require.Len(t, reply.Messages, 1)
		assert.Contains(t, reply.Messages[0], "📅 오늘 일정")
		assert.Contains(t, reply.Messages[0], "저녁 약속")
	})

	t.Run("SearchFiltersKeywordInCore", func(t *testing.T) {
		cal := calendar.NewMockService()
		cal.Seed(
			&calendar.Event{Title: "팀 회의", Start: time.Date(2026, 9, 2, 10, 0, 0, 0, kst)},
			&calendar.Event{Title: "치과", Start: time.Date(2026, 9, 3, 11, 0, 0, 0, kst)},
		)
		reasoner := &nlp.MockService{
			Steps: []nlp.MockStep{{Result: toolCall("search_events",
				`{"keyword":"회의","date_from":"2026-09-01","date_to":"2026-09-30"}`,
				map[string]any{"keyword": "회의", "date_from": "2026-09-01", "date_to": "2026-09-30"})}},
			SummarizeReply: "9월에는 회의가 한 건 있습니다.",
		}
		d := newTestDispatcher(cal, reasoner, &geo.MockService{}, nil)

		d.HandleMessage(context.Background(), 1, "9월 회의 검색")

		summarized := reasoner.SummarizedTurns[0]
		last := summarized[len(summarized)-1]
		assert.Contains(t, last.Content, "팀 회의")
		assert.NotContains(t, last.Content, "치과")
		assert.Contains(t, last.Content, "1건")
	})

	t.Run("UnauthenticatedQuery", func(t *testing.T) {
		cal := calendar.NewMockService()
		cal.ListErr = calendar.ErrUnauthenticated
		reasoner := &nlp.MockService{Steps: []nlp.MockStep{
			{Result: toolCall("get_today_events", "{}", map[string]any{})},
		}}
		d := newTestDispatcher(cal, reasoner, &geo.MockService{}, nil)

		reply := d.HandleMessage(context.Background(), 1, "오늘 뭐 있어?")
		assert.Equal(t, []string{msgUnauthenticated}, reply.Messages)
	})
}

func TestNavigationFlow(t *testing.T) {
	t.Run("HappyPath", func(t *testing.T) {
		geocoder := &geo.MockService{Place: &geo.Place{
			Lat: 37.4979, Lng: 127.0276,
			Address: "대한민국 서울특별시 강남구 강남대로 396",
		}}
		reasoner := &nlp.MockService{Steps: []nlp.MockStep{{Result: toolCall("navigate",
			`{"destination":"강남역"}`, map[string]any{"destination": "강남역"})}}}
		d := newTestDispatcher(calendar.NewMockService(), reasoner, geocoder, nil)

		reply := d.HandleMessage(context.Background(), 1, "강남역 가는 길 알려줘")
		require.Len(t, reply.Messages, 1)
		assert.Contains(t, reply.Messages[0], "'강남역' 위치를 찾았습니다!")
		assert.True(t, reply.RequestLocation)

		// Sharing a location consumes the pending session.
		loc := d.HandleLocation(context.Background(), 1, Coordinates{Lat: 37.5665, Lng: 126.978})
		require.Len(t, loc.Messages, 1)
		assert.Contains(t, loc.Messages[0], "강남역 길찾기")
		assert.Contains(t, loc.Messages[0], "https://www.google.com/maps/dir/37.5665,126.978/37.4979,127.0276/")
		assert.True(t, loc.RemoveKeyboard)

		// And only once.
		again := d.HandleLocation(context.Background(), 1, Coordinates{Lat: 37.5665, Lng: 126.978})
		assert.Equal(t, []string{msgNoNavigation}, again.Messages)
	})

	t.Run("GeocodeMissAsksForBetterAddress", func(t *testing.T) {
		geocoder := &geo.MockService{Err: geo.ErrNoResults}
		reasoner := &nlp.MockService{Steps: []nlp.MockStep{{Result: toolCall("navigate",
			`{"destination":"어딘가"}`, map[string]any{"destination": "어딘가"})}}}
		d := newTestDispatcher(calendar.NewMockService(), reasoner, geocoder, nil)

		reply := d.HandleMessage(context.Background(), 1, "어딘가로 가는 길")
		assert.Contains(t, reply.Messages[0], "위치를 찾을 수 없습니다")
		assert.False(t, reply.RequestLocation)
	})

	t.Run("NavigateToEventUsesEventLocation", func(t *testing.T) {
		cal := calendar.NewMockService()
		cal.Seed(&calendar.Event{
			Title:    "고객 미팅",
			Location: "강남역",
			Start:    time.Date(2026, 8, 28, 15, 0, 0, 0, kst),
		})
		geocoder := &geo.MockService{Place: &geo.Place{Lat: 37.4979, Lng: 127.0276, Address: "서울 강남구"}}
		reasoner := &nlp.MockService{Steps: []nlp.MockStep{{Result: toolCall("navigate_to_event",
			`{}`, map[string]any{})}}}
		d := newTestDispatcher(cal, reasoner, geocoder, nil)

		reply := d.HandleMessage(context.Background(), 1, "다음 일정 어떻게 가?")
		assert.Contains(t, reply.Messages[0], "고객 미팅")
		assert.Contains(t, reply.Messages[0], "'강남역' 위치를 찾았습니다!")
		assert.True(t, reply.RequestLocation)
		assert.Equal(t, []string{"강남역"}, geocoder.Queries)
	})

	t.Run("LocationWithoutPendingSession", func(t *testing.T) {
		d := newTestDispatcher(calendar.NewMockService(), &nlp.MockService{}, &geo.MockService{}, nil)
		reply := d.HandleLocation(context.Background(), 1, Coordinates{Lat: 37.5, Lng: 127.0})
		assert.Equal(t, []string{msgNoNavigation}, reply.Messages)
		assert.True(t, reply.RemoveKeyboard)
	})
}

func TestValidationFailure(t *testing.T) {
	reasoner := &nlp.MockService{Steps: []nlp.MockStep{{Result: toolCall("add_event",
		`{"title":"회의"}`, map[string]any{"title": "회의"})}}}
	d := newTestDispatcher(calendar.NewMockService(), reasoner, &geo.MockService{}, nil)

	reply := d.HandleMessage(context.Background(), 1, "회의 잡아줘")
	require.Len(t, reply.Messages, 1)
	assert.Contains(t, reply.Messages[0], "필요한 정보가 부족합니다")
	assert.Contains(t, reply.Messages[0], "date")
	assert.Contains(t, reply.Messages[0], "start_time")

	// The failed call and the clarification are recorded so the model can
	// correct itself on the next turn.
	turns := d.History().Get(1)
	require.Len(t, turns, 4)
	assert.Equal(t, history.RoleTool, turns[2].Role)
	assert.Contains(t, turns[2].Content, "매개변수 오류")
	assert.Equal(t, history.RoleAssistant, turns[3].Role)
	assert.Contains(t, turns[3].Content, "필요한 정보가 부족합니다")
}

func TestDailyDigest(t *testing.T) {
	t.Run("FetchesOnceAndReusesText", func(t *testing.T) {
		cal := calendar.NewMockService()
		cal.Seed(&calendar.Event{
			Title: "아침 미팅",
			Start: time.Date(2026, 8, 28, 9, 30, 0, 0, kst),
		})
		d := newTestDispatcher(cal, &nlp.MockService{}, &geo.MockService{}, &fixedRoster{chats: []int64{1, 2, 3}})

		replies, err := d.DailyDigest(context.Background())
		require.NoError(t, err)
		require.Len(t, replies, 3)
		for _, chatID := range []int64{1, 2, 3} {
			require.Contains(t, replies, chatID)
			assert.Contains(t, replies[chatID].Messages[0], "아침 미팅")
		}
		assert.Equal(t, replies[1].Messages[0], replies[2].Messages[0])
	})

	t.Run("NoRecipients", func(t *testing.T) {
		d := newTestDispatcher(calendar.NewMockService(), &nlp.MockService{}, &geo.MockService{}, &fixedRoster{})
		replies, err := d.DailyDigest(context.Background())
		require.NoError(t, err)
		assert.Empty(t, replies)
	})
}

// blockingReasoner parks Interpret until released, to let tests observe
// an in-flight message.
type blockingReasoner struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingReasoner) Interpret(context.Context, []history.Turn, []openai.Tool) (*nlp.Result, error) {
	close(b.started)
	<-b.release
	return &nlp.Result{Text: "네"}, nil
}

func (b *blockingReasoner) Summarize(context.Context, []history.Turn) (string, error) {
	return "", errors.New("not scripted")
}

func TestResetWaitsForInFlightMessage(t *testing.T) {
	reasoner := &blockingReasoner{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	d := newTestDispatcher(calendar.NewMockService(), reasoner, &geo.MockService{}, nil)

	handled := make(chan struct{})
	go func() {
		d.HandleMessage(context.Background(), 1, "안녕")
		close(handled)
	}()
	<-reasoner.started

	resetDone := make(chan struct{})
	go func() {
		d.Reset(1)
		close(resetDone)
	}()

	// The reset queues behind the in-flight message instead of racing it.
	select {
	case <-resetDone:
		t.Fatal("reset ran while a message was still in flight")
	case <-time.After(20 * time.Millisecond):
	}

	close(reasoner.release)
	<-handled
	<-resetDone

	// The in-flight message's turns were appended first, then cleared.
	assert.Zero(t, d.History().Len(1))
}

func TestHistoryConsistencyAcrossChats(t *testing.T) {
	reasoner := &nlp.MockService{}
	d := newTestDispatcher(calendar.NewMockService(), reasoner, &geo.MockService{}, nil)

	done := make(chan struct{})
	for chat := int64(1); chat <= 4; chat++ {
		chat := chat
		go func() {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 10; i++ {
				d.HandleMessage(context.Background(), chat, "안녕")
			}
		}()
	}
	for i := 0; i < 4; i++ {
		<-done
	}

	// Each message appends exactly a user and an assistant turn.
	for chat := int64(1); chat <= 4; chat++ {
		assert.Equal(t, 20, d.History().Len(chat))
	}
}
