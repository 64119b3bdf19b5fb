package assistant

import (
	"fmt"
	"strings"
	"time"

	"github.com/hyeonwoo/calmate/server/service/calendar"
)

var shortWeekdays = []string{"일", "월", "화", "수", "목", "금", "토"}

func shortWeekday(t time.Time) string {
	return shortWeekdays[int(t.Weekday())]
}

// eventTimeRange renders an event's time portion, "종일" for date-only
// events.
func eventTimeRange(ev *calendar.Event, loc *time.Location) string {
	if ev.AllDay {
		return "종일"
	}
	s := ev.Start.In(loc).Format("15:04")
	if ev.End.IsZero() {
		return s
	}
	return s + " - " + ev.End.In(loc).Format("15:04")
}

// formatEventList renders events grouped by date with a heading line.
// Shared by today/week/search replies and the post-mutation month
// summary; the same text is also fed back into history as the tool
// result so the model can answer follow-up questions about it.
func formatEventList(heading string, events []*calendar.Event, loc *time.Location) string {
	if len(events) == 0 {
		return heading + ": 없음"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d건):", heading, len(events))

	currentDate := ""
	for _, ev := range events {
		start := ev.Start.In(loc)
		dateStr := start.Format("2006-01-02")
		if dateStr != currentDate {
			currentDate = dateStr
			fmt.Fprintf(&b, "\n\n📆 %s (%s)", dateStr, shortWeekday(start))
		}
		title := ev.Title
		if title == "" {
			title = "(제목 없음)"
		}
		fmt.Fprintf(&b, "\n  🕐 %s - %s", eventTimeRange(ev, loc), title)
		if ev.Location != "" {
			fmt.Fprintf(&b, "\n     📍 %s", ev.Location)
		}
		if ev.Description != "" {
			fmt.Fprintf(&b, "\n     💬 %s", ev.Description)
		}
	}
	return b.String()
}

// formatToday renders the reply for a today query.
func formatToday(events []*calendar.Event, loc *time.Location) string {
	return formatEventList("📅 오늘 일정", events, loc)
}

// formatWeek renders the reply for a this-week query.
func formatWeek(events []*calendar.Event, loc *time.Location) string {
	return formatEventList("📅 이번 주 일정", events, loc)
}

// formatSearch renders search results, naming the keyword when given.
func formatSearch(events []*calendar.Event, keyword string, loc *time.Location) string {
	heading := "🔍 검색 결과"
	if keyword != "" {
		heading = fmt.Sprintf("🔍 '%s' 검색 결과", keyword)
	}
	return formatEventList(heading, events, loc)
}

// formatMonthSummary renders the affected month's full schedule, shown
// after every successful mutation so the user sees the new state.
func formatMonthSummary(month time.Time, events []*calendar.Event, loc *time.Location) string {
	heading := fmt.Sprintf("📋 %d년 %d월 전체 일정", month.Year(), int(month.Month()))
	return formatEventList(heading, events, loc)
}

// formatCandidates lists ambiguous resolver candidates so the user can
// pick one.
func formatCandidates(candidates []*calendar.Event, loc *time.Location) string {
	if len(candidates) == 0 {
		return "해당 날짜에 일치하는 일정을 찾을 수 없습니다."
	}
	var b strings.Builder
	b.WriteString("어떤 일정을 말씀하시는지 명확하지 않습니다. 해당하는 일정:\n")
	for i, ev := range candidates {
		title := ev.Title
		if title == "" {
			title = "(제목 없음)"
		}
		start := ev.Start.In(loc)
		fmt.Fprintf(&b, "\n%d. %s (%s %s)", i+1, title, start.Format("2006-01-02"), eventTimeRange(ev, loc))
	}
	b.WriteString("\n\n제목이나 시간으로 다시 알려주세요.")
	return b.String()
}
