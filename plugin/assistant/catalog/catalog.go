// Package catalog is the closed registry of actions the reasoning backend
// may request. The set is fixed at construction; there is no runtime
// registration, so a missing executor is a programming error caught by the
// dispatcher's exhaustive switch rather than a silent fallthrough.
package catalog

import (
	openai "github.com/sashabaranov/go-openai"
)

// Category drives the dispatcher's post-action behavior.
type Category string

const (
	// CategoryMutation creates, updates, or deletes calendar events.
	// Successful mutations get the affected month's summary appended.
	CategoryMutation Category = "mutation"

	// CategoryQuery reads events; results go through a second reasoning
	// pass to produce the natural-language reply.
	CategoryQuery Category = "query"

	// CategoryNavigation geocodes a destination and opens a pending
	// navigation session.
	CategoryNavigation Category = "navigation"
)

// Action names. The dispatcher switches exhaustively over these.
const (
	ActionAddEvent            = "add_event"
	ActionAddEventsByRange    = "add_events_by_range"
	ActionAddMultidayEvent    = "add_multiday_event"
	ActionDeleteEvent         = "delete_event"
	ActionDeleteEventsByRange = "delete_events_by_range"
	ActionEditEvent           = "edit_event"
	ActionGetTodayEvents      = "get_today_events"
	ActionGetWeekEvents       = "get_week_events"
	ActionSearchEvents        = "search_events"
	ActionNavigate            = "navigate"
	ActionNavigateToEvent     = "navigate_to_event"
)

// Param describes one parameter of an action.
type Param struct {
	Name        string
	Type        string // "string" or "object"
	Description string
	Required    bool
	// Properties holds nested params for object-typed parameters.
	Properties []Param
}

// ActionSpec describes one invocable action.
type ActionSpec struct {
	Name        string
	Category    Category
	Description string
	Params      []Param
}

// Catalog is the static action registry.
type Catalog struct {
	specs map[string]*ActionSpec
	order []string
}

// New builds the full catalog.
func New() *Catalog {
	c := &Catalog{specs: make(map[string]*ActionSpec)}
	for _, spec := range buildSpecs() {
		c.specs[spec.Name] = spec
		c.order = append(c.order, spec.Name)
	}
	return c
}

// Resolve looks up an action by name.
func (c *Catalog) Resolve(name string) (*ActionSpec, bool) {
	spec, ok := c.specs[name]
	return spec, ok
}

// Names returns every action name in registration order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.order...)
}

// Tools exports the catalog as the OpenAI tool schema handed to the
// reasoning backend on every Interpret pass.
func (c *Catalog) Tools() []openai.Tool {
	tools := make([]openai.Tool, 0, len(c.order))
	for _, name := range c.order {
		spec := c.specs[name]
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  paramsSchema(spec.Params),
			},
		})
	}
	return tools
}

func paramsSchema(params []Param) map[string]any {
	properties := map[string]any{}
	var required []string
	for _, p := range params {
		prop := map[string]any{
			"type":        p.Type,
			"description": p.Description,
		}
		if p.Type == "object" {
			nested := paramsSchema(p.Properties)
			prop["properties"] = nested["properties"]
			prop["additionalProperties"] = false
			if req, ok := nested["required"]; ok {
				prop["required"] = req
			}
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]any{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func buildSpecs() []*ActionSpec {
	return []*ActionSpec{
		{
			Name:        ActionAddEvent,
			Category:    CategoryMutation,
			Description: "캘린더에 새 일정을 추가합니다. 사용자가 일정 추가를 요청할 때 호출하세요.",
			Params: []Param{
				{Name: "title", Type: "string", Description: "일정 제목", Required: true},
				{Name: "date", Type: "string", Description: "날짜 (YYYY-MM-DD 형식). 상대 날짜는 절대 날짜로 변환", Required: true},
				{Name: "start_time", Type: "string", Description: "시작 시간 (HH:MM 형식, 24시간)", Required: true},
				{Name: "end_time", Type: "string", Description: "종료 시간 (HH:MM 형식, 24시간). 언급 없으면 생략"},
				{Name: "description", Type: "string", Description: "일정 설명. 언급 없으면 생략"},
			},
		},
		{
			Name:        ActionAddEventsByRange,
			Category:    CategoryMutation,
			Description: "날짜 구간에 시간이 있는 일정을 날짜마다 별도로 추가합니다. '24일~26일 오전 9시 회의', '월~금 매일 10시 스탠드업' 등 반복 미팅에 사용하세요. 시간이 없는 출장/휴가는 add_multiday_event를 쓰세요.",
			Params: []Param{
				{Name: "title", Type: "string", Description: "일정 제목", Required: true},
				{Name: "date_from", Type: "string", Description: "시작 날짜 (YYYY-MM-DD)", Required: true},
				{Name: "date_to", Type: "string", Description: "종료 날짜 (YYYY-MM-DD)", Required: true},
				{Name: "start_time", Type: "string", Description: "시작 시간 (HH:MM 형식, 24시간)", Required: true},
				{Name: "end_time", Type: "string", Description: "종료 시간 (HH:MM 형식, 24시간). 언급 없으면 생략"},
				{Name: "description", Type: "string", Description: "일정 설명. 언급 없으면 생략"},
			},
		},
		{
			Name:        ActionAddMultidayEvent,
			Category:    CategoryMutation,
			Description: "날짜 구간 전체를 아우르는 종일(시간 없음) 단일 이벤트 1개를 추가합니다. 출장, 휴가, 여행, 연차 등 기간 일정에 사용하세요. 시간이 언급된 경우는 add_events_by_range를 쓰세요.",
			Params: []Param{
				{Name: "title", Type: "string", Description: "일정 제목", Required: true},
				{Name: "date_from", Type: "string", Description: "시작 날짜 (YYYY-MM-DD)", Required: true},
				{Name: "date_to", Type: "string", Description: "종료 날짜 (YYYY-MM-DD)", Required: true},
				{Name: "description", Type: "string", Description: "일정 설명. 언급 없으면 생략"},
			},
		},
		{
			Name:        ActionDeleteEvent,
			Category:    CategoryMutation,
			Description: "캘린더에서 일정을 삭제합니다. 사용자가 삭제/취소/지워줘 등을 요청할 때 호출하세요.",
			Params: []Param{
				{Name: "title", Type: "string", Description: "삭제할 일정 제목 (부분 일치 가능). 제목을 모르면 빈 문자열", Required: true},
				{Name: "date", Type: "string", Description: "일정 날짜 (YYYY-MM-DD 형식)", Required: true},
				{Name: "original_time", Type: "string", Description: "기존 시작 시간 (HH:MM). 사용자가 시간으로 일정을 지칭한 경우"},
			},
		},
		{
			Name:        ActionDeleteEventsByRange,
			Category:    CategoryMutation,
			Description: "특정 기간의 일정을 일괄 삭제합니다. '2월 일정 다 지워줘', '이번 주 일정 전부 삭제' 등에 호출하세요.",
			Params: []Param{
				{Name: "date_from", Type: "string", Description: "삭제 시작일 (YYYY-MM-DD)", Required: true},
				{Name: "date_to", Type: "string", Description: "삭제 종료일 (YYYY-MM-DD). 월 단위 시 해당 월 마지막 날", Required: true},
				{Name: "keyword", Type: "string", Description: "특정 키워드 일정만 삭제. 전부 삭제 시 생략"},
			},
		},
		{
			Name:        ActionEditEvent,
			Category:    CategoryMutation,
			Description: "캘린더 일정을 수정합니다. 사용자가 변경/수정/바꿔/옮겨 등을 요청할 때 호출하세요.",
			Params: []Param{
				{Name: "title", Type: "string", Description: "수정할 일정 제목 (부분 일치 가능). 제목을 모르면 빈 문자열", Required: true},
				{Name: "date", Type: "string", Description: "현재 일정 날짜 (YYYY-MM-DD 형식)", Required: true},
				{Name: "original_time", Type: "string", Description: "기존 시작 시간 (HH:MM). 사용자가 시간으로 일정을 지칭한 경우"},
				{
					Name: "changes", Type: "object", Description: "변경할 내용. 변경하지 않는 항목은 생략", Required: true,
					Properties: []Param{
						{Name: "title", Type: "string", Description: "새 제목"},
						{Name: "date", Type: "string", Description: "새 날짜 (YYYY-MM-DD)"},
						{Name: "start_time", Type: "string", Description: "새 시작 시간 (HH:MM)"},
						{Name: "end_time", Type: "string", Description: "새 종료 시간 (HH:MM)"},
						{Name: "description", Type: "string", Description: "새 설명"},
					},
				},
			},
		},
		{
			Name:        ActionGetTodayEvents,
			Category:    CategoryQuery,
			Description: "오늘 일정을 조회합니다. '오늘 일정', '오늘 뭐 있어?' 등의 요청에 호출하세요.",
		},
		{
			Name:        ActionGetWeekEvents,
			Category:    CategoryQuery,
			Description: "이번 주 일정을 조회합니다. '이번 주 일정', '주간 일정', '이번주 뭐 있어?' 등의 요청에 호출하세요.",
		},
		{
			Name:        ActionSearchEvents,
			Category:    CategoryQuery,
			Description: "일정을 검색합니다. 특정 기간이나 키워드로 일정을 찾을 때 호출하세요. 예: '3월 일정', '회의 검색', '다음 주 뭐 있어?'",
			Params: []Param{
				{Name: "keyword", Type: "string", Description: "검색 키워드. 없으면 생략"},
				{Name: "date_from", Type: "string", Description: "검색 시작일 (YYYY-MM-DD)"},
				{Name: "date_to", Type: "string", Description: "검색 종료일 (YYYY-MM-DD). 월 단위 검색 시 해당 월 마지막 날"},
			},
		},
		{
			Name:        ActionNavigate,
			Category:    CategoryNavigation,
			Description: "길찾기를 제공합니다. 직접 장소명/주소를 지정하거나, 이전 대화의 캘린더 일정 장소로 이동할 때 사용하세요. 직접 장소를 말한 경우 destination 입력. '그 일정 가는 법'처럼 일정을 참조하는 경우 title과 date 입력.",
			Params: []Param{
				{Name: "destination", Type: "string", Description: "직접 지정 목적지 이름 또는 주소. 예: '강남역'. 사용자가 장소를 직접 말한 경우에만 입력"},
				{Name: "title", Type: "string", Description: "캘린더 일정 제목 또는 키워드. 일정을 참조하는 경우 입력"},
				{Name: "date", Type: "string", Description: "일정 날짜 (YYYY-MM-DD). 일정을 참조하는 경우 입력"},
			},
		},
		{
			Name:        ActionNavigateToEvent,
			Category:    CategoryNavigation,
			Description: "오늘 일정 중 장소가 있는 일정으로 길찾기를 시작합니다. '다음 일정 어떻게 가?', '회의 장소 가는 법' 등에 호출하세요.",
			Params: []Param{
				{Name: "title", Type: "string", Description: "일정 제목 필터. 없으면 다가오는 일정 중 장소가 있는 첫 일정"},
			},
		},
	}
}
