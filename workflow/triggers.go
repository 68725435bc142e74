package workflow

import (
	"strings"
)

// EventSchedule is the only event whose configuration is a list of entries.
const EventSchedule = "schedule"

// ParsedTrigger is one event of a workflow's on: block in normalized form.
// A schedule with several crons produces one ParsedTrigger per cron.
type ParsedTrigger struct {
	Event  string `json:"event"`
	Config Map    `json:"config"`
}

// eventsWithTypes lists the events that accept an activity types filter.
var eventsWithTypes = map[string]bool{
	"branch_protection_rule":      true,
	"check_run":                   true,
	"check_suite":                 true,
	"discussion":                  true,
	"discussion_comment":          true,
	"issue_comment":               true,
	"issues":                      true,
	"label":                       true,
	"merge_group":                 true,
	"milestone":                   true,
	"project":                     true,
	"project_card":                true,
	"project_column":              true,
	"pull_request":                true,
	"pull_request_review":         true,
	"pull_request_review_comment": true,
	"pull_request_target":         true,
	"registry_package":            true,
	"release":                     true,
	"watch":                       true,
	"workflow_run":                true,
}

// TriggerSupportsTypes reports whether event accepts a types: filter.
func TriggerSupportsTypes(event string) bool {
	return eventsWithTypes[event]
}

// ParseTriggers normalizes any accepted on: shape into a flat list.
//
//	on: push                      -> [push {}]
//	on: [push, pull_request]      -> [push {}] [pull_request {}]
//	on: {schedule: [{cron: a}, {cron: b}]}
//	                              -> [schedule {cron: a}] [schedule {cron: b}]
//
// Mapping order and list order are preserved.
func ParseTriggers(spec Value) []ParsedTrigger {
	var out []ParsedTrigger
	switch spec.Kind {
	case KindString:
		if spec.Str != "" {
			out = append(out, ParsedTrigger{Event: spec.Str, Config: Map{}})
		}
	case KindList:
		for _, item := range spec.List {
			switch item.Kind {
			case KindString:
				if item.Str != "" {
					out = append(out, ParsedTrigger{Event: item.Str, Config: Map{}})
				}
			case KindMap:
				out = appendTriggerMap(out, item.Map)
			}
		}
	case KindMap:
		out = appendTriggerMap(out, spec.Map)
	}
	if out == nil {
		return []ParsedTrigger{}
	}
	return out
}

func appendTriggerMap(out []ParsedTrigger, m Map) []ParsedTrigger {
	for _, e := range m {
		if e.Key == EventSchedule && e.Value.Kind == KindList {
			for _, entry := range e.Value.List {
				out = append(out, ParsedTrigger{Event: EventSchedule, Config: configOf(entry)})
			}
			continue
		}
		out = append(out, ParsedTrigger{Event: e.Key, Config: configOf(e.Value)})
	}
	return out
}

func configOf(v Value) Map {
	if v.Kind == KindMap {
		return v.Map.Clone()
	}
	return Map{}
}

// TriggersToOn is the inverse of ParseTriggers. It picks the most compact
// shape that round-trips. All schedule triggers are merged into one
// trailing schedule entry regardless of where they appeared in the input.
func TriggersToOn(triggers []ParsedTrigger) Value {
	if len(triggers) == 0 {
		return EmptyMap()
	}

	var events []ParsedTrigger
	var crons []Value
	for _, t := range triggers {
		if t.Event == EventSchedule {
			crons = append(crons, MapValue(t.Config.Clone()))
			continue
		}
		events = append(events, t)
	}

	if len(events) == 0 {
		return MapValue(Map{{Key: EventSchedule, Value: List(crons...)}})
	}

	if len(events) == 1 && len(crons) == 0 {
		t := events[0]
		if len(t.Config) == 0 {
			return String(t.Event)
		}
		return MapValue(Map{{Key: t.Event, Value: MapValue(t.Config.Clone())}})
	}

	list := make([]Value, 0, len(events)+1)
	for _, t := range events {
		if len(t.Config) == 0 {
			list = append(list, String(t.Event))
			continue
		}
		list = append(list, MapValue(Map{{Key: t.Event, Value: MapValue(t.Config.Clone())}}))
	}
	if len(crons) > 0 {
		list = append(list, MapValue(Map{{Key: EventSchedule, Value: List(crons...)}}))
	}
	return List(list...)
}

// triggerFilters is the display order of filter keys.
var triggerFilters = []string{
	"branches",
	"branches-ignore",
	"tags",
	"tags-ignore",
	"paths",
	"paths-ignore",
	"types",
	"workflows",
	"cron",
}

// FormatTrigger renders a trigger and its filters on one line, e.g.
// "push • branches: main, develop".
func FormatTrigger(t ParsedTrigger) string {
	parts := []string{t.Event}
	for _, key := range triggerFilters {
		v, ok := t.Config.Get(key)
		if !ok {
			continue
		}
		vals := v.StringList()
		if len(vals) == 0 {
			continue
		}
		parts = append(parts, key+": "+strings.Join(vals, ", "))
	}
	return strings.Join(parts, " • ")
}

// TriggerLabel returns a short label: the event plus its branches, tags or
// cron in parentheses.
func TriggerLabel(t ParsedTrigger) string {
	for _, key := range []string{"branches", "tags", "cron"} {
		v, ok := t.Config.Get(key)
		if !ok {
			continue
		}
		if vals := v.StringList(); len(vals) > 0 {
			return t.Event + " (" + strings.Join(vals, ", ") + ")"
		}
	}
	return t.Event
}
