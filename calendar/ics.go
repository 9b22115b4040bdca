// Package calendar exports a profile's rotation as an iCalendar document so
// it can be subscribed to from any calendar app.
package calendar

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/warp/permiplan/generic"
	"github.com/warp/permiplan/rotation"
)

// ProductID identifies permiplan as the producer of exported calendars.
const ProductID = "-//permiplan//rotation planner//EN"

const uidDomain = "permiplan"

var kindTitles = map[rotation.Kind]string{
	rotation.KindWork:  "Work",
	rotation.KindRest:  "Rest",
	rotation.KindLeave: "Annual leave",
}

// Export renders one all-day event per block, one per holiday and one for
// the target wave. Blocks without days are skipped. stamp is written as the
// DTSTAMP of every event.
func Export(p rotation.Profile, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)
	cal.SetName(p.Name)

	for _, it := range rotation.ComputeTimeline(p.StartDate, p.Blocks, p.Holidays) {
		if it.Period().IsInverted() {
			continue
		}
		ev := cal.AddEvent(fmt.Sprintf("block-%s@%s", it.ID, uidDomain))
		ev.SetDtStampTime(stamp)
		setAllDay(ev, it.Start, it.End)
		ev.SetSummary(blockSummary(it))
		ev.SetProperty(ical.ComponentPropertyCategories, strings.ToUpper(string(it.Kind)))
		if desc := blockDescription(it); desc != "" {
			ev.SetDescription(desc)
		}
	}

	for _, h := range p.Holidays {
		ev := cal.AddEvent(fmt.Sprintf("holiday-%s@%s", h.ID, uidDomain))
		ev.SetDtStampTime(stamp)
		setAllDay(ev, h.Date, h.Date)
		ev.SetSummary(h.Name)
		ev.SetProperty(ical.ComponentPropertyCategories, "HOLIDAY")
	}

	if !p.TargetWaveDate.IsZero() {
		ev := cal.AddEvent(fmt.Sprintf("wave-%s@%s", p.ID, uidDomain))
		ev.SetDtStampTime(stamp)
		setAllDay(ev, p.TargetWaveDate, p.TargetWaveDate)
		ev.SetSummary("Target wave")
		ev.SetProperty(ical.ComponentPropertyCategories, "WAVE")
	}

	return cal.Serialize()
}

// FileName is the download name of a profile's calendar.
func FileName(p rotation.Profile) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, strings.TrimSpace(p.Name))
	name = strings.Trim(name, "-")
	if name == "" {
		name = "profile"
	}
	return "permiplan-" + name + ".ics"
}

// setAllDay writes an inclusive date range. DTEND of an all-day event is
// exclusive, hence the extra day.
func setAllDay(ev *ical.VEvent, start, end generic.TimePoint) {
	ev.SetAllDayStartAt(start.Time)
	ev.SetAllDayEndAt(end.AddDays(1).Time)
}

func blockSummary(it rotation.Item) string {
	title := kindTitles[it.Kind]
	if title == "" {
		title = string(it.Kind)
	}
	if it.Label != "" {
		title += ": " + it.Label
	}
	return fmt.Sprintf("%s (%d days)", title, it.DurationDays)
}

func blockDescription(it rotation.Item) string {
	if len(it.Conflicts) == 0 {
		return ""
	}
	names := make([]string, len(it.Conflicts))
	for i, h := range it.Conflicts {
		names[i] = h.Name
	}
	switch it.Notice() {
	case rotation.NoticeAlert:
		return "Working through: " + strings.Join(names, ", ")
	default:
		return "Free for: " + strings.Join(names, ", ")
	}
}
