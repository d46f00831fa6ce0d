// Package schedule converts between user-facing local feeding times and
// the UTC plan list the device stores, and decides when a push to the
// device is actually needed.
package schedule

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/anicoll/petlibro-integration/internal/pkg/petlibro"
)

// ErrPlanNotFound reports that no plan matched the given execution time.
var ErrPlanNotFound = errors.New("no plan with that execution time")

// Entry is one desired feeding in local wall-clock time.
type Entry struct {
	Time        string `json:"time"`
	Portions    int    `json:"portions"`
	PlanID      int    `json:"planId,omitempty"`
	EnableAudio bool   `json:"enableAudio,omitempty"`
	AudioTimes  int    `json:"audioTimes,omitempty"`
}

func parseClock(s string) (int, int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}

// LocalToUTC shifts an HH:MM time from the given UTC offset (signed
// hours) to UTC, wrapping across midnight.
func LocalToUTC(clock string, offsetHours int) (string, error) {
	h, m, err := parseClock(clock)
	if err != nil {
		return "", err
	}
	h = ((h-offsetHours)%24 + 24) % 24
	return fmt.Sprintf("%02d:%02d", h, m), nil
}

// UTCToLocal is the inverse of LocalToUTC.
func UTCToLocal(clock string, offsetHours int) (string, error) {
	return LocalToUTC(clock, -offsetHours)
}

// BuildDevicePlans converts desired local entries into device plans in
// UTC. Unparseable entries are skipped with a warning so one bad entry
// does not block the rest; portion counts below one default to one.
func BuildDevicePlans(entries []Entry, offsetHours int) []petlibro.FeedingPlan {
	plans := make([]petlibro.FeedingPlan, 0, len(entries))
	for _, e := range entries {
		utc, err := LocalToUTC(e.Time, offsetHours)
		if err != nil {
			zap.L().Warn("skipping invalid schedule entry", zap.String("time", e.Time), zap.Error(err))
			continue
		}
		portions := e.Portions
		if portions < 1 {
			portions = 1
		}
		plans = append(plans, petlibro.FeedingPlan{
			GrainNum:      portions,
			ExecutionTime: utc,
			PlanID:        e.PlanID,
			EnableAudio:   e.EnableAudio,
			AudioTimes:    e.AudioTimes,
		})
	}
	return plans
}

// LocalView renders device plans back into local entries for display.
func LocalView(plans []petlibro.FeedingPlan, offsetHours int) []Entry {
	return lo.Map(plans, func(p petlibro.FeedingPlan, _ int) Entry {
		local, err := UTCToLocal(p.ExecutionTime, offsetHours)
		if err != nil {
			local = p.ExecutionTime
		}
		return Entry{
			Time:        local,
			Portions:    p.GrainNum,
			PlanID:      p.PlanID,
			EnableAudio: p.EnableAudio,
			AudioTimes:  p.AudioTimes,
		}
	})
}

type planKey struct {
	time     string
	portions int
}

// Equal compares two plan lists by what they make the device do: the set
// of (execution time, portions) pairs. Identifiers, audio settings and
// ordering do not matter.
func Equal(a, b []petlibro.FeedingPlan) bool {
	keys := func(plans []petlibro.FeedingPlan) []planKey {
		ks := lo.Map(plans, func(p petlibro.FeedingPlan, _ int) planKey {
			return planKey{time: p.ExecutionTime, portions: p.GrainNum}
		})
		sort.Slice(ks, func(i, j int) bool {
			if ks[i].time != ks[j].time {
				return ks[i].time < ks[j].time
			}
			return ks[i].portions < ks[j].portions
		})
		return ks
	}
	ka, kb := keys(a), keys(b)
	if len(ka) != len(kb) {
		return false
	}
	for i := range ka {
		if ka[i] != kb[i] {
			return false
		}
	}
	return true
}

// Renumber assigns sequential identifiers starting at 1 to plans that
// carry none, leaving existing identifiers alone.
func Renumber(plans []petlibro.FeedingPlan) []petlibro.FeedingPlan {
	next := 1
	for i := range plans {
		if plans[i].PlanID == 0 {
			plans[i].PlanID = next
		}
		next = plans[i].PlanID + 1
	}
	return plans
}

// UpdateByTime overwrites the portions and audio settings of the first
// plan whose local execution time matches. With duplicate times the first
// occurrence wins.
func UpdateByTime(plans []petlibro.FeedingPlan, localTime string, entry Entry, offsetHours int) error {
	utc, err := LocalToUTC(localTime, offsetHours)
	if err != nil {
		return err
	}
	for i := range plans {
		if plans[i].ExecutionTime != utc {
			continue
		}
		if entry.Portions >= 1 {
			plans[i].GrainNum = entry.Portions
		}
		plans[i].EnableAudio = entry.EnableAudio
		plans[i].AudioTimes = entry.AudioTimes
		return nil
	}
	return fmt.Errorf("%w: %s", ErrPlanNotFound, localTime)
}

// Plan reconciles desired local entries against the device's current
// plans. It returns the plans to push and whether a push is needed at
// all; an equal schedule (ignoring order and identifiers) means no write.
func Plan(desired []Entry, current []petlibro.FeedingPlan, offsetHours int) ([]petlibro.FeedingPlan, bool) {
	next := BuildDevicePlans(desired, offsetHours)
	if Equal(next, current) {
		return nil, false
	}
	return Renumber(next), true
}
