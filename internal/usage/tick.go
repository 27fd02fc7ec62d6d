package usage

import (
	"fmt"
	"time"

	"github.com/goodtune/browseback/internal/domain"
	"github.com/goodtune/browseback/internal/report"
)

// DefaultInterval is the tick cadence and the amount credited per tracked
// tick.
const DefaultInterval = time.Minute

// NotificationTitle is the title of every goal notification.
const NotificationTitle = "Time Limit Reached!"

// TickInput is the state a tick reads.
type TickInput struct {
	Now       time.Time
	ActiveURL string
	HasActive bool
	Goals     Goals
	Usage     DailyUsage
	Log       NotificationLog
	Allow     domain.Set
	Interval  time.Duration
}

// TickResult is what a tick decided. Usage and Log are the state to persist;
// they are only copies of the inputs when the matching Changed flag is set.
type TickResult struct {
	Outcome      Outcome
	Domain       string
	Usage        DailyUsage
	Log          NotificationLog
	Notification *Notification
	UsageChanged bool
	LogChanged   bool
}

// Tick credits one interval of foreground time to the active tab's domain
// and decides whether its goal notification fires. It performs no I/O and
// never modifies its inputs.
//
// Every tracked tick adds a full Interval, whether or not the tab was in the
// foreground for all of it.
func Tick(in TickInput) TickResult {
	res := TickResult{Usage: in.Usage, Log: in.Log}

	if !in.HasActive || in.ActiveURL == "" {
		res.Outcome = OutcomeNoActiveTab
		return res
	}
	if !domain.IsWebURL(in.ActiveURL) {
		res.Outcome = OutcomeNotWeb
		return res
	}

	res.Domain = domain.Of(in.ActiveURL)
	if in.Allow.Contains(res.Domain) {
		res.Outcome = OutcomeAllowed
		return res
	}

	goal, ok := in.Goals.Find(res.Domain)
	if !ok {
		res.Outcome = OutcomeNoGoal
		return res
	}

	interval := in.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	res.Usage = in.Usage.Clone()
	res.Usage[res.Domain] += interval
	res.UsageChanged = true
	res.Outcome = OutcomeTracked

	if res.Usage[res.Domain] >= goal.Limit && !NotifiedToday(in.Log, res.Domain, in.Now) {
		res.Log = in.Log.Clone()
		res.Log[res.Domain] = in.Now
		res.LogChanged = true
		res.Notification = GoalNotification(goal)
		res.Outcome = OutcomeNotified
	}

	return res
}

// GoalNotification builds the notification for an exceeded goal.
func GoalNotification(goal Goal) *Notification {
	return &Notification{
		ID:    "goalExceeded_" + goal.DomainName,
		Title: NotificationTitle,
		Message: fmt.Sprintf("You've spent over %s on %s today. Time for a break?",
			report.Humanize(goal.Limit), goal.DomainName),
	}
}
