package cli

import (
	"fmt"
	"time"
)

// SweepCmd runs one expiration sweep and prints its report.
type SweepCmd struct {
	Date string `help:"Reference day (YYYY-MM-DD); defaults to today." placeholder:"YYYY-MM-DD"`
}

func (c *SweepCmd) Run(app *Context) error {
	reference, err := parseReference(c.Date, app.Config.Location, time.Now())
	if err != nil {
		return err
	}

	report, err := app.Sweep.Run(app.Ctx, reference)
	if err != nil {
		return err
	}
	fmt.Printf("Sweep for %s: %d expired, %d closed, %d penalized (%d points), %d failed\n",
		report.Reference.Format("2006-01-02"), report.Expired, report.Deactivated,
		report.Penalized, report.PointsDebited, report.Failed)
	if report.Failed > 0 {
		return fmt.Errorf("%d plans failed, see log", report.Failed)
	}
	return nil
}

func parseReference(raw string, loc *time.Location, now time.Time) (time.Time, error) {
	if raw == "" {
		return now, nil
	}
	if loc == nil {
		loc = time.Local
	}
	day, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q, expected YYYY-MM-DD", raw)
	}
	return day, nil
}
