package attendance

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// ENGINE - Clock-in / clock-out state machine and admin override path
// =============================================================================

// Engine evaluates clock events against the policy and the stored record for
// the staff-day. Every operation takes the current instant explicitly.
type Engine struct {
	policy  PolicyConfig
	wages   WageCalculator
	records RecordStore
	holiday HolidayStore
	roster  Roster
	log     *zap.Logger

	// NewID generates record identifiers.
	NewID func() string
}

// NewEngine wires the engine to a store. A nil logger disables logging.
func NewEngine(policy PolicyConfig, store Store, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		policy:  policy,
		wages:   NewWageCalculator(policy),
		records: store,
		holiday: store,
		roster:  store,
		log:     logger.Named("attendance"),
		NewID:   uuid.NewString,
	}
}

func (e *Engine) Policy() PolicyConfig { return e.policy }
func (e *Engine) Wages() WageCalculator { return e.wages }
func (e *Engine) Location() *time.Location { return e.policy.location() }

// =============================================================================
// CLOCK IN
// =============================================================================

type ClockInRequest struct {
	Staff     string // email, resolved by the identity provider
	StaffName string // optional, looked up in the roster when empty
	Now       time.Time
	Distance  float64 // metres to site, from the geofence sampler
	Reason    string  // declared non-workday reason
}

// ClockIn creates the staff-day record. Preconditions are checked in order:
// no record yet, inside the geofence, non-workday reason, late cutoff.
func (e *Engine) ClockIn(ctx context.Context, req ClockInRequest) (*Record, error) {
	loc := e.policy.location()
	now := req.Now.In(loc)
	today := DateOf(now, loc)
	logger := e.log.With(zap.String("op", "clock_in"), zap.String("staff", req.Staff), zap.Stringer("date", today))

	existing, err := e.records.GetRecord(ctx, req.Staff, today)
	if err != nil {
		return nil, e.unavailable(logger, "load record", err)
	}
	if existing != nil {
		return nil, e.reject(logger, &AlreadyProcessedError{Staff: req.Staff, Date: today, State: existing.State()})
	}

	if !(req.Distance <= e.policy.GeofenceRadius) {
		return nil, e.reject(logger, &OutOfRangeError{Distance: req.Distance, Radius: e.policy.GeofenceRadius})
	}

	day := e.classify(ctx, logger, today)
	reason := strings.TrimSpace(req.Reason)
	if day.IsWorkday() {
		if now.Hour() >= e.policy.LateLimitHour {
			return nil, e.reject(logger, &LateCutoffError{At: now, CutoffHour: e.policy.LateLimitHour})
		}
		reason = ""
	} else if err := e.checkNonWorkdayReason(reason); err != nil {
		return nil, e.reject(logger, err)
	}

	rec := Record{
		ID:               e.NewID(),
		StaffEmail:       req.Staff,
		StaffName:        e.staffName(ctx, req.Staff, req.StaffName),
		Date:             today,
		CheckIn:          &now,
		Category:         CategoryNormal,
		NonWorkdayReason: reason,
		Wage:             ZeroWage(),
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := e.records.InsertIfAbsent(ctx, rec); err != nil {
		if errors.Is(err, ErrDuplicateWrite) {
			return nil, e.reject(logger, &AlreadyProcessedError{
				Staff: req.Staff, Date: today, State: StateCheckedIn, RaceLost: true,
			})
		}
		return nil, e.unavailable(logger, "insert record", err)
	}

	logger.Info("clocked in",
		zap.Time("at", now),
		zap.String("day_kind", string(day.Kind)),
		zap.Float64("distance_m", req.Distance),
	)
	return &rec, nil
}

func (e *Engine) checkNonWorkdayReason(reason string) error {
	if reason == "" {
		if e.policy.RequireNonWorkdayReason {
			return &ReasonRequiredError{Kind: ReasonNonWorkday, Allowed: e.policy.NonWorkdayReasons}
		}
		return nil
	}
	if len(e.policy.NonWorkdayReasons) > 0 && !e.policy.IsDeclaredReason(reason) {
		return &ReasonRequiredError{Kind: ReasonNonWorkday, Given: reason, Allowed: e.policy.NonWorkdayReasons}
	}
	return nil
}

// =============================================================================
// CLOCK OUT
// =============================================================================

type ClockOutRequest struct {
	Staff  string
	Now    time.Time
	Reason string // early-leave reason
}

// ClockOut completes the staff-day. The minimum-hours floor is not waivable;
// before the early-leave hour a reason is required.
func (e *Engine) ClockOut(ctx context.Context, req ClockOutRequest) (*Record, error) {
	loc := e.policy.location()
	now := req.Now.In(loc)
	today := DateOf(now, loc)
	logger := e.log.With(zap.String("op", "clock_out"), zap.String("staff", req.Staff), zap.Stringer("date", today))

	existing, err := e.records.GetRecord(ctx, req.Staff, today)
	if err != nil {
		return nil, e.unavailable(logger, "load record", err)
	}
	switch st := existing.State(); st {
	case StateNone:
		return nil, e.reject(logger, &NotCheckedInError{Staff: req.Staff, Date: today})
	case StateCheckedIn:
	default:
		return nil, e.reject(logger, &AlreadyProcessedError{Staff: req.Staff, Date: today, State: st})
	}

	minWork := e.policy.minWork()
	elapsed := now.Sub(*existing.CheckIn)
	if elapsed < minWork {
		remaining := int(math.Ceil(float64(minWork-elapsed) / float64(time.Minute)))
		return nil, e.reject(logger, &BelowMinimumHoursError{
			Elapsed: elapsed, Minimum: minWork, RemainingMinutes: remaining,
		})
	}

	reason := strings.TrimSpace(req.Reason)
	if now.Hour() < e.policy.EarlyLeaveHour && reason == "" {
		return nil, e.reject(logger, &ReasonRequiredError{Kind: ReasonEarlyLeave})
	}

	next := *existing
	next.CheckOut = &now
	next.Overtime = now.Hour() >= e.policy.OvertimeHour
	next.Wage = e.wages.Compute(*existing.CheckIn, now)
	switch {
	case reason != "":
		next.Note = joinNote(next.Note, reason)
	case next.Overtime && e.policy.AutoOvertimeNote && next.Note == "":
		next.Note = e.policy.OvertimeNote
	}
	next.Version = existing.Version + 1
	next.UpdatedAt = now

	if err := e.records.SwapRecord(ctx, *existing, next); err != nil {
		if errors.Is(err, ErrDuplicateWrite) {
			return nil, e.reject(logger, &AlreadyProcessedError{
				Staff: req.Staff, Date: today, State: StateCheckedOut, RaceLost: true,
			})
		}
		return nil, e.unavailable(logger, "swap record", err)
	}

	logger.Info("clocked out",
		zap.Time("at", now),
		zap.Duration("elapsed", elapsed),
		zap.Stringer("payable_hours", next.Wage.PayableHours),
		zap.Bool("overtime", next.Overtime),
	)
	return &next, nil
}

func joinNote(existing, add string) string {
	if existing == "" {
		return add
	}
	return existing + "; " + add
}

// =============================================================================
// ADMIN OVERRIDE
// =============================================================================

// AdminEdit is an operator correction. It bypasses the state machine but not
// the category/timestamp consistency rules.
type AdminEdit struct {
	StaffEmail       string
	StaffName        string
	Date             Date
	Category         Category
	CheckIn          *time.Time
	CheckOut         *time.Time
	Note             string
	TaskList         string
	NonWorkdayReason string

	// Now stamps UpdatedAt (and CreatedAt for a new record).
	Now time.Time
}

// AdminUpsert stores the edit as the staff-day record, replacing any existing
// one. LEAVE and SICK pin both timestamps to the date's sentinel midnight and
// carry zero pay.
func (e *Engine) AdminUpsert(ctx context.Context, edit AdminEdit) (*Record, error) {
	logger := e.log.With(zap.String("op", "admin_upsert"), zap.String("staff", edit.StaffEmail), zap.Stringer("date", edit.Date))

	rec, err := e.buildAdminRecord(ctx, edit)
	if err != nil {
		return nil, e.reject(logger, err)
	}

	stored, err := e.records.UpsertRecord(ctx, rec)
	if err != nil {
		return nil, e.unavailable(logger, "upsert record", err)
	}

	logger.Info("record corrected", zap.String("category", string(stored.Category)), zap.String("id", stored.ID))
	return &stored, nil
}

func (e *Engine) buildAdminRecord(ctx context.Context, edit AdminEdit) (Record, error) {
	loc := e.policy.location()

	if strings.TrimSpace(edit.StaffEmail) == "" {
		return Record{}, &ConsistencyViolationError{Field: "staff_email", Message: "staff is required"}
	}
	if edit.Date.IsZero() {
		return Record{}, &ConsistencyViolationError{Field: "date", Message: "date is required"}
	}
	if !edit.Category.Valid() {
		return Record{}, &ConsistencyViolationError{Field: "category", Message: "unknown category " + string(edit.Category)}
	}

	rec := Record{
		ID:               e.NewID(),
		StaffEmail:       edit.StaffEmail,
		StaffName:        e.staffName(ctx, edit.StaffEmail, edit.StaffName),
		Date:             edit.Date,
		Category:         edit.Category,
		Note:             edit.Note,
		TaskList:         strings.TrimSpace(edit.TaskList),
		NonWorkdayReason: strings.TrimSpace(edit.NonWorkdayReason),
		Wage:             ZeroWage(),
		Version:          1,
		CreatedAt:        edit.Now,
		UpdatedAt:        edit.Now,
	}

	if edit.Category.IsAbsence() {
		sentinel := edit.Date.Midnight(loc)
		rec.CheckIn = &sentinel
		rec.CheckOut = &sentinel
		return rec, nil
	}

	if edit.CheckIn == nil {
		if edit.CheckOut != nil {
			return Record{}, &ConsistencyViolationError{Field: "check_out", Message: "check-out recorded without a check-in"}
		}
		return Record{}, &ConsistencyViolationError{Field: "check_in", Message: string(edit.Category) + " record requires a check-in"}
	}
	in := edit.CheckIn.In(loc)
	if !DateOf(in, loc).Equal(edit.Date) {
		return Record{}, &ConsistencyViolationError{
			Field:   "check_in",
			Message: "check-in " + in.Format(time.RFC3339) + " is not on " + edit.Date.String(),
		}
	}
	rec.CheckIn = &in

	if edit.CheckOut != nil {
		out := edit.CheckOut.In(loc)
		wage, err := e.wages.ComputeValidated(in, out)
		if err != nil {
			return Record{}, err
		}
		rec.CheckOut = &out
		rec.Wage = wage
		rec.Overtime = out.Hour() >= e.policy.OvertimeHour
	}
	return rec, nil
}

// AdminDelete hard-deletes a record by id.
func (e *Engine) AdminDelete(ctx context.Context, id string) error {
	logger := e.log.With(zap.String("op", "admin_delete"), zap.String("id", id))

	rec, err := e.records.GetRecordByID(ctx, id)
	if err != nil {
		return e.unavailable(logger, "load record", err)
	}
	if rec == nil {
		return e.reject(logger, ErrRecordNotFound)
	}
	if err := e.records.DeleteRecord(ctx, id); err != nil {
		return e.unavailable(logger, "delete record", err)
	}
	logger.Info("record deleted", zap.String("staff", rec.StaffEmail), zap.Stringer("date", rec.Date))
	return nil
}

// =============================================================================
// TODAY STATUS
// =============================================================================

// DayStatus is what a client needs before a scan: the state of the staff-day
// and whether a non-workday or early-leave reason will be asked for.
type DayStatus struct {
	Staff          string
	Date           Date
	Classification Classification
	State          State
	Record         *Record
}

func (e *Engine) Today(ctx context.Context, staff string, now time.Time) (DayStatus, error) {
	loc := e.policy.location()
	today := DateOf(now, loc)
	logger := e.log.With(zap.String("op", "today"), zap.String("staff", staff), zap.Stringer("date", today))

	rec, err := e.records.GetRecord(ctx, staff, today)
	if err != nil {
		return DayStatus{}, e.unavailable(logger, "load record", err)
	}
	return DayStatus{
		Staff:          staff,
		Date:           today,
		Classification: e.classify(ctx, logger, today),
		State:          rec.State(),
		Record:         rec,
	}, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// classify falls back to weekday-only classification when holidays cannot
// be loaded.
func (e *Engine) classify(ctx context.Context, logger *zap.Logger, d Date) Classification {
	holidays, err := e.holiday.ListHolidaysInRange(ctx, d, d)
	if err != nil {
		logger.Warn("holiday lookup failed, classifying by weekday", zap.Error(err))
		return NewCalendar(nil).Classify(d)
	}
	return NewCalendar(holidays).Classify(d)
}

func (e *Engine) staffName(ctx context.Context, email, given string) string {
	if given != "" {
		return given
	}
	if e.roster != nil {
		if s, err := e.roster.GetStaff(ctx, email); err == nil && s != nil && s.Name != "" {
			return s.Name
		}
	}
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}

func (e *Engine) reject(logger *zap.Logger, err error) error {
	logger.Debug("rejected", zap.String("code", Code(err)), zap.Error(err))
	return err
}

func (e *Engine) unavailable(logger *zap.Logger, op string, err error) error {
	logger.Error("store failure", zap.String("step", op), zap.Error(err))
	return unavailable(op, err)
}
