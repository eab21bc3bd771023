package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/example/kigali-rides/internal/errs"
	"github.com/example/kigali-rides/internal/models"
)

const uniqueViolation = "23505"

// Postgres backs the stores with a shared relational database. The
// correctness-critical pieces are the conditional UPDATE ... WHERE status =
// ANY(...) with affected-row checks, the partial unique indexes limiting each
// trip to one non-cancelled booking, and ON CONFLICT for referral pairs. See
// migrations/001_create_core.sql.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) DB() *sql.DB  { return p.db }
func (p *Postgres) Close() error { return p.db.Close() }

const tripCols = `id, owner_id, role, origin_lat, origin_lng, origin_address,
	dest_lat, dest_lng, dest_address, vehicle_type, scheduled_time,
	seats_available, fare_rwf, is_negotiable, status, created_at, updated_at`

func (p *Postgres) CreateTrip(ctx context.Context, t *models.Trip) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO trips (`+tripCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		t.ID, t.OwnerID, string(t.Role),
		t.Origin.Lat, t.Origin.Lng, t.Origin.Address,
		t.Destination.Lat, t.Destination.Lng, t.Destination.Address,
		nullString(string(t.VehicleType)), t.ScheduledTime,
		t.SeatsAvailable, nullInt64(t.FareRwf), t.IsNegotiable,
		string(t.Status), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return errs.Wrap(errs.Dependency, err, "insert trip")
	}
	return nil
}

func (p *Postgres) GetTrip(ctx context.Context, id string) (*models.Trip, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+tripCols+` FROM trips WHERE id = $1`, id)
	t, err := scanTrip(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.New(errs.NotFound, "trip %s not found", id)
	}
	if err != nil {
		return nil, errs.Wrap(errs.Dependency, err, "select trip")
	}
	return t, nil
}

func (p *Postgres) TransitionTrip(ctx context.Context, id string, to models.TripStatus, from ...models.TripStatus) (*models.Trip, bool, error) {
	row := p.db.QueryRowContext(ctx, `
		UPDATE trips SET status = $1, updated_at = now()
		WHERE id = $2 AND status = ANY($3)
		RETURNING `+tripCols,
		string(to), id, pq.Array(tripStatusStrings(from)),
	)
	t, err := scanTrip(row)
	if errors.Is(err, sql.ErrNoRows) {
		// Row missing or not in the allowed set; return the current state so
		// callers can tell a lost race from a vanished trip.
		cur, gerr := p.GetTrip(ctx, id)
		if gerr != nil {
			return nil, false, gerr
		}
		return cur, false, nil
	}
	if err != nil {
		return nil, false, errs.Wrap(errs.Dependency, err, "transition trip")
	}
	return t, true, nil
}

func (p *Postgres) ListTrips(ctx context.Context, statuses ...models.TripStatus) ([]models.Trip, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+tripCols+` FROM trips WHERE status = ANY($1) ORDER BY created_at`,
		pq.Array(tripStatusStrings(statuses)),
	)
	if err != nil {
		return nil, errs.Wrap(errs.Dependency, err, "list trips")
	}
	defer rows.Close()
	var out []models.Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, errs.Wrap(errs.Dependency, err, "scan trip")
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.Dependency, err, "list trips")
	}
	return out, nil
}

func (p *Postgres) ExpireStale(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `
		UPDATE trips SET status = 'expired', updated_at = now()
		WHERE status IN ('pending','matched') AND scheduled_time < $1
		RETURNING id`, cutoff,
	)
	if err != nil {
		return nil, errs.Wrap(errs.Dependency, err, "expire stale trips")
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errs.Wrap(errs.Dependency, err, "scan expired id")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(errs.Dependency, err, "expire stale trips")
	}
	return ids, nil
}

const bookingCols = `id, passenger_trip_id, driver_trip_id, status, cancel_reason, created_at, updated_at`

func (p *Postgres) CreateBooking(ctx context.Context, b *models.Booking) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO bookings (`+bookingCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		b.ID, b.PassengerTripID, b.DriverTripID, string(b.Status),
		nullString(b.CancelReason), b.CreatedAt, b.UpdatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return errs.Wrap(errs.AlreadyBooked, err, "trip already held by an active booking")
	}
	if err != nil {
		return errs.Wrap(errs.Dependency, err, "insert booking")
	}
	return nil
}

func (p *Postgres) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+bookingCols+` FROM bookings WHERE id = $1`, id)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.New(errs.NotFound, "booking %s not found", id)
	}
	if err != nil {
		return nil, errs.Wrap(errs.Dependency, err, "select booking")
	}
	return b, nil
}

func (p *Postgres) TransitionBooking(ctx context.Context, id string, to models.BookingStatus, reason string, from ...models.BookingStatus) (*models.Booking, bool, error) {
	row := p.db.QueryRowContext(ctx, `
		UPDATE bookings
		SET status = $1,
		    cancel_reason = CASE WHEN $1 = 'cancelled' THEN $2 ELSE cancel_reason END,
		    updated_at = now()
		WHERE id = $3 AND status = ANY($4)
		RETURNING `+bookingCols,
		string(to), nullString(reason), id, pq.Array(bookingStatusStrings(from)),
	)
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		cur, gerr := p.GetBooking(ctx, id)
		if gerr != nil {
			return nil, false, gerr
		}
		return cur, false, nil
	}
	if err != nil {
		return nil, false, errs.Wrap(errs.Dependency, err, "transition booking")
	}
	return b, true, nil
}

func (p *Postgres) CreateReferral(ctx context.Context, r *models.Referral) error {
	res, err := p.db.ExecContext(ctx, `
		INSERT INTO referrals (id, referrer_id, referee_id, referee_role, validation_status, reward_week, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (referrer_id, referee_id) DO NOTHING`,
		r.ID, r.ReferrerID, r.RefereeID, string(r.RefereeRole),
		string(r.ValidationStatus), r.RewardWeek, r.CreatedAt,
	)
	if err != nil {
		return errs.Wrap(errs.Dependency, err, "insert referral")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errs.Wrap(errs.Dependency, err, "insert referral")
	}
	if n == 0 {
		return errs.New(errs.DuplicateReferral, "referral already claimed for this pair")
	}
	return nil
}

func (p *Postgres) LookupPromoCode(ctx context.Context, code string) (string, error) {
	var owner string
	err := p.db.QueryRowContext(ctx, `SELECT user_id FROM promo_codes WHERE code = $1`, code).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", errs.New(errs.InvalidCode, "unknown promo code")
	}
	if err != nil {
		return "", errs.Wrap(errs.Dependency, err, "lookup promo code")
	}
	return owner, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrip(row rowScanner) (*models.Trip, error) {
	var t models.Trip
	var role, status string
	var vehicle sql.NullString
	var fare sql.NullInt64
	err := row.Scan(
		&t.ID, &t.OwnerID, &role,
		&t.Origin.Lat, &t.Origin.Lng, &t.Origin.Address,
		&t.Destination.Lat, &t.Destination.Lng, &t.Destination.Address,
		&vehicle, &t.ScheduledTime,
		&t.SeatsAvailable, &fare, &t.IsNegotiable,
		&status, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Role = models.Role(role)
	t.Status = models.TripStatus(status)
	if vehicle.Valid {
		t.VehicleType = models.VehicleType(vehicle.String)
	}
	if fare.Valid {
		v := fare.Int64
		t.FareRwf = &v
	}
	return &t, nil
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	var status string
	var reason sql.NullString
	err := row.Scan(&b.ID, &b.PassengerTripID, &b.DriverTripID, &status, &reason, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}
	b.Status = models.BookingStatus(status)
	if reason.Valid {
		b.CancelReason = reason.String
	}
	return &b, nil
}

func tripStatusStrings(in []models.TripStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

func bookingStatusStrings(in []models.BookingStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
