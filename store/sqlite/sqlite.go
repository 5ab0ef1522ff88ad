// Package sqlite persists the parking entities in a SQLite database
// using the pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/parkade/parkade/core/fault"
	"github.com/parkade/parkade/core/model"
	"github.com/parkade/parkade/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS spots (
    id TEXT PRIMARY KEY,
    category INTEGER NOT NULL,
    hourly_rate REAL NOT NULL,
    status INTEGER NOT NULL,
    occupant TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS vehicles (
    rowid INTEGER PRIMARY KEY AUTOINCREMENT,
    plate TEXT NOT NULL,
    class INTEGER NOT NULL,
    entry_time INTEGER NOT NULL,
    exit_time INTEGER
);
CREATE INDEX IF NOT EXISTS vehicles_plate ON vehicles(plate);
CREATE TABLE IF NOT EXISTS tickets (
    id TEXT PRIMARY KEY,
    plate TEXT NOT NULL,
    spot_id TEXT NOT NULL,
    entry_time INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS fines (
    id TEXT PRIMARY KEY,
    plate TEXT NOT NULL,
    amount REAL NOT NULL,
    kind TEXT NOT NULL,
    reason TEXT NOT NULL,
    ticket_id TEXT NOT NULL DEFAULT '',
    issued_at INTEGER NOT NULL,
    paid INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS payments (
    id TEXT PRIMARY KEY,
    amount REAL NOT NULL,
    method INTEGER NOT NULL,
    plate TEXT NOT NULL,
    ticket_id TEXT NOT NULL DEFAULT '',
    paid_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS reservations (
    id TEXT PRIMARY KEY,
    plate TEXT NOT NULL,
    spot_id TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    start_time INTEGER NOT NULL,
    end_time INTEGER NOT NULL,
    status INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS reservations_spot ON reservations(spot_id);
`

// DB wraps the SQLite handle shared by the entity stores.
type DB struct {
	db *sql.DB
}

// Open opens or creates the database at path and ensures the schema.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// modernc sqlite serializes writers; a single connection avoids
	// SQLITE_BUSY under concurrent exits.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &DB{db: db}, nil
}

// Close closes the underlying handle.
func (d *DB) Close() error { return d.db.Close() }

// Stores returns the Stores bundle backed by this database.
func (d *DB) Stores() store.Stores {
	return store.Stores{
		Spots:        &SpotStore{db: d.db},
		Vehicles:     &VehicleStore{db: d.db},
		Tickets:      &TicketStore{db: d.db},
		Fines:        &FineStore{db: d.db},
		Payments:     &PaymentStore{db: d.db},
		Reservations: &ReservationStore{db: d.db},
	}
}

// SpotStore persists spots.
type SpotStore struct {
	db *sql.DB
}

func (s *SpotStore) Find(ctx context.Context, id string) (*model.ParkingSpot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, category, hourly_rate, status, occupant FROM spots WHERE id = ?`, id)
	return scanSpot(row)
}

func (s *SpotStore) FindAll(ctx context.Context) ([]model.ParkingSpot, error) {
	return s.querySpots(ctx, `SELECT id, category, hourly_rate, status, occupant FROM spots ORDER BY id`)
}

func (s *SpotStore) Save(ctx context.Context, spot model.ParkingSpot) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO spots (id, category, hourly_rate, status, occupant) VALUES (?, ?, ?, ?, ?)`,
		spot.ID, int(spot.Category), spot.HourlyRate, int(spot.Status), spot.Occupant)
	return err
}

func (s *SpotStore) Update(ctx context.Context, spot model.ParkingSpot) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE spots SET category = ?, hourly_rate = ?, status = ?, occupant = ? WHERE id = ?`,
		int(spot.Category), spot.HourlyRate, int(spot.Status), spot.Occupant, spot.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fault.NotFoundf("spot %s not found", spot.ID)
	}
	return nil
}

func (s *SpotStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM spots WHERE id = ?`, id)
	return err
}

func (s *SpotStore) FindAvailableByCategory(ctx context.Context, cat model.SpotCategory) ([]model.ParkingSpot, error) {
	return s.querySpots(ctx,
		`SELECT id, category, hourly_rate, status, occupant FROM spots WHERE category = ? AND status = ? ORDER BY id`,
		int(cat), int(model.SpotAvailable))
}

func (s *SpotStore) FindByOccupant(ctx context.Context, plate string) (*model.ParkingSpot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, category, hourly_rate, status, occupant FROM spots WHERE status = ? AND occupant = ?`,
		int(model.SpotOccupied), plate)
	return scanSpot(row)
}

func (s *SpotStore) querySpots(ctx context.Context, q string, args ...any) ([]model.ParkingSpot, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []model.ParkingSpot
	for rows.Next() {
		var sp model.ParkingSpot
		var cat, status int
		if err := rows.Scan(&sp.ID, &cat, &sp.HourlyRate, &status, &sp.Occupant); err != nil {
			return nil, err
		}
		sp.Category = model.SpotCategory(cat)
		sp.Status = model.SpotStatus(status)
		out = append(out, sp)
	}
	return out, rows.Err()
}

func scanSpot(row *sql.Row) (*model.ParkingSpot, error) {
	var sp model.ParkingSpot
	var cat, status int
	err := row.Scan(&sp.ID, &cat, &sp.HourlyRate, &status, &sp.Occupant)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sp.Category = model.SpotCategory(cat)
	sp.Status = model.SpotStatus(status)
	return &sp, nil
}

// VehicleStore persists vehicle session records.
type VehicleStore struct {
	db *sql.DB
}

func (s *VehicleStore) FindActive(ctx context.Context, plate string) (*model.Vehicle, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT plate, class, entry_time, exit_time FROM vehicles WHERE plate = ? AND exit_time IS NULL`, plate)
	v, err := scanVehicle(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *VehicleStore) FindAllActive(ctx context.Context) ([]model.Vehicle, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT plate, class, entry_time, exit_time FROM vehicles WHERE exit_time IS NULL ORDER BY plate`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []model.Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, rows.Err()
}

func (s *VehicleStore) Save(ctx context.Context, v model.Vehicle) error {
	if v.Active() {
		var n int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(1) FROM vehicles WHERE plate = ? AND exit_time IS NULL`, v.Plate).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return fault.Statef("plate %s already has an active session", v.Plate)
		}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vehicles (plate, class, entry_time, exit_time) VALUES (?, ?, ?, ?)`,
		v.Plate, int(v.Class), v.EntryTime.Unix(), nullableUnix(v.ExitTime))
	return err
}

func (s *VehicleStore) Update(ctx context.Context, v model.Vehicle) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE vehicles SET class = ?, entry_time = ?, exit_time = ? WHERE plate = ? AND exit_time IS NULL`,
		int(v.Class), v.EntryTime.Unix(), nullableUnix(v.ExitTime), v.Plate)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fault.NotFoundf("no active session for plate %s", v.Plate)
	}
	return nil
}

func scanVehicle(scan func(...any) error) (*model.Vehicle, error) {
	var v model.Vehicle
	var class int
	var entry int64
	var exit sql.NullInt64
	if err := scan(&v.Plate, &class, &entry, &exit); err != nil {
		return nil, err
	}
	v.Class = model.VehicleClass(class)
	v.EntryTime = time.Unix(entry, 0).UTC()
	if exit.Valid {
		t := time.Unix(exit.Int64, 0).UTC()
		v.ExitTime = &t
	}
	return &v, nil
}

func nullableUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

// TicketStore persists tickets.
type TicketStore struct {
	db *sql.DB
}

func (s *TicketStore) Find(ctx context.Context, id string) (*model.Ticket, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, plate, spot_id, entry_time FROM tickets WHERE id = ?`, id)
	return scanTicket(row)
}

func (s *TicketStore) FindByPlate(ctx context.Context, plate string) (*model.Ticket, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, plate, spot_id, entry_time FROM tickets WHERE plate = ? ORDER BY entry_time DESC LIMIT 1`, plate)
	return scanTicket(row)
}

func (s *TicketStore) Save(ctx context.Context, t model.Ticket) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tickets (id, plate, spot_id, entry_time) VALUES (?, ?, ?, ?)`,
		t.ID, t.Plate, t.SpotID, t.EntryTime.Unix())
	return err
}

func scanTicket(row *sql.Row) (*model.Ticket, error) {
	var t model.Ticket
	var entry int64
	err := row.Scan(&t.ID, &t.Plate, &t.SpotID, &entry)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.EntryTime = time.Unix(entry, 0).UTC()
	return &t, nil
}

// FineStore persists fines.
type FineStore struct {
	db *sql.DB
}

func (s *FineStore) Find(ctx context.Context, id string) (*model.Fine, error) {
	rows, err := s.queryFines(ctx,
		`SELECT id, plate, amount, kind, reason, ticket_id, issued_at, paid FROM fines WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (s *FineStore) Save(ctx context.Context, f model.Fine) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fines (id, plate, amount, kind, reason, ticket_id, issued_at, paid) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Plate, f.Amount, string(f.Kind), f.Reason, f.TicketID, f.IssuedAt.Unix(), boolInt(f.Paid))
	return err
}

func (s *FineStore) FindUnpaidByPlate(ctx context.Context, plate string) ([]model.Fine, error) {
	return s.queryFines(ctx,
		`SELECT id, plate, amount, kind, reason, ticket_id, issued_at, paid FROM fines WHERE plate = ? AND paid = 0 ORDER BY issued_at`, plate)
}

func (s *FineStore) FindAllUnpaid(ctx context.Context) ([]model.Fine, error) {
	return s.queryFines(ctx,
		`SELECT id, plate, amount, kind, reason, ticket_id, issued_at, paid FROM fines WHERE paid = 0 ORDER BY issued_at`)
}

func (s *FineStore) SumUnpaidByPlate(ctx context.Context, plate string) (float64, error) {
	var total sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT SUM(amount) FROM fines WHERE plate = ? AND paid = 0`, plate).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total.Float64, nil
}

func (s *FineStore) MarkPaid(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE fines SET paid = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fault.NotFoundf("fine %s not found", id)
	}
	return nil
}

func (s *FineStore) queryFines(ctx context.Context, q string, args ...any) ([]model.Fine, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []model.Fine
	for rows.Next() {
		var f model.Fine
		var kind string
		var issued int64
		var paid int
		if err := rows.Scan(&f.ID, &f.Plate, &f.Amount, &kind, &f.Reason, &f.TicketID, &issued, &paid); err != nil {
			return nil, err
		}
		f.Kind = model.FineKind(kind)
		f.IssuedAt = time.Unix(issued, 0).UTC()
		f.Paid = paid != 0
		out = append(out, f)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// PaymentStore persists payments.
type PaymentStore struct {
	db *sql.DB
}

func (s *PaymentStore) Save(ctx context.Context, p model.Payment) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO payments (id, amount, method, plate, ticket_id, paid_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Amount, int(p.Method), p.Plate, p.TicketID, p.PaidAt.Unix())
	return err
}

func (s *PaymentStore) FindByPlate(ctx context.Context, plate string) ([]model.Payment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, amount, method, plate, ticket_id, paid_at FROM payments WHERE plate = ? ORDER BY paid_at`, plate)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []model.Payment
	for rows.Next() {
		var p model.Payment
		var method int
		var paidAt int64
		if err := rows.Scan(&p.ID, &p.Amount, &method, &p.Plate, &p.TicketID, &paidAt); err != nil {
			return nil, err
		}
		p.Method = model.PaymentMethod(method)
		p.PaidAt = time.Unix(paidAt, 0).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PaymentStore) FindBetween(ctx context.Context, start, end time.Time) ([]model.Payment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, amount, method, plate, ticket_id, paid_at FROM payments WHERE paid_at >= ? AND paid_at < ? ORDER BY paid_at`,
		start.Unix(), end.Unix())
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []model.Payment
	for rows.Next() {
		var p model.Payment
		var method int
		var paidAt int64
		if err := rows.Scan(&p.ID, &p.Amount, &method, &p.Plate, &p.TicketID, &paidAt); err != nil {
			return nil, err
		}
		p.Method = model.PaymentMethod(method)
		p.PaidAt = time.Unix(paidAt, 0).UTC()
		out = append(out, p)
	}
	return out, rows.Err()
}

// ReservationStore persists reservations.
type ReservationStore struct {
	db *sql.DB
}

func (s *ReservationStore) Find(ctx context.Context, id string) (*model.Reservation, error) {
	out, err := s.queryReservations(ctx,
		`SELECT id, plate, spot_id, created_at, start_time, end_time, status FROM reservations WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

func (s *ReservationStore) Save(ctx context.Context, r model.Reservation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reservations (id, plate, spot_id, created_at, start_time, end_time, status) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Plate, r.SpotID, r.CreatedAt.Unix(), r.Start.Unix(), r.End.Unix(), int(r.Status))
	return err
}

func (s *ReservationStore) Update(ctx context.Context, r model.Reservation) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reservations SET plate = ?, spot_id = ?, start_time = ?, end_time = ?, status = ? WHERE id = ?`,
		r.Plate, r.SpotID, r.Start.Unix(), r.End.Unix(), int(r.Status), r.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fault.NotFoundf("reservation %s not found", r.ID)
	}
	return nil
}

func (s *ReservationStore) FindByPlate(ctx context.Context, plate string) ([]model.Reservation, error) {
	return s.queryReservations(ctx,
		`SELECT id, plate, spot_id, created_at, start_time, end_time, status FROM reservations WHERE plate = ? ORDER BY start_time, id`, plate)
}

func (s *ReservationStore) FindAll(ctx context.Context) ([]model.Reservation, error) {
	return s.queryReservations(ctx,
		`SELECT id, plate, spot_id, created_at, start_time, end_time, status FROM reservations ORDER BY start_time, id`)
}

func (s *ReservationStore) FindBySpotAndRange(ctx context.Context, spotID string, start, end time.Time) ([]model.Reservation, error) {
	// Half-open overlap: start_time < end AND end_time > start.
	return s.queryReservations(ctx,
		`SELECT id, plate, spot_id, created_at, start_time, end_time, status FROM reservations
         WHERE spot_id = ? AND status IN (?, ?) AND start_time < ? AND end_time > ? ORDER BY start_time, id`,
		spotID, int(model.ReservationPending), int(model.ReservationConfirmed), end.Unix(), start.Unix())
}

func (s *ReservationStore) FindActive(ctx context.Context) ([]model.Reservation, error) {
	return s.queryReservations(ctx,
		`SELECT id, plate, spot_id, created_at, start_time, end_time, status FROM reservations WHERE status IN (?, ?) ORDER BY start_time, id`,
		int(model.ReservationPending), int(model.ReservationConfirmed))
}

func (s *ReservationStore) FindExpiredPending(ctx context.Context, now time.Time) ([]model.Reservation, error) {
	return s.queryReservations(ctx,
		`SELECT id, plate, spot_id, created_at, start_time, end_time, status FROM reservations
         WHERE status IN (?, ?) AND end_time < ? ORDER BY start_time, id`,
		int(model.ReservationPending), int(model.ReservationConfirmed), now.Unix())
}

func (s *ReservationStore) queryReservations(ctx context.Context, q string, args ...any) ([]model.Reservation, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []model.Reservation
	for rows.Next() {
		var r model.Reservation
		var created, start, end int64
		var status int
		if err := rows.Scan(&r.ID, &r.Plate, &r.SpotID, &created, &start, &end, &status); err != nil {
			return nil, err
		}
		r.CreatedAt = time.Unix(created, 0).UTC()
		r.Start = time.Unix(start, 0).UTC()
		r.End = time.Unix(end, 0).UTC()
		r.Status = model.ReservationStatus(status)
		out = append(out, r)
	}
	return out, rows.Err()
}
