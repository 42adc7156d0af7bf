package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voltq/stationd/core/model"
	"github.com/voltq/stationd/core/storage"
)

type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres implements storage.Store on a pgx connection pool. Inside WithTx
// the same methods run against the transaction instead of the pool.
type Postgres struct {
	pool *pgxpool.Pool
	q    querier
}

// Connect opens a pooled connection to the given database URL.
func Connect(ctx context.Context, url string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 5 * time.Minute
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Postgres{pool: pool, q: pool}, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// EnsureSchema creates the tables when they do not exist yet.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	schema := `
	create table if not exists charging_piles (
		id         text primary key,
		code       text unique not null,
		tier       text not null,
		status     text not null,
		power_rate double precision not null
	);
	create table if not exists charging_requests (
		id           text primary key,
		user_id      text not null,
		queue_number text unique not null,
		tier         text not null,
		amount_kwh   double precision not null,
		status       text not null,
		submitted_at timestamptz not null,
		pile_id      text not null default '',
		start_time   timestamptz,
		end_time     timestamptz
	);
	create index if not exists charging_requests_status_idx on charging_requests (status);
	create table if not exists charging_orders (
		id          text primary key,
		request_id  text unique not null,
		user_id     text not null,
		pile_id     text not null,
		start_time  timestamptz not null,
		end_time    timestamptz not null,
		energy_kwh  double precision not null,
		charge_fee  double precision not null,
		service_fee double precision not null,
		total_fee   double precision not null,
		created_at  timestamptz not null
	);
	create table if not exists pile_logs (
		id         text primary key,
		pile_id    text not null,
		ts         timestamptz not null,
		event_type text not null,
		details    text not null default ''
	);`
	_, err := p.q.Exec(ctx, schema)
	return err
}

const pileColumns = `id, code, tier, status, power_rate`

func scanPile(row pgx.Row) (model.ChargingPile, error) {
	var p model.ChargingPile
	err := row.Scan(&p.ID, &p.Code, &p.Tier, &p.Status, &p.PowerRate)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ChargingPile{}, storage.ErrNotFound
	}
	return p, err
}

func (p *Postgres) Pile(ctx context.Context, id string) (model.ChargingPile, error) {
	return scanPile(p.q.QueryRow(ctx, `select `+pileColumns+` from charging_piles where id=$1`, id))
}

func (p *Postgres) Piles(ctx context.Context) ([]model.ChargingPile, error) {
	rows, err := p.q.Query(ctx, `select `+pileColumns+` from charging_piles order by code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ChargingPile
	for rows.Next() {
		var pile model.ChargingPile
		if err := rows.Scan(&pile.ID, &pile.Code, &pile.Tier, &pile.Status, &pile.PowerRate); err != nil {
			return nil, err
		}
		out = append(out, pile)
	}
	return out, rows.Err()
}

func (p *Postgres) CreatePile(ctx context.Context, pile model.ChargingPile) error {
	_, err := p.q.Exec(ctx, `
		insert into charging_piles (id, code, tier, status, power_rate)
		values ($1,$2,$3,$4,$5)
	`, pile.ID, pile.Code, pile.Tier, pile.Status, pile.PowerRate)
	return err
}

func (p *Postgres) UpdatePile(ctx context.Context, pile model.ChargingPile) error {
	tag, err := p.q.Exec(ctx, `
		update charging_piles set code=$2, tier=$3, status=$4, power_rate=$5 where id=$1
	`, pile.ID, pile.Code, pile.Tier, pile.Status, pile.PowerRate)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (p *Postgres) ResetPiles(ctx context.Context, piles []model.ChargingPile) error {
	return p.WithTx(ctx, func(st storage.Store) error {
		tx := st.(*Postgres)
		for _, stmt := range []string{
			`delete from pile_logs`,
			`delete from charging_orders`,
			`delete from charging_requests`,
			`delete from charging_piles`,
		} {
			if _, err := tx.q.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		for _, pile := range piles {
			if err := tx.CreatePile(ctx, pile); err != nil {
				return err
			}
		}
		return nil
	})
}

const requestColumns = `id, user_id, queue_number, tier, amount_kwh, status, submitted_at, pile_id, start_time, end_time`

func scanRequest(row pgx.Row) (model.ChargingRequest, error) {
	var r model.ChargingRequest
	err := row.Scan(&r.ID, &r.UserID, &r.QueueNumber, &r.Tier, &r.AmountKWh, &r.Status,
		&r.SubmittedAt, &r.PileID, &r.StartTime, &r.EndTime)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ChargingRequest{}, storage.ErrNotFound
	}
	return r, err
}

func (p *Postgres) Request(ctx context.Context, id string) (model.ChargingRequest, error) {
	return scanRequest(p.q.QueryRow(ctx, `select `+requestColumns+` from charging_requests where id=$1`, id))
}

func (p *Postgres) Requests(ctx context.Context, f storage.RequestFilter) ([]model.ChargingRequest, error) {
	query := `select ` + requestColumns + ` from charging_requests where 1=1`
	var args []any
	if len(f.Statuses) > 0 {
		statuses := make([]string, 0, len(f.Statuses))
		for _, s := range f.Statuses {
			statuses = append(statuses, string(s))
		}
		args = append(args, statuses)
		query += fmt.Sprintf(` and status = any($%d)`, len(args))
	}
	if f.UserID != "" {
		args = append(args, f.UserID)
		query += fmt.Sprintf(` and user_id = $%d`, len(args))
	}
	if f.PileID != "" {
		args = append(args, f.PileID)
		query += fmt.Sprintf(` and pile_id = $%d`, len(args))
	}
	query += ` order by submitted_at, queue_number`
	rows, err := p.q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ChargingRequest
	for rows.Next() {
		var r model.ChargingRequest
		if err := rows.Scan(&r.ID, &r.UserID, &r.QueueNumber, &r.Tier, &r.AmountKWh, &r.Status,
			&r.SubmittedAt, &r.PileID, &r.StartTime, &r.EndTime); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *Postgres) CreateRequest(ctx context.Context, r model.ChargingRequest) error {
	_, err := p.q.Exec(ctx, `
		insert into charging_requests (id, user_id, queue_number, tier, amount_kwh, status, submitted_at, pile_id, start_time, end_time)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, r.ID, r.UserID, r.QueueNumber, r.Tier, r.AmountKWh, r.Status, r.SubmittedAt, r.PileID, r.StartTime, r.EndTime)
	return err
}

func (p *Postgres) UpdateRequest(ctx context.Context, r model.ChargingRequest) error {
	tag, err := p.q.Exec(ctx, `
		update charging_requests
		set queue_number=$2, tier=$3, amount_kwh=$4, status=$5, pile_id=$6, start_time=$7, end_time=$8
		where id=$1
	`, r.ID, r.QueueNumber, r.Tier, r.AmountKWh, r.Status, r.PileID, r.StartTime, r.EndTime)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (p *Postgres) ActiveRequestForUser(ctx context.Context, userID string) (model.ChargingRequest, error) {
	return scanRequest(p.q.QueryRow(ctx, `
		select `+requestColumns+` from charging_requests
		where user_id=$1 and status in ('WAITING','CHARGING')
		order by submitted_at limit 1
	`, userID))
}

func (p *Postgres) ChargingRequestForPile(ctx context.Context, pileID string) (model.ChargingRequest, error) {
	return scanRequest(p.q.QueryRow(ctx, `
		select `+requestColumns+` from charging_requests
		where pile_id=$1 and status='CHARGING'
		order by submitted_at limit 1
	`, pileID))
}

func (p *Postgres) MaxQueueNumber(ctx context.Context, tier model.Tier) (int, error) {
	var max int
	err := p.q.QueryRow(ctx, `
		select coalesce(max((substring(queue_number from 2))::int), 0)
		from charging_requests where queue_number like $1
	`, tier.Prefix()+"%").Scan(&max)
	return max, err
}

func (p *Postgres) CreateOrder(ctx context.Context, o model.ChargingOrder) error {
	_, err := p.q.Exec(ctx, `
		insert into charging_orders (id, request_id, user_id, pile_id, start_time, end_time, energy_kwh, charge_fee, service_fee, total_fee, created_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, o.ID, o.RequestID, o.UserID, o.PileID, o.StartTime, o.EndTime, o.EnergyKWh, o.ChargeFee, o.ServiceFee, o.TotalFee, o.CreatedAt)
	return err
}

const orderColumns = `id, request_id, user_id, pile_id, start_time, end_time, energy_kwh, charge_fee, service_fee, total_fee, created_at`

func (p *Postgres) Order(ctx context.Context, id string) (model.ChargingOrder, error) {
	var o model.ChargingOrder
	err := p.q.QueryRow(ctx, `select `+orderColumns+` from charging_orders where id=$1`, id).
		Scan(&o.ID, &o.RequestID, &o.UserID, &o.PileID, &o.StartTime, &o.EndTime,
			&o.EnergyKWh, &o.ChargeFee, &o.ServiceFee, &o.TotalFee, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ChargingOrder{}, storage.ErrNotFound
	}
	return o, err
}

func (p *Postgres) OrdersForUser(ctx context.Context, userID string) ([]model.ChargingOrder, error) {
	rows, err := p.q.Query(ctx, `select `+orderColumns+` from charging_orders where user_id=$1 order by created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ChargingOrder
	for rows.Next() {
		var o model.ChargingOrder
		if err := rows.Scan(&o.ID, &o.RequestID, &o.UserID, &o.PileID, &o.StartTime, &o.EndTime,
			&o.EnergyKWh, &o.ChargeFee, &o.ServiceFee, &o.TotalFee, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (p *Postgres) AppendPileLog(ctx context.Context, l model.PileLog) error {
	_, err := p.q.Exec(ctx, `
		insert into pile_logs (id, pile_id, ts, event_type, details)
		values ($1,$2,$3,$4,$5)
	`, l.ID, l.PileID, l.Timestamp, l.EventType, l.Details)
	return err
}

func (p *Postgres) PileLogs(ctx context.Context, pileID string) ([]model.PileLog, error) {
	rows, err := p.q.Query(ctx, `select id, pile_id, ts, event_type, details from pile_logs where pile_id=$1 order by ts`, pileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.PileLog
	for rows.Next() {
		var l model.PileLog
		if err := rows.Scan(&l.ID, &l.PileID, &l.Timestamp, &l.EventType, &l.Details); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// WithTx scopes fn to one database transaction. Calls on an already
// transactional store run in the surrounding transaction; logical operations
// do not nest.
func (p *Postgres) WithTx(ctx context.Context, fn func(storage.Store) error) error {
	if p.pool == nil {
		return fn(p)
	}
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		return fn(&Postgres{q: tx})
	})
}
