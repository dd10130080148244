package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"streamgate/internal/domain"
	"streamgate/internal/domain/model"
	"streamgate/internal/domain/ports/repository"
)

var _ repository.UsageLogRepository = (*usageLogRepo)(nil)

type usageLogRepo struct {
	pool *pgxpool.Pool
}

func NewUsageLogRepo(pool *pgxpool.Pool) repository.UsageLogRepository {
	return &usageLogRepo{pool: pool}
}

const usageLogColumns = `
id, code, action, outcome, ts, details, user_name, ip_address, user_agent, duration_ms, metadata`

func (r *usageLogRepo) Append(ctx context.Context, tx repository.Tx, entry *model.UsageLog) error {
	meta, err := json.Marshal(orEmpty(entry.Metadata))
	if err != nil {
		return err
	}
	const q = `
INSERT INTO usage_logs (id, code, action, outcome, ts, details, user_name, ip_address, user_agent, duration_ms, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
`
	_, err = execSQL(ctx, r.pool, tx, q,
		entry.ID, entry.Code, string(entry.Action), string(entry.Outcome), entry.Timestamp,
		entry.Details, entry.User, entry.IPAddress, entry.UserAgent, entry.DurationMS, meta,
	)
	return err
}

// sortColumns maps the wire sort fields onto real columns. Only values from
// this map ever reach the ORDER BY clause.
var sortColumns = map[model.SortField]string{
	model.SortByTimestamp: "ts",
	model.SortByAction:    "action",
	model.SortByCode:      "code",
	model.SortByIPAddress: "ip_address",
	model.SortByUser:      "user_name",
}

func (r *usageLogRepo) Query(ctx context.Context, tx repository.Tx, filter model.LogFilter, sort model.LogSort, page model.Page) ([]*model.UsageLog, int, error) {
	where, args := buildLogWhere(filter)

	countQ := `SELECT COUNT(*) FROM usage_logs` + where + `;`
	row, err := pickRow(ctx, r.pool, tx, countQ, args...)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := row.Scan(&total); err != nil {
		return nil, 0, domain.ErrReadDatabaseRow
	}

	sort = sort.Normalize()
	col, ok := sortColumns[sort.Field]
	if !ok {
		return nil, 0, domain.ErrInvalidArgument
	}
	dir := "DESC"
	if sort.Order == model.SortAsc {
		dir = "ASC"
	}

	q := `SELECT ` + usageLogColumns + ` FROM usage_logs` + where +
		fmt.Sprintf(" ORDER BY %s %s LIMIT $%d OFFSET $%d;", col, dir, len(args)+1, len(args)+2)
	rows, err := pickRows(ctx, r.pool, tx, q, append(args, page.Limit, page.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries, err := scanUsageLogs(rows)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *usageLogRepo) ListMatching(ctx context.Context, tx repository.Tx, filter model.LogFilter, limit int) ([]*model.UsageLog, error) {
	where, args := buildLogWhere(filter)
	q := `SELECT ` + usageLogColumns + ` FROM usage_logs` + where +
		fmt.Sprintf(" ORDER BY ts DESC LIMIT $%d;", len(args)+1)
	rows, err := pickRows(ctx, r.pool, tx, q, append(args, limit)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUsageLogs(rows)
}

func (r *usageLogRepo) DeleteByIDs(ctx context.Context, tx repository.Tx, ids []string) (int, error) {
	const q = `DELETE FROM usage_logs WHERE id = ANY($1);`
	tag, err := execSQL(ctx, r.pool, tx, q, ids)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *usageLogRepo) UpdateByIDs(ctx context.Context, tx repository.Tx, ids []string, patch repository.LogUpdate) (int, error) {
	meta, err := json.Marshal(orEmpty(patch.Metadata))
	if err != nil {
		return 0, err
	}
	const q = `
UPDATE usage_logs
   SET details = COALESCE($2, details),
       metadata = metadata || $3::jsonb
 WHERE id = ANY($1);
`
	tag, err := execSQL(ctx, r.pool, tx, q, ids, patch.Details, meta)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// buildLogWhere renders the typed filter into a WHERE clause with positional
// args. Dimensions AND together; list dimensions become = ANY(...).
func buildLogWhere(f model.LogFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}

	next := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Start != nil {
		conds = append(conds, "ts >= "+next(*f.Start))
	}
	if f.End != nil {
		conds = append(conds, "ts <= "+next(*f.End))
	}
	if len(f.Actions) > 0 {
		conds = append(conds, "action = ANY("+next(actionStrings(f.Actions))+")")
	}
	if len(f.Outcomes) > 0 {
		conds = append(conds, "outcome = ANY("+next(outcomeStrings(f.Outcomes))+")")
	}
	if f.Success != nil {
		if *f.Success {
			conds = append(conds, "outcome = 'success'")
		} else {
			conds = append(conds, "outcome <> 'success'")
		}
	}
	if len(f.Users) > 0 {
		conds = append(conds, "LOWER(user_name) = ANY("+next(lowered(f.Users))+")")
	}
	if len(f.Codes) > 0 {
		conds = append(conds, "LOWER(code) = ANY("+next(lowered(f.Codes))+")")
	}
	if len(f.IPAddresses) > 0 {
		conds = append(conds, "LOWER(ip_address) = ANY("+next(lowered(f.IPAddresses))+")")
	}
	if f.Search != "" {
		pat := next("%" + escapeLike(f.Search) + "%")
		conds = append(conds, fmt.Sprintf(
			"(code ILIKE %[1]s OR details ILIKE %[1]s OR ip_address ILIKE %[1]s OR user_agent ILIKE %[1]s)", pat))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}

func actionStrings(as []model.LogAction) []string {
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = string(a)
	}
	return out
}

func outcomeStrings(os []model.LogOutcome) []string {
	out := make([]string, len(os))
	for i, o := range os {
		out[i] = string(o)
	}
	return out
}

func lowered(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.ToLower(s)
	}
	return out
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func scanUsageLogs(rows pgx.Rows) ([]*model.UsageLog, error) {
	var entries []*model.UsageLog
	for rows.Next() {
		var (
			e       model.UsageLog
			action  string
			outcome string
			meta    []byte
		)
		err := rows.Scan(&e.ID, &e.Code, &action, &outcome, &e.Timestamp,
			&e.Details, &e.User, &e.IPAddress, &e.UserAgent, &e.DurationMS, &meta)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		e.Action = model.LogAction(action)
		e.Outcome = model.LogOutcome(outcome)
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &e.Metadata); err != nil {
				return nil, domain.ErrReadDatabaseRow
			}
			if len(e.Metadata) == 0 {
				e.Metadata = nil
			}
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
