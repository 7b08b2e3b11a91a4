package oracles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Oracle struct {
	Name string
	SQL  string
}

// All lists the booking invariants. Each query returns the offending rows.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_single_active_tenure",
			SQL: `SELECT job_id, COUNT(*) FROM translator_job_rel
                  WHERE cancel_at IS NULL
                  GROUP BY job_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_assigned_has_holder",
			SQL: `SELECT j.id FROM jobs j
                  WHERE j.status = 'assigned'
                    AND NOT EXISTS (SELECT 1 FROM translator_job_rel r
                                    WHERE r.job_id = j.id AND r.cancel_at IS NULL)`,
		},
		{
			Name: "O3_pending_is_free",
			SQL: `SELECT j.id, r.user_id FROM jobs j
                  JOIN translator_job_rel r ON r.job_id = j.id AND r.cancel_at IS NULL
                  WHERE j.status = 'pending'`,
		},
		{
			Name: "O4_accept_audited",
			SQL: `SELECT r.id, r.job_id FROM translator_job_rel r
                  WHERE r.cancel_at IS NULL
                    AND NOT EXISTS (SELECT 1 FROM job_audit_log a
                                    WHERE a.job_id = r.job_id AND a.action IN ('accepted', 'updated'))`,
		},
		{
			Name: "O5_audit_payload_shape",
			SQL:  `SELECT id FROM job_audit_log WHERE jsonb_typeof(payload -> 'changes') IS DISTINCT FROM 'array'`,
		},
	}
}

// Run executes all oracles and returns the first failure (name and sample row text) or empty name if all pass.
func Run(ctx context.Context, pool *pgxpool.Pool) (string, string, error) {
	for _, o := range All() {
		rows, err := pool.Query(ctx, o.SQL)
		if err != nil {
			return o.Name, "", fmt.Errorf("oracle %s: %w", o.Name, err)
		}
		has := rows.Next()
		if has {
			vals, err := rows.Values()
			rows.Close()
			if err != nil {
				return o.Name, "", err
			}
			return o.Name, fmt.Sprintf("%v", vals), nil
		}
		rows.Close()
	}
	return "", "", nil
}
