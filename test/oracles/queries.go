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

// All returns the invariant queries. Each query selects violating rows, so an
// empty result set means the invariant holds.
func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_ledger_head_matches_status",
			SQL: `SELECT c.id, c.current_status, l.new_status FROM celebrations c
                  JOIN LATERAL (
                      SELECT new_status FROM celebration_ledger
                      WHERE celebration_id = c.id ORDER BY seq DESC LIMIT 1
                  ) l ON true
                  WHERE c.current_status <> l.new_status`,
		},
		{
			Name: "O2_untransitioned_rows_are_active",
			SQL: `SELECT c.id, c.current_status FROM celebrations c
                  WHERE c.current_status <> 'active'
                    AND NOT EXISTS (SELECT 1 FROM celebration_ledger WHERE celebration_id = c.id)`,
		},
		{
			Name: "O3_ledger_seq_gapless",
			SQL: `WITH seqs AS (
                      SELECT celebration_id, seq,
                             LAG(seq) OVER (PARTITION BY celebration_id ORDER BY seq) AS prev
                      FROM celebration_ledger)
                  SELECT * FROM seqs
                  WHERE (prev IS NULL AND seq <> 1) OR (prev IS NOT NULL AND seq <> prev + 1)`,
		},
		{
			Name: "O4_ledger_chain_continuous",
			SQL: `WITH chain AS (
                      SELECT celebration_id, seq, previous_status, new_status,
                             LAG(new_status) OVER (PARTITION BY celebration_id ORDER BY seq) AS prior_new
                      FROM celebration_ledger)
                  SELECT * FROM chain
                  WHERE (prior_new IS NULL AND previous_status <> 'active')
                     OR (prior_new IS NOT NULL AND previous_status <> prior_new)`,
		},
		{
			Name: "O5_no_exit_from_terminal",
			SQL: `SELECT * FROM celebration_ledger
                  WHERE previous_status IN ('resolved', 'defunct')`,
		},
		{
			Name: "O6_outbox_not_starved",
			SQL: `SELECT id, topic, status, attempts FROM outbox
                  WHERE status NOT IN ('processed', 'dead')
                    AND now() - created_at > interval '5 minutes'`,
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
		if rows.Next() {
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
