// Package oracles holds SQL invariant checks run against a live database
// while the stress actors are working. Every query returns rows only when
// the invariant it guards has been violated.
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

func All() []Oracle {
	return []Oracle{
		{
			Name: "O1_unique_document_number",
			SQL: `SELECT kind, document_number, COUNT(*) FROM documents
                  GROUP BY kind, document_number HAVING COUNT(*) > 1`,
		},
		{
			Name: "O2_reviewer_stamp_present",
			SQL: `SELECT id, status FROM documents
                  WHERE status IN ('reviewed', 'approved_pic', 'approved_direksi')
                    AND (reviewer_pic_id IS NULL OR review_timestamp IS NULL)`,
		},
		{
			Name: "O3_approver_stamp_present",
			SQL: `SELECT id, status FROM documents
                  WHERE status = 'approved_direksi'
                    AND (approver_direksi_id IS NULL OR approval_timestamp IS NULL)`,
		},
		{
			Name: "O4_no_orphan_history",
			SQL: `SELECT h.id FROM history_entries h
                  WHERE NOT EXISTS (SELECT 1 FROM documents d WHERE d.id = h.document_id)`,
		},
		{
			Name: "O5_no_orphan_attachments",
			SQL: `SELECT a.id FROM attachments a
                  WHERE NOT EXISTS (SELECT 1 FROM documents d WHERE d.id = a.document_id)`,
		},
		{
			Name: "O6_latest_entry_matches_status",
			SQL: `SELECT d.id, d.status, h.status_after FROM documents d
                  JOIN LATERAL (
                      SELECT status_after FROM history_entries
                      WHERE kind = d.kind AND document_id = d.id
                      ORDER BY created_at DESC, id DESC LIMIT 1
                  ) h ON true
                  WHERE h.status_after <> d.status`,
		},
		{
			Name: "O7_terminal_states_final",
			SQL: `SELECT id, status_before, status_after FROM history_entries
                  WHERE status_before IN ('approved_direksi', 'rejected')
                    AND status_after <> status_before`,
		},
		{
			Name: "O8_single_final_approval",
			SQL: `SELECT document_id, COUNT(*) FROM history_entries
                  WHERE action = 'approved' AND status_after = 'approved_direksi'
                  GROUP BY document_id HAVING COUNT(*) > 1`,
		},
		{
			Name: "O9_every_document_has_creation",
			SQL: `SELECT d.id FROM documents d
                  WHERE NOT EXISTS (
                      SELECT 1 FROM history_entries h
                      WHERE h.kind = d.kind AND h.document_id = d.id AND h.action = 'created')`,
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
