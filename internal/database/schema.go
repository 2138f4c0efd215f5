package database

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"ms-demo-booking/internal/models"
)

// CreateSchema creates the service tables from the bun models. It backs the
// sqlite driver and tests; Postgres deployments use the SQL migrations.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	tables := []struct {
		model interface{}
		fks   []string
	}{
		{model: (*models.Session)(nil)},
		{model: (*models.Attendee)(nil)},
		{model: (*models.Ticket)(nil), fks: []string{
			`("session_id") REFERENCES "demo_sessions" ("id")`,
			`("attendee_id") REFERENCES "attendees" ("id")`,
		}},
		{model: (*models.AdminUser)(nil)},
	}

	for _, tbl := range tables {
		q := db.NewCreateTable().Model(tbl.model).IfNotExists()
		for _, fk := range tbl.fks {
			q = q.ForeignKey(fk)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", tbl.model, err)
		}
	}

	_, err := db.NewCreateIndex().
		Model((*models.Ticket)(nil)).
		Index("tickets_session_id_idx").
		Column("session_id").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create tickets index: %w", err)
	}
	return nil
}
