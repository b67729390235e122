package migration

import (
	"context"

	"kba-plugin/internal/migration"
)

// CreateKBADataTableSQL creates the k_b_a_data table. id is a 128-bit UUID.
const CreateKBADataTableSQL = `CREATE TABLE IF NOT EXISTS k_b_a_data (
    id          UUID         NOT NULL,
    name        VARCHAR(255),
    description VARCHAR(255),
    active      BOOLEAN,
    created_at  TIMESTAMP(3) NOT NULL,
    updated_at  TIMESTAMP(3),
    PRIMARY KEY (id)
)`

type Migration1722080412CreateKBADataTable struct{}

var _ migration.Step = Migration1722080412CreateKBADataTable{}

func (Migration1722080412CreateKBADataTable) CreationTimestamp() int64 {
	return 1722080412
}

func (Migration1722080412CreateKBADataTable) Update(ctx context.Context, conn migration.Execer) error {
	_, err := conn.ExecContext(ctx, CreateKBADataTableSQL)
	return err
}

func (Migration1722080412CreateKBADataTable) UpdateDestructive(context.Context, migration.Execer) error {
	return nil
}
