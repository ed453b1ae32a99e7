package weights

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/weightworks/weights-service/pkg/clients/postgres"
	werr "github.com/weightworks/weights-service/pkg/errors"
)

// Repository persists weight records in PostgreSQL. Ownership is enforced
// inside the SQL predicates themselves: there is no statement that reads
// or writes a record without the owner in its WHERE clause, so a
// check-then-act race against ownership cannot occur.
type Repository struct {
	client *postgres.Client
}

// NewRepository creates a Repository backed by the given client.
func NewRepository(client *postgres.Client) *Repository {
	return &Repository{client: client}
}

// schemaDDL creates the weights table and its owner index. The id column
// is generated by default (not always) so upserts may supply explicit ids.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS weights (
    id          BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
    user_id     VARCHAR(50)   NOT NULL,
    recorded_at TIMESTAMPTZ   NOT NULL DEFAULT now(),
    weight      NUMERIC(5,2)  NOT NULL,
    comment     VARCHAR(255)
);
CREATE INDEX IF NOT EXISTS weights_user_id_idx ON weights (user_id);
`

// EnsureSchema creates the weights table if it does not exist. Called
// once at startup before the server accepts traffic.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.client.Exec(ctx, schemaDDL); err != nil {
		return werr.Wrap(err, werr.CodeInternalDatabase,
			"weights: failed to ensure schema")
	}
	return nil
}

// FindAllByOwner returns all weight records owned by the given user,
// oldest id first. An owner with no records gets an empty slice, not nil.
func (r *Repository) FindAllByOwner(ctx context.Context, userID string) ([]WeightRecord, error) {
	rows, err := r.client.Query(ctx,
		`SELECT id, user_id, recorded_at, weight, comment
		   FROM weights
		  WHERE user_id = $1
		  ORDER BY id`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]WeightRecord, 0)
	for rows.Next() {
		var rec WeightRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.RecordedAt, &rec.Weight, &rec.Comment); err != nil {
			return nil, werr.Wrap(err, werr.CodeInternalDatabase,
				"weights: failed to scan record")
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, werr.Wrap(err, werr.CodeInternalDatabase,
			"weights: failed to read records")
	}
	return records, nil
}

// Insert stores a new weight record for the given owner and returns the
// generated id. The measurement timestamp is assigned by the store.
func (r *Repository) Insert(ctx context.Context, userID string, save SaveWeight) (int64, error) {
	var id int64
	err := r.client.QueryRow(ctx,
		`INSERT INTO weights (user_id, weight, comment)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		userID, save.Weight, save.Comment,
	).Scan(&id)
	if err != nil {
		return 0, wrapRowError(err, "weights: failed to insert record")
	}
	return id, nil
}

// Upsert inserts the record under its id, or updates it if it already
// exists and belongs to the same owner. Insert and ownership-checked
// update happen in a single statement, so a concurrent writer can never
// slip between the check and the write.
//
// If the id exists but belongs to a different owner, the update predicate
// matches no row and Upsert returns an AUTHZ ownership error, which the
// handler maps to the same empty 401 as any other authorization failure.
func (r *Repository) Upsert(ctx context.Context, rec WeightRecord) error {
	var storedID int64
	err := r.client.QueryRow(ctx,
		`INSERT INTO weights (id, user_id, recorded_at, weight, comment)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE
		    SET recorded_at = EXCLUDED.recorded_at,
		        weight      = EXCLUDED.weight,
		        comment     = EXCLUDED.comment
		  WHERE weights.user_id = EXCLUDED.user_id
		 RETURNING id`,
		rec.ID, rec.UserID, rec.RecordedAt, rec.Weight, rec.Comment,
	).Scan(&storedID)
	if errors.Is(err, pgx.ErrNoRows) {
		return werr.Newf(werr.CodeAuthorizationOwnership,
			"weights: record %d is not owned by the caller", rec.ID)
	}
	if err != nil {
		return wrapRowError(err, "weights: failed to upsert record")
	}
	return nil
}

// Delete removes the record with the given id if it is owned by the given
// user. Deleting a record that does not exist or belongs to another owner
// is not an error: the caller observes the same outcome either way, so a
// delete response never reveals whether a foreign id exists.
func (r *Repository) Delete(ctx context.Context, userID string, id int64) error {
	_, err := r.client.Exec(ctx,
		`DELETE FROM weights WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	return err
}

// wrapRowError classifies an error from a QueryRow scan. QueryRow defers
// errors to Scan, so context failures must be distinguished here rather
// than in the client.
func wrapRowError(err error, message string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return werr.Wrap(err, werr.CodeTimeoutDatabase, message)
	}
	return werr.Wrap(err, werr.CodeInternalDatabase, message)
}
