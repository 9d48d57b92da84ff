package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/linguavox/linguavox/internal/core"
	"github.com/linguavox/linguavox/internal/data/pgxutil"
	"github.com/linguavox/linguavox/internal/domain/model"
)

// SQL used by ClaimNext to atomically claim the oldest pending upload.
const claimNextUpdateSQL = `
  WITH cte AS (
    SELECT id FROM uploads
    WHERE status = 'pending'
    ORDER BY created_at ASC
    LIMIT 1
    FOR UPDATE SKIP LOCKED
  )
  UPDATE uploads u
  SET
    status = 'claimed',
    claimed_at = $1,
    claimed_by = $2,
    claim_expires_at = $3,
    updated_at = $4
  FROM cte
  WHERE u.id = cte.id
  RETURNING u.id, u.status, u.audio_key, u.file_name, u.content_type, u.size_bytes, u.claimed_at, u.claimed_by, u.claim_expires_at, u.language, u.transcript, u.error_code, u.error_message, u.completed_at, u.created_at, u.updated_at`

// Create inserts a new pending upload.
func (r *UploadRepo) Create(
	ctx context.Context,
	params core.CreateUploadParams,
) (*model.Upload, error) {
	if strings.TrimSpace(params.ID) == "" {
		return nil, errors.New("upload id is required")
	}
	if strings.TrimSpace(params.AudioKey) == "" {
		return nil, errors.New("audio key is required")
	}

	currentTime := r.timeProvider.Now().UTC()

	var upload *model.Upload
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, qerr := pgxConn.Query(ctx, `
      INSERT INTO uploads(id, status, audio_key, file_name, content_type, size_bytes, created_at, updated_at)
      VALUES ($1,'pending',$2,$3,$4,$5,$6,$6)
      RETURNING `+uploadColumns,
			params.ID,
			params.AudioKey,
			params.FileName,
			params.ContentType,
			params.SizeBytes,
			currentTime,
		)
		if qerr != nil {
			return fmt.Errorf("insert upload: %w", qerr)
		}
		defer rows.Close()

		u, cerr := collectUploadFromRows(rows)
		if cerr != nil {
			return fmt.Errorf("collect upload: %w", cerr)
		}
		upload = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return upload, nil
}

// GetByID retrieves an upload by its ID.
func (r *UploadRepo) GetByID(ctx context.Context, id string) (*model.Upload, error) {
	var upload *model.Upload
	err := pgxutil.WithPgxConn(ctx, r.DB, func(pgxConn *pgx.Conn) error {
		rows, err := pgxConn.Query(ctx, `
			SELECT `+uploadColumns+`
			FROM uploads
			WHERE id = $1
		`, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		upload, err = collectUploadFromRows(rows)
		return err
	})

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUploadNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get upload: %w", err)
	}
	return upload, nil
}

// ClaimNext atomically claims the oldest pending upload for processing.
func (r *UploadRepo) ClaimNext(
	ctx context.Context,
	params core.ClaimParams,
) (*model.Upload, error) {
	if params.ClaimSeconds <= 0 {
		return nil, errors.New("claim seconds must be positive")
	}
	if strings.TrimSpace(params.ClaimedBy) == "" {
		return nil, errors.New("claimed by is required")
	}

	var upload *model.Upload
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Opts: &sql.TxOptions{
			Isolation: sql.LevelReadCommitted,
			ReadOnly:  false,
		},
		Fn: func(tx pgx.Tx) error {
			currentTime := r.timeProvider.Now()
			claimExpiresAt := currentTime.Add(time.Duration(params.ClaimSeconds) * time.Second)

			rows, qerr := tx.Query(
				ctx,
				claimNextUpdateSQL,
				currentTime.UTC(),
				params.ClaimedBy,
				claimExpiresAt.UTC(),
				currentTime.UTC(),
			)
			if qerr != nil {
				return fmt.Errorf("claim upload: %w", qerr)
			}
			defer rows.Close()

			u, cerr := collectUploadFromRows(rows)
			if errors.Is(cerr, pgx.ErrNoRows) {
				return model.ErrNoUploadsAvailable
			}
			if cerr != nil {
				return fmt.Errorf("claim upload: %w", cerr)
			}
			upload = u
			return nil
		},
	})
	if err != nil {
		if errors.Is(err, model.ErrNoUploadsAvailable) {
			return nil, model.ErrNoUploadsAvailable
		}
		return nil, err
	}
	return upload, nil
}

// Advisory lock namespace for RequeueStale so concurrent workers do not contend.
const (
	advisoryLockRequeueMajor int64 = 2001
	advisoryLockRequeueMinor int64 = 1
)

// RequeueStale returns claimed uploads whose claim expiry has passed to pending.
func (r *UploadRepo) RequeueStale(ctx context.Context) (int64, error) {
	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1::integer, $2::integer)", advisoryLockRequeueMajor, advisoryLockRequeueMinor).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				rowsAffected = 0
				return nil
			}

			currentTime := r.timeProvider.Now()
			res, err := tx.ExecContext(ctx, `
          UPDATE uploads
          SET status = 'pending',
              claimed_at = NULL,
              claimed_by = NULL,
              claim_expires_at = NULL,
              updated_at = $2
          WHERE status = 'claimed'
            AND claim_expires_at IS NOT NULL
            AND claim_expires_at < $1
        `, currentTime.UTC(), currentTime.UTC())
			if err != nil {
				return fmt.Errorf("requeue stale: %w", err)
			}
			ra, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			rowsAffected = ra
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}

// Complete records a detection result on a claimed upload. Returns false when
// the upload is not currently claimed, which leaves terminal rows untouched.
func (r *UploadRepo) Complete(
	ctx context.Context,
	id string,
	result *model.DetectionResult,
) (bool, error) {
	if result == nil {
		return false, errors.New("detection result is required")
	}
	if err := result.Validate(); err != nil {
		return false, err
	}

	currentTime := r.timeProvider.Now().UTC()

	res, err := r.DB.ExecContext(ctx, `
		UPDATE uploads
		SET status = 'completed',
		    language = $2,
		    transcript = $3,
		    completed_at = $4,
		    claim_expires_at = NULL,
		    updated_at = $4
		WHERE id = $1 AND status = 'claimed'
	`, id, result.Language, result.Transcript, currentTime)
	if err != nil {
		return false, fmt.Errorf("complete upload: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// Fail records a terminal error on a claimed upload. Returns false when the
// upload is not currently claimed.
func (r *UploadRepo) Fail(
	ctx context.Context,
	id string,
	uerr *model.UploadError,
) (bool, error) {
	if uerr == nil || strings.TrimSpace(uerr.Code) == "" {
		return false, errors.New("upload error with code is required")
	}

	currentTime := r.timeProvider.Now().UTC()

	res, err := r.DB.ExecContext(ctx, `
		UPDATE uploads
		SET status = 'failed',
		    error_code = $2,
		    error_message = $3,
		    completed_at = $4,
		    claim_expires_at = NULL,
		    updated_at = $4
		WHERE id = $1 AND status = 'claimed'
	`, id, uerr.Code, uerr.Message, currentTime)
	if err != nil {
		return false, fmt.Errorf("fail upload: %w", err)
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("fail rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// Stats returns counts of uploads in each state plus the total ever ingested.
func (r *UploadRepo) Stats(ctx context.Context) (*model.UploadStats, error) {
	var s model.UploadStats
	err := r.DB.QueryRowContext(ctx, `
  SELECT
    count(*)                                     AS total,
    count(*) FILTER (WHERE status = 'pending')   AS pending,
    count(*) FILTER (WHERE status = 'claimed')   AS claimed,
    count(*) FILTER (WHERE status = 'completed') AS completed,
    count(*) FILTER (WHERE status = 'failed')    AS failed
  FROM uploads
  `).Scan(
		&s.Total,
		&s.Pending,
		&s.Claimed,
		&s.Completed,
		&s.Failed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get upload stats: %w", err)
	}
	return &s, nil
}

// collectUploadFromRows collects a single upload from pgx rows using pgx v5 helpers.
func collectUploadFromRows(rows pgx.Rows) (*model.Upload, error) {
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}

	upload, err := scanUploadFromRow(rows)
	if err != nil {
		return nil, err
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, rowsErr
	}

	return upload, nil
}

type uploadRowScanner interface {
	Scan(dest ...any) error
}

type uploadRowData struct {
	claimedBy, language, transcript        sql.NullString
	errorCode, errorMessage                sql.NullString
	claimedAt, claimExpiresAt, completedAt sql.NullTime
}

func (d *uploadRowData) scanInto(scanner uploadRowScanner, upload *model.Upload) error {
	return scanner.Scan(
		&upload.ID,
		&upload.Status,
		&upload.AudioKey,
		&upload.FileName,
		&upload.ContentType,
		&upload.SizeBytes,
		&d.claimedAt,
		&d.claimedBy,
		&d.claimExpiresAt,
		&d.language,
		&d.transcript,
		&d.errorCode,
		&d.errorMessage,
		&d.completedAt,
		&upload.CreatedAt,
		&upload.UpdatedAt,
	)
}

func (d *uploadRowData) apply(upload *model.Upload) {
	upload.ClaimedAt = cloneNullableTime(d.claimedAt)
	upload.ClaimedBy = cloneNullableString(d.claimedBy)
	upload.ClaimExpiresAt = cloneNullableTime(d.claimExpiresAt)
	upload.Language = cloneNullableString(d.language)
	upload.Transcript = cloneNullableString(d.transcript)
	upload.ErrorCode = cloneNullableString(d.errorCode)
	upload.ErrorMessage = cloneNullableString(d.errorMessage)
	upload.CompletedAt = cloneNullableTime(d.completedAt)
}

func scanUploadFromRow(scanner uploadRowScanner) (*model.Upload, error) {
	upload := &model.Upload{}
	var data uploadRowData
	if err := data.scanInto(scanner, upload); err != nil {
		return nil, err
	}

	data.apply(upload)
	return upload, nil
}

func cloneNullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func cloneNullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
