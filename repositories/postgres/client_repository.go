package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/teftar/api/models"
	"github.com/teftar/api/repositories"
	"go.uber.org/zap"
)

const clientColumns = `id, user_id, client_type, company_name, person_name, email, phone_numbers,
	country, address_line1, address_line2, city, province, postal_code, created_at, updated_at`

// ClientRepository implements the repositories.ClientRepository interface
type ClientRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewClientRepository creates a new client repository
func NewClientRepository(db *DB, logger *zap.Logger) repositories.ClientRepository {
	return &ClientRepository{
		db:     db,
		logger: logger,
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanClient(row rowScanner) (*models.Client, error) {
	client := &models.Client{}
	err := row.Scan(
		&client.ID,
		&client.UserID,
		&client.ClientType,
		&client.CompanyName,
		&client.PersonName,
		&client.Email,
		&client.PhoneNumbers,
		&client.Country,
		&client.AddressLine1,
		&client.AddressLine2,
		&client.City,
		&client.Province,
		&client.PostalCode,
		&client.CreatedAt,
		&client.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// List returns the owner's clients, newest first
func (r *ClientRepository) List(ctx context.Context, userID uuid.UUID) ([]*models.Client, error) {
	query := `SELECT ` + clientColumns + `
		FROM clients
		WHERE user_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	clients := make([]*models.Client, 0)
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, client)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating clients: %w", err)
	}

	return clients, nil
}

// Create inserts a client
func (r *ClientRepository) Create(ctx context.Context, client *models.Client) error {
	query := `
		INSERT INTO clients (
			id, user_id, client_type, company_name, person_name, email, phone_numbers,
			country, address_line1, address_line2, city, province, postal_code, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.db.ExecContext(ctx, query,
		client.ID,
		client.UserID,
		client.ClientType,
		client.CompanyName,
		client.PersonName,
		client.Email,
		client.PhoneNumbers,
		client.Country,
		client.AddressLine1,
		client.AddressLine2,
		client.City,
		client.Province,
		client.PostalCode,
		client.CreatedAt,
		client.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	r.logger.Debug("client created",
		zap.String("id", client.ID.String()),
		zap.String("user_id", client.UserID.String()))
	return nil
}

// GetByID retrieves one client owned by userID
func (r *ClientRepository) GetByID(ctx context.Context, id, userID uuid.UUID) (*models.Client, error) {
	query := `SELECT ` + clientColumns + `
		FROM clients
		WHERE id = $1 AND user_id = $2`

	client, err := scanClient(r.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	return client, nil
}

// Update applies the non-nil fields of patch
func (r *ClientRepository) Update(ctx context.Context, id, userID uuid.UUID, patch models.ClientPatch) (*models.Client, error) {
	query := `
		UPDATE clients
		SET
			client_type = COALESCE($1, client_type),
			company_name = COALESCE($2, company_name),
			person_name = COALESCE($3, person_name),
			email = COALESCE($4, email),
			phone_numbers = COALESCE($5, phone_numbers),
			country = COALESCE($6, country),
			address_line1 = COALESCE($7, address_line1),
			address_line2 = COALESCE($8, address_line2),
			city = COALESCE($9, city),
			province = COALESCE($10, province),
			postal_code = COALESCE($11, postal_code),
			updated_at = NOW()
		WHERE id = $12 AND user_id = $13
		RETURNING ` + clientColumns

	var clientType interface{}
	if patch.ClientType != nil {
		clientType = string(*patch.ClientType)
	}
	var phoneNumbers interface{}
	if patch.PhoneNumbers != nil {
		phoneNumbers = *patch.PhoneNumbers
	}

	client, err := scanClient(r.db.QueryRowContext(ctx, query,
		clientType,
		patch.CompanyName,
		patch.PersonName,
		patch.Email,
		phoneNumbers,
		patch.Country,
		patch.AddressLine1,
		patch.AddressLine2,
		patch.City,
		patch.Province,
		patch.PostalCode,
		id,
		userID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update client: %w", err)
	}

	r.logger.Debug("client updated", zap.String("id", id.String()))
	return client, nil
}

// Delete removes a client owned by userID
func (r *ClientRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM clients WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return repositories.ErrNotFound
	}

	r.logger.Debug("client deleted", zap.String("id", id.String()))
	return nil
}
