package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/loopwork-studio/agency-api/internal/domain"
	"gorm.io/gorm"
)

// ClientRepository handles database operations for client organisations
type ClientRepository struct {
	db *gorm.DB
}

func NewClientRepository(db *gorm.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

func (r *ClientRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Client, error) {
	var client domain.Client
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&client).Error
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// GetByGatewayCustomerID resolves the client linked to a payment gateway customer
func (r *ClientRepository) GetByGatewayCustomerID(ctx context.Context, customerID string) (*domain.Client, error) {
	var client domain.Client
	err := r.db.WithContext(ctx).Where("gateway_customer_id = ?", customerID).First(&client).Error
	if err != nil {
		return nil, err
	}
	return &client, nil
}
