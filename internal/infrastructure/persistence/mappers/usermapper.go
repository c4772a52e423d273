package mappers

import (
	"github.com/orris-inc/autopay/internal/domain/user"
	"github.com/orris-inc/autopay/internal/infrastructure/persistence/models"
)

func UserToModel(u *user.User) *models.UserModel {
	return &models.UserModel{
		ID:                   u.ID(),
		ExternalID:           u.ExternalID(),
		SavedPaymentMethodID: u.SavedPaymentMethodID(),
		CreatedAt:            u.CreatedAt(),
		UpdatedAt:            u.UpdatedAt(),
	}
}

func UserToDomain(model *models.UserModel) *user.User {
	return user.ReconstructUser(
		model.ID,
		model.ExternalID,
		model.SavedPaymentMethodID,
		model.CreatedAt.UTC(),
		model.UpdatedAt.UTC(),
	)
}
