package store

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"kasirkuy/internal/models"
)

// Max accounts that may be registered from one IP address.
const maxAccountsPerIP = 3

// UserStore owns the users and device_registrations tables.
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// UserWithCount is the admin listing row.
type UserWithCount struct {
	models.User
	ProductsCount int64 `json:"products_count"`
}

// Create inserts a new user. The password must already be hashed.
func (s *UserStore) Create(username, passwordHash string, isAdmin bool) (*models.User, error) {
	var cnt int64
	if err := s.db.Model(&models.User{}).Where("username = ?", username).Count(&cnt).Error; err != nil {
		return nil, err
	}
	if cnt > 0 {
		return nil, ErrUsernameTaken
	}
	u := models.User{Username: username, PasswordHash: passwordHash, IsAdmin: isAdmin}
	if err := s.db.Create(&u).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

// CreateWithDevice inserts a user together with its device registration in
// one transaction, enforcing the per-IP account cap. The cap check and the
// inserts share the transaction so a concurrent registration cannot slip a
// fourth account past the limit.
func (s *UserStore) CreateWithDevice(username, passwordHash, fingerprint, ip string) (*models.User, error) {
	var u models.User
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var cnt int64
		if err := tx.Model(&models.DeviceRegistration{}).Where("ip_address = ?", ip).Count(&cnt).Error; err != nil {
			return err
		}
		if cnt >= maxAccountsPerIP {
			return ErrDeviceLimit
		}
		if err := tx.Model(&models.User{}).Where("username = ?", username).Count(&cnt).Error; err != nil {
			return err
		}
		if cnt > 0 {
			return ErrUsernameTaken
		}
		u = models.User{Username: username, PasswordHash: passwordHash}
		if err := tx.Create(&u).Error; err != nil {
			return err
		}
		reg := models.DeviceRegistration{Fingerprint: fingerprint, IPAddress: ip, UserID: u.ID}
		return tx.Create(&reg).Error
	})
	if err != nil {
		if errors.Is(err, ErrDeviceLimit) || errors.Is(err, ErrUsernameTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return &u, nil
}

func (s *UserStore) GetByID(id uint) (*models.User, error) {
	var u models.User
	if err := s.db.First(&u, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *UserStore) GetByUsername(username string) (*models.User, error) {
	var u models.User
	if err := s.db.First(&u, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// List returns all users with their product counts, newest first.
func (s *UserStore) List() ([]UserWithCount, error) {
	var users []models.User
	if err := s.db.Order("id desc").Find(&users).Error; err != nil {
		return nil, err
	}
	out := make([]UserWithCount, 0, len(users))
	for _, u := range users {
		var cnt int64
		if err := s.db.Model(&models.Product{}).Where("user_id = ?", u.ID).Count(&cnt).Error; err != nil {
			return nil, err
		}
		out = append(out, UserWithCount{User: u, ProductsCount: cnt})
	}
	return out, nil
}

// UserPatch carries the fields an admin may change. Nil means leave as is.
type UserPatch struct {
	Username     *string
	PasswordHash *string
	IsAdmin      *bool
}

// Update applies a partial update to a user.
func (s *UserStore) Update(id uint, patch UserPatch) (*models.User, error) {
	u, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if patch.Username != nil && *patch.Username != u.Username {
		var cnt int64
		if err := s.db.Model(&models.User{}).
			Where("username = ? AND id <> ?", *patch.Username, id).
			Count(&cnt).Error; err != nil {
			return nil, err
		}
		if cnt > 0 {
			return nil, ErrUsernameTaken
		}
		u.Username = *patch.Username
	}
	if patch.PasswordHash != nil {
		u.PasswordHash = *patch.PasswordHash
	}
	if patch.IsAdmin != nil {
		u.IsAdmin = *patch.IsAdmin
	}
	if err := s.db.Save(u).Error; err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

// Delete removes a user row and its device registrations, so the deleted
// account stops counting against the per-IP cap. Rejected with ErrLastAdmin
// if the target is the only remaining admin. The caller is responsible for
// deleting the user's products first so their images get reclaimed.
func (s *UserStore) Delete(id uint) error {
	u, err := s.GetByID(id)
	if err != nil {
		return err
	}
	if u.IsAdmin {
		var admins int64
		if err := s.db.Model(&models.User{}).Where("is_admin = ?", true).Count(&admins).Error; err != nil {
			return err
		}
		if admins <= 1 {
			return ErrLastAdmin
		}
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&models.DeviceRegistration{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.User{}, "id = ?", id).Error
	})
}

// AdminCount reports how many admin users exist.
func (s *UserStore) AdminCount() (int64, error) {
	var cnt int64
	err := s.db.Model(&models.User{}).Where("is_admin = ?", true).Count(&cnt).Error
	return cnt, err
}

// CountByIP reports how many accounts were registered from an IP address.
func (s *UserStore) CountByIP(ip string) (int64, error) {
	var cnt int64
	err := s.db.Model(&models.DeviceRegistration{}).Where("ip_address = ?", ip).Count(&cnt).Error
	return cnt, err
}
