package store

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"kasirkuy/internal/models"
)

// ProductStore owns the products and product_variants tables.
type ProductStore struct {
	db *gorm.DB
}

func NewProductStore(db *gorm.DB) *ProductStore {
	return &ProductStore{db: db}
}

// ListByUser returns the caller's products with their variants, newest first.
func (s *ProductStore) ListByUser(userID uint) ([]models.Product, error) {
	var items []models.Product
	err := s.db.Preload("Variants").
		Where("user_id = ?", userID).
		Order("id desc").
		Find(&items).Error
	return items, err
}

// ListAll returns every product with variants and the owner's username.
// Used by the admin listing.
func (s *ProductStore) ListAll() ([]models.Product, error) {
	var items []models.Product
	if err := s.db.Preload("Variants").Order("id desc").Find(&items).Error; err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return items, nil
	}
	var users []models.User
	if err := s.db.Find(&users).Error; err != nil {
		return nil, err
	}
	names := make(map[uint]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Username
	}
	for i := range items {
		items[i].UserName = names[items[i].UserID]
	}
	return items, nil
}

// Get loads one product with its variants.
func (s *ProductStore) Get(id uint) (*models.Product, error) {
	var p models.Product
	if err := s.db.Preload("Variants").First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Create validates and inserts a product together with its variants in one
// transaction; a bad variant rejects the whole operation.
func (s *ProductStore) Create(p *models.Product) error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrNameRequired
	}
	if p.Price < 0 {
		return ErrInvalidPrice
	}
	p.Name = strings.TrimSpace(p.Name)
	if err := s.db.Create(p).Error; err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

// ProductPatch carries the fields an update may change. Nil means leave as
// is. Variants, when present, replace the previous set wholesale.
type ProductPatch struct {
	Name     *string
	Price    *float64
	ImageURL *string
	Variants *[]models.ProductVariant
}

// Update applies a partial update. Only the owner or an admin may mutate;
// the ownership check precedes any write. Returns the updated product and
// the replaced image URL (empty if the image did not change) so the caller
// can reclaim the old file.
func (s *ProductStore) Update(id, callerID uint, isAdmin bool, patch ProductPatch) (*models.Product, string, error) {
	p, err := s.Get(id)
	if err != nil {
		return nil, "", err
	}
	if p.UserID != callerID && !isAdmin {
		return nil, "", ErrForbidden
	}

	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			return nil, "", ErrNameRequired
		}
		p.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Price != nil {
		if *patch.Price < 0 {
			return nil, "", ErrInvalidPrice
		}
		p.Price = *patch.Price
	}
	oldImage := ""
	if patch.ImageURL != nil && *patch.ImageURL != p.ImageURL {
		oldImage = p.ImageURL
		p.ImageURL = *patch.ImageURL
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if patch.Variants != nil {
			// Full replacement, delete-then-insert, never a merge.
			if err := tx.Where("product_id = ?", p.ID).Delete(&models.ProductVariant{}).Error; err != nil {
				return err
			}
			p.Variants = *patch.Variants
			for i := range p.Variants {
				p.Variants[i].ID = 0
				p.Variants[i].ProductID = p.ID
			}
			if len(p.Variants) > 0 {
				if err := tx.Create(&p.Variants).Error; err != nil {
					return err
				}
			}
		}
		return tx.Omit("Variants").Save(p).Error
	})
	if err != nil {
		return nil, "", fmt.Errorf("update product: %w", err)
	}
	return p, oldImage, nil
}

// Delete removes a product and its variants. Only the owner or an admin may
// delete. Returns the product's image URL so the caller can reclaim it.
func (s *ProductStore) Delete(id, callerID uint, isAdmin bool) (string, error) {
	p, err := s.Get(id)
	if err != nil {
		return "", err
	}
	if p.UserID != callerID && !isAdmin {
		return "", ErrForbidden
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", p.ID).Delete(&models.ProductVariant{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Product{}, "id = ?", p.ID).Error
	})
	if err != nil {
		return "", fmt.Errorf("delete product: %w", err)
	}
	return p.ImageURL, nil
}

// CountReferencing counts products whose image URL contains the filename.
// The substring match is deliberately permissive so duplicate uploads of the
// same logical image keep the file alive.
func (s *ProductStore) CountReferencing(filename string) (int64, error) {
	var cnt int64
	err := s.db.Model(&models.Product{}).
		Where("image_url LIKE ?", "%"+filename+"%").
		Count(&cnt).Error
	return cnt, err
}

// ActiveImageURLs returns every non-empty image URL in the catalog.
func (s *ProductStore) ActiveImageURLs() ([]string, error) {
	var urls []string
	err := s.db.Model(&models.Product{}).
		Where("image_url <> ''").
		Pluck("image_url", &urls).Error
	return urls, err
}
