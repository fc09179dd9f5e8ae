package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"kasirkuy/internal/models"
	"kasirkuy/internal/store"
	"kasirkuy/internal/uploads"
)

type variantRequest struct {
	Name            string  `json:"name"`
	Value           string  `json:"value"`
	PriceAdjustment float64 `json:"price_adjustment"`
}

// parseVariants decodes the multipart "variants" field (a JSON array). A
// single bad entry rejects the whole list; there are no partial inserts.
func parseVariants(raw string) ([]models.ProductVariant, error) {
	var reqs []variantRequest
	if err := json.Unmarshal([]byte(raw), &reqs); err != nil {
		return nil, errors.New("invalid variants format")
	}
	out := make([]models.ProductVariant, 0, len(reqs))
	for _, v := range reqs {
		if strings.TrimSpace(v.Name) == "" {
			return nil, errors.New("variant name is required")
		}
		out = append(out, models.ProductVariant{
			Name:            strings.TrimSpace(v.Name),
			Value:           strings.TrimSpace(v.Value),
			PriceAdjustment: v.PriceAdjustment,
		})
	}
	return out, nil
}

// storeUploadedImage saves the optional "image" form file. An absent file is
// not an error.
func (s *Server) storeUploadedImage(c *gin.Context) (string, error) {
	file, err := c.FormFile("image")
	if err != nil {
		return "", nil
	}
	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()
	return s.uploads.Store(src, file.Filename)
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return 0, false
	}
	return uint(id), true
}

// ListProducts handles GET /api/products: the caller's own products.
func (s *Server) ListProducts(c *gin.Context) {
	claims := mustClaims(c)
	items, err := s.products.ListByUser(claims.UserID())
	if err != nil {
		s.internalError(c, "list products", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": items})
}

// CreateProduct handles POST /api/products (multipart).
func (s *Server) CreateProduct(c *gin.Context) {
	s.createProduct(c, mustClaims(c).UserID())
}

func (s *Server) createProduct(c *gin.Context, ownerID uint) {
	name := strings.TrimSpace(c.PostForm("name"))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Product name is required"})
		return
	}
	priceStr := strings.TrimSpace(c.PostForm("price"))
	if priceStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Product price is required"})
		return
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid price format"})
		return
	}
	if price < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Price cannot be negative"})
		return
	}

	var variants []models.ProductVariant
	if raw, ok := c.GetPostForm("variants"); ok && strings.TrimSpace(raw) != "" {
		variants, err = parseVariants(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	imageURL, err := s.storeUploadedImage(c)
	if err != nil {
		if errors.Is(err, uploads.ErrBadExtension) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file type"})
			return
		}
		s.internalError(c, "save image", err)
		return
	}

	p := &models.Product{
		UserID:   ownerID,
		Name:     name,
		Price:    price,
		ImageURL: imageURL,
		Variants: variants,
	}
	if err := s.products.Create(p); err != nil {
		// Best-effort compensating cleanup: the image write and the row
		// insert are not atomic, Sweep is the backstop.
		if imageURL != "" {
			s.uploads.Remove(imageURL)
		}
		switch {
		case errors.Is(err, store.ErrNameRequired), errors.Is(err, store.ErrInvalidPrice):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			s.internalError(c, "create product", err)
		}
		return
	}
	s.sweep()

	c.JSON(http.StatusCreated, gin.H{
		"message": "Product added successfully",
		"product": p,
	})
}

// UpdateProduct handles PUT /api/products/:id (multipart, partial).
func (s *Server) UpdateProduct(c *gin.Context) {
	claims := mustClaims(c)
	s.updateProduct(c, claims.UserID(), claims.IsAdmin)
}

func (s *Server) updateProduct(c *gin.Context, callerID uint, isAdmin bool) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var patch store.ProductPatch
	if v, ok := c.GetPostForm("name"); ok {
		name := strings.TrimSpace(v)
		patch.Name = &name
	}
	if v, ok := c.GetPostForm("price"); ok {
		price, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid price format"})
			return
		}
		patch.Price = &price
	}
	if raw, ok := c.GetPostForm("variants"); ok {
		variants, err := parseVariants(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		patch.Variants = &variants
	}

	newImage, err := s.storeUploadedImage(c)
	if err != nil {
		if errors.Is(err, uploads.ErrBadExtension) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file type"})
			return
		}
		s.internalError(c, "save image", err)
		return
	}
	if newImage != "" {
		patch.ImageURL = &newImage
	}

	p, oldImage, err := s.products.Update(id, callerID, isAdmin, patch)
	if err != nil {
		if newImage != "" {
			s.uploads.Remove(newImage)
		}
		s.respondProductError(c, err)
		return
	}
	if oldImage != "" {
		if err := s.uploads.Reclaim(oldImage); err != nil {
			s.log.Warn("failed to reclaim replaced image", "error", err)
		}
	}
	s.sweep()

	c.JSON(http.StatusOK, gin.H{
		"message": "Product updated successfully",
		"product": p,
	})
}

// DeleteProduct handles DELETE /api/products/:id.
func (s *Server) DeleteProduct(c *gin.Context) {
	claims := mustClaims(c)
	s.deleteProduct(c, claims.UserID(), claims.IsAdmin)
}

func (s *Server) deleteProduct(c *gin.Context, callerID uint, isAdmin bool) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	imageURL, err := s.products.Delete(id, callerID, isAdmin)
	if err != nil {
		s.respondProductError(c, err)
		return
	}
	if imageURL != "" {
		if err := s.uploads.Reclaim(imageURL); err != nil {
			s.log.Warn("failed to reclaim product image", "error", err)
		}
	}
	s.sweep()

	c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
}

// ServeUpload handles GET /api/uploads/:filename.
func (s *Server) ServeUpload(c *gin.Context) {
	p, err := s.uploads.Path(c.Param("filename"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}
	c.File(p)
}

func (s *Server) respondProductError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
	case errors.Is(err, store.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "You do not own this product"})
	case errors.Is(err, store.ErrNameRequired), errors.Is(err, store.ErrInvalidPrice):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.internalError(c, "product operation", err)
	}
}
