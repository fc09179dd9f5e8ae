package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"kasirkuy/internal/auth"
	"kasirkuy/internal/store"
)

// AdminListUsers handles GET /api/admin/users.
func (s *Server) AdminListUsers(c *gin.Context) {
	users, err := s.users.List()
	if err != nil {
		s.internalError(c, "list users", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

type adminCreateUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"is_admin"`
}

// AdminCreateUser handles POST /api/admin/users. The same username and
// password policies apply as on self-registration.
func (s *Server) AdminCreateUser(c *gin.Context) {
	var req adminCreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}
	if err := auth.ValidateUsername(req.Username); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.internalError(c, "hash password", err)
		return
	}
	u, err := s.users.Create(req.Username, hash, req.IsAdmin)
	if err != nil {
		if errors.Is(err, store.ErrUsernameTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "Username already exists"})
			return
		}
		s.internalError(c, "create user", err)
		return
	}
	c.JSON(http.StatusCreated, toUserResponse(u))
}

type adminUpdateUserRequest struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
	IsAdmin  *bool   `json:"is_admin"`
}

// AdminUpdateUser handles PUT /api/admin/users/:id. Only fields present in
// the body are changed; a new password is re-hashed.
func (s *Server) AdminUpdateUser(c *gin.Context) {
	id, ok := userPathID(c)
	if !ok {
		return
	}
	var req adminUpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	var patch store.UserPatch
	if req.Username != nil {
		username := strings.TrimSpace(*req.Username)
		if err := auth.ValidateUsername(username); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		patch.Username = &username
	}
	if req.Password != nil && *req.Password != "" {
		if err := auth.ValidatePassword(*req.Password); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			s.internalError(c, "hash password", err)
			return
		}
		patch.PasswordHash = &hash
	}
	patch.IsAdmin = req.IsAdmin

	u, err := s.users.Update(id, patch)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		case errors.Is(err, store.ErrUsernameTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "Username already exists"})
		default:
			s.internalError(c, "update user", err)
		}
		return
	}
	c.JSON(http.StatusOK, toUserResponse(u))
}

// AdminDeleteUser handles DELETE /api/admin/users/:id. The user's products
// go first (reclaiming their images), then the user row, then a sweep.
// Deleting the last remaining admin is rejected before anything is touched.
func (s *Server) AdminDeleteUser(c *gin.Context) {
	id, ok := userPathID(c)
	if !ok {
		return
	}
	target, err := s.users.GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		s.internalError(c, "load user", err)
		return
	}
	if target.IsAdmin {
		admins, err := s.users.AdminCount()
		if err != nil {
			s.internalError(c, "count admins", err)
			return
		}
		if admins <= 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot delete the last admin user"})
			return
		}
	}

	products, err := s.products.ListByUser(id)
	if err != nil {
		s.internalError(c, "list user products", err)
		return
	}
	for _, p := range products {
		imageURL, err := s.products.Delete(p.ID, id, true)
		if err != nil {
			s.internalError(c, "delete user product", err)
			return
		}
		if imageURL != "" {
			if err := s.uploads.Reclaim(imageURL); err != nil {
				s.log.Warn("failed to reclaim product image", "error", err)
			}
		}
	}

	if err := s.users.Delete(id); err != nil {
		if errors.Is(err, store.ErrLastAdmin) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot delete the last admin user"})
			return
		}
		s.internalError(c, "delete user", err)
		return
	}
	s.sweep()

	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

// AdminListProducts handles GET /api/admin/products: every product with its
// owner's username.
func (s *Server) AdminListProducts(c *gin.Context) {
	items, err := s.products.ListAll()
	if err != nil {
		s.internalError(c, "list products", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": items})
}

// AdminCreateProduct handles POST /api/admin/products (multipart, with a
// user_id field naming the owner).
func (s *Server) AdminCreateProduct(c *gin.Context) {
	ownerStr := strings.TrimSpace(c.PostForm("user_id"))
	ownerID, err := strconv.ParseUint(ownerStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	if _, err := s.users.GetByID(uint(ownerID)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		s.internalError(c, "load user", err)
		return
	}
	s.createProduct(c, uint(ownerID))
}

// AdminUpdateProduct handles PUT /api/admin/products/:id for any owner.
func (s *Server) AdminUpdateProduct(c *gin.Context) {
	s.updateProduct(c, mustClaims(c).UserID(), true)
}

// AdminDeleteProduct handles DELETE /api/admin/products/:id for any owner.
func (s *Server) AdminDeleteProduct(c *gin.Context) {
	s.deleteProduct(c, mustClaims(c).UserID(), true)
}

func userPathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return 0, false
	}
	return uint(id), true
}
