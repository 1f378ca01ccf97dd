package controller

import (
	"net/http"

	"github.com/containerd/errdefs"
	"github.com/gin-gonic/gin"

	"github.com/bassista/go_dbproxy/internal/logger"
)

// CrudService defines the minimal interface required for CRUD operations.
type CrudService[T any] interface {
	All() ([]T, error)
	Get(id string) (T, error)
	Upsert(item T) ([]T, error)
	Remove(id string) ([]T, error)
}

// CrudValidator defines the interface for validating a resource.
type CrudValidator[T any] interface {
	Validate(item T) error
}

// CrudController provides generic CRUD handlers for resources.
type CrudController[T any] struct {
	Service   CrudService[T]
	Validator CrudValidator[T]
}

// RegisterCrudRoutes registers CRUD endpoints for a resource on the given router group.
func (cc *CrudController[T]) RegisterCrudRoutes(rg gin.IRoutes, resource string) {
	rg.GET("/"+resource+"s", cc.GetAll)
	rg.GET("/"+resource+"/:id", cc.GetOne)
	rg.POST("/"+resource, cc.CreateOrUpdate)
	rg.DELETE("/"+resource+"/:id", cc.Delete)
}

// GetAll handles GET requests to list all resources.
func (cc *CrudController[T]) GetAll(c *gin.Context) {
	items, err := cc.Service.All()
	if err != nil {
		logger.WithComponent("api").Errorf("list resources: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read resource list"})
		return
	}
	c.JSON(http.StatusOK, items)
}

// GetOne handles GET requests for a single resource by id.
func (cc *CrudController[T]) GetOne(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing resource id"})
		return
	}
	item, err := cc.Service.Get(id)
	if err != nil {
		writeServiceError(c, err, "failed to read resource")
		return
	}
	c.JSON(http.StatusOK, item)
}

// CreateOrUpdate handles POST requests to create or update a resource.
func (cc *CrudController[T]) CreateOrUpdate(c *gin.Context) {
	var item T
	if err := c.ShouldBindJSON(&item); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if cc.Validator != nil {
		if err := cc.Validator.Validate(item); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	items, err := cc.Service.Upsert(item)
	if err != nil {
		writeServiceError(c, err, "failed to update resource")
		return
	}
	c.JSON(http.StatusOK, items)
}

// Delete handles DELETE requests to remove a resource by id.
func (cc *CrudController[T]) Delete(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing resource id"})
		return
	}
	items, err := cc.Service.Remove(id)
	if err != nil {
		writeServiceError(c, err, "failed to delete resource")
		return
	}
	c.JSON(http.StatusOK, items)
}

// writeServiceError maps errdefs categories onto HTTP statuses.
func writeServiceError(c *gin.Context, err error, msg string) {
	switch {
	case errdefs.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
	case errdefs.IsInvalidArgument(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errdefs.IsFailedPrecondition(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logger.WithComponent("api").Errorf("%s: %v", msg, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
	}
}
