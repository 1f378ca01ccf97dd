package controller

import (
	"fmt"
	"net/http"

	"github.com/containerd/errdefs"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/bassista/go_dbproxy/internal/cache"
	"github.com/bassista/go_dbproxy/internal/proxy"
	"github.com/bassista/go_dbproxy/internal/repository"
)

// RecordValidator validates records with the struct tags on repository.Record.
type RecordValidator struct {
	validate *validator.Validate
}

func NewRecordValidator() *RecordValidator {
	return &RecordValidator{validate: validator.New()}
}

func (v *RecordValidator) Validate(rec repository.Record) error {
	if err := v.validate.Struct(rec); err != nil {
		return fmt.Errorf("invalid record: %w", errdefs.ErrInvalidArgument)
	}
	return nil
}

// NewRecordController wires the generic CRUD handlers to a record store.
func NewRecordController(store cache.RecordStore) *CrudController[repository.Record] {
	return &CrudController[repository.Record]{
		Service:   store,
		Validator: NewRecordValidator(),
	}
}

// SealedRecord is a single record encrypted on its own.
type SealedRecord struct {
	ID     string `json:"id"`
	Cipher string `json:"cipher"`
	Data   string `json:"data"`
}

// SealedRecordController serves records encrypted with the store's cipher and key.
type SealedRecordController struct {
	store cache.RecordStore
	proxy *proxy.DatabaseProxy
}

func NewSealedRecordController(store cache.RecordStore, p *proxy.DatabaseProxy) *SealedRecordController {
	return &SealedRecordController{store: store, proxy: p}
}

// Get handles GET /record/:id/sealed. Each request seals through a model
// owning a fork of the store's proxy, so the store's proxy keeps its owner.
func (sc *SealedRecordController) Get(c *gin.Context) {
	rec, err := sc.store.Get(c.Param("id"))
	if err != nil {
		writeServiceError(c, err, "failed to get record")
		return
	}

	model, err := cache.NewModel(rec, sc.proxy.Fork())
	if err != nil {
		writeServiceError(c, err, "failed to seal record")
		return
	}
	sealed, err := model.Seal()
	if err != nil {
		writeServiceError(c, err, "failed to seal record")
		return
	}

	c.JSON(http.StatusOK, SealedRecord{ID: rec.ID, Cipher: sc.proxy.Cipher(), Data: sealed})
}
