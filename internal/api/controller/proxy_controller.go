package controller

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bassista/go_dbproxy/internal/logger"
	"github.com/bassista/go_dbproxy/internal/proxy"
)

// ProxyStatus describes the proxy behind the record store.
type ProxyStatus struct {
	Type      string `json:"type"`
	Cipher    string `json:"cipher"`
	Encrypted bool   `json:"encrypted"`
}

// Persister flushes pending changes through the proxy's backend.
type Persister interface {
	Persist(ctx context.Context) (bool, error)
}

// ProxyController exposes proxy status and on-demand persistence.
type ProxyController struct {
	proxy     *proxy.DatabaseProxy
	persister Persister
}

func NewProxyController(p *proxy.DatabaseProxy, persister Persister) *ProxyController {
	return &ProxyController{proxy: p, persister: persister}
}

// Status handles GET /proxy.
func (pc *ProxyController) Status(c *gin.Context) {
	c.JSON(http.StatusOK, ProxyStatus{
		Type:      pc.proxy.Type(),
		Cipher:    pc.proxy.Cipher(),
		Encrypted: pc.proxy.Encrypted(),
	})
}

// Persist handles POST /persist.
func (pc *ProxyController) Persist(c *gin.Context) {
	saved, err := pc.persister.Persist(c.Request.Context())
	if err != nil {
		logger.WithComponent("api").Errorf("persist: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist records"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"saved": saved})
}
