package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	honeybadger "github.com/honeybadger-io/honeybadger-go"
	"github.com/sirupsen/logrus"
)

// notifier is the part of *honeybadger.Client the middleware uses.
type notifier interface {
	Notify(err interface{}, extra ...interface{}) (string, error)
}

// HoneybadgerMiddleware sends panics, 5xx responses and errors attached with
// c.Error to Honeybadger. An empty apiKey returns a pass-through handler.
// Register it after gin.Recovery: on panic it notifies and re-panics so the
// outer recovery writes the response.
func HoneybadgerMiddleware(apiKey, env string, log *logrus.Logger) gin.HandlerFunc {
	if apiKey == "" {
		log.Info("Honeybadger is not active. Set HONEYBADGER_API_KEY to enable error reporting.")
		return func(c *gin.Context) {
			c.Next()
		}
	}

	client := honeybadger.New(honeybadger.Configuration{
		APIKey: apiKey,
		Env:    env,
	})
	log.Info("Honeybadger error reporting is enabled.")
	return reportTo(client, log)
}

func reportTo(n notifier, log *logrus.Logger) gin.HandlerFunc {
	notify := func(err interface{}, extra ...interface{}) {
		if _, nerr := n.Notify(err, extra...); nerr != nil {
			log.Warnf("honeybadger notify failed: %v", nerr)
		}
	}

	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				notify(fmt.Sprintf("Panic: %s %s", c.Request.Method, c.Request.URL.Path),
					c.Request, honeybadger.Context{"stack": string(debug.Stack())}, honeybadger.Tags{"panic", "http"})
				log.Error("Recovered from panic, notified Honeybadger: ", rec)
				panic(rec)
			}
		}()

		c.Next()

		for _, err := range c.Errors {
			notify(err.Err, c.Request, honeybadger.Tags{"handler", "http"})
		}

		if status := c.Writer.Status(); status >= 500 {
			notify(fmt.Sprintf("Error: HTTP %d: %s %s", status, c.Request.Method, c.Request.URL.Path),
				c.Request, honeybadger.Tags{"5XX", "http"})
			log.Warnf("Honeybadger reported HTTP %d for %s %s", status, c.Request.Method, c.Request.URL.Path)
		}
	}
}
