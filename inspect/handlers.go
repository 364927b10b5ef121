package inspect

import (
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/dikit/di"
	"github.com/kbukum/dikit/errors"
	"github.com/kbukum/dikit/observability"
	"github.com/kbukum/dikit/version"
)

const (
	healthPath   = "/health"
	registryPath = "/registry"
)

// startTime records when the process started for uptime calculation.
var startTime = time.Now()

// RegistryView is the body of GET /registry.
type RegistryView struct {
	ID            string                `json:"id"`
	Name          string                `json:"name"`
	Count         int                   `json:"count"`
	Registrations []di.RegistrationInfo `json:"registrations"`
}

// Mount registers the inspection routes on r. POST /registry/warm is only
// mounted when allowWarm is set. The health route reports reg followed by
// any extra checkers.
func Mount(r gin.IRouter, serviceName string, reg *di.Registry, allowWarm bool, checkers ...observability.HealthChecker) {
	r.GET(healthPath, Health(serviceName, append([]observability.HealthChecker{reg}, checkers...)...))
	r.GET(registryPath, Registrations(reg))
	r.GET(registryPath+"/version", Version(serviceName))
	if allowWarm {
		r.POST(registryPath+"/warm", Warm(reg))
	}
}

// Registrations returns a handler listing the registry's registrations.
// ?lifetime=singleton|transient and ?cached=true|false filter the list.
func Registrations(reg *di.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		infos := reg.Registrations()

		if raw := c.Query("lifetime"); raw != "" {
			lifetime, err := di.ParseLifetime(raw)
			if err != nil {
				RespondWithError(c, errors.InvalidInput("lifetime", "must be singleton or transient"))
				return
			}
			infos = slices.DeleteFunc(infos, func(i di.RegistrationInfo) bool { return i.Lifetime != lifetime })
		}
		if raw := c.Query("cached"); raw != "" {
			cached, err := strconv.ParseBool(raw)
			if err != nil {
				RespondWithError(c, errors.InvalidInput("cached", "must be a boolean"))
				return
			}
			infos = slices.DeleteFunc(infos, func(i di.RegistrationInfo) bool { return i.Cached != cached })
		}

		RespondOK(c, RegistryView{
			ID:            reg.ID(),
			Name:          reg.Name(),
			Count:         len(infos),
			Registrations: infos,
		})
	}
}

// Warm returns a handler that constructs every registered singleton.
func Warm(reg *di.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := observability.StartSpan(c.Request.Context(), observability.SpanWarm)
		defer span.End()
		observability.SetSpanAttribute(ctx, observability.AttrRegistry, reg.Name())

		start := time.Now()
		if err := reg.WarmSingletonsContext(ctx); err != nil {
			observability.SetSpanError(ctx, err)
			RespondWithError(c, errors.ConstructionFailed("singletons", err).WithDetail("error", err.Error()))
			return
		}

		cached := 0
		for _, info := range reg.Registrations() {
			if info.Cached {
				cached++
			}
		}
		RespondOK(c, gin.H{
			"cached":      cached,
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}
}

// Health returns a handler aggregating the checkers; it answers 503 when
// any of them is down.
func Health(serviceName string, checkers ...observability.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		health := observability.CheckAll(c.Request.Context(), serviceName, version.Version, checkers...)
		c.JSON(health.HTTPStatus(), health)
	}
}

// Version returns a handler that reports build version information.
func Version(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		v := version.GetVersionInfo()
		c.JSON(http.StatusOK, gin.H{
			"service":    serviceName,
			"version":    v.Version,
			"git_commit": v.GitCommit,
			"git_branch": v.GitBranch,
			"build_time": v.BuildTime,
			"go_version": v.GoVersion,
			"is_release": v.IsRelease,
			"is_dirty":   v.IsDirty,
			"uptime":     time.Since(startTime).String(),
		})
	}
}
