package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"xperious/result-storage/internal/host"
	"xperious/result-storage/internal/resultstorage"
)

// ResultHandler exposes a host.ResultStorage over HTTP.
type ResultHandler struct {
	factory      host.Factory
	maxBodyBytes int64
}

// NewResultHandler creates a new ResultHandler.
func NewResultHandler(factory host.Factory, maxBodyBytes int64) *ResultHandler {
	return &ResultHandler{factory: factory, maxBodyBytes: maxBodyBytes}
}

// --- Handler Methods ---

// GetResult serves the stored result for the wildcard path, 404 when absent or expired.
func (h *ResultHandler) GetResult(c *gin.Context) {
	store, hctx, ok := h.storage(c)
	if !ok {
		return
	}

	data, err := store.Get(c.Request.Context(), resultPath(c))
	if err != nil {
		storeFailure(c, hctx, err)
		return
	}
	if data == nil {
		abortWithError(c, http.StatusNotFound, "Result not found")
		return
	}

	if hctx.IsAutoWebP() {
		c.Header("Vary", "Accept")
	}
	c.Data(http.StatusOK, resultstorage.ContentType(data), data)
}

// HeadResult answers whether a fresh result exists.
func (h *ResultHandler) HeadResult(c *gin.Context) {
	store, hctx, ok := h.storage(c)
	if !ok {
		return
	}

	exists, err := store.Exists(c.Request.Context(), resultPath(c))
	if err != nil {
		storeFailure(c, hctx, err)
		return
	}
	if !exists {
		c.Status(http.StatusNotFound)
		return
	}
	c.Status(http.StatusOK)
}

// PutResult stores the request body as the result for the wildcard path.
func (h *ResultHandler) PutResult(c *gin.Context) {
	store, hctx, ok := h.storage(c)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abortWithError(c, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		abortWithError(c, http.StatusBadRequest, "Failed to read request body")
		return
	}

	if err := store.Put(c.Request.Context(), resultPath(c), body); err != nil {
		storeFailure(c, hctx, err)
		return
	}
	c.Status(http.StatusCreated)
}

// DeleteResult forwards to Remove, which this storage does not support.
func (h *ResultHandler) DeleteResult(c *gin.Context) {
	store, hctx, ok := h.storage(c)
	if !ok {
		return
	}

	if err := store.Remove(c.Request.Context(), resultPath(c)); err != nil {
		if errors.Is(err, errors.ErrUnsupported) {
			abortWithError(c, http.StatusNotImplemented, "Removing results is not supported")
			return
		}
		storeFailure(c, hctx, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ResultHandler) storage(c *gin.Context) (host.ResultStorage, *host.Context, bool) {
	hctx, err := getHostContext(c)
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, "Request context not initialized")
		return nil, nil, false
	}
	return h.factory(hctx), hctx, true
}

// resultPath strips the leading slash gin keeps on wildcard params.
func resultPath(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("path"), "/")
}

func storeFailure(c *gin.Context, hctx *host.Context, err error) {
	hctx.Logger.Error().Err(err).Str("path", resultPath(c)).Msg("object store call failed")
	abortWithError(c, http.StatusBadGateway, "Object store unavailable")
}
