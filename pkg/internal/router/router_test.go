package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestUnknownPathReturnsJSONNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	RegisterAPIRoutes(engine)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/no/such/path", nil)
	engine.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"not found"}`, rec.Body.String())
}
