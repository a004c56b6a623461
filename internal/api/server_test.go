package api

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/ajeetk7ev/JobLytic/internal/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestPageParam(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := map[string]int{
		"":     1,
		"0":    1,
		"-2":   1,
		"3":    3,
		"junk": 1,
	}
	for raw, want := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = &http.Request{URL: &url.URL{RawQuery: "page=" + raw}}
		assert.Equal(t, want, pageParam(c), "page=%q", raw)
	}
}

func TestRenderError_StatusMapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := &Server{logger: zap.NewNop()}

	cases := []struct {
		err  error
		want int
	}{
		{errors.Validation("bad input", nil), http.StatusBadRequest},
		{errors.NotFound("no such user", nil), http.StatusNotFound},
		{errors.Synthesis("model down", nil), http.StatusBadGateway},
		{errors.Upstream("rate limited", nil), http.StatusBadGateway},
		{errors.Persistence("db down", nil), http.StatusInternalServerError},
		{errors.Internal("boom", nil), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(rec)
		s.renderError(c, tc.err)
		assert.Equal(t, tc.want, rec.Code, "%v", tc.err)
	}
}
