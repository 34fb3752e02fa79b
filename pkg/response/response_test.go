package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"paycore/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, write func(c *gin.Context)) Response {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	write(c)

	require.Equal(t, http.StatusOK, w.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestFromErrorMapsKinds(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{model.ErrAccountNotFound, CodeNotFound},
		{fmt.Errorf("account a1: %w", model.ErrAccountClosed), CodeInvalidState},
		{model.ErrBalanceNotEnough, CodeInsufficientBalance},
		{model.ErrDailyLimitExceeded, CodeLimitExceeded},
		{model.Validationf("bad"), CodeValidation},
		{model.ErrComplianceRejected, CodeComplianceRejected},
		{model.ErrFraudRejected, CodeFraudRejected},
		{model.NewProcessingError("settle", model.ErrBalanceNotEnough), CodeProcessingError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			resp := render(t, func(c *gin.Context) { FromError(c, tc.err) })
			assert.Equal(t, tc.code, resp.Code)
			assert.Equal(t, string(model.KindOf(tc.err)), resp.Kind)
			assert.Equal(t, tc.err.Error(), resp.Message)
		})
	}
}

func TestFromErrorWithoutKind(t *testing.T) {
	resp := render(t, func(c *gin.Context) { FromError(c, errors.New("connection refused")) })
	assert.Equal(t, CodeServerError, resp.Code)
	assert.Empty(t, resp.Kind)
}

func TestSuccess(t *testing.T) {
	resp := render(t, func(c *gin.Context) { Success(c, map[string]int{"n": 1}) })
	assert.Equal(t, CodeSuccess, resp.Code)
	assert.Equal(t, "success", resp.Message)
	assert.Equal(t, map[string]interface{}{"n": float64(1)}, resp.Data)
}
