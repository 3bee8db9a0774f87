package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/recordkit/internal/orm/crud"
	"github.com/conduit-lang/recordkit/internal/orm/fault"
	"github.com/conduit-lang/recordkit/internal/orm/query"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fault.Failed("load", fmt.Errorf("%w: user 7", crud.ErrNotFound)), http.StatusNotFound},
		{fmt.Errorf("%w: ghost", crud.ErrUnknownEntity), http.StatusNotFound},
		{crud.ErrRemoved, http.StatusGone},
		{fault.Failed("remove", crud.ErrNoRowsAffected), http.StatusConflict},
		{crud.ErrUniqueViolation, http.StatusConflict},
		{crud.ErrNotNullViolation, http.StatusUnprocessableEntity},
		{fault.Failed("where", query.ErrUnsupportedCriterion), http.StatusBadRequest},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.err))
		})
	}
}

func TestRenderRecordError(t *testing.T) {
	rec := httptest.NewRecorder()
	RenderRecordError(rec, fmt.Errorf("%w: user 7", crud.ErrNotFound))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not_found", body.Code)
	assert.Contains(t, body.Message, "user 7")
}

func TestRenderJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	RenderJSON(rec, http.StatusCreated, map[string]interface{}{"id": 7})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id":7}`, rec.Body.String())
}
