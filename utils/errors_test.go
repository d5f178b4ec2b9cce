package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"sop-assistant/internal/apperr"

	"github.com/gin-gonic/gin"
)

func respond(err error) (*httptest.ResponseRecorder, ErrorResponse) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	RespondWithDomainError(c, err)

	var body ErrorResponse
	json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestRespondWithDomainError(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"validation", apperr.Validation("區段 id 重複。", nil), http.StatusBadRequest, "validation_failure", "區段 id 重複。"},
		{"parse", apperr.ParseFailure("AI 回傳的格式無法解析。", errors.New("eof")), http.StatusUnprocessableEntity, "parse_failure", "AI 回傳的格式無法解析。"},
		{"unreachable", apperr.BackendUnreachable(errors.New("dial tcp")), http.StatusBadGateway, "backend_unreachable", "無法連線到對話服務，請確認網路連線。"},
		{"internal", errors.New("mongo: connection refused"), http.StatusInternalServerError, "internal_error", "Internal Server Error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w, body := respond(tc.err)
			if w.Code != tc.status || body.ErrorCode != tc.code || body.Message != tc.message {
				t.Fatalf("got %d %+v", w.Code, body)
			}
		})
	}
}
