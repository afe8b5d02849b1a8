package httptransport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"feedbox/backend/internal/config"
	"feedbox/backend/internal/service"
	"feedbox/backend/internal/storage/memory"
	"feedbox/backend/internal/tripcode"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Tripcode: config.TripcodeConfig{Salt: "test-salt-for-development"},
		Inbox: config.InboxConfig{
			DefaultPageSize: 20,
			MaxPageSize:     100,
		},
		CORS: config.CORSConfig{AllowedOrigins: []string{"*"}},
	}

	store := memory.NewStore()
	trip := tripcode.NewGenerator(cfg.Tripcode.Salt)
	inboxService := service.NewInboxService(store, trip, zap.NewNop())

	return NewRouter(RouterDependencies{
		Config:       cfg,
		InboxService: inboxService,
		Logger:       zap.NewNop(),
	})
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var resp struct {
		Code int                    `json:"code"`
		Msg  string                 `json:"msg"`
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Data
}

func createTestInbox(t *testing.T, router *gin.Engine, allowAnonymous bool) (id, ownerSignature string) {
	t.Helper()

	rec := doJSON(t, router, http.MethodPost, "/v1/inboxes", gin.H{
		"topic":          "Team Feedback",
		"username":       "alice",
		"secret":         "pw123456",
		"expiresAt":      time.Now().UTC().Add(24 * time.Hour).Format(time.RFC3339),
		"allowAnonymous": allowAnonymous,
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	data := decodeData(t, rec)
	return data["id"].(string), data["ownerSignature"].(string)
}

func TestCreateInbox(t *testing.T) {
	t.Run("合法请求返回201与所有者签名", func(t *testing.T) {
		router := newTestRouter(t)

		rec := doJSON(t, router, http.MethodPost, "/v1/inboxes", gin.H{
			"topic":          "Team Feedback",
			"username":       "alice",
			"secret":         "pw123456",
			"expiresAt":      time.Now().UTC().Add(time.Hour).Format(time.RFC3339),
			"allowAnonymous": true,
		}, nil)

		require.Equal(t, http.StatusCreated, rec.Code)
		data := decodeData(t, rec)
		assert.NotEmpty(t, data["id"])
		assert.Contains(t, data["ownerSignature"], "alice!")
		assert.Equal(t, true, data["allowAnonymous"])
		assert.Equal(t, false, data["expired"])
	})

	t.Run("过期时间在过去返回400", func(t *testing.T) {
		router := newTestRouter(t)

		rec := doJSON(t, router, http.MethodPost, "/v1/inboxes", gin.H{
			"topic":     "Late",
			"username":  "alice",
			"secret":    "pw123456",
			"expiresAt": time.Now().UTC().Add(-time.Hour).Format(time.RFC3339),
		}, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("主题超长返回400", func(t *testing.T) {
		router := newTestRouter(t)

		long := make([]byte, 121)
		for i := range long {
			long[i] = 'x'
		}
		rec := doJSON(t, router, http.MethodPost, "/v1/inboxes", gin.H{
			"topic":     string(long),
			"username":  "alice",
			"secret":    "pw123456",
			"expiresAt": time.Now().UTC().Add(time.Hour).Format(time.RFC3339),
		}, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestGetInbox(t *testing.T) {
	router := newTestRouter(t)
	id, _ := createTestInbox(t, router, true)

	t.Run("无需凭证即可读取公开元数据", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/v1/inboxes/"+id, nil, nil)

		require.Equal(t, http.StatusOK, rec.Code)
		data := decodeData(t, rec)
		assert.Equal(t, "Team Feedback", data["topic"])
	})

	t.Run("不存在的收件箱返回404", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/v1/inboxes/nonexistent", nil, nil)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestCreateReply(t *testing.T) {
	t.Run("允许匿名的收件箱接受匿名回复", func(t *testing.T) {
		router := newTestRouter(t)
		id, _ := createTestInbox(t, router, true)

		rec := doJSON(t, router, http.MethodPost, "/v1/inboxes/"+id+"/messages", gin.H{
			"body": "great work!",
		}, nil)

		require.Equal(t, http.StatusCreated, rec.Code)
		data := decodeData(t, rec)
		assert.Equal(t, true, data["anonymous"])
		assert.Nil(t, data["signature"])
	})

	t.Run("禁止匿名的收件箱拒绝匿名回复返回403", func(t *testing.T) {
		router := newTestRouter(t)
		id, _ := createTestInbox(t, router, false)

		rec := doJSON(t, router, http.MethodPost, "/v1/inboxes/"+id+"/messages", gin.H{
			"body": "anonymous attempt",
		}, nil)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("署名回复带有发送者签名", func(t *testing.T) {
		router := newTestRouter(t)
		id, _ := createTestInbox(t, router, false)

		rec := doJSON(t, router, http.MethodPost, "/v1/inboxes/"+id+"/messages", gin.H{
			"body":     "signed reply",
			"username": "bob",
			"secret":   "bobsecret",
		}, nil)

		require.Equal(t, http.StatusCreated, rec.Code)
		data := decodeData(t, rec)
		assert.Equal(t, false, data["anonymous"])
		assert.Contains(t, data["signature"], "bob!")
	})

	t.Run("只提供用户名不提供口令返回400", func(t *testing.T) {
		router := newTestRouter(t)
		id, _ := createTestInbox(t, router, true)

		rec := doJSON(t, router, http.MethodPost, "/v1/inboxes/"+id+"/messages", gin.H{
			"body":     "half credentials",
			"username": "bob",
		}, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("空正文返回400", func(t *testing.T) {
		router := newTestRouter(t)
		id, _ := createTestInbox(t, router, true)

		rec := doJSON(t, router, http.MethodPost, "/v1/inboxes/"+id+"/messages", gin.H{
			"body": "",
		}, nil)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestChangeTopic(t *testing.T) {
	ownerHeaders := map[string]string{
		"X-Username": "alice",
		"X-Secret":   "pw123456",
	}

	t.Run("所有者在无回复时改名成功", func(t *testing.T) {
		router := newTestRouter(t)
		id, _ := createTestInbox(t, router, true)

		rec := doJSON(t, router, http.MethodPatch, "/v1/inboxes/"+id+"/topic", gin.H{
			"topic": "Renamed",
		}, ownerHeaders)

		require.Equal(t, http.StatusOK, rec.Code)
		data := decodeData(t, rec)
		assert.Equal(t, "Renamed", data["topic"])
	})

	t.Run("已有回复后改名返回409", func(t *testing.T) {
		router := newTestRouter(t)
		id, _ := createTestInbox(t, router, true)

		rec := doJSON(t, router, http.MethodPost, "/v1/inboxes/"+id+"/messages", gin.H{
			"body": "first reply",
		}, nil)
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = doJSON(t, router, http.MethodPatch, "/v1/inboxes/"+id+"/topic", gin.H{
			"topic": "Renamed",
		}, ownerHeaders)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("错误口令返回403", func(t *testing.T) {
		router := newTestRouter(t)
		id, _ := createTestInbox(t, router, true)

		rec := doJSON(t, router, http.MethodPatch, "/v1/inboxes/"+id+"/topic", gin.H{
			"topic": "Renamed",
		}, map[string]string{
			"X-Username": "alice",
			"X-Secret":   "wrong-secret",
		})

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("缺少凭证请求头返回403", func(t *testing.T) {
		router := newTestRouter(t)
		id, _ := createTestInbox(t, router, true)

		rec := doJSON(t, router, http.MethodPatch, "/v1/inboxes/"+id+"/topic", gin.H{
			"topic": "Renamed",
		}, nil)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestListMessages(t *testing.T) {
	ownerHeaders := map[string]string{
		"X-Username": "alice",
		"X-Secret":   "pw123456",
	}

	router := newTestRouter(t)
	id, _ := createTestInbox(t, router, true)

	for i := 1; i <= 3; i++ {
		rec := doJSON(t, router, http.MethodPost, "/v1/inboxes/"+id+"/messages", gin.H{
			"body": fmt.Sprintf("reply %d", i),
		}, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
		time.Sleep(2 * time.Millisecond)
	}

	t.Run("所有者可以分页读取回复", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/v1/inboxes/"+id+"/messages?page=1&pageSize=2", nil, ownerHeaders)

		require.Equal(t, http.StatusOK, rec.Code)
		data := decodeData(t, rec)
		items := data["items"].([]interface{})
		require.Len(t, items, 2)
		// 最新优先
		first := items[0].(map[string]interface{})
		assert.Equal(t, "reply 3", first["body"])
	})

	t.Run("非所有者读取回复返回403", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/v1/inboxes/"+id+"/messages", nil, map[string]string{
			"X-Username": "mallory",
			"X-Secret":   "pw123456",
		})

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("页大小超出上限返回400", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/v1/inboxes/"+id+"/messages?pageSize=101", nil, ownerHeaders)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestListOwnerInboxes(t *testing.T) {
	ownerHeaders := map[string]string{
		"X-Username": "alice",
		"X-Secret":   "pw123456",
	}

	router := newTestRouter(t)
	createTestInbox(t, router, true)
	createTestInbox(t, router, false)

	t.Run("返回凭证名下的全部收件箱", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/v1/inboxes", nil, ownerHeaders)

		require.Equal(t, http.StatusOK, rec.Code)
		data := decodeData(t, rec)
		assert.Equal(t, float64(2), data["count"])
	})

	t.Run("缺少凭证返回403", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/v1/inboxes", nil, nil)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}
