package handler_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/guoanl/EMS/internal/config"
	"github.com/guoanl/EMS/internal/database"
	"github.com/guoanl/EMS/internal/router"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestServer 起一套完整的测试环境：临时 sqlite 文件库 + 真实路由。
// 返回的 uploadDir 是该测试专用的上传目录。
func newTestServer(t *testing.T) (*gin.Engine, *gorm.DB, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	dsn := filepath.Join(dir, "test.db") + "?_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("打开测试数据库失败: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		t.Fatalf("迁移失败: %v", err)
	}
	if err := database.SeedAdmin(db); err != nil {
		t.Fatalf("初始化管理员失败: %v", err)
	}

	uploadDir := filepath.Join(dir, "uploads")
	cfg := &config.Config{
		Server: config.ServerConfig{Mode: gin.TestMode},
		JWT:    config.JWTConfig{Secret: "test-secret", ExpireHours: 24},
		Upload: config.UploadConfig{Dir: uploadDir},
		App:    config.AppSubConfig{PageSize: 10},
	}

	return router.SetupRouter(cfg, db), db, uploadDir
}

// doJSON 发一个 JSON 请求，token 为空则不带认证头
func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("序列化请求体失败: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// parseData 解析统一返回结构 {code, data}，code 必须为 0
func parseData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var resp struct {
		Code int                    `json:"code"`
		Data map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("解析响应失败: %v, body=%s", err, w.Body.String())
	}
	if resp.Code != 0 {
		t.Fatalf("业务码 = %d, 期望 0, body=%s", resp.Code, w.Body.String())
	}
	return resp.Data
}

// login 登录并返回 token，失败直接终止测试
func login(t *testing.T, r *gin.Engine, username, password string) string {
	t.Helper()

	w := doJSON(t, r, http.MethodPost, "/api/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("登录 %s 失败: status=%d body=%s", username, w.Code, w.Body.String())
	}
	data := parseData(t, w)
	token, _ := data["token"].(string)
	if token == "" {
		t.Fatal("登录响应缺少 token")
	}
	return token
}

// createAccount 用管理员 token 开设企业账号，返回新账号 id
func createAccount(t *testing.T, r *gin.Engine, adminToken string, username string, tasks []map[string]interface{}) uint {
	t.Helper()

	w := doJSON(t, r, http.MethodPost, "/api/admin/accounts", adminToken, map[string]interface{}{
		"username":        username,
		"password":        "pw1",
		"enterprise_name": username + " 公司",
		"tasks":           tasks,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("创建账号 %s 失败: status=%d body=%s", username, w.Code, w.Body.String())
	}
	data := parseData(t, w)
	id, ok := data["id"].(float64)
	if !ok || id <= 0 {
		t.Fatalf("创建账号未返回 id: %v", data)
	}
	return uint(id)
}

// saveAllForm 构造 save-all 的 multipart 请求体。
// files 的 key 是 files_<taskId> 形式的字段名，value 是文件名到内容的映射。
func saveAllForm(t *testing.T, items []map[string]interface{}, files map[string]map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()

	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)

	raw, err := json.Marshal(items)
	if err != nil {
		t.Fatalf("序列化填报数据失败: %v", err)
	}
	if err := mw.WriteField("data", string(raw)); err != nil {
		t.Fatalf("写入 data 字段失败: %v", err)
	}

	for field, fileSet := range files {
		for name, content := range fileSet {
			fw, err := mw.CreateFormFile(field, name)
			if err != nil {
				t.Fatalf("创建文件字段失败: %v", err)
			}
			if _, err := fw.Write(content); err != nil {
				t.Fatalf("写入文件内容失败: %v", err)
			}
		}
	}

	if err := mw.Close(); err != nil {
		t.Fatalf("关闭 multipart writer 失败: %v", err)
	}
	return buf, mw.FormDataContentType()
}

// doSaveAll 提交一次批量填报
func doSaveAll(t *testing.T, r *gin.Engine, token string, items []map[string]interface{}, files map[string]map[string][]byte) *httptest.ResponseRecorder {
	t.Helper()

	body, contentType := saveAllForm(t, items, files)
	req := httptest.NewRequest(http.MethodPost, "/api/client/save-all", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// getTasks 拉取企业自己的任务列表
func getTasks(t *testing.T, r *gin.Engine, token string) []map[string]interface{} {
	t.Helper()

	w := doJSON(t, r, http.MethodGet, "/api/client/tasks", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("查询任务失败: status=%d body=%s", w.Code, w.Body.String())
	}
	data := parseData(t, w)
	rawTasks, ok := data["tasks"].([]interface{})
	if !ok {
		t.Fatalf("任务列表格式不对: %v", data)
	}
	tasks := make([]map[string]interface{}, 0, len(rawTasks))
	for _, rt := range rawTasks {
		task, ok := rt.(map[string]interface{})
		if !ok {
			t.Fatalf("任务项格式不对: %v", rt)
		}
		tasks = append(tasks, task)
	}
	return tasks
}

func taskID(t *testing.T, task map[string]interface{}) uint {
	t.Helper()
	id, ok := task["id"].(float64)
	if !ok {
		t.Fatalf("任务缺少 id: %v", task)
	}
	return uint(id)
}
