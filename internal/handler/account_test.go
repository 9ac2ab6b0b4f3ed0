package handler_test

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/guoanl/EMS/internal/models"
)

var numberTask100 = []map[string]interface{}{
	{"name": "年度营收目标", "target_type": "number", "target_value": "100"},
}

func TestLogin(t *testing.T) {
	r, _, _ := newTestServer(t)

	// 内置管理员可登录
	token := login(t, r, "admin", "admin")
	if token == "" {
		t.Fatal("管理员登录应返回 token")
	}

	// 密码错误
	w := doJSON(t, r, http.MethodPost, "/api/login", "", map[string]string{
		"username": "admin",
		"password": "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("密码错误应返回 401, 实际 %d", w.Code)
	}

	// 账号不存在
	w = doJSON(t, r, http.MethodPost, "/api/login", "", map[string]string{
		"username": "nobody",
		"password": "x",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("账号不存在应返回 401, 实际 %d", w.Code)
	}
}

func TestAdminGateRejectsEnterprise(t *testing.T) {
	r, _, _ := newTestServer(t)
	adminToken := login(t, r, "admin", "admin")
	createAccount(t, r, adminToken, "acme", numberTask100)

	acmeToken := login(t, r, "acme", "pw1")

	// 企业角色访问管理接口 → 403
	w := doJSON(t, r, http.MethodGet, "/api/admin/accounts", acmeToken, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("企业角色访问管理接口应返回 403, 实际 %d", w.Code)
	}

	// 无 token → 401
	w = doJSON(t, r, http.MethodGet, "/api/admin/accounts", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("未登录应返回 401, 实际 %d", w.Code)
	}

	// 伪造 token → 401
	w = doJSON(t, r, http.MethodGet, "/api/admin/accounts", "not-a-token", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("非法 token 应返回 401, 实际 %d", w.Code)
	}
}

func TestCreateAccountAndGet(t *testing.T) {
	r, _, _ := newTestServer(t)
	adminToken := login(t, r, "admin", "admin")

	id := createAccount(t, r, adminToken, "acme", []map[string]interface{}{
		{"name": "年度营收目标", "target_type": "number", "target_value": "100"},
		{"name": "完成安全整改", "target_type": "boolean", "target_value": "是"},
	})

	w := doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/admin/accounts/%d", id), adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("查询账号失败: %d %s", w.Code, w.Body.String())
	}
	data := parseData(t, w)
	if data["username"] != "acme" {
		t.Errorf("username = %v, 期望 acme", data["username"])
	}
	tasks, _ := data["tasks"].([]interface{})
	if len(tasks) != 2 {
		t.Errorf("任务数 = %d, 期望 2", len(tasks))
	}
}

func TestCreateAccountConflict(t *testing.T) {
	r, db, _ := newTestServer(t)
	adminToken := login(t, r, "admin", "admin")
	createAccount(t, r, adminToken, "acme", numberTask100)

	var usersBefore, tasksBefore int64
	db.Model(&models.User{}).Count(&usersBefore)
	db.Model(&models.Task{}).Count(&tasksBefore)

	w := doJSON(t, r, http.MethodPost, "/api/admin/accounts", adminToken, map[string]interface{}{
		"username":        "acme",
		"password":        "pw2",
		"enterprise_name": "重复公司",
		"tasks":           numberTask100,
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("重复账号名应返回 400, 实际 %d", w.Code)
	}

	// 冲突失败不能留下任何新行
	var usersAfter, tasksAfter int64
	db.Model(&models.User{}).Count(&usersAfter)
	db.Model(&models.Task{}).Count(&tasksAfter)
	if usersAfter != usersBefore || tasksAfter != tasksBefore {
		t.Errorf("冲突后行数变化: users %d->%d, tasks %d->%d",
			usersBefore, usersAfter, tasksBefore, tasksAfter)
	}
}

func TestCreateAccountInvalidTask(t *testing.T) {
	r, db, _ := newTestServer(t)
	adminToken := login(t, r, "admin", "admin")

	bad := [][]map[string]interface{}{
		{{"name": "负目标", "target_type": "number", "target_value": "-5"}},
		{{"name": "非数字", "target_type": "number", "target_value": "abc"}},
		{{"name": "非法布尔", "target_type": "boolean", "target_value": "yes"}},
		{{"name": "未知类型", "target_type": "percent", "target_value": "50"}},
	}

	for _, tasks := range bad {
		w := doJSON(t, r, http.MethodPost, "/api/admin/accounts", adminToken, map[string]interface{}{
			"username":        "badcorp",
			"password":        "pw1",
			"enterprise_name": "坏数据公司",
			"tasks":           tasks,
		})
		if w.Code != http.StatusBadRequest {
			t.Errorf("非法任务定义 %v 应返回 400, 实际 %d", tasks, w.Code)
		}
	}

	// 校验失败不应创建账号
	var count int64
	db.Model(&models.User{}).Where("username = ?", "badcorp").Count(&count)
	if count != 0 {
		t.Error("校验失败后不应留下账号记录")
	}
}

func TestListAccountsPagination(t *testing.T) {
	r, _, _ := newTestServer(t)
	adminToken := login(t, r, "admin", "admin")

	for i := 0; i < 12; i++ {
		createAccount(t, r, adminToken, fmt.Sprintf("corp%02d", i), nil)
	}

	w := doJSON(t, r, http.MethodGet, "/api/admin/accounts?page=1", adminToken, nil)
	data := parseData(t, w)
	if total, _ := data["total"].(float64); int(total) != 12 {
		t.Errorf("total = %v, 期望 12", data["total"])
	}
	accounts, _ := data["accounts"].([]interface{})
	if len(accounts) != 10 {
		t.Errorf("第一页应有 10 条, 实际 %d", len(accounts))
	}

	w = doJSON(t, r, http.MethodGet, "/api/admin/accounts?page=2", adminToken, nil)
	data = parseData(t, w)
	accounts, _ = data["accounts"].([]interface{})
	if len(accounts) != 2 {
		t.Errorf("第二页应有 2 条, 实际 %d", len(accounts))
	}

	// 管理员自己不应出现在企业账号列表里
	first, _ := accounts[0].(map[string]interface{})
	if first["username"] == "admin" {
		t.Error("企业账号列表不应包含管理员")
	}
}

func TestUpdateAccount(t *testing.T) {
	r, db, _ := newTestServer(t)
	adminToken := login(t, r, "admin", "admin")
	id := createAccount(t, r, adminToken, "acme", numberTask100)

	// 不传密码：资料和任务集更新，密码保持不变
	w := doJSON(t, r, http.MethodPut, fmt.Sprintf("/api/admin/accounts/%d", id), adminToken, map[string]interface{}{
		"username":        "acme",
		"enterprise_name": "改名公司",
		"tasks": []map[string]interface{}{
			{"name": "新任务A", "target_type": "number", "target_value": "200"},
			{"name": "新任务B", "target_type": "boolean", "target_value": "否"},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("更新账号失败: %d %s", w.Code, w.Body.String())
	}

	var tasks []models.Task
	db.Where("user_id = ?", id).Order("id").Find(&tasks)
	if len(tasks) != 2 {
		t.Fatalf("任务集应被整体替换为 2 条, 实际 %d", len(tasks))
	}
	if tasks[0].Name != "新任务A" || tasks[1].TargetValue != "否" {
		t.Errorf("替换后的任务不对: %+v", tasks)
	}

	// 旧密码仍然有效
	login(t, r, "acme", "pw1")

	// 传了密码：重置后旧密码失效
	w = doJSON(t, r, http.MethodPut, fmt.Sprintf("/api/admin/accounts/%d", id), adminToken, map[string]interface{}{
		"username":        "acme",
		"password":        "newpw",
		"enterprise_name": "改名公司",
		"tasks":           []map[string]interface{}{},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("更新密码失败: %d %s", w.Code, w.Body.String())
	}
	login(t, r, "acme", "newpw")
	w = doJSON(t, r, http.MethodPost, "/api/login", "", map[string]string{"username": "acme", "password": "pw1"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("旧密码应失效, 实际 %d", w.Code)
	}
}

func TestUpdateAccountNotFound(t *testing.T) {
	r, _, _ := newTestServer(t)
	adminToken := login(t, r, "admin", "admin")

	w := doJSON(t, r, http.MethodPut, "/api/admin/accounts/9999", adminToken, map[string]interface{}{
		"username":        "ghost",
		"enterprise_name": "不存在",
		"tasks":           []map[string]interface{}{},
	})
	if w.Code != http.StatusNotFound {
		t.Errorf("更新不存在的账号应返回 404, 实际 %d", w.Code)
	}
}

func TestResetPassword(t *testing.T) {
	r, _, _ := newTestServer(t)
	adminToken := login(t, r, "admin", "admin")
	id := createAccount(t, r, adminToken, "acme", nil)

	w := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/admin/accounts/%d/reset-password", id), adminToken,
		map[string]string{"password": "resetpw"})
	if w.Code != http.StatusOK {
		t.Fatalf("重置密码失败: %d %s", w.Code, w.Body.String())
	}
	login(t, r, "acme", "resetpw")

	w = doJSON(t, r, http.MethodPost, "/api/admin/accounts/9999/reset-password", adminToken,
		map[string]string{"password": "x"})
	if w.Code != http.StatusNotFound {
		t.Errorf("重置不存在的账号应返回 404, 实际 %d", w.Code)
	}
}

func TestDeleteAccountCascade(t *testing.T) {
	r, db, uploadDir := newTestServer(t)
	adminToken := login(t, r, "admin", "admin")
	id := createAccount(t, r, adminToken, "acme", numberTask100)

	// 企业填报一次并带附件，制造任务和附件数据
	acmeToken := login(t, r, "acme", "pw1")
	tasks := getTasks(t, r, acmeToken)
	tid := taskID(t, tasks[0])
	w := doSaveAll(t, r, acmeToken,
		[]map[string]interface{}{{"taskId": tid, "actualValue": "40", "remarks": "进行中"}},
		map[string]map[string][]byte{
			fmt.Sprintf("files_%d", tid): {"佐证.txt": []byte("evidence")},
		})
	if w.Code != http.StatusOK {
		t.Fatalf("填报失败: %d %s", w.Code, w.Body.String())
	}

	var att models.Attachment
	if err := db.First(&att).Error; err != nil {
		t.Fatalf("附件应已入库: %v", err)
	}
	filePath := filepath.Join(uploadDir, att.StoredName)
	if _, err := os.Stat(filePath); err != nil {
		t.Fatalf("附件文件应已落盘: %v", err)
	}

	// 删除账号：任务、附件记录级联删除，文件清理
	w = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/admin/accounts/%d", id), adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("删除账号失败: %d %s", w.Code, w.Body.String())
	}

	var userCount, taskCount, attCount int64
	db.Model(&models.User{}).Where("id = ?", id).Count(&userCount)
	db.Model(&models.Task{}).Where("user_id = ?", id).Count(&taskCount)
	db.Model(&models.Attachment{}).Count(&attCount)
	if userCount != 0 || taskCount != 0 || attCount != 0 {
		t.Errorf("级联删除不彻底: users=%d tasks=%d attachments=%d", userCount, taskCount, attCount)
	}
	if _, err := os.Stat(filePath); !os.IsNotExist(err) {
		t.Error("附件文件应被清理")
	}

	// 删除后登录失败
	w = doJSON(t, r, http.MethodPost, "/api/login", "", map[string]string{"username": "acme", "password": "pw1"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("删除后的账号登录应返回 401, 实际 %d", w.Code)
	}

	// 幂等：再删一次仍然成功
	w = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/admin/accounts/%d", id), adminToken, nil)
	if w.Code != http.StatusOK {
		t.Errorf("重复删除应返回成功, 实际 %d", w.Code)
	}
}

func TestGetAccountNotFound(t *testing.T) {
	r, _, _ := newTestServer(t)
	adminToken := login(t, r, "admin", "admin")

	w := doJSON(t, r, http.MethodGet, "/api/admin/accounts/9999", adminToken, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("查询不存在的账号应返回 404, 实际 %d", w.Code)
	}
}
