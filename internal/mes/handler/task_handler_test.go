package handler

import (
	"net/http"
	"testing"

	"github.com/bitfantasy/nimo-mes/internal/config"
	"github.com/bitfantasy/nimo-mes/internal/mes/entity"
	"github.com/bitfantasy/nimo-mes/internal/mes/repository"
	"github.com/bitfantasy/nimo-mes/internal/mes/service"
	"github.com/bitfantasy/nimo-mes/internal/mes/testutil"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type taskTestEnv struct {
	db     *gorm.DB
	router *gin.Engine

	master      *entity.User
	operator    *entity.User
	masterToken string
	workerToken string
}

func setupTaskTest(t *testing.T) *taskTestEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	cfg := &config.Config{}

	auditSvc := service.NewAuditService(repos.Audit, repos.User)
	notifySvc := service.NewNotifyService(repos.Outbox, repos.User, nil, cfg)
	taskSvc := service.NewTaskService(repos.Task, repos.Part, repos.User, auditSvc, notifySvc)
	authSvc := service.NewAuthService(repos.User, auditSvc, nil, cfg)

	taskHandler := NewTaskHandler(taskSvc, authSvc)

	router := testutil.SetupRouter()
	api := testutil.AuthGroup(router, "/api/v1")
	api.GET("/tasks", taskHandler.List)
	api.GET("/tasks/my", taskHandler.My)
	api.POST("/tasks", taskHandler.Create)
	api.GET("/tasks/:id", taskHandler.Get)
	api.POST("/tasks/:id/accept", taskHandler.Accept)
	api.POST("/tasks/:id/start", taskHandler.Start)
	api.POST("/tasks/:id/submit-review", taskHandler.SendForReview)
	api.POST("/tasks/:id/review", taskHandler.Review)
	api.POST("/tasks/:id/comments", taskHandler.Comment)

	master := testutil.SeedTestUser(t, db, "Мастер цеха", entity.RoleMaster)
	operator := testutil.SeedTestUser(t, db, "Оператор", entity.RoleOperator)

	return &taskTestEnv{
		db:          db,
		router:      router,
		master:      master,
		operator:    operator,
		masterToken: testutil.GenerateTestToken(master.ID, master.Name, master.Role),
		workerToken: testutil.GenerateTestToken(operator.ID, operator.Name, operator.Role),
	}
}

func (env *taskTestEnv) createTask(t *testing.T, assigneeID string) string {
	t.Helper()
	body := map[string]interface{}{
		"title":         "Проверить оснастку",
		"assignee_type": entity.AssigneeUser,
		"assignee_id":   assigneeID,
		"due_date":      "2026-09-10T00:00:00Z",
	}
	w := testutil.DoRequest(env.router, "POST", "/api/v1/tasks", body, env.masterToken)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	task := resp["data"].(map[string]interface{})
	if task["status"] != entity.TaskStatusOpen {
		t.Fatalf("Expected open status, got %v", task["status"])
	}
	return task["id"].(string)
}

func TestTaskLifecycle(t *testing.T) {
	env := setupTaskTest(t)
	taskID := env.createTask(t, env.operator.ID)

	// Accept -> start -> submit for review, all by the assignee
	steps := []struct {
		path   string
		status string
	}{
		{"/accept", "accepted"},
		{"/start", "in_progress"},
		{"/submit-review", "review"},
	}
	for _, step := range steps {
		w := testutil.DoRequest(env.router, "POST", "/api/v1/tasks/"+taskID+step.path, nil, env.workerToken)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200 on %s, got %d: %s", step.path, w.Code, w.Body.String())
		}
		resp := testutil.ParseResponse(w)
		task := resp["data"].(map[string]interface{})
		if task["status"] != step.status {
			t.Fatalf("Expected %s after %s, got %v", step.status, step.path, task["status"])
		}
	}

	// Creator approves the result
	w := testutil.DoRequest(env.router, "POST", "/api/v1/tasks/"+taskID+"/review",
		map[string]interface{}{"approve": true}, env.masterToken)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	task := resp["data"].(map[string]interface{})
	if task["status"] != entity.TaskStatusDone {
		t.Errorf("Expected done, got %v", task["status"])
	}
}

func TestTaskReturnRequiresComment(t *testing.T) {
	env := setupTaskTest(t)
	taskID := env.createTask(t, env.operator.ID)

	for _, path := range []string{"/accept", "/submit-review"} {
		w := testutil.DoRequest(env.router, "POST", "/api/v1/tasks/"+taskID+path, nil, env.workerToken)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200 on %s, got %d: %s", path, w.Code, w.Body.String())
		}
	}

	// Rejection without an explanation is not allowed
	w := testutil.DoRequest(env.router, "POST", "/api/v1/tasks/"+taskID+"/review",
		map[string]interface{}{"approve": false}, env.masterToken)
	if w.Code == http.StatusOK {
		t.Fatal("Expected rejection without comment to fail")
	}

	w = testutil.DoRequest(env.router, "POST", "/api/v1/tasks/"+taskID+"/review",
		map[string]interface{}{"approve": false, "comment": "Переделать крепление"}, env.masterToken)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	task := resp["data"].(map[string]interface{})
	if task["status"] != entity.TaskStatusInProgress {
		t.Errorf("Expected in_progress after return, got %v", task["status"])
	}
}

func TestTaskAcceptForbiddenForWrongAssignee(t *testing.T) {
	env := setupTaskTest(t)
	taskID := env.createTask(t, env.operator.ID)

	// The task is addressed to the operator, the master cannot take it
	w := testutil.DoRequest(env.router, "POST", "/api/v1/tasks/"+taskID+"/accept", nil, env.masterToken)
	if w.Code != http.StatusForbidden {
		t.Fatalf("Expected 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestOperatorCannotCreateTasks(t *testing.T) {
	env := setupTaskTest(t)

	body := map[string]interface{}{
		"title":         "Задача от оператора",
		"assignee_type": entity.AssigneeAll,
		"due_date":      "2026-09-10T00:00:00Z",
	}
	w := testutil.DoRequest(env.router, "POST", "/api/v1/tasks", body, env.workerToken)
	if w.Code != http.StatusForbidden {
		t.Fatalf("Expected 403, got %d: %s", w.Code, w.Body.String())
	}
}

func TestTaskComment(t *testing.T) {
	env := setupTaskTest(t)
	taskID := env.createTask(t, env.operator.ID)

	w := testutil.DoRequest(env.router, "POST", "/api/v1/tasks/"+taskID+"/comments",
		map[string]interface{}{"message": "Нужен чертёж"}, env.workerToken)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	comment := resp["data"].(map[string]interface{})
	if comment["message"] != "Нужен чертёж" {
		t.Errorf("Expected comment message to round-trip, got %v", comment["message"])
	}
}
