package handler

import (
	"fmt"
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

type partTestEnv struct {
	db     *gorm.DB
	router *gin.Engine
	admin  *entity.User
	token  string
}

// setupPartTest wires part and fact routes against an isolated test schema.
// Redis and Telegram are left nil, the services degrade gracefully without them.
func setupPartTest(t *testing.T) *partTestEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	cfg := &config.Config{}

	auditSvc := service.NewAuditService(repos.Audit, repos.User)
	machineSvc := service.NewMachineService(repos.Machine, repos.Part, auditSvc)
	partSvc := service.NewPartService(repos.Part, repos.Fact, repos.Movement, repos.Task, machineSvc, auditSvc, nil)
	notifySvc := service.NewNotifyService(repos.Outbox, repos.User, nil, cfg)
	movementSvc := service.NewMovementService(repos.Movement, repos.Part, partSvc, auditSvc)
	factSvc := service.NewFactService(repos.Fact, repos.Part, repos.Machine, partSvc, auditSvc, notifySvc)
	authSvc := service.NewAuthService(repos.User, auditSvc, nil, cfg)

	partHandler := NewPartHandler(partSvc, movementSvc, authSvc)
	factHandler := NewFactHandler(factSvc, authSvc)

	router := testutil.SetupRouter()
	api := testutil.AuthGroup(router, "/api/v1")
	api.GET("/parts", partHandler.List)
	api.POST("/parts", partHandler.Create)
	api.GET("/parts/:id", partHandler.Get)
	api.GET("/parts/:id/stages", partHandler.Stages)
	api.GET("/parts/:id/flow", partHandler.Flow)
	api.GET("/parts/:id/journal", partHandler.Journal)
	api.POST("/facts", factHandler.Create)

	admin := testutil.SeedTestUser(t, db, "Администратор", entity.RoleAdmin)
	token := testutil.GenerateTestToken(admin.ID, admin.Name, admin.Role)

	return &partTestEnv{db: db, router: router, admin: admin, token: token}
}

func TestCreatePartSeedsStageStatuses(t *testing.T) {
	env := setupPartTest(t)

	body := map[string]interface{}{
		"code":            "ДТ-245",
		"name":            "Вал шлицевой",
		"qty_plan":        50,
		"deadline":        "2026-10-15T00:00:00Z",
		"required_stages": []string{"machining", "fitting", "qc"},
	}
	w := testutil.DoRequest(env.router, "POST", "/api/v1/parts", body, env.token)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	part := resp["data"].(map[string]interface{})
	if part["status"] != "not_started" {
		t.Errorf("Expected status not_started, got %v", part["status"])
	}
	partID := part["id"].(string)

	// Every required stage must get a pending status row
	w = testutil.DoRequest(env.router, "GET", "/api/v1/parts/"+partID+"/stages", nil, env.token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp = testutil.ParseResponse(w)
	items := resp["data"].(map[string]interface{})["items"].([]interface{})
	if len(items) != 3 {
		t.Fatalf("Expected 3 stage statuses, got %d", len(items))
	}
	for _, raw := range items {
		ss := raw.(map[string]interface{})
		if ss["status"] != "pending" {
			t.Errorf("Expected pending stage %v, got %v", ss["stage"], ss["status"])
		}
	}
}

func TestCreatePartRejectsUnknownStage(t *testing.T) {
	env := setupPartTest(t)

	body := map[string]interface{}{
		"code":            "ДТ-001",
		"name":            "Корпус",
		"qty_plan":        10,
		"deadline":        "2026-10-15T00:00:00Z",
		"required_stages": []string{"machining", "painting"},
	}
	w := testutil.DoRequest(env.router, "POST", "/api/v1/parts", body, env.token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestReportFactRecomputesPart(t *testing.T) {
	env := setupPartTest(t)
	part := testutil.SeedTestPart(t, env.db, "ДТ-512", 10, []string{"machining", "fitting", "qc"})

	report := func(stage string, qty int) *testResult {
		body := map[string]interface{}{
			"part_id":    part.ID,
			"stage":      stage,
			"shift_type": entity.ShiftDay,
			"qty_good":   qty,
		}
		w := testutil.DoRequest(env.router, "POST", "/api/v1/facts", body, env.token)
		return &testResult{code: w.Code, body: w.Body.String()}
	}

	if r := report("machining", 4); r.code != http.StatusCreated {
		t.Fatalf("Expected 201 for machining fact, got %d: %s", r.code, r.body)
	}

	// Bottleneck: fitting and qc are untouched, so qty_done stays at 0
	w := testutil.DoRequest(env.router, "GET", "/api/v1/parts/"+part.ID, nil, env.token)
	resp := testutil.ParseResponse(w)
	got := resp["data"].(map[string]interface{})
	if got["status"] != "in_progress" {
		t.Errorf("Expected in_progress, got %v", got["status"])
	}
	if qty := got["qty_done"].(float64); qty != 0 {
		t.Errorf("Expected qty_done 0, got %v", qty)
	}

	// Downstream stage cannot process more than upstream produced
	if r := report("fitting", 6); r.code == http.StatusCreated {
		t.Fatalf("Expected overflow rejection for fitting fact, got 201")
	}

	if r := report("fitting", 4); r.code != http.StatusCreated {
		t.Fatalf("Expected 201 for fitting fact, got %d: %s", r.code, r.body)
	}
	if r := report("qc", 4); r.code != http.StatusCreated {
		t.Fatalf("Expected 201 for qc fact, got %d: %s", r.code, r.body)
	}

	w = testutil.DoRequest(env.router, "GET", "/api/v1/parts/"+part.ID, nil, env.token)
	resp = testutil.ParseResponse(w)
	got = resp["data"].(map[string]interface{})
	if qty := got["qty_done"].(float64); qty != 4 {
		t.Errorf("Expected qty_done 4, got %v", qty)
	}

	// Finish all stages, part must flip to done
	for _, step := range []struct {
		stage string
		qty   int
	}{{"machining", 6}, {"fitting", 6}, {"qc", 6}} {
		if r := report(step.stage, step.qty); r.code != http.StatusCreated {
			t.Fatalf("Expected 201 for %s fact, got %d: %s", step.stage, r.code, r.body)
		}
	}
	w = testutil.DoRequest(env.router, "GET", "/api/v1/parts/"+part.ID, nil, env.token)
	resp = testutil.ParseResponse(w)
	got = resp["data"].(map[string]interface{})
	if got["status"] != "done" {
		t.Errorf("Expected done, got %v", got["status"])
	}
	if qty := got["qty_done"].(float64); qty != 10 {
		t.Errorf("Expected qty_done 10, got %v", qty)
	}
}

func TestFactRejectedForExternalStage(t *testing.T) {
	env := setupPartTest(t)
	part := testutil.SeedTestPart(t, env.db, "ДТ-600", 20, []string{"machining", "heat_treatment", "qc"})

	// heat_treatment is tracked through movements, not facts
	body := map[string]interface{}{
		"part_id":    part.ID,
		"stage":      "heat_treatment",
		"shift_type": entity.ShiftDay,
		"qty_good":   5,
	}
	w := testutil.DoRequest(env.router, "POST", "/api/v1/facts", body, env.token)
	if w.Code == http.StatusCreated {
		t.Fatalf("Expected rejection for external stage fact, got 201")
	}
}

func TestPartFlowCards(t *testing.T) {
	env := setupPartTest(t)
	part := testutil.SeedTestPart(t, env.db, "ДТ-777", 15, []string{"machining", "fitting", "qc"})

	w := testutil.DoRequest(env.router, "GET", "/api/v1/parts/"+part.ID+"/flow", nil, env.token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := testutil.ParseResponse(w)
	items := resp["data"].(map[string]interface{})["items"].([]interface{})
	if len(items) == 0 {
		t.Fatal("Expected flow cards for seeded stages, got none")
	}
}

func TestPartJournalRejectsUnknownCategory(t *testing.T) {
	env := setupPartTest(t)
	part := testutil.SeedTestPart(t, env.db, "ДТ-810", 5, []string{"machining", "qc"})

	path := fmt.Sprintf("/api/v1/parts/%s/journal?category=bogus", part.ID)
	w := testutil.DoRequest(env.router, "GET", path, nil, env.token)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestPartRoutesRequireAuth(t *testing.T) {
	env := setupPartTest(t)

	w := testutil.DoRequest(env.router, "GET", "/api/v1/parts", nil, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 without token, got %d", w.Code)
	}
}

type testResult struct {
	code int
	body string
}
